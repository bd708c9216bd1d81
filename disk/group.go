package disk

import "fmt"

// NoGroup marks the absence of a group number.
const NoGroup = -1

// GroupItem is one allocation unit of a chain resolved to physical sectors.
// SectorStart and SectorEnd are linear positions, inclusive. On the last
// item of a chain SectorEnd is cut to the sectors actually occupied.
type GroupItem struct {
	Group       int
	Next        int
	Track       int
	Side        int
	SectorStart int
	SectorEnd   int
	// Div is the directory record, of DivNum records, that lists the
	// group on formats that spread one file over several records.
	Div    int
	DivNum int
	// Index marks an item holding chain pointers rather than payload.
	Index bool
	// Scatter lists the sectors of a group that are not contiguous. It
	// overrides SectorStart and SectorEnd.
	Scatter []int
}

func (gi GroupItem) Sectors() int {
	if gi.Scatter != nil {
		return len(gi.Scatter)
	}
	return gi.SectorEnd - gi.SectorStart + 1
}

func (gi GroupItem) String() string {
	return fmt.Sprintf("G%d->%d [%d..%d]", gi.Group, gi.Next, gi.SectorStart, gi.SectorEnd)
}

// GroupList is the resolved chain of one file.
type GroupList struct {
	Items []GroupItem
	// Size is the occupied byte count the chain reports.
	Size          int
	BytesPerGroup int

	seen map[int]bool
}

func NewGroupList(bytesPerGroup int) *GroupList {
	return &GroupList{
		BytesPerGroup: bytesPerGroup,
		seen:          make(map[int]bool),
	}
}

// Add appends item. A group can appear only once per list.
func (gl *GroupList) Add(item GroupItem) error {
	if gl.seen == nil {
		gl.seen = make(map[int]bool)
	}
	if gl.seen[item.Group] {
		return ErrDuplicateGroup
	}
	gl.seen[item.Group] = true
	gl.Items = append(gl.Items, item)
	return nil
}

func (gl *GroupList) Contains(group int) bool {
	return gl.seen[group]
}

func (gl *GroupList) Count() int {
	return len(gl.Items)
}

func (gl *GroupList) Last() *GroupItem {
	if len(gl.Items) == 0 {
		return nil
	}
	return &gl.Items[len(gl.Items)-1]
}

func (gl *GroupList) Groups() []int {
	out := make([]int, len(gl.Items))
	for i, it := range gl.Items {
		out[i] = it.Group
	}
	return out
}

// Capacity is the chain length in bytes.
func (gl *GroupList) Capacity() int {
	return len(gl.Items) * gl.BytesPerGroup
}

// Positions lists every linear sector the chain covers, in order.
func (gl *GroupList) Positions() []int {
	var out []int
	for _, it := range gl.Items {
		if it.Scatter != nil {
			out = append(out, it.Scatter...)
			continue
		}
		for p := it.SectorStart; p <= it.SectorEnd; p++ {
			out = append(out, p)
		}
	}
	return out
}

// Merge appends the items of other that are not already present.
func (gl *GroupList) Merge(other *GroupList) error {
	for _, it := range other.Items {
		if err := gl.Add(it); err != nil {
			return err
		}
	}
	gl.Size += other.Size
	return nil
}
