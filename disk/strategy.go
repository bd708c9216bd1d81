package disk

import (
	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

// strategyBase holds the parts of an allocation engine that only depend on
// the rest of the engine through its interface. self is the embedding
// strategy.
type strategyBase struct {
	d    *Disk
	self AllocationStrategy
}

func (b *strategyBase) AllocateGroups(e DirectoryEntry, size int) (*GroupList, error) {
	return b.self.AllocateUnitGroups(e, size, AllocNew)
}

func (b *strategyBase) DeleteGroups(gl *GroupList) error {
	for _, it := range gl.Items {
		b.self.DeleteGroupNumber(it.Group)
	}
	return nil
}

func (b *strategyBase) CalcDiskFreeSize() FreeSpace {
	fs := FreeSpace{Groups: b.self.GroupCount()}
	for g := 0; g < fs.Groups; g++ {
		switch b.self.GroupStatus(g) {
		case GroupFree:
			fs.FreeGroups++
		case GroupMissing, GroupSystem:
		default:
			fs.UsedBytes += b.self.BytesPerGroup()
		}
	}
	fs.FreeBytes = fs.FreeGroups * b.self.BytesPerGroup()
	return fs
}

func (b *strategyBase) ReadData(e DirectoryEntry, gl *GroupList) ([]byte, error) {
	data, err := b.d.readPositions(gl.Positions())
	if err != nil {
		return nil, err
	}
	if gl.Size >= 0 && gl.Size < len(data) {
		data = data[:gl.Size]
	}
	return data, nil
}

func (b *strategyBase) WriteData(e DirectoryEntry, gl *GroupList, data []byte) error {
	return b.d.writePositions(gl.Positions(), data)
}

func (b *strategyBase) CommitEntry(e DirectoryEntry, gl *GroupList, size int) error {
	if gl.Count() > 0 {
		e.SetStartGroup(gl.Items[0].Group)
	}
	e.SetFileSize(size)
	return b.d.Publish(e)
}

func (b *strategyBase) RootGroups() (*GroupList, error) {
	return nil, ErrUnsupported
}

func (b *strategyBase) Recount() {}

// occupied sectors a payload of size bytes needs, never fewer than min.
func (b *strategyBase) sectorsFor(size, payload, min int) int {
	n := (size + payload - 1) / payload
	if n < min {
		n = min
	}
	return n
}

// fixedRegion describes a run of sectors outside the group space.
func fixedRegion(d *Disk, start, count int) *GroupList {
	gl := NewGroupList(count * d.geom.SectorSize)
	t, s, _ := d.geom.Chs(start)
	gl.Add(GroupItem{
		Group:       NoGroup,
		Next:        NoGroup,
		Track:       t,
		Side:        s,
		SectorStart: start,
		SectorEnd:   start + count - 1,
	})
	gl.Size = count * d.geom.SectorSize
	return gl
}

// groupItem builds the item for a group spanning sectors [start, end].
func groupItem(d *Disk, group, next, start, end int) GroupItem {
	t, s, _ := d.geom.Chs(start)
	return GroupItem{
		Group:       group,
		Next:        next,
		Track:       t,
		Side:        s,
		SectorStart: start,
		SectorEnd:   end,
	}
}

// chainGuard aborts walks that run past the number of groups.
type chainGuard struct {
	limit, steps int
}

func (c *chainGuard) step() error {
	c.steps++
	if c.steps > c.limit+1 {
		return checkpoint.From(ErrChainOverrun)
	}
	return nil
}
