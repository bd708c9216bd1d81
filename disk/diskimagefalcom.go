package disk

import (
	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

func init() {
	register(&formatSpec{
		id:          FormatFalcom,
		name:        "falcom",
		description: "Falcom DOS (PC-8801)",
		geometries:  []Geometry{Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newFalcomStrategy(d) },
		newCodec:    func(d *Disk) DirectoryCodec { return &falcomCodec{} },
	})
}

const (
	falcomDirPos     = 1
	falcomDirSectors = 4
	falcomFree       = 0xe5
	falcomEnd        = 0x00

	falcomAttrBASIC   = 0x01
	falcomAttrMachine = 0x02
	falcomAttrData    = 0x04
	falcomAttrRO      = 0x10
	falcomAttrVolume  = 0x80
)

// falcomStrategy allocates whole track sides contiguously. There is no
// table; the groups in use are those the directory lists.
type falcomStrategy struct {
	strategyBase
	used    map[int]bool
	pending map[int]bool
}

func newFalcomStrategy(d *Disk) *falcomStrategy {
	s := &falcomStrategy{pending: map[int]bool{}}
	s.d = d
	s.self = s
	return s
}

func (s *falcomStrategy) spg() int { return s.d.geom.SectorsPerTrack }

// ParseParamOnDisk requires the volume record in the first slot.
func (s *falcomStrategy) ParseParamOnDisk() float64 {
	data, err := s.d.readSector(falcomDirPos)
	if err != nil {
		return -1
	}
	if data[0x0b] != falcomAttrVolume || !printable(falcomName.Raw(data), ' ') {
		return -1
	}
	return 1
}

func (s *falcomStrategy) CheckFat() float64 {
	s.used = nil
	seen := map[int]bool{}
	r := 1.0
	s.scan(func(g int) {
		if seen[g] {
			r = 0.5
		}
		seen[g] = true
	})
	return r
}

func (s *falcomStrategy) scan(fn func(g int)) {
	for p := falcomDirPos; p < falcomDirPos+falcomDirSectors; p++ {
		data, err := s.d.readSector(p)
		if err != nil {
			continue
		}
		for off := 0; off+16 <= len(data); off += 16 {
			rec := data[off : off+16]
			if rec[0] == falcomEnd {
				return
			}
			if rec[0] == falcomFree || rec[0x0b] == falcomAttrVolume {
				continue
			}
			for i := 0; i < int(rec[0x0d]); i++ {
				fn(int(rec[0x0c]) + i)
			}
		}
	}
}

func (s *falcomStrategy) usedSet() map[int]bool {
	if s.used == nil {
		s.used = map[int]bool{}
		s.scan(func(g int) { s.used[g] = true })
	}
	return s.used
}

func (s *falcomStrategy) Recount() {
	s.used = nil
	s.pending = map[int]bool{}
}

func (s *falcomStrategy) GroupCount() int    { return s.d.geom.Tracks * s.d.geom.Sides }
func (s *falcomStrategy) BytesPerGroup() int { return s.spg() * s.d.geom.SectorSize }

func (s *falcomStrategy) RootGroups() (*GroupList, error) {
	return fixedRegion(s.d, falcomDirPos, falcomDirSectors), nil
}

func (s *falcomStrategy) GetGroupNumber(g int) int {
	if s.IsUsedGroupNumber(g) {
		return 1
	}
	return 0
}

func (s *falcomStrategy) SetGroupNumber(g, v int) {
	if v != 0 {
		s.pending[g] = true
	} else {
		delete(s.pending, g)
	}
}

func (s *falcomStrategy) IsUsedGroupNumber(g int) bool {
	return g == 0 || s.usedSet()[g] || s.pending[g]
}

func (s *falcomStrategy) GroupStatus(g int) GroupStatus {
	switch {
	case g == 0:
		return GroupSystem
	case s.IsUsedGroupNumber(g):
		return GroupUsed
	}
	return GroupFree
}

func (s *falcomStrategy) GetEmptyGroupNumber() int {
	return s.GetNextEmptyGroupNumber(0)
}

func (s *falcomStrategy) GetNextEmptyGroupNumber(g int) int {
	for c := g + 1; c < s.GroupCount(); c++ {
		if !s.IsUsedGroupNumber(c) {
			return c
		}
	}
	return NoGroup
}

func (s *falcomStrategy) GetStartSectorFromGroup(g int) int {
	return g * s.spg()
}

// GetEndSectorFromGroup takes n as the sectors used in the group.
func (s *falcomStrategy) GetEndSectorFromGroup(g, n int) int {
	if n < 1 || n > s.spg() {
		n = s.spg()
	}
	return g*s.spg() + n - 1
}

func (s *falcomStrategy) GetAllGroups(e DirectoryEntry) (*GroupList, error) {
	fe := e.(*falcomEntry)
	gl := NewGroupList(s.BytesPerGroup())
	gl.Size = e.FileSize()
	count := int(fe.Data[0x0d])
	for i := 0; i < count; i++ {
		g := e.StartGroup() + i
		if g <= 0 || g >= s.GroupCount() {
			return gl, checkpoint.Errorf(ErrDirectoryCorrupt, "%s: group %d", FullName(e), g)
		}
		used := s.spg()
		next := g + 1
		if i == count-1 {
			used, next = int(fe.Data[0x0e]), NoGroup
		}
		gl.Add(groupItem(s.d, g, next, s.GetStartSectorFromGroup(g), s.GetEndSectorFromGroup(g, used)))
	}
	return gl, nil
}

// AllocateUnitGroups finds the first run of free track sides long enough
// for size.
func (s *falcomStrategy) AllocateUnitGroups(e DirectoryEntry, size int, mode AllocMode) (*GroupList, error) {
	if mode == AllocAppend {
		return nil, checkpoint.From(ErrUnsupported)
	}
	n := (size + s.BytesPerGroup() - 1) / s.BytesPerGroup()
	gl := NewGroupList(s.BytesPerGroup())
	gl.Size = size
	if n == 0 {
		return gl, nil
	}
	if n > 0xff {
		return nil, &AllocError{}
	}
	run := 0
	for g := 1; g < s.GroupCount(); g++ {
		if s.IsUsedGroupNumber(g) {
			run = 0
			continue
		}
		if run++; run < n {
			continue
		}
		start := g - n + 1
		for c := start; c <= g; c++ {
			s.pending[c] = true
			next := c + 1
			if c == g {
				next = NoGroup
			}
			gl.Add(groupItem(s.d, c, next, s.GetStartSectorFromGroup(c), s.GetEndSectorFromGroup(c, s.spg())))
		}
		return gl, nil
	}
	return nil, &AllocError{}
}

func (s *falcomStrategy) CommitEntry(e DirectoryEntry, gl *GroupList, size int) error {
	fe := e.(*falcomEntry)
	start := 0
	if gl.Count() > 0 {
		start = gl.Items[0].Group
	}
	fe.SetStartGroup(start)
	fe.Data[0x0d] = byte(gl.Count())
	fe.SetFileSize(size)
	if err := s.d.Publish(e); err != nil {
		return err
	}
	s.Recount()
	return nil
}

func (s *falcomStrategy) DeleteGroups(gl *GroupList) error {
	for _, it := range gl.Items {
		delete(s.pending, it.Group)
	}
	s.used = nil
	return nil
}

func (s *falcomStrategy) DeleteGroupNumber(g int) {
	delete(s.pending, g)
	s.used = nil
}

func (s *falcomStrategy) Format() error {
	if err := s.d.fillRange(0, s.d.geom.TotalSectors(), 0xff); err != nil {
		return err
	}
	if err := s.d.fillRange(falcomDirPos, falcomDirSectors, falcomEnd); err != nil {
		return err
	}
	vol := make([]byte, 16)
	falcomName.SetStr(vol, "FALCOM", ' ')
	falcomExt.SetStr(vol, "", ' ')
	vol[0x0b] = falcomAttrVolume
	s.Recount()
	return s.d.patchSector(falcomDirPos, 0, vol)
}

var (
	falcomName = Field{Off: 0x00, Len: 8}
	falcomExt  = Field{Off: 0x08, Len: 3}
)

type falcomCodec struct{}

func (c *falcomCodec) EntrySize() int { return 16 }
func (c *falcomCodec) Blank() byte    { return falcomEnd }
func (c *falcomCodec) Tree() bool     { return false }

func (c *falcomCodec) SplitName(name string) (string, string, error) {
	return splitName(name, 8, 3, true)
}

func (c *falcomCodec) NewEntry(data []byte) DirectoryEntry {
	e := &falcomEntry{}
	e.Data = data
	return e
}

type falcomEntry struct {
	entryBase
}

func (e *falcomEntry) CheckUsed() bool {
	return e.Data[0] != falcomFree && e.Data[0] != falcomEnd
}

func (e *falcomEntry) Check() (bool, bool) {
	if e.Data[0] == falcomEnd {
		return true, true
	}
	if !e.CheckUsed() {
		return true, false
	}
	if !printable(falcomName.Raw(e.Data), ' ') || !printable(falcomExt.Raw(e.Data), ' ') {
		return false, false
	}
	if e.Data[0x0b]&falcomAttrVolume != 0 {
		return true, false
	}
	if e.Data[0x0e] > 16 {
		return false, false
	}
	end := e.StartGroup() + int(e.Data[0x0d])
	return e.Data[0x0d] == 0 || e.StartGroup() > 0 && end <= e.d.alloc.GroupCount(), false
}

func (e *falcomEntry) NameField() Field { return falcomName }
func (e *falcomEntry) ExtField() Field  { return falcomExt }
func (e *falcomEntry) FileName() string { return falcomName.Str(e.Data, ' ') }
func (e *falcomEntry) FileExt() string  { return falcomExt.Str(e.Data, ' ') }

func (e *falcomEntry) SetFileName(name, ext string) {
	falcomName.SetStr(e.Data, name, ' ')
	falcomExt.SetStr(e.Data, ext, ' ')
}

func (e *falcomEntry) FileTypeN(n int) int       { return int(e.Data[0x0b]) }
func (e *falcomEntry) SetFileTypeN(n int, v int) { e.Data[0x0b] = byte(v) }

func (e *falcomEntry) StartGroup() int     { return int(e.Data[0x0c]) }
func (e *falcomEntry) SetStartGroup(g int) { e.Data[0x0c] = byte(g) }

// FileSize counts whole groups, then the sectors of the last group and the
// bytes of its last sector. Zero last sector bytes means a full sector.
func (e *falcomEntry) FileSize() int {
	n, sl, lb := int(e.Data[0x0d]), int(e.Data[0x0e]), int(e.Data[0x0f])
	if n == 0 || sl == 0 {
		return 0
	}
	ss := e.d.geom.SectorSize
	if lb == 0 {
		lb = ss
	}
	return (n-1)*e.d.geom.SectorsPerTrack*ss + (sl-1)*ss + lb
}

func (e *falcomEntry) SetFileSize(size int) {
	ss := e.d.geom.SectorSize
	gs := e.d.geom.SectorsPerTrack * ss
	if size == 0 {
		e.Data[0x0e], e.Data[0x0f] = 0, 0
		return
	}
	rem := size - (size-1)/gs*gs
	sl := (rem + ss - 1) / ss
	e.Data[0x0e] = byte(sl)
	e.Data[0x0f] = byte(rem - (sl-1)*ss)
}

func (e *falcomEntry) Capabilities() Capability {
	return CapExplicitSize
}

func (e *falcomEntry) FileAttr() FileAttr {
	t := e.Data[0x0b]
	a := FileAttr{Origin: int(t), Format: FormatFalcom}
	switch {
	case t&falcomAttrVolume != 0:
		a.Flags |= AttrVolume
	case t&falcomAttrBASIC != 0:
		a.Flags |= AttrBASIC | AttrBinary
	case t&falcomAttrMachine != 0:
		a.Flags |= AttrMachine | AttrBinary
	case t&falcomAttrData != 0:
		a.Flags |= AttrData | AttrASCII
	default:
		a.Flags |= AttrBinary
	}
	if t&falcomAttrRO != 0 {
		a.Flags |= AttrReadOnly
	}
	return a
}

func (e *falcomEntry) SetFileAttr(a FileAttr) {
	t, ok := a.Native(FormatFalcom)
	if !ok {
		switch {
		case a.Flags.Has(AttrBASIC):
			t = falcomAttrBASIC
		case a.Flags.Has(AttrMachine):
			t = falcomAttrMachine
		case a.Flags.Has(AttrData), a.Flags.Has(AttrASCII):
			t = falcomAttrData
		default:
			t = 0
		}
	}
	t &^= falcomAttrRO
	if a.Flags.Has(AttrReadOnly) {
		t |= falcomAttrRO
	}
	if a.Flags.Has(AttrVolume) {
		t |= falcomAttrVolume
	} else {
		t &^= falcomAttrVolume
	}
	e.Data[0x0b] = byte(t)
}

func (e *falcomEntry) Delete() {
	e.Data[0] = falcomFree
}

func (e *falcomEntry) Clear() {
	fill(e.Data, 0)
	fill(e.Data[:0x0b], ' ')
}
