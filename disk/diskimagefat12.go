package disk

import (
	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

const (
	fat12Bad = 0xff7
	fat12End = 0xfff
)

// bpb holds the boot parameters every FAT12 variant reduces to.
type bpb struct {
	BytesPerSector    int
	SectorsPerCluster int
	Reserved          int
	FATs              int
	RootEntries       int
	TotalSectors      int
	Media             byte
	FATSectors        int
	SectorsPerTrack   int
	Heads             int
}

func (b bpb) rootStart() int {
	return b.Reserved + b.FATs*b.FATSectors
}

func (b bpb) rootSectors() int {
	return (b.RootEntries*32 + b.BytesPerSector - 1) / b.BytesPerSector
}

func (b bpb) dataStart() int {
	return b.rootStart() + b.rootSectors()
}

func (b bpb) clusters() int {
	if b.SectorsPerCluster == 0 {
		return 0
	}
	return (b.TotalSectors - b.dataStart()) / b.SectorsPerCluster
}

// bpbFor gives the parameters written when formatting g.
func bpbFor(g Geometry) (bpb, bool) {
	b := bpb{
		BytesPerSector:  g.SectorSize,
		Reserved:        1,
		FATs:            2,
		TotalSectors:    g.TotalSectors(),
		SectorsPerTrack: g.SectorsPerTrack,
		Heads:           g.Sides,
	}
	switch g {
	case Geometry2DD9:
		b.SectorsPerCluster, b.RootEntries, b.Media, b.FATSectors = 2, 112, 0xf9, 3
	case Geometry1DD9:
		b.SectorsPerCluster, b.RootEntries, b.Media, b.FATSectors = 2, 112, 0xf8, 2
	case Geometry2HD18:
		b.SectorsPerCluster, b.RootEntries, b.Media, b.FATSectors = 1, 224, 0xf0, 9
	case Geometry2HD:
		b.SectorsPerCluster, b.RootEntries, b.Media, b.FATSectors = 1, 192, 0xfe, 2
	default:
		return b, false
	}
	return b, true
}

// fat12Boot reads and writes one variant's boot sector.
type fat12Boot interface {
	parse(boot []byte) (bpb, float64)
	write(boot []byte, b bpb)
}

type fat12Strategy struct {
	strategyBase
	boot fat12Boot
	bpb  bpb
	fat  *FatRegion
}

func newFat12Strategy(d *Disk, boot fat12Boot) *fat12Strategy {
	s := &fat12Strategy{boot: boot}
	s.d = d
	s.self = s
	return s
}

func (s *fat12Strategy) setup(b bpb) {
	s.bpb = b
	s.fat = NewFatRegion(s.d.store, FatParams{
		Start:   b.Reserved,
		Sectors: b.FATSectors,
		Copies:  b.FATs,
		Stride:  b.FATSectors,
	})
}

func (s *fat12Strategy) ParseParamOnDisk() float64 {
	boot, err := s.d.readSector(0)
	if err != nil {
		return -1
	}
	b, r := s.boot.parse(boot)
	if r < 0 {
		return r
	}
	g := s.d.geom
	switch {
	case b.BytesPerSector != g.SectorSize,
		b.TotalSectors != g.TotalSectors(),
		b.SectorsPerCluster < 1, b.FATs < 1, b.FATSectors < 1,
		b.clusters() < 1,
		(b.clusters()+2)*3/2 > b.FATSectors*b.BytesPerSector:
		return -1
	}
	s.setup(b)
	if err := s.fat.Assign(); err != nil {
		return -1
	}
	return r
}

func (s *fat12Strategy) CheckFat() float64 {
	if s.fat.Get(0) != s.bpb.Media {
		return -1
	}
	bad := 0
	for g := 2; g < s.GroupCount(); g++ {
		v := s.fat.GetData12LE(g)
		if v != 0 && v < fat12Bad && (v < 2 || v >= s.GroupCount()) {
			bad++
		}
	}
	if bad > 0 {
		s.d.log.Errorf("%s: %d table entries out of range", s.d.spec.name, bad)
		return 0.5
	}
	if !s.fat.CopiesMatch() {
		return 0.8
	}
	return 1
}

func (s *fat12Strategy) GroupCount() int {
	return s.bpb.clusters() + 2
}

func (s *fat12Strategy) BytesPerGroup() int {
	return s.bpb.SectorsPerCluster * s.bpb.BytesPerSector
}

func (s *fat12Strategy) RootGroups() (*GroupList, error) {
	return fixedRegion(s.d, s.bpb.rootStart(), s.bpb.rootSectors()), nil
}

func (s *fat12Strategy) GetGroupNumber(g int) int {
	return s.fat.GetData12LE(g)
}

func (s *fat12Strategy) SetGroupNumber(g, v int) {
	s.fat.SetData12LE(g, v)
}

func (s *fat12Strategy) IsUsedGroupNumber(g int) bool {
	v := s.fat.GetData12LE(g)
	return g >= 2 && v != 0 && v != fat12Bad
}

func (s *fat12Strategy) GroupStatus(g int) GroupStatus {
	if g < 2 {
		return GroupSystem
	}
	switch v := s.fat.GetData12LE(g); v {
	case 0:
		return GroupFree
	case fat12Bad:
		return GroupSystem
	}
	return GroupUsed
}

func (s *fat12Strategy) GetEmptyGroupNumber() int {
	return s.GetNextEmptyGroupNumber(1)
}

func (s *fat12Strategy) GetNextEmptyGroupNumber(g int) int {
	n := s.GroupCount()
	for i := 1; i < n; i++ {
		c := g + i
		if c >= n {
			c = c - n + 2
		}
		if c >= 2 && c < n && s.fat.GetData12LE(c) == 0 {
			return c
		}
	}
	return NoGroup
}

func (s *fat12Strategy) GetStartSectorFromGroup(g int) int {
	return s.bpb.dataStart() + (g-2)*s.bpb.SectorsPerCluster
}

func (s *fat12Strategy) GetEndSectorFromGroup(g, next int) int {
	return s.GetStartSectorFromGroup(g) + s.bpb.SectorsPerCluster - 1
}

func (s *fat12Strategy) GetAllGroups(e DirectoryEntry) (*GroupList, error) {
	gl := NewGroupList(s.BytesPerGroup())
	g := e.StartGroup()
	if g == 0 {
		return gl, nil
	}
	guard := chainGuard{limit: s.GroupCount()}
	for {
		if err := guard.step(); err != nil {
			return gl, err
		}
		if g < 2 || g >= s.GroupCount() {
			return gl, checkpoint.Errorf(ErrDirectoryCorrupt, "%s: cluster %d out of range", FullName(e), g)
		}
		v := s.fat.GetData12LE(g)
		if v == 0 || v == fat12Bad {
			return gl, checkpoint.Errorf(ErrDirectoryCorrupt, "%s: chain reaches free cluster %d", FullName(e), g)
		}
		next := v
		if v > fat12Bad {
			next = NoGroup
		}
		item := groupItem(s.d, g, next, s.GetStartSectorFromGroup(g), s.GetEndSectorFromGroup(g, v))
		if err := gl.Add(item); err != nil {
			return gl, checkpoint.Wrap(err, ErrChainOverrun)
		}
		if next == NoGroup {
			break
		}
		g = next
	}
	gl.Size = gl.Capacity()
	if !e.FileAttr().Flags.Has(AttrDirectory) && e.FileSize() <= gl.Size {
		gl.Size = e.FileSize()
	}
	return gl, nil
}

func (s *fat12Strategy) AllocateUnitGroups(e DirectoryEntry, size int, mode AllocMode) (*GroupList, error) {
	need := (size + s.BytesPerGroup() - 1) / s.BytesPerGroup()
	gl := NewGroupList(s.BytesPerGroup())
	gl.Size = size
	if need == 0 {
		return gl, nil
	}

	prev, prevValue := NoGroup, 0
	if mode == AllocAppend && e.StartGroup() != 0 {
		old, err := s.GetAllGroups(e)
		if err != nil {
			return nil, err
		}
		if last := old.Last(); last != nil {
			prev = last.Group
			prevValue = s.fat.GetData12LE(prev)
		}
	}

	var taken []int
	from := prev
	if from == NoGroup {
		from = 1
	}
	for len(taken) < need {
		g := s.GetNextEmptyGroupNumber(from)
		if g == NoGroup {
			for _, t := range taken {
				s.fat.SetData12LE(t, 0)
			}
			if prev != NoGroup {
				s.fat.SetData12LE(prev, prevValue)
			}
			return nil, &AllocError{Partial: len(taken) > 0, Groups: taken}
		}
		s.fat.SetData12LE(g, fat12End)
		if len(taken) > 0 {
			s.fat.SetData12LE(taken[len(taken)-1], g)
		} else if prev != NoGroup {
			s.fat.SetData12LE(prev, g)
		}
		taken = append(taken, g)
		from = g
	}

	for i, g := range taken {
		next := NoGroup
		if i+1 < len(taken) {
			next = taken[i+1]
		}
		gl.Add(groupItem(s.d, g, next, s.GetStartSectorFromGroup(g), s.GetEndSectorFromGroup(g, 0)))
	}
	return gl, nil
}

func (s *fat12Strategy) CommitEntry(e DirectoryEntry, gl *GroupList, size int) error {
	e.SetStartGroup(0)
	if gl.Count() > 0 {
		e.SetStartGroup(gl.Items[0].Group)
	}
	e.SetFileSize(size)
	return s.d.Publish(e)
}

func (s *fat12Strategy) DeleteGroupNumber(g int) {
	if g >= 2 && g < s.GroupCount() {
		s.fat.SetData12LE(g, 0)
	}
}

func (s *fat12Strategy) Format() error {
	b, ok := bpbFor(s.d.geom)
	if !ok {
		return checkpoint.From(ErrUnsupported)
	}
	if err := s.d.fillRange(0, s.d.geom.TotalSectors(), 0xf6); err != nil {
		return err
	}
	boot := make([]byte, b.BytesPerSector)
	s.boot.write(boot, b)
	if err := s.d.writeSector(0, boot); err != nil {
		return err
	}
	if err := s.d.fillRange(b.Reserved, b.FATs*b.FATSectors+b.rootSectors(), 0); err != nil {
		return err
	}
	s.setup(b)
	if err := s.fat.Assign(); err != nil {
		return err
	}
	s.fat.Set(0, b.Media)
	s.fat.Set(1, 0xff)
	s.fat.Set(2, 0xff)
	return nil
}

// MakeDirectory gives e one zeroed cluster holding "." and "..".
func (s *fat12Strategy) MakeDirectory(parent *DirNode, e DirectoryEntry) error {
	gl, err := s.AllocateUnitGroups(e, s.BytesPerGroup(), AllocNew)
	if err != nil {
		return err
	}
	if err := s.d.writePositions(gl.Positions(), nil); err != nil {
		s.DeleteGroups(gl)
		return err
	}

	parentStart := 0
	if parent.Entry != nil {
		parentStart = parent.Entry.StartGroup()
	}
	first := gl.Items[0]
	for i, name := range []string{".", ".."} {
		rec := make([]byte, s.d.codec.EntrySize())
		dot := s.d.codec.NewEntry(rec)
		b := dot.base()
		b.d = s.d
		b.loc = Location{Pos: first.SectorStart, Offset: i * len(rec), Index: i}
		dot.Clear()
		dot.SetFileName(name, "")
		dot.SetFileAttr(FileAttr{Flags: AttrDirectory})
		dot.SetModTime(s.d.opts.Now())
		if i == 0 {
			dot.SetStartGroup(first.Group)
		} else {
			dot.SetStartGroup(parentStart)
		}
		if err := s.d.Publish(dot); err != nil {
			s.DeleteGroups(gl)
			return err
		}
	}
	e.SetStartGroup(first.Group)
	e.SetFileSize(0)
	return s.d.Publish(e)
}

func (s *fat12Strategy) GrowDirectory(n *DirNode) error {
	if n.Entry == nil {
		return checkpoint.From(ErrDirectoryFull)
	}
	gl, err := s.AllocateUnitGroups(n.Entry, s.BytesPerGroup(), AllocAppend)
	if err != nil {
		return err
	}
	return s.d.writePositions(gl.Positions(), nil)
}
