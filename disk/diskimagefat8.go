package disk

import (
	"bytes"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

const (
	fat8Free   = 0xff
	fat8System = 0xfe
	asciiEOF   = 0x1a
)

// fat8Layout places a one-byte-per-group table and its directory on disk.
type fat8Layout struct {
	groups   int
	spg      int
	firstPos int
	fat      FatParams
	// lastBase + n marks a final group holding n sectors.
	lastBase int
	// split stores groups as a low byte at g and a high byte at g+split.
	split       int
	system      []int
	rootStart   int
	rootSectors int
	fill        byte
	// eof makes ASCII files end at the first 0x1a of their last sector.
	eof bool

	check  func(s *fat8Strategy) float64
	format func(s *fat8Strategy) error
}

type fat8Kind int

const (
	kindFree fat8Kind = iota
	kindSystem
	kindNext
	kindLast
	kindBad
)

type fat8Strategy struct {
	strategyBase
	l   *fat8Layout
	fat *FatRegion
}

func newFat8Strategy(d *Disk, l *fat8Layout) *fat8Strategy {
	s := &fat8Strategy{l: l}
	s.d = d
	s.self = s
	s.fat = NewFatRegion(d.store, l.fat)
	return s
}

func (s *fat8Strategy) raw(g int) int {
	if s.l.split > 0 {
		return int(s.fat.Get(g)) | int(s.fat.Get(g+s.l.split))<<8
	}
	return s.fat.GetData8(g)
}

func (s *fat8Strategy) setRaw(g, v int) {
	if s.l.split > 0 {
		s.fat.Set(g, byte(v))
		s.fat.Set(g+s.l.split, byte(v>>8))
		return
	}
	s.fat.SetData8(g, v)
}

func (s *fat8Strategy) classify(v int) (fat8Kind, int) {
	if s.l.split > 0 {
		switch {
		case v == 0:
			return kindFree, 0
		case v == 1:
			return kindSystem, 0
		case v&0x8000 != 0:
			if n := v&0x0f + 1; v&0x7ff0 == 0 && n <= s.l.spg {
				return kindLast, n
			}
			return kindBad, 0
		case v < s.l.groups:
			return kindNext, v
		}
		return kindBad, 0
	}
	switch {
	case v == fat8Free:
		return kindFree, 0
	case v == fat8System:
		return kindSystem, 0
	case v < s.l.groups:
		return kindNext, v
	case v > s.l.lastBase && v <= s.l.lastBase+s.l.spg:
		return kindLast, v - s.l.lastBase
	}
	return kindBad, 0
}

func (s *fat8Strategy) freeValue() int {
	if s.l.split > 0 {
		return 0
	}
	return fat8Free
}

func (s *fat8Strategy) systemValue() int {
	if s.l.split > 0 {
		return 1
	}
	return fat8System
}

func (s *fat8Strategy) lastValue(n int) int {
	if s.l.split > 0 {
		return 0x8000 | (n - 1)
	}
	return s.l.lastBase + n
}

func (s *fat8Strategy) ParseParamOnDisk() float64 {
	if err := s.fat.Assign(); err != nil {
		return -1
	}
	if s.l.check != nil {
		return s.l.check(s)
	}
	return 1
}

func (s *fat8Strategy) CheckFat() float64 {
	for g := 0; g < s.l.groups; g++ {
		if k, _ := s.classify(s.raw(g)); k == kindBad {
			return -1
		}
	}
	for _, g := range s.l.system {
		if k, _ := s.classify(s.raw(g)); k != kindSystem {
			return -1
		}
	}
	if !s.fat.CopiesMatch() {
		s.d.log.Errorf("%s: allocation table copies differ", s.d.spec.name)
		return 0.8
	}
	return 1
}

func (s *fat8Strategy) GroupCount() int {
	return s.l.groups
}

func (s *fat8Strategy) BytesPerGroup() int {
	return s.l.spg * s.d.geom.SectorSize
}

func (s *fat8Strategy) RootGroups() (*GroupList, error) {
	return fixedRegion(s.d, s.l.rootStart, s.l.rootSectors), nil
}

func (s *fat8Strategy) GetGroupNumber(g int) int {
	return s.raw(g)
}

func (s *fat8Strategy) SetGroupNumber(g, v int) {
	s.setRaw(g, v)
}

func (s *fat8Strategy) IsUsedGroupNumber(g int) bool {
	k, _ := s.classify(s.raw(g))
	return k == kindNext || k == kindLast
}

func (s *fat8Strategy) GroupStatus(g int) GroupStatus {
	switch k, _ := s.classify(s.raw(g)); k {
	case kindFree:
		return GroupFree
	case kindSystem:
		return GroupSystem
	}
	return GroupUsed
}

func (s *fat8Strategy) GetEmptyGroupNumber() int {
	return s.GetNextEmptyGroupNumber(-1)
}

// GetNextEmptyGroupNumber searches forward from g and wraps once.
func (s *fat8Strategy) GetNextEmptyGroupNumber(g int) int {
	for i := 1; i <= s.l.groups; i++ {
		c := (g + i) % s.l.groups
		if c < 0 {
			c += s.l.groups
		}
		if k, _ := s.classify(s.raw(c)); k == kindFree {
			return c
		}
	}
	return NoGroup
}

func (s *fat8Strategy) GetStartSectorFromGroup(g int) int {
	return s.l.firstPos + g*s.l.spg
}

func (s *fat8Strategy) GetEndSectorFromGroup(g, next int) int {
	start := s.GetStartSectorFromGroup(g)
	if k, n := s.classify(next); k == kindLast {
		return start + n - 1
	}
	return start + s.l.spg - 1
}

func (s *fat8Strategy) isASCII(e DirectoryEntry) bool {
	return s.l.eof && e.FileAttr().Flags.Has(AttrASCII)
}

func (s *fat8Strategy) GetAllGroups(e DirectoryEntry) (*GroupList, error) {
	gl := NewGroupList(s.BytesPerGroup())
	guard := chainGuard{limit: s.l.groups}
	sectors := 0
	for g := e.StartGroup(); ; {
		if err := guard.step(); err != nil {
			return gl, err
		}
		if g < 0 || g >= s.l.groups {
			return gl, checkpoint.Errorf(ErrDirectoryCorrupt, "%s: group %d out of range", FullName(e), g)
		}
		v := s.raw(g)
		k, n := s.classify(v)
		item := groupItem(s.d, g, NoGroup, s.GetStartSectorFromGroup(g), s.GetEndSectorFromGroup(g, v))
		if k == kindNext {
			item.Next = n
		}
		if k != kindNext && k != kindLast {
			return gl, checkpoint.Errorf(ErrDirectoryCorrupt, "%s: chain reaches unused group %d", FullName(e), g)
		}
		if err := gl.Add(item); err != nil {
			return gl, checkpoint.Wrap(err, ErrChainOverrun)
		}
		sectors += item.Sectors()
		if k == kindLast {
			break
		}
		g = n
	}

	ss := s.d.geom.SectorSize
	gl.Size = sectors * ss
	switch {
	case e.Capabilities()&CapExplicitSize != 0:
		if sz := e.FileSize(); sz <= gl.Size {
			gl.Size = sz
		}
	case s.isASCII(e):
		if last, err := s.d.readSector(gl.Last().SectorEnd); err == nil {
			if i := bytes.IndexByte(last, asciiEOF); i >= 0 {
				gl.Size = (sectors-1)*ss + i
			}
		}
	default:
		if lb, ok := e.(lastBytesEntry); ok {
			if n, ok := lb.LastSectorBytes(); ok && n >= 0 && n <= ss {
				gl.Size = (sectors-1)*ss + n
			}
		}
	}
	return gl, nil
}

// AllocateUnitGroups takes groups one at a time, linking as it goes, and
// releases them again if the disk fills.
func (s *fat8Strategy) AllocateUnitGroups(e DirectoryEntry, size int, mode AllocMode) (*GroupList, error) {
	ss := s.d.geom.SectorSize
	payload := size
	if s.isASCII(e) && mode == AllocNew {
		payload++
	}
	sectors := s.sectorsFor(payload, ss, 1)
	need := (sectors + s.l.spg - 1) / s.l.spg

	prev := NoGroup
	if mode == AllocAppend {
		sectors = need * s.l.spg
		old, err := s.GetAllGroups(e)
		if err != nil {
			return nil, err
		}
		prev = old.Last().Group
	}
	prevValue := 0
	if prev != NoGroup {
		prevValue = s.raw(prev)
	}

	var taken []int
	from := prev
	for len(taken) < need {
		g := s.GetNextEmptyGroupNumber(from)
		if g == NoGroup {
			for _, t := range taken {
				s.setRaw(t, s.freeValue())
			}
			if prev != NoGroup {
				s.setRaw(prev, prevValue)
			}
			return nil, &AllocError{Partial: len(taken) > 0, Groups: taken}
		}
		s.setRaw(g, s.lastValue(1))
		if from != NoGroup && (len(taken) > 0 || prev != NoGroup) {
			s.setRaw(from, g)
		}
		taken = append(taken, g)
		from = g
	}
	s.setRaw(taken[len(taken)-1], s.lastValue(sectors-(need-1)*s.l.spg))

	gl := NewGroupList(s.BytesPerGroup())
	for i, g := range taken {
		next := NoGroup
		if i+1 < len(taken) {
			next = taken[i+1]
		}
		gl.Add(groupItem(s.d, g, next, s.GetStartSectorFromGroup(g), s.GetEndSectorFromGroup(g, s.raw(g))))
	}
	gl.Size = size
	return gl, nil
}

func (s *fat8Strategy) WriteData(e DirectoryEntry, gl *GroupList, data []byte) error {
	if s.isASCII(e) && (len(data) == 0 || data[len(data)-1] != asciiEOF) {
		data = append(append([]byte{}, data...), asciiEOF)
	}
	return s.d.writePositions(gl.Positions(), data)
}

func (s *fat8Strategy) DeleteGroupNumber(g int) {
	if g >= 0 && g < s.l.groups {
		s.setRaw(g, s.freeValue())
	}
}

func (s *fat8Strategy) Format() error {
	geom := s.d.geom
	if err := s.d.fillRange(0, geom.TotalSectors(), s.l.fill); err != nil {
		return err
	}
	if err := s.fat.Assign(); err != nil {
		return err
	}
	for g := 0; g < s.l.groups; g++ {
		s.setRaw(g, s.freeValue())
	}
	for _, g := range s.l.system {
		s.setRaw(g, s.systemValue())
	}
	if err := s.d.fillRange(s.l.rootStart, s.l.rootSectors, s.d.codec.Blank()); err != nil {
		return err
	}
	if s.l.format != nil {
		return s.l.format(s)
	}
	return nil
}

// systemOf lists every group whose sectors fall inside [start, start+count).
func (l *fat8Layout) systemOf(start, count int) []int {
	var out []int
	for g := 0; g < l.groups; g++ {
		gs := l.firstPos + g*l.spg
		if gs < start+count && gs+l.spg > start {
			out = append(out, g)
		}
	}
	return out
}
