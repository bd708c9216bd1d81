package disk

import (
	"time"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

func init() {
	register(&formatSpec{
		id:          FormatFLEX,
		name:        "flex",
		description: "TSC FLEX 6809",
		geometries:  []Geometry{Geometry2D, Geometry1D},
		newStrategy: func(d *Disk) AllocationStrategy { return newFlexStrategy(d) },
		newCodec:    func(d *Disk) DirectoryCodec { return &flexCodec{} },
	})
}

const (
	flexSIRPos     = 2
	flexDirPos     = 4
	flexHeader     = 4
	flexPayload    = 252
	flexDirEntries = 0x10

	flexProtectWrite   = 0x80
	flexProtectDelete  = 0x40
	flexProtectCatalog = 0x10
	flexRandom         = 0x02
)

// SIR fields.
const (
	sirName      = 0x10
	sirVolume    = 0x1b
	sirFirstFree = 0x1d
	sirLastFree  = 0x1f
	sirFreeCount = 0x21
	sirDate      = 0x23
	sirMaxTrack  = 0x26
	sirMaxSector = 0x27
)

// flexStrategy keeps free sectors on one linked chain recorded in the
// system information record. Groups are linear sector positions; FLEX
// numbers the sectors of both sides of a cylinder 1..n on one track.
type flexStrategy struct {
	strategyBase
	sir *FatRegion
	// free caches the members of the free chain until the next change.
	free map[int]bool
}

func newFlexStrategy(d *Disk) *flexStrategy {
	s := &flexStrategy{}
	s.d = d
	s.self = s
	s.sir = NewFatRegion(d.store, FatParams{Start: flexSIRPos, Sectors: 1})
	return s
}

func (s *flexStrategy) trackLen() int {
	return s.d.geom.SectorsPerTrack * s.d.geom.Sides
}

func (s *flexStrategy) pos(t, sec int) int {
	if t == 0 && sec == 0 {
		return NoGroup
	}
	if sec < 1 || sec > s.trackLen() || t >= s.d.geom.Tracks {
		return NoGroup - 1
	}
	return t*s.trackLen() + sec - 1
}

func (s *flexStrategy) ts(pos int) (int, int) {
	if pos == NoGroup {
		return 0, 0
	}
	return pos / s.trackLen(), pos%s.trackLen() + 1
}

func (s *flexStrategy) sirLink(off int) int {
	return s.pos(int(s.sir.Get(off)), int(s.sir.Get(off+1)))
}

func (s *flexStrategy) setSIRLink(off, pos int) {
	t, sec := s.ts(pos)
	s.sir.Set(off, byte(t))
	s.sir.Set(off+1, byte(sec))
}

func (s *flexStrategy) freeCount() int     { return s.sir.GetData16BE(sirFreeCount) }
func (s *flexStrategy) setFreeCount(n int) { s.sir.SetData16BE(sirFreeCount, n) }

func (s *flexStrategy) ParseParamOnDisk() float64 {
	if err := s.sir.Assign(); err != nil {
		return -1
	}
	if int(s.sir.Get(sirMaxTrack)) != s.d.geom.Tracks-1 || int(s.sir.Get(sirMaxSector)) != s.trackLen() {
		return -1
	}
	return 1
}

// walkFree lists the free chain, stopping at the first bad link.
func (s *flexStrategy) walkFree() ([]int, error) {
	var out []int
	guard := chainGuard{limit: s.GroupCount()}
	for p := s.sirLink(sirFirstFree); p != NoGroup; p = s.GetGroupNumber(p) {
		if p < s.trackLen() {
			return out, checkpoint.Errorf(ErrChainOverrun, "free chain enters track 0 at %d", p)
		}
		if err := guard.step(); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *flexStrategy) freeSet() map[int]bool {
	if s.free != nil {
		return s.free
	}
	chain, _ := s.walkFree()
	s.free = make(map[int]bool, len(chain))
	for _, p := range chain {
		s.free[p] = true
	}
	return s.free
}

func (s *flexStrategy) CheckFat() float64 {
	chain, err := s.walkFree()
	if err != nil {
		s.d.log.Debugf("flex: %v", err)
		return -1
	}
	r := 1.0
	if len(chain) != s.freeCount() {
		s.d.log.Errorf("flex: free count %d, chain holds %d", s.freeCount(), len(chain))
		r = 0.9
	}
	if len(chain) > 0 && chain[len(chain)-1] != s.sirLink(sirLastFree) {
		r = 0.9
	}
	return r
}

// Recount rewrites the free count and tail pointer from the chain.
func (s *flexStrategy) Recount() {
	s.free = nil
	chain, _ := s.walkFree()
	s.setFreeCount(len(chain))
	if len(chain) == 0 {
		s.setSIRLink(sirFirstFree, NoGroup)
		s.setSIRLink(sirLastFree, NoGroup)
		return
	}
	s.setSIRLink(sirLastFree, chain[len(chain)-1])
}

func (s *flexStrategy) GroupCount() int    { return s.d.geom.TotalSectors() }
func (s *flexStrategy) BytesPerGroup() int { return s.d.geom.SectorSize }

func (s *flexStrategy) chain(start int) (*GroupList, error) {
	gl := NewGroupList(s.BytesPerGroup())
	guard := chainGuard{limit: s.GroupCount()}
	for p := start; p != NoGroup; {
		if p < 0 {
			return gl, checkpoint.Errorf(ErrDirectoryCorrupt, "link out of range after %d groups", gl.Count())
		}
		if err := guard.step(); err != nil {
			return gl, err
		}
		next := s.GetGroupNumber(p)
		if err := gl.Add(groupItem(s.d, p, next, p, p)); err != nil {
			return gl, checkpoint.Wrap(err, ErrChainOverrun)
		}
		p = next
	}
	gl.Size = gl.Count() * flexPayload
	return gl, nil
}

func (s *flexStrategy) RootGroups() (*GroupList, error) {
	return s.chain(flexDirPos)
}

func (s *flexStrategy) GetGroupNumber(g int) int {
	data, err := s.d.readSector(g)
	if err != nil {
		return NoGroup - 1
	}
	return s.pos(int(data[0]), int(data[1]))
}

func (s *flexStrategy) SetGroupNumber(g, next int) {
	t, sec := s.ts(next)
	s.d.patchSector(g, 0, []byte{byte(t), byte(sec)})
}

func (s *flexStrategy) IsUsedGroupNumber(g int) bool {
	return !s.freeSet()[g]
}

func (s *flexStrategy) GroupStatus(g int) GroupStatus {
	switch {
	case g < s.trackLen():
		return GroupSystem
	case s.freeSet()[g]:
		return GroupFree
	}
	return GroupUsed
}

func (s *flexStrategy) GetEmptyGroupNumber() int {
	return s.sirLink(sirFirstFree)
}

func (s *flexStrategy) GetNextEmptyGroupNumber(g int) int {
	if !s.freeSet()[g] {
		return s.GetEmptyGroupNumber()
	}
	return s.GetGroupNumber(g)
}

func (s *flexStrategy) GetStartSectorFromGroup(g int) int  { return g }
func (s *flexStrategy) GetEndSectorFromGroup(g, n int) int { return g }

func (s *flexStrategy) GetAllGroups(e DirectoryEntry) (*GroupList, error) {
	fe := e.(*flexEntry)
	start := s.pos(int(fe.Data[0x0d]), int(fe.Data[0x0e]))
	if start == NoGroup {
		return NewGroupList(s.BytesPerGroup()), nil
	}
	return s.chain(start)
}

// AllocateUnitGroups takes sectors from the head of the free chain.
func (s *flexStrategy) AllocateUnitGroups(e DirectoryEntry, size int, mode AllocMode) (*GroupList, error) {
	if mode == AllocAppend {
		return nil, checkpoint.From(ErrUnsupported)
	}
	n := s.sectorsFor(size, flexPayload, 1)
	if n > s.freeCount() {
		return nil, &AllocError{}
	}
	gl := NewGroupList(s.BytesPerGroup())
	p := s.GetEmptyGroupNumber()
	for i := 0; i < n; i++ {
		if p < 0 {
			s.Recount()
			return nil, checkpoint.Wrap(checkpoint.From(ErrChainOverrun), &AllocError{Groups: gl.Groups()})
		}
		next := s.GetGroupNumber(p)
		if i == n-1 {
			next = NoGroup
		}
		if err := gl.Add(groupItem(s.d, p, next, p, p)); err != nil {
			return nil, checkpoint.Wrap(err, ErrChainOverrun)
		}
		if i < n-1 {
			p = next
		}
	}
	head := s.GetGroupNumber(p)
	s.SetGroupNumber(p, NoGroup)
	s.setSIRLink(sirFirstFree, head)
	s.setFreeCount(s.freeCount() - n)
	if head == NoGroup {
		s.setSIRLink(sirLastFree, NoGroup)
	}
	s.free = nil
	gl.Size = size
	return gl, nil
}

func (s *flexStrategy) WriteData(e DirectoryEntry, gl *GroupList, data []byte) error {
	for i, it := range gl.Items {
		buf := make([]byte, s.d.geom.SectorSize)
		t, sec := s.ts(it.Next)
		buf[0], buf[1] = byte(t), byte(sec)
		putBE16(buf[2:], i+1)
		copy(buf[flexHeader:], chunk(data, i*flexPayload, flexPayload))
		if err := s.d.writeSector(it.SectorStart, buf); err != nil {
			return err
		}
	}
	return nil
}

func (s *flexStrategy) ReadData(e DirectoryEntry, gl *GroupList) ([]byte, error) {
	var out []byte
	for _, it := range gl.Items {
		data, err := s.d.readSector(it.SectorStart)
		if err != nil {
			return nil, err
		}
		out = append(out, data[flexHeader:]...)
	}
	if gl.Size < len(out) {
		out = out[:gl.Size]
	}
	return out, nil
}

func (s *flexStrategy) CommitEntry(e DirectoryEntry, gl *GroupList, size int) error {
	fe := e.(*flexEntry)
	first, last := NoGroup, NoGroup
	if gl.Count() > 0 {
		first, last = gl.Items[0].Group, gl.Last().Group
	}
	t, sec := s.ts(first)
	fe.Data[0x0d], fe.Data[0x0e] = byte(t), byte(sec)
	t, sec = s.ts(last)
	fe.Data[0x0f], fe.Data[0x10] = byte(t), byte(sec)
	putBE16(fe.Data[0x11:], gl.Count())
	return s.d.Publish(e)
}

// DeleteGroups appends the chain after the current last free sector.
func (s *flexStrategy) DeleteGroups(gl *GroupList) error {
	if gl.Count() == 0 {
		return nil
	}
	for i, it := range gl.Items {
		next := NoGroup
		if i+1 < gl.Count() {
			next = gl.Items[i+1].Group
		}
		s.SetGroupNumber(it.Group, next)
	}
	first, last := gl.Items[0].Group, gl.Last().Group
	if tail := s.sirLink(sirLastFree); tail == NoGroup || s.freeCount() == 0 {
		s.setSIRLink(sirFirstFree, first)
	} else {
		s.SetGroupNumber(tail, first)
	}
	s.setSIRLink(sirLastFree, last)
	s.setFreeCount(s.freeCount() + gl.Count())
	s.free = nil
	return nil
}

func (s *flexStrategy) DeleteGroupNumber(g int) {
	gl := NewGroupList(s.BytesPerGroup())
	gl.Add(groupItem(s.d, g, NoGroup, g, g))
	s.DeleteGroups(gl)
}

// Format links the rest of track 0 into the directory and every other
// sector into the free chain.
func (s *flexStrategy) Format() error {
	total, tl := s.GroupCount(), s.trackLen()
	if err := s.d.fillRange(0, total, 0x00); err != nil {
		return err
	}
	link := func(from, to int) error {
		for p := from; p < to; p++ {
			next := p + 1
			if next == to {
				next = NoGroup
			}
			t, sec := s.ts(next)
			if err := s.d.patchSector(p, 0, []byte{byte(t), byte(sec)}); err != nil {
				return err
			}
		}
		return nil
	}
	if err := link(flexDirPos, tl); err != nil {
		return err
	}
	if err := link(tl, total); err != nil {
		return err
	}
	if err := s.sir.Assign(); err != nil {
		return err
	}
	s.sir.Fill(0)
	for i, c := range []byte("DISKBASIC") {
		s.sir.Set(sirName+i, c)
	}
	s.sir.SetData16BE(sirVolume, 1)
	s.setSIRLink(sirFirstFree, tl)
	s.setSIRLink(sirLastFree, total-1)
	s.setFreeCount(total - tl)
	now := s.d.opts.Now()
	s.sir.Set(sirDate, byte(now.Month()))
	s.sir.Set(sirDate+1, byte(now.Day()))
	s.sir.Set(sirDate+2, byte(now.Year()%100))
	s.sir.Set(sirMaxTrack, byte(s.d.geom.Tracks-1))
	s.sir.Set(sirMaxSector, byte(tl))
	s.free = nil
	return nil
}

var (
	flexName = Field{Off: 0x00, Len: 8}
	flexExt  = Field{Off: 0x08, Len: 3}
)

type flexCodec struct{}

func (c *flexCodec) EntrySize() int { return 24 }
func (c *flexCodec) FirstSlot() int { return flexDirEntries }
func (c *flexCodec) Blank() byte    { return 0x00 }
func (c *flexCodec) Tree() bool     { return false }

func (c *flexCodec) SplitName(name string) (string, string, error) {
	return splitName(name, 8, 3, true)
}

func (c *flexCodec) NewEntry(data []byte) DirectoryEntry {
	e := &flexEntry{}
	e.Data = data
	return e
}

type flexEntry struct {
	entryBase
}

func (e *flexEntry) CheckUsed() bool {
	return e.Data[0] != 0x00 && e.Data[0]&0x80 == 0
}

func (e *flexEntry) Check() (bool, bool) {
	if e.Data[0] == 0x00 {
		return true, true
	}
	if !e.CheckUsed() {
		return true, false
	}
	if !printable(flexName.Raw(e.Data), 0x00) || !printable(flexExt.Raw(e.Data), 0x00) {
		return false, false
	}
	fs := e.d.alloc.(*flexStrategy)
	return fs.pos(int(e.Data[0x0d]), int(e.Data[0x0e])) >= NoGroup, false
}

func (e *flexEntry) NameField() Field { return flexName }
func (e *flexEntry) ExtField() Field  { return flexExt }
func (e *flexEntry) FileName() string { return flexName.Str(e.Data, 0x00) }
func (e *flexEntry) FileExt() string  { return flexExt.Str(e.Data, 0x00) }

func (e *flexEntry) SetFileName(name, ext string) {
	flexName.SetStr(e.Data, name, 0x00)
	flexExt.SetStr(e.Data, ext, 0x00)
}

func (e *flexEntry) FileTypeN(n int) int {
	if n == 1 {
		return int(e.Data[0x13])
	}
	return int(e.Data[0x0b])
}

func (e *flexEntry) SetFileTypeN(n int, v int) {
	if n == 1 {
		e.Data[0x13] = byte(v)
		return
	}
	e.Data[0x0b] = byte(v)
}

// FileSize is the payload capacity of the recorded sectors.
func (e *flexEntry) FileSize() int {
	return be16(e.Data[0x11:]) * flexPayload
}

func (e *flexEntry) SetFileSize(n int) {}

func (e *flexEntry) StartGroup() int {
	return int(e.Data[0x0d])<<8 | int(e.Data[0x0e])
}

func (e *flexEntry) SetStartGroup(g int) {}

func (e *flexEntry) Capabilities() Capability {
	return CapModTime
}

func (e *flexEntry) FileAttr() FileAttr {
	p := e.Data[0x0b]
	a := FileAttr{Flags: AttrBinary, Origin: int(p), Format: FormatFLEX}
	if p&(flexProtectWrite|flexProtectDelete) != 0 {
		a.Flags |= AttrReadOnly
	}
	if p&flexProtectCatalog != 0 {
		a.Flags |= AttrHidden
	}
	if e.Data[0x13] == flexRandom {
		a.Flags |= AttrRandom
	}
	if e.FileExt() == "TXT" {
		a.Flags = a.Flags&^AttrBinary | AttrASCII
	}
	return a
}

func (e *flexEntry) SetFileAttr(a FileAttr) {
	p, _ := a.Native(FormatFLEX)
	p &^= flexProtectWrite | flexProtectDelete | flexProtectCatalog
	if a.Flags.Has(AttrReadOnly) {
		p |= flexProtectWrite | flexProtectDelete
	}
	if a.Flags.Has(AttrHidden) {
		p |= flexProtectCatalog
	}
	e.Data[0x0b] = byte(p)
	e.Data[0x13] = 0
	if a.Flags.Has(AttrRandom) {
		e.Data[0x13] = flexRandom
	}
}

func (e *flexEntry) ModTime() time.Time {
	m, d, y := int(e.Data[0x15]), int(e.Data[0x16]), int(e.Data[0x17])
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}
	}
	if y < 80 {
		y += 2000
	} else {
		y += 1900
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local)
}

func (e *flexEntry) SetModTime(t time.Time) {
	e.Data[0x15] = byte(t.Month())
	e.Data[0x16] = byte(t.Day())
	e.Data[0x17] = byte(t.Year() % 100)
}

func (e *flexEntry) Delete() {
	e.Data[0] |= 0x80
}

func (e *flexEntry) Clear() {
	fill(e.Data, 0)
}
