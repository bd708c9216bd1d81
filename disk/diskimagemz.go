package disk

import (
	"sort"
	"time"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

// mzLayout places the volume sector and the directory of an MZ family
// disk. Groups are single sectors numbered by linear position.
type mzLayout struct {
	format      FormatID
	volumePos   int
	rootStart   int
	rootSectors int
	// stamped formats prefix every data sector with a file serial and a
	// sequence number instead of linking sectors.
	stamped bool
}

var (
	mzBasicLayout = &mzLayout{format: FormatMZ, volumePos: 15, rootStart: 16, rootSectors: 8}
	tfdosLayout   = &mzLayout{format: FormatTFDOS, volumePos: 14, rootStart: 16, rootSectors: 16}
	cdosLayout    = &mzLayout{format: FormatCDOS, volumePos: 15, rootStart: 16, rootSectors: 8, stamped: true}
)

func init() {
	register(&formatSpec{
		id:          FormatMZ,
		name:        "mz",
		description: "Sharp MZ-80B/2000/2500 DISK BASIC",
		geometries:  []Geometry{Geometry2D},
		inverted:    true,
		newStrategy: func(d *Disk) AllocationStrategy { return newMZStrategy(d, mzBasicLayout) },
		newCodec:    func(d *Disk) DirectoryCodec { return &mzCodec{format: FormatMZ} },
	})
	register(&formatSpec{
		id:          FormatTFDOS,
		name:        "tfdos",
		description: "MZ TF-DOS",
		geometries:  []Geometry{Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newMZStrategy(d, tfdosLayout) },
		newCodec:    func(d *Disk) DirectoryCodec { return &mzCodec{format: FormatTFDOS} },
	})
	register(&formatSpec{
		id:          FormatCDOS,
		name:        "cdos",
		description: "MZ C-DOS",
		geometries:  []Geometry{Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newMZStrategy(d, cdosLayout) },
		newCodec:    func(d *Disk) DirectoryCodec { return &mzCodec{format: FormatCDOS} },
	})
}

const (
	mzModeFree = 0x00
	mzModeOBJ  = 0x01
	mzModeBTX  = 0x02
	mzModeBSD  = 0x03
	mzModeBRD  = 0x04
	mzModeRB   = 0x05
	mzModeEnd  = 0x80

	mzAttrProtect = 0x01

	mzLinkPayload  = 254
	mzIndexPointer = 127
	mzBitmapBit    = 32
)

type mzStrategy struct {
	strategyBase
	l   *mzLayout
	vol *FatRegion
}

func newMZStrategy(d *Disk, l *mzLayout) *mzStrategy {
	s := &mzStrategy{l: l}
	s.d = d
	s.self = s
	s.vol = NewFatRegion(d.store, FatParams{Start: l.volumePos, Sectors: 1, Invert: d.invert})
	return s
}

func (s *mzStrategy) usedCount() int     { return s.vol.GetData16LE(2) }
func (s *mzStrategy) setUsedCount(n int) { s.vol.SetData16LE(2, n) }
func (s *mzStrategy) systemEnd() int     { return s.l.rootStart + s.l.rootSectors }

func (s *mzStrategy) ParseParamOnDisk() float64 {
	if err := s.vol.Assign(); err != nil {
		return -1
	}
	if s.vol.Get(0) != 0x01 || s.vol.Get(1) != 0x00 {
		return -1
	}
	return 1
}

func (s *mzStrategy) popcount() int {
	n := 0
	for g := 0; g < s.GroupCount(); g++ {
		if s.IsUsedGroupNumber(g) {
			n++
		}
	}
	return n
}

func (s *mzStrategy) CheckFat() float64 {
	for g := 0; g < s.systemEnd(); g++ {
		if !s.IsUsedGroupNumber(g) {
			return -1
		}
	}
	if got := s.popcount(); got != s.usedCount() {
		s.d.log.Errorf("%s: used counter %d, bitmap holds %d", s.l.format, s.usedCount(), got)
		return 0.9
	}
	return 1
}

// Recount rewrites the used counter from the bitmap.
func (s *mzStrategy) Recount() {
	s.setUsedCount(s.popcount())
}

func (s *mzStrategy) GroupCount() int {
	return s.d.geom.TotalSectors()
}

func (s *mzStrategy) BytesPerGroup() int {
	return s.d.geom.SectorSize
}

func (s *mzStrategy) RootGroups() (*GroupList, error) {
	return fixedRegion(s.d, s.l.rootStart, s.l.rootSectors), nil
}

func (s *mzStrategy) IsUsedGroupNumber(g int) bool {
	return s.vol.BitTest(mzBitmapBit + g)
}

func (s *mzStrategy) mark(g int, on bool) {
	if g < 0 || g >= s.GroupCount() || s.IsUsedGroupNumber(g) == on {
		return
	}
	s.vol.Bit(mzBitmapBit+g, on)
	if on {
		s.setUsedCount(s.usedCount() + 1)
	} else {
		s.setUsedCount(s.usedCount() - 1)
	}
}

// GetGroupNumber is the link word of a sector, or its sequence stamp on
// stamped formats.
func (s *mzStrategy) GetGroupNumber(g int) int {
	data, err := s.d.readSector(g)
	if err != nil {
		return NoGroup
	}
	if s.l.stamped {
		return int(data[1])
	}
	return le16(data[mzLinkPayload:])
}

func (s *mzStrategy) SetGroupNumber(g, v int) {
	s.mark(g, v != 0)
}

func (s *mzStrategy) GroupStatus(g int) GroupStatus {
	switch {
	case g < s.systemEnd():
		return GroupSystem
	case s.IsUsedGroupNumber(g):
		return GroupUsed
	}
	return GroupFree
}

func (s *mzStrategy) GetEmptyGroupNumber() int {
	return s.GetNextEmptyGroupNumber(s.systemEnd() - 1)
}

func (s *mzStrategy) GetNextEmptyGroupNumber(g int) int {
	for c := g + 1; c < s.GroupCount(); c++ {
		if c >= s.systemEnd() && !s.IsUsedGroupNumber(c) {
			return c
		}
	}
	return NoGroup
}

func (s *mzStrategy) GetStartSectorFromGroup(g int) int  { return g }
func (s *mzStrategy) GetEndSectorFromGroup(g, n int) int { return g }

func mzMode(e DirectoryEntry) int {
	return e.FileTypeN(0)
}

func (s *mzStrategy) linked(e DirectoryEntry) bool {
	return !s.l.stamped && mzMode(e) == mzModeBSD
}

func (s *mzStrategy) indexed(e DirectoryEntry) bool {
	return !s.l.stamped && mzMode(e) == mzModeBRD
}

func (s *mzStrategy) payload(e DirectoryEntry) int {
	if s.l.stamped || s.linked(e) {
		return mzLinkPayload
	}
	return s.d.geom.SectorSize
}

func (s *mzStrategy) add(gl *GroupList, g int, index bool) error {
	if g < s.systemEnd() || g >= s.GroupCount() {
		return checkpoint.Errorf(ErrDirectoryCorrupt, "sector %d outside the data area", g)
	}
	item := groupItem(s.d, g, NoGroup, g, g)
	if index {
		item.Index = true
	}
	if n := gl.Last(); n != nil {
		n.Next = g
	}
	if err := gl.Add(item); err != nil {
		return checkpoint.Wrap(err, ErrChainOverrun)
	}
	return nil
}

func (s *mzStrategy) GetAllGroups(e DirectoryEntry) (*GroupList, error) {
	gl := NewGroupList(s.BytesPerGroup())
	gl.Size = e.FileSize()
	sectors := s.sectorsFor(e.FileSize(), s.payload(e), 1)
	guard := chainGuard{limit: s.GroupCount()}

	switch {
	case s.l.stamped:
		return gl, s.stampedChain(e, gl, sectors)
	case s.linked(e):
		for g := e.StartGroup(); g != 0; {
			if err := guard.step(); err != nil {
				return gl, err
			}
			if err := s.add(gl, g, false); err != nil {
				return gl, err
			}
			g = s.GetGroupNumber(g)
		}
	case s.indexed(e):
		for idx := e.StartGroup(); idx != 0; {
			if err := guard.step(); err != nil {
				return gl, err
			}
			if err := s.add(gl, idx, true); err != nil {
				return gl, err
			}
			data, err := s.d.readSector(idx)
			if err != nil {
				return gl, err
			}
			for i := 0; i < mzIndexPointer; i++ {
				if p := le16(data[i*2:]); p != 0 {
					if err := s.add(gl, p, false); err != nil {
						return gl, err
					}
				}
			}
			idx = le16(data[mzLinkPayload:])
		}
	default:
		for i := 0; i < sectors; i++ {
			if err := s.add(gl, e.StartGroup()+i, false); err != nil {
				return gl, err
			}
		}
	}
	return gl, nil
}

// stampedChain finds the sectors carrying the entry's serial in sequence
// order, starting from the entry's first sector.
func (s *mzStrategy) stampedChain(e DirectoryEntry, gl *GroupList, sectors int) error {
	serial := byte(mzSerial(e))
	first, err := s.d.readSector(e.StartGroup())
	if err != nil {
		return err
	}
	if first[0] != serial || first[1] != 1 {
		return checkpoint.Errorf(ErrDirectoryCorrupt, "%s: first sector stamp %d/%d", FullName(e), first[0], first[1])
	}
	bySeq := map[int]int{1: e.StartGroup()}
	for g := s.systemEnd(); g < s.GroupCount() && len(bySeq) < sectors; g++ {
		if g == e.StartGroup() || !s.IsUsedGroupNumber(g) {
			continue
		}
		data, err := s.d.readSector(g)
		if err != nil {
			continue
		}
		if data[0] == serial && data[1] > 1 {
			bySeq[int(data[1])] = g
		}
	}
	seqs := make([]int, 0, len(bySeq))
	for q := range bySeq {
		seqs = append(seqs, q)
	}
	sort.Ints(seqs)
	for i, q := range seqs {
		if q != i+1 {
			return checkpoint.Errorf(ErrDirectoryCorrupt, "%s: sequence %d missing", FullName(e), i+1)
		}
		if err := s.add(gl, bySeq[q], false); err != nil {
			return err
		}
	}
	if len(seqs) < sectors {
		return checkpoint.Errorf(ErrDirectoryCorrupt, "%s: %d of %d sectors found", FullName(e), len(seqs), sectors)
	}
	return nil
}

func (s *mzStrategy) take(from int, taken *[]int) bool {
	g := s.GetNextEmptyGroupNumber(from)
	if g == NoGroup {
		return false
	}
	s.mark(g, true)
	*taken = append(*taken, g)
	return true
}

func (s *mzStrategy) rollback(taken []int) error {
	for _, g := range taken {
		s.mark(g, false)
	}
	return &AllocError{Partial: len(taken) > 0, Groups: taken}
}

func (s *mzStrategy) AllocateUnitGroups(e DirectoryEntry, size int, mode AllocMode) (*GroupList, error) {
	if mode == AllocAppend {
		return nil, checkpoint.From(ErrUnsupported)
	}
	if s.l.stamped && size > 255*mzLinkPayload {
		return nil, checkpoint.Errorf(ErrNoFreeSpace, "%d bytes exceed the stamp range", size)
	}
	sectors := s.sectorsFor(size, s.payload(e), 1)
	gl := NewGroupList(s.BytesPerGroup())
	gl.Size = size
	var taken []int

	switch {
	case s.indexed(e):
		from := s.systemEnd() - 1
		for i := 0; i < sectors; i++ {
			if i%mzIndexPointer == 0 {
				if !s.take(from, &taken) {
					return nil, s.rollback(taken)
				}
				from = taken[len(taken)-1]
				s.add(gl, from, true)
			}
			if !s.take(from, &taken) {
				return nil, s.rollback(taken)
			}
			from = taken[len(taken)-1]
			s.add(gl, from, false)
		}

	case s.l.stamped || s.linked(e):
		from := s.systemEnd() - 1
		for i := 0; i < sectors; i++ {
			if !s.take(from, &taken) {
				return nil, s.rollback(taken)
			}
			from = taken[len(taken)-1]
			s.add(gl, from, false)
		}

	default:
		start := s.findRun(sectors)
		if start == NoGroup {
			return nil, &AllocError{}
		}
		for g := start; g < start+sectors; g++ {
			s.mark(g, true)
			s.add(gl, g, false)
		}
	}

	if s.l.stamped {
		e.base().Data[0x13] = byte(e.Location().Index + 1)
	}
	return gl, nil
}

// findRun returns the first sector of n contiguous free sectors.
func (s *mzStrategy) findRun(n int) int {
	run := 0
	for g := s.systemEnd(); g < s.GroupCount(); g++ {
		if s.IsUsedGroupNumber(g) {
			run = 0
			continue
		}
		run++
		if run == n {
			return g - n + 1
		}
	}
	return NoGroup
}

func (s *mzStrategy) WriteData(e DirectoryEntry, gl *GroupList, data []byte) error {
	ss := s.d.geom.SectorSize
	switch {
	case s.l.stamped:
		serial := byte(mzSerial(e))
		for i, it := range gl.Items {
			buf := make([]byte, ss)
			buf[0], buf[1] = serial, byte(i+1)
			copy(buf[2:], chunk(data, i*mzLinkPayload, mzLinkPayload))
			if err := s.d.writeSector(it.SectorStart, buf); err != nil {
				return err
			}
		}
		return nil

	case s.linked(e):
		for i, it := range gl.Items {
			buf := make([]byte, ss)
			copy(buf, chunk(data, i*mzLinkPayload, mzLinkPayload))
			if it.Next != NoGroup {
				putLE16(buf[mzLinkPayload:], it.Next)
			}
			if err := s.d.writeSector(it.SectorStart, buf); err != nil {
				return err
			}
		}
		return nil

	case s.indexed(e):
		var index []byte
		indexPos, slot, rec := NoGroup, 0, 0
		flush := func(next int) error {
			if indexPos == NoGroup {
				return nil
			}
			if next != NoGroup {
				putLE16(index[mzLinkPayload:], next)
			}
			return s.d.writeSector(indexPos, index)
		}
		for _, it := range gl.Items {
			if it.Index {
				if err := flush(it.Group); err != nil {
					return err
				}
				index, indexPos, slot = make([]byte, ss), it.Group, 0
				continue
			}
			putLE16(index[slot*2:], it.Group)
			slot++
			if err := s.d.writeSector(it.SectorStart, chunk(data, rec*ss, ss)); err != nil {
				return err
			}
			rec++
		}
		return flush(NoGroup)
	}
	return s.d.writePositions(gl.Positions(), data)
}

func (s *mzStrategy) ReadData(e DirectoryEntry, gl *GroupList) ([]byte, error) {
	var out []byte
	for _, it := range gl.Items {
		if it.Index {
			continue
		}
		data, err := s.d.readSector(it.SectorStart)
		if err != nil {
			return nil, err
		}
		switch {
		case s.l.stamped:
			data = data[2:]
		case s.linked(e):
			data = data[:mzLinkPayload]
		}
		out = append(out, data...)
	}
	if gl.Size < len(out) {
		out = out[:gl.Size]
	}
	return out, nil
}

func (s *mzStrategy) DeleteGroupNumber(g int) {
	if g >= s.systemEnd() {
		s.mark(g, false)
	}
}

func (s *mzStrategy) Format() error {
	if err := s.d.fillRange(0, s.d.geom.TotalSectors(), 0x00); err != nil {
		return err
	}
	if err := s.vol.Assign(); err != nil {
		return err
	}
	s.vol.Set(0, 0x01)
	for g := 0; g < s.systemEnd(); g++ {
		s.mark(g, true)
	}
	return nil
}

func chunk(data []byte, off, n int) []byte {
	if off >= len(data) {
		return nil
	}
	end := off + n
	if end > len(data) {
		end = len(data)
	}
	return data[off:end]
}

var (
	mzName  = Field{Off: 0x01, Len: 17}
	mzAttr  = Field{Off: 0x12, Len: 1}
	mzSize  = Field{Off: 0x14, Len: 2}
	mzLoad  = Field{Off: 0x16, Len: 2}
	mzExec  = Field{Off: 0x18, Len: 2}
	mzDate  = Field{Off: 0x1a, Len: 4}
	mzStart = Field{Off: 0x1e, Len: 2}
)

func mzSerial(e DirectoryEntry) int {
	return int(e.base().Data[0x13])
}

type mzCodec struct {
	format FormatID
}

func (c *mzCodec) EntrySize() int { return 32 }
func (c *mzCodec) Blank() byte    { return 0x00 }
func (c *mzCodec) Tree() bool     { return false }

func (c *mzCodec) SplitName(name string) (string, string, error) {
	return splitName(name, 16, 0, false)
}

func (c *mzCodec) NewEntry(data []byte) DirectoryEntry {
	e := &mzEntry{c: c}
	e.Data = data
	return e
}

type mzEntry struct {
	entryBase
	c *mzCodec
}

func (e *mzEntry) CheckUsed() bool {
	return e.Data[0] != mzModeFree && e.Data[0] != mzModeEnd
}

func (e *mzEntry) Check() (bool, bool) {
	if e.Data[0] == mzModeEnd {
		return true, true
	}
	if !e.CheckUsed() {
		return true, false
	}
	if e.Data[0] > mzModeRB || !printable(mzName.Raw(e.Data), 0x0d) {
		return false, false
	}
	return e.StartGroup() < e.d.alloc.GroupCount(), false
}

func (e *mzEntry) NameField() Field { return mzName }
func (e *mzEntry) ExtField() Field  { return Field{} }
func (e *mzEntry) FileName() string { return mzName.Str(e.Data, 0x0d) }
func (e *mzEntry) FileExt() string  { return "" }

func (e *mzEntry) SetFileName(name, ext string) {
	mzName.SetStr(e.Data, name, 0x0d)
}

func (e *mzEntry) StartGroup() int      { return mzStart.Uint(e.Data) }
func (e *mzEntry) SetStartGroup(g int)  { mzStart.SetUint(e.Data, g) }
func (e *mzEntry) FileSize() int        { return mzSize.Uint(e.Data) }
func (e *mzEntry) SetFileSize(n int)    { mzSize.SetUint(e.Data, n) }
func (e *mzEntry) LoadAddress() int     { return mzLoad.Uint(e.Data) }
func (e *mzEntry) SetLoadAddress(a int) { mzLoad.SetUint(e.Data, a) }
func (e *mzEntry) ExecAddress() int     { return mzExec.Uint(e.Data) }
func (e *mzEntry) SetExecAddress(a int) { mzExec.SetUint(e.Data, a) }

func (e *mzEntry) FileTypeN(n int) int       { return int(e.Data[0]) }
func (e *mzEntry) SetFileTypeN(n int, v int) { e.Data[0] = byte(v) }

func (e *mzEntry) Capabilities() Capability {
	return CapModTime | CapAddress | CapExplicitSize
}

func (e *mzEntry) FileAttr() FileAttr {
	m := e.Data[0]
	a := FileAttr{Origin: int(m), Format: e.c.format}
	switch m {
	case mzModeOBJ, mzModeRB:
		a.Flags |= AttrMachine | AttrBinary
	case mzModeBTX:
		a.Flags |= AttrBASIC | AttrBinary
	case mzModeBSD:
		a.Flags |= AttrData | AttrASCII
	case mzModeBRD:
		a.Flags |= AttrData | AttrRandom
	}
	if mzAttr.Byte(e.Data)&mzAttrProtect != 0 {
		a.Flags |= AttrReadOnly
	}
	return a
}

func (e *mzEntry) SetFileAttr(a FileAttr) {
	m, ok := a.Native(e.c.format)
	if !ok {
		switch {
		case a.Flags.Has(AttrBASIC):
			m = mzModeBTX
		case a.Flags.Has(AttrRandom):
			m = mzModeBRD
		case a.Flags.Has(AttrData), a.Flags.Has(AttrASCII):
			m = mzModeBSD
		default:
			m = mzModeOBJ
		}
	}
	e.Data[0] = byte(m)
	var attr byte
	if a.Flags.Has(AttrReadOnly) {
		attr |= mzAttrProtect
	}
	mzAttr.SetByte(e.Data, attr)
}

// The timestamp packs a FAT date in the high word and a FAT time in the
// low word.
func (e *mzEntry) ModTime() time.Time {
	v := mzDate.Uint(e.Data)
	return DosDateTime(uint16(v>>16), uint16(v))
}

func (e *mzEntry) SetModTime(t time.Time) {
	mzDate.SetUint(e.Data, int(PackDosDate(t))<<16|int(PackDosTime(t)))
}

func (e *mzEntry) Delete() {
	e.Data[0] = mzModeFree
}

func (e *mzEntry) Clear() {
	fill(e.Data, 0)
}
