package disk

import (
	"strings"
	"time"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

func init() {
	register(&formatSpec{
		id:          FormatOS9,
		name:        "os9",
		description: "OS-9 RBF",
		geometries:  []Geometry{Geometry2D, Geometry1D},
		newStrategy: func(d *Disk) AllocationStrategy { return newOS9Strategy(d) },
		newCodec:    func(d *Disk) DirectoryCodec { return &os9Codec{} },
	})
}

// LSN0 identification sector.
const (
	ddTot = 0x00
	ddTks = 0x03
	ddMap = 0x04
	ddBit = 0x06
	ddDir = 0x08
	ddOwn = 0x0b
	ddAtt = 0x0d
	ddDsk = 0x0e
	ddFmt = 0x10
	ddSpt = 0x11
	ddDat = 0x1a
	ddNam = 0x1f
)

// File descriptor sector.
const (
	fdAtt = 0x00
	fdOwn = 0x01
	fdDat = 0x03
	fdLnk = 0x08
	fdSiz = 0x09
	fdDcr = 0x0d
	fdSeg = 0x10

	fdSegments = 48
	fdSegSize  = 5
)

const (
	os9AttrDir     = 0x80
	os9AttrShare   = 0x40
	os9AttrPExec   = 0x20
	os9AttrPWrite  = 0x10
	os9AttrPRead   = 0x08
	os9AttrExec    = 0x04
	os9AttrWrite   = 0x02
	os9AttrRead    = 0x01
	os9AttrDefault = os9AttrPRead | os9AttrPWrite | os9AttrWrite | os9AttrRead
	os9AttrDirAll  = 0xbf

	os9DirSlot     = 32
	os9RootSectors = 8
)

// segment is one contiguous run of a file descriptor's allocation.
type segment struct {
	lsn, count int
}

func readSegments(fd []byte) []segment {
	var out []segment
	for i := 0; i < fdSegments; i++ {
		off := fdSeg + i*fdSegSize
		if off+fdSegSize > len(fd) {
			break
		}
		s := segment{lsn: be24(fd[off:]), count: be16(fd[off+3:])}
		if s.count == 0 {
			break
		}
		out = append(out, s)
	}
	return out
}

func writeSegments(fd []byte, segs []segment) {
	for i := 0; i < fdSegments; i++ {
		off := fdSeg + i*fdSegSize
		if off+fdSegSize > len(fd) {
			return
		}
		var s segment
		if i < len(segs) {
			s = segs[i]
		}
		putBE24(fd[off:], s.lsn)
		putBE16(fd[off+3:], s.count)
	}
}

// addSector extends the last segment when lsn follows it, else starts a new
// one. It reports false when the descriptor is full.
func addSector(segs []segment, lsn int) ([]segment, bool) {
	if n := len(segs); n > 0 && segs[n-1].lsn+segs[n-1].count == lsn && segs[n-1].count < 0xffff {
		segs[n-1].count++
		return segs, true
	}
	if len(segs) == fdSegments {
		return segs, false
	}
	return append(segs, segment{lsn: lsn, count: 1}), true
}

func os9Date(b []byte) time.Time {
	if b[1] < 1 || b[1] > 12 || b[2] < 1 || b[2] > 31 {
		return time.Time{}
	}
	return time.Date(1900+int(b[0]), time.Month(b[1]), int(b[2]), int(b[3]), int(b[4]), 0, 0, time.Local)
}

func putOS9Date(b []byte, t time.Time) {
	b[0] = byte(t.Year() - 1900)
	b[1] = byte(t.Month())
	b[2] = byte(t.Day())
	if len(b) > 3 {
		b[3] = byte(t.Hour())
		b[4] = byte(t.Minute())
	}
}

// os9Strategy allocates single sector clusters from the bitmap that
// follows LSN0. Files are described by FD sectors carrying a segment list.
type os9Strategy struct {
	strategyBase
	lsn0 *FatRegion
	bm   *FatRegion
}

func newOS9Strategy(d *Disk) *os9Strategy {
	s := &os9Strategy{}
	s.d = d
	s.self = s
	s.lsn0 = NewFatRegion(d.store, FatParams{Start: 0, Sectors: 1})
	s.bm = NewFatRegion(d.store, FatParams{Start: 1, Sectors: s.mapSectors(), MSBFirst: true})
	return s
}

func (s *os9Strategy) mapBytes() int {
	return (s.d.geom.TotalSectors() + 7) / 8
}

func (s *os9Strategy) mapSectors() int {
	return (s.mapBytes() + s.d.geom.SectorSize - 1) / s.d.geom.SectorSize
}

func (s *os9Strategy) rootFD() int {
	return int(s.lsn0.Get(ddDir))<<16 | int(s.lsn0.Get(ddDir+1))<<8 | int(s.lsn0.Get(ddDir+2))
}

func (s *os9Strategy) ParseParamOnDisk() float64 {
	if err := s.lsn0.Assign(); err != nil {
		return -1
	}
	if err := s.bm.Assign(); err != nil {
		return -1
	}
	total := int(s.lsn0.Get(ddTot))<<16 | s.lsn0.GetData16BE(ddTot+1)
	if total != s.d.geom.TotalSectors() || s.lsn0.GetData16BE(ddBit) != 1 {
		return -1
	}
	if s.lsn0.GetData16BE(ddMap) != s.mapBytes() {
		return -1
	}
	if fd := s.rootFD(); fd <= s.mapSectors() || fd >= total {
		return -1
	}
	r := 1.0
	if int(s.lsn0.Get(ddTks)) != s.d.geom.SectorsPerTrack {
		r = 0.8
	}
	return r
}

func (s *os9Strategy) CheckFat() float64 {
	for g := 0; g <= s.mapSectors(); g++ {
		if !s.IsUsedGroupNumber(g) {
			return -1
		}
	}
	if !s.IsUsedGroupNumber(s.rootFD()) {
		return -1
	}
	return 1
}

func (s *os9Strategy) GroupCount() int    { return s.d.geom.TotalSectors() }
func (s *os9Strategy) BytesPerGroup() int { return s.d.geom.SectorSize }

func (s *os9Strategy) readFD(lsn int) ([]byte, error) {
	if lsn <= s.mapSectors() || lsn >= s.GroupCount() {
		return nil, checkpoint.Errorf(ErrDirectoryCorrupt, "descriptor at %d", lsn)
	}
	return s.d.readSector(lsn)
}

func (s *os9Strategy) segmentGroups(fd []byte) (*GroupList, error) {
	gl := NewGroupList(s.BytesPerGroup())
	gl.Size = be32(fd[fdSiz:])
	for _, seg := range readSegments(fd) {
		for l := seg.lsn; l < seg.lsn+seg.count; l++ {
			if l >= s.GroupCount() {
				return gl, checkpoint.Errorf(ErrDirectoryCorrupt, "segment runs past the disk at %d", l)
			}
			if n := gl.Last(); n != nil {
				n.Next = l
			}
			if err := gl.Add(groupItem(s.d, l, NoGroup, l, l)); err != nil {
				return gl, checkpoint.Wrap(err, ErrChainOverrun)
			}
		}
	}
	return gl, nil
}

func (s *os9Strategy) RootGroups() (*GroupList, error) {
	fd, err := s.readFD(s.rootFD())
	if err != nil {
		return nil, err
	}
	return s.segmentGroups(fd)
}

// DirectorySlots limits a directory to the records its size covers.
func (s *os9Strategy) DirectorySlots(n *DirNode) int {
	var fd []byte
	if n.Entry == nil {
		fd, _ = s.readFD(s.rootFD())
	} else if e, ok := n.Entry.(*os9Entry); ok {
		fd = e.aux
	}
	if fd == nil {
		return 0
	}
	return be32(fd[fdSiz:]) / os9DirSlot
}

func (s *os9Strategy) GetGroupNumber(g int) int {
	if s.IsUsedGroupNumber(g) {
		return 1
	}
	return 0
}

func (s *os9Strategy) SetGroupNumber(g, v int) {
	s.bm.Bit(g, v != 0)
}

func (s *os9Strategy) IsUsedGroupNumber(g int) bool {
	return s.bm.BitTest(g)
}

func (s *os9Strategy) GroupStatus(g int) GroupStatus {
	switch {
	case g <= s.mapSectors() || g == s.rootFD():
		return GroupSystem
	case s.IsUsedGroupNumber(g):
		return GroupUsed
	}
	return GroupFree
}

func (s *os9Strategy) GetEmptyGroupNumber() int {
	return s.GetNextEmptyGroupNumber(s.mapSectors())
}

func (s *os9Strategy) GetNextEmptyGroupNumber(g int) int {
	for c := g + 1; c < s.GroupCount(); c++ {
		if !s.IsUsedGroupNumber(c) {
			return c
		}
	}
	return NoGroup
}

func (s *os9Strategy) GetStartSectorFromGroup(g int) int  { return g }
func (s *os9Strategy) GetEndSectorFromGroup(g, n int) int { return g }

func (s *os9Strategy) GetAllGroups(e DirectoryEntry) (*GroupList, error) {
	oe := e.(*os9Entry)
	if oe.aux == nil {
		oe.load()
	}
	if oe.aux == nil {
		return nil, checkpoint.Errorf(ErrDirectoryCorrupt, "%s: no descriptor", FullName(e))
	}
	return s.segmentGroups(oe.aux)
}

// take claims count free sectors, first fit, onto segs.
func (s *os9Strategy) take(segs []segment, count int, taken *[]int) ([]segment, error) {
	from := s.mapSectors()
	for i := 0; i < count; i++ {
		g := s.GetNextEmptyGroupNumber(from)
		if g == NoGroup {
			return segs, &AllocError{Partial: len(*taken) > 0, Groups: *taken}
		}
		var ok bool
		if segs, ok = addSector(segs, g); !ok {
			return segs, checkpoint.Errorf(&AllocError{Partial: true, Groups: *taken}, "descriptor has no free segment")
		}
		s.bm.Bit(g, true)
		*taken = append(*taken, g)
		from = g
	}
	return segs, nil
}

func (s *os9Strategy) release(taken []int) {
	for _, g := range taken {
		s.bm.Bit(g, false)
	}
}

// AllocateUnitGroups claims a descriptor sector and the data sectors. The
// descriptor is kept with the entry until it is committed.
func (s *os9Strategy) AllocateUnitGroups(e DirectoryEntry, size int, mode AllocMode) (*GroupList, error) {
	oe := e.(*os9Entry)
	if oe.aux == nil {
		oe.aux = make([]byte, s.d.geom.SectorSize)
	}
	var taken []int
	var segs []segment
	if mode == AllocAppend {
		segs = readSegments(oe.aux)
	} else {
		fd := s.GetEmptyGroupNumber()
		if fd == NoGroup {
			return nil, &AllocError{}
		}
		s.bm.Bit(fd, true)
		taken = append(taken, fd)
		oe.auxPos = fd
		putBE24(oe.Data[0x1d:], fd)
	}
	before := len(taken)
	segs, err := s.take(segs, (size+s.BytesPerGroup()-1)/s.BytesPerGroup(), &taken)
	if err != nil {
		s.release(taken)
		return nil, err
	}
	writeSegments(oe.aux, segs)

	gl := NewGroupList(s.BytesPerGroup())
	gl.Size = size
	for _, g := range taken[before:] {
		if n := gl.Last(); n != nil {
			n.Next = g
		}
		gl.Add(groupItem(s.d, g, NoGroup, g, g))
	}
	return gl, nil
}

func (s *os9Strategy) CommitEntry(e DirectoryEntry, gl *GroupList, size int) error {
	oe := e.(*os9Entry)
	oe.aux[fdLnk] = 1
	if oe.aux[fdDcr+1] == 0 {
		putOS9Date(oe.aux[fdDcr:fdDcr+3], s.d.opts.Now())
	}
	putBE32(oe.aux[fdSiz:], size)
	return s.d.Publish(e)
}

func (s *os9Strategy) DeleteGroupNumber(g int) {
	if g > s.mapSectors() && g != s.rootFD() {
		s.bm.Bit(g, false)
	}
}

func (s *os9Strategy) writeDots(lsn, parent, self int) error {
	buf := make([]byte, s.d.geom.SectorSize)
	copy(buf, []byte{'.', '.' | 0x80})
	putBE24(buf[0x1d:], parent)
	buf[os9DirSlot] = '.' | 0x80
	putBE24(buf[os9DirSlot+0x1d:], self)
	return s.d.writeSector(lsn, buf)
}

func (s *os9Strategy) parentFD(n *DirNode) int {
	if n.Entry == nil {
		return s.rootFD()
	}
	return n.Entry.ExtraGroup()
}

func (s *os9Strategy) MakeDirectory(parent *DirNode, e DirectoryEntry) error {
	oe := e.(*os9Entry)
	gl, err := s.AllocateUnitGroups(e, s.BytesPerGroup(), AllocNew)
	if err != nil {
		return err
	}
	oe.aux[fdAtt] = os9AttrDirAll
	if err := s.writeDots(gl.Items[0].Group, s.parentFD(parent), oe.auxPos); err != nil {
		s.DeleteGroups(gl)
		s.DeleteGroupNumber(oe.auxPos)
		return err
	}
	return s.CommitEntry(e, gl, 2*os9DirSlot)
}

// GrowDirectory extends the size of n over its allocated sectors, adding a
// sector when none is spare.
func (s *os9Strategy) GrowDirectory(n *DirNode) error {
	fdPos := s.parentFD(n)
	fd, err := s.readFD(fdPos)
	if err != nil {
		return err
	}
	size := be32(fd[fdSiz:])
	capacity := n.Groups.Count() * s.BytesPerGroup()
	if size+os9DirSlot > capacity {
		var taken []int
		segs, err := s.take(readSegments(fd), 1, &taken)
		if err != nil {
			s.release(taken)
			return err
		}
		writeSegments(fd, segs)
		if err := s.d.fillSector(taken[0], 0x00); err != nil {
			return err
		}
		capacity += s.BytesPerGroup()
	}
	putBE32(fd[fdSiz:], capacity)
	if err := s.d.writeSector(fdPos, fd); err != nil {
		return err
	}
	if e, ok := n.Entry.(*os9Entry); ok {
		e.aux = fd
	}
	return nil
}

func (s *os9Strategy) Format() error {
	total := s.GroupCount()
	if err := s.d.fillRange(0, total, 0x00); err != nil {
		return err
	}
	if err := s.lsn0.Assign(); err != nil {
		return err
	}
	if err := s.bm.Assign(); err != nil {
		return err
	}
	root := 1 + s.mapSectors()
	s.lsn0.Set(ddTot, byte(total>>16))
	s.lsn0.SetData16BE(ddTot+1, total)
	s.lsn0.Set(ddTks, byte(s.d.geom.SectorsPerTrack))
	s.lsn0.SetData16BE(ddMap, s.mapBytes())
	s.lsn0.SetData16BE(ddBit, 1)
	s.lsn0.Set(ddDir, byte(root>>16))
	s.lsn0.SetData16BE(ddDir+1, root)
	s.lsn0.Set(ddAtt, 0xff)
	s.lsn0.SetData16BE(ddDsk, 0x0901)
	fmtByte := byte(0x02)
	if s.d.geom.Sides == 2 {
		fmtByte |= 0x01
	}
	s.lsn0.Set(ddFmt, fmtByte)
	s.lsn0.SetData16BE(ddSpt, s.d.geom.SectorsPerTrack)
	now := s.d.opts.Now()
	date := make([]byte, 5)
	putOS9Date(date, now)
	for i, b := range date {
		s.lsn0.Set(ddDat+i, b)
	}
	name := []byte("DISKBASIC")
	name[len(name)-1] |= 0x80
	for i, b := range name {
		s.lsn0.Set(ddNam+i, b)
	}

	for g := 0; g < root+1+os9RootSectors; g++ {
		s.bm.Bit(g, true)
	}
	for g := total; g < s.mapBytes()*8; g++ {
		s.bm.Bit(g, true)
	}

	fd := make([]byte, s.d.geom.SectorSize)
	fd[fdAtt] = os9AttrDirAll
	fd[fdLnk] = 1
	putOS9Date(fd[fdDat:fdDat+5], now)
	putOS9Date(fd[fdDcr:fdDcr+3], now)
	putBE32(fd[fdSiz:], 2*os9DirSlot)
	writeSegments(fd, []segment{{lsn: root + 1, count: os9RootSectors}})
	if err := s.d.writeSector(root, fd); err != nil {
		return err
	}
	return s.writeDots(root+1, root, root)
}

type os9Codec struct{}

func (c *os9Codec) EntrySize() int { return os9DirSlot }
func (c *os9Codec) Blank() byte    { return 0x00 }
func (c *os9Codec) Tree() bool     { return true }

func (c *os9Codec) SplitName(name string) (string, string, error) {
	n, _, err := splitName(name, 29, 0, false)
	if err != nil {
		return "", "", err
	}
	for _, r := range n {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || strings.ContainsRune("._$", r)) {
			return "", "", ErrInvalidName
		}
	}
	return n, "", nil
}

func (c *os9Codec) NewEntry(data []byte) DirectoryEntry {
	e := &os9Entry{}
	e.Data = data
	return e
}

var os9Name = Field{Off: 0x00, Len: 29}

type os9Entry struct {
	entryBase
	loaded bool
}

func (e *os9Entry) fdLSN() int {
	return be24(e.Data[0x1d:])
}

func (e *os9Entry) load() {
	e.loaded = true
	e.aux = nil
	fs, ok := e.d.alloc.(*os9Strategy)
	if !ok {
		return
	}
	fd, err := fs.readFD(e.fdLSN())
	if err != nil {
		return
	}
	e.aux, e.auxPos = fd, e.fdLSN()
}

func (e *os9Entry) CheckUsed() bool {
	return e.Data[0] != 0x00
}

func (e *os9Entry) Check() (bool, bool) {
	if !e.CheckUsed() {
		return true, false
	}
	end := -1
	for i, b := range e.Data[:os9Name.Len] {
		if c := b & 0x7f; c < 0x21 || c > 0x7e {
			return false, false
		}
		if b&0x80 != 0 {
			end = i
			break
		}
	}
	if end < 0 || e.fdLSN() >= e.d.alloc.GroupCount() {
		return false, false
	}
	if e.loaded && e.aux == nil {
		return false, false
	}
	return true, false
}

func (e *os9Entry) NameField() Field { return os9Name }
func (e *os9Entry) ExtField() Field  { return Field{} }
func (e *os9Entry) FileExt() string  { return "" }

func (e *os9Entry) FileName() string {
	var sb strings.Builder
	for _, b := range e.Data[:os9Name.Len] {
		if b == 0 {
			break
		}
		sb.WriteByte(b & 0x7f)
		if b&0x80 != 0 {
			break
		}
	}
	return sb.String()
}

func (e *os9Entry) SetFileName(name, ext string) {
	fill(e.Data[:os9Name.Len], 0)
	n := copy(e.Data[:os9Name.Len], name)
	if n > 0 {
		e.Data[n-1] |= 0x80
	}
}

func (e *os9Entry) fd() []byte {
	if e.aux == nil {
		e.aux = make([]byte, e.d.geom.SectorSize)
	}
	return e.aux
}

func (e *os9Entry) FileTypeN(n int) int       { return int(e.fd()[fdAtt]) }
func (e *os9Entry) SetFileTypeN(n int, v int) { e.fd()[fdAtt] = byte(v) }

func (e *os9Entry) FileSize() int       { return be32(e.fd()[fdSiz:]) }
func (e *os9Entry) SetFileSize(n int)   { putBE32(e.fd()[fdSiz:], n) }
func (e *os9Entry) StartGroup() int     { return e.fdLSN() }
func (e *os9Entry) SetStartGroup(g int) {}
func (e *os9Entry) ExtraGroup() int     { return e.fdLSN() }

func (e *os9Entry) Capabilities() Capability {
	return CapModTime | CapExplicitSize | CapDirectory
}

func (e *os9Entry) FileAttr() FileAttr {
	att := e.fd()[fdAtt]
	a := FileAttr{Origin: int(att), Format: FormatOS9}
	switch {
	case att&os9AttrDir != 0:
		a.Flags |= AttrDirectory
	case att&os9AttrExec != 0:
		a.Flags |= AttrMachine | AttrBinary
	default:
		a.Flags |= AttrBinary
	}
	if att&os9AttrWrite == 0 {
		a.Flags |= AttrReadOnly
	}
	if att&os9AttrShare != 0 {
		a.Flags |= AttrSystem
	}
	return a
}

func (e *os9Entry) SetFileAttr(a FileAttr) {
	att, ok := a.Native(FormatOS9)
	if !ok {
		att = os9AttrDefault
		if a.Flags.Has(AttrDirectory) {
			att = os9AttrDirAll
		}
		if a.Flags.Has(AttrMachine) {
			att |= os9AttrExec | os9AttrPExec
		}
	}
	if a.Flags.Has(AttrReadOnly) {
		att &^= os9AttrWrite | os9AttrPWrite
	} else {
		att |= os9AttrWrite
	}
	att &^= os9AttrShare
	if a.Flags.Has(AttrSystem) {
		att |= os9AttrShare
	}
	e.fd()[fdAtt] = byte(att)
}

func (e *os9Entry) ModTime() time.Time {
	return os9Date(e.fd()[fdDat:])
}

func (e *os9Entry) SetModTime(t time.Time) {
	putOS9Date(e.fd()[fdDat:fdDat+5], t)
}

func (e *os9Entry) Delete() {
	e.Data[0] = 0x00
	e.aux = nil
}

func (e *os9Entry) Clear() {
	fill(e.Data, 0)
	e.aux = make([]byte, e.d.geom.SectorSize)
	e.auxPos = 0
	e.loaded = false
}
