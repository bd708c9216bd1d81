package disk

import (
	"sort"
	"strings"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

func init() {
	register(&formatSpec{
		id:          FormatCPM,
		name:        "cpm",
		description: "CP/M 2.2",
		geometries:  []Geometry{Geometry8SS, Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newCPMStrategy(d) },
		newCodec:    func(d *Disk) DirectoryCodec { return &cpmCodec{} },
	})
}

const (
	cpmFree      = 0xe5
	cpmMaxUser   = 31
	cpmLabel     = 0x20
	cpmStamps    = 0x21
	cpmRecord    = 128
	cpmLogical   = 16384
	cpmMaxRC     = 0x80
	cpmEntrySize = 32
	cpmAttrMask  = 0x7f
)

// dpb is a CP/M disk parameter block. trackLen counts physical sectors of
// one system track; off is in those tracks.
type dpb struct {
	bls       int
	dsm       int
	drm       int
	off       int
	dirBlocks int
	trackLen  int
	skew      []int
}

var skew26x6 = []int{
	0, 6, 12, 18, 24, 4, 10, 16, 22, 2, 8, 14, 20,
	1, 7, 13, 19, 25, 5, 11, 17, 23, 3, 9, 15, 21,
}

func dpbFor(g Geometry) *dpb {
	switch g {
	case Geometry8SS:
		return &dpb{bls: 1024, dsm: 242, drm: 63, off: 2, dirBlocks: 2, trackLen: 26, skew: skew26x6}
	case Geometry2D:
		return &dpb{bls: 2048, dsm: 155, drm: 127, off: 2, dirBlocks: 2, trackLen: 16}
	}
	return nil
}

func (p *dpb) wide() bool { return p.dsm > 255 }

func (p *dpb) blocksPerEntry() int {
	if p.wide() {
		return 8
	}
	return 16
}

func (p *dpb) exm() int {
	return p.blocksPerEntry()*p.bls/cpmLogical - 1
}

func (p *dpb) recordsPerEntry() int {
	return p.blocksPerEntry() * p.bls / cpmRecord
}

// cpmStrategy has no allocation table. The blocks in use are those listed
// by live directory records, plus blocks claimed by a write in progress.
type cpmStrategy struct {
	strategyBase
	p       *dpb
	used    map[int]bool
	pending map[int]bool
}

func newCPMStrategy(d *Disk) *cpmStrategy {
	s := &cpmStrategy{p: dpbFor(d.geom), pending: map[int]bool{}}
	s.d = d
	s.self = s
	return s
}

func (s *cpmStrategy) ParseParamOnDisk() float64 {
	if s.p == nil {
		return -1
	}
	if s.d.store.GetManagedSector(s.GroupPositions(0)[0]) == nil {
		return -1
	}
	return 1
}

// CheckFat looks for blocks claimed by two records.
func (s *cpmStrategy) CheckFat() float64 {
	s.used = nil
	seen := map[int]bool{}
	dup := false
	s.scan(func(block int) {
		if seen[block] {
			dup = true
		}
		seen[block] = true
	})
	if dup {
		s.d.log.Errorf("cpm: blocks claimed twice")
		return 0.5
	}
	return 1
}

// scan calls fn for every block a live record of the directory lists.
func (s *cpmStrategy) scan(fn func(block int)) {
	c := &cpmCodec{}
	for b := 0; b < s.p.dirBlocks; b++ {
		for _, pos := range s.GroupPositions(b) {
			data, err := s.d.readSector(pos)
			if err != nil {
				continue
			}
			for off := 0; off+cpmEntrySize <= len(data); off += cpmEntrySize {
				e := c.NewEntry(data[off : off+cpmEntrySize]).(*cpmEntry)
				if e.Data[0] > cpmMaxUser {
					continue
				}
				for _, blk := range e.blocks(s.p) {
					fn(blk)
				}
			}
		}
	}
}

func (s *cpmStrategy) usedSet() map[int]bool {
	if s.used == nil {
		s.used = map[int]bool{}
		s.scan(func(block int) { s.used[block] = true })
	}
	return s.used
}

func (s *cpmStrategy) Recount() {
	s.used = nil
	s.pending = map[int]bool{}
}

func (s *cpmStrategy) GroupCount() int    { return s.p.dsm + 1 }
func (s *cpmStrategy) BytesPerGroup() int { return s.p.bls }

func (s *cpmStrategy) RootGroups() (*GroupList, error) {
	gl := NewGroupList(s.p.bls)
	for b := 0; b < s.p.dirBlocks; b++ {
		gl.Add(s.item(b, NoGroup))
	}
	gl.Size = (s.p.drm + 1) * cpmEntrySize
	return gl, nil
}

// GroupPositions maps a block through the sector skew of the data tracks.
func (s *cpmStrategy) GroupPositions(block int) []int {
	spb := s.p.bls / s.d.geom.SectorSize
	out := make([]int, spb)
	for k := range out {
		l := block*spb + k
		t, ls := l/s.p.trackLen+s.p.off, l%s.p.trackLen
		if s.p.skew != nil {
			ls = s.p.skew[ls]
		}
		out[k] = t*s.p.trackLen + ls
	}
	return out
}

func (s *cpmStrategy) item(block, next int) GroupItem {
	ps := s.GroupPositions(block)
	it := groupItem(s.d, block, next, ps[0], ps[len(ps)-1])
	if s.p.skew != nil {
		it.Scatter = ps
	}
	return it
}

func (s *cpmStrategy) GetGroupNumber(g int) int {
	if s.IsUsedGroupNumber(g) {
		return 1
	}
	return 0
}

func (s *cpmStrategy) SetGroupNumber(g, v int) {
	if v != 0 {
		s.pending[g] = true
	} else {
		delete(s.pending, g)
	}
}

func (s *cpmStrategy) IsUsedGroupNumber(g int) bool {
	return g < s.p.dirBlocks || s.usedSet()[g] || s.pending[g]
}

func (s *cpmStrategy) GroupStatus(g int) GroupStatus {
	switch {
	case g < s.p.dirBlocks:
		return GroupSystem
	case s.IsUsedGroupNumber(g):
		return GroupUsed
	}
	return GroupFree
}

func (s *cpmStrategy) GetEmptyGroupNumber() int {
	return s.GetNextEmptyGroupNumber(s.p.dirBlocks - 1)
}

func (s *cpmStrategy) GetNextEmptyGroupNumber(g int) int {
	for c := g + 1; c < s.GroupCount(); c++ {
		if !s.IsUsedGroupNumber(c) {
			return c
		}
	}
	return NoGroup
}

func (s *cpmStrategy) GetStartSectorFromGroup(g int) int {
	return s.GroupPositions(g)[0]
}

func (s *cpmStrategy) GetEndSectorFromGroup(g, n int) int {
	ps := s.GroupPositions(g)
	return ps[len(ps)-1]
}

func (s *cpmStrategy) GetAllGroups(e DirectoryEntry) (*GroupList, error) {
	gl := NewGroupList(s.p.bls)
	var extents []*cpmEntry
	for x := e; x != nil; x = x.Next() {
		extents = append(extents, x.(*cpmEntry))
	}
	for i, x := range extents {
		for _, b := range x.blocks(s.p) {
			if b >= s.GroupCount() {
				return gl, checkpoint.Errorf(ErrDirectoryCorrupt, "%s: block %d", FullName(e), b)
			}
			if n := gl.Last(); n != nil {
				n.Next = b
			}
			it := s.item(b, NoGroup)
			it.Div, it.DivNum = i, len(extents)
			if err := gl.Add(it); err != nil {
				return gl, checkpoint.Wrap(err, ErrChainOverrun)
			}
		}
		gl.Size += x.records(s.p) * cpmRecord
	}
	return gl, nil
}

// AllocateUnitGroups claims blocks first fit and reserves the directory
// records the extra extents will need.
func (s *cpmStrategy) AllocateUnitGroups(e DirectoryEntry, size int, mode AllocMode) (*GroupList, error) {
	if mode == AllocAppend {
		return nil, checkpoint.From(ErrUnsupported)
	}
	ce := e.(*cpmEntry)
	blocks := (size + s.p.bls - 1) / s.p.bls
	records := (size + cpmRecord - 1) / cpmRecord
	extents := (records + s.p.recordsPerEntry() - 1) / s.p.recordsPerEntry()
	if extents == 0 {
		extents = 1
	}

	gl := NewGroupList(s.p.bls)
	gl.Size = size
	var taken []int
	from := s.p.dirBlocks - 1
	for i := 0; i < blocks; i++ {
		b := s.GetNextEmptyGroupNumber(from)
		if b == NoGroup {
			for _, t := range taken {
				delete(s.pending, t)
			}
			return nil, &AllocError{Partial: len(taken) > 0, Groups: taken}
		}
		s.pending[b] = true
		taken = append(taken, b)
		if n := gl.Last(); n != nil {
			n.Next = b
		}
		gl.Add(s.item(b, NoGroup))
		from = b
	}

	ce.extra = ce.extra[:0]
	for i := 1; i < extents; i++ {
		x, err := s.d.tree.GetEmptyItemPtr()
		if err != nil {
			for _, r := range ce.extra {
				r.Delete()
			}
			ce.extra = nil
			for _, t := range taken {
				delete(s.pending, t)
			}
			return nil, checkpoint.Wrap(err, ErrDirectoryFull)
		}
		xe := x.(*cpmEntry)
		xe.Clear()
		copy(xe.Data[:12], ce.Data[:12])
		ce.extra = append(ce.extra, xe)
	}
	return gl, nil
}

// CommitEntry spreads the chain over the record and its extra extents.
func (s *cpmStrategy) CommitEntry(e DirectoryEntry, gl *GroupList, size int) error {
	ce := e.(*cpmEntry)
	records := (size + cpmRecord - 1) / cpmRecord
	all := append([]*cpmEntry{ce}, ce.extra...)
	per := s.p.blocksPerEntry()
	groups := gl.Groups()
	for i, x := range all {
		recs := records - i*s.p.recordsPerEntry()
		if recs > s.p.recordsPerEntry() {
			recs = s.p.recordsPerEntry()
		}
		ext := i * (s.p.exm() + 1)
		rc := 0
		if recs > 0 {
			ext += (recs - 1) / cpmRecord
			rc = recs - (recs-1)/cpmRecord*cpmRecord
		}
		x.Data[0x0c] = byte(ext & 0x1f)
		x.Data[0x0e] = byte(ext >> 5)
		x.Data[0x0f] = byte(rc)
		lo, hi := i*per, (i+1)*per
		if hi > len(groups) {
			hi = len(groups)
		}
		if lo > hi {
			lo = hi
		}
		x.setBlocks(s.p, groups[lo:hi])
		if i+1 < len(all) {
			x.next = all[i+1]
		}
		if i > 0 {
			x.tail = true
		}
		if err := s.d.Publish(x); err != nil {
			return err
		}
	}
	ce.extra = nil
	s.Recount()
	return nil
}

func (s *cpmStrategy) DeleteGroups(gl *GroupList) error {
	for _, it := range gl.Items {
		delete(s.pending, it.Group)
	}
	s.used = nil
	return nil
}

func (s *cpmStrategy) DeleteGroupNumber(g int) {
	delete(s.pending, g)
	s.used = nil
}

func (s *cpmStrategy) ReadData(e DirectoryEntry, gl *GroupList) ([]byte, error) {
	data, err := s.d.readPositions(gl.Positions())
	if err != nil {
		return nil, err
	}
	if gl.Size < len(data) {
		data = data[:gl.Size]
	}
	return data, nil
}

func (s *cpmStrategy) Format() error {
	if err := s.d.fillRange(0, s.d.geom.TotalSectors(), cpmFree); err != nil {
		return err
	}
	s.Recount()
	return nil
}

var (
	cpmName = Field{Off: 0x01, Len: 8}
	cpmExt  = Field{Off: 0x09, Len: 3}
)

type cpmCodec struct{}

func (c *cpmCodec) EntrySize() int { return cpmEntrySize }
func (c *cpmCodec) Blank() byte    { return cpmFree }
func (c *cpmCodec) Tree() bool     { return false }

func (c *cpmCodec) SplitName(name string) (string, string, error) {
	return splitName(name, 8, 3, true)
}

func (c *cpmCodec) NewEntry(data []byte) DirectoryEntry {
	e := &cpmEntry{}
	e.Data = data
	return e
}

// LinkExtents chains the records of each file in extent order and hides
// the continuation records and labels.
func (c *cpmCodec) LinkExtents(items []DirectoryEntry) {
	files := map[string][]*cpmEntry{}
	var keys []string
	for _, it := range items {
		e := it.(*cpmEntry)
		e.next, e.tail = nil, false
		if !e.CheckUsed() {
			continue
		}
		if e.Data[0] > cpmMaxUser {
			e.tail = true
			continue
		}
		if ok, _ := e.Check(); !ok {
			continue
		}
		k := e.key()
		if _, ok := files[k]; !ok {
			keys = append(keys, k)
		}
		files[k] = append(files[k], e)
	}
	for _, k := range keys {
		ext := files[k]
		sort.SliceStable(ext, func(i, j int) bool { return ext[i].extent() < ext[j].extent() })
		for i := range ext {
			if i > 0 {
				ext[i].tail = true
				ext[i-1].next = ext[i]
			}
		}
	}
}

type cpmEntry struct {
	entryBase
	// extra holds the records reserved for further extents until commit.
	extra []*cpmEntry
}

func (e *cpmEntry) key() string {
	return string([]byte{e.Data[0]}) + e.FileName() + "." + e.FileExt()
}

func (e *cpmEntry) extent() int {
	return int(e.Data[0x0e])<<5 | int(e.Data[0x0c]&0x1f)
}

func (e *cpmEntry) records(p *dpb) int {
	return (int(e.Data[0x0c])&p.exm())*cpmRecord + int(e.Data[0x0f])
}

func (e *cpmEntry) blocks(p *dpb) []int {
	var out []int
	al := e.Data[0x10:0x20]
	if p.wide() {
		for i := 0; i+1 < len(al); i += 2 {
			if b := le16(al[i:]); b != 0 {
				out = append(out, b)
			}
		}
		return out
	}
	for _, b := range al {
		if b != 0 {
			out = append(out, int(b))
		}
	}
	return out
}

func (e *cpmEntry) setBlocks(p *dpb, blocks []int) {
	al := e.Data[0x10:0x20]
	fill(al, 0)
	for i, b := range blocks {
		if p.wide() {
			putLE16(al[i*2:], b)
		} else {
			al[i] = byte(b)
		}
	}
}

func (e *cpmEntry) CheckUsed() bool {
	return e.Data[0] != cpmFree
}

func (e *cpmEntry) Check() (bool, bool) {
	u := e.Data[0]
	switch {
	case u == cpmFree, u == cpmLabel, u == cpmStamps:
		return true, false
	case u > cpmMaxUser:
		return false, false
	}
	for _, b := range e.Data[0x01:0x0c] {
		if c := b & cpmAttrMask; c < 0x20 || c > 0x7e {
			return false, false
		}
	}
	if e.Data[0x0f] > cpmMaxRC || e.Data[0x0c] > 0x1f {
		return false, false
	}
	if cs, ok := e.d.alloc.(*cpmStrategy); ok {
		for _, b := range e.blocks(cs.p) {
			if b < cs.p.dirBlocks || b > cs.p.dsm {
				return false, false
			}
		}
	}
	return true, false
}

func maskedName(raw []byte) string {
	b := make([]byte, len(raw))
	for i, c := range raw {
		b[i] = c & cpmAttrMask
	}
	return strings.TrimRight(string(b), " ")
}

func (e *cpmEntry) NameField() Field { return cpmName }
func (e *cpmEntry) ExtField() Field  { return cpmExt }
func (e *cpmEntry) FileName() string { return maskedName(cpmName.Raw(e.Data)) }
func (e *cpmEntry) FileExt() string  { return maskedName(cpmExt.Raw(e.Data)) }

// SetFileName keeps the attribute bits carried in the extension.
func (e *cpmEntry) SetFileName(name, ext string) {
	var attrs [3]byte
	for i := range attrs {
		attrs[i] = e.Data[0x09+i] &^ cpmAttrMask
	}
	cpmName.SetStr(e.Data, name, ' ')
	cpmExt.SetStr(e.Data, ext, ' ')
	for i := range attrs {
		e.Data[0x09+i] |= attrs[i]
	}
}

func (e *cpmEntry) FileTypeN(n int) int       { return int(e.Data[0]) }
func (e *cpmEntry) SetFileTypeN(n int, v int) { e.Data[0] = byte(v) }

func (e *cpmEntry) FileSize() int {
	if cs, ok := e.d.alloc.(*cpmStrategy); ok {
		return e.records(cs.p) * cpmRecord
	}
	return 0
}

func (e *cpmEntry) SetFileSize(n int) {}

func (e *cpmEntry) StartGroup() int {
	if cs, ok := e.d.alloc.(*cpmStrategy); ok {
		if b := e.blocks(cs.p); len(b) > 0 {
			return b[0]
		}
	}
	return NoGroup
}

func (e *cpmEntry) SetStartGroup(g int) {}

func (e *cpmEntry) FileAttr() FileAttr {
	t := e.Data[0x09:0x0c]
	var origin int
	a := FileAttr{Flags: AttrBinary, Format: FormatCPM}
	if t[0]&0x80 != 0 {
		a.Flags |= AttrReadOnly
		origin |= 1
	}
	if t[1]&0x80 != 0 {
		a.Flags |= AttrSystem | AttrHidden
		origin |= 2
	}
	if t[2]&0x80 != 0 {
		a.Flags |= AttrArchive
		origin |= 4
	}
	a.Origin = origin
	return a
}

func (e *cpmEntry) SetFileAttr(a FileAttr) {
	var bits int
	if a.Flags.Has(AttrReadOnly) {
		bits |= 1
	}
	if a.Flags.Has(AttrSystem) || a.Flags.Has(AttrHidden) {
		bits |= 2
	}
	if a.Flags.Has(AttrArchive) {
		bits |= 4
	}
	for i := 0; i < 3; i++ {
		e.Data[0x09+i] &= cpmAttrMask
		if bits&(1<<uint(i)) != 0 {
			e.Data[0x09+i] |= 0x80
		}
	}
}

func (e *cpmEntry) Delete() {
	e.Data[0] = cpmFree
}

// Clear leaves a record for user 0 so the slot counts as taken until it
// is written.
func (e *cpmEntry) Clear() {
	fill(e.Data, 0)
	fill(e.Data[0x01:0x0c], ' ')
	e.next, e.tail, e.extra = nil, false, nil
}
