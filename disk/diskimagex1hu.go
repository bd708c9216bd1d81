package disk

import (
	"time"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

// Sharp X1 Hu-BASIC. A group is one track side. The table is split: the
// low byte of group g sits at g and the high byte at g+0x80.
var huLayout = &fat8Layout{
	groups:      80,
	spg:         16,
	firstPos:    0,
	fat:         FatParams{Start: 14, Sectors: 1},
	split:       0x80,
	system:      []int{0, 1},
	rootStart:   16,
	rootSectors: 16,
	fill:        0xff,
}

func init() {
	register(&formatSpec{
		id:          FormatX1Hu,
		name:        "x1hu",
		description: "Sharp X1 Hu-BASIC",
		geometries:  []Geometry{Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newHuStrategy(d) },
		newCodec:    func(d *Disk) DirectoryCodec { return &huCodec{} },
	})
}

// huStrategy adds subdirectory support to the plain table engine.
type huStrategy struct {
	*fat8Strategy
}

func newHuStrategy(d *Disk) *huStrategy {
	return &huStrategy{fat8Strategy: newFat8Strategy(d, huLayout)}
}

func (s *huStrategy) MakeDirectory(parent *DirNode, e DirectoryEntry) error {
	gl, err := s.AllocateUnitGroups(e, s.BytesPerGroup(), AllocNew)
	if err != nil {
		return err
	}
	for _, p := range gl.Positions() {
		if err := s.d.fillSector(p, 0xff); err != nil {
			s.DeleteGroups(gl)
			return err
		}
	}
	return s.CommitEntry(e, gl, 0)
}

func (s *huStrategy) GrowDirectory(n *DirNode) error {
	if n.Entry == nil {
		return checkpoint.From(ErrDirectoryFull)
	}
	gl, err := s.AllocateUnitGroups(n.Entry, s.BytesPerGroup(), AllocAppend)
	if err != nil {
		return err
	}
	for _, p := range gl.Positions() {
		if err := s.d.fillSector(p, 0xff); err != nil {
			return err
		}
	}
	return nil
}

const (
	huModeBinary   = 0x01
	huModeBASIC    = 0x02
	huModeASCII    = 0x04
	huModeHidden   = 0x10
	huModeReadOnly = 0x40
	huModeDir      = 0x80
)

var (
	huName  = Field{Off: 0x01, Len: 13}
	huExt   = Field{Off: 0x0e, Len: 3}
	huSize  = Field{Off: 0x12, Len: 2}
	huLoad  = Field{Off: 0x14, Len: 2}
	huExec  = Field{Off: 0x16, Len: 2}
	huStart = Field{Off: 0x1e, Len: 2}
	huDate  = 0x18
)

type huCodec struct{}

func (c *huCodec) EntrySize() int { return 32 }
func (c *huCodec) Blank() byte    { return 0xff }
func (c *huCodec) Tree() bool     { return true }

func (c *huCodec) SplitName(name string) (string, string, error) {
	return splitName(name, 13, 3, false)
}

func (c *huCodec) NewEntry(data []byte) DirectoryEntry {
	e := &huEntry{}
	e.Data = data
	return e
}

type huEntry struct {
	entryBase
}

func (e *huEntry) CheckUsed() bool {
	return e.Data[0] != 0x00 && e.Data[0] != 0xff
}

func (e *huEntry) Check() (bool, bool) {
	if e.Data[0] == 0xff {
		return true, true
	}
	if !e.CheckUsed() {
		return true, false
	}
	if !printable(e.Data[1:0x11]) {
		return false, false
	}
	return e.StartGroup() < e.d.alloc.GroupCount(), false
}

func (e *huEntry) NameField() Field { return huName }
func (e *huEntry) ExtField() Field  { return huExt }
func (e *huEntry) FileName() string { return huName.Str(e.Data) }
func (e *huEntry) FileExt() string  { return huExt.Str(e.Data) }

func (e *huEntry) SetFileName(name, ext string) {
	huName.SetStr(e.Data, name, ' ')
	huExt.SetStr(e.Data, ext, ' ')
}

func (e *huEntry) StartGroup() int      { return huStart.Uint(e.Data) }
func (e *huEntry) SetStartGroup(g int)  { huStart.SetUint(e.Data, g) }
func (e *huEntry) FileSize() int        { return huSize.Uint(e.Data) }
func (e *huEntry) SetFileSize(n int)    { huSize.SetUint(e.Data, n) }
func (e *huEntry) LoadAddress() int     { return huLoad.Uint(e.Data) }
func (e *huEntry) SetLoadAddress(a int) { huLoad.SetUint(e.Data, a) }
func (e *huEntry) ExecAddress() int     { return huExec.Uint(e.Data) }
func (e *huEntry) SetExecAddress(a int) { huExec.SetUint(e.Data, a) }

func (e *huEntry) FileTypeN(n int) int       { return int(e.Data[0]) }
func (e *huEntry) SetFileTypeN(n int, v int) { e.Data[0] = byte(v) }

func (e *huEntry) Capabilities() Capability {
	return CapModTime | CapAddress | CapExplicitSize | CapDirectory
}

func (e *huEntry) FileAttr() FileAttr {
	m := e.Data[0]
	a := FileAttr{Origin: int(m), Format: FormatX1Hu}
	switch {
	case m&huModeDir != 0:
		a.Flags |= AttrDirectory
	case m&huModeBASIC != 0:
		a.Flags |= AttrBASIC | AttrBinary
	case m&huModeASCII != 0:
		a.Flags |= AttrASCII
	default:
		a.Flags |= AttrMachine | AttrBinary
	}
	if m&huModeHidden != 0 {
		a.Flags |= AttrHidden
	}
	if m&huModeReadOnly != 0 {
		a.Flags |= AttrReadOnly
	}
	return a
}

func (e *huEntry) SetFileAttr(a FileAttr) {
	var m byte
	if v, ok := a.Native(FormatX1Hu); ok {
		m = byte(v) &^ (huModeHidden | huModeReadOnly)
	} else {
		switch {
		case a.Flags.Has(AttrDirectory):
			m = huModeDir
		case a.Flags.Has(AttrBASIC):
			m = huModeBASIC
		case a.Flags.Has(AttrASCII):
			m = huModeASCII
		default:
			m = huModeBinary
		}
	}
	if a.Flags.Has(AttrHidden) {
		m |= huModeHidden
	}
	if a.Flags.Has(AttrReadOnly) {
		m |= huModeReadOnly
	}
	e.Data[0] = m
}

func (e *huEntry) ModTime() time.Time {
	return bcdTime(e.Data[huDate : huDate+6])
}

func (e *huEntry) SetModTime(t time.Time) {
	putBCDTime(e.Data[huDate:huDate+6], t)
}

func (e *huEntry) Delete() {
	e.Data[0] = 0x00
}

func (e *huEntry) Clear() {
	fill(e.Data, 0)
}
