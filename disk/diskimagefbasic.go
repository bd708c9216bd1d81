package disk

// FM-7 F-BASIC. Cylinder 0 holds the IPL, cylinder 1 the ID sector, the
// table and the directory. Groups start on cylinder 2.
var fbasicLayout = &fat8Layout{
	groups:      152,
	spg:         8,
	firstPos:    64,
	fat:         FatParams{Start: 33, Sectors: 1, Offset: 5},
	lastBase:    0xbf,
	rootStart:   35,
	rootSectors: 29,
	fill:        0xff,
	check:       fbasicCheck,
	format:      fbasicFormat,
}

const fbasicIDPos = 32

func init() {
	register(&formatSpec{
		id:          FormatFBasic,
		name:        "fbasic",
		description: "FM-7 F-BASIC",
		geometries:  []Geometry{Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat8Strategy(d, fbasicLayout) },
		newCodec: func(d *Disk) DirectoryCodec {
			return &fmCodec{format: FormatFBasic, size: 32, nameLen: 8, typeOff: 0x0b, asciiOff: 0x0c, randomOff: 0x0d, startOff: 0x0e, lastOff: 0x0f}
		},
	})
}

func fbasicCheck(s *fat8Strategy) float64 {
	id, err := s.d.readSector(fbasicIDPos)
	if err != nil || id[0] != 'S' {
		return -1
	}
	table, err := s.d.readSector(s.l.fat.Start)
	if err != nil {
		return -1
	}
	for _, b := range table[:s.l.fat.Offset] {
		if b != 0 {
			return -1
		}
	}
	return 1
}

func fbasicFormat(s *fat8Strategy) error {
	id := make([]byte, s.d.geom.SectorSize)
	id[0] = 'S'
	if err := s.d.writeSector(fbasicIDPos, id); err != nil {
		return err
	}
	return s.d.patchSector(s.l.fat.Start, 0, make([]byte, s.l.fat.Offset))
}

const (
	fmTypeBASIC   = 0x00
	fmTypeData    = 0x01
	fmTypeMachine = 0x02
)

// fmCodec covers the F-BASIC and L3 entries, which differ only in record
// size and field placement.
type fmCodec struct {
	format    FormatID
	size      int
	nameLen   int
	extLen    int
	typeOff   int
	asciiOff  int
	randomOff int
	startOff  int
	lastOff   int
}

func (c *fmCodec) EntrySize() int { return c.size }
func (c *fmCodec) Blank() byte    { return 0xff }
func (c *fmCodec) Tree() bool     { return false }

func (c *fmCodec) SplitName(name string) (string, string, error) {
	return splitName(name, c.nameLen, c.extLen, true)
}

func (c *fmCodec) NewEntry(data []byte) DirectoryEntry {
	e := &fmEntry{c: c}
	e.Data = data
	return e
}

type fmEntry struct {
	entryBase
	c *fmCodec
}

func (e *fmEntry) NameField() Field { return Field{Off: 0, Len: e.c.nameLen} }
func (e *fmEntry) ExtField() Field  { return Field{Off: e.c.nameLen, Len: e.c.extLen} }
func (e *fmEntry) lastField() Field { return Field{Off: e.c.lastOff, Len: 2, BE: true} }

func (e *fmEntry) CheckUsed() bool {
	return e.Data[0] != 0x00 && e.Data[0] != 0xff
}

func (e *fmEntry) Check() (bool, bool) {
	if e.Data[0] == 0xff {
		return true, true
	}
	if !e.CheckUsed() {
		return true, false
	}
	if !printable(e.Data[:e.c.nameLen+e.c.extLen]) || e.Data[e.c.typeOff] > fmTypeMachine {
		return false, false
	}
	return e.StartGroup() < e.d.alloc.GroupCount(), false
}

func (e *fmEntry) FileName() string { return e.NameField().Str(e.Data) }

func (e *fmEntry) FileExt() string {
	if e.c.extLen == 0 {
		return ""
	}
	return e.ExtField().Str(e.Data)
}

func (e *fmEntry) SetFileName(name, ext string) {
	e.NameField().SetStr(e.Data, name, ' ')
	if e.c.extLen > 0 {
		e.ExtField().SetStr(e.Data, ext, ' ')
	}
}

func (e *fmEntry) StartGroup() int     { return int(e.Data[e.c.startOff]) }
func (e *fmEntry) SetStartGroup(g int) { e.Data[e.c.startOff] = byte(g) }

func (e *fmEntry) FileTypeN(n int) int       { return int(e.Data[e.c.typeOff]) }
func (e *fmEntry) SetFileTypeN(n int, v int) { e.Data[e.c.typeOff] = byte(v) }

func (e *fmEntry) LastSectorBytes() (int, bool) {
	return e.lastField().Uint(e.Data), true
}

// FileSize is only the byte count of the final sector.
func (e *fmEntry) FileSize() int {
	n, _ := e.LastSectorBytes()
	return n
}

func (e *fmEntry) SetFileSize(size int) {
	n := size % e.d.geom.SectorSize
	if n == 0 && size > 0 {
		n = e.d.geom.SectorSize
	}
	e.lastField().SetUint(e.Data, n)
}

func (e *fmEntry) FileAttr() FileAttr {
	t := e.Data[e.c.typeOff]
	a := FileAttr{Origin: int(t), Format: e.c.format}
	switch t {
	case fmTypeBASIC:
		a.Flags |= AttrBASIC
	case fmTypeData:
		a.Flags |= AttrData
	default:
		a.Flags |= AttrMachine
	}
	if e.Data[e.c.asciiOff] == 0xff {
		a.Flags |= AttrASCII
	} else {
		a.Flags |= AttrBinary
	}
	if e.c.randomOff > 0 && e.Data[e.c.randomOff] == 0xff {
		a.Flags |= AttrRandom
	}
	return a
}

func (e *fmEntry) SetFileAttr(a FileAttr) {
	t, ok := a.Native(e.c.format)
	if !ok {
		switch {
		case a.Flags.Has(AttrBASIC):
			t = fmTypeBASIC
		case a.Flags.Has(AttrData):
			t = fmTypeData
		default:
			t = fmTypeMachine
		}
	}
	e.Data[e.c.typeOff] = byte(t)
	e.Data[e.c.asciiOff] = 0
	if a.Flags.Has(AttrASCII) {
		e.Data[e.c.asciiOff] = 0xff
	}
	if e.c.randomOff > 0 {
		e.Data[e.c.randomOff] = 0
		if a.Flags.Has(AttrRandom) {
			e.Data[e.c.randomOff] = 0xff
		}
	}
}

func (e *fmEntry) Delete() {
	e.Data[0] = 0x00
}

func (e *fmEntry) Clear() {
	fill(e.Data, 0)
}
