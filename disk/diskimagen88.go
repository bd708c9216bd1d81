package disk

// N88-DISK BASIC on 2D media. The table lives on cylinder 18 side 1 with
// three copies behind a twelve sector directory.
var n88Layout = &fat8Layout{
	groups:      160,
	spg:         8,
	firstPos:    0,
	fat:         FatParams{Start: 605, Sectors: 1, Copies: 3, Stride: 1},
	lastBase:    0xc0,
	system:      []int{0, 1, 74, 75},
	rootStart:   592,
	rootSectors: 12,
	fill:        0xff,
	eof:         true,
}

func init() {
	register(&formatSpec{
		id:          FormatN88,
		name:        "n88",
		description: "PC-8801 N88-DISK BASIC",
		geometries:  []Geometry{Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat8Strategy(d, n88Layout) },
		newCodec:    func(d *Disk) DirectoryCodec { return &n88Codec{format: FormatN88} },
	})
}

const (
	n88AttrMachine   = 0x01
	n88AttrReadOnly  = 0x10
	n88AttrEncrypted = 0x20
	n88AttrVerify    = 0x40
	n88AttrBASIC     = 0x80
)

// n88Codec builds the 16 byte entry shared by N88, SMC-777 and New-DOS.
type n88Codec struct {
	format     FormatID
	attrInvert bool
	addresses  bool
}

func (c *n88Codec) EntrySize() int { return 16 }
func (c *n88Codec) Blank() byte    { return 0xff }
func (c *n88Codec) Tree() bool     { return false }

func (c *n88Codec) SplitName(name string) (string, string, error) {
	return splitName(name, 6, 3, true)
}

func (c *n88Codec) NewEntry(data []byte) DirectoryEntry {
	e := &n88Entry{c: c}
	e.Data = data
	return e
}

type n88Entry struct {
	entryBase
	c *n88Codec
}

var (
	n88Name  = Field{Off: 0, Len: 6}
	n88Ext   = Field{Off: 6, Len: 3}
	n88Start = Field{Off: 10, Len: 1}
	n88Load  = Field{Off: 11, Len: 2}
	n88Exec  = Field{Off: 13, Len: 2}
)

func (e *n88Entry) attrField() Field {
	return Field{Off: 9, Len: 1, Invert: e.c.attrInvert}
}

func (e *n88Entry) CheckUsed() bool {
	return e.Data[0] != 0x00 && e.Data[0] != 0xff
}

func (e *n88Entry) Check() (bool, bool) {
	if e.Data[0] == 0xff {
		return true, true
	}
	if !e.CheckUsed() {
		return true, false
	}
	if !printable(e.Data[0:9]) {
		return false, false
	}
	return e.StartGroup() < e.d.alloc.GroupCount(), false
}

func (e *n88Entry) NameField() Field  { return n88Name }
func (e *n88Entry) ExtField() Field   { return n88Ext }
func (e *n88Entry) FileName() string  { return n88Name.Str(e.Data) }
func (e *n88Entry) FileExt() string   { return n88Ext.Str(e.Data) }
func (e *n88Entry) StartGroup() int   { return n88Start.Uint(e.Data) }
func (e *n88Entry) FileSize() int     { return 0 }
func (e *n88Entry) SetFileSize(n int) {}

func (e *n88Entry) SetFileName(name, ext string) {
	n88Name.SetStr(e.Data, name, ' ')
	n88Ext.SetStr(e.Data, ext, ' ')
}

func (e *n88Entry) SetStartGroup(g int) {
	n88Start.SetUint(e.Data, g)
}

func (e *n88Entry) FileTypeN(n int) int {
	return int(e.attrField().Byte(e.Data))
}

func (e *n88Entry) SetFileTypeN(n int, v int) {
	e.attrField().SetByte(e.Data, byte(v))
}

func (e *n88Entry) FileAttr() FileAttr {
	raw := e.attrField().Byte(e.Data)
	a := FileAttr{Origin: int(raw), Format: e.c.format}
	switch {
	case raw&n88AttrBASIC != 0:
		a.Flags |= AttrBASIC | AttrBinary
	case raw&n88AttrMachine != 0:
		a.Flags |= AttrMachine | AttrBinary
	default:
		a.Flags |= AttrASCII
	}
	if raw&n88AttrReadOnly != 0 {
		a.Flags |= AttrReadOnly
	}
	if raw&n88AttrEncrypted != 0 {
		a.Flags |= AttrEncrypted
	}
	if raw&n88AttrVerify != 0 {
		a.Flags |= AttrVerify
	}
	return a
}

func (e *n88Entry) SetFileAttr(a FileAttr) {
	var raw byte
	if v, ok := a.Native(e.c.format); ok {
		raw = byte(v) &^ (n88AttrReadOnly | n88AttrEncrypted | n88AttrVerify)
	} else {
		switch {
		case a.Flags.Has(AttrBASIC):
			raw = n88AttrBASIC
		case a.Flags.Has(AttrASCII):
			raw = 0
		default:
			raw = n88AttrMachine
		}
	}
	if a.Flags.Has(AttrReadOnly) {
		raw |= n88AttrReadOnly
	}
	if a.Flags.Has(AttrEncrypted) {
		raw |= n88AttrEncrypted
	}
	if a.Flags.Has(AttrVerify) {
		raw |= n88AttrVerify
	}
	e.attrField().SetByte(e.Data, raw)
}

func (e *n88Entry) Capabilities() Capability {
	if e.c.addresses {
		return CapAddress
	}
	return 0
}

func (e *n88Entry) LoadAddress() int {
	if !e.c.addresses {
		return 0
	}
	return n88Load.Uint(e.Data)
}

func (e *n88Entry) SetLoadAddress(addr int) {
	if e.c.addresses {
		n88Load.SetUint(e.Data, addr)
	}
}

func (e *n88Entry) ExecAddress() int {
	if !e.c.addresses {
		return 0
	}
	return n88Exec.Uint(e.Data)
}

func (e *n88Entry) SetExecAddress(addr int) {
	if e.c.addresses {
		n88Exec.SetUint(e.Data, addr)
	}
}

func (e *n88Entry) Delete() {
	e.Data[0] = 0x00
}

func (e *n88Entry) Clear() {
	fill(e.Data, 0xff)
}
