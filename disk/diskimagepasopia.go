package disk

import "time"

// Toshiba PASOPIA DISK BASIC. Entries hold an exact size, addresses and
// a BCD timestamp.
var pasopiaLayout = &fat8Layout{
	groups:      160,
	spg:         8,
	firstPos:    0,
	fat:         FatParams{Start: 31, Sectors: 1},
	lastBase:    0xc0,
	system:      []int{0, 1, 2, 3},
	rootStart:   16,
	rootSectors: 12,
	fill:        0xff,
}

func init() {
	register(&formatSpec{
		id:          FormatPasopia,
		name:        "pasopia",
		description: "Toshiba PASOPIA DISK BASIC",
		geometries:  []Geometry{Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat8Strategy(d, pasopiaLayout) },
		newCodec:    func(d *Disk) DirectoryCodec { return &pasopiaCodec{} },
	})
}

const (
	pasTypeBASIC   = 0
	pasTypeASCII   = 1
	pasTypeMachine = 2
	pasTypeData    = 3

	pasAttrReadOnly = 0x01
	pasAttrHidden   = 0x80
)

var (
	pasName  = Field{Off: 0x00, Len: 8}
	pasExt   = Field{Off: 0x08, Len: 3}
	pasType  = Field{Off: 0x0b, Len: 1}
	pasAttr  = Field{Off: 0x0c, Len: 1}
	pasStart = Field{Off: 0x0d, Len: 1}
	pasSize  = Field{Off: 0x0e, Len: 2}
	pasLoad  = Field{Off: 0x10, Len: 2}
	pasExec  = Field{Off: 0x12, Len: 2}
	pasDate  = 0x14
)

type pasopiaCodec struct{}

func (c *pasopiaCodec) EntrySize() int { return 32 }
func (c *pasopiaCodec) Blank() byte    { return 0xff }
func (c *pasopiaCodec) Tree() bool     { return false }

func (c *pasopiaCodec) SplitName(name string) (string, string, error) {
	return splitName(name, 8, 3, true)
}

func (c *pasopiaCodec) NewEntry(data []byte) DirectoryEntry {
	e := &pasopiaEntry{}
	e.Data = data
	return e
}

type pasopiaEntry struct {
	entryBase
}

func (e *pasopiaEntry) CheckUsed() bool {
	return e.Data[0] != 0x00 && e.Data[0] != 0xff
}

func (e *pasopiaEntry) Check() (bool, bool) {
	if e.Data[0] == 0xff {
		return true, true
	}
	if !e.CheckUsed() {
		return true, false
	}
	if !printable(e.Data[:11]) || pasType.Byte(e.Data) > pasTypeData {
		return false, false
	}
	return e.StartGroup() < e.d.alloc.GroupCount(), false
}

func (e *pasopiaEntry) NameField() Field { return pasName }
func (e *pasopiaEntry) ExtField() Field  { return pasExt }
func (e *pasopiaEntry) FileName() string { return pasName.Str(e.Data) }
func (e *pasopiaEntry) FileExt() string  { return pasExt.Str(e.Data) }

func (e *pasopiaEntry) SetFileName(name, ext string) {
	pasName.SetStr(e.Data, name, ' ')
	pasExt.SetStr(e.Data, ext, ' ')
}

func (e *pasopiaEntry) StartGroup() int      { return pasStart.Uint(e.Data) }
func (e *pasopiaEntry) SetStartGroup(g int)  { pasStart.SetUint(e.Data, g) }
func (e *pasopiaEntry) FileSize() int        { return pasSize.Uint(e.Data) }
func (e *pasopiaEntry) SetFileSize(n int)    { pasSize.SetUint(e.Data, n) }
func (e *pasopiaEntry) LoadAddress() int     { return pasLoad.Uint(e.Data) }
func (e *pasopiaEntry) SetLoadAddress(a int) { pasLoad.SetUint(e.Data, a) }
func (e *pasopiaEntry) ExecAddress() int     { return pasExec.Uint(e.Data) }
func (e *pasopiaEntry) SetExecAddress(a int) { pasExec.SetUint(e.Data, a) }

func (e *pasopiaEntry) FileTypeN(n int) int       { return int(pasType.Byte(e.Data)) }
func (e *pasopiaEntry) SetFileTypeN(n int, v int) { pasType.SetByte(e.Data, byte(v)) }

func (e *pasopiaEntry) Capabilities() Capability {
	return CapModTime | CapAddress | CapExplicitSize
}

func (e *pasopiaEntry) FileAttr() FileAttr {
	t := pasType.Byte(e.Data)
	a := FileAttr{Origin: int(t), Format: FormatPasopia}
	switch t {
	case pasTypeBASIC:
		a.Flags |= AttrBASIC | AttrBinary
	case pasTypeASCII:
		a.Flags |= AttrASCII
	case pasTypeMachine:
		a.Flags |= AttrMachine | AttrBinary
	default:
		a.Flags |= AttrData
	}
	attr := pasAttr.Byte(e.Data)
	if attr&pasAttrReadOnly != 0 {
		a.Flags |= AttrReadOnly
	}
	if attr&pasAttrHidden != 0 {
		a.Flags |= AttrHidden
	}
	return a
}

func (e *pasopiaEntry) SetFileAttr(a FileAttr) {
	t, ok := a.Native(FormatPasopia)
	if !ok {
		switch {
		case a.Flags.Has(AttrBASIC):
			t = pasTypeBASIC
		case a.Flags.Has(AttrASCII):
			t = pasTypeASCII
		case a.Flags.Has(AttrData):
			t = pasTypeData
		default:
			t = pasTypeMachine
		}
	}
	pasType.SetByte(e.Data, byte(t))
	var attr byte
	if a.Flags.Has(AttrReadOnly) {
		attr |= pasAttrReadOnly
	}
	if a.Flags.Has(AttrHidden) {
		attr |= pasAttrHidden
	}
	pasAttr.SetByte(e.Data, attr)
}

func (e *pasopiaEntry) ModTime() time.Time {
	return bcdTime(e.Data[pasDate : pasDate+6])
}

func (e *pasopiaEntry) SetModTime(t time.Time) {
	putBCDTime(e.Data[pasDate:pasDate+6], t)
}

func (e *pasopiaEntry) Delete() {
	e.Data[0] = 0x00
}

func (e *pasopiaEntry) Clear() {
	fill(e.Data, 0)
}

// bcdTime decodes YY MM DD hh mm ss in BCD. Years below 80 are 20xx.
func bcdTime(b []byte) time.Time {
	y := unbcd(b[0])
	if y < 80 {
		y += 2000
	} else {
		y += 1900
	}
	m, day := unbcd(b[1]), unbcd(b[2])
	if m < 1 || m > 12 || day < 1 || day > 31 {
		return time.Time{}
	}
	return time.Date(y, time.Month(m), day, unbcd(b[3]), unbcd(b[4]), unbcd(b[5]), 0, time.Local)
}

func putBCDTime(b []byte, t time.Time) {
	b[0] = bcd(t.Year() % 100)
	b[1] = bcd(int(t.Month()))
	b[2] = bcd(t.Day())
	b[3] = bcd(t.Hour())
	b[4] = bcd(t.Minute())
	b[5] = bcd(t.Second())
}
