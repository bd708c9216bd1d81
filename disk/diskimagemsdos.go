package disk

import (
	"strings"
	"time"
)

func init() {
	register(&formatSpec{
		id:          FormatMSDOS,
		name:        "msdos",
		description: "MS-DOS FAT12",
		geometries:  []Geometry{Geometry2DD9, Geometry2HD18, Geometry2HD},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat12Strategy(d, &dosBoot{}) },
		newCodec:    func(d *Disk) DirectoryCodec { return &dosCodec{format: FormatMSDOS} },
	})
	register(&formatSpec{
		id:          FormatMSX,
		name:        "msx",
		description: "MSX-DOS / MSX DISK BASIC",
		geometries:  []Geometry{Geometry2DD9, Geometry1DD9},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat12Strategy(d, &dosBoot{msx: true}) },
		newCodec:    func(d *Disk) DirectoryCodec { return &dosCodec{format: FormatMSX} },
	})
}

// dosBoot is the little-endian BPB boot sector. MSX disks carry a
// different jump and no 55AA signature.
type dosBoot struct {
	msx bool
}

var msxJump = []byte{0xeb, 0xfe, 0x90}

func (b *dosBoot) parse(boot []byte) (bpb, float64) {
	if len(boot) < 512 || (boot[0] != 0xeb && boot[0] != 0xe9) {
		return bpb{}, -1
	}
	p := bpb{
		BytesPerSector:    le16(boot[0x0b:]),
		SectorsPerCluster: int(boot[0x0d]),
		Reserved:          le16(boot[0x0e:]),
		FATs:              int(boot[0x10]),
		RootEntries:       le16(boot[0x11:]),
		TotalSectors:      le16(boot[0x13:]),
		Media:             boot[0x15],
		FATSectors:        le16(boot[0x16:]),
		SectorsPerTrack:   le16(boot[0x18:]),
		Heads:             le16(boot[0x1a:]),
	}
	if p.Media < 0xf0 {
		return p, -1
	}
	signed := boot[510] == 0x55 && boot[511] == 0xaa
	msxJumped := string(boot[:3]) == string(msxJump)
	switch {
	case b.msx && msxJumped:
		return p, 1
	case b.msx && !signed:
		return p, 0.7
	case !b.msx && signed:
		return p, 1
	}
	return p, 0.5
}

func (b *dosBoot) write(boot []byte, p bpb) {
	if b.msx {
		copy(boot, msxJump)
		copy(boot[3:], "MSX_02  ")
	} else {
		copy(boot, []byte{0xeb, 0x3c, 0x90})
		copy(boot[3:], "MSDOS5.0")
		boot[510], boot[511] = 0x55, 0xaa
	}
	putLE16(boot[0x0b:], p.BytesPerSector)
	boot[0x0d] = byte(p.SectorsPerCluster)
	putLE16(boot[0x0e:], p.Reserved)
	boot[0x10] = byte(p.FATs)
	putLE16(boot[0x11:], p.RootEntries)
	putLE16(boot[0x13:], p.TotalSectors)
	boot[0x15] = p.Media
	putLE16(boot[0x16:], p.FATSectors)
	putLE16(boot[0x18:], p.SectorsPerTrack)
	putLE16(boot[0x1a:], p.Heads)
}

const (
	dosAttrReadOnly = 0x01
	dosAttrHidden   = 0x02
	dosAttrSystem   = 0x04
	dosAttrVolume   = 0x08
	dosAttrDir      = 0x10
	dosAttrArchive  = 0x20
	dosAttrLFN      = 0x0f

	dosDeleted = 0xe5
)

var (
	dosName  = Field{Off: 0x00, Len: 8}
	dosExt   = Field{Off: 0x08, Len: 3}
	dosName2 = Field{Off: 0x0c, Len: 10}
	dosTime  = Field{Off: 0x16, Len: 2}
	dosDate  = Field{Off: 0x18, Len: 2}
	dosStart = Field{Off: 0x1a, Len: 2}
	dosSize  = Field{Off: 0x1c, Len: 4}
)

// dosCodec builds the 32 byte FAT entry. Human68k keeps ten more name
// characters where DOS has its reserved bytes.
type dosCodec struct {
	format FormatID
	human  bool
}

func (c *dosCodec) EntrySize() int { return 32 }
func (c *dosCodec) Blank() byte    { return 0x00 }
func (c *dosCodec) Tree() bool     { return true }

func (c *dosCodec) SplitName(name string) (string, string, error) {
	if c.human {
		return splitName(name, 18, 3, false)
	}
	return splitName(name, 8, 3, true)
}

func (c *dosCodec) NewEntry(data []byte) DirectoryEntry {
	e := &dosEntry{c: c}
	e.Data = data
	return e
}

// LinkExtents hides long file name records behind the entry they name.
func (c *dosCodec) LinkExtents(items []DirectoryEntry) {
	for _, e := range items {
		if e.CheckUsed() && e.base().Data[0x0b] == dosAttrLFN {
			e.base().tail = true
		}
	}
}

type dosEntry struct {
	entryBase
	c *dosCodec
}

func (e *dosEntry) CheckUsed() bool {
	return e.Data[0] != 0x00 && e.Data[0] != dosDeleted
}

func (e *dosEntry) Check() (bool, bool) {
	if e.Data[0] == 0x00 {
		return true, true
	}
	if !e.CheckUsed() {
		return true, false
	}
	attr := e.Data[0x0b]
	if attr == dosAttrLFN {
		return true, false
	}
	name := e.Raw()[:11]
	if name[0] == 0x05 {
		name[0] = dosDeleted
	}
	if attr&0xc0 != 0 || !printable(name, dosDeleted) {
		return false, false
	}
	if s := e.StartGroup(); s != 0 && (s < 2 || s >= e.d.alloc.GroupCount()) {
		return false, false
	}
	return true, false
}

func (e *dosEntry) NameField() Field { return dosName }
func (e *dosEntry) ExtField() Field  { return dosExt }

func (e *dosEntry) FileName() string {
	raw := dosName.Raw(e.Data)
	if raw[0] == 0x05 {
		raw[0] = dosDeleted
	}
	name := strings.TrimRight(string(raw), " ")
	if e.c.human {
		name += dosName2.Str(e.Data, 0x00)
	}
	return name
}

func (e *dosEntry) FileExt() string {
	return dosExt.Str(e.Data)
}

func (e *dosEntry) SetFileName(name, ext string) {
	first, rest := name, ""
	if len(name) > 8 {
		first, rest = name[:8], name[8:]
	}
	dosName.SetStr(e.Data, first, ' ')
	if e.Data[0] == dosDeleted {
		e.Data[0] = 0x05
	}
	if e.c.human {
		dosName2.SetStr(e.Data, rest, 0x00)
	}
	dosExt.SetStr(e.Data, ext, ' ')
}

func (e *dosEntry) StartGroup() int     { return dosStart.Uint(e.Data) }
func (e *dosEntry) SetStartGroup(g int) { dosStart.SetUint(e.Data, g) }
func (e *dosEntry) FileSize() int       { return dosSize.Uint(e.Data) }
func (e *dosEntry) SetFileSize(n int)   { dosSize.SetUint(e.Data, n) }

func (e *dosEntry) FileTypeN(n int) int       { return int(e.Data[0x0b]) }
func (e *dosEntry) SetFileTypeN(n int, v int) { e.Data[0x0b] = byte(v) }

func (e *dosEntry) Capabilities() Capability {
	return CapModTime | CapExplicitSize | CapDirectory
}

var dosAttrMap = []struct {
	bit  byte
	flag AttrFlags
}{
	{dosAttrReadOnly, AttrReadOnly},
	{dosAttrHidden, AttrHidden},
	{dosAttrSystem, AttrSystem},
	{dosAttrVolume, AttrVolume},
	{dosAttrDir, AttrDirectory},
	{dosAttrArchive, AttrArchive},
}

func (e *dosEntry) FileAttr() FileAttr {
	raw := e.Data[0x0b]
	a := FileAttr{Origin: int(raw), Format: e.c.format}
	for _, m := range dosAttrMap {
		if raw&m.bit != 0 {
			a.Flags |= m.flag
		}
	}
	if raw&(dosAttrDir|dosAttrVolume) == 0 {
		a.Flags |= AttrBinary
	}
	return a
}

func (e *dosEntry) SetFileAttr(a FileAttr) {
	var raw byte
	for _, m := range dosAttrMap {
		if a.Flags.Has(m.flag) {
			raw |= m.bit
		}
	}
	if raw&(dosAttrDir|dosAttrVolume) == 0 && !a.Flags.Has(AttrReadOnly) {
		raw |= dosAttrArchive
	}
	e.Data[0x0b] = raw
}

func (e *dosEntry) ModTime() time.Time {
	return DosDateTime(uint16(dosDate.Uint(e.Data)), uint16(dosTime.Uint(e.Data)))
}

func (e *dosEntry) SetModTime(t time.Time) {
	dosDate.SetUint(e.Data, int(PackDosDate(t)))
	dosTime.SetUint(e.Data, int(PackDosTime(t)))
}

func (e *dosEntry) Delete() {
	e.Data[0] = dosDeleted
}

func (e *dosEntry) Clear() {
	fill(e.Data, 0)
}
