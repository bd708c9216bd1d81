package disk

import (
	"fmt"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

// FatParams places an allocation table on disk. Copy c, sector k lives at
// linear position Start + c*Stride + k. Entry bytes begin at Offset within
// the first sector and run on across sector boundaries.
type FatParams struct {
	Start   int
	Sectors int
	Copies  int
	Stride  int
	Offset  int
	// Invert stores every table byte bit-inverted.
	Invert bool
	// MSBFirst numbers bitmap bits from the high bit of each byte.
	MSBFirst bool
}

// FatRegion gives byte, bit and packed access to an allocation table held
// in one or more sectors, with every write mirrored to all copies.
type FatRegion struct {
	store    SectorStore
	p        FatParams
	copies   [][]Sector
	ssize    int
	assigned bool
}

func NewFatRegion(store SectorStore, p FatParams) *FatRegion {
	if p.Copies < 1 {
		p.Copies = 1
	}
	if p.Stride == 0 {
		p.Stride = p.Sectors
	}
	return &FatRegion{store: store, p: p}
}

// Assign resolves every table sector. It fails if any copy is incomplete.
func (f *FatRegion) Assign() error {
	f.assigned = false
	f.ssize = f.store.Geometry().SectorSize
	f.copies = make([][]Sector, f.p.Copies)
	for c := 0; c < f.p.Copies; c++ {
		f.copies[c] = make([]Sector, f.p.Sectors)
		for k := 0; k < f.p.Sectors; k++ {
			pos := f.p.Start + c*f.p.Stride + k
			s := f.store.GetManagedSector(pos)
			if s == nil {
				return checkpoint.Errorf(ErrFatSectorMissing, "table copy %d sector %d (pos %d)", c, k, pos)
			}
			f.copies[c][k] = s
		}
	}
	f.assigned = true
	return nil
}

func (f *FatRegion) Assigned() bool {
	return f.assigned
}

func (f *FatRegion) Params() FatParams {
	return f.p
}

// Len is the number of table bytes in one copy.
func (f *FatRegion) Len() int {
	return f.p.Sectors*f.ssize - f.p.Offset
}

func (f *FatRegion) locate(i int) (int, int, bool) {
	if !f.assigned || i < 0 || i >= f.Len() {
		return 0, 0, false
	}
	abs := f.p.Offset + i
	return abs / f.ssize, abs % f.ssize, true
}

// GetCopy reads byte i of copy c. Out of range reads return zero.
func (f *FatRegion) GetCopy(c, i int) byte {
	k, off, ok := f.locate(i)
	if !ok || c < 0 || c >= len(f.copies) {
		return 0
	}
	v := f.copies[c][k].Bytes()[off]
	if f.p.Invert {
		v ^= 0xff
	}
	return v
}

func (f *FatRegion) Get(i int) byte {
	return f.GetCopy(0, i)
}

// Set writes byte i in every copy. Out of range writes are dropped.
func (f *FatRegion) Set(i int, v byte) {
	k, off, ok := f.locate(i)
	if !ok {
		return
	}
	if f.p.Invert {
		v ^= 0xff
	}
	for c := range f.copies {
		f.copies[c][k].Bytes()[off] = v
	}
}

func (f *FatRegion) bitAddr(n int) (int, byte) {
	if f.p.MSBFirst {
		return n / 8, 0x80 >> uint(n%8)
	}
	return n / 8, 1 << uint(n%8)
}

// Bit sets or clears bitmap bit n.
func (f *FatRegion) Bit(n int, on bool) {
	i, mask := f.bitAddr(n)
	v := f.Get(i)
	if on {
		v |= mask
	} else {
		v &^= mask
	}
	f.Set(i, v)
}

func (f *FatRegion) BitTest(n int) bool {
	i, mask := f.bitAddr(n)
	return f.Get(i)&mask != 0
}

func (f *FatRegion) GetData8(i int) int {
	return int(f.Get(i))
}

func (f *FatRegion) SetData8(i int, v int) {
	f.Set(i, byte(v))
}

// GetData12LE reads packed 12-bit entry i.
func (f *FatRegion) GetData12LE(i int) int {
	off := i * 3 / 2
	v := int(f.Get(off)) | int(f.Get(off+1))<<8
	if i&1 == 1 {
		return v >> 4
	}
	return v & 0xfff
}

func (f *FatRegion) SetData12LE(i int, v int) {
	off := i * 3 / 2
	v &= 0xfff
	if i&1 == 1 {
		f.Set(off, f.Get(off)&0x0f|byte(v<<4))
		f.Set(off+1, byte(v>>4))
		return
	}
	f.Set(off, byte(v))
	f.Set(off+1, f.Get(off+1)&0xf0|byte(v>>8))
}

// GetData16LE reads the 16-bit little-endian value at byte offset i.
func (f *FatRegion) GetData16LE(i int) int {
	return int(f.Get(i)) | int(f.Get(i+1))<<8
}

func (f *FatRegion) SetData16LE(i int, v int) {
	f.Set(i, byte(v))
	f.Set(i+1, byte(v>>8))
}

func (f *FatRegion) GetData16BE(i int) int {
	return int(f.Get(i))<<8 | int(f.Get(i+1))
}

func (f *FatRegion) SetData16BE(i int, v int) {
	f.Set(i, byte(v>>8))
	f.Set(i+1, byte(v))
}

// Fill sets every table byte of every copy to code.
func (f *FatRegion) Fill(code byte) {
	for i := 0; i < f.Len(); i++ {
		f.Set(i, code)
	}
}

// Copy writes data from the start of the table.
func (f *FatRegion) Copy(data []byte) {
	for i := 0; i < len(data) && i < f.Len(); i++ {
		f.Set(i, data[i])
	}
}

// CopiesMatch reports whether all copies hold the same table.
func (f *FatRegion) CopiesMatch() bool {
	for c := 1; c < len(f.copies); c++ {
		for i := 0; i < f.Len(); i++ {
			if f.GetCopy(c, i) != f.Get(i) {
				return false
			}
		}
	}
	return true
}

func (f *FatRegion) String() string {
	return fmt.Sprintf("table at %d, %d sectors x %d copies, offset %d", f.p.Start, f.p.Sectors, f.p.Copies, f.p.Offset)
}
