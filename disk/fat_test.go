package disk

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
)

func TestFatRegion_AssignMissing(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	present := &memSector{data: make([]byte, 256)}
	store := NewMockSectorStore(mockCtrl)
	store.EXPECT().Geometry().Return(Geometry2D)
	store.EXPECT().GetManagedSector(605).Return(present)
	store.EXPECT().GetManagedSector(606).Return(nil)

	f := NewFatRegion(store, FatParams{Start: 605, Sectors: 1, Copies: 3, Stride: 1})
	err := f.Assign()
	if !errors.Is(err, ErrFatSectorMissing) {
		t.Fatalf("Assign() error = %v, want ErrFatSectorMissing", err)
	}
	if f.Assigned() {
		t.Errorf("Assigned() = true after failure")
	}
}

func TestFatRegion_SetMirrorsCopies(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	sectors := []*MockSector{NewMockSector(mockCtrl), NewMockSector(mockCtrl)}
	buffers := [][]byte{make([]byte, 256), make([]byte, 256)}
	store := NewMockSectorStore(mockCtrl)
	store.EXPECT().Geometry().Return(Geometry2D)
	for i, s := range sectors {
		s.EXPECT().Bytes().Return(buffers[i]).AnyTimes()
		store.EXPECT().GetManagedSector(10 + i).Return(s)
	}

	f := NewFatRegion(store, FatParams{Start: 10, Sectors: 1, Copies: 2, Stride: 1, Offset: 5})
	if err := f.Assign(); err != nil {
		t.Fatal(err)
	}
	f.SetData8(3, 0xc4)

	for i, b := range buffers {
		if b[8] != 0xc4 {
			t.Errorf("copy %d byte 8 = %#x, want 0xc4", i, b[8])
		}
	}
	if !f.CopiesMatch() {
		t.Errorf("CopiesMatch() = false")
	}
	buffers[1][8] = 0
	if f.CopiesMatch() {
		t.Errorf("CopiesMatch() = true after divergence")
	}
}

func TestFatRegion_Packing(t *testing.T) {
	tests := []struct {
		name   string
		params FatParams
		set    func(f *FatRegion)
		check  func(f *FatRegion) bool
	}{
		{
			name:   "12 bit even and odd",
			params: FatParams{Start: 0, Sectors: 1},
			set: func(f *FatRegion) {
				f.SetData12LE(2, 0xabc)
				f.SetData12LE(3, 0x123)
			},
			check: func(f *FatRegion) bool {
				return f.GetData12LE(2) == 0xabc && f.GetData12LE(3) == 0x123 &&
					f.Get(3) == 0xbc && f.Get(4) == 0x3a && f.Get(5) == 0x12
			},
		},
		{
			name:   "inverted storage",
			params: FatParams{Start: 0, Sectors: 1, Invert: true},
			set:    func(f *FatRegion) { f.Set(0, 0x0f) },
			check: func(f *FatRegion) bool {
				return f.Get(0) == 0x0f && f.copies[0][0].Bytes()[0] == 0xf0
			},
		},
		{
			name:   "lsb first bitmap",
			params: FatParams{Start: 0, Sectors: 1},
			set:    func(f *FatRegion) { f.Bit(9, true) },
			check:  func(f *FatRegion) bool { return f.Get(1) == 0x02 && f.BitTest(9) && !f.BitTest(8) },
		},
		{
			name:   "msb first bitmap",
			params: FatParams{Start: 0, Sectors: 1, MSBFirst: true},
			set:    func(f *FatRegion) { f.Bit(9, true) },
			check:  func(f *FatRegion) bool { return f.Get(1) == 0x40 && f.BitTest(9) },
		},
		{
			name:   "read spans sector boundary",
			params: FatParams{Start: 0, Sectors: 2, Offset: 255},
			set:    func(f *FatRegion) { f.SetData16LE(0, 0x1234) },
			check: func(f *FatRegion) bool {
				return f.GetData16LE(0) == 0x1234 && f.copies[0][1].Bytes()[0] == 0x12
			},
		},
		{
			name:   "big endian",
			params: FatParams{Start: 0, Sectors: 1},
			set:    func(f *FatRegion) { f.SetData16BE(4, 0x0401) },
			check:  func(f *FatRegion) bool { return f.Get(4) == 0x04 && f.GetData16BE(4) == 0x0401 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore(Geometry2D, 0)
			f := NewFatRegion(st, tt.params)
			if err := f.Assign(); err != nil {
				t.Fatal(err)
			}
			tt.set(f)
			if !tt.check(f) {
				t.Errorf("unexpected table contents")
			}
		})
	}
}
