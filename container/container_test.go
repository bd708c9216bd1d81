package container

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/paleotronic/diskbasic/disk"
)

func TestGeometryForSize(t *testing.T) {
	tests := []struct {
		name string
		size int
		want disk.Geometry
		ok   bool
	}{
		{"2D", 327680, disk.Geometry2D, true},
		{"1D", 143360, disk.Geometry1D, true},
		{"2DD", 737280, disk.Geometry2DD9, true},
		{"2HD 1.44M", 1474560, disk.Geometry2HD18, true},
		{"2HD 1.2M", 1261568, disk.Geometry2HD, true},
		{"8 inch", 256256, disk.Geometry8SS, true},
		{"odd", 1000, disk.Geometry{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GeometryForSize(tt.size)
			if ok != tt.ok || got != tt.want {
				t.Errorf("GeometryForSize(%d) = %v, %v, want %v, %v", tt.size, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestKnownGeometriesUnique(t *testing.T) {
	seen := map[int]bool{}
	for _, g := range KnownGeometries {
		if seen[g.TotalBytes()] {
			t.Errorf("two geometries are %d bytes", g.TotalBytes())
		}
		seen[g.TotalBytes()] = true
	}
}

func TestParseRaw(t *testing.T) {
	data := make([]byte, disk.Geometry2D.TotalBytes())
	data[256*3+7] = 0x42
	img, err := ParseRaw(data)
	if err != nil {
		t.Fatalf("ParseRaw() error = %v", err)
	}
	if img.Geometry() != disk.Geometry2D {
		t.Errorf("Geometry() = %v", img.Geometry())
	}
	s := img.GetSector(0, 0, 4)
	if s == nil || s.Bytes()[7] != 0x42 {
		t.Errorf("GetSector(0, 0, 4) does not hold the byte written at position 3")
	}
	if !bytes.Equal(img.Raw(), data) {
		t.Errorf("Raw() differs from the parsed dump")
	}

	if _, err := ParseRaw(make([]byte, 1000)); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("ParseRaw(1000 bytes) error = %v, want ErrUnknownImage", err)
	}
}

func TestGetSectorBounds(t *testing.T) {
	img, _ := New(KindRaw, disk.Geometry2D)
	tests := []struct {
		name                string
		track, side, number int
		present             bool
	}{
		{"first", 0, 0, 1, true},
		{"last", 39, 1, 16, true},
		{"sector zero", 0, 0, 0, false},
		{"sector past track", 0, 0, 17, false},
		{"side 2", 0, 2, 1, false},
		{"track 40", 40, 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := img.GetSector(tt.track, tt.side, tt.number) != nil; got != tt.present {
				t.Errorf("GetSector(%d, %d, %d) present = %v, want %v", tt.track, tt.side, tt.number, got, tt.present)
			}
		})
	}
}

func TestD88RoundTrip(t *testing.T) {
	img, err := New(KindD88, disk.Geometry2D)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	img.Name = "TESTDISK"
	img.Protected = true
	img.GetSector(18, 1, 14).Fill(0xaa)
	img.Drop(5)

	data := img.D88()
	if !IsD88(data) {
		t.Fatalf("IsD88() = false on an encoded image")
	}
	back, err := ParseD88(data)
	if err != nil {
		t.Fatalf("ParseD88() error = %v", err)
	}
	if back.Geometry() != disk.Geometry2D {
		t.Errorf("Geometry() = %v, want 2D", back.Geometry())
	}
	if back.Name != "TESTDISK" || !back.Protected || back.Media != Media2D {
		t.Errorf("header = %q %v %#x", back.Name, back.Protected, back.Media)
	}
	if back.Missing() != 1 || back.GetManagedSector(5) != nil {
		t.Errorf("Missing() = %d, want the dropped sector only", back.Missing())
	}
	if s := back.GetSector(18, 1, 14); s == nil || s.Bytes()[100] != 0xaa {
		t.Errorf("sector 18/1/14 lost its contents")
	}
	if !bytes.Equal(back.D88(), data) {
		t.Errorf("re-encoding changed the image")
	}
}

func TestParseD88TrackEnd(t *testing.T) {
	img, _ := New(KindD88, disk.Geometry2D)
	last := disk.Geometry2D.TotalSectors() - 1
	img.GetManagedSector(last).Fill(0x5a)
	full := img.D88()

	tests := []struct {
		name    string
		cut     int
		wantErr bool
	}{
		{"last track ends the image", 0, false},
		{"last sector cut short", 10, true},
		{"last sector header only", 256, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), full[:len(full)-tt.cut]...)
			putLE32(data[0x1c:], len(data))
			back, err := ParseD88(data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseD88() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if s := back.GetManagedSector(last); s == nil || s.Bytes()[0] != 0x5a {
				t.Errorf("final sector lost its contents")
			}
		})
	}
}

func TestParseD88Truncated(t *testing.T) {
	img, _ := New(KindD88, disk.Geometry2D)
	data := img.D88()
	putLE32(data[0x1c:], len(data)+100)
	if IsD88(data) {
		t.Errorf("IsD88() accepted a size past the end of the data")
	}
	if _, err := ParseD88(data[:0x100]); !errors.Is(err, ErrBadHeader) {
		t.Errorf("ParseD88(short) error = %v, want ErrBadHeader", err)
	}
}

func TestOpenSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	tests := []struct {
		name string
		path string
		kind Kind
	}{
		{"raw", "/images/blank.2d", KindRaw},
		{"d88", "/images/blank.d88", KindD88},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Create(fs, tt.path, tt.kind, disk.Geometry2D)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			img.GetManagedSector(10).Fill(0x5a)
			if err := img.Save(fs, tt.path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			back, err := Open(fs, tt.path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if back.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", back.Kind, tt.kind)
			}
			if back.GetManagedSector(10).Bytes()[0] != 0x5a {
				t.Errorf("sector 10 not written back")
			}
		})
	}

	if _, err := Open(fs, "/images/none.d88"); err == nil {
		t.Errorf("Open() of a missing file succeeded")
	}
}

func TestMountThroughContainer(t *testing.T) {
	fs := afero.NewMemMapFs()
	img, err := New(KindD88, disk.Geometry2D)
	if err != nil {
		t.Fatal(err)
	}
	d, err := disk.Format(img, disk.FormatN88, disk.Options{})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	payload := bytes.Repeat([]byte{0x3e, 0x01}, 700)
	if err := d.WriteFile("PROG.BIN", payload, disk.FileInfo{Attr: disk.FileAttr{Flags: disk.AttrMachine | disk.AttrBinary}}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := img.Save(fs, "/n88.d88"); err != nil {
		t.Fatal(err)
	}

	back, err := Open(fs, "/n88.d88")
	if err != nil {
		t.Fatal(err)
	}
	m, err := disk.Mount(back, disk.Options{Format: disk.FormatN88})
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	got, err := m.ReadFile("PROG.BIN")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got[:len(payload)], payload) {
		t.Errorf("ReadFile() differs from what was written")
	}
}
