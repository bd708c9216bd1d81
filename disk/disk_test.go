package disk

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + 3)
	}
	return out
}

var fixedNow = func() time.Time { return time.Date(1986, 4, 12, 10, 30, 0, 0, time.UTC) }

func formatted(t *testing.T, id FormatID, g Geometry) (*memStore, *Disk) {
	t.Helper()
	st := newMemStore(g, 0xe5)
	d, err := Format(st, id, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Format(%s) error = %v", id, err)
	}
	return st, d
}

// exactSize lists the formats that give back exactly the bytes written.
var exactSize = map[FormatID]bool{
	FormatFBasic:   true,
	FormatL3:       true,
	FormatPasopia:  true,
	FormatX1Hu:     true,
	FormatMSDOS:    true,
	FormatMSX:      true,
	FormatHuman68k: true,
	FormatMZ:       true,
	FormatTFDOS:    true,
	FormatCDOS:     true,
	FormatOS9:      true,
	FormatFalcom:   true,
}

func TestFormatWriteReadEveryFormat(t *testing.T) {
	for _, id := range Formats() {
		id := id
		t.Run(id.String(), func(t *testing.T) {
			st, fd := formatted(t, id, id.Geometries()[0])
			before, err := fd.FreeSpace()
			if err != nil {
				t.Fatal(err)
			}

			d, err := MountAs(st, id, Options{Now: fixedNow})
			if err != nil {
				t.Fatalf("MountAs() error = %v", err)
			}
			if d.Confidence() < 0 || d.State() != StateReady {
				t.Fatalf("confidence %.2f state %d", d.Confidence(), d.State())
			}

			data := pattern(3000)
			if err := d.WriteFile("TEST", data, FileInfo{}); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			got, err := d.ReadFile("TEST")
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if exactSize[id] && len(got) != len(data) {
				t.Errorf("ReadFile() returned %d bytes, want %d", len(got), len(data))
			}
			if len(got) < len(data) || !bytes.Equal(got[:len(data)], data) {
				t.Errorf("ReadFile() does not start with the written data")
			}

			// The file survives a fresh mount.
			again, err := MountAs(st, id, Options{Now: fixedNow})
			if err != nil {
				t.Fatalf("remount error = %v", err)
			}
			got, err = again.ReadFile("TEST")
			if err != nil || len(got) < len(data) || !bytes.Equal(got[:len(data)], data) {
				t.Errorf("ReadFile() after remount = %d bytes, %v", len(got), err)
			}

			if err := again.Delete("TEST"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := again.Stat("TEST"); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("Stat() after Delete error = %v, want ErrFileNotFound", err)
			}
			after, err := again.FreeSpace()
			if err != nil {
				t.Fatal(err)
			}
			if after.FreeGroups != before.FreeGroups {
				t.Errorf("free groups after delete = %d, want %d", after.FreeGroups, before.FreeGroups)
			}
		})
	}
}

func TestFormatRejectsGeometry(t *testing.T) {
	st := newMemStore(Geometry8SS, 0)
	if _, err := Format(st, FormatN88, Options{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Format() on 8SS error = %v, want ErrUnsupported", err)
	}
}

func TestN88Allocation(t *testing.T) {
	st, d := formatted(t, FormatN88, Geometry2D)
	if d.Confidence() != 1 {
		t.Errorf("Confidence() = %.2f, want 1", d.Confidence())
	}

	fs, _ := d.FreeSpace()
	if fs.Groups != 160 || fs.FreeGroups != 156 || fs.FreeBytes != 156*2048 {
		t.Errorf("fresh FreeSpace() = %+v", fs)
	}

	data := pattern(3072)
	if err := d.WriteFile("PROG.BIN", data, FileInfo{}); err != nil {
		t.Fatal(err)
	}
	e, err := d.Find("PROG.BIN")
	if err != nil {
		t.Fatal(err)
	}
	gl, err := d.Strategy().GetAllGroups(e)
	if err != nil {
		t.Fatal(err)
	}
	if g := gl.Groups(); len(g) != 2 || g[0] != 2 || g[1] != 3 {
		t.Errorf("groups = %v, want [2 3]", g)
	}
	for c := 0; c < 3; c++ {
		fat := st.sectors[605+c].data
		if fat[2] != 3 || fat[3] != 0xc4 {
			t.Errorf("table copy %d: [2]=%#x [3]=%#x, want 0x3 0xc4", c, fat[2], fat[3])
		}
	}
	if e.FileTypeN(0) != n88AttrMachine {
		t.Errorf("attribute = %#x, want machine", e.FileTypeN(0))
	}

	got, err := d.ReadFile("PROG.BIN")
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("ReadFile() = %d bytes, %v", len(got), err)
	}

	fs, _ = d.FreeSpace()
	if fs.FreeGroups != 154 || fs.UsedBytes != 2*2048 {
		t.Errorf("FreeSpace() after write = %+v", fs)
	}
}

func TestN88ASCIIEndsAtEOF(t *testing.T) {
	_, d := formatted(t, FormatN88, Geometry2D)
	text := []byte("10 PRINT \"HELLO\"\r\n20 GOTO 10\r\n")
	if err := d.WriteFile("HELLO", text, FileInfo{Attr: FileAttr{Flags: AttrASCII}}); err != nil {
		t.Fatal(err)
	}
	got, err := d.ReadFile("HELLO")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, text) {
		t.Errorf("ReadFile() = %q, want %q", got, text)
	}
	fi, _ := d.Stat("HELLO")
	if !fi.Attr.Flags.Has(AttrASCII) {
		t.Errorf("Stat() flags = %v", fi.Attr.Flags)
	}
}

func TestChainCycle(t *testing.T) {
	_, d := formatted(t, FormatN88, Geometry2D)
	if err := d.WriteFile("LOOP", pattern(3072), FileInfo{}); err != nil {
		t.Fatal(err)
	}
	d.Strategy().SetGroupNumber(3, 2)
	if _, err := d.ReadFile("LOOP"); !errors.Is(err, ErrChainOverrun) {
		t.Errorf("ReadFile() error = %v, want ErrChainOverrun", err)
	}
}

func TestAvailability(t *testing.T) {
	st, d := formatted(t, FormatN88, Geometry2D)
	if err := d.WriteFile("A", pattern(3072), FileInfo{}); err != nil {
		t.Fatal(err)
	}
	d.Strategy().SetGroupNumber(10, 0xc1)
	st.drop(20 * 8)

	av, err := d.Availability()
	if err != nil {
		t.Fatal(err)
	}
	want := map[int]GroupStatus{
		0:  GroupSystem,
		2:  GroupUsedFirst,
		3:  GroupUsedLast,
		4:  GroupFree,
		10: GroupLeak,
		20: GroupMissing,
		74: GroupSystem,
	}
	for g, s := range want {
		if av[g] != s {
			t.Errorf("group %d = %v, want %v", g, av[g], s)
		}
	}
	if av.Count(GroupLeak) != 1 {
		t.Errorf("%d leaks, want 1", av.Count(GroupLeak))
	}
	line := av.Render(16)
	if line[:5] != "SSFL." {
		t.Errorf("Render() starts %q", line[:5])
	}
}

func TestProtection(t *testing.T) {
	_, d := formatted(t, FormatN88, Geometry2D)
	for _, n := range []string{"A", "B"} {
		if err := d.WriteFile(n, pattern(100), FileInfo{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.WriteFile("A", pattern(10), FileInfo{}); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("WriteFile() over A error = %v, want ErrDuplicateName", err)
	}
	if err := d.Rename("A", "B"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Rename() onto B error = %v, want ErrDuplicateName", err)
	}
	if err := d.Rename("A", "TOOLONGNAME"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Rename() to a long name error = %v, want ErrInvalidName", err)
	}
	if err := d.Rename("NONE", "C"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Rename() of a missing file error = %v, want ErrFileNotFound", err)
	}

	fi, _ := d.Stat("A")
	fi.Attr.Flags |= AttrReadOnly
	if err := d.SetAttr("A", fi); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete("A"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Delete() of a locked file error = %v, want ErrReadOnly", err)
	}
	fi.Attr.Flags &^= AttrReadOnly
	if err := d.SetAttr("A", fi); err != nil {
		t.Fatal(err)
	}
	if err := d.Rename("A", "C"); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete("C"); err != nil {
		t.Errorf("Delete() after unlock error = %v", err)
	}
}

func TestLockEveryFormat(t *testing.T) {
	for _, id := range []FormatID{FormatN88, FormatPasopia, FormatX1Hu, FormatMSDOS, FormatMZ, FormatFLEX, FormatOS9, FormatCPM, FormatFalcom} {
		id := id
		t.Run(id.String(), func(t *testing.T) {
			_, d := formatted(t, id, id.Geometries()[0])
			if err := d.WriteFile("LOCKED", pattern(300), FileInfo{}); err != nil {
				t.Fatal(err)
			}
			fi, _ := d.Stat("LOCKED")
			fi.Attr.Flags |= AttrReadOnly
			if err := d.SetAttr("LOCKED", fi); err != nil {
				t.Fatal(err)
			}
			if fi, _ = d.Stat("LOCKED"); !fi.Attr.Flags.Has(AttrReadOnly) {
				t.Fatalf("flags after lock = %v", fi.Attr.Flags)
			}
			fi.Attr.Flags &^= AttrReadOnly
			if err := d.SetAttr("LOCKED", fi); err != nil {
				t.Fatal(err)
			}
			if fi, _ = d.Stat("LOCKED"); fi.Attr.Flags.Has(AttrReadOnly) {
				t.Errorf("flags after unlock = %v", fi.Attr.Flags)
			}
		})
	}
}

func TestCPMExtents(t *testing.T) {
	_, d := formatted(t, FormatCPM, Geometry8SS)
	data := pattern(20000)
	if err := d.WriteFile("BIG.COM", data, FileInfo{}); err != nil {
		t.Fatal(err)
	}

	var records []*cpmEntry
	for _, it := range d.Tree().Current().Items {
		if ce := it.(*cpmEntry); ce.CheckUsed() {
			records = append(records, ce)
		}
	}
	if len(records) != 2 {
		t.Fatalf("%d directory records, want 2", len(records))
	}
	if records[0].Next() != records[1] || !records[1].tail {
		t.Errorf("second record is not linked as a continuation")
	}

	files, _ := d.Files()
	if len(files) != 1 || files[0].Name != "BIG.COM" {
		t.Errorf("Files() = %+v", files)
	}

	again, err := MountAs(d.store, FormatCPM, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := again.ReadFile("BIG.COM")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 157*cpmRecord || !bytes.Equal(got[:len(data)], data) {
		t.Errorf("ReadFile() = %d bytes", len(got))
	}
	if err := again.Delete("BIG.COM"); err != nil {
		t.Fatal(err)
	}
	for _, it := range again.Tree().Current().Items {
		if it.CheckUsed() {
			t.Errorf("record at %d still in use after Delete", it.Location().Index)
		}
	}
}

func TestOS9FirstFit(t *testing.T) {
	_, d := formatted(t, FormatOS9, Geometry2D)

	positions := func(name string) []int {
		t.Helper()
		e, err := d.Find(name)
		if err != nil {
			t.Fatal(err)
		}
		gl, err := d.Strategy().GetAllGroups(e)
		if err != nil {
			t.Fatal(err)
		}
		return gl.Positions()
	}

	if err := d.WriteFile("A", pattern(200), FileInfo{}); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteFile("B", pattern(200), FileInfo{}); err != nil {
		t.Fatal(err)
	}
	if e, _ := d.Find("A"); e.ExtraGroup() != 11 {
		t.Errorf("A descriptor at %d, want 11", e.ExtraGroup())
	}
	if p := positions("B"); len(p) != 1 || p[0] != 14 {
		t.Errorf("B data at %v, want [14]", p)
	}

	if err := d.Delete("A"); err != nil {
		t.Fatal(err)
	}
	data := pattern(768)
	if err := d.WriteFile("C", data, FileInfo{}); err != nil {
		t.Fatal(err)
	}
	if e, _ := d.Find("C"); e.ExtraGroup() != 11 {
		t.Errorf("C descriptor at %d, want 11", e.ExtraGroup())
	}
	p := positions("C")
	want := []int{12, 15, 16}
	if len(p) != len(want) {
		t.Fatalf("C data at %v, want %v", p, want)
	}
	for i := range want {
		if p[i] != want[i] {
			t.Errorf("C data at %v, want %v", p, want)
			break
		}
	}
	got, err := d.ReadFile("C")
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("ReadFile(C) = %d bytes, %v", len(got), err)
	}
}

func TestFLEXFreeChainOrder(t *testing.T) {
	_, d := formatted(t, FormatFLEX, Geometry2D)
	first := func(name string) int {
		t.Helper()
		e, err := d.Find(name)
		if err != nil {
			t.Fatal(err)
		}
		gl, err := d.Strategy().GetAllGroups(e)
		if err != nil {
			t.Fatal(err)
		}
		return gl.Positions()[0]
	}

	if err := d.WriteFile("A", pattern(500), FileInfo{}); err != nil {
		t.Fatal(err)
	}
	if got := first("A"); got != 32 {
		t.Errorf("A starts at %d, want 32", got)
	}
	if err := d.Delete("A"); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteFile("B", pattern(500), FileInfo{}); err != nil {
		t.Fatal(err)
	}
	// Freed sectors go to the end of the chain.
	if got := first("B"); got != 34 {
		t.Errorf("B starts at %d, want 34", got)
	}
}

func TestSubdirectories(t *testing.T) {
	for _, id := range []FormatID{FormatX1Hu, FormatMSDOS, FormatOS9} {
		id := id
		t.Run(id.String(), func(t *testing.T) {
			_, d := formatted(t, id, id.Geometries()[0])
			if err := d.Mkdir("SUB"); err != nil {
				t.Fatalf("Mkdir() error = %v", err)
			}
			if err := d.Mkdir("SUB"); !errors.Is(err, ErrDuplicateName) {
				t.Errorf("second Mkdir() error = %v, want ErrDuplicateName", err)
			}
			fi, err := d.Stat("SUB")
			if err != nil || !fi.IsDir() {
				t.Fatalf("Stat(SUB) = %+v, %v", fi, err)
			}
			if _, err := d.ReadFile("SUB"); !errors.Is(err, ErrUnsupported) {
				t.Errorf("ReadFile() on a directory error = %v", err)
			}

			if err := d.Chdir("SUB"); err != nil {
				t.Fatalf("Chdir() error = %v", err)
			}
			if d.Pwd() != "/SUB" {
				t.Errorf("Pwd() = %q", d.Pwd())
			}
			if files, _ := d.Files(); len(files) != 0 {
				t.Errorf("new directory lists %d files", len(files))
			}
			data := pattern(1000)
			if err := d.WriteFile("INNER", data, FileInfo{}); err != nil {
				t.Fatalf("WriteFile() in SUB error = %v", err)
			}

			if err := d.Chdir(".."); err != nil {
				t.Fatal(err)
			}
			if d.Pwd() != "/" {
				t.Errorf("Pwd() after .. = %q", d.Pwd())
			}
			if _, err := d.Stat("INNER"); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("INNER visible from the root")
			}
			if err := d.Delete("SUB"); !errors.Is(err, ErrDirectoryNotEmpty) {
				t.Errorf("Delete() of a full directory error = %v, want ErrDirectoryNotEmpty", err)
			}

			if err := d.Chdir("/SUB"); err != nil {
				t.Fatal(err)
			}
			got, err := d.ReadFile("INNER")
			if err != nil || !bytes.Equal(got, data) {
				t.Errorf("ReadFile(INNER) = %d bytes, %v", len(got), err)
			}
			if err := d.Delete("INNER"); err != nil {
				t.Fatal(err)
			}
			if err := d.Chdir("/"); err != nil {
				t.Fatal(err)
			}
			if err := d.Delete("SUB"); err != nil {
				t.Errorf("Delete() of an empty directory error = %v", err)
			}
		})
	}
}

func TestMkdirUnsupported(t *testing.T) {
	_, d := formatted(t, FormatN88, Geometry2D)
	if err := d.Mkdir("SUB"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Mkdir() on N88 error = %v, want ErrUnsupported", err)
	}
	if err := d.Chdir("SUB"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Chdir() error = %v, want ErrFileNotFound", err)
	}
}

func TestMZModes(t *testing.T) {
	st, d := formatted(t, FormatMZ, Geometry2D)
	if got := int(st.sectors[15].data[2]^0xff) | int(st.sectors[15].data[3]^0xff)<<8; got != 24 {
		t.Errorf("used counter = %d, want 24", got)
	}

	tests := []struct {
		name  string
		flags AttrFlags
		mode  int
		size  int
	}{
		{"TEXT", AttrASCII, mzModeBSD, 700},
		{"RANDOM", AttrData | AttrRandom, mzModeBRD, 5000},
		{"OBJECT", AttrMachine, mzModeOBJ, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pattern(tt.size)
			info := FileInfo{Attr: FileAttr{Flags: tt.flags}, LoadAddr: 0x1200, ExecAddr: 0x1200}
			if err := d.WriteFile(tt.name, data, info); err != nil {
				t.Fatal(err)
			}
			e, err := d.Find(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if e.FileAttr().Origin != tt.mode {
				t.Errorf("mode = %#x, want %#x", e.FileAttr().Origin, tt.mode)
			}
			again, err := MountAs(st, FormatMZ, Options{})
			if err != nil {
				t.Fatal(err)
			}
			got, err := again.ReadFile(tt.name)
			if err != nil || !bytes.Equal(got, data) {
				t.Errorf("ReadFile() = %d bytes, %v", len(got), err)
			}
		})
	}
}

func TestMountDetects(t *testing.T) {
	tests := []struct {
		id FormatID
		g  Geometry
	}{
		{FormatN88, Geometry2D},
		{FormatMSDOS, Geometry2DD9},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			st, _ := formatted(t, tt.id, tt.g)
			d, err := Mount(st, Options{})
			if err != nil {
				t.Fatalf("Mount() error = %v", err)
			}
			if d.FormatID() != tt.id {
				t.Errorf("FormatID() = %s, want %s", d.FormatID(), tt.id)
			}
			found := false
			for _, c := range Detect(st, Options{}) {
				if c.Format == tt.id && c.Ratio == 1 {
					found = true
				}
			}
			if !found {
				t.Errorf("Detect() did not score %s at 1", tt.id)
			}
		})
	}
}

func TestMountAsWrongFormat(t *testing.T) {
	st := newMemStore(Geometry2D, 0x00)
	if _, err := MountAs(st, FormatOS9, Options{}); !errors.Is(err, ErrFormatInvalid) {
		t.Errorf("MountAs() on a blank disk error = %v, want ErrFormatInvalid", err)
	}
	if _, err := MountAs(st, FormatID(99), Options{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("MountAs() of an unknown format error = %v, want ErrUnsupported", err)
	}
}

func TestNotMounted(t *testing.T) {
	d := &Disk{}
	if _, err := d.Files(); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Files() on an unmounted disk error = %v, want ErrNotMounted", err)
	}
}

func TestParseFormatID(t *testing.T) {
	for _, id := range Formats() {
		got, err := ParseFormatID(id.String())
		if err != nil || got != id {
			t.Errorf("ParseFormatID(%q) = %v, %v", id.String(), got, err)
		}
	}
	if got, err := ParseFormatID("auto"); err != nil || got != FormatNone {
		t.Errorf("ParseFormatID(auto) = %v, %v", got, err)
	}
	if _, err := ParseFormatID("apple"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ParseFormatID(apple) error = %v", err)
	}
}

func TestAttrFlagsText(t *testing.T) {
	a := AttrBASIC | AttrReadOnly
	if a.String() != "basic,readonly" {
		t.Errorf("String() = %q", a.String())
	}
	got, err := ParseAttrFlags(" Basic, readonly ")
	if err != nil || got != a {
		t.Errorf("ParseAttrFlags() = %v, %v", got, err)
	}
	if _, err := ParseAttrFlags("bogus"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ParseAttrFlags(bogus) error = %v", err)
	}
}

func TestAllocErrorIs(t *testing.T) {
	full := &AllocError{}
	partial := &AllocError{Partial: true, Groups: []int{4, 5}}
	if !errors.Is(full, ErrNoFreeSpace) || errors.Is(full, ErrNoFreeSpacePartial) {
		t.Errorf("plain AllocError matches wrongly")
	}
	if !errors.Is(partial, ErrNoFreeSpace) || !errors.Is(partial, ErrNoFreeSpacePartial) {
		t.Errorf("partial AllocError matches wrongly")
	}
}

func TestDiskFull(t *testing.T) {
	_, d := formatted(t, FormatN88, Geometry2D)
	before, _ := d.FreeSpace()
	err := d.WriteFile("HUGE", pattern(before.FreeBytes+1), FileInfo{})
	if !errors.Is(err, ErrNoFreeSpace) {
		t.Fatalf("WriteFile() error = %v, want ErrNoFreeSpace", err)
	}
	after, _ := d.FreeSpace()
	if after.FreeGroups != before.FreeGroups {
		t.Errorf("free groups %d after failed write, want %d", after.FreeGroups, before.FreeGroups)
	}
	if _, err := d.Stat("HUGE"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("failed file is listed")
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		if got := Checksum([]byte(tt.in)); got != tt.want {
			t.Errorf("Checksum(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
