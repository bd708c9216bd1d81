package disk

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

var stampTime = time.Date(1991, 7, 23, 14, 5, 36, 0, time.UTC)

// sameStamp compares a time read back from the disk with the one written,
// down to what the format keeps: FLEX stores the date only, OS-9 stops at
// the minute and FAT style times hold even seconds.
func sameStamp(id FormatID, got, want time.Time) bool {
	if got.Year() != want.Year() || got.Month() != want.Month() || got.Day() != want.Day() {
		return false
	}
	if id == FormatFLEX {
		return true
	}
	if got.Hour() != want.Hour() || got.Minute() != want.Minute() {
		return false
	}
	if id == FormatOS9 {
		return true
	}
	return got.Second() == want.Second()
}

var sampleSizes = []int{100, 700, 3000, 5000, 256, 1}

func sampleName(i int) string { return fmt.Sprintf("F%d", i) }

// groupOwners maps every group a live file holds to the files holding it.
func groupOwners(t *testing.T, d *Disk) map[int][]string {
	t.Helper()
	files, err := d.Files()
	if err != nil {
		t.Fatal(err)
	}
	owners := map[int][]string{}
	for _, f := range files {
		if f.IsDir() || f.Attr.Flags.Has(AttrVolume) {
			continue
		}
		e, err := d.Find(f.Name)
		if err != nil {
			t.Fatal(err)
		}
		gl, err := d.Strategy().GetAllGroups(e)
		if err != nil {
			t.Fatalf("GetAllGroups(%s) error = %v", f.Name, err)
		}
		for _, it := range gl.Items {
			owners[it.Group] = append(owners[it.Group], f.Name)
		}
		if x := e.ExtraGroup(); x != NoGroup {
			owners[x] = append(owners[x], f.Name)
		}
	}
	return owners
}

func TestFormatInvariantsEveryFormat(t *testing.T) {
	for _, id := range Formats() {
		id := id
		t.Run(id.String(), func(t *testing.T) {
			st, _ := formatted(t, id, id.Geometries()[0])

			d, err := MountAs(st, id, Options{Now: fixedNow})
			if err != nil {
				t.Fatalf("MountAs() error = %v", err)
			}
			if d.Confidence() != 1 {
				t.Errorf("fresh disk confidence = %.2f, want 1", d.Confidence())
			}
			found := false
			for _, c := range Detect(st, Options{}) {
				if c.Format == id {
					found = true
					if c.Ratio != 1 {
						t.Errorf("Detect() ratio for %s = %.2f, want 1", id, c.Ratio)
					}
				}
			}
			if !found {
				t.Errorf("Detect() does not offer %s", id)
			}

			info := FileInfo{ModTime: stampTime, LoadAddr: 0x9000, ExecAddr: 0x9010}
			for i, n := range sampleSizes {
				if err := d.WriteFile(sampleName(i), pattern(n+i), info); err != nil {
					t.Fatalf("WriteFile(%s) error = %v", sampleName(i), err)
				}
			}
			if err := d.Delete(sampleName(2)); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}

			again, err := MountAs(st, id, Options{Now: fixedNow})
			if err != nil {
				t.Fatalf("remount error = %v", err)
			}
			if again.Confidence() != 1 {
				t.Errorf("confidence after writes = %.2f, want 1", again.Confidence())
			}
			if _, err := again.Stat(sampleName(2)); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("deleted file Stat() error = %v", err)
			}

			for i, n := range sampleSizes {
				if i == 2 {
					continue
				}
				name := sampleName(i)
				fi, err := again.Stat(name)
				if err != nil {
					t.Fatalf("Stat(%s) error = %v", name, err)
				}
				if fi.Caps&CapModTime != 0 && !sameStamp(id, fi.ModTime, stampTime) {
					t.Errorf("%s ModTime = %v, want %v", name, fi.ModTime, stampTime)
				}
				if fi.Caps&CapAddress != 0 && (fi.LoadAddr != info.LoadAddr || fi.ExecAddr != info.ExecAddr) {
					t.Errorf("%s addresses = %#x/%#x, want %#x/%#x", name, fi.LoadAddr, fi.ExecAddr, info.LoadAddr, info.ExecAddr)
				}
				want := pattern(n + i)
				got, err := again.ReadFile(name)
				if err != nil {
					t.Fatalf("ReadFile(%s) error = %v", name, err)
				}
				if exactSize[id] && len(got) != len(want) {
					t.Errorf("ReadFile(%s) = %d bytes, want %d", name, len(got), len(want))
				}
				if len(got) < len(want) || !bytes.Equal(got[:len(want)], want) {
					t.Errorf("ReadFile(%s) does not start with the written data", name)
				}
			}

			for g, names := range groupOwners(t, again) {
				if len(names) > 1 {
					t.Errorf("group %d is held by %v", g, names)
				}
			}

			fs, err := again.FreeSpace()
			if err != nil {
				t.Fatal(err)
			}
			av, err := again.Availability()
			if err != nil {
				t.Fatal(err)
			}
			if free := av.Count(GroupFree); free != fs.FreeGroups || free*again.Strategy().BytesPerGroup() != fs.FreeBytes {
				t.Errorf("map has %d free groups, FreeSpace() = %+v", free, fs)
			}
			if n := av.Count(GroupLeak); n != 0 {
				t.Errorf("map shows %d leaked groups", n)
			}
		})
	}
}

func TestDiskFullEveryFormat(t *testing.T) {
	for _, id := range Formats() {
		id := id
		t.Run(id.String(), func(t *testing.T) {
			_, d := formatted(t, id, id.Geometries()[0])
			keep := pattern(500)
			if err := d.WriteFile("KEEP", keep, FileInfo{}); err != nil {
				t.Fatal(err)
			}
			before, err := d.FreeSpace()
			if err != nil {
				t.Fatal(err)
			}

			err = d.WriteFile("HUGE", pattern(before.FreeBytes+1), FileInfo{})
			if !errors.Is(err, ErrNoFreeSpace) {
				t.Fatalf("WriteFile() error = %v, want ErrNoFreeSpace", err)
			}

			after, err := d.FreeSpace()
			if err != nil {
				t.Fatal(err)
			}
			if after != before {
				t.Errorf("FreeSpace() after rollback = %+v, want %+v", after, before)
			}
			if _, err := d.Stat("HUGE"); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("failed file is listed, Stat() error = %v", err)
			}
			got, err := d.ReadFile("KEEP")
			if err != nil || len(got) < len(keep) || !bytes.Equal(got[:len(keep)], keep) {
				t.Errorf("KEEP damaged by the rollback: %d bytes, %v", len(got), err)
			}
			if err := d.WriteFile("NEXT", pattern(300), FileInfo{}); err != nil {
				t.Errorf("WriteFile() after rollback error = %v", err)
			}
		})
	}
}

func TestOS9BitmapMatchesFiles(t *testing.T) {
	_, d := formatted(t, FormatOS9, Geometry2D)
	for i, n := range sampleSizes {
		if err := d.WriteFile(sampleName(i), pattern(n), FileInfo{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Delete(sampleName(1)); err != nil {
		t.Fatal(err)
	}

	s := d.Strategy().(*os9Strategy)
	want := map[int]bool{}
	// LSN0, the bitmap, the root descriptor and the root directory.
	for g := 0; g < 1+s.mapSectors()+1+os9RootSectors; g++ {
		want[g] = true
	}
	for g := range groupOwners(t, d) {
		want[g] = true
	}

	for g := 0; g < s.GroupCount(); g++ {
		if got := s.IsUsedGroupNumber(g); got != want[g] {
			t.Errorf("bitmap bit %d = %v, want %v", g, got, want[g])
		}
	}

	empty := s.GetEmptyGroupNumber()
	if empty == NoGroup || want[empty] {
		t.Fatalf("GetEmptyGroupNumber() = %d, which is taken", empty)
	}
	for g := s.mapSectors() + 1; g < empty; g++ {
		if !want[g] {
			t.Errorf("GetEmptyGroupNumber() = %d skipped free LSN %d", empty, g)
			break
		}
	}
}
