package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/paleotronic/diskbasic/container"
	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/loggy"
)

func TestSmartSplit(t *testing.T) {
	tests := []struct {
		line string
		verb string
		args []string
	}{
		{"", "", nil},
		{"cat", "cat", nil},
		{"  cat   *.BAS ", "cat", []string{"*.BAS"}},
		{`put "my file.bin" PROG`, "put", []string{"my file.bin", "PROG"}},
		{`get a\ b .`, "get", []string{"a b", "."}},
	}
	for _, tt := range tests {
		verb, args := smartSplit(tt.line)
		if verb != tt.verb {
			t.Errorf("smartSplit(%q) verb = %q, want %q", tt.line, verb, tt.verb)
		}
		if len(args) != len(tt.args) {
			t.Errorf("smartSplit(%q) args = %q, want %q", tt.line, args, tt.args)
			continue
		}
		for i := range args {
			if args[i] != tt.args[i] {
				t.Errorf("smartSplit(%q) args = %q, want %q", tt.line, args, tt.args)
				break
			}
		}
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"", 0, true},
		{"4096", 4096, true},
		{"$C000", 0xc000, true},
		{"0x8000", 0x8000, true},
		{"0X12", 0x12, true},
		{"$10000", 0, false},
		{"zz", 0, false},
	}
	for _, tt := range tests {
		got, err := parseAddr(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parseAddr(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestApplyAttrSpec(t *testing.T) {
	cur := disk.AttrASCII | disk.AttrReadOnly
	tests := []struct {
		spec string
		want disk.AttrFlags
	}{
		{"+hidden", cur | disk.AttrHidden},
		{"-readonly", disk.AttrASCII},
		{"machine,binary", disk.AttrMachine | disk.AttrBinary},
	}
	for _, tt := range tests {
		got, err := applyAttrSpec(cur, tt.spec)
		if err != nil || got != tt.want {
			t.Errorf("applyAttrSpec(%q) = %v, %v, want %v", tt.spec, got, err, tt.want)
		}
	}
	if _, err := applyAttrSpec(cur, "+sticky"); err == nil {
		t.Errorf("applyAttrSpec(+sticky) accepted an unknown flag")
	}
}

func TestHostName(t *testing.T) {
	if got := hostName(" A/B:C D "); got != "A_B_C_D" {
		t.Errorf("hostName() = %q", got)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	opts := disk.Options{Logger: loggy.Discard()}
	for _, dir := range []string{"/host", "/out"} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	s, err := createSession(fs, "/work.d88", container.KindD88, disk.Geometry2D, disk.FormatN88, opts)
	if err != nil {
		t.Fatalf("createSession() error = %v", err)
	}
	s.backups = "/bk"

	text := []byte("10 PRINT \"HI\"\r\n")
	if err := afero.WriteFile(fs, "/host/hello.bas", text, 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.put("/host/hello.bas", "", disk.FileInfo{}); err != nil {
		t.Fatalf("put() error = %v", err)
	}
	if backups, _ := afero.Glob(fs, "/bk/work.d88.*"); len(backups) == 0 {
		t.Errorf("no backup written before save")
	}

	// Everything below works on the saved image.
	s, err = openSession(fs, "/work.d88", opts)
	if err != nil {
		t.Fatalf("openSession() error = %v", err)
	}
	if s.d.FormatID() != disk.FormatN88 {
		t.Errorf("detected %s, want n88", s.d.FormatID())
	}

	var info bytes.Buffer
	s.info(&info)
	if sum := disk.Checksum(s.img.Bytes()); !strings.Contains(info.String(), "Checksum    : "+sum) {
		t.Errorf("info() does not show the image checksum:\n%s", info.String())
	}

	var out bytes.Buffer
	if err := s.catalog(&out, "*.bas"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "HELLO.BAS") || !strings.Contains(out.String(), "1 files") {
		t.Errorf("catalog() =\n%s", out.String())
	}

	n, err := s.extract("HELLO.*", "/out")
	if err != nil || n != 1 {
		t.Fatalf("extract() = %d, %v", n, err)
	}
	got, err := afero.ReadFile(fs, "/out/HELLO.BAS")
	if err != nil || !bytes.Equal(got, text) {
		t.Errorf("extracted %q, %v", got, err)
	}

	if err := s.setAttr("HELLO.BAS", "+readonly"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.remove("HELLO.BAS"); !errors.Is(err, disk.ErrReadOnly) {
		t.Errorf("remove() of a locked file error = %v", err)
	}
	if err := s.setAttr("HELLO.BAS", "-readonly"); err != nil {
		t.Fatal(err)
	}
	if err := s.rename("HELLO.BAS", "BYE.BAS"); err != nil {
		t.Fatal(err)
	}
	if n, err := s.remove("BYE.*"); err != nil || n != 1 {
		t.Errorf("remove() = %d, %v", n, err)
	}
	if _, err := s.remove("*"); !errors.Is(err, disk.ErrFileNotFound) {
		t.Errorf("remove() on an empty disk error = %v", err)
	}

	out.Reset()
	if err := s.free(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "156 of 160 free") {
		t.Errorf("free() = %q", out.String())
	}
}

func TestSessionMkdirUnsupported(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := createSession(fs, "/plain.d88", container.KindD88, disk.Geometry2D, disk.FormatN88, disk.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.mkdir("SUB"); !errors.Is(err, disk.ErrUnsupported) {
		t.Errorf("mkdir() error = %v, want ErrUnsupported", err)
	}
}

func TestKindForName(t *testing.T) {
	if kindForName("GAME.D88") != container.KindD88 {
		t.Errorf("GAME.D88 is not a D88 image")
	}
	if kindForName("game.dsk") != container.KindRaw {
		t.Errorf("game.dsk is not raw")
	}
}

func TestDiskCompletions(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := createSession(fs, "/hu.dsk", container.KindRaw, disk.Geometry2D, disk.FormatX1Hu, disk.Options{Logger: loggy.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/sample.bas", []byte("10 END\r\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.put("/sample.bas", "", disk.FileInfo{}); err != nil {
		t.Fatal(err)
	}
	if err := s.mkdir("SUB"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		prefix   string
		dirsOnly bool
		want     []string
	}{
		{"s", false, []string{"AMPLE.BAS", "UB"}},
		{"S", true, []string{"UB"}},
		{"SA", false, []string{"MPLE.BAS"}},
		{"x", false, nil},
	}
	for _, tt := range tests {
		got := diskCompletions(s, tt.prefix, tt.dirsOnly)
		if len(got) != len(tt.want) {
			t.Errorf("diskCompletions(%q, %v) = %q, want %q", tt.prefix, tt.dirsOnly, got, tt.want)
			continue
		}
		for i := range got {
			if string(got[i]) != tt.want[i] {
				t.Errorf("diskCompletions(%q, %v) = %q, want %q", tt.prefix, tt.dirsOnly, got, tt.want)
				break
			}
		}
	}
}
