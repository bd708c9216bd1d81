package main

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/paleotronic/diskbasic/container"
	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/internal/checkpoint"
	"github.com/paleotronic/diskbasic/loggy"
)

// session is one mounted image and the filesystem it lives on.
type session struct {
	fs   afero.Fs
	path string
	img  *container.Image
	d    *disk.Disk
	log  *loggy.Logger

	// backups is the folder a copy of the image goes to before each save.
	// Empty disables backups.
	backups string
}

func openSession(fs afero.Fs, filename string, opts disk.Options) (*session, error) {
	img, err := container.Open(fs, filename)
	if err != nil {
		return nil, err
	}
	var d *disk.Disk
	if opts.Format != disk.FormatNone {
		d, err = disk.MountAs(img, opts.Format, opts)
	} else {
		d, err = disk.Mount(img, opts)
	}
	if err != nil {
		return nil, checkpoint.Errorf(err, "%s", filename)
	}
	return &session{fs: fs, path: filename, img: img, d: d, log: opts.Logger}, nil
}

// createSession formats a blank image and writes it to filename.
func createSession(fs afero.Fs, filename string, kind container.Kind, g disk.Geometry, id disk.FormatID, opts disk.Options) (*session, error) {
	img, err := container.New(kind, g)
	if err != nil {
		return nil, err
	}
	d, err := disk.Format(img, id, opts)
	if err != nil {
		return nil, err
	}
	s := &session{fs: fs, path: filename, img: img, d: d, log: opts.Logger}
	return s, s.save()
}

func (s *session) logger() *loggy.Logger {
	if s.log == nil {
		s.log = loggy.Discard()
	}
	return s.log
}

func (s *session) backup() error {
	if s.backups == "" {
		return nil
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil
	}
	clean := strings.NewReplacer(":", "", "\\", "/").Replace(s.path)
	bpath := filepath.Join(s.backups, clean+"."+fts())
	if err := s.fs.MkdirAll(filepath.Dir(bpath), 0755); err != nil {
		return err
	}
	s.logger().Logf("backed up %s to %s", s.path, bpath)
	return afero.WriteFile(s.fs, bpath, data, 0644)
}

func (s *session) save() error {
	if err := s.backup(); err != nil {
		return err
	}
	if err := s.img.Save(s.fs, s.path); err != nil {
		return err
	}
	s.logger().Logf("updated %s", s.path)
	return nil
}

func fts() string {
	t := time.Now()
	return fmt.Sprintf(
		"%.4d%.2d%.2d%.2d%.2d%.2d",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
}

// glob lists the files of the current directory matching pattern.
func (s *session) glob(pattern string) ([]disk.FileInfo, error) {
	files, err := s.d.Files()
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = "*"
	}
	pattern = strings.ToUpper(pattern)
	var out []disk.FileInfo
	for _, f := range files {
		ok, err := path.Match(pattern, strings.ToUpper(f.Name))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *session) catalog(w io.Writer, pattern string) error {
	files, err := s.glob(pattern)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Directory of %s:%s\n\n", filepath.Base(s.path), s.d.Pwd())
	fmt.Fprintf(w, "%-20s  %8s  %2s  %-24s  %s\n", "NAME", "SIZE", "RO", "KIND", "ADDITIONAL")
	for _, f := range files {
		locked := " "
		if f.Attr.Flags.Has(disk.AttrReadOnly) {
			locked = "Y"
		}
		var add []string
		if f.Caps&disk.CapAddress != 0 {
			add = append(add, fmt.Sprintf("(A$%.4X X$%.4X)", f.LoadAddr, f.ExecAddr))
		}
		if !f.ModTime.IsZero() {
			add = append(add, f.ModTime.Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "%-20s  %8d  %2s  %-24s  %s\n", f.Name, f.Size, locked, f.Attr.Flags, strings.Join(add, " "))
	}

	fs, err := s.d.FreeSpace()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d files, %d bytes free\n", len(files), fs.FreeBytes)
	return nil
}

// extract copies every matching file to the folder dest on the host.
func (s *session) extract(pattern, dest string) (int, error) {
	files, err := s.glob(pattern)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, checkpoint.Errorf(disk.ErrFileNotFound, "%q", pattern)
	}
	n := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := s.d.ReadFile(f.Name)
		if err != nil {
			return n, err
		}
		out := filepath.Join(dest, hostName(f.Name))
		if err := afero.WriteFile(s.fs, out, data, 0644); err != nil {
			return n, checkpoint.From(err)
		}
		s.logger().Logf("extracted %s to %s (%d bytes)", f.Name, out, len(data))
		n++
	}
	return n, nil
}

// put stores the host file local on the disk as name. An empty name uses
// the host base name.
func (s *session) put(local, name string, info disk.FileInfo) error {
	data, err := afero.ReadFile(s.fs, local)
	if err != nil {
		return checkpoint.From(err)
	}
	if name == "" {
		name = strings.ToUpper(filepath.Base(local))
	}
	if info.Attr.Flags == 0 {
		info.Attr.Flags = disk.AttrBinary
		if isASCII(data) {
			info.Attr.Flags = disk.AttrASCII
		}
	}
	if info.ModTime.IsZero() {
		if st, err := s.fs.Stat(local); err == nil {
			info.ModTime = st.ModTime()
		}
	}
	if err := s.d.WriteFile(name, data, info); err != nil {
		return err
	}
	return s.save()
}

func (s *session) remove(pattern string) (int, error) {
	files, err := s.glob(pattern)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, checkpoint.Errorf(disk.ErrFileNotFound, "%q", pattern)
	}
	n := 0
	for _, f := range files {
		if err := s.d.Delete(f.Name); err != nil {
			if n > 0 {
				s.save()
			}
			return n, err
		}
		n++
	}
	return n, s.save()
}

func (s *session) rename(from, to string) error {
	if err := s.d.Rename(from, to); err != nil {
		return err
	}
	return s.save()
}

func (s *session) mkdir(name string) error {
	if err := s.d.Mkdir(name); err != nil {
		return err
	}
	return s.save()
}

// setAttr replaces the canonical flags of each matching file. Flags
// prefixed with + or - are added to or removed from the current set.
func (s *session) setAttr(pattern, spec string) error {
	files, err := s.glob(pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return checkpoint.Errorf(disk.ErrFileNotFound, "%q", pattern)
	}
	for _, f := range files {
		flags, err := applyAttrSpec(f.Attr.Flags, spec)
		if err != nil {
			return checkpoint.Errorf(err, "attribute %q", spec)
		}
		info := f
		info.Attr.Flags = flags
		info.ModTime = time.Time{}
		if err := s.d.SetAttr(f.Name, info); err != nil {
			return err
		}
	}
	return s.save()
}

func applyAttrSpec(cur disk.AttrFlags, spec string) (disk.AttrFlags, error) {
	switch {
	case strings.HasPrefix(spec, "+"):
		a, err := disk.ParseAttrFlags(spec[1:])
		return cur | a, err
	case strings.HasPrefix(spec, "-"):
		a, err := disk.ParseAttrFlags(spec[1:])
		return cur &^ a, err
	}
	return disk.ParseAttrFlags(spec)
}

func (s *session) info(w io.Writer) {
	g := s.img.Geometry()
	fmt.Fprintf(w, "Disk path   : %s\n", s.path)
	fmt.Fprintf(w, "Container   : %s\n", s.img.Kind)
	fmt.Fprintf(w, "Checksum    : %s\n", disk.Checksum(s.img.Bytes()))
	if s.img.Name != "" {
		fmt.Fprintf(w, "Image name  : %s\n", s.img.Name)
	}
	fmt.Fprintf(w, "Geometry    : %s (%d tracks, %d sides, %d x %d bytes)\n",
		container.GeometryName(g), g.Tracks, g.Sides, g.SectorsPerTrack, g.SectorSize)
	fmt.Fprintf(w, "Format      : %s (%s)\n", s.d.FormatID(), s.d.FormatID().Description())
	fmt.Fprintf(w, "Confidence  : %.2f\n", s.d.Confidence())
	if n := s.img.Missing(); n > 0 {
		fmt.Fprintf(w, "Missing     : %d sectors\n", n)
	}
	for _, c := range disk.Detect(s.img, disk.Options{Logger: loggy.Discard()}) {
		fmt.Fprintf(w, "  candidate %-10s %.2f\n", c.Format, c.Ratio)
	}
}

func (s *session) free(w io.Writer) error {
	fs, err := s.d.FreeSpace()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "USED: %-12d FREE: %-12d\n", fs.UsedBytes, fs.FreeBytes)
	fmt.Fprintf(w, "GROUPS: %d of %d free\n", fs.FreeGroups, fs.Groups)
	return nil
}

func (s *session) groupMap(w io.Writer, width int) error {
	av, err := s.d.Availability()
	if err != nil {
		return err
	}
	io.WriteString(w, av.Render(width))
	fmt.Fprintf(w, "\nfree %d  used %d  system %d  missing %d  leak %d\n",
		av.Count(disk.GroupFree),
		av.Count(disk.GroupUsed)+av.Count(disk.GroupUsedFirst)+av.Count(disk.GroupUsedLast),
		av.Count(disk.GroupSystem),
		av.Count(disk.GroupMissing),
		av.Count(disk.GroupLeak),
	)
	return nil
}

// hostName makes a disk name safe for the host filesystem.
func hostName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(strings.TrimSpace(name))
}

func isASCII(in []byte) bool {
	for _, v := range in {
		if v > 128 {
			return false
		}
	}
	return true
}
