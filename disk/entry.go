package disk

import (
	"strings"
	"time"
)

// Location is where a directory record lives.
type Location struct {
	Pos    int
	Offset int
	Index  int
}

// entryBase carries the state every entry type shares: the owned record,
// its place on disk and the link to further extents.
type entryBase struct {
	Data []byte
	loc  Location
	d    *Disk
	next DirectoryEntry
	// tail marks a continuation extent that is not listed on its own.
	tail bool

	// aux is a record the entry owns outside the directory, written back
	// with it.
	aux    []byte
	auxPos int
}

func (e *entryBase) base() *entryBase {
	return e
}

func (e *entryBase) Location() Location {
	return e.loc
}

func (e *entryBase) Next() DirectoryEntry {
	return e.next
}

// Raw returns a copy of the decoded record.
func (e *entryBase) Raw() []byte {
	out := make([]byte, len(e.Data))
	copy(out, e.Data)
	return out
}

func (e *entryBase) ExtraGroup() int {
	return NoGroup
}

func (e *entryBase) ModTime() time.Time {
	return time.Time{}
}

func (e *entryBase) SetModTime(t time.Time) {}

func (e *entryBase) LoadAddress() int {
	return 0
}

func (e *entryBase) SetLoadAddress(addr int) {}

func (e *entryBase) ExecAddress() int {
	return 0
}

func (e *entryBase) SetExecAddress(addr int) {}

func (e *entryBase) Capabilities() Capability {
	return 0
}

func (e *entryBase) FileTypeN(n int) int {
	return 0
}

func (e *entryBase) SetFileTypeN(n int, v int) {}

// lastBytesEntry is implemented by entries that record only how much of
// the final sector is used.
type lastBytesEntry interface {
	LastSectorBytes() (int, bool)
}

// FullName joins name and extension the way listings show them.
func FullName(e DirectoryEntry) string {
	if e.FileExt() == "" {
		return e.FileName()
	}
	return e.FileName() + "." + e.FileExt()
}

func isDot(e DirectoryEntry) bool {
	n := e.FileName()
	return e.FileExt() == "" && (n == "." || n == "..")
}

const badNameChars = "\"*/:<>?\\|"

// splitName separates a host name into name and extension and checks both
// against the field widths. With elen zero the whole name goes in the name
// field.
func splitName(s string, nlen, elen int, upper bool) (string, string, error) {
	s = strings.TrimSpace(s)
	if upper {
		s = strings.ToUpper(s)
	}
	name, ext := s, ""
	if elen > 0 {
		if i := strings.LastIndexByte(s, '.'); i > 0 {
			name, ext = s[:i], s[i+1:]
		}
	}
	if name == "" || len(name) > nlen || len(ext) > elen {
		return "", "", ErrInvalidName
	}
	for _, c := range name + ext {
		if c < 0x20 || c > 0x7e || strings.ContainsRune(badNameChars, c) {
			return "", "", ErrInvalidName
		}
	}
	if elen > 0 && strings.ContainsRune(name, '.') {
		return "", "", ErrInvalidName
	}
	return name, ext, nil
}

func sameName(e DirectoryEntry, name, ext string) bool {
	return strings.EqualFold(e.FileName(), name) && strings.EqualFold(e.FileExt(), ext)
}
