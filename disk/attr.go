package disk

import "strings"

// AttrFlags is the canonical attribute set shared by every format.
type AttrFlags uint32

const (
	AttrASCII AttrFlags = 1 << iota
	AttrBinary
	AttrMachine
	AttrBASIC
	AttrData
	AttrDirectory
	AttrVolume
	AttrReadOnly
	AttrSystem
	AttrHidden
	AttrEncrypted
	AttrRandom
	AttrArchive
	AttrVerify
)

var attrNames = []struct {
	flag AttrFlags
	name string
}{
	{AttrASCII, "ascii"},
	{AttrBinary, "binary"},
	{AttrMachine, "machine"},
	{AttrBASIC, "basic"},
	{AttrData, "data"},
	{AttrDirectory, "dir"},
	{AttrVolume, "volume"},
	{AttrReadOnly, "readonly"},
	{AttrSystem, "system"},
	{AttrHidden, "hidden"},
	{AttrEncrypted, "encrypted"},
	{AttrRandom, "random"},
	{AttrArchive, "archive"},
	{AttrVerify, "verify"},
}

func (a AttrFlags) Has(f AttrFlags) bool {
	return a&f == f
}

func (a AttrFlags) String() string {
	var parts []string
	for _, n := range attrNames {
		if a&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseAttrFlags reads a comma separated list as produced by String.
func ParseAttrFlags(s string) (AttrFlags, error) {
	var a AttrFlags
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		found := false
		for _, n := range attrNames {
			if n.name == p {
				a |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, ErrUnsupported
		}
	}
	return a, nil
}

// FileAttr pairs the canonical flags with the format's own file type
// value, so that an entry copied within one format keeps its exact type.
type FileAttr struct {
	Flags  AttrFlags
	Origin int
	Format FormatID
}

// Native returns Origin when the attribute came from format f.
func (a FileAttr) Native(f FormatID) (int, bool) {
	if a.Format == f && f != FormatNone {
		return a.Origin, true
	}
	return 0, false
}
