package disk

import (
	"sort"
	"strings"
)

type FormatID int

const (
	FormatNone FormatID = iota
	FormatN88
	FormatFBasic
	FormatL3
	FormatPasopia
	FormatSMC777
	FormatNewDOS
	FormatX1Hu
	FormatMSDOS
	FormatMSX
	FormatHuman68k
	FormatMZ
	FormatTFDOS
	FormatCDOS
	FormatFLEX
	FormatOS9
	FormatCPM
	FormatFalcom
)

// formatSpec describes one supported filesystem and builds its engines.
type formatSpec struct {
	id          FormatID
	name        string
	description string
	geometries  []Geometry
	// inverted formats store every sector bit-inverted.
	inverted    bool
	newStrategy func(d *Disk) AllocationStrategy
	newCodec    func(d *Disk) DirectoryCodec
}

var registry = map[FormatID]*formatSpec{}

func register(fs *formatSpec) {
	registry[fs.id] = fs
}

func (f FormatID) String() string {
	if fs, ok := registry[f]; ok {
		return fs.name
	}
	return "none"
}

func (f FormatID) Description() string {
	if fs, ok := registry[f]; ok {
		return fs.description
	}
	return ""
}

// Geometries lists the layouts the format can live on. The first one is
// used when formatting without a preference.
func (f FormatID) Geometries() []Geometry {
	if fs, ok := registry[f]; ok {
		return fs.geometries
	}
	return nil
}

func ParseFormatID(s string) (FormatID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return FormatNone, nil
	}
	for id, fs := range registry {
		if fs.name == s {
			return id, nil
		}
	}
	return FormatNone, ErrUnsupported
}

// Formats lists every registered format in detection order.
func Formats() []FormatID {
	out := make([]FormatID, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (fs *formatSpec) fits(g Geometry) bool {
	for _, fg := range fs.geometries {
		if fg == g {
			return true
		}
	}
	return false
}
