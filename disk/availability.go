package disk

import "strings"

type GroupStatus byte

const (
	GroupFree GroupStatus = iota
	GroupSystem
	GroupUsed
	GroupUsedFirst
	GroupUsedLast
	GroupMissing
	GroupLeak
)

var statusGlyph = map[GroupStatus]byte{
	GroupFree:      '.',
	GroupSystem:    'S',
	GroupUsed:      'o',
	GroupUsedFirst: 'F',
	GroupUsedLast:  'L',
	GroupMissing:   'x',
	GroupLeak:      '!',
}

func (s GroupStatus) String() string {
	switch s {
	case GroupFree:
		return "free"
	case GroupSystem:
		return "system"
	case GroupUsed:
		return "used"
	case GroupUsedFirst:
		return "first"
	case GroupUsedLast:
		return "last"
	case GroupMissing:
		return "missing"
	case GroupLeak:
		return "leak"
	}
	return "unknown"
}

// Availability is the per-group status map of a disk.
type Availability []GroupStatus

func (av Availability) Count(s GroupStatus) int {
	n := 0
	for _, v := range av {
		if v == s {
			n++
		}
	}
	return n
}

// Render draws the map with width groups per line.
func (av Availability) Render(width int) string {
	if width <= 0 {
		width = 64
	}
	var sb strings.Builder
	for i, v := range av {
		if i > 0 && i%width == 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte(statusGlyph[v])
	}
	sb.WriteByte('\n')
	return sb.String()
}

// FreeSpace summarises the allocator state.
type FreeSpace struct {
	FreeBytes  int
	UsedBytes  int
	FreeGroups int
	Groups     int
}
