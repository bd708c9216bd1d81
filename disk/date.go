package disk

import "time"

// ParseDosDate reads a packed FAT date stamp:
//
//	bits 0-4   day of month, 1-31
//	bits 5-8   month, 1-12
//	bits 9-15  years since 1980
//
// A zero day or month yields time.Time{} so IsZero can be used.
func ParseDosDate(input uint16) time.Time {
	day := input & 0x1f
	month := input & 0x1e0 >> 5
	year := input & 0xfe00 >> 9

	if day == 0 || month == 0 {
		return time.Time{}
	}
	return time.Date(1980+int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
}

// ParseDosTime reads a packed FAT time stamp with two second granularity:
//
//	bits 0-4   seconds / 2
//	bits 5-10  minutes
//	bits 11-15 hours
//
// Out of range values are clamped to 23:59:59.
func ParseDosTime(input uint16) time.Time {
	seconds := int(input&0x1f) * 2
	minutes := input & 0x7e0 >> 5
	hours := input & 0xf800 >> 11

	result := time.Date(1, 1, 1, int(hours), int(minutes), seconds, 0, time.UTC)
	if result.Day() > 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}
	return result
}

// DosDateTime joins a packed date and time. It is zero when the date is.
func DosDateTime(date, tm uint16) time.Time {
	d := ParseDosDate(date)
	if d.IsZero() {
		return d
	}
	t := ParseDosTime(tm)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func PackDosDate(t time.Time) uint16 {
	if t.Year() < 1980 {
		return 0
	}
	return uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
}

func PackDosTime(t time.Time) uint16 {
	return uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
}
