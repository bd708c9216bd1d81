package disk

import (
	"testing"
	"time"
)

func TestParseDosDate(t *testing.T) {
	tests := []struct {
		name  string
		input uint16
		want  time.Time
	}{
		{name: "epoch", input: 0x21, want: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "zero day", input: 0x20, want: time.Time{}},
		{name: "zero month", input: 0x01, want: time.Time{}},
		{name: "2024-06-15", input: 44<<9 | 6<<5 | 15, want: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDosDate(tt.input); !got.Equal(tt.want) {
				t.Errorf("ParseDosDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDosTime(t *testing.T) {
	tests := []struct {
		name  string
		input uint16
		want  time.Time
	}{
		{name: "midnight", input: 0, want: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "13:45:30", input: 13<<11 | 45<<5 | 15, want: time.Date(1, 1, 1, 13, 45, 30, 0, time.UTC)},
		{name: "overflow clamps", input: 0xffff, want: time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDosTime(tt.input); !got.Equal(tt.want) {
				t.Errorf("ParseDosTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDosDateTimePack(t *testing.T) {
	in := time.Date(1999, 12, 31, 23, 58, 40, 0, time.UTC)
	got := DosDateTime(PackDosDate(in), PackDosTime(in))
	if !got.Equal(in) {
		t.Errorf("DosDateTime(Pack(%v)) = %v", in, got)
	}
	if PackDosDate(time.Date(1975, 1, 1, 0, 0, 0, 0, time.UTC)) != 0 {
		t.Errorf("dates before 1980 must pack to zero")
	}
}
