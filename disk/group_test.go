package disk

import (
	"errors"
	"testing"
)

func TestGroupListAdd(t *testing.T) {
	gl := NewGroupList(2048)
	if err := gl.Add(GroupItem{Group: 4, Next: 5, SectorStart: 32, SectorEnd: 39}); err != nil {
		t.Fatal(err)
	}
	if err := gl.Add(GroupItem{Group: 5, Next: NoGroup, SectorStart: 40, SectorEnd: 43}); err != nil {
		t.Fatal(err)
	}
	if err := gl.Add(GroupItem{Group: 4}); !errors.Is(err, ErrDuplicateGroup) {
		t.Errorf("duplicate Add() error = %v, want ErrDuplicateGroup", err)
	}

	if gl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", gl.Count())
	}
	if gl.Capacity() != 4096 {
		t.Errorf("Capacity() = %d, want 4096", gl.Capacity())
	}
	if got := gl.Last().Sectors(); got != 4 {
		t.Errorf("last Sectors() = %d, want 4", got)
	}
	if got := len(gl.Positions()); got != 12 {
		t.Errorf("len(Positions()) = %d, want 12", got)
	}
	if !gl.Contains(5) || gl.Contains(6) {
		t.Errorf("Contains() wrong")
	}
}

func TestGeometryPos(t *testing.T) {
	g := Geometry2D
	tests := []struct {
		track, side, number int
		want                int
	}{
		{0, 0, 1, 0},
		{0, 1, 1, 16},
		{18, 1, 14, 605},
		{39, 1, 16, 1279},
	}
	for _, tt := range tests {
		got := g.Pos(tt.track, tt.side, tt.number)
		if got != tt.want {
			t.Errorf("Pos(%d,%d,%d) = %d, want %d", tt.track, tt.side, tt.number, got, tt.want)
		}
		tr, sd, n := g.Chs(got)
		if tr != tt.track || sd != tt.side || n != tt.number {
			t.Errorf("Chs(%d) = %d,%d,%d", got, tr, sd, n)
		}
	}
	if g.TotalSectors() != 1280 {
		t.Errorf("TotalSectors() = %d", g.TotalSectors())
	}
}
