// Package container holds disk images in memory and moves them to and from
// image files. It supports plain sector dumps and the D88 format.
package container

import (
	"errors"

	"github.com/paleotronic/diskbasic/disk"
)

var (
	ErrUnknownImage = errors.New("unknown image format")
	ErrBadHeader    = errors.New("bad image header")
	ErrGeometry     = errors.New("geometry not supported by the container")
)

type Kind int

const (
	KindRaw Kind = iota
	KindD88
)

func (k Kind) String() string {
	switch k {
	case KindD88:
		return "d88"
	}
	return "raw"
}

// Sector is one physical sector of an image.
type Sector struct {
	track, side, number int
	data                []byte

	// D88 per-sector fields, kept for writing the image back.
	density, deleted, status byte
}

func (s *Sector) Track() int    { return s.track }
func (s *Sector) Side() int     { return s.side }
func (s *Sector) Number() int   { return s.number }
func (s *Sector) Bytes() []byte { return s.data }

func (s *Sector) Fill(code byte) {
	for i := range s.data {
		s.data[i] = code
	}
}

func (s *Sector) Copy(data []byte) {
	n := copy(s.data, data)
	for i := n; i < len(s.data); i++ {
		s.data[i] = 0
	}
}

// Image is a disk held in memory. It implements disk.SectorStore; sectors
// the source file did not contain are nil.
type Image struct {
	Kind Kind
	geom disk.Geometry
	// by linear position
	sectors []*Sector

	// D88 header fields.
	Name      string
	Protected bool
	Media     byte
}

// New returns a blank image with every sector present and zeroed.
func New(kind Kind, g disk.Geometry) (*Image, error) {
	if !g.Valid() {
		return nil, ErrGeometry
	}
	img := &Image{Kind: kind, geom: g, sectors: make([]*Sector, g.TotalSectors())}
	if kind == KindD88 {
		m, ok := mediaFor(g)
		if !ok {
			return nil, ErrGeometry
		}
		img.Media = m
	}
	for pos := range img.sectors {
		t, s, n := g.Chs(pos)
		img.sectors[pos] = &Sector{track: t, side: s, number: n, data: make([]byte, g.SectorSize)}
	}
	return img, nil
}

func (img *Image) Geometry() disk.Geometry {
	return img.geom
}

func (img *Image) GetSector(track, side, number int) disk.Sector {
	if track < 0 || track >= img.geom.Tracks || side < 0 || side >= img.geom.Sides {
		return nil
	}
	if number < img.geom.FirstSector || number >= img.geom.FirstSector+img.geom.SectorsPerTrack {
		return nil
	}
	return img.GetManagedSector(img.geom.Pos(track, side, number))
}

func (img *Image) GetManagedSector(pos int) disk.Sector {
	if pos < 0 || pos >= len(img.sectors) || img.sectors[pos] == nil {
		return nil
	}
	return img.sectors[pos]
}

// Missing counts the sectors the image does not hold.
func (img *Image) Missing() int {
	n := 0
	for _, s := range img.sectors {
		if s == nil {
			n++
		}
	}
	return n
}

// Drop removes the sector at pos, as a damaged dump would lack it.
func (img *Image) Drop(pos int) {
	if pos >= 0 && pos < len(img.sectors) {
		img.sectors[pos] = nil
	}
}
