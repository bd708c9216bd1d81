package container

import (
	"bytes"

	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

/*
	D88 images: a 0x2b0 byte header with a track offset table, then each
	track as a run of sectors, each with a 16 byte header of its own.
*/

const (
	d88HeaderSize   = 0x2b0
	d88Tracks       = 164
	d88SectorHeader = 0x10

	d88Protect = 0x10
	d88Deleted = 0x10
)

// D88 media codes.
const (
	Media2D  byte = 0x00
	Media2DD byte = 0x10
	Media2HD byte = 0x20
	Media1D  byte = 0x30
	Media1DD byte = 0x40
)

func mediaFor(g disk.Geometry) (byte, bool) {
	switch g {
	case disk.Geometry2D:
		return Media2D, true
	case disk.Geometry1D, disk.GeometrySMC, disk.Geometry8SS:
		return Media1D, true
	case disk.Geometry2DD9:
		return Media2DD, true
	case disk.Geometry1DD9:
		return Media1DD, true
	case disk.Geometry2HD18, disk.Geometry2HD:
		return Media2HD, true
	}
	return 0, false
}

type HeaderD88 struct {
	Data [d88HeaderSize]byte
}

func (h *HeaderD88) SetData(data []byte) {
	copy(h.Data[:], data)
}

func (h *HeaderD88) GetName() string {
	n := h.Data[0x00:0x11]
	if i := bytes.IndexByte(n, 0); i >= 0 {
		n = n[:i]
	}
	return string(n)
}

func (h *HeaderD88) GetProtect() bool {
	return h.Data[0x1a]&d88Protect != 0
}

func (h *HeaderD88) GetMedia() byte {
	return h.Data[0x1b]
}

func (h *HeaderD88) GetDiskSize() int {
	return le32(h.Data[0x1c:])
}

func (h *HeaderD88) GetTrackOffset(i int) int {
	return le32(h.Data[0x20+i*4:])
}

func (h *HeaderD88) SetTrackOffset(i, off int) {
	putLE32(h.Data[0x20+i*4:], off)
}

func le16(b []byte) int {
	return int(b[0]) | int(b[1])<<8
}

func le32(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16 | int(b[3])<<24
}

func putLE16(b []byte, v int) {
	b[0], b[1] = byte(v), byte(v>>8)
}

func putLE32(b []byte, v int) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

// IsD88 checks the header size field and the first track offset.
func IsD88(data []byte) bool {
	if len(data) < d88HeaderSize {
		return false
	}
	h := &HeaderD88{}
	h.SetData(data)
	size := h.GetDiskSize()
	if size < d88HeaderSize || size > len(data) {
		return false
	}
	for i := 0; i < d88Tracks; i++ {
		if off := h.GetTrackOffset(i); off != 0 {
			return off >= d88HeaderSize && off < size
		}
	}
	return true
}

type d88Sector struct {
	c, h, r, n int
	sector     *Sector
}

// ParseD88 reads a D88 image. Sectors outside the geometry the header and
// sector IDs imply are ignored.
func ParseD88(data []byte) (*Image, error) {
	if !IsD88(data) {
		return nil, checkpoint.From(ErrBadHeader)
	}
	h := &HeaderD88{}
	h.SetData(data)
	size := h.GetDiskSize()

	var found []d88Sector
	maxC, maxH, spt, ss, minR := 0, 0, 0, 0, 0xff
	for i := 0; i < d88Tracks; i++ {
		off := h.GetTrackOffset(i)
		if off == 0 {
			continue
		}
		count := 0
		for k := 0; ; k++ {
			if k > 0 && k >= count {
				break
			}
			if off+d88SectorHeader > size {
				return nil, checkpoint.Errorf(ErrBadHeader, "track %d runs past the image", i)
			}
			sh := data[off : off+d88SectorHeader]
			if k == 0 {
				count = le16(sh[0x04:])
				if count == 0 {
					break
				}
			}
			ds := le16(sh[0x0e:])
			if off+d88SectorHeader+ds > size {
				return nil, checkpoint.Errorf(ErrBadHeader, "sector data runs past the image on track %d", i)
			}
			s := d88Sector{c: int(sh[0]), h: int(sh[1]), r: int(sh[2]), n: int(sh[3])}
			s.sector = &Sector{
				track:   s.c,
				side:    s.h,
				number:  s.r,
				data:    append([]byte(nil), data[off+d88SectorHeader:off+d88SectorHeader+ds]...),
				density: sh[0x06],
				deleted: sh[0x07],
				status:  sh[0x08],
			}
			found = append(found, s)
			if s.c > maxC {
				maxC = s.c
			}
			if s.h > maxH {
				maxH = s.h
			}
			if s.r < minR {
				minR = s.r
			}
			if ds > ss {
				ss = ds
			}
			off += d88SectorHeader + ds
		}
		if count > spt {
			spt = count
		}
	}

	sides := maxH + 1
	switch h.GetMedia() {
	case Media1D, Media1DD:
		sides = 1
	}
	g := fitGeometry(maxC+1, sides, spt, ss)
	if minR != 0xff {
		g.FirstSector = minR
	}
	img := &Image{
		Kind:      KindD88,
		geom:      g,
		sectors:   make([]*Sector, g.TotalSectors()),
		Name:      h.GetName(),
		Protected: h.GetProtect(),
		Media:     h.GetMedia(),
	}
	for _, s := range found {
		if s.c >= g.Tracks || s.h >= g.Sides || s.r < g.FirstSector || s.r >= g.FirstSector+g.SectorsPerTrack {
			continue
		}
		if len(s.sector.data) != g.SectorSize {
			continue
		}
		img.sectors[g.Pos(s.c, s.h, s.r)] = s.sector
	}
	return img, nil
}

// fitGeometry prefers the smallest known geometry that holds every sector
// found, so a dump missing its last tracks still mounts.
func fitGeometry(tracks, sides, spt, ss int) disk.Geometry {
	best := disk.Geometry{}
	for _, g := range KnownGeometries {
		if g.Sides != sides || g.SectorsPerTrack != spt || g.SectorSize != ss || g.Tracks < tracks {
			continue
		}
		if !best.Valid() || g.Tracks < best.Tracks {
			best = g
		}
	}
	if best.Valid() {
		return best
	}
	return disk.Geometry{Tracks: tracks, Sides: sides, SectorsPerTrack: spt, SectorSize: ss, FirstSector: 1}
}

func sizeCode(ss int) byte {
	var n byte
	for 128<<n < ss {
		n++
	}
	return n
}

// D88 returns the image in D88 form.
func (img *Image) D88() []byte {
	h := &HeaderD88{}
	copy(h.Data[0x00:0x10], img.Name)
	if img.Protected {
		h.Data[0x1a] = d88Protect
	}
	h.Data[0x1b] = img.Media

	g := img.geom
	var body bytes.Buffer
	for t := 0; t < g.Tracks*g.Sides && t < d88Tracks; t++ {
		var run []*Sector
		for n := 0; n < g.SectorsPerTrack; n++ {
			if s := img.sectors[t*g.SectorsPerTrack+n]; s != nil {
				run = append(run, s)
			}
		}
		if len(run) == 0 {
			continue
		}
		h.SetTrackOffset(t, d88HeaderSize+body.Len())
		for _, s := range run {
			sh := make([]byte, d88SectorHeader)
			sh[0], sh[1], sh[2] = byte(s.track), byte(s.side), byte(s.number)
			sh[3] = sizeCode(len(s.data))
			putLE16(sh[0x04:], len(run))
			sh[0x06], sh[0x07], sh[0x08] = s.density, s.deleted, s.status
			putLE16(sh[0x0e:], len(s.data))
			body.Write(sh)
			body.Write(s.data)
		}
	}
	putLE32(h.Data[0x1c:], d88HeaderSize+body.Len())
	return append(h.Data[:], body.Bytes()...)
}
