package container

import (
	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

// KnownGeometries are the layouts a plain dump is recognised by. Sizes
// must be unique.
var KnownGeometries = []disk.Geometry{
	disk.Geometry2D,
	disk.Geometry1D,
	disk.GeometrySMC,
	disk.Geometry1DD9,
	disk.Geometry2DD9,
	disk.Geometry2HD18,
	disk.Geometry2HD,
	disk.Geometry8SS,
}

// GeometryForSize finds the known geometry of a dump of size bytes.
func GeometryForSize(size int) (disk.Geometry, bool) {
	for _, g := range KnownGeometries {
		if g.TotalBytes() == size {
			return g, true
		}
	}
	return disk.Geometry{}, false
}

// ParseRaw reads a plain sector dump, tracks in order, sides interleaved.
func ParseRaw(data []byte) (*Image, error) {
	g, ok := GeometryForSize(len(data))
	if !ok {
		return nil, checkpoint.Errorf(ErrUnknownImage, "no geometry is %d bytes", len(data))
	}
	img, err := New(KindRaw, g)
	if err != nil {
		return nil, err
	}
	for pos, s := range img.sectors {
		copy(s.data, data[pos*g.SectorSize:])
	}
	return img, nil
}

// Raw returns the image as a plain dump. Missing sectors are zero.
func (img *Image) Raw() []byte {
	ss := img.geom.SectorSize
	out := make([]byte, img.geom.TotalBytes())
	for pos, s := range img.sectors {
		if s != nil {
			copy(out[pos*ss:], s.data)
		}
	}
	return out
}

var geometryNames = []string{"2d", "1d", "smc", "1dd9", "2dd9", "2hd18", "2hd", "8ss"}

// GeometryName gives the short name of a known geometry.
func GeometryName(g disk.Geometry) string {
	for i, kg := range KnownGeometries {
		if kg == g {
			return geometryNames[i]
		}
	}
	return "custom"
}

// ParseGeometry looks a known geometry up by short name.
func ParseGeometry(s string) (disk.Geometry, error) {
	for i, n := range geometryNames {
		if n == s {
			return KnownGeometries[i], nil
		}
	}
	return disk.Geometry{}, checkpoint.Errorf(ErrGeometry, "unknown geometry %q", s)
}
