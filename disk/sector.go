package disk

// Sector is one physical sector held by an image container.
type Sector interface {
	Track() int
	Side() int
	Number() int
	Bytes() []byte
	// Fill sets every byte of the sector to code.
	Fill(code byte)
	// Copy replaces the sector contents, truncating or zero padding data.
	Copy(data []byte)
}

// Generated mock using mockgen:
//  mockgen -source=sector.go -destination=mock_sector_test.go -package disk

// SectorStore is what the engine needs from a container. A nil Sector
// means the container does not hold it.
type SectorStore interface {
	Geometry() Geometry
	GetSector(track, side, number int) Sector
	GetManagedSector(pos int) Sector
}

// Geometry describes the physical layout of an image. Sector numbers on a
// track start at FirstSector.
type Geometry struct {
	Tracks          int
	Sides           int
	SectorsPerTrack int
	SectorSize      int
	FirstSector     int
}

func (g Geometry) TotalSectors() int {
	return g.Tracks * g.Sides * g.SectorsPerTrack
}

func (g Geometry) TotalBytes() int {
	return g.TotalSectors() * g.SectorSize
}

// Pos converts a physical address to a linear sector position.
func (g Geometry) Pos(track, side, number int) int {
	return (track*g.Sides+side)*g.SectorsPerTrack + (number - g.FirstSector)
}

// Chs converts a linear position back to its physical address.
func (g Geometry) Chs(pos int) (track, side, number int) {
	ts := pos / g.SectorsPerTrack
	return ts / g.Sides, ts % g.Sides, pos%g.SectorsPerTrack + g.FirstSector
}

func (g Geometry) Valid() bool {
	return g.Tracks > 0 && g.Sides > 0 && g.SectorsPerTrack > 0 && g.SectorSize > 0
}

// Common geometries.
var (
	Geometry2D    = Geometry{Tracks: 40, Sides: 2, SectorsPerTrack: 16, SectorSize: 256, FirstSector: 1}
	Geometry1D    = Geometry{Tracks: 35, Sides: 1, SectorsPerTrack: 16, SectorSize: 256, FirstSector: 1}
	GeometrySMC   = Geometry{Tracks: 70, Sides: 1, SectorsPerTrack: 16, SectorSize: 256, FirstSector: 1}
	Geometry1DD9  = Geometry{Tracks: 80, Sides: 1, SectorsPerTrack: 9, SectorSize: 512, FirstSector: 1}
	Geometry2DD9  = Geometry{Tracks: 80, Sides: 2, SectorsPerTrack: 9, SectorSize: 512, FirstSector: 1}
	Geometry2HD18 = Geometry{Tracks: 80, Sides: 2, SectorsPerTrack: 18, SectorSize: 512, FirstSector: 1}
	Geometry2HD   = Geometry{Tracks: 77, Sides: 2, SectorsPerTrack: 8, SectorSize: 1024, FirstSector: 1}
	Geometry8SS   = Geometry{Tracks: 77, Sides: 1, SectorsPerTrack: 26, SectorSize: 128, FirstSector: 1}
)
