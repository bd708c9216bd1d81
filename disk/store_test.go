package disk

// memStore is a flat in-memory SectorStore used by the package tests.
type memStore struct {
	geom    Geometry
	sectors []*memSector
}

type memSector struct {
	track, side, number int
	data                []byte
}

func (s *memSector) Track() int    { return s.track }
func (s *memSector) Side() int     { return s.side }
func (s *memSector) Number() int   { return s.number }
func (s *memSector) Bytes() []byte { return s.data }

func (s *memSector) Fill(code byte) {
	for i := range s.data {
		s.data[i] = code
	}
}

func (s *memSector) Copy(data []byte) {
	n := copy(s.data, data)
	for i := n; i < len(s.data); i++ {
		s.data[i] = 0
	}
}

func newMemStore(g Geometry, fill byte) *memStore {
	st := &memStore{geom: g}
	for pos := 0; pos < g.TotalSectors(); pos++ {
		t, sd, n := g.Chs(pos)
		sec := &memSector{track: t, side: sd, number: n, data: make([]byte, g.SectorSize)}
		sec.Fill(fill)
		st.sectors = append(st.sectors, sec)
	}
	return st
}

func (st *memStore) Geometry() Geometry { return st.geom }

func (st *memStore) GetSector(track, side, number int) Sector {
	return st.GetManagedSector(st.geom.Pos(track, side, number))
}

func (st *memStore) GetManagedSector(pos int) Sector {
	if pos < 0 || pos >= len(st.sectors) || st.sectors[pos] == nil {
		return nil
	}
	return st.sectors[pos]
}

// drop removes a sector to simulate a damaged image.
func (st *memStore) drop(pos int) {
	st.sectors[pos] = nil
}
