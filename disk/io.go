package disk

import (
	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

func (d *Disk) sector(pos int) (Sector, error) {
	s := d.store.GetManagedSector(pos)
	if s == nil {
		return nil, checkpoint.Errorf(ErrSectorMissing, "sector %d", pos)
	}
	return s, nil
}

// readSector returns a decoded copy of the sector at pos.
func (d *Disk) readSector(pos int) ([]byte, error) {
	s, err := d.sector(pos)
	if err != nil {
		return nil, err
	}
	out := make([]byte, d.geom.SectorSize)
	copy(out, s.Bytes())
	if d.invert {
		for i := range out {
			out[i] ^= 0xff
		}
	}
	return out, nil
}

// writeSector encodes data into the sector at pos. Short data is padded
// with decoded zeros.
func (d *Disk) writeSector(pos int, data []byte) error {
	s, err := d.sector(pos)
	if err != nil {
		return err
	}
	buf := make([]byte, d.geom.SectorSize)
	copy(buf, data)
	if d.invert {
		for i := range buf {
			buf[i] ^= 0xff
		}
	}
	s.Copy(buf)
	return nil
}

func (d *Disk) fillSector(pos int, code byte) error {
	s, err := d.sector(pos)
	if err != nil {
		return err
	}
	if d.invert {
		code ^= 0xff
	}
	s.Fill(code)
	return nil
}

func (d *Disk) fillRange(start, count int, code byte) error {
	for p := start; p < start+count; p++ {
		if err := d.fillSector(p, code); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disk) readPositions(ps []int) ([]byte, error) {
	out := make([]byte, 0, len(ps)*d.geom.SectorSize)
	for _, p := range ps {
		data, err := d.readSector(p)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

func (d *Disk) writePositions(ps []int, data []byte) error {
	ss := d.geom.SectorSize
	for i, p := range ps {
		var chunk []byte
		if off := i * ss; off < len(data) {
			end := off + ss
			if end > len(data) {
				end = len(data)
			}
			chunk = data[off:end]
		}
		if err := d.writeSector(p, chunk); err != nil {
			return err
		}
	}
	return nil
}

// patchSector writes part of a sector, leaving the rest as it is.
func (d *Disk) patchSector(pos, off int, data []byte) error {
	buf, err := d.readSector(pos)
	if err != nil {
		return err
	}
	copy(buf[off:], data)
	return d.writeSector(pos, buf)
}

// Publish writes the entry's record, and any record it owns outside the
// directory, back to disk.
func (d *Disk) Publish(e DirectoryEntry) error {
	b := e.base()
	if err := d.patchSector(b.loc.Pos, b.loc.Offset, b.Data); err != nil {
		return err
	}
	if b.aux != nil {
		return d.writeSector(b.auxPos, b.aux)
	}
	return nil
}
