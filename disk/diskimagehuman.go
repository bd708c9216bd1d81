package disk

// Human68k floppies use FAT12 with big-endian boot parameters and 18+3
// character names.
func init() {
	register(&formatSpec{
		id:          FormatHuman68k,
		name:        "human68k",
		description: "Sharp X68000 Human68k",
		geometries:  []Geometry{Geometry2HD},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat12Strategy(d, humanBoot{}) },
		newCodec:    func(d *Disk) DirectoryCodec { return &dosCodec{format: FormatHuman68k, human: true} },
	})
}

const humanOEM = "Hudson soft 2.00"

type humanBoot struct{}

func (humanBoot) parse(boot []byte) (bpb, float64) {
	if len(boot) < 0x1e || boot[0] != 0x60 {
		return bpb{}, -1
	}
	p := bpb{
		BytesPerSector:    be16(boot[0x12:]),
		SectorsPerCluster: int(boot[0x14]),
		FATs:              int(boot[0x15]),
		Reserved:          be16(boot[0x16:]),
		RootEntries:       be16(boot[0x18:]),
		TotalSectors:      be16(boot[0x1a:]),
		Media:             boot[0x1c],
		FATSectors:        int(boot[0x1d]),
	}
	if string(boot[0x02:0x12]) != humanOEM {
		return p, 0.8
	}
	return p, 1
}

func (humanBoot) write(boot []byte, p bpb) {
	boot[0], boot[1] = 0x60, 0x3c
	copy(boot[0x02:], humanOEM)
	putBE16(boot[0x12:], p.BytesPerSector)
	boot[0x14] = byte(p.SectorsPerCluster)
	boot[0x15] = byte(p.FATs)
	putBE16(boot[0x16:], p.Reserved)
	putBE16(boot[0x18:], p.RootEntries)
	putBE16(boot[0x1a:], p.TotalSectors)
	boot[0x1c] = p.Media
	boot[0x1d] = byte(p.FATSectors)
}
