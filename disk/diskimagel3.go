package disk

// Hitachi Basic Master Level-3 / S1. The table sits behind the directory
// on cylinder 0 side 1 and covers the whole disk.
var l3Layout = &fat8Layout{
	groups:      160,
	spg:         8,
	firstPos:    0,
	fat:         FatParams{Start: 29, Sectors: 1},
	lastBase:    0xbf,
	system:      []int{0, 1, 2, 3},
	rootStart:   16,
	rootSectors: 13,
	fill:        0xff,
}

func init() {
	register(&formatSpec{
		id:          FormatL3,
		name:        "l3",
		description: "Hitachi Basic Master Level-3 / S1 DISK BASIC",
		geometries:  []Geometry{Geometry2D},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat8Strategy(d, l3Layout) },
		newCodec: func(d *Disk) DirectoryCodec {
			return &fmCodec{format: FormatL3, size: 16, nameLen: 8, extLen: 3, typeOff: 0x0b, asciiOff: 0x0c, startOff: 0x0d, lastOff: 0x0e}
		},
	})
}
