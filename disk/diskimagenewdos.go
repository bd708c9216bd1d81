package disk

// PC-8001 New-DOS on single sided 35 cylinder media. Entries carry load
// and execute addresses after the start group.
var newdosLayout = &fat8Layout{
	groups:      70,
	spg:         8,
	firstPos:    0,
	fat:         FatParams{Start: 301, Sectors: 1, Copies: 2, Stride: 1},
	lastBase:    0xc0,
	system:      []int{0, 1, 36, 37},
	rootStart:   288,
	rootSectors: 12,
	fill:        0xff,
	eof:         true,
}

func init() {
	register(&formatSpec{
		id:          FormatNewDOS,
		name:        "newdos",
		description: "PC-8001 New-DOS",
		geometries:  []Geometry{Geometry1D},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat8Strategy(d, newdosLayout) },
		newCodec:    func(d *Disk) DirectoryCodec { return &n88Codec{format: FormatNewDOS, addresses: true} },
	})
}
