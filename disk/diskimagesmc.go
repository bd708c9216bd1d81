package disk

// SMC-777 DISK BASIC: single sided, 70 cylinders, with the table and the
// attribute bytes stored inverted.
var smcLayout = &fat8Layout{
	groups:      140,
	spg:         8,
	firstPos:    0,
	fat:         FatParams{Start: 573, Sectors: 1, Invert: true},
	lastBase:    0xc0,
	system:      []int{0, 1, 70, 71},
	rootStart:   560,
	rootSectors: 12,
	fill:        0xff,
	eof:         true,
}

func init() {
	register(&formatSpec{
		id:          FormatSMC777,
		name:        "smc777",
		description: "Sony SMC-777 DISK BASIC",
		geometries:  []Geometry{GeometrySMC},
		newStrategy: func(d *Disk) AllocationStrategy { return newFat8Strategy(d, smcLayout) },
		newCodec:    func(d *Disk) DirectoryCodec { return &n88Codec{format: FormatSMC777, attrInvert: true} },
	})
}
