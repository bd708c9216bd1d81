package disk

import "time"

type AllocMode int

const (
	// AllocNew starts a fresh chain for the entry.
	AllocNew AllocMode = iota
	// AllocAppend links new groups after the entry's existing chain and
	// returns only the added groups.
	AllocAppend
)

// AllocationStrategy is one format's allocation engine. It knows how the
// format maps groups to sectors, where its table lives and how chains are
// linked, allocated and released.
type AllocationStrategy interface {
	// ParseParamOnDisk reads geometry parameters from the disk and
	// returns a confidence ratio. Negative means the format is invalid.
	ParseParamOnDisk() float64
	// CheckFat validates the allocation table the same way.
	CheckFat() float64

	GroupCount() int
	BytesPerGroup() int
	// RootGroups lists the fixed root directory region.
	RootGroups() (*GroupList, error)

	GetGroupNumber(group int) int
	SetGroupNumber(group, value int)
	IsUsedGroupNumber(group int) bool
	GetEmptyGroupNumber() int
	GetNextEmptyGroupNumber(group int) int
	GetStartSectorFromGroup(group int) int
	// GetEndSectorFromGroup gives the last occupied sector of group when
	// its table value is next.
	GetEndSectorFromGroup(group, next int) int
	GroupStatus(group int) GroupStatus

	GetAllGroups(e DirectoryEntry) (*GroupList, error)
	AllocateGroups(e DirectoryEntry, size int) (*GroupList, error)
	AllocateUnitGroups(e DirectoryEntry, size int, mode AllocMode) (*GroupList, error)
	DeleteGroups(gl *GroupList) error
	DeleteGroupNumber(group int)
	CalcDiskFreeSize() FreeSpace

	ReadData(e DirectoryEntry, gl *GroupList) ([]byte, error)
	WriteData(e DirectoryEntry, gl *GroupList, data []byte) error
	// CommitEntry records a freshly written chain in the entry and
	// publishes it.
	CommitEntry(e DirectoryEntry, gl *GroupList, size int) error

	Format() error
	// Recount rebuilds cached counters from a full sweep of the table.
	Recount()
}

// DirectoryCodec builds the entry type of a format.
type DirectoryCodec interface {
	EntrySize() int
	// NewEntry wraps a private copy of one raw record.
	NewEntry(data []byte) DirectoryEntry
	// SplitName converts a host name to the format's name and extension.
	SplitName(name string) (string, string, error)
	// Blank is the byte fresh directory sectors are filled with.
	Blank() byte
	Tree() bool
}

type Capability uint

const (
	CapModTime Capability = 1 << iota
	CapAddress
	CapExplicitSize
	CapDirectory
)

// DirectoryEntry is a decoded directory record. Setters change the owned
// copy only; Disk.Publish writes it back to its sector.
type DirectoryEntry interface {
	base() *entryBase

	// CheckUsed reports whether the slot holds a live entry.
	CheckUsed() bool
	// Check validates the record. last marks the end of the directory.
	Check() (ok bool, last bool)

	FileName() string
	FileExt() string
	NameField() Field
	ExtField() Field
	SetFileName(name, ext string)

	FileTypeN(n int) int
	SetFileTypeN(n int, v int)
	FileAttr() FileAttr
	SetFileAttr(a FileAttr)

	FileSize() int
	SetFileSize(size int)
	StartGroup() int
	SetStartGroup(group int)
	// ExtraGroup is a group owned by the entry outside its data chain.
	ExtraGroup() int

	ModTime() time.Time
	SetModTime(t time.Time)
	LoadAddress() int
	SetLoadAddress(addr int)
	ExecAddress() int
	SetExecAddress(addr int)

	Capabilities() Capability
	Location() Location
	Next() DirectoryEntry

	// Delete marks the slot free the way the format does.
	Delete()
	// Clear resets the record for reuse.
	Clear()
}

// extentLinker joins multi-record files after a directory scan.
type extentLinker interface {
	LinkExtents(items []DirectoryEntry)
}

// dirMaker initialises a new subdirectory.
type dirMaker interface {
	MakeDirectory(parent *DirNode, e DirectoryEntry) error
}

// dirGrower extends a full subdirectory.
type dirGrower interface {
	GrowDirectory(n *DirNode) error
}

// entryLoader reads records an entry keeps outside the directory.
type entryLoader interface {
	load()
}

// dirLimiter caps the slots of a directory below its allocated space.
type dirLimiter interface {
	DirectorySlots(n *DirNode) int
}

// slotOffsetter is implemented by codecs whose directory sectors start
// with a header.
type slotOffsetter interface {
	FirstSlot() int
}

// groupPositioner maps a group to sectors that are not contiguous.
type groupPositioner interface {
	GroupPositions(group int) []int
}
