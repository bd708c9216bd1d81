package disk

import (
	"errors"
	"fmt"
)

var (
	ErrFormatAmbiguous    = errors.New("format detection is ambiguous")
	ErrFormatInvalid      = errors.New("image does not hold a recognised format")
	ErrDirectoryCorrupt   = errors.New("directory is corrupt")
	ErrNoFreeSpace        = errors.New("no free space on disk")
	ErrNoFreeSpacePartial = errors.New("disk filled before the request completed")
	ErrChainOverrun       = errors.New("allocation chain exceeds the group count")
	ErrDuplicateName      = errors.New("a file with that name already exists")
	ErrNotDeletable       = errors.New("entry cannot be deleted")
	ErrNotRenamable       = errors.New("entry cannot be renamed")
	ErrFileNotFound       = errors.New("file not found")
	ErrNotDirectory       = errors.New("not a directory")
	ErrDirectoryFull      = errors.New("directory is full")
	ErrDirectoryNotEmpty  = errors.New("directory is not empty")
	ErrReadOnly           = errors.New("file is read-only")
	ErrFatSectorMissing   = errors.New("allocation table sector missing from image")
	ErrSectorMissing      = errors.New("sector missing from image")
	ErrInvalidName        = errors.New("name is not valid for this format")
	ErrUnsupported        = errors.New("operation not supported by this format")
	ErrNotMounted         = errors.New("no format mounted")
	ErrDuplicateGroup     = errors.New("group already present in list")
)

// AllocError reports a failed allocation. When Partial is set, Groups holds
// the groups that were taken before space ran out; they have already been
// released again.
type AllocError struct {
	Partial bool
	Groups  []int
}

func (e *AllocError) Error() string {
	if e.Partial {
		return fmt.Sprintf("%v (%d groups rolled back)", ErrNoFreeSpacePartial, len(e.Groups))
	}
	return ErrNoFreeSpace.Error()
}

func (e *AllocError) Is(target error) bool {
	if target == ErrNoFreeSpace {
		return true
	}
	return e.Partial && target == ErrNoFreeSpacePartial
}
