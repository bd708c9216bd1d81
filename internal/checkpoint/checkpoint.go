// Package checkpoint decorates errors with the file and line where they
// passed through, producing something close to a stack trace while keeping
// errors.Is and errors.As working on every wrapped value.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps err in a checkpoint carrying the caller position.
// It returns nil if err is nil. io.EOF is passed through untouched.
func From(err error) error {
	if err == nil || err == io.EOF {
		return err
	}

	_, file, line, ok := runtime.Caller(1)
	return &checkpoint{
		err:      err,
		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

// Wrap records a checkpoint for prev and describes it with err.
// Both values stay reachable through errors.Is:
//
//	var ErrDiskFull = errors.New("disk full")
//	...
//	return checkpoint.Wrap(err, ErrDiskFull)
//
// Wrap returns nil if prev is nil, so it can guard a call result directly.
func Wrap(prev, err error) error {
	if prev == nil {
		return nil
	}
	if prev == io.EOF {
		return io.EOF
	}

	_, file, line, ok := runtime.Caller(1)
	return &checkpoint{
		err:      err,
		prev:     prev,
		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

// Errorf is Wrap with a formatted description. The description is a plain
// error, so only prev can be matched with errors.Is.
func Errorf(prev error, format string, args ...interface{}) error {
	if prev == nil {
		return nil
	}

	_, file, line, ok := runtime.Caller(1)
	return &checkpoint{
		err:      fmt.Errorf(format, args...),
		prev:     prev,
		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) where() string {
	if e.callerOk {
		return fmt.Sprintf("%s:%d", e.file, e.line)
	}
	return "unknown"
}

func (e *checkpoint) Error() string {
	if e.prev == nil {
		return fmt.Sprintf("%v (at %s)", e.err, e.where())
	}

	prev := e.prev.Error()
	if _, ok := e.prev.(*checkpoint); !ok {
		prev = strings.ReplaceAll(prev, "\n", "\n\t")
	}
	return fmt.Sprintf("%v (at %s)\n\t%v", e.err, e.where(), prev)
}

func (e *checkpoint) Unwrap() error {
	if e.prev == nil {
		return e.err
	}
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return errors.As(e.err, target)
}
