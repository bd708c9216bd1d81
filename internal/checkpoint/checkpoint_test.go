package checkpoint

import (
	"errors"
	"io"
	"strings"
	"testing"
)

var (
	errOuter = errors.New("outer failure")
	errInner = errors.New("inner failure")
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name    string
		prev    error
		err     error
		wantNil bool
		wantIs  []error
	}{
		{
			name:    "nil prev gives nil",
			prev:    nil,
			err:     errOuter,
			wantNil: true,
		},
		{
			name:   "both errors match",
			prev:   errInner,
			err:    errOuter,
			wantIs: []error{errInner, errOuter},
		},
		{
			name:   "nested checkpoints",
			prev:   From(errInner),
			err:    errOuter,
			wantIs: []error{errInner, errOuter},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.prev, tt.err)
			if (got == nil) != tt.wantNil {
				t.Fatalf("Wrap() = %v, wantNil %v", got, tt.wantNil)
			}
			for _, target := range tt.wantIs {
				if !errors.Is(got, target) {
					t.Errorf("errors.Is(%v, %v) = false", got, target)
				}
			}
		})
	}
}

func TestFromPassesEOF(t *testing.T) {
	if got := From(io.EOF); got != io.EOF {
		t.Errorf("From(io.EOF) = %v, want io.EOF", got)
	}
	if got := From(nil); got != nil {
		t.Errorf("From(nil) = %v, want nil", got)
	}
}

func TestErrorMentionsPosition(t *testing.T) {
	err := Wrap(errInner, errOuter)
	if !strings.Contains(err.Error(), "checkpoint_test.go") {
		t.Errorf("Error() = %q, want caller file in message", err.Error())
	}
	if !strings.Contains(err.Error(), "inner failure") {
		t.Errorf("Error() = %q, want wrapped message", err.Error())
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(errInner, "reading group %d", 7)
	if !errors.Is(err, errInner) {
		t.Errorf("Errorf() lost the wrapped error")
	}
	if !strings.Contains(err.Error(), "reading group 7") {
		t.Errorf("Error() = %q", err.Error())
	}
}
