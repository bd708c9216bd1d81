package loggy

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		log   func(l *Logger)
		want  string
	}{
		{
			name:  "info passes at info",
			level: LevelInfo,
			log:   func(l *Logger) { l.Logf("mounted %s", "n88") },
			want:  "INFO  :: mounted n88",
		},
		{
			name:  "debug dropped at info",
			level: LevelInfo,
			log:   func(l *Logger) { l.Debugf("chain %d", 3) },
			want:  "",
		},
		{
			name:  "debug passes at debug",
			level: LevelDebug,
			log:   func(l *Logger) { l.Debug("chain", 3) },
			want:  "DEBUG :: chain 3",
		},
		{
			name:  "error passes at error",
			level: LevelError,
			log:   func(l *Logger) { l.Errorf("bad group %d", 9) },
			want:  "ERROR :: bad group 9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, "test")
			l.Level = tt.level
			tt.log(l)

			got := buf.String()
			if tt.want == "" {
				if got != "" {
					t.Errorf("got %q, want nothing", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want it to contain %q", got, tt.want)
			}
			if !strings.HasSuffix(got, "\n") {
				t.Errorf("line not terminated: %q", got)
			}
		})
	}
}

func TestDiscardAndNil(t *testing.T) {
	Discard().Logf("nothing %d", 1)

	var l *Logger
	l.Errorf("nil logger must not panic")
}
