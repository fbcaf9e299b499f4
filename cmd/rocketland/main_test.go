package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestScreenLoggerHonoursVerbose(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{"verbose", true, true},
		{"quiet", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldDir, oldVerbose, oldLogger := dataDir, verbose, logger
			t.Cleanup(func() { dataDir, verbose, logger = oldDir, oldVerbose, oldLogger })

			dataDir = filepath.Join(t.TempDir(), "data")
			verbose = tt.verbose
			logger = zap.NewNop()

			if err := useScreenLogger(); err != nil {
				t.Fatal(err)
			}
			logger.Debug("debug line")
			logger.Warn("warn line")
			_ = logger.Sync()

			data, err := os.ReadFile(filepath.Join(dataDir, "rocketland.log"))
			if err != nil {
				t.Fatal(err)
			}
			out := string(data)
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v:\n%s", got, tt.wantDebug, out)
			}
			if !strings.Contains(out, "warn line") {
				t.Errorf("warn line missing:\n%s", out)
			}
		})
	}
}
