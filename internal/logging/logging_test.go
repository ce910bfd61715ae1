package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "flyoverlogs",
			appName: "flyover",
			want:    filepath.Join("flyoverlogs", "flyover.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./flyoverlogs",
			appName: "flyover",
			want:    filepath.Join(".", "flyoverlogs", "flyover.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "flyover"),
			appName: "flyover",
			want:    filepath.Join("/var", "log", "flyover", "flyover.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, tt.appName, sessionStart))
		})
	}
}
