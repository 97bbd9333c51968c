package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel logrus.Level
		wantJSON  bool
	}{
		{name: "debug json", level: "debug", format: "json", wantLevel: logrus.DebugLevel, wantJSON: true},
		{name: "warn text", level: "warn", format: "text", wantLevel: logrus.WarnLevel},
		{name: "unknown level", level: "chatty", format: "", wantLevel: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, tt.format)
			assert.Equal(t, tt.wantLevel, logger.GetLevel())
			_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}
