package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTo(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		wantDebug bool
		wantJSON  bool
	}{
		{name: "production logs json from info", env: "production", wantJSON: true},
		{name: "development logs text with debug", env: "development", wantDebug: true},
		{name: "staging logs text with debug", env: "staging", wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerTo(tt.env, &buf)

			logger.Debug("debug line")
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug line")))

			buf.Reset()
			logger.Info("session opened", "session_id", "abc")
			require.NotZero(t, buf.Len())

			if tt.wantJSON {
				var entry map[string]interface{}
				require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
				assert.Equal(t, "session opened", entry["msg"])
				assert.Equal(t, "estoque", entry["service"])
				assert.Equal(t, "abc", entry["session_id"])
			} else {
				assert.Contains(t, buf.String(), "msg=\"session opened\"")
				assert.Contains(t, buf.String(), "session_id=abc")
			}
		})
	}
}
