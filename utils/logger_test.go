package utils

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(newLogger(&buf, "warn", "json"), "orders")

	log.Info("dropped")
	log.Warn("kept", "order", "ORD1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "orders", entry["component"])
	assert.Equal(t, "ORD1", entry["order"])
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
