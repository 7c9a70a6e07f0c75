package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, 1, cfg.DefaultMaxViews)
	assert.Equal(t, 24*time.Hour, cfg.DefaultTTL)
	assert.Equal(t, 24*time.Hour, cfg.RetentionWindow)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.NotEmpty(t, cfg.S3Bucket)
}

func TestLoadConfig_DefaultsWithoutArgs(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"server"}

	cfg := LoadConfig()
	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"server", "-a", ":9999", "-backend", "memory", "-retention", "48"}

	cfg := LoadConfig()
	assert.Equal(t, ":9999", cfg.EndpointAddrHTTP)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 48*time.Hour, cfg.RetentionWindow)
}
