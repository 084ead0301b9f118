package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"todocx/internal/config"
)

type fixedClients int

func (c fixedClients) ClientCount() int { return int(c) }

func TestHealthCheck(t *testing.T) {
	dir := t.TempDir()
	paths := config.NewPaths(config.PathsConfig{ConfigDir: dir, TempDir: dir, OutputDir: dir})

	hs := NewHealthService("1.2.3", paths, true, false, fixedClients(2), nil)
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, ServiceHealth{Status: "ready"}, status.Services["storage"])
	assert.Equal(t, "not_configured", status.Services["asr"].(ServiceHealth).Status)
}

func TestHealthCheck_MissingOutputDir(t *testing.T) {
	dir := t.TempDir()
	paths := config.NewPaths(config.PathsConfig{ConfigDir: dir, TempDir: dir, OutputDir: filepath.Join(dir, "gone")})

	status := NewHealthService("dev", paths, true, true, nil, nil).HealthCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "not_ready", status.Services["output_dir"].(ServiceHealth).Status)
}

func TestLivenessAndVersion(t *testing.T) {
	dir := t.TempDir()
	hs := NewHealthService("dev", config.NewPaths(config.PathsConfig{ConfigDir: dir, OutputDir: dir}), false, false, fixedClients(3), nil)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Equal(t, 3, live.Runtime["websocket_clients"])

	v := hs.Version()
	assert.Equal(t, "dev", v["version"])
	assert.Equal(t, config.AppName, v["app_name"])
}
