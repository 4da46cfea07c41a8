package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AUGCAM_FPS=15\nAUGCAM_BACKEND=scrfd\nAUGCAM_DEBUG=true\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("AUGCAM_FPS")
		os.Unsetenv("AUGCAM_BACKEND")
		os.Unsetenv("AUGCAM_DEBUG")
	})
	t.Setenv("AUGCAM_FPS", "24")

	cfg, err := Load([]string{"-b", "pigo", "--addr", ":9090"}, envFile)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.TargetFPS, "environment wins over .env")
	assert.Equal(t, "pigo", cfg.Backend, "flags win over .env")
	assert.True(t, cfg.Debug, ".env wins over defaults")
	assert.Equal(t, ":9090", cfg.ServerAddr)
}

func TestLoadMissingEnvFile(t *testing.T) {
	cfg, err := Load(nil, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadBadEnvValue(t *testing.T) {
	t.Setenv("AUGCAM_WIDTH", "wide")
	_, err := Load(nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUGCAM_WIDTH")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"unknown backend", []string{"--backend", "haar"}, "Backend"},
		{"fps too low", []string{"--fps", "0"}, "TargetFPS"},
		{"bad position", []string{"--position", "side"}, "CameraPosition"},
		{"threshold out of range", []string{"--conf", "1.5"}, "ConfThreshold"},
		{"scrfd needs a model", []string{"-b", "scrfd", "-m", ""}, "ModelPath"},
		{"bad address", []string{"--addr", "nowhere"}, "ServerAddr"},
		{"bad orientation", []string{"--orientation", "sideways"}, "Orientation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, "")
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestParseFlagsHelp(t *testing.T) {
	cfg := Default()
	err := cfg.parseFlags([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestApplyEnvTypes(t *testing.T) {
	env := map[string]string{
		"AUGCAM_CAMERA":         "2",
		"AUGCAM_NMS_THRESHOLD":  "0.3",
		"AUGCAM_MIRROR":         "1",
		"AUGCAM_OVERLAY_DIR":    "/tmp/glasses",
		"AUGCAM_PREVIEW_HEIGHT": "667",
		"AUGCAM_ORIENTATION":    "portrait",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, 2, cfg.CameraIndex)
	assert.Equal(t, 0.3, cfg.NMSThreshold)
	assert.True(t, cfg.Mirror)
	assert.Equal(t, "/tmp/glasses", cfg.OverlayDir)
	assert.Equal(t, 667, cfg.PreviewHeight)
	assert.Equal(t, "portrait", cfg.Orientation)
}

func TestOrientationFlag(t *testing.T) {
	cfg, err := Load([]string{"--orientation", "portrait-upside-down"}, "")
	require.NoError(t, err)
	assert.Equal(t, "portrait-upside-down", cfg.Orientation)
}
