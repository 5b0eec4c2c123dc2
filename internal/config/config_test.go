package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/shuakami/backupwatch/fingerprint"
	"github.com/shuakami/backupwatch/walker"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backupwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Walk.Recursive)
	assert.Equal(t, 10*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 32, cfg.Watch.Workers)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
walk:
  filter: "*.jpg,*.png,!~*"
  recursive: false
  dir_attributes: hidden,system
fingerprint:
  algorithm: blake3
  end_block: 8192
watch:
  paths:
    - /srv/photos
    - /srv/docs
  debounce: 250ms
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "*.jpg,*.png,!~*", cfg.Walk.Filter)
	assert.False(t, cfg.Walk.Recursive)
	assert.Equal(t, "blake3", cfg.Fingerprint.Algorithm)
	assert.Equal(t, fingerprint.DefaultStartBlockSize, cfg.Fingerprint.StartBlock)
	assert.Equal(t, 8192, cfg.Fingerprint.EndBlock)
	assert.Equal(t, []string{"/srv/photos", "/srv/docs"}, cfg.Watch.Paths)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 32, cfg.Watch.Workers)
	assert.Equal(t, "console", cfg.Logging.Format)

	opts, err := cfg.WalkOptions()
	require.NoError(t, err)
	assert.Equal(t, walker.AttrHidden|walker.AttrSystem, opts.DirMask)
	assert.Equal(t, walker.Attr(0), opts.FileMask)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
walk:
  filter: "*.txt"
fingerprint:
  middle_block: 4096
`)
	t.Setenv("BACKUPWATCH_WALK_FILTER", "*.doc,!secret.doc")
	t.Setenv("BACKUPWATCH_WALK_FILE_ATTRIBUTES", "temporary")
	t.Setenv("BACKUPWATCH_FINGERPRINT_MIDDLE_BLOCK", "1024")
	t.Setenv("BACKUPWATCH_WATCH_PATHS", "/a,/b")
	t.Setenv("BACKUPWATCH_WATCH_WORKERS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "*.doc,!secret.doc", cfg.Walk.Filter)
	assert.Equal(t, "temporary", cfg.Walk.FileAttributes)
	assert.Equal(t, 1024, cfg.Fingerprint.MiddleBlock)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Watch.Paths)
	assert.Equal(t, 4, cfg.Watch.Workers)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "walk: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "fingerprint:\n  algorithm: sha1\n"))
	assert.ErrorContains(t, err, "validation failed")

	big := writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize))
	_, err = Load(big)
	assert.ErrorContains(t, err, "too large")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"zero block", func(c *Config) { c.Fingerprint.StartBlock = 0 }, "block sizes must be positive"},
		{"unknown attribute", func(c *Config) { c.Walk.DirAttributes = "hidden,shiny" }, "walk.dir_attributes"},
		{"negative workers", func(c *Config) { c.Watch.Workers = -1 }, "watch.workers"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestHelpers(t *testing.T) {
	cfg := Default()
	cfg.Fingerprint.Algorithm = "blake3"
	cfg.Logging.Level = "trace"

	opts, err := cfg.FingerprintOptions()
	require.NoError(t, err)
	fp, err := fingerprint.New(opts...)
	require.NoError(t, err)
	assert.Equal(t, fingerprint.BLAKE3, fp.Algorithm())
	assert.Equal(t, int64(48*1024), fp.Threshold())

	lc, err := cfg.LoggingConfig()
	require.NoError(t, err)
	assert.Equal(t, zapcore.Level(-2), lc.Level)
	assert.Equal(t, "json", lc.Format)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "walk.filter", envKey("BACKUPWATCH_WALK_FILTER"))
	assert.Equal(t, "walk.dir_attributes", envKey("BACKUPWATCH_WALK_DIR_ATTRIBUTES"))
	assert.Equal(t, "logging", envKey("BACKUPWATCH_LOGGING"))
}
