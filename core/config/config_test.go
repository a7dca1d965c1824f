package config

import (
	"os"
	"path/filepath"
	"testing"

	"payment-reconciler/core/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Lock.Driver)
	assert.Equal(t, lock.ModeFailFast, cfg.Lock.Mode)
	assert.Equal(t, 60, cfg.Statistics.CacheTTLSeconds)

	match, err := cfg.Reconcile.MatchConfig()
	require.NoError(t, err)
	assert.True(t, match.ValueTolerance.IsZero())
	assert.Equal(t, 1, match.DayTolerance)
	assert.True(t, match.GroupingEnabled)
	assert.Equal(t, 5, match.MaxGroupSize)

	strict, err := cfg.Review.Strict()
	require.NoError(t, err)
	assert.Nil(t, strict)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	env := "RECONCILE_VALUE_TOLERANCE=0,50\nRECONCILE_DAY_TOLERANCE=2\nLOCK_MODE=block\nREVIEW_ENABLED=true\nREVIEW_VALUE_TOLERANCE=0.10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"RECONCILE_VALUE_TOLERANCE", "RECONCILE_DAY_TOLERANCE", "LOCK_MODE", "REVIEW_ENABLED", "REVIEW_VALUE_TOLERANCE"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	match, err := cfg.Reconcile.MatchConfig()
	require.NoError(t, err)
	assert.Equal(t, "0.5", match.ValueTolerance.String())
	assert.Equal(t, 2, match.DayTolerance)
	assert.Equal(t, lock.ModeBlock, cfg.Lock.Mode)

	strict, err := cfg.Review.Strict()
	require.NoError(t, err)
	require.NotNil(t, strict)
	assert.Equal(t, "0.1", strict.ValueTolerance.String())
}

func TestReconcileConfig_Invalid(t *testing.T) {
	_, err := ReconcileConfig{ValueTolerance: "abc", MaxGroupSize: 5}.MatchConfig()
	assert.Error(t, err)

	_, err = ReconcileConfig{ValueTolerance: "0", MaxGroupSize: 0}.MatchConfig()
	assert.Error(t, err)
}
