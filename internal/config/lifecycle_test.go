package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLifecyclePolicyDefaultsWhenFileMissing(t *testing.T) {
	v := viper.New()
	v.SetConfigName("lifecycle")
	v.SetConfigType("yml")
	v.AddConfigPath(t.TempDir())

	holder, found, err := loadLifecyclePolicy(v)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DefaultLifecyclePolicy(), holder.Get())
}

func TestLoadLifecyclePolicyFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lifecycle.yml")
	content := []byte("lifecycle:\n  reopenApproved: true\n  autoCloseWhenFull: false\n  deliveryWindowDays: 7\n  cacheTTL: 5s\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	v := viper.New()
	v.SetConfigFile(path)

	holder, found, err := loadLifecyclePolicy(v)
	require.NoError(t, err)
	assert.True(t, found)

	policy := holder.Get()
	assert.True(t, policy.ReopenApproved)
	assert.False(t, policy.AutoCloseWhenFull)
	assert.Equal(t, 7, policy.DeliveryWindowDays)
	assert.Equal(t, 5*time.Second, policy.CacheTTL)
	assert.False(t, policy.RepairDrift)
}

func TestLoadLifecyclePolicyRejectsNegativeWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lifecycle.yml")
	require.NoError(t, os.WriteFile(path, []byte("lifecycle:\n  deliveryWindowDays: -1\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)

	_, _, err := loadLifecyclePolicy(v)
	assert.Error(t, err)
}

func TestNilHolderReturnsDefaults(t *testing.T) {
	var holder *LifecyclePolicyHolder
	assert.Equal(t, DefaultLifecyclePolicy(), holder.Get())
}
