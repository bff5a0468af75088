package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// LifecyclePolicy holds product-level switches for the marketplace state machine.
type LifecyclePolicy struct {
	// ReopenApproved enables the approved -> in_dispute delivery edge.
	ReopenApproved     bool          `mapstructure:"reopenApproved"`
	AutoCloseWhenFull  bool          `mapstructure:"autoCloseWhenFull"`
	DeliveryWindowDays int           `mapstructure:"deliveryWindowDays"`
	RepairDrift        bool          `mapstructure:"repairDrift"`
	CacheTTL           time.Duration `mapstructure:"cacheTTL"`
}

func DefaultLifecyclePolicy() LifecyclePolicy {
	return LifecyclePolicy{
		ReopenApproved:     false,
		AutoCloseWhenFull:  true,
		DeliveryWindowDays: 14,
		RepairDrift:        false,
		CacheTTL:           30 * time.Second,
	}
}

type LifecyclePolicyHolder struct {
	current atomic.Value // holds LifecyclePolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy LifecyclePolicy) *LifecyclePolicyHolder {
	holder := &LifecyclePolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewLifecyclePolicyHolder(log *zap.Logger) (*LifecyclePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("lifecycle")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/collabhub/config")
	v.AddConfigPath("/etc/collabhub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COLLABHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder, found, err := loadLifecyclePolicy(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LifecyclePolicy
		if err := v.UnmarshalKey("lifecycle", &updated); err != nil {
			log.Warn("lifecycle policy reload failed", zap.Error(err))
			return
		}
		if err := validateLifecyclePolicy(updated); err != nil {
			log.Warn("invalid lifecycle policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("lifecycle policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func loadLifecyclePolicy(v *viper.Viper) (*LifecyclePolicyHolder, bool, error) {
	defaults := DefaultLifecyclePolicy()
	v.SetDefault("lifecycle.reopenApproved", defaults.ReopenApproved)
	v.SetDefault("lifecycle.autoCloseWhenFull", defaults.AutoCloseWhenFull)
	v.SetDefault("lifecycle.deliveryWindowDays", defaults.DeliveryWindowDays)
	v.SetDefault("lifecycle.repairDrift", defaults.RepairDrift)
	v.SetDefault("lifecycle.cacheTTL", defaults.CacheTTL)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, false, err
		}
		found = false
	}

	var policy LifecyclePolicy
	if err := v.UnmarshalKey("lifecycle", &policy); err != nil {
		return nil, false, err
	}
	if err := validateLifecyclePolicy(policy); err != nil {
		return nil, false, err
	}

	holder := &LifecyclePolicyHolder{}
	holder.current.Store(policy)
	return holder, found, nil
}

func (h *LifecyclePolicyHolder) Get() LifecyclePolicy {
	if h == nil {
		return DefaultLifecyclePolicy()
	}
	return h.current.Load().(LifecyclePolicy)
}

func validateLifecyclePolicy(policy LifecyclePolicy) error {
	if policy.DeliveryWindowDays < 0 {
		return errors.New("lifecycle.deliveryWindowDays cannot be negative")
	}
	if policy.CacheTTL < 0 {
		return errors.New("lifecycle.cacheTTL cannot be negative")
	}
	return nil
}
