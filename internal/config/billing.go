package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds the billing knobs an installer may tune without a
// redeploy.
type BillingConfig struct {
	// InvoiceNumberTemplate formats the human-readable invoice number.
	// Supported tokens: {JOB} (job id), {SEQ2} (zero-padded sequence).
	InvoiceNumberTemplate string `mapstructure:"invoiceNumberTemplate"`
	// DefaultDueDays is applied when a creation request carries no due date.
	DefaultDueDays int `mapstructure:"defaultDueDays"`
	// OverdueGraceDays delays the derived overdue display state.
	OverdueGraceDays int `mapstructure:"overdueGraceDays"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		InvoiceNumberTemplate: "INV-{JOB}-{SEQ2}",
		DefaultDueDays:        30,
		OverdueGraceDays:      0,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewBillingConfigHolder reads billing.yml and keeps the holder current on
// file changes. Missing file falls back to defaults.
func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/roofcrm/config") // Volume-mounted config
	v.AddConfigPath("/etc/roofcrm")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("ROOFCRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.invoiceNumberTemplate", defaults.InvoiceNumberTemplate)
		v.SetDefault("billing.defaultDueDays", defaults.DefaultDueDays)
		v.SetDefault("billing.overdueGraceDays", defaults.OverdueGraceDays)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder pins the holder to cfg. Used by tests and
// one-off tools that have no config file to watch.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.InvoiceNumberTemplate) == "" {
		return errors.New("billing.invoiceNumberTemplate cannot be empty")
	}
	if cfg.DefaultDueDays < 0 {
		return errors.New("billing.defaultDueDays cannot be negative")
	}
	if cfg.OverdueGraceDays < 0 {
		return errors.New("billing.overdueGraceDays cannot be negative")
	}
	return nil
}
