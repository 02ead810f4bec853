package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	reconciliation "school-treasury/internal/reconciliation/domain"
)

// ErrInvalidConfig is returned when configuration fails validation.
var ErrInvalidConfig = errors.New("treasury config: invalid")

// ScheduleConfig is the raw recurring-due schedule of a tenant.
type ScheduleConfig struct {
	Amount     string `yaml:"amount" validate:"omitempty,numeric"`
	FirstMonth string `yaml:"first_month"`
	LastMonth  string `yaml:"last_month"`
	Cutoff     string `yaml:"cutoff" validate:"omitempty,oneof=current_period full_year"`
}

// MatcherConfig configures payment classification.
type MatcherConfig struct {
	DueMarkers []string `yaml:"due_markers" validate:"dive,required"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console auto"`
}

// Config is the treasury reconciliation configuration.
type Config struct {
	DatabaseURL     string                    `yaml:"database_url"`
	TenantID        string                    `yaml:"tenant_id" validate:"required"`
	Workers         int                       `yaml:"workers" validate:"gte=1,lte=256"`
	MetricsTextfile string                    `yaml:"metrics_textfile"`
	Log             LogConfig                 `yaml:"log"`
	Matcher         MatcherConfig             `yaml:"matcher"`
	Schedule        ScheduleConfig            `yaml:"schedule"`
	Tenants         map[string]ScheduleConfig `yaml:"tenants" validate:"dive"`
}

// LoadConfig loads config from environment variables, then overlays the yaml
// file at path (or TREASURY_CONFIG when path is empty).
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		TenantID:        os.Getenv("TENANT_ID"),
		Workers:         getenvIntDefault("TREASURY_WORKERS", 4),
		MetricsTextfile: os.Getenv("TREASURY_METRICS_TEXTFILE"),
		Log: LogConfig{
			Level:  getenvDefault("LOG_LEVEL", "info"),
			Format: getenvDefault("LOG_FORMAT", "auto"),
		},
		Matcher: MatcherConfig{DueMarkers: splitCSV(os.Getenv("TREASURY_DUE_MARKERS"))},
		Schedule: ScheduleConfig{
			Amount:     os.Getenv("TREASURY_DUE_AMOUNT"),
			FirstMonth: os.Getenv("TREASURY_FIRST_MONTH"),
			LastMonth:  os.Getenv("TREASURY_LAST_MONTH"),
			Cutoff:     getenvDefault("TREASURY_CUTOFF", string(reconciliation.CutoffCurrentPeriod)),
		},
	}

	if path == "" {
		path = os.Getenv("TREASURY_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if len(cfg.Matcher.DueMarkers) == 0 {
		cfg.Matcher.DueMarkers = append([]string(nil), reconciliation.DefaultDueMarkers...)
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ScheduleFor returns the tenant's schedule, tenant overrides merged over the defaults.
func (c Config) ScheduleFor(ctx context.Context, tenantID reconciliation.TenantID) (reconciliation.ScheduleSpec, error) {
	_ = ctx
	sc := c.Schedule
	if override, ok := c.Tenants[string(tenantID)]; ok {
		sc = mergeSchedule(sc, override)
	}
	return sc.Spec()
}

// HasSchedule reports whether the config carries any schedule for the tenant.
func (c Config) HasSchedule(tenantID reconciliation.TenantID) bool {
	if strings.TrimSpace(c.Schedule.Amount) != "" {
		return true
	}
	_, ok := c.Tenants[string(tenantID)]
	return ok
}

// Spec parses the raw values into a domain schedule spec.
func (s ScheduleConfig) Spec() (reconciliation.ScheduleSpec, error) {
	var spec reconciliation.ScheduleSpec
	if strings.TrimSpace(s.Amount) == "" {
		return spec, fmt.Errorf("%w: schedule amount required", ErrInvalidConfig)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(s.Amount))
	if err != nil {
		return spec, fmt.Errorf("%w: schedule amount: %v", ErrInvalidConfig, err)
	}
	first, err := reconciliation.ParseMonth(s.FirstMonth)
	if err != nil {
		return spec, fmt.Errorf("%w: first_month: %w", ErrInvalidConfig, err)
	}
	last, err := reconciliation.ParseMonth(s.LastMonth)
	if err != nil {
		return spec, fmt.Errorf("%w: last_month: %w", ErrInvalidConfig, err)
	}
	var cutoff reconciliation.Cutoff
	if strings.TrimSpace(s.Cutoff) != "" {
		if cutoff, err = reconciliation.ParseCutoff(s.Cutoff); err != nil {
			return spec, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return reconciliation.ScheduleSpec{Amount: amount, FirstMonth: first, LastMonth: last, Cutoff: cutoff}, nil
}

func mergeSchedule(base, override ScheduleConfig) ScheduleConfig {
	if override.Amount != "" {
		base.Amount = override.Amount
	}
	if override.FirstMonth != "" {
		base.FirstMonth = override.FirstMonth
	}
	if override.LastMonth != "" {
		base.LastMonth = override.LastMonth
	}
	if override.Cutoff != "" {
		base.Cutoff = override.Cutoff
	}
	return base
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
