// Package config содержит логику чтения конфигурации сервиса CredFlow.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Ключи таблицы config, переопределяющие значения из окружения.
const (
	KeyVendorCommissionPct   = "VENDOR_COMMISSION_PCT"
	KeySubAgentCommissionPct = "SUB_AGENT_COMMISSION_PCT"
	KeyReferralBonusFallback = "REFERRAL_BONUS_FALLBACK"
)

// Config содержит параметры конфигурации сервиса CredFlow.
// Проценты комиссий и запасная сумма бонуса — значения по умолчанию;
// действующие значения читаются из таблицы config с откатом на эти.
type Config struct {
	RunAddress            string          `env:"RUN_ADDRESS"`
	DatabaseURI           string          `env:"DATABASE_URI"`
	AuthSecret            string          `env:"AUTH_SECRET" envDefault:"credflow-secret"`
	VendorCommissionPct   decimal.Decimal `env:"VENDOR_COMMISSION_PCT" envDefault:"20"`
	SubAgentCommissionPct decimal.Decimal `env:"SUB_AGENT_COMMISSION_PCT" envDefault:"5"`
	ReferralBonusFallback decimal.Decimal `env:"REFERRAL_BONUS_FALLBACK" envDefault:"100"`
	PayoutWeekday         time.Weekday    `env:"PAYOUT_WEEKDAY" envDefault:"4"`
	AdminEmail            string          `env:"ADMIN_EMAIL" envDefault:"admin@credflow.com"`
	AdminPassword         string          `env:"ADMIN_PASSWORD"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Неверные доменные значения (процент вне [0;100], недопустимый день недели)
// приводят к ошибке на старте, а не при обработке запросов.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	hundred := decimal.NewFromInt(100)

	for _, pct := range []struct {
		name  string
		value decimal.Decimal
	}{
		{KeyVendorCommissionPct, cfg.VendorCommissionPct},
		{KeySubAgentCommissionPct, cfg.SubAgentCommissionPct},
	} {
		if pct.value.IsNegative() || pct.value.GreaterThan(hundred) {
			return fmt.Errorf("%s must be between 0 and 100, got %s", pct.name, pct.value)
		}
	}

	if cfg.ReferralBonusFallback.IsNegative() {
		return fmt.Errorf("%s must not be negative, got %s", KeyReferralBonusFallback, cfg.ReferralBonusFallback)
	}

	if cfg.PayoutWeekday < time.Sunday || cfg.PayoutWeekday > time.Saturday {
		return fmt.Errorf("PAYOUT_WEEKDAY must be between 0 and 6, got %d", cfg.PayoutWeekday)
	}

	return nil
}
