package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingPolicy carries the regulator-driven tunables that operators change
// between windows without a redeploy.
type PricingPolicy struct {
	ReconciliationTolerancePct  float64         `mapstructure:"reconciliationTolerancePct"`
	DefaultTariffPerLitreKm     float64         `mapstructure:"defaultTariffPerLitreKm"`
	WithholdingTaxPct           float64         `mapstructure:"withholdingTaxPct"`
	SettlementApprovalThreshold float64         `mapstructure:"settlementApprovalThreshold"`
	WindowRetentionDays         int             `mapstructure:"windowRetentionDays"`
	SubmissionLeadDays          int             `mapstructure:"submissionLeadDays"`
	SubmissionCutoffHour        int             `mapstructure:"submissionCutoffHour"`
	MinPumpPrice                float64         `mapstructure:"minPumpPrice"`
	MaxPumpPrice                float64         `mapstructure:"maxPumpPrice"`
	RequiredComponents          []string        `mapstructure:"requiredComponents"`
	RequiredUPPFProducts        []string        `mapstructure:"requiredUppfProducts"`
	RateAlerts                  RateAlertPolicy `mapstructure:"rateAlerts"`
	Levy                        LevyPolicy      `mapstructure:"levy"`
}

type RateAlertPolicy struct {
	LowPct           float64 `mapstructure:"lowPct"`
	HighPct          float64 `mapstructure:"highPct"`
	CriticalPct      float64 `mapstructure:"criticalPct"`
	CriticalAbsolute float64 `mapstructure:"criticalAbsolute"`
}

type LevyPolicy struct {
	BaseRates             map[string]float64 `mapstructure:"baseRates"`
	RouteFactors          map[string]float64 `mapstructure:"routeFactors"`
	ProductFactors        map[string]float64 `mapstructure:"productFactors"`
	ClaimablePct          map[string]float64 `mapstructure:"claimablePct"`
	SmallVolumeLitres     float64            `mapstructure:"smallVolumeLitres"`
	LargeVolumeLitres     float64            `mapstructure:"largeVolumeLitres"`
	SmallVolumeFactor     float64            `mapstructure:"smallVolumeFactor"`
	LargeVolumeFactor     float64            `mapstructure:"largeVolumeFactor"`
	MaxComplianceBonusPct float64            `mapstructure:"maxComplianceBonusPct"`
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		ReconciliationTolerancePct:  2,
		DefaultTariffPerLitreKm:     0.0012,
		WithholdingTaxPct:           7.5,
		SettlementApprovalThreshold: 10000,
		WindowRetentionDays:         365,
		SubmissionLeadDays:          2,
		SubmissionCutoffHour:        17,
		MinPumpPrice:                0.50,
		MaxPumpPrice:                50.00,
		RequiredComponents:          []string{"EXREF", "BOST", "UPPF"},
		RequiredUPPFProducts:        []string{"PMS", "AGO", "KEROSENE", "LPG"},
		RateAlerts: RateAlertPolicy{
			LowPct:           5,
			HighPct:          10,
			CriticalPct:      20,
			CriticalAbsolute: 0.05,
		},
		Levy: LevyPolicy{
			BaseRates: map[string]float64{
				"PMS":      0.12,
				"AGO":      0.12,
				"KEROSENE": 0.08,
				"LPG":      0.05,
			},
			RouteFactors: map[string]float64{
				"HIGHWAY": 1.00,
				"URBAN":   1.05,
				"RURAL":   1.15,
				"REMOTE":  1.30,
			},
			ProductFactors: map[string]float64{
				"PMS":      1.00,
				"AGO":      1.00,
				"KEROSENE": 0.95,
				"LPG":      0.90,
			},
			ClaimablePct: map[string]float64{
				"PMS":      100,
				"AGO":      100,
				"KEROSENE": 80,
				"LPG":      0,
			},
			SmallVolumeLitres:     20000,
			LargeVolumeLitres:     50000,
			SmallVolumeFactor:     1.05,
			LargeVolumeFactor:     0.95,
			MaxComplianceBonusPct: 5,
		},
	}
}

// PolicyHolder serves the current PricingPolicy and swaps it atomically when
// policy.yml changes on disk.
type PolicyHolder struct {
	current atomic.Value // holds PricingPolicy
}

func NewStaticPolicyHolder(p PricingPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(normalizePolicy(p))
	return holder
}

func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("config.policy")
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	for _, path := range cfg.PolicyPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("PETROPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingPolicy()
	setPolicyDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("policy file not found, using defaults")
	}

	var policy PricingPolicy
	if err := v.UnmarshalKey("pricing", &policy); err != nil {
		return nil, err
	}
	policy = normalizePolicy(policy)
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingPolicy
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		updated = normalizePolicy(updated)
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() PricingPolicy {
	if h == nil {
		return normalizePolicy(DefaultPricingPolicy())
	}
	return h.current.Load().(PricingPolicy)
}

func setPolicyDefaults(v *viper.Viper, p PricingPolicy) {
	v.SetDefault("pricing.reconciliationTolerancePct", p.ReconciliationTolerancePct)
	v.SetDefault("pricing.defaultTariffPerLitreKm", p.DefaultTariffPerLitreKm)
	v.SetDefault("pricing.withholdingTaxPct", p.WithholdingTaxPct)
	v.SetDefault("pricing.settlementApprovalThreshold", p.SettlementApprovalThreshold)
	v.SetDefault("pricing.windowRetentionDays", p.WindowRetentionDays)
	v.SetDefault("pricing.submissionLeadDays", p.SubmissionLeadDays)
	v.SetDefault("pricing.submissionCutoffHour", p.SubmissionCutoffHour)
	v.SetDefault("pricing.minPumpPrice", p.MinPumpPrice)
	v.SetDefault("pricing.maxPumpPrice", p.MaxPumpPrice)
	v.SetDefault("pricing.requiredComponents", p.RequiredComponents)
	v.SetDefault("pricing.requiredUppfProducts", p.RequiredUPPFProducts)
	v.SetDefault("pricing.rateAlerts", map[string]any{
		"lowPct":           p.RateAlerts.LowPct,
		"highPct":          p.RateAlerts.HighPct,
		"criticalPct":      p.RateAlerts.CriticalPct,
		"criticalAbsolute": p.RateAlerts.CriticalAbsolute,
	})
	v.SetDefault("pricing.levy", map[string]any{
		"baseRates":             p.Levy.BaseRates,
		"routeFactors":          p.Levy.RouteFactors,
		"productFactors":        p.Levy.ProductFactors,
		"claimablePct":          p.Levy.ClaimablePct,
		"smallVolumeLitres":     p.Levy.SmallVolumeLitres,
		"largeVolumeLitres":     p.Levy.LargeVolumeLitres,
		"smallVolumeFactor":     p.Levy.SmallVolumeFactor,
		"largeVolumeFactor":     p.Levy.LargeVolumeFactor,
		"maxComplianceBonusPct": p.Levy.MaxComplianceBonusPct,
	})
}

// normalizePolicy upper-cases map keys; viper lower-cases them on read.
func normalizePolicy(p PricingPolicy) PricingPolicy {
	p.Levy.BaseRates = upperKeys(p.Levy.BaseRates)
	p.Levy.RouteFactors = upperKeys(p.Levy.RouteFactors)
	p.Levy.ProductFactors = upperKeys(p.Levy.ProductFactors)
	p.Levy.ClaimablePct = upperKeys(p.Levy.ClaimablePct)
	for i, code := range p.RequiredComponents {
		p.RequiredComponents[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	for i, code := range p.RequiredUPPFProducts {
		p.RequiredUPPFProducts[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	return p
}

func upperKeys(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

func validatePolicy(p PricingPolicy) error {
	if p.ReconciliationTolerancePct < 0 {
		return errors.New("pricing.reconciliationTolerancePct cannot be negative")
	}
	if p.DefaultTariffPerLitreKm <= 0 {
		return errors.New("pricing.defaultTariffPerLitreKm must be positive")
	}
	if p.WithholdingTaxPct < 0 || p.WithholdingTaxPct > 100 {
		return errors.New("pricing.withholdingTaxPct must be between 0 and 100")
	}
	if p.WindowRetentionDays <= 0 {
		return errors.New("pricing.windowRetentionDays must be positive")
	}
	if p.SubmissionCutoffHour < 0 || p.SubmissionCutoffHour > 23 {
		return errors.New("pricing.submissionCutoffHour must be an hour of day")
	}
	if p.MinPumpPrice < 0 || p.MaxPumpPrice <= p.MinPumpPrice {
		return errors.New("pricing.minPumpPrice/maxPumpPrice band is invalid")
	}
	return nil
}
