package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// VaultParams are the strategy parameters for one covered-call vault, loaded
// from the environment with conservative defaults. Delta and spread values
// are strategy tuning knobs; the defaults match a weekly ~0.3-delta covered
// call on an LRT collateral vault.
type VaultParams struct {
	Currency string
	SpotName string
	CashName string

	ExpiryDays     int
	MinExpiryHours int

	TargetDelta decimal.Decimal
	MaxDelta    decimal.Decimal

	OptionAuctionDelay time.Duration
	SpotAuctionDelay   time.Duration

	// Option auction knobs (IV space).
	InitIVSpread         float64
	IVSpreadPerMin       float64
	MaxIVSpread          float64
	OptionAuctionSec     int64
	PriceChangeTolerance decimal.Decimal

	// Spot auction knobs (price space).
	InitSpotSpread   float64
	SpotSpreadPerMin float64
	MaxSpotSpread    float64
	SpotAuctionSec   int64
	MaxCash          decimal.Decimal
	RoundUpSells     bool
}

// getEnvAsDecimalOr retrieves a decimal environment variable with a fallback
// default. The fallback must itself parse; invalid set values are an error
// rather than silently ignored, since these are trading parameters.
func getEnvAsDecimalOr(key, fallback string) (decimal.Decimal, error) {
	valueStr := getEnvOr(key, fallback)
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("environment variable %s must be a valid decimal, got: %s", key, valueStr)
	}
	return value, nil
}

func loadVaultParams() (VaultParams, error) {
	currency, err := getEnv("OPTION_CURRENCY")
	if err != nil {
		return VaultParams{}, err
	}
	spotName, err := getEnv("SPOT_NAME")
	if err != nil {
		return VaultParams{}, err
	}
	cashName, err := getEnv("CASH_NAME")
	if err != nil {
		return VaultParams{}, err
	}

	p := VaultParams{
		Currency:       currency,
		SpotName:       spotName,
		CashName:       cashName,
		ExpiryDays:     int(getEnvAsInt64Or("EXPIRY_DAYS", 7)),
		MinExpiryHours: int(getEnvAsInt64Or("MIN_EXPIRY_HOURS", 24)),

		OptionAuctionDelay: time.Duration(getEnvAsInt64Or("OPTION_AUCTION_DELAY_MIN", 120)) * time.Minute,
		SpotAuctionDelay:   time.Duration(getEnvAsInt64Or("SPOT_AUCTION_DELAY_MIN", 30)) * time.Minute,

		InitIVSpread:     getEnvAsFloat64Or("INIT_IV_SPREAD", 0.02),
		IVSpreadPerMin:   getEnvAsFloat64Or("IV_SPREAD_PER_MIN", 0.001),
		MaxIVSpread:      getEnvAsFloat64Or("MAX_IV_SPREAD", 0.08),
		OptionAuctionSec: getEnvAsInt64Or("OPTION_AUCTION_SEC", 3600),

		InitSpotSpread:   getEnvAsFloat64Or("INIT_SPOT_SPREAD", 0.0005),
		SpotSpreadPerMin: getEnvAsFloat64Or("SPOT_SPREAD_PER_MIN", 0.0001),
		MaxSpotSpread:    getEnvAsFloat64Or("MAX_SPOT_SPREAD", 0.005),
		SpotAuctionSec:   getEnvAsInt64Or("SPOT_AUCTION_SEC", 1800),
		RoundUpSells:     getEnvOr("ROUND_UP_SELLS", "false") == "true",
	}

	p.TargetDelta, err = getEnvAsDecimalOr("TARGET_DELTA", "0.3")
	if err != nil {
		return VaultParams{}, err
	}
	p.MaxDelta, err = getEnvAsDecimalOr("MAX_DELTA", "0.4")
	if err != nil {
		return VaultParams{}, err
	}
	p.PriceChangeTolerance, err = getEnvAsDecimalOr("PRICE_CHANGE_TOLERANCE", "0.1")
	if err != nil {
		return VaultParams{}, err
	}
	p.MaxCash, err = getEnvAsDecimalOr("MAX_CASH", "10")
	if err != nil {
		return VaultParams{}, err
	}

	if p.ExpiryDays <= 0 {
		return VaultParams{}, fmt.Errorf("EXPIRY_DAYS must be positive, got: %d", p.ExpiryDays)
	}
	return p, nil
}
