// Package numerator provides domain contracts for document running codes.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict takes every number from the database; no gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges in memory; restarts may leave gaps.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// ResetPeriod controls when the running number restarts at 1.
type ResetPeriod string

const (
	ResetMonthly ResetPeriod = "month"
	ResetYearly  ResetPeriod = "year"
	ResetNever   ResetPeriod = "never"
)

// Config describes one running-code series.
type Config struct {
	// Type namespaces the sequence (e.g. "PR", "GRN").
	Type string

	// Pattern is the code template, see ParsePattern.
	Pattern string

	ResetPeriod ResetPeriod
}

// DefaultPurchaseRequestPattern yields codes like PR2610-00001.
const DefaultPurchaseRequestPattern = "PR{date:yyMM}-{running:5}"

// PurchaseRequestConfig returns the series used for permanent pr_no values.
func PurchaseRequestConfig(pattern string) Config {
	if pattern == "" {
		pattern = DefaultPurchaseRequestPattern
	}
	return Config{
		Type:        "PR",
		Pattern:     pattern,
		ResetPeriod: ResetMonthly,
	}
}
