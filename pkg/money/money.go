package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user entered amount such as "150" or "150.50"
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %q", s)
	}
	return d, nil
}

// Format renders an amount with two decimals
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FeeCalculator splits a gross rate into platform fee and creator net
type FeeCalculator struct {
	rate decimal.Decimal
}

// NewFeeCalculator takes the fee as a fraction, e.g. "0.15"
func NewFeeCalculator(rate string) (*FeeCalculator, error) {
	d, err := ParseAmount(rate)
	if err != nil {
		return nil, fmt.Errorf("fee rate: %w", err)
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fee rate %s exceeds 1", rate)
	}
	return &FeeCalculator{rate: d}, nil
}

// Breakdown is the rounded split of one gross amount
type Breakdown struct {
	Gross decimal.Decimal `json:"gross"`
	Fee   decimal.Decimal `json:"fee"`
	Net   decimal.Decimal `json:"net"`
}

// Split rounds the fee half up to cents; net absorbs the remainder so
// fee + net always equals gross
func (c *FeeCalculator) Split(gross decimal.Decimal) Breakdown {
	gross = gross.Round(2)
	fee := gross.Mul(c.rate).Round(2)
	return Breakdown{
		Gross: gross,
		Fee:   fee,
		Net:   gross.Sub(fee),
	}
}
