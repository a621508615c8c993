package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 alphabetic code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	PLN Currency = "PLN"
	CZK Currency = "CZK"
	HUF Currency = "HUF"
	SEK Currency = "SEK"
	CHF Currency = "CHF"
	INR Currency = "INR"
	AUD Currency = "AUD"
	CAD Currency = "CAD"
	JPY Currency = "JPY"
	KRW Currency = "KRW"
	CLP Currency = "CLP"
	BHD Currency = "BHD"
	KWD Currency = "KWD"
	JOD Currency = "JOD"
	OMR Currency = "OMR"
)

var currencyExponents = map[Currency]int32{
	USD: 2, EUR: 2, GBP: 2, PLN: 2, CZK: 2, HUF: 2, SEK: 2, CHF: 2, INR: 2, AUD: 2, CAD: 2,
	JPY: 0, KRW: 0, CLP: 0,
	BHD: 3, KWD: 3, JOD: 3, OMR: 3,
}

var ErrUnknownCurrency = errors.New("unknown currency")

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := currencyExponents[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

// Exponent returns the number of minor-unit digits of the currency.
func (c Currency) Exponent() (int32, error) {
	exp, ok := currencyExponents[c]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, string(c))
	}
	return exp, nil
}

func (c Currency) String() string { return string(c) }

// ToStringMajorUnit converts an amount in minor units to its major-unit decimal string.
// 1000 USD becomes "10.00", 1000 JPY stays "1000".
func ToStringMajorUnit(amount int64, c Currency) (string, error) {
	exp, err := c.Exponent()
	if err != nil {
		return "", err
	}
	return decimal.New(amount, -exp).StringFixed(exp), nil
}

// FromStringMajorUnit parses a major-unit decimal string back into minor units.
// Amounts with more precision than the currency allows are rejected.
func FromStringMajorUnit(s string, c Currency) (int64, error) {
	exp, err := c.Exponent()
	if err != nil {
		return 0, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Shift(exp)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places for %s", s, exp, c)
	}
	return minor.IntPart(), nil
}

// AmountConvertor converts canonical minor-unit amounts into the form a
// connector puts on the wire, and back.
type AmountConvertor[T any] interface {
	Convert(amount int64, c Currency) (T, error)
	ConvertBack(amount T, c Currency) (int64, error)
}

// MinorUnitForConnector passes minor units through unchanged.
type MinorUnitForConnector struct{}

func (MinorUnitForConnector) Convert(amount int64, _ Currency) (int64, error)     { return amount, nil }
func (MinorUnitForConnector) ConvertBack(amount int64, _ Currency) (int64, error) { return amount, nil }

// StringMinorUnitForConnector renders minor units as a decimal integer string.
type StringMinorUnitForConnector struct{}

func (StringMinorUnitForConnector) Convert(amount int64, _ Currency) (string, error) {
	return decimal.NewFromInt(amount).String(), nil
}

func (StringMinorUnitForConnector) ConvertBack(amount string, _ Currency) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("amount %q is not a whole number of minor units", amount)
	}
	return d.IntPart(), nil
}

// StringMajorUnitForConnector renders amounts in the major unit, e.g. "10.00".
type StringMajorUnitForConnector struct{}

func (StringMajorUnitForConnector) Convert(amount int64, c Currency) (string, error) {
	return ToStringMajorUnit(amount, c)
}

func (StringMajorUnitForConnector) ConvertBack(amount string, c Currency) (int64, error) {
	return FromStringMajorUnit(amount, c)
}
