package model

import "strings"

// Code is an ISO 4217 currency code, normalized to upper case.
type Code string

func (c Code) String() string {
	return string(c)
}

// Normalize upper-cases and trims a raw code. It does not validate.
func Normalize(raw string) Code {
	return Code(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsWellFormed reports whether the code is three ASCII letters.
func (c Code) IsWellFormed() bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

// zeroDecimalCurrencies and threeDecimalCurrencies are the ISO 4217 exceptions
// to the usual two decimal places.
var zeroDecimalCurrencies = map[Code]struct{}{
	"JPY": {}, "KRW": {}, "VND": {}, "CLP": {}, "ISK": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VUV": {}, "XOF": {}, "XAF": {},
}

var threeDecimalCurrencies = map[Code]struct{}{
	"BHD": {}, "IQD": {}, "JOD": {}, "KWD": {}, "LYD": {}, "OMR": {}, "TND": {},
}

// DecimalPlaces returns the canonical number of decimal places for the
// currency's minor unit.
func (c Code) DecimalPlaces() int32 {
	if _, ok := zeroDecimalCurrencies[c]; ok {
		return 0
	}
	if _, ok := threeDecimalCurrencies[c]; ok {
		return 3
	}
	return 2
}

// ExcludedSet is a fixed set of currency codes that are rejected everywhere in
// the core before any cache or provider interaction.
type ExcludedSet map[Code]struct{}

// NewExcludedSet builds the set from raw codes, normalizing each.
func NewExcludedSet(codes []string) ExcludedSet {
	s := make(ExcludedSet, len(codes))
	for _, raw := range codes {
		if code := Normalize(raw); code != "" {
			s[code] = struct{}{}
		}
	}
	return s
}

// Contains reports whether the code is excluded.
func (s ExcludedSet) Contains(c Code) bool {
	_, ok := s[c]
	return ok
}

// Codes returns the excluded codes, for logging and the currencies endpoint.
func (s ExcludedSet) Codes() []Code {
	out := make([]Code, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}
