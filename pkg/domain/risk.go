package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "kanon/pkg/domain-errors"
)

// Risk is a privacy-risk amount in micro-units (scale 6). All budget
// arithmetic happens on int64 so that consumed + remaining == allocated holds
// exactly; float64 never enters the invariant path.
//
// The scale matches the original ledger columns: numeric(19,6).
type Risk int64

// RiskScale is the number of micro-units per whole risk unit.
const RiskScale = 1_000_000

// RiskFromUnits builds a Risk from a whole-unit float at the configuration
// boundary. Only config parsing and request decoding should call this;
// internal arithmetic stays on Risk.
func RiskFromUnits(units float64) Risk {
	if units >= 0 {
		return Risk(units*RiskScale + 0.5)
	}
	return Risk(units*RiskScale - 0.5)
}

// ParseRisk parses a decimal string such as "0.1" or "10" into micro-units
// without going through float64.
func ParseRisk(s string) (Risk, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "risk amount cannot be empty")
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid risk amount")
	}
	var f int64
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		f, err = strconv.ParseInt(frac+strings.Repeat("0", 6-len(frac)), 10, 64)
		if err != nil {
			return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid risk amount")
		}
	}
	r := Risk(w*RiskScale + f)
	if neg {
		r = -r
	}
	return r, nil
}

// Units returns the whole-unit float representation for display and metrics.
func (r Risk) Units() float64 {
	return float64(r) / RiskScale
}

// String formats the amount as a decimal with trailing zeros trimmed.
func (r Risk) String() string {
	sign := ""
	v := int64(r)
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / RiskScale
	frac := v % RiskScale
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	fs := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, fs)
}
