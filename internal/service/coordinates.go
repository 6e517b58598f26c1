package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decimal places kept on each conversion.
const (
	degreeDecimals     = 6
	sexagesimalDecimal = 4
	arcsecDecimals     = 4
	ditherDegDecimals  = 8
)

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	if math.IsInf(v*p, 0) {
		return v
	}
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}

// RAToHMS renders decimal-degree right ascension as "HH:MM:SS.ssss".
func RAToHMS(deg float64) string {
	hours := math.Mod(deg, 360) / 15
	if hours < 0 {
		hours += 24
	}
	h, m, s := splitSexagesimal(hours)
	return fmt.Sprintf("%02d:%02d:%0*.*f", h, m, sexagesimalDecimal+3, sexagesimalDecimal, s)
}

// HMSToRA parses "HH:MM:SS.s" (or space separated) into decimal degrees:
// 15*(h + m/60 + s/3600).
func HMSToRA(raw string) (float64, error) {
	parts, err := sexagesimalParts(raw)
	if err != nil {
		return 0, fmt.Errorf("ra %q: %w", raw, err)
	}
	h, m, s := parts[0], parts[1], parts[2]
	if h < 0 || h >= 24 || m < 0 || m >= 60 || s < 0 || s >= 60 {
		return 0, fmt.Errorf("ra %q: component out of range", raw)
	}
	return roundTo(15*(h+m/60+s/3600), degreeDecimals), nil
}

// DecToDMS renders decimal-degree declination as "+DD:MM:SS.ssss".
func DecToDMS(deg float64) string {
	sign := "+"
	if deg < 0 {
		sign = "-"
	}
	d, m, s := splitSexagesimal(math.Abs(deg))
	return fmt.Sprintf("%s%02d:%02d:%0*.*f", sign, d, m, sexagesimalDecimal+3, sexagesimalDecimal, s)
}

// DMSToDec parses "[+-]DD:MM:SS.s" into decimal degrees. The sign applies to
// the whole value, so "-00:30:00" is -0.5.
func DMSToDec(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	sign := 1.0
	if strings.HasPrefix(trimmed, "-") {
		sign = -1
		trimmed = trimmed[1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "+")
	}
	parts, err := sexagesimalParts(trimmed)
	if err != nil {
		return 0, fmt.Errorf("dec %q: %w", raw, err)
	}
	d, m, s := parts[0], parts[1], parts[2]
	if d < 0 || d > 90 || m < 0 || m >= 60 || s < 0 || s >= 60 {
		return 0, fmt.Errorf("dec %q: component out of range", raw)
	}
	return roundTo(sign*(d+m/60+s/3600), degreeDecimals), nil
}

// DegToArcsec converts a dither amplitude or frequency from degrees.
func DegToArcsec(deg float64) float64 {
	return roundTo(deg*3600, arcsecDecimals)
}

// ArcsecToDeg converts a dither amplitude or frequency to degrees.
func ArcsecToDeg(arcsec float64) float64 {
	return roundTo(arcsec/3600, ditherDegDecimals)
}

func splitSexagesimal(v float64) (int, int, float64) {
	whole := math.Floor(v)
	minutes := (v - whole) * 60
	m := math.Floor(minutes)
	s := roundTo((minutes-m)*60, sexagesimalDecimal)
	if s >= 60 {
		s -= 60
		m++
	}
	if m >= 60 {
		m -= 60
		whole++
	}
	return int(whole), int(m), s
}

func sexagesimalParts(raw string) ([3]float64, error) {
	var out [3]float64
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == ':' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 {
		return out, fmt.Errorf("expected three sexagesimal components")
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return out, fmt.Errorf("component %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}
