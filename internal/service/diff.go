package service

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

// NullSentinel is the canonical normalized form of every null-like value. It
// contains characters that text normalization strips, so no text maps onto it.
const NullSentinel = "<null>"

const matchDecimals = 4

// Status indicator values.
const (
	StatusNoDiscrepancy = 0
	StatusApplied       = 1
	StatusDrift         = 2
	StatusPending       = 3
)

// Normalize canonicalizes a parameter value for comparison. Numbers round to
// four decimals, text keeps only alphanumerics and "+-=@#$%&*()" lower-cased,
// and null-like values collapse to NullSentinel.
func Normalize(v any) string {
	if models.IsNullLike(v) {
		return NullSentinel
	}
	if f, ok := toFloat(v); ok {
		return formatNumber(f)
	}
	text := stripText(models.FormatValue(v))
	if models.IsNullLike(text) {
		return NullSentinel
	}
	if f, ok := toFloat(text); ok {
		return formatNumber(f)
	}
	return text
}

// Match reports whether two values are equal after normalization.
func Match(a, b any) bool {
	return Normalize(a) == Normalize(b)
}

// MatchRanked compares two rank arrays slot by slot up to the larger of the
// two rank counts. Slots past that index lie outside either submission's
// edited range and are reported as matching.
func MatchRanked(old, cur models.RankArray, oldCount, newCount int) [models.MaxRank]bool {
	var out [models.MaxRank]bool
	limit := clampRank(max(oldCount, newCount))
	for i := 0; i < models.MaxRank; i++ {
		if i >= limit {
			out[i] = true
			continue
		}
		out[i] = Match(old[i], cur[i])
	}
	return out
}

// StatusIndicator compares the original value o, the requested value r and
// the live value c:
//
//	0  all null-like, or o == r == c
//	1  o != r and r == c (request already live)
//	2  o == r and o != c (live value drifted without a request)
//	3  r != c and r is not null-like (request not yet applied)
//
// Inputs matching no rule (a cleared request that is not live) report 0.
func StatusIndicator(o, r, c any) int {
	no, nr, nc := Normalize(o), Normalize(r), Normalize(c)
	switch {
	case no == NullSentinel && nr == NullSentinel && nc == NullSentinel:
		return StatusNoDiscrepancy
	case no == nr && nr == nc:
		return StatusNoDiscrepancy
	case no != nr && nr == nc:
		return StatusApplied
	case no == nr && no != nc:
		return StatusDrift
	case nr != nc && nr != NullSentinel:
		return StatusPending
	default:
		return StatusNoDiscrepancy
	}
}

func stripText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}
		switch r {
		case '+', '-', '=', '@', '#', '$', '%', '&', '*', '(', ')':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(roundTo(f, matchDecimals), 'f', -1, 64)
}

// toFloat extracts a finite number from numeric values or numeric text.
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.HasPrefix(strings.ToLower(strings.TrimLeft(s, "+-")), "0x") {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clampRank(n int) int {
	if n < 0 {
		return 0
	}
	if n > models.MaxRank {
		return models.MaxRank
	}
	return n
}
