package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRulesShippedTable(t *testing.T) {
	rules, err := LoadRules("../../configs/validation_rules.yaml")
	require.NoError(t, err)

	ra, ok := rules.Ranges["ra"]
	require.True(t, ok)
	assert.Equal(t, 360.0, ra.Max)
	assert.Contains(t, rules.RankedGroups, []string{"tstart", "tstop"})
	assert.NotEmpty(t, rules.Exclusive)
}

func TestParseRulesRejectsInvertedRange(t *testing.T) {
	_, err := ParseRules([]byte("ranges:\n  ra: {min: 10, max: 1}\n"))
	require.Error(t, err)

	_, err = ParseRules([]byte("exclusive:\n  - [a, b, c]\n"))
	require.Error(t, err)
}
