package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAConversionRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 10, 83.633083, 187.7059, 359.999} {
		hms := RAToHMS(deg)
		back, err := HMSToRA(hms)
		require.NoError(t, err, hms)
		assert.InDelta(t, deg, back, 1e-5, hms)
	}
	assert.Equal(t, "00:40:00.0000", RAToHMS(10))
}

func TestDecConversionRoundTrip(t *testing.T) {
	for _, deg := range []float64{-89.5, -0.5, 0, 22.0145, 41.269065} {
		dms := DecToDMS(deg)
		back, err := DMSToDec(dms)
		require.NoError(t, err, dms)
		assert.InDelta(t, deg, back, 1e-5, dms)
	}
	assert.Equal(t, "-00:30:00.0000", DecToDMS(-0.5))

	v, err := DMSToDec("-00:30:00")
	require.NoError(t, err)
	assert.Equal(t, -0.5, v)
}

func TestSexagesimalRejectsMalformedInput(t *testing.T) {
	_, err := HMSToRA("25:00:00")
	require.Error(t, err)
	_, err = HMSToRA("12:30")
	require.Error(t, err)
	_, err = DMSToDec("+91:00:00")
	require.Error(t, err)
}

func TestArcsecConversion(t *testing.T) {
	assert.Equal(t, 8.0, DegToArcsec(0.00222222))
	assert.InDelta(t, 0.00222222, ArcsecToDeg(8), 1e-8)
}
