package solar

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElevation_Golden(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		at       time.Time
		want     float64
	}{
		{"bengaluru solstice noon", 12.9716, 77.5946, time.Date(2024, 6, 21, 6, 30, 0, 0, time.UTC), 78.38248319811298},
		{"london winter solstice", 51.5074, -0.1278, time.Date(2024, 12, 21, 12, 0, 0, 0, time.UTC), 15.066101146085629},
		{"bengaluru night", 12.9716, 77.5946, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), -18.014819938497737},
		{"sydney morning", -33.87, 151.21, time.Date(2024, 9, 1, 2, 0, 0, 0, time.UTC), 47.75493622989934},
		{"bengaluru midnight local", 12.9716, 77.5946, time.Date(2024, 6, 21, 18, 30, 0, 0, time.UTC), -53.2048986394698},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Elevation(tt.lat, tt.lon, tt.at)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestElevation_EquatorAtEquinox(t *testing.T) {
	got, err := Elevation(0, 0, time.Date(2024, 3, 20, 12, 7, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 90.0, got, 1.0)
}

func TestElevation_ConvertsToUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	local := time.Date(2024, 6, 21, 12, 0, 0, 0, ist)

	a, err := Elevation(12.9716, 77.5946, local)
	require.NoError(t, err)
	b, err := Elevation(12.9716, 77.5946, local.UTC())
	require.NoError(t, err)

	assert.Equal(t, b, a)
}

func TestElevation_Range(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, lat := range []float64{-90, -45, 0, 23.44, 66.5, 90} {
		for _, lon := range []float64{-180, -77, 0, 77.59, 180} {
			for h := 0; h < 365*24; h += 97 {
				got, err := Elevation(lat, lon, start.Add(time.Duration(h)*time.Hour))
				require.NoError(t, err)
				if got < -90 || got > 90 {
					t.Fatalf("elevation %f out of range for (%f, %f) at hour %d", got, lat, lon, h)
				}
			}
		}
	}
}

func TestCompute_NonFinite(t *testing.T) {
	at := time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC)
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Compute(v, 0, at)
		assert.ErrorIs(t, err, ErrNonFinite)
		_, err = Compute(0, v, at)
		assert.ErrorIs(t, err, ErrNonFinite)
	}
}

func TestCompute_Declination(t *testing.T) {
	summer, err := Compute(0, 0, time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	winter, err := Compute(0, 0, time.Date(2024, 12, 21, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.InDelta(t, 23.44, summer.Declination*radToDeg, 0.5)
	assert.InDelta(t, -23.44, winter.Declination*radToDeg, 0.5)
	assert.InDelta(t, 90.0, summer.Zenith+summer.Elevation, 1e-9)
}
