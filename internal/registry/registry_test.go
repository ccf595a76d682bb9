package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-forecast/internal/models"
)

const mappingJSON = `{
	"Mysuru":    {"lat": 12.2958, "lon": 76.6394, "model": "karnataka_south"},
	"Belagavi":  {"lat": 15.8497, "lon": 74.4977, "model": "karnataka_north"},
	"Bengaluru": {"lat": 12.9716, "lon": 77.5946, "model": "karnataka_south"}
}`

func TestDecodeAndNew(t *testing.T) {
	regions, err := Decode(strings.NewReader(mappingJSON))
	require.NoError(t, err)
	require.Len(t, regions, 3)
	assert.Equal(t, "Belagavi", regions[0].City)

	reg, err := New(regions)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"Belagavi", "Bengaluru", "Mysuru"}, reg.Cities())
	assert.Equal(t, []string{"karnataka_north", "karnataka_south"}, reg.ModelNames())

	region, ok := reg.Lookup("Mysuru")
	require.True(t, ok)
	assert.Equal(t, models.GeoPoint{Latitude: 12.2958, Longitude: 76.6394}, region.Point())
	assert.Equal(t, "karnataka_south", region.Model)

	_, ok = reg.Lookup("mysuru")
	assert.False(t, ok, "lookup is case-sensitive")
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		regions []models.Region
	}{
		{"empty city", []models.Region{{City: " ", Model: "m"}}},
		{"empty model", []models.Region{{City: "A"}}},
		{"latitude out of range", []models.Region{{City: "A", Latitude: 95, Model: "m"}}},
		{"duplicate", []models.Region{{City: "A", Model: "m"}, {City: "A", Model: "n"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.regions)
			assert.Error(t, err)
		})
	}
}

func TestDecode_MissingCoordinates(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"X": {"lat": 1, "model": "m"}}`))
	assert.Error(t, err)
}

func TestAccessorsReturnCopies(t *testing.T) {
	reg, err := New([]models.Region{{City: "A", Model: "m"}, {City: "B", Model: "n"}})
	require.NoError(t, err)

	cities := reg.Cities()
	cities[0] = "Z"
	assert.Equal(t, []string{"A", "B"}, reg.Cities())

	names := reg.ModelNames()
	names[0] = "Z"
	assert.Equal(t, []string{"m", "n"}, reg.ModelNames())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "city_mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(mappingJSON), 0o600))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
	assert.Len(t, reg.Regions(), 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
