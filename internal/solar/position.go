// Package solar computes the sun's position from the NOAA general solar
// position approximation (truncated Fourier series for the equation of time
// and declination).
package solar

import (
	"errors"
	"math"
	"time"
)

// ErrNonFinite is returned when an input or the computed angle is NaN or infinite
var ErrNonFinite = errors.New("solar: non-finite input")

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Position holds the intermediate and final solar angles for one instant
type Position struct {
	EquationOfTime float64 // minutes
	Declination    float64 // radians
	HourAngle      float64 // degrees
	Zenith         float64 // degrees
	Elevation      float64 // degrees
}

// Elevation returns the solar elevation angle in degrees at (lat, lon) for
// instant t. The instant is converted to UTC before use.
func Elevation(lat, lon float64, t time.Time) (float64, error) {
	p, err := Compute(lat, lon, t)
	if err != nil {
		return 0, err
	}
	return p.Elevation, nil
}

// Compute returns the full solar position for (lat, lon) at instant t
func Compute(lat, lon float64, t time.Time) (Position, error) {
	if !finite(lat) || !finite(lon) {
		return Position{}, ErrNonFinite
	}

	t = t.UTC()
	doy := float64(t.YearDay())
	hour := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600

	gamma := 2.0 * math.Pi / 365.0 * (doy - 1 + (hour-12.0)/24.0)

	eqTime := 229.18 * (0.000075 +
		0.001868*math.Cos(gamma) -
		0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) -
		0.040849*math.Sin(2*gamma))

	decl := 0.006918 -
		0.399912*math.Cos(gamma) +
		0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) +
		0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) +
		0.00148*math.Sin(3*gamma)

	timeOffset := eqTime + 4.0*lon
	trueSolarMinutes := hour*60.0 + timeOffset
	hourAngle := trueSolarMinutes/4.0 - 180.0

	latRad := lat * degToRad
	cosZenith := math.Sin(latRad)*math.Sin(decl) +
		math.Cos(latRad)*math.Cos(decl)*math.Cos(hourAngle*degToRad)

	// Rounding can push the cosine just outside [-1, 1].
	cosZenith = math.Max(-1, math.Min(1, cosZenith))
	zenith := math.Acos(cosZenith) * radToDeg

	elevation := 90.0 - zenith
	if !finite(elevation) {
		return Position{}, ErrNonFinite
	}

	return Position{
		EquationOfTime: eqTime,
		Declination:    decl,
		HourAngle:      hourAngle,
		Zenith:         zenith,
		Elevation:      elevation,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
