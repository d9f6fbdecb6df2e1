package weather

import (
	"errors"
	"fmt"
	"math"
)

// SensorModel names the psychrometric coefficients used for dew point.
type SensorModel string

const (
	ModelDavisVP SensorModel = "vaDavisVP"
	ModelBolton  SensorModel = "vaBolton"
	ModelTetens  SensorModel = "vaTetens"
)

var ErrUnknownSensorModel = errors.New("unknown sensor model")

// Magnus coefficients (a, b in degC) per model.
var magnus = map[SensorModel][2]float64{
	ModelDavisVP: {17.62, 243.12},
	ModelBolton:  {17.67, 243.5},
	ModelTetens:  {17.27, 237.3},
}

// ParseSensorModel validates a model name.
func ParseSensorModel(s string) (SensorModel, error) {
	m := SensorModel(s)
	if _, ok := magnus[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSensorModel, s)
	}
	return m, nil
}

// DewPoint returns the dew point in degC for temp (degC) and relative humidity (%).
func DewPoint(temp, hum float64, model SensorModel) (float64, error) {
	c, ok := magnus[model]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSensorModel, model)
	}
	if hum <= 0 {
		return 0, fmt.Errorf("dew point: humidity must be positive, got %v", hum)
	}
	a, b := c[0], c[1]
	gamma := math.Log(hum/100) + a*temp/(b+temp)
	return b * gamma / (a - gamma), nil
}

// PredominantWindDirection averages wind vectors weighted by speed and returns
// the resulting direction in degrees [0, 360). Vectors without a direction are
// skipped. It returns false when the resultant vector is zero.
func PredominantWindDirection(vectors []WindVector) (float64, bool) {
	var x, y float64
	for _, v := range vectors {
		if v.Direction == nil {
			continue
		}
		rad := *v.Direction * math.Pi / 180
		x += v.Speed * math.Sin(rad)
		y += v.Speed * math.Cos(rad)
	}
	if math.Abs(x) < 1e-9 && math.Abs(y) < 1e-9 {
		return 0, false
	}
	deg := math.Atan2(x, y) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg, true
}
