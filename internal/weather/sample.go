package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Sample is the consolidated record emitted for one period.
// Nil fields had no data in the period and encode as null.
type Sample struct {
	Temperature [MaxSensors]*float64
	Humidity    [MaxSensors]*float64

	Wind        *float64
	WindDir     *float64
	WindGust    *float64
	WindGustDir *float64
	Rain        *float64
	RainRate    *float64
	Pressure    *float64
	DewPoint    *float64
	UVIndex     *int
	SolarRad    *float64

	LocalTime time.Time

	// Missing lists the metrics that were expected but absent. Not serialised.
	Missing []Metric
}

// Field is one key/value pair of the flat sample mapping.
type Field struct {
	Key   string
	Value any
}

// Fields returns the flat mapping in schema order. Nil pointers become nil values.
func (s Sample) Fields() []Field {
	out := make([]Field, 0, 2*MaxSensors+11)
	for _, sensor := range sensorOrder {
		out = append(out, Field{TemperatureKey(sensor), deref(s.Temperature[sensor])})
	}
	for _, sensor := range sensorOrder {
		out = append(out, Field{HumidityKey(sensor), deref(s.Humidity[sensor])})
	}
	var uv any
	if s.UVIndex != nil {
		uv = *s.UVIndex
	}
	var localtime any
	if !s.LocalTime.IsZero() {
		localtime = s.LocalTime
	}
	return append(out,
		Field{"wind", deref(s.Wind)},
		Field{"wind_dir", deref(s.WindDir)},
		Field{"wind_gust", deref(s.WindGust)},
		Field{"wind_gust_dir", deref(s.WindGustDir)},
		Field{"rain", deref(s.Rain)},
		Field{"rain_rate", deref(s.RainRate)},
		Field{"pressure", deref(s.Pressure)},
		Field{"dew_point", deref(s.DewPoint)},
		Field{"uv_index", uv},
		Field{"solar_rad", deref(s.SolarRad)},
		Field{"localtime", localtime},
	)
}

// sensorOrder lists main first, then interior, then the numbered slots.
var sensorOrder = func() []int {
	order := []int{MainSensor, InteriorSensor}
	for s := 0; s < MaxSensors; s++ {
		if RoleOf(s) == RoleAuxiliary {
			order = append(order, s)
		}
	}
	return order
}()

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// MarshalJSON encodes the sample as the flat key mapping.
func (s Sample) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(f.Key)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SetFloat stores v in the float field named by the flat key. It returns
// false for unknown keys and for uv_index and localtime, which are not floats.
func (s *Sample) SetFloat(key string, v *float64) bool {
	for sensor := 0; sensor < MaxSensors; sensor++ {
		switch key {
		case TemperatureKey(sensor):
			s.Temperature[sensor] = v
			return true
		case HumidityKey(sensor):
			s.Humidity[sensor] = v
			return true
		}
	}
	var field **float64
	switch key {
	case "wind":
		field = &s.Wind
	case "wind_dir":
		field = &s.WindDir
	case "wind_gust":
		field = &s.WindGust
	case "wind_gust_dir":
		field = &s.WindGustDir
	case "rain":
		field = &s.Rain
	case "rain_rate":
		field = &s.RainRate
	case "pressure":
		field = &s.Pressure
	case "dew_point":
		field = &s.DewPoint
	case "solar_rad":
		field = &s.SolarRad
	default:
		return false
	}
	*field = v
	return true
}

// UnmarshalJSON decodes the flat key mapping produced by MarshalJSON.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Sample{}
	for key, msg := range raw {
		switch key {
		case "uv_index":
			if err := json.Unmarshal(msg, &s.UVIndex); err != nil {
				return fmt.Errorf("decode uv_index: %w", err)
			}
		case "localtime":
			var ts *time.Time
			if err := json.Unmarshal(msg, &ts); err != nil {
				return fmt.Errorf("decode localtime: %w", err)
			}
			if ts != nil {
				s.LocalTime = *ts
			}
		default:
			var v *float64
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			s.SetFloat(key, v)
		}
	}
	return nil
}
