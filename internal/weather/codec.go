package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var errNotObject = errors.New("payload is not a JSON object")

// ForecastHours is the number of hourly points kept from each forecast series.
const ForecastHours = 24

// Normalize maps a raw Open-Meteo response into a Record.
//
// Only a payload that is not a JSON object fails. Missing or mistyped
// sections and fields degrade to empty values so consumers always receive a
// complete envelope.
func Normalize(raw []byte, loc Location, collectedAt time.Time) (Record, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Record{}, &DecodeFailure{Location: loc, Cause: err}
	}
	if top == nil {
		return Record{}, &DecodeFailure{Location: loc, Cause: errNotObject}
	}

	current := object(top, "current")
	hourly := object(top, "hourly")

	rec := Record{
		Timestamp: collectedAt.UTC(),
		Location:  loc,
		Current: Current{
			Temperature: scalar[float64](current, "temperature_2m"),
			Humidity:    scalar[float64](current, "relative_humidity_2m"),
			WindSpeed:   scalar[float64](current, "wind_speed_10m"),
		},
		Forecast: Forecast{
			Time:                     series[string](hourly, "time"),
			Temperature:              series[*float64](hourly, "temperature_2m"),
			Humidity:                 series[*float64](hourly, "relative_humidity_2m"),
			WindSpeed:                series[*float64](hourly, "wind_speed_10m"),
			WeatherCode:              intSeries(hourly, "weather_code"),
			PrecipitationProbability: intSeries(hourly, "precipitation_probability"),
		},
	}

	if p := scalar[float64](current, "precipitation"); p != nil {
		rec.Current.Precipitation = *p
	}

	// An absent code counts as 0 (clear); a null or non-integer one is unknown.
	rawCode, present := current["weather_code"]
	switch {
	case !present:
		rec.Current.Condition = ConditionFor(0)
	default:
		rec.Current.WeatherCode = integer(rawCode)
		if rec.Current.WeatherCode == nil {
			rec.Current.Condition = ConditionUnknown
		} else {
			rec.Current.Condition = ConditionFor(*rec.Current.WeatherCode)
		}
	}

	return rec, nil
}

// object returns the named sub-object, or nil when it is absent or not an object.
func object(m map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func scalar[T any](m map[string]json.RawMessage, key string) *T {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// series decodes an array field truncated to ForecastHours. The result is
// never nil so it serializes as [].
func series[T any](m map[string]json.RawMessage, key string) []T {
	var out []T
	if raw, ok := m[key]; ok {
		if err := json.Unmarshal(raw, &out); err != nil {
			out = nil
		}
	}
	if out == nil {
		return []T{}
	}
	if len(out) > ForecastHours {
		out = out[:ForecastHours:ForecastHours]
	}
	return out
}

func intSeries(m map[string]json.RawMessage, key string) []*int {
	floats := series[*float64](m, key)
	out := make([]*int, len(floats))
	for i, f := range floats {
		out[i] = wholeNumber(f)
	}
	return out
}

func integer(raw json.RawMessage) *int {
	var f *float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return wholeNumber(f)
}

func wholeNumber(f *float64) *int {
	if f == nil || *f != math.Trunc(*f) || math.IsInf(*f, 0) {
		return nil
	}
	n := int(*f)
	return &n
}

// Encode serializes a record into its queue message body.
func Encode(rec Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record for %s: %w", rec.Location.Key(), err)
	}
	return b, nil
}
