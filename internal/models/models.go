package models

import (
	"time"
)

// Feature names a numeric column of the historical table. The string value is
// the exact CSV header.
type Feature string

const (
	FeatureMinTemp       Feature = "MinTemp"
	FeatureMaxTemp       Feature = "MaxTemp"
	FeatureWindGustDir   Feature = "WindGustDir"
	FeatureWindGustSpeed Feature = "WindGustSpeed"
	FeatureHumidity      Feature = "Humidity"
	FeaturePressure      Feature = "Pressure"
	FeatureTemp          Feature = "Temp"
	FeatureRainTomorrow  Feature = "RainTomorrow"
)

// HistoricalRow is one day of the historical observation table.
type HistoricalRow struct {
	MinTemp       float64
	MaxTemp       float64
	WindGustDir   string // compass label, e.g. "NNE"
	WindGustSpeed float64
	Humidity      float64
	Pressure      float64
	Temp          float64
	RainTomorrow  string // "Yes" / "No"
}

// Value returns the numeric value of f. Categorical columns report false.
func (r HistoricalRow) Value(f Feature) (float64, bool) {
	switch f {
	case FeatureMinTemp:
		return r.MinTemp, true
	case FeatureMaxTemp:
		return r.MaxTemp, true
	case FeatureWindGustSpeed:
		return r.WindGustSpeed, true
	case FeatureHumidity:
		return r.Humidity, true
	case FeaturePressure:
		return r.Pressure, true
	case FeatureTemp:
		return r.Temp, true
	default:
		return 0, false
	}
}

// CurrentObservation is a snapshot of conditions at a location, as reported
// by the observation provider.
type CurrentObservation struct {
	Location    string
	Country     string
	Description string
	Temp        float64
	TempMin     float64
	TempMax     float64
	FeelsLike   float64
	Humidity    float64
	WindBearing float64 // degrees
	WindSpeed   float64
	Pressure    float64
	Clouds      int // percent
	Visibility  int // metres
	ObservedAt  time.Time
}

// Slot is one forecasted hour.
type Slot struct {
	Time        time.Time
	Label       string // "15:00"
	Temperature float64
	Humidity    float64
}

// Bundle is the result of one forecast run.
type Bundle struct {
	RainTomorrow bool
	Slots        []Slot
}

// ForecastRun is a completed run together with the inputs that produced it.
type ForecastRun struct {
	ID           string
	CreatedAt    time.Time
	Current      CurrentObservation
	WindDir      string // compass label derived from Current.WindBearing
	WindDirKnown bool   // false when WindDir never appeared in the history
	HistoryRows  int
	Bundle
}
