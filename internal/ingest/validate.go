package ingest

import (
	"github.com/lox/raincast/internal/models"
)

const (
	FlagTempOutOfRange     = "temp_out_of_range"
	FlagTempRangeInverted  = "temp_range_inverted"
	FlagHumidityInvalid    = "humidity_invalid"
	FlagWindDirInvalid     = "wind_dir_invalid"
	FlagWindSpeedUnlikely  = "wind_speed_unlikely"
	FlagPressureOutOfRange = "pressure_out_of_range"
	FlagCloudsInvalid      = "clouds_invalid"
	FlagVisibilityInvalid  = "visibility_invalid"
)

// ValidateObservation returns quality flags for values outside what the
// provider can plausibly report. Flags are advisory; the observation is still
// used.
func ValidateObservation(obs *models.CurrentObservation) []string {
	var flags []string

	for _, t := range []float64{obs.Temp, obs.TempMin, obs.TempMax, obs.FeelsLike} {
		if t < -90 || t > 60 {
			flags = append(flags, FlagTempOutOfRange)
			break
		}
	}
	if obs.TempMin > obs.TempMax {
		flags = append(flags, FlagTempRangeInverted)
	}

	if obs.Humidity < 0 || obs.Humidity > 100 {
		flags = append(flags, FlagHumidityInvalid)
	}

	if obs.WindBearing < 0 || obs.WindBearing > 360 {
		flags = append(flags, FlagWindDirInvalid)
	}

	// m/s with metric units
	if obs.WindSpeed < 0 || obs.WindSpeed > 120 {
		flags = append(flags, FlagWindSpeedUnlikely)
	}

	if obs.Pressure < 870 || obs.Pressure > 1085 {
		flags = append(flags, FlagPressureOutOfRange)
	}

	if obs.Clouds < 0 || obs.Clouds > 100 {
		flags = append(flags, FlagCloudsInvalid)
	}

	if obs.Visibility < 0 || obs.Visibility > 10000 {
		flags = append(flags, FlagVisibilityInvalid)
	}

	return flags
}
