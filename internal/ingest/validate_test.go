package ingest

import (
	"slices"
	"testing"

	"github.com/lox/raincast/internal/models"
)

func validObservation() models.CurrentObservation {
	return models.CurrentObservation{
		Temp: 12, TempMin: 9, TempMax: 14, FeelsLike: 11,
		Humidity: 81, WindBearing: 230, WindSpeed: 6, Pressure: 1004,
		Clouds: 75, Visibility: 10000,
	}
}

func TestValidateObservation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.CurrentObservation)
		wantFlags []string
	}{
		{"valid", func(*models.CurrentObservation) {}, nil},
		{"temp too hot", func(o *models.CurrentObservation) { o.Temp = 65 }, []string{FlagTempOutOfRange}},
		{"feels like too cold", func(o *models.CurrentObservation) { o.FeelsLike = -95; o.TempMin = -95 }, []string{FlagTempOutOfRange}},
		{"min above max", func(o *models.CurrentObservation) { o.TempMin = 20 }, []string{FlagTempRangeInverted}},
		{"humidity over 100", func(o *models.CurrentObservation) { o.Humidity = 105 }, []string{FlagHumidityInvalid}},
		{"bearing negative", func(o *models.CurrentObservation) { o.WindBearing = -1 }, []string{FlagWindDirInvalid}},
		{"bearing 360 valid", func(o *models.CurrentObservation) { o.WindBearing = 360 }, nil},
		{"wind unlikely", func(o *models.CurrentObservation) { o.WindSpeed = 150 }, []string{FlagWindSpeedUnlikely}},
		{"pressure low", func(o *models.CurrentObservation) { o.Pressure = 800 }, []string{FlagPressureOutOfRange}},
		{"clouds over 100", func(o *models.CurrentObservation) { o.Clouds = 101 }, []string{FlagCloudsInvalid}},
		{"visibility negative", func(o *models.CurrentObservation) { o.Visibility = -1 }, []string{FlagVisibilityInvalid}},
		{
			"multiple",
			func(o *models.CurrentObservation) { o.Humidity = -1; o.Pressure = 2000 },
			[]string{FlagHumidityInvalid, FlagPressureOutOfRange},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := validObservation()
			tt.mutate(&obs)
			got := ValidateObservation(&obs)
			if !slices.Equal(got, tt.wantFlags) {
				t.Errorf("ValidateObservation() = %v, want %v", got, tt.wantFlags)
			}
		})
	}
}
