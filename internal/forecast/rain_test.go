package forecast

import (
	"errors"
	"slices"
	"testing"

	"github.com/lox/raincast/internal/labels"
	"github.com/lox/raincast/internal/models"
)

func TestTrainRainClassifier(t *testing.T) {
	table := sampleTable(80, "E", "NE", "SW", "W")
	windCodes, _ := labels.FitTransform(table.WindGustDirs())
	rainCodes, _ := labels.FitTransform(table.RainLabels())

	m, err := TrainRainClassifier(RainMatrix(table.Rows(), windCodes), rainCodes)
	if err != nil {
		t.Fatalf("TrainRainClassifier: %v", err)
	}
	if m.testRows != 16 || m.trainRows != 64 {
		t.Errorf("split = %d train / %d test, want 64 / 16", m.trainRows, m.testRows)
	}
	if m.holdoutMSE < 0 || m.holdoutMSE > 1 {
		t.Errorf("holdoutMSE = %v, want within [0, 1] for binary labels", m.holdoutMSE)
	}

	got, err := m.Predict(CurrentFeatures(observation(45), labels.Unseen))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != 0 && got != 1 {
		t.Errorf("Predict = %d, want 0 or 1", got)
	}
}

func TestTrainRainClassifier_Errors(t *testing.T) {
	row := []float64{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name string
		x    [][]float64
		y    []int
	}{
		{"no rows", nil, nil},
		{"one row", [][]float64{row}, []int{1}},
		{"single class", [][]float64{row, row, row}, []int{0, 0, 0}},
		{"length mismatch", [][]float64{row, row}, []int{0}},
		{"wrong width", [][]float64{{1, 2}, {3, 4}}, []int{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := TrainRainClassifier(tt.x, tt.y)
			var trainErr *TrainingError
			if !errors.As(err, &trainErr) {
				t.Fatalf("error = %v, want *TrainingError", err)
			}
			if trainErr.Model != "rain" {
				t.Errorf("Model = %q, want rain", trainErr.Model)
			}
			if m != nil {
				t.Error("model returned alongside error")
			}
		})
	}
}

func TestHoldoutSplit(t *testing.T) {
	tests := []struct {
		n         int
		wantTrain int
		wantTest  int
	}{
		{2, 1, 1},
		{5, 4, 1},
		{6, 4, 2},
		{10, 8, 2},
		{11, 8, 3},
		{100, 80, 20},
	}

	for _, tt := range tests {
		train, test := holdoutSplit(tt.n, HoldoutFraction)
		if len(train) != tt.wantTrain || len(test) != tt.wantTest {
			t.Errorf("holdoutSplit(%d) = %d/%d, want %d/%d", tt.n, len(train), len(test), tt.wantTrain, tt.wantTest)
		}

		all := slices.Concat(train, test)
		slices.Sort(all)
		for i, v := range all {
			if v != i {
				t.Fatalf("holdoutSplit(%d) is not a partition: %v", tt.n, all)
			}
		}
	}

	a, _ := holdoutSplit(50, HoldoutFraction)
	b, _ := holdoutSplit(50, HoldoutFraction)
	if !slices.Equal(a, b) {
		t.Error("holdoutSplit is not deterministic")
	}
}

func TestRainMatrixColumnOrder(t *testing.T) {
	row := models.HistoricalRow{
		MinTemp: 1, MaxTemp: 2, WindGustDir: "E", WindGustSpeed: 4,
		Humidity: 5, Pressure: 6, Temp: 7, RainTomorrow: "No",
	}
	got := RainMatrix([]models.HistoricalRow{row}, []int{3})[0]
	if want := []float64{1, 2, 3, 4, 5, 6, 7}; !slices.Equal(got, want) {
		t.Errorf("RainMatrix = %v, want %v", got, want)
	}

	obs := models.CurrentObservation{TempMin: 1, TempMax: 2, WindSpeed: 4, Humidity: 5, Pressure: 6, Temp: 7}
	if got, want := CurrentFeatures(obs, labels.Known(3)), []float64{1, 2, 3, 4, 5, 6, 7}; !slices.Equal(got, want) {
		t.Errorf("CurrentFeatures = %v, want %v", got, want)
	}
	if got := CurrentFeatures(obs, labels.Unseen)[2]; got != -1 {
		t.Errorf("unseen wind feature = %v, want -1", got)
	}
	if len(RainFeatures) != len(got) {
		t.Errorf("RainFeatures has %d columns, rows have %d", len(RainFeatures), len(got))
	}
}
