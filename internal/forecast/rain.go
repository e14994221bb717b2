package forecast

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/lox/raincast/internal/forest"
	"github.com/lox/raincast/internal/labels"
	"github.com/lox/raincast/internal/metrics"
	"github.com/lox/raincast/internal/models"
)

// Seed is used for every random choice made while training, so identical
// input always produces identical models.
const Seed = 42

// HoldoutFraction of the rain training rows is kept back for evaluation.
const HoldoutFraction = 0.2

// RainFeatures is the column order of every rain classifier input row.
var RainFeatures = []models.Feature{
	models.FeatureMinTemp,
	models.FeatureMaxTemp,
	models.FeatureWindGustDir,
	models.FeatureWindGustSpeed,
	models.FeatureHumidity,
	models.FeaturePressure,
	models.FeatureTemp,
}

// RainClassifier predicts the encoded RainTomorrow label.
type RainClassifier struct {
	forest     *forest.Classifier
	holdoutMSE float64
	trainRows  int
	testRows   int
}

// TrainRainClassifier fits a random forest on 80% of the rows and reports the
// mean squared error on the remaining 20% to the log and metrics.
func TrainRainClassifier(x [][]float64, y []int) (*RainClassifier, error) {
	fail := func(reason string, err error) error {
		return &TrainingError{Model: "rain", Reason: reason, Err: err}
	}

	if len(x) != len(y) {
		return nil, fail(fmt.Sprintf("%d rows but %d labels", len(x), len(y)), nil)
	}
	if len(x) < 2 {
		return nil, fail(fmt.Sprintf("need at least 2 rows, got %d", len(x)), nil)
	}
	for i, row := range x {
		if len(row) != len(RainFeatures) {
			return nil, fail(fmt.Sprintf("row %d has %d features, want %d", i, len(row), len(RainFeatures)), nil)
		}
	}
	if classes := distinct(y); classes < 2 {
		return nil, fail("only one class present", nil)
	}

	train, test := holdoutSplit(len(x), HoldoutFraction)

	cf := forest.NewClassifier(forest.Config{Trees: forest.DefaultConfig.Trees, Seed: Seed})
	if err := cf.Fit(pick(x, train), pick(y, train)); err != nil {
		return nil, fail("fit forest", err)
	}

	m := &RainClassifier{forest: cf, trainRows: len(train), testRows: len(test)}

	sqErr := make([]float64, len(test))
	for k, i := range test {
		pred, err := cf.Predict(x[i])
		if err != nil {
			return nil, fail("evaluate", err)
		}
		d := float64(pred - y[i])
		sqErr[k] = d * d
	}
	m.holdoutMSE = stat.Mean(sqErr, nil)

	metrics.RainModelHoldoutMSE.Set(m.holdoutMSE)
	log.Printf("forecast: rain model held-out MSE %.4f (%d train, %d test rows)", m.holdoutMSE, m.trainRows, m.testRows)

	return m, nil
}

// Predict returns the class code for one row in RainFeatures order.
func (m *RainClassifier) Predict(row []float64) (int, error) {
	return m.forest.Predict(row)
}

// RainMatrix builds classifier input rows in RainFeatures order, substituting
// windCodes for the categorical wind direction.
func RainMatrix(rows []models.HistoricalRow, windCodes []int) [][]float64 {
	x := make([][]float64, len(rows))
	for i, r := range rows {
		x[i] = []float64{
			r.MinTemp,
			r.MaxTemp,
			float64(windCodes[i]),
			r.WindGustSpeed,
			r.Humidity,
			r.Pressure,
			r.Temp,
		}
	}
	return x
}

// CurrentFeatures builds the classifier input row for an observation whose
// wind direction has already been encoded.
func CurrentFeatures(obs models.CurrentObservation, windDir labels.Code) []float64 {
	return []float64{
		obs.TempMin,
		obs.TempMax,
		windDir.Feature(),
		obs.WindSpeed,
		obs.Humidity,
		obs.Pressure,
		obs.Temp,
	}
}

// holdoutSplit shuffles 0..n-1 with Seed and returns the training indices and
// the ceil(n*fraction) test indices.
func holdoutSplit(n int, fraction float64) (train, test []int) {
	perm := rand.New(rand.NewPCG(Seed, 0)).Perm(n)
	nTest := int(math.Ceil(float64(n) * fraction))
	nTest = min(max(nTest, 1), n-1)
	return perm[nTest:], perm[:nTest]
}

func pick[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for k, i := range idx {
		out[k] = src[i]
	}
	return out
}

func distinct(y []int) int {
	seen := make(map[int]bool)
	for _, v := range y {
		seen[v] = true
	}
	return len(seen)
}
