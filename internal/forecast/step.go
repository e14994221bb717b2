package forecast

import (
	"fmt"

	"github.com/lox/raincast/internal/forest"
	"github.com/lox/raincast/internal/history"
	"github.com/lox/raincast/internal/models"
)

// StepModel predicts the next value of a series from its current value.
type StepModel struct {
	Feature models.Feature
	forest  *forest.Regressor
}

// PairSeries returns (values[i], values[i+1]) for every consecutive pair.
func PairSeries(values []float64) ([][]float64, []float64) {
	if len(values) < 2 {
		return nil, nil
	}
	x := make([][]float64, len(values)-1)
	y := make([]float64, len(values)-1)
	for i := range x {
		x[i] = []float64{values[i]}
		y[i] = values[i+1]
	}
	return x, y
}

// TrainStepRegressor fits a random-forest regressor on (t, t+1) pairs.
func TrainStepRegressor(x [][]float64, y []float64) (*StepModel, error) {
	if len(x) == 0 {
		return nil, &TrainingError{Model: "step", Reason: "no (t, t+1) pairs"}
	}
	if len(x) != len(y) {
		return nil, &TrainingError{Model: "step", Reason: fmt.Sprintf("%d inputs but %d targets", len(x), len(y))}
	}

	rf := forest.NewRegressor(forest.Config{Trees: forest.DefaultConfig.Trees, Seed: Seed})
	if err := rf.Fit(x, y); err != nil {
		return nil, &TrainingError{Model: "step", Reason: "fit forest", Err: err}
	}
	return &StepModel{forest: rf}, nil
}

// TrainStepModel trains a step model on one numeric column of table.
func TrainStepModel(table *history.Table, f models.Feature) (*StepModel, error) {
	values := table.Column(f)
	if values == nil {
		return nil, &TrainingError{Model: string(f), Reason: "not a numeric feature"}
	}
	if len(values) < 2 {
		return nil, &TrainingError{Model: string(f), Reason: fmt.Sprintf("need at least 2 rows, got %d", len(values))}
	}

	m, err := TrainStepRegressor(PairSeries(values))
	if err != nil {
		return nil, err
	}
	m.Feature = f
	return m, nil
}

// Predict returns the model's estimate of the value following v.
func (m *StepModel) Predict(v float64) float64 {
	out, err := m.forest.Predict([]float64{v})
	if err != nil {
		// Only reachable for a StepModel not built by TrainStepRegressor.
		panic(fmt.Sprintf("forecast: step model %s: %v", m.Feature, err))
	}
	return out
}
