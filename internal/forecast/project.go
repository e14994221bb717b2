package forecast

// HorizonSteps is the number of hourly slots in a forecast.
const HorizonSteps = 5

// Predictor maps a current value to the next one.
type Predictor interface {
	Predict(v float64) float64
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(float64) float64

func (f PredictorFunc) Predict(v float64) float64 { return f(v) }

// Project feeds p its own output steps times starting from seed and returns
// the predictions, excluding seed. Drift is not bounded.
func Project(p Predictor, seed float64, steps int) []float64 {
	if steps <= 0 {
		return []float64{}
	}
	out := make([]float64, 0, steps)
	v := seed
	for range steps {
		v = p.Predict(v)
		out = append(out, v)
	}
	return out
}
