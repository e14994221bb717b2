// Package forest implements random-forest classifiers and regressors built
// from bootstrapped CART trees.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Config controls how a forest is grown.
type Config struct {
	Trees int
	Seed  uint64
	// MaxFeatures is the number of features examined per split. Zero means
	// sqrt(features) for classifiers and all features for regressors.
	MaxFeatures    int
	MinSamplesLeaf int
}

// DefaultConfig is 100 trees seeded with 42.
var DefaultConfig = Config{Trees: 100, Seed: 42, MinSamplesLeaf: 1}

var (
	ErrEmpty    = errors.New("forest: no training rows")
	ErrNotFit   = errors.New("forest: model not fit")
	ErrFeatures = errors.New("forest: inconsistent feature count")
)

func (c Config) withDefaults(features int, classify bool) Config {
	if c.Trees <= 0 {
		c.Trees = DefaultConfig.Trees
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = 1
	}
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = features
		if classify {
			c.MaxFeatures = max(1, int(math.Sqrt(float64(features))))
		}
	}
	c.MaxFeatures = min(c.MaxFeatures, features)
	return c
}

// rng returns the generator for tree i. Each tree has its own stream so the
// forest is reproducible for a given seed.
func (c Config) rng(i int) *rand.Rand {
	return rand.New(rand.NewPCG(c.Seed, uint64(i)))
}

func checkMatrix(x [][]float64, n int) (int, error) {
	if len(x) == 0 {
		return 0, ErrEmpty
	}
	if len(x) != n {
		return 0, fmt.Errorf("forest: %d rows but %d targets", len(x), n)
	}
	features := len(x[0])
	if features == 0 {
		return 0, ErrFeatures
	}
	for i, row := range x {
		if len(row) != features {
			return 0, fmt.Errorf("%w: row %d has %d, want %d", ErrFeatures, i, len(row), features)
		}
	}
	return features, nil
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

// Classifier is a random-forest classifier over integer class codes 0..k-1.
type Classifier struct {
	cfg      Config
	trees    []*tree
	classes  int
	features int
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Fit grows the forest on x and class codes y.
func (c *Classifier) Fit(x [][]float64, y []int) error {
	features, err := checkMatrix(x, len(y))
	if err != nil {
		return err
	}
	classes := 0
	for i, v := range y {
		if v < 0 {
			return fmt.Errorf("forest: negative class %d at row %d", v, i)
		}
		classes = max(classes, v+1)
	}

	cfg := c.cfg.withDefaults(features, true)
	trees := make([]*tree, cfg.Trees)
	for i := range trees {
		rng := cfg.rng(i)
		b := &builder{
			x:           x,
			yCls:        y,
			classes:     classes,
			maxFeatures: cfg.MaxFeatures,
			minLeaf:     cfg.MinSamplesLeaf,
			rng:         rng,
		}
		trees[i] = b.grow(bootstrap(rng, len(x)))
	}

	c.trees = trees
	c.classes = classes
	c.features = features
	return nil
}

// Predict returns the majority vote of the trees. Ties go to the lower class.
func (c *Classifier) Predict(row []float64) (int, error) {
	if c.trees == nil {
		return 0, ErrNotFit
	}
	if len(row) != c.features {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatures, len(row), c.features)
	}
	votes := make([]int, c.classes)
	for _, t := range c.trees {
		votes[int(t.predict(row))]++
	}
	return argmax(votes), nil
}

// Regressor is a random-forest regressor.
type Regressor struct {
	cfg      Config
	trees    []*tree
	features int
}

func NewRegressor(cfg Config) *Regressor {
	return &Regressor{cfg: cfg}
}

// Fit grows the forest on x and targets y.
func (r *Regressor) Fit(x [][]float64, y []float64) error {
	features, err := checkMatrix(x, len(y))
	if err != nil {
		return err
	}

	cfg := r.cfg.withDefaults(features, false)
	trees := make([]*tree, cfg.Trees)
	for i := range trees {
		rng := cfg.rng(i)
		b := &builder{
			x:           x,
			yReg:        y,
			maxFeatures: cfg.MaxFeatures,
			minLeaf:     cfg.MinSamplesLeaf,
			rng:         rng,
		}
		trees[i] = b.grow(bootstrap(rng, len(x)))
	}

	r.trees = trees
	r.features = features
	return nil
}

// Predict returns the mean of the tree predictions.
func (r *Regressor) Predict(row []float64) (float64, error) {
	if r.trees == nil {
		return 0, ErrNotFit
	}
	if len(row) != r.features {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatures, len(row), r.features)
	}
	var sum float64
	for _, t := range r.trees {
		sum += t.predict(row)
	}
	return sum / float64(len(r.trees)), nil
}
