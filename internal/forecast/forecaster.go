package forecast

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lox/raincast/internal/history"
	"github.com/lox/raincast/internal/labels"
	"github.com/lox/raincast/internal/metrics"
	"github.com/lox/raincast/internal/models"
)

// HistorySource supplies the historical table for a run.
type HistorySource interface {
	Load(ctx context.Context) (*history.Table, error)
}

// Diagnostics describes how the current observation was encoded.
type Diagnostics struct {
	WindDir      string
	WindDirKnown bool
	RainLabel    string
}

// rainLabels are the RainTomorrow values that mean rain.
var rainLabels = map[string]bool{"yes": true, "y": true, "true": true, "1": true}

// Forecaster runs the forecast pipeline. Each run loads the history and trains
// its own models; nothing is shared between runs.
type Forecaster struct {
	source HistorySource
	loc    *time.Location
	now    func() time.Time
}

func NewForecaster(source HistorySource, loc *time.Location) *Forecaster {
	if loc == nil {
		loc = time.UTC
	}
	return &Forecaster{source: source, loc: loc, now: time.Now}
}

// Run loads the history and forecasts from current.
func (f *Forecaster) Run(ctx context.Context, current models.CurrentObservation) (*models.ForecastRun, error) {
	run, err := f.run(ctx, current)
	if err != nil {
		metrics.ForecastRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ForecastRunsTotal.WithLabelValues("success").Inc()
	return run, nil
}

func (f *Forecaster) run(ctx context.Context, current models.CurrentObservation) (*models.ForecastRun, error) {
	start := f.now()

	table, err := f.source.Load(ctx)
	if err != nil {
		return nil, err
	}

	bundle, diag, err := f.FromTable(ctx, current, table, start)
	if err != nil {
		return nil, err
	}

	run := &models.ForecastRun{
		ID:           uuid.NewString(),
		CreatedAt:    start,
		Current:      current,
		WindDir:      diag.WindDir,
		WindDirKnown: diag.WindDirKnown,
		HistoryRows:  table.Len(),
		Bundle:       *bundle,
	}
	log.Printf("forecast: %s run %s rain=%v from %d rows in %v",
		current.Location, run.ID, bundle.RainTomorrow, table.Len(), time.Since(start).Round(time.Millisecond))
	return run, nil
}

// FromTable trains the rain classifier and step models on table and forecasts
// from current. Slot times start at the first whole hour after now.
func (f *Forecaster) FromTable(ctx context.Context, current models.CurrentObservation, table *history.Table, now time.Time) (*models.Bundle, Diagnostics, error) {
	var diag Diagnostics
	if table == nil {
		table = history.NewTable(nil)
	}

	rows := table.Rows()
	windCodes, windBook := labels.FitTransform(table.WindGustDirs())
	rainCodes, rainBook := labels.FitTransform(table.RainLabels())
	if rainBook.Len() > 2 {
		return nil, diag, &TrainingError{
			Model:  "rain",
			Reason: fmt.Sprintf("RainTomorrow has %d classes %v, want 2", rainBook.Len(), rainBook.Labels()),
		}
	}

	phase := time.Now()
	rain, err := TrainRainClassifier(RainMatrix(rows, windCodes), rainCodes)
	if err != nil {
		return nil, diag, err
	}
	metrics.TrainingDuration.WithLabelValues("rain").Observe(time.Since(phase).Seconds())

	if err := ctx.Err(); err != nil {
		return nil, diag, err
	}

	diag.WindDir = BearingToCompass(current.WindBearing)
	windCode := windBook.Encode(diag.WindDir)
	_, diag.WindDirKnown = windCode.Value()
	if !diag.WindDirKnown {
		log.Printf("forecast: wind direction %s (%.0f deg) not seen in history, encoding as %d",
			diag.WindDir, current.WindBearing, windCode.Int())
	}

	code, err := rain.Predict(CurrentFeatures(current, windCode))
	if err != nil {
		return nil, diag, fmt.Errorf("predict rain: %w", err)
	}
	diag.RainLabel, _ = rainBook.Decode(code)

	var tempModel, humModel *StepModel
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tempModel, err = trainTimed(gctx, table, models.FeatureTemp)
		return err
	})
	g.Go(func() error {
		var err error
		humModel, err = trainTimed(gctx, table, models.FeatureHumidity)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, diag, err
	}

	temps := Project(tempModel, current.Temp, HorizonSteps)
	hums := Project(humModel, current.Humidity, HorizonSteps)

	bundle := &models.Bundle{
		RainTomorrow: isRain(diag.RainLabel),
		Slots:        make([]models.Slot, HorizonSteps),
	}
	for i, t := range HourSlots(now, f.loc, HorizonSteps) {
		bundle.Slots[i] = models.Slot{
			Time:        t,
			Label:       SlotLabel(t),
			Temperature: temps[i],
			Humidity:    hums[i],
		}
	}
	return bundle, diag, nil
}

func trainTimed(ctx context.Context, table *history.Table, f models.Feature) (*StepModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	m, err := TrainStepModel(table, f)
	if err != nil {
		return nil, err
	}
	metrics.TrainingDuration.WithLabelValues(strings.ToLower(string(f))).Observe(time.Since(start).Seconds())
	return m, nil
}

func isRain(label string) bool {
	return rainLabels[strings.ToLower(strings.TrimSpace(label))]
}
