package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/lox/raincast/internal/models"
)

// ObservationSource returns current conditions for a city.
type ObservationSource interface {
	Current(ctx context.Context, city string) (*models.CurrentObservation, error)
}

// Runner turns an observation into a forecast run.
type Runner interface {
	Run(ctx context.Context, current models.CurrentObservation) (*models.ForecastRun, error)
}

// RunSaver records completed runs.
type RunSaver interface {
	SaveRun(run *models.ForecastRun) error
}

// Pipeline fetches an observation, forecasts from it and records the run.
type Pipeline struct {
	observations ObservationSource
	runner       Runner
	saver        RunSaver
}

// NewPipeline wires the stages together. saver may be nil, in which case runs
// are not recorded.
func NewPipeline(observations ObservationSource, runner Runner, saver RunSaver) *Pipeline {
	return &Pipeline{observations: observations, runner: runner, saver: saver}
}

// Forecast runs the pipeline for city. A failure to record the run is logged
// and does not fail the forecast.
func (p *Pipeline) Forecast(ctx context.Context, city string) (*models.ForecastRun, error) {
	obs, err := p.observations.Current(ctx, city)
	if err != nil {
		return nil, err
	}

	run, err := p.runner.Run(ctx, *obs)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", city, err)
	}

	if p.saver != nil {
		if err := p.saver.SaveRun(run); err != nil {
			log.Printf("pipeline: save run %s: %v", run.ID, err)
		}
	}
	return run, nil
}
