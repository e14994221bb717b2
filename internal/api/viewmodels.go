package api

import (
	"math"
	"time"

	"github.com/lox/raincast/internal/models"
	"github.com/lox/raincast/internal/store"
)

// DateLayout is how the run date appears on the page, e.g. "March 07, 2025".
const DateLayout = "January 02, 2006"

// RunView is a forecast run prepared for display. Numbers are rounded to one
// decimal here and nowhere earlier.
type RunView struct {
	ID           string      `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	Date         string      `json:"date"`
	Location     string      `json:"location"`
	Country      string      `json:"country"`
	Description  string      `json:"description"`
	Current      CurrentView `json:"current"`
	WindDir      string      `json:"wind_dir"`
	WindDirKnown bool        `json:"wind_dir_known"`
	HistoryRows  int         `json:"history_rows"`
	RainTomorrow bool        `json:"rain_tomorrow"`
	Slots        []SlotView  `json:"slots"`
}

type CurrentView struct {
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feels_like"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	WindSpeed   float64 `json:"wind_speed"`
	WindBearing float64 `json:"wind_bearing"`
	Clouds      int     `json:"clouds"`
	Visibility  int     `json:"visibility"`
}

type SlotView struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

type RunSummaryView struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Location     string    `json:"location"`
	Country      string    `json:"country"`
	Temp         float64   `json:"temp"`
	WindDir      string    `json:"wind_dir"`
	RainTomorrow bool      `json:"rain_tomorrow"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func newRunView(run *models.ForecastRun, loc *time.Location) RunView {
	c := run.Current
	created := run.CreatedAt.In(loc)
	v := RunView{
		ID:          run.ID,
		CreatedAt:   created,
		Date:        created.Format(DateLayout),
		Location:    c.Location,
		Country:     c.Country,
		Description: c.Description,
		Current: CurrentView{
			Temp:        round1(c.Temp),
			FeelsLike:   round1(c.FeelsLike),
			TempMin:     round1(c.TempMin),
			TempMax:     round1(c.TempMax),
			Humidity:    round1(c.Humidity),
			Pressure:    round1(c.Pressure),
			WindSpeed:   round1(c.WindSpeed),
			WindBearing: round1(c.WindBearing),
			Clouds:      c.Clouds,
			Visibility:  c.Visibility,
		},
		WindDir:      run.WindDir,
		WindDirKnown: run.WindDirKnown,
		HistoryRows:  run.HistoryRows,
		RainTomorrow: run.RainTomorrow,
		Slots:        make([]SlotView, len(run.Slots)),
	}
	for i, slot := range run.Slots {
		v.Slots[i] = SlotView{
			Time:        slot.Label,
			Temperature: round1(slot.Temperature),
			Humidity:    round1(slot.Humidity),
		}
	}
	return v
}

func newRunSummaryViews(runs []store.RunSummary) []RunSummaryView {
	out := make([]RunSummaryView, len(runs))
	for i, r := range runs {
		out[i] = RunSummaryView{
			ID:           r.ID,
			CreatedAt:    r.CreatedAt,
			Location:     r.Location,
			Country:      r.Country,
			Temp:         round1(r.Temp),
			WindDir:      r.WindDir,
			RainTomorrow: r.RainTomorrow,
		}
	}
	return out
}
