package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/lox/raincast/internal/imagegen"
	"github.com/lox/raincast/internal/models"
)

// handleChart serves the slot temperature chart of a stored run.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	s.serveRunImage(w, r, "chart", func(run *models.ForecastRun) ([]byte, error) {
		data := imagegen.ChartData{
			Title:  "Temperature forecast",
			Unit:   "°C",
			Labels: make([]string, len(run.Slots)),
			Values: make([]float64, len(run.Slots)),
		}
		for i, slot := range run.Slots {
			data.Labels[i] = slot.Label
			data.Values[i] = round1(slot.Temperature)
		}
		return imagegen.RenderChart(data)
	})
}

// handleOGImage serves the social preview card of a stored run.
func (s *Server) handleOGImage(w http.ResponseWriter, r *http.Request) {
	s.serveRunImage(w, r, "og", func(run *models.ForecastRun) ([]byte, error) {
		location := run.Current.Location
		if run.Current.Country != "" {
			location += ", " + run.Current.Country
		}
		return imagegen.RenderCard(imagegen.CardData{
			Temperature:  run.Current.Temp,
			Location:     location,
			Description:  run.Current.Description,
			RainTomorrow: run.RainTomorrow,
		})
	})
}

func (s *Server) serveRunImage(w http.ResponseWriter, r *http.Request, kind string, render func(*models.ForecastRun) ([]byte, error)) {
	id := r.URL.Query().Get("run")
	if id == "" {
		http.Error(w, "run not provided", http.StatusBadRequest)
		return
	}

	key := kind + ":" + id
	if data, ok := s.imageCache.Get(key); ok {
		servePNG(w, data)
		return
	}

	run, err := s.store.GetRun(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	data, err := render(run)
	if err != nil {
		log.Printf("api: render %s for run %s: %v", kind, id, err)
		http.Error(w, "image rendering failed", http.StatusInternalServerError)
		return
	}
	s.imageCache.Set(key, data)
	servePNG(w, data)
}

func servePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// Runs never change once stored.
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.Write(data)
}
