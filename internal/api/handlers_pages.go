package api

import (
	"bytes"
	"log"
	"net/http"
	"strings"
)

// IndexData is everything index.html renders.
type IndexData struct {
	City            string
	Run             *RunView
	Error           string
	Condition       Condition
	Palette         Palette
	WeatherOverride string // e.g. "storm_night", for previewing palettes
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var city string
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		city = strings.TrimSpace(r.URL.Query().Get("city"))
		if city == "" {
			city = s.defaultCity
		}
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		city = strings.TrimSpace(r.PostFormValue("city"))
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := IndexData{
		City:            city,
		Palette:         DefaultPalette,
		WeatherOverride: r.URL.Query().Get("weather"),
	}
	if city == "" {
		data.Error = "city not provided"
		s.renderIndex(w, http.StatusBadRequest, data)
		return
	}

	run, err := s.forecaster.Forecast(r.Context(), city)
	if err != nil {
		log.Printf("api: forecast %s: %v", city, err)
		data.Error = errorMessage(err)
		s.renderIndex(w, statusFor(err), data)
		return
	}

	view := newRunView(run, s.loc)
	data.Run = &view
	data.Condition = ConditionFor(run.Current.Description, run.Current.Temp)
	day := IsDaytime(run.CreatedAt.In(s.loc))
	if data.WeatherOverride != "" {
		data.Condition, day = parseWeatherOverride(data.WeatherOverride, data.Condition, day)
	}
	data.Palette = paletteFor(data.Condition, day)

	s.renderIndex(w, http.StatusOK, data)
}

func (s *Server) renderIndex(w http.ResponseWriter, status int, data IndexData) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		log.Printf("api: render index: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// parseWeatherOverride reads "condition", "condition_day" or
// "condition_night". Parts that are not recognised keep their current value.
func parseWeatherOverride(override string, condition Condition, day bool) (Condition, bool) {
	name := override
	if base, ok := strings.CutSuffix(override, "_day"); ok {
		name, day = base, true
	} else if base, ok := strings.CutSuffix(override, "_night"); ok {
		name, day = base, false
	}
	if _, ok := dayPalettes[Condition(name)]; ok {
		condition = Condition(name)
	}
	return condition, day
}
