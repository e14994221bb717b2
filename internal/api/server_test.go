package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lox/raincast/internal/api"
	"github.com/lox/raincast/internal/forecast"
	"github.com/lox/raincast/internal/history"
	"github.com/lox/raincast/internal/ingest"
	"github.com/lox/raincast/internal/models"
	"github.com/lox/raincast/internal/store"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) (*store.Store, *time.Location) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	loc := time.UTC
	s := store.New(db, loc)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s, loc
}

// fakeForecaster returns run, or err, and records the cities it was asked for.
type fakeForecaster struct {
	run    *models.ForecastRun
	err    error
	cities []string
}

func (f *fakeForecaster) Forecast(ctx context.Context, city string) (*models.ForecastRun, error) {
	f.cities = append(f.cities, city)
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}

func testRun(id string) *models.ForecastRun {
	created := time.Date(2025, 3, 7, 10, 20, 0, 0, time.UTC)
	run := &models.ForecastRun{
		ID:        id,
		CreatedAt: created,
		Current: models.CurrentObservation{
			Location:    "Pune",
			Country:     "IN",
			Description: "scattered clouds",
			Temp:        31.456,
			TempMin:     29.04,
			TempMax:     33,
			FeelsLike:   33.25,
			Humidity:    40,
			WindBearing: 290,
			WindSpeed:   4.12,
			Pressure:    1009,
			Clouds:      40,
			Visibility:  10000,
		},
		WindDir:      "WNW",
		WindDirKnown: true,
		HistoryRows:  366,
		Bundle:       models.Bundle{RainTomorrow: true},
	}
	for i := range 5 {
		slot := time.Date(2025, 3, 7, 11+i, 0, 0, 0, time.UTC)
		run.Slots = append(run.Slots, models.Slot{
			Time:        slot,
			Label:       fmt.Sprintf("%02d:00", slot.Hour()),
			Temperature: 31.04 + float64(i)*0.33,
			Humidity:    40.26,
		})
	}
	return run
}

func newTestServer(t *testing.T, f api.Forecaster) (*api.Server, *store.Store) {
	t.Helper()
	s, loc := setupTestStore(t)
	srv := api.NewServer(f, s, api.Config{Port: "8080", DefaultCity: "Gothenburg", Location: loc})
	return srv, s
}

func serve(srv *api.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &fakeForecaster{})

	w := serve(srv, httptest.NewRequest("GET", "/health", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.MigrationVersion != store.LatestMigration() {
		t.Errorf("migration_version = %d, want %d", health.MigrationVersion, store.LatestMigration())
	}
}

func TestIndex_DefaultCity(t *testing.T) {
	t.Parallel()
	f := &fakeForecaster{run: testRun("run-1")}
	srv, _ := newTestServer(t, f)

	w := serve(srv, httptest.NewRequest("GET", "/", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.cities) != 1 || f.cities[0] != "Gothenburg" {
		t.Errorf("forecast cities = %v, want [Gothenburg]", f.cities)
	}

	body := w.Body.String()
	for _, want := range []string{
		"Pune, IN",
		"March 07, 2025",
		"31.5°C",
		"Rain tomorrow: <strong>Yes</strong>",
		"<td>11:00</td><td>31.0°C</td><td>40.3%</td>",
		"<td>15:00</td>",
		"/chart.png?run=run-1",
		"WNW",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestIndex_Post(t *testing.T) {
	t.Parallel()
	f := &fakeForecaster{run: testRun("run-1")}
	srv, _ := newTestServer(t, f)

	form := url.Values{"city": {"  Pune "}}
	req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(srv, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.cities) != 1 || f.cities[0] != "Pune" {
		t.Errorf("forecast cities = %v, want [Pune]", f.cities)
	}
}

func TestIndex_PostEmptyCity(t *testing.T) {
	t.Parallel()
	f := &fakeForecaster{run: testRun("run-1")}
	srv, _ := newTestServer(t, f)

	req := httptest.NewRequest("POST", "/", strings.NewReader("city="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(srv, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "city not provided") {
		t.Error("expected city not provided message")
	}
	if len(f.cities) != 0 {
		t.Errorf("forecaster called with %v", f.cities)
	}
}

func TestIndex_ForecastError(t *testing.T) {
	t.Parallel()
	f := &fakeForecaster{err: fmt.Errorf("%w: Atlantis", ingest.ErrLocationNotFound)}
	srv, _ := newTestServer(t, f)

	w := serve(srv, httptest.NewRequest("GET", "/?city=Atlantis", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "location not found") {
		t.Error("expected location not found message")
	}
	if !strings.Contains(body, `value="Atlantis"`) {
		t.Error("expected the city to be kept in the form")
	}
}

func TestIndex_UnknownPath(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &fakeForecaster{})

	w := serve(srv, httptest.NewRequest("GET", "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestIndex_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &fakeForecaster{})

	w := serve(srv, httptest.NewRequest("DELETE", "/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIForecast(t *testing.T) {
	t.Parallel()
	f := &fakeForecaster{run: testRun("run-1")}
	srv, _ := newTestServer(t, f)

	w := serve(srv, httptest.NewRequest("GET", "/api/forecast?city=Pune", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var view api.RunView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.ID != "run-1" || view.Location != "Pune" || !view.RainTomorrow {
		t.Errorf("view = %+v", view)
	}
	if view.Current.Temp != 31.5 || view.Current.WindSpeed != 4.1 || view.Current.TempMin != 29 {
		t.Errorf("current not rounded to one decimal: %+v", view.Current)
	}
	if len(view.Slots) != 5 {
		t.Fatalf("len(slots) = %d, want 5", len(view.Slots))
	}
	if got := view.Slots[0]; got.Time != "11:00" || got.Temperature != 31 || got.Humidity != 40.3 {
		t.Errorf("slots[0] = %+v", got)
	}
	if got := view.Slots[4].Temperature; got != 32.4 {
		t.Errorf("slots[4].temperature = %v, want 32.4", got)
	}
}

func TestAPIForecast_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no city", ingest.ErrNoCity, http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: x", ingest.ErrLocationNotFound), http.StatusNotFound},
		{"missing key", ingest.ErrMissingAPIKey, http.StatusServiceUnavailable},
		{"breaker open", fmt.Errorf("fetch weather for x: %w", gobreaker.ErrOpenState), http.StatusServiceUnavailable},
		{"history", fmt.Errorf("forecast x: %w", &history.DataSourceError{Source: "h.csv", Op: "open", Err: errors.New("boom")}), http.StatusInternalServerError},
		{"training", fmt.Errorf("forecast x: %w", &forecast.TrainingError{Model: "rain", Reason: "one class"}), http.StatusInternalServerError},
		{"timeout", fmt.Errorf("fetch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"upstream", errors.New("fetch weather for x: status 500"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeForecaster{err: tt.err})

			w := serve(srv, httptest.NewRequest("GET", "/api/forecast?city=x", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestAPIRuns(t *testing.T) {
	t.Parallel()
	srv, s := newTestServer(t, &fakeForecaster{})

	for i := range 3 {
		run := testRun(fmt.Sprintf("run-%d", i))
		run.CreatedAt = run.CreatedAt.Add(time.Duration(i) * time.Hour)
		if err := s.SaveRun(run); err != nil {
			t.Fatal(err)
		}
	}

	w := serve(srv, httptest.NewRequest("GET", "/api/runs?limit=2", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var runs []api.RunSummaryView
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Errorf("runs = %v, want newest first", runs)
	}
	if runs[0].Temp != 31.5 {
		t.Errorf("temp = %v, want 31.5", runs[0].Temp)
	}

	for _, limit := range []string{"0", "-1", "ten"} {
		w := serve(srv, httptest.NewRequest("GET", "/api/runs?limit="+limit, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, w.Code)
		}
	}
}

func TestAPIRun(t *testing.T) {
	t.Parallel()
	srv, s := newTestServer(t, &fakeForecaster{})
	if err := s.SaveRun(testRun("run-1")); err != nil {
		t.Fatal(err)
	}

	w := serve(srv, httptest.NewRequest("GET", "/api/runs/run-1", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view api.RunView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.ID != "run-1" || len(view.Slots) != 5 {
		t.Errorf("view = %+v", view)
	}

	w = serve(srv, httptest.NewRequest("GET", "/api/runs/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing run: status = %d, want 404", w.Code)
	}
}

func TestRunImages(t *testing.T) {
	t.Parallel()
	srv, s := newTestServer(t, &fakeForecaster{})
	if err := s.SaveRun(testRun("run-1")); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/chart.png", "/og-image.png"} {
		t.Run(path, func(t *testing.T) {
			for range 2 { // second request is served from the cache
				w := serve(srv, httptest.NewRequest("GET", path+"?run=run-1", nil))
				if w.Code != 200 {
					t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
				}
				if ct := w.Header().Get("Content-Type"); ct != "image/png" {
					t.Errorf("Content-Type = %q", ct)
				}
				if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
					t.Error("body is not a PNG")
				}
			}

			w := serve(srv, httptest.NewRequest("GET", path+"?run=missing", nil))
			if w.Code != http.StatusNotFound {
				t.Errorf("missing run: status = %d, want 404", w.Code)
			}
			w = serve(srv, httptest.NewRequest("GET", path, nil))
			if w.Code != http.StatusBadRequest {
				t.Errorf("no run: status = %d, want 400", w.Code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &fakeForecaster{})

	w := serve(srv, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected default collectors in metrics output")
	}
}
