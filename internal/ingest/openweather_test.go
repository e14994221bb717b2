package ingest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const gothenburgJSON = `{
  "name": "Gothenburg",
  "dt": 1709283600,
  "main": {"temp": 12.5, "temp_min": 9.5, "temp_max": 13.5, "feels_like": 11.2, "humidity": 81, "pressure": 1004.5},
  "weather": [{"main": "Rain", "description": "light rain"}, {"description": "mist"}],
  "sys": {"country": "SE"},
  "wind": {"deg": 230, "speed": 6.5},
  "clouds": {"all": 75},
  "visibility": 9000
}`

type recordingSink struct {
	mu       sync.Mutex
	payloads []string
}

func (s *recordingSink) StoreRawPayload(endpoint, location string, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, endpoint+":"+location)
	return int64(len(s.payloads)), nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, sink PayloadSink) *OpenWeatherClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenWeather(OpenWeatherConfig{
		APIKey:            "test-key",
		BaseURL:           srv.URL + "/data/2.5",
		RequestsPerSecond: 1000,
		MaxElapsedTime:    2 * time.Second,
		Payloads:          sink,
	})
}

func TestCurrent(t *testing.T) {
	var gotPath, gotQuery string
	sink := &recordingSink{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(gothenburgJSON))
	}, sink)

	obs, err := client.Current(t.Context(), "  Gothenburg ")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}

	if gotPath != "/data/2.5/weather" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "appid=test-key&q=Gothenburg&units=metric" {
		t.Errorf("query = %q", gotQuery)
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"Temp", obs.Temp, 12},
		{"TempMin", obs.TempMin, 10},
		{"TempMax", obs.TempMax, 14},
		{"FeelsLike", obs.FeelsLike, 11},
		{"Humidity", obs.Humidity, 81},
		{"Pressure", obs.Pressure, 1004},
		{"WindSpeed", obs.WindSpeed, 6},
		{"WindBearing", obs.WindBearing, 230},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if obs.Location != "Gothenburg" || obs.Country != "SE" || obs.Description != "light rain" {
		t.Errorf("Location/Country/Description = %q/%q/%q", obs.Location, obs.Country, obs.Description)
	}
	if obs.Clouds != 75 || obs.Visibility != 9000 {
		t.Errorf("Clouds/Visibility = %d/%d", obs.Clouds, obs.Visibility)
	}
	if want := time.Unix(1709283600, 0).UTC(); !obs.ObservedAt.Equal(want) {
		t.Errorf("ObservedAt = %v, want %v", obs.ObservedAt, want)
	}
	if len(sink.payloads) != 1 || sink.payloads[0] != "weather:Gothenburg" {
		t.Errorf("payloads = %v", sink.payloads)
	}
}

func TestCurrent_MissingVisibility(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"X","main":{"temp":1},"weather":[],"sys":{},"wind":{},"clouds":{}}`))
	}, nil)

	obs, err := client.Current(t.Context(), "X")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if obs.Visibility != 0 || obs.Description != "" {
		t.Errorf("Visibility = %d, Description = %q", obs.Visibility, obs.Description)
	}
}

func TestCurrent_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrLocationNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"cod":"404","message":"city not found"}`))
			}, nil)

			_, err := client.Current(t.Context(), "Atlantis")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCurrent_BadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}, nil)

	if _, err := client.Current(t.Context(), "X"); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestCurrent_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(gothenburgJSON))
	}, nil)

	obs, err := client.Current(t.Context(), "Gothenburg")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if obs.Location != "Gothenburg" {
		t.Errorf("Location = %q", obs.Location)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestCurrent_InputValidation(t *testing.T) {
	noKey := NewOpenWeather(OpenWeatherConfig{})
	if _, err := noKey.Current(t.Context(), "Gothenburg"); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}

	client := NewOpenWeather(OpenWeatherConfig{APIKey: "k"})
	if _, err := client.Current(t.Context(), "   "); !errors.Is(err, ErrNoCity) {
		t.Errorf("error = %v, want ErrNoCity", err)
	}
}

func TestCurrent_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":`))
	}, nil)

	if _, err := client.Current(t.Context(), "X"); err == nil {
		t.Error("expected unmarshal error")
	}
}
