package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/lox/raincast/internal/httputil"
	"github.com/lox/raincast/internal/metrics"
	"github.com/lox/raincast/internal/models"
)

const (
	DefaultBaseURL  = "https://api.openweathermap.org/data/2.5/"
	weatherEndpoint = "weather"
)

var (
	ErrMissingAPIKey    = errors.New("openweather: API key not configured")
	ErrNoCity           = errors.New("openweather: city not provided")
	ErrLocationNotFound = errors.New("openweather: location not found")
	ErrUnauthorized     = errors.New("openweather: API key rejected")
)

// PayloadSink receives the raw body of every successful API response.
type PayloadSink interface {
	StoreRawPayload(endpoint, location string, payload []byte) (int64, error)
}

// OpenWeatherConfig configures an OpenWeatherClient. Zero values select the
// defaults.
type OpenWeatherConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	MaxElapsedTime    time.Duration
	HTTPClient        *http.Client
	Payloads          PayloadSink
}

// OpenWeatherClient fetches current conditions from OpenWeatherMap. Calls are
// rate limited, retried with exponential backoff on throttling, server and
// transport errors, and guarded by a circuit breaker.
type OpenWeatherClient struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxElapsed time.Duration
	payloads   PayloadSink
}

func NewOpenWeather(cfg OpenWeatherConfig) *OpenWeatherClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httputil.NewClient()
	}

	return &OpenWeatherClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweather",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("openweather: circuit %s %s -> %s", name, from, to)
			},
		}),
		maxElapsed: cfg.MaxElapsedTime,
		payloads:   cfg.Payloads,
	}
}

type weatherResponse struct {
	Name string `json:"name"`
	Dt   int64  `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Wind struct {
		Deg   float64 `json:"deg"`
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Visibility int `json:"visibility"`
}

// response is what the breaker sees. A 404 is a valid answer, not a failure
// of the upstream service.
type response struct {
	status int
	body   []byte
}

// Current returns the current conditions for city. Temperatures, humidity,
// pressure and wind speed are rounded to whole numbers, half to even.
func (c *OpenWeatherClient) Current(ctx context.Context, city string) (*models.CurrentObservation, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrNoCity
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	u := c.baseURL + weatherEndpoint + "?" + q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		r, err := c.fetch(ctx, u)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch weather for %s: %w", city, err)
	}
	resp := res.(*response)

	switch resp.status {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, city)
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	}

	if c.payloads != nil {
		if _, err := c.payloads.StoreRawPayload(weatherEndpoint, city, resp.body); err != nil {
			log.Printf("openweather: store raw payload for %s: %v", city, err)
		}
	}

	obs, err := parseWeather(resp.body)
	if err != nil {
		return nil, err
	}
	if flags := ValidateObservation(obs); len(flags) > 0 {
		log.Printf("openweather: %s observation flagged %v", city, flags)
	}
	return obs, nil
}

func (c *OpenWeatherClient) fetch(ctx context.Context, u string) (*response, error) {
	var result *response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		metrics.OWMAPILatency.WithLabelValues(weatherEndpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.OWMAPICallsTotal.WithLabelValues(weatherEndpoint, "error").Inc()
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()
		metrics.OWMAPICallsTotal.WithLabelValues(weatherEndpoint, strconv.Itoa(resp.StatusCode)).Inc()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusUnauthorized:
			result = &response{status: resp.StatusCode, body: body}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func parseWeather(body []byte) (*models.CurrentObservation, error) {
	var data weatherResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	obs := &models.CurrentObservation{
		Location:    data.Name,
		Country:     data.Sys.Country,
		Temp:        math.RoundToEven(data.Main.Temp),
		TempMin:     math.RoundToEven(data.Main.TempMin),
		TempMax:     math.RoundToEven(data.Main.TempMax),
		FeelsLike:   math.RoundToEven(data.Main.FeelsLike),
		Humidity:    math.RoundToEven(data.Main.Humidity),
		Pressure:    math.RoundToEven(data.Main.Pressure),
		WindBearing: data.Wind.Deg,
		WindSpeed:   math.RoundToEven(data.Wind.Speed),
		Clouds:      data.Clouds.All,
		Visibility:  data.Visibility,
		ObservedAt:  time.Now().UTC(),
	}
	if data.Dt > 0 {
		obs.ObservedAt = time.Unix(data.Dt, 0).UTC()
	}
	if len(data.Weather) > 0 {
		obs.Description = data.Weather[0].Description
	}
	return obs, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
