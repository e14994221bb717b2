package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/raincast/internal/imagegen"
	"github.com/lox/raincast/internal/models"
	"github.com/lox/raincast/internal/store"
)

//go:embed templates/*
var templateFS embed.FS

// Forecaster produces a forecast run for a city. *ingest.Pipeline satisfies it.
type Forecaster interface {
	Forecast(ctx context.Context, city string) (*models.ForecastRun, error)
}

type Config struct {
	Port        string
	DefaultCity string
	Location    *time.Location
}

type Server struct {
	forecaster  Forecaster
	store       *store.Store
	port        string
	defaultCity string
	loc         *time.Location
	tmpl        *template.Template
	imageCache  *imagegen.Cache
}

func NewServer(forecaster Forecaster, store *store.Store, cfg Config) *Server {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		forecaster:  forecaster,
		store:       store,
		port:        cfg.Port,
		defaultCity: cfg.DefaultCity,
		loc:         loc,
		tmpl:        newTemplates(),
		imageCache:  imagegen.NewCache(30*time.Minute, 128),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/chart.png", s.handleChart)
	mux.HandleFunc("/og-image.png", s.handleOGImage)
	mux.HandleFunc("/api/forecast", s.handleAPIForecast)
	mux.HandleFunc("/api/runs", s.handleAPIRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleAPIRun)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
