package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/lox/raincast/internal/api"
	"github.com/lox/raincast/internal/forecast"
	"github.com/lox/raincast/internal/history"
	"github.com/lox/raincast/internal/ingest"
	"github.com/lox/raincast/internal/models"
	"github.com/lox/raincast/internal/store"
)

type Globals struct {
	DB       string `help:"Path to SQLite database." default:"data/raincast.db" env:"RAINCAST_DB"`
	History  string `help:"Historical CSV, as a file path or ftp:// URL." default:"data/weather.csv" env:"HISTORY_SOURCE"`
	Timezone string `help:"Timezone for forecast hour labels." default:"${default_tz}" env:"FORECAST_TZ"`
	APIKey   string `help:"OpenWeatherMap API key." name:"api-key" env:"API_KEY"`
}

type CLI struct {
	Globals

	Serve    ServeCmd    `cmd:"" default:"withargs" help:"Run the web server and background refresh."`
	Forecast ForecastCmd `cmd:"" help:"Forecast one city, store the run and print it."`
	Runs     RunsCmd     `cmd:"" help:"List recent forecast runs."`
	Summary  HistoryCmd  `cmd:"" name:"history" help:"Load the historical table and summarise it."`
	Payloads PayloadsCmd `cmd:"" help:"List archived OpenWeatherMap responses, or print one."`
}

type ServeCmd struct {
	Port            string        `help:"HTTP server port." default:"8080" env:"PORT"`
	DefaultCity     string        `help:"City shown on the home page." default:"Gothenburg" env:"DEFAULT_CITY"`
	RefreshInterval time.Duration `help:"How often to refresh the default city's forecast (0 disables)." default:"1h" env:"REFRESH_INTERVAL"`
	Retention       time.Duration `help:"How long to keep runs and raw payloads (0 keeps forever)." default:"720h" env:"RETENTION"`
}

type ForecastCmd struct {
	City string `help:"City to forecast." required:"" env:"DEFAULT_CITY"`
}

type RunsCmd struct {
	Limit int `help:"Number of runs to list." default:"20"`
}

type HistoryCmd struct{}

type PayloadsCmd struct {
	Location string `help:"Location the payloads were fetched for." default:"Gothenburg"`
	Limit    int    `help:"Number of payloads to list." default:"10"`
	ID       int64  `help:"Print the decompressed payload with this id instead of listing." name:"id"`
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("raincast"),
		kong.Description("Rain-tomorrow and next-hours forecasts from historical observations."),
		kong.UsageOnError(),
		kong.Vars{"default_tz": forecast.DefaultTimezone},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// app holds the wiring shared by the commands.
type app struct {
	db       *sql.DB
	store    *store.Store
	loc      *time.Location
	pipeline *ingest.Pipeline
}

func (g *Globals) open() (*app, error) {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		loc = time.UTC
	}

	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	owm := ingest.NewOpenWeather(ingest.OpenWeatherConfig{
		APIKey:   g.APIKey,
		Payloads: st,
	})
	forecaster := forecast.NewForecaster(history.URI(g.History), loc)

	return &app{
		db:       db,
		store:    st,
		loc:      loc,
		pipeline: ingest.NewPipeline(owm, forecaster, st),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (c *ServeCmd) Run(g *Globals) error {
	if g.APIKey == "" {
		log.Println("Warning: API_KEY not set, forecasts will fail until it is configured")
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := ingest.NewScheduler(a.pipeline, a.store, c.DefaultCity, c.RefreshInterval, c.Retention)
	go scheduler.Run(ctx)

	server := api.NewServer(a.pipeline, a.store, api.Config{
		Port:        c.Port,
		DefaultCity: c.DefaultCity,
		Location:    a.loc,
	})
	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

func (c *ForecastCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run, err := a.pipeline.Forecast(ctx, c.City)
	if err != nil {
		return err
	}
	printRun(os.Stdout, run)
	return nil
}

func printRun(f io.Writer, run *models.ForecastRun) {
	cur := run.Current
	fmt.Fprintf(f, "%s, %s (%s)\n", cur.Location, cur.Country, run.CreatedAt.Format("January 02, 2006 15:04 MST"))
	fmt.Fprintf(f, "Now: %.1f°C, %s, humidity %.1f%%, wind %s %.1f m/s\n",
		cur.Temp, cur.Description, cur.Humidity, run.WindDir, cur.WindSpeed)

	rain := "No"
	if run.RainTomorrow {
		rain = "Yes"
	}
	fmt.Fprintf(f, "Rain tomorrow: %s\n\n", rain)

	w := tabwriter.NewWriter(f, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTEMP\tHUMIDITY")
	for _, s := range run.Slots {
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\n", s.Label, s.Temperature, s.Humidity)
	}
	w.Flush()
	fmt.Fprintf(f, "\nrun %s\n", run.ID)
}

func (c *RunsCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.RecentRuns(c.Limit)
	if err != nil {
		return fmt.Errorf("recent runs: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tLOCATION\tTEMP\tWIND\tRAIN TOMORROW")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s, %s\t%.1f\t%s\t%v\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Location, r.Country, r.Temp, r.WindDir, r.RainTomorrow)
	}
	return w.Flush()
}

func (c *HistoryCmd) Run(g *Globals) error {
	table, err := history.URI(g.History).Load(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d rows\n", g.History, table.Len())
	for _, f := range []models.Feature{models.FeatureTemp, models.FeatureHumidity} {
		col := table.Column(f)
		if len(col) == 0 {
			continue
		}
		fmt.Printf("  %-9s min %.1f  max %.1f\n", f, slices.Min(col), slices.Max(col))
	}
	fmt.Printf("  %-9s %v\n", models.FeatureRainTomorrow, counts(table.RainLabels()))
	fmt.Printf("  %-9s %v\n", "WindDir", counts(table.WindGustDirs()))
	return nil
}

// counts formats label frequencies in label order.
func counts(values []string) string {
	n := make(map[string]int)
	for _, v := range values {
		n[v]++
	}
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", k, n[k])
	}
	return out
}

func (c *PayloadsCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if c.ID > 0 {
		body, err := a.store.GetRawPayload(c.ID)
		if err != nil {
			return fmt.Errorf("get payload %d: %w", c.ID, err)
		}
		if body == nil {
			return fmt.Errorf("payload %d not found", c.ID)
		}
		_, err = os.Stdout.Write(append(body, '\n'))
		return err
	}

	payloads, err := a.store.LatestRawPayloads(c.Location, c.Limit)
	if err != nil {
		return fmt.Errorf("latest payloads: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFETCHED\tENDPOINT\tBYTES\tHASH")
	for _, p := range payloads {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.12s\n",
			p.ID, p.FetchedAt.Format("2006-01-02 15:04"), p.Endpoint, p.SizeBytes, p.PayloadHash)
	}
	return w.Flush()
}
