package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lox/raincast/internal/metrics"
	"github.com/lox/raincast/internal/models"
)

// Columns lists the header names every historical source must carry.
var Columns = []models.Feature{
	models.FeatureMinTemp,
	models.FeatureMaxTemp,
	models.FeatureWindGustDir,
	models.FeatureWindGustSpeed,
	models.FeatureHumidity,
	models.FeaturePressure,
	models.FeatureTemp,
	models.FeatureRainTomorrow,
}

// naTokens are treated as missing values, matching the defaults of the tools
// the historical CSVs are usually exported from.
var naTokens = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// Table is the cleaned, chronologically ordered historical observation table.
// It is not modified after construction.
type Table struct {
	rows []models.HistoricalRow
}

// NewTable builds a table from rows, dropping any row that exactly repeats an
// earlier one. Order of the kept rows is preserved.
func NewTable(rows []models.HistoricalRow) *Table {
	t, _ := newTable(rows)
	return t
}

func newTable(rows []models.HistoricalRow) (*Table, int) {
	seen := make(map[string]bool, len(rows))
	kept := make([]models.HistoricalRow, 0, len(rows))
	for _, row := range rows {
		key := rowKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	return &Table{rows: kept}, len(rows) - len(kept)
}

func rowKey(r models.HistoricalRow) string {
	f := func(v float64) string {
		if v == 0 {
			v = 0 // fold -0 into 0
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join([]string{
		f(r.MinTemp), f(r.MaxTemp), r.WindGustDir, f(r.WindGustSpeed),
		f(r.Humidity), f(r.Pressure), f(r.Temp), r.RainTomorrow,
	}, "\x1f")
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows.
func (t *Table) Rows() []models.HistoricalRow {
	out := make([]models.HistoricalRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Column returns the values of a numeric feature in row order. It returns nil
// for categorical features.
func (t *Table) Column(f models.Feature) []float64 {
	if _, ok := (models.HistoricalRow{}).Value(f); !ok {
		return nil
	}
	out := make([]float64, len(t.rows))
	for i, row := range t.rows {
		out[i], _ = row.Value(f)
	}
	return out
}

// WindGustDirs returns the WindGustDir labels in row order.
func (t *Table) WindGustDirs() []string {
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row.WindGustDir
	}
	return out
}

// RainLabels returns the RainTomorrow labels in row order.
func (t *Table) RainLabels() []string {
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row.RainTomorrow
	}
	return out
}

// LoadFrom opens uri with Open and loads it.
func LoadFrom(ctx context.Context, uri string) (*Table, error) {
	rc, err := Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return load(uri, rc)
}

// Load reads a delimited historical table with a header row. Rows with a
// missing value in any required column are dropped, then exact duplicates.
func Load(r io.Reader) (*Table, error) {
	return load("", r)
}

func load(source string, r io.Reader) (*Table, error) {
	fail := func(op string, err error) error {
		return &DataSourceError{Source: source, Op: op, Err: err}
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fail("read header", errors.New("empty source"))
	}
	if err != nil {
		return nil, fail("read header", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, fail("read header", err)
	}

	var rows []models.HistoricalRow
	var incomplete int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fail("read", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > len(header) {
			return nil, fail("parse", fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(header)))
		}

		row, complete, err := parseRow(rec, cols)
		if err != nil {
			return nil, fail("parse", fmt.Errorf("line %d: %w", line, err))
		}
		if !complete {
			incomplete++
			continue
		}
		rows = append(rows, row)
	}

	table, duplicates := newTable(rows)

	metrics.HistoryRowsLoaded.Set(float64(table.Len()))
	metrics.HistoryRowsDropped.WithLabelValues("missing").Add(float64(incomplete))
	metrics.HistoryRowsDropped.WithLabelValues("duplicate").Add(float64(duplicates))
	log.Printf("history: loaded %d rows (%d incomplete, %d duplicate dropped)", table.Len(), incomplete, duplicates)

	return table, nil
}

func columnIndex(header []string) (map[models.Feature]int, error) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var result *multierror.Error
	cols := make(map[models.Feature]int, len(Columns))
	for _, c := range Columns {
		i, ok := index[string(c)]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("missing column %q", c))
			continue
		}
		cols[c] = i
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cols, nil
}

// parseRow reports complete=false when any required column is absent or holds
// an NA token.
func parseRow(rec []string, cols map[models.Feature]int) (models.HistoricalRow, bool, error) {
	values := make(map[models.Feature]string, len(cols))
	for c, i := range cols {
		if i >= len(rec) {
			return models.HistoricalRow{}, false, nil
		}
		v := strings.TrimSpace(rec[i])
		if naTokens[v] {
			return models.HistoricalRow{}, false, nil
		}
		values[c] = v
	}

	num := func(c models.Feature) (float64, error) {
		v, err := strconv.ParseFloat(values[c], 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", c, err)
		}
		return v, nil
	}

	var row models.HistoricalRow
	var err error
	if row.MinTemp, err = num(models.FeatureMinTemp); err != nil {
		return row, false, err
	}
	if row.MaxTemp, err = num(models.FeatureMaxTemp); err != nil {
		return row, false, err
	}
	if row.WindGustSpeed, err = num(models.FeatureWindGustSpeed); err != nil {
		return row, false, err
	}
	if row.Humidity, err = num(models.FeatureHumidity); err != nil {
		return row, false, err
	}
	if row.Pressure, err = num(models.FeaturePressure); err != nil {
		return row, false, err
	}
	if row.Temp, err = num(models.FeatureTemp); err != nil {
		return row, false, err
	}
	row.WindGustDir = values[models.FeatureWindGustDir]
	row.RainTomorrow = values[models.FeatureRainTomorrow]
	return row, true, nil
}
