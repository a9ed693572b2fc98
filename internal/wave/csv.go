package wave

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultTimeColumn      = "Time_s"
	DefaultElevationColumn = "Probe1_Elevation_m"
)

// CSVOptions selects the columns holding time and elevation. When a named
// column is missing from the header the first (time) or second (elevation)
// column is used.
type CSVOptions struct {
	TimeColumn      string
	ElevationColumn string
}

func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		TimeColumn:      DefaultTimeColumn,
		ElevationColumn: DefaultElevationColumn,
	}
}

// LoadCSV reads and cleans a wave record from a file.
func LoadCSV(path string, opts CSVOptions) (Record, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return Record{}, 0, err
	}
	defer file.Close()

	rec, dropped, err := ReadCSV(file, opts)
	if err != nil {
		return Record{}, 0, fmt.Errorf("%s: %w", path, err)
	}
	return rec, dropped, nil
}

// ReadCSV parses a headed CSV stream. Cells that do not parse as floats are
// treated as missing and removed by Clean along with the rest of their row.
func ReadCSV(r io.Reader, opts CSVOptions) (Record, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, 0, errors.New("empty csv")
		}
		return Record{}, 0, err
	}

	ti, ei, err := columns(header, opts)
	if err != nil {
		return Record{}, 0, err
	}

	var samples []Sample
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Record{}, 0, err
		}
		samples = append(samples, Sample{
			Time:      cell(row, ti),
			Elevation: cell(row, ei),
		})
	}

	rec, dropped := Clean(samples)
	return rec, dropped, nil
}

func columns(header []string, opts CSVOptions) (int, int, error) {
	ti, ei := -1, -1
	for i, h := range header {
		name := strings.TrimSpace(h)
		if strings.EqualFold(name, opts.TimeColumn) {
			ti = i
		}
		if strings.EqualFold(name, opts.ElevationColumn) {
			ei = i
		}
	}
	if ti < 0 {
		ti = 0
	}
	if ei < 0 {
		ei = 1
	}
	if len(header) < 2 || ti == ei {
		return 0, 0, fmt.Errorf("csv needs a time and an elevation column, header %v", header)
	}
	return ti, ei, nil
}

func cell(row []string, i int) float64 {
	if i >= len(row) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// WriteCSV writes a record with the default column names.
func WriteCSV(w io.Writer, r Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{DefaultTimeColumn, DefaultElevationColumn}); err != nil {
		return err
	}
	for _, s := range r.Samples {
		row := []string{
			strconv.FormatFloat(s.Time, 'f', 6, 64),
			strconv.FormatFloat(s.Elevation, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
