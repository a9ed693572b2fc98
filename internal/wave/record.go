package wave

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

// Sample is a single wave-elevation measurement.
type Sample struct {
	Time      float64 // s
	Elevation float64 // m
}

// Record is an ordered sequence of samples with strictly increasing time.
// Build one with Clean.
type Record struct {
	Samples []Sample
}

// Clean drops samples with a non-finite time or elevation, sorts the rest by
// time and keeps only the first sample of each timestamp. It returns the
// cleaned record and the number of samples dropped.
func Clean(samples []Sample) (Record, int) {
	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if dynamo.IsFinite(s.Time) && dynamo.IsFinite(s.Elevation) {
			kept = append(kept, s)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Time < kept[j].Time })

	out := kept[:0]
	for i, s := range kept {
		if i > 0 && s.Time == kept[i-1].Time {
			continue
		}
		out = append(out, s)
	}

	return Record{Samples: out}, len(samples) - len(out)
}

func (r Record) Len() int { return len(r.Samples) }

func (r Record) Times() []float64 {
	ts := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		ts[i] = s.Time
	}
	return ts
}

func (r Record) Elevations() []float64 {
	es := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		es[i] = s.Elevation
	}
	return es
}

// Span returns the first and last sample times.
func (r Record) Span() (float64, float64) {
	if len(r.Samples) == 0 {
		return 0, 0
	}
	return r.Samples[0].Time, r.Samples[len(r.Samples)-1].Time
}

// Stats summarises a record.
type Stats struct {
	Count      int
	Start, End float64
	Min, Max   float64
	Mean       float64
	MeanDt     float64
}

func (r Record) Stats() Stats {
	if len(r.Samples) == 0 {
		return Stats{}
	}
	es := r.Elevations()
	start, end := r.Span()
	st := Stats{
		Count: len(es),
		Start: start,
		End:   end,
		Min:   floats.Min(es),
		Max:   floats.Max(es),
		Mean:  floats.Sum(es) / float64(len(es)),
	}
	if len(es) > 1 {
		st.MeanDt = (end - start) / float64(len(es)-1)
	}
	return st
}

// Resample evaluates the record's linear interpolant on an even grid with
// spacing at most dt spanning the whole record.
func (r Record) Resample(dt float64) (Record, error) {
	if dt <= 0 {
		return Record{}, &dynamo.InvalidParameterError{Name: "dt", Value: dt, Reason: "must be positive"}
	}
	f, err := NewForcing(r)
	if err != nil {
		return Record{}, err
	}
	t0, t1 := f.Domain()
	n := int(math.Ceil((t1-t0)/dt)) + 1
	ts := make([]float64, n)
	floats.Span(ts, t0, t1)

	out := make([]Sample, n)
	for i, t := range ts {
		e, err := f.Elevation(t)
		if err != nil {
			return Record{}, fmt.Errorf("resample: %w", err)
		}
		out[i] = Sample{Time: t, Elevation: e}
	}
	return Record{Samples: out}, nil
}

// Sinusoid builds a regular wave record η(t) = amplitude·sin(2πt/period)
// sampled every dt over [0, duration].
func Sinusoid(amplitude, period, duration, dt float64) (Record, error) {
	switch {
	case period <= 0:
		return Record{}, &dynamo.InvalidParameterError{Name: "period", Value: period, Reason: "must be positive"}
	case duration <= 0:
		return Record{}, &dynamo.InvalidParameterError{Name: "duration", Value: duration, Reason: "must be positive"}
	case dt <= 0:
		return Record{}, &dynamo.InvalidParameterError{Name: "dt", Value: dt, Reason: "must be positive"}
	}

	n := int(math.Round(duration/dt)) + 1
	omega := 2 * math.Pi / period
	samples := make([]Sample, n)
	for i := range samples {
		t := float64(i) * dt
		if i == n-1 {
			t = duration
		}
		samples[i] = Sample{Time: t, Elevation: amplitude * math.Sin(omega*t)}
	}
	return Record{Samples: samples}, nil
}
