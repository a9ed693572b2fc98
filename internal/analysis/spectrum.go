package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

// Spectrum is a one-sided power spectrum. Freq is in Hz.
type Spectrum struct {
	Freq  []float64
	Power []float64
}

// PowerSpectrum computes |X(f)|² of the mean-removed signal sampled every dt.
func PowerSpectrum(data []float64, dt float64) (Spectrum, error) {
	if len(data) < 4 {
		return Spectrum{}, fmt.Errorf("spectrum: %d samples: %w", len(data), dynamo.ErrInsufficientData)
	}
	if !(dt > 0) {
		return Spectrum{}, &dynamo.InvalidParameterError{Name: "dt", Value: dt, Reason: "must be positive"}
	}

	mean := stat.Mean(data, nil)
	seq := make([]float64, len(data))
	for i, v := range data {
		seq[i] = v - mean
	}

	fft := fourier.NewFFT(len(seq))
	coeff := fft.Coefficients(nil, seq)

	sp := Spectrum{
		Freq:  make([]float64, len(coeff)),
		Power: make([]float64, len(coeff)),
	}
	for i, c := range coeff {
		sp.Freq[i] = fft.Freq(i) / dt
		a := cmplx.Abs(c)
		sp.Power[i] = a * a
	}
	return sp, nil
}

// Peak returns the frequency and power of the strongest non-DC bin.
func (s Spectrum) Peak() (float64, float64) {
	bi := -1
	for i := 1; i < len(s.Power); i++ {
		if bi < 0 || s.Power[i] > s.Power[bi] {
			bi = i
		}
	}
	if bi < 0 {
		return 0, 0
	}
	return s.Freq[bi], s.Power[bi]
}

// PeakAngularFrequency is the dominant frequency in rad/s.
func PeakAngularFrequency(data []float64, dt float64) (float64, error) {
	sp, err := PowerSpectrum(data, dt)
	if err != nil {
		return 0, err
	}
	f, p := sp.Peak()
	if p == 0 {
		return 0, fmt.Errorf("spectrum: flat signal has no peak: %w", dynamo.ErrInsufficientData)
	}
	return 2 * math.Pi * f, nil
}
