package analysis

import (
	"math"
	"testing"
)

func TestPowerSpectrumPeak(t *testing.T) {
	const dt = 0.25
	data := make([]float64, 1024)
	for i := range data {
		tt := float64(i) * dt
		data[i] = 0.2 + math.Sin(2*math.Pi*tt/8) + 0.1*math.Sin(2*math.Pi*tt/2)
	}

	sp, err := PowerSpectrum(data, dt)
	if err != nil {
		t.Fatal(err)
	}
	if len(sp.Freq) != 513 {
		t.Fatalf("bins = %d, want 513", len(sp.Freq))
	}
	if math.Abs(sp.Freq[len(sp.Freq)-1]-2) > 1e-12 {
		t.Errorf("nyquist = %v, want 2 Hz", sp.Freq[len(sp.Freq)-1])
	}

	f, _ := sp.Peak()
	if math.Abs(f-0.125) > 1e-9 {
		t.Errorf("peak = %v Hz, want 0.125", f)
	}

	w, err := PeakAngularFrequency(data, dt)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(w-2*math.Pi/8) > 1e-9 {
		t.Errorf("omega = %v, want %v", w, 2*math.Pi/8)
	}
}

func TestPowerSpectrumErrors(t *testing.T) {
	if _, err := PowerSpectrum([]float64{1, 2}, 0.1); err == nil {
		t.Error("short input accepted")
	}
	if _, err := PowerSpectrum(make([]float64, 16), 0); err == nil {
		t.Error("zero dt accepted")
	}
	if _, err := PeakAngularFrequency(make([]float64, 16), 0.1); err == nil {
		t.Error("flat signal produced a peak")
	}
}
