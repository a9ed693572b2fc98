package wave

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadCSV_NamedColumns(t *testing.T) {
	data := `Probe1_Elevation_m,Time_s,Other
0.5,0.0,x
NaN,0.2,x
0.7,0.4,x
,0.6,x
0.2,0.8,x
`
	rec, dropped, err := ReadCSV(strings.NewReader(data), DefaultCSVOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if rec.Len() != 3 {
		t.Fatalf("got %d samples, want 3", rec.Len())
	}
	if rec.Samples[1].Time != 0.4 || rec.Samples[1].Elevation != 0.7 {
		t.Errorf("unexpected sample %v", rec.Samples[1])
	}
}

func TestReadCSV_FallbackColumns(t *testing.T) {
	data := "time_s,probe1_m\n0,1\n1,2\n"
	rec, _, err := ReadCSV(strings.NewReader(data), CSVOptions{TimeColumn: "t", ElevationColumn: "eta"})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if rec.Len() != 2 || rec.Samples[1].Elevation != 2 {
		t.Errorf("unexpected record %v", rec.Samples)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	if _, _, err := ReadCSV(strings.NewReader(""), DefaultCSVOptions()); err == nil {
		t.Error("expected error for empty input")
	}
	if _, _, err := ReadCSV(strings.NewReader("only\n1\n"), DefaultCSVOptions()); err == nil {
		t.Error("expected error for single column")
	}
}

func TestWriteAndLoadCSV(t *testing.T) {
	rec, err := Sinusoid(0.5, 4, 8, 0.5)
	if err != nil {
		t.Fatalf("Sinusoid: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rec); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	path := filepath.Join(t.TempDir(), "wave.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, dropped, err := LoadCSV(path, DefaultCSVOptions())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if dropped != 0 || loaded.Len() != rec.Len() {
		t.Fatalf("loaded %d (dropped %d), want %d", loaded.Len(), dropped, rec.Len())
	}
	for i := range rec.Samples {
		if math.Abs(loaded.Samples[i].Elevation-rec.Samples[i].Elevation) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, loaded.Samples[i], rec.Samples[i])
		}
	}

	if _, _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), DefaultCSVOptions()); err == nil {
		t.Error("expected error for missing file")
	}
}
