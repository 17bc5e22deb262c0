package prediction

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	const data = `Unnamed: 0,State,City,Date,AQI
0,Selangor,Shah Alam,2025-04-01,57
1,Johor,Muar,2025-04-01 00:00:00,63.6
2,Perak,Ipoh,2025/04/02,40
`
	records, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []Record{
		{State: "Selangor", City: "Shah Alam", Date: "2025-04-01", AQI: 57},
		{State: "Johor", City: "Muar", Date: "2025-04-01", AQI: 64},
		{State: "Perak", City: "Ipoh", Date: "2025-04-02", AQI: 40},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, records[i], want[i])
		}
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := map[string]struct {
		data     string
		wantLine int
	}{
		"empty":          {"", 0},
		"missing column": {"state,city,date\nA,B,2025-01-01\n", 0},
		"bad date":       {"state,city,date,aqi\nA,B,2025-01-01,1\nA,B,tomorrow,2\n", 3},
		"bad aqi":        {"state,city,date,aqi\nA,B,2025-01-01,high\n", 2},
		"negative aqi":   {"state,city,date,aqi\nA,B,2025-01-01,-4\n", 2},
		"blank city":     {"state,city,date,aqi\nA,,2025-01-01,4\n", 2},
	}
	for name, tt := range tests {
		_, err := ReadCSV(strings.NewReader(tt.data))
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		var le *LineError
		if tt.wantLine == 0 {
			if errors.As(err, &le) {
				t.Errorf("%s: unexpected line error %v", name, err)
			}
			continue
		}
		if !errors.As(err, &le) || le.Line != tt.wantLine {
			t.Errorf("%s: want line %d, got %v", name, tt.wantLine, err)
		}
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	in := []Record{
		{State: "Kuala Lumpur", City: "Kuala Lumpur", Date: "2025-04-01", AQI: 72},
		{State: "Sabah", City: "Kota Kinabalu, Town", Date: "2025-04-01", AQI: 30},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "state,city,date,aqi\n") {
		t.Fatalf("unexpected header in %q", buf.String())
	}
	out, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(out) != 2 || out[1].City != "Kota Kinabalu, Town" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestDedupe(t *testing.T) {
	in := []Record{
		{State: "A", City: "X", Date: "2025-01-01", AQI: 1},
		{State: "A", City: "X", Date: "2025-01-01", AQI: 2},
		{State: "A", City: "X", Date: "2025-01-02", AQI: 3},
		{State: "B", City: "X", Date: "2025-01-01", AQI: 4},
	}
	out := Dedupe(in)
	if len(out) != 3 {
		t.Fatalf("len=%d want 3", len(out))
	}
	if out[0].AQI != 1 {
		t.Fatalf("first occurrence should win, got %+v", out[0])
	}
	if in[1].AQI != 2 {
		t.Fatal("Dedupe modified its input")
	}
}

func TestParseAQI(t *testing.T) {
	tests := map[string]int{"5": 5, " 12 ": 12, "12.5": 13, "12.4": 12}
	for in, want := range tests {
		got, err := ParseAQI(in)
		if err != nil || got != want {
			t.Errorf("ParseAQI(%q)=%d,%v want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "NaN", "abc", "Inf"} {
		if _, err := ParseAQI(in); err == nil {
			t.Errorf("ParseAQI(%q) expected error", in)
		}
	}
}
