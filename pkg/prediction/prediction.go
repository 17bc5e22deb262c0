package prediction

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date format for records.
const DateLayout = "2006-01-02"

// Record is one predicted AQI value for a city on a date.
type Record struct {
	ID    int64  `json:"id,omitempty" db:"id"`
	State string `json:"state" db:"state"`
	City  string `json:"city" db:"city"`
	Date  string `json:"date" db:"date"`
	AQI   int    `json:"aqi" db:"aqi"`
}

// Key identifies a record for deduplication.
type Key struct {
	State, City, Date string
}

// Key returns the (state, city, date) identity of r.
func (r Record) Key() Key {
	return Key{State: r.State, City: r.City, Date: r.Date}
}

// Validate checks required fields and the date format.
func (r Record) Validate() error {
	if strings.TrimSpace(r.State) == "" {
		return errors.New("state is required")
	}
	if strings.TrimSpace(r.City) == "" {
		return errors.New("city is required")
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD", r.Date)
	}
	if r.AQI < 0 {
		return fmt.Errorf("aqi %d is negative", r.AQI)
	}
	return nil
}

// ParseDate accepts the date forms found in exported prediction files and
// returns the canonical YYYY-MM-DD form.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}

// ParseAQI accepts integer or float AQI values; floats are rounded.
func ParseAQI(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid aqi %q", s)
	}
	return int(math.Round(f)), nil
}

// LineError reports a malformed CSV row.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ReadCSV parses a prediction file. Columns are located by header name
// (state, city, date, aqi; case-insensitive); other columns are ignored.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty prediction file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int)
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{"state", "city", "date", "aqi"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}

		field := func(name string) string {
			i := cols[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		date, err := ParseDate(field("date"))
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		value, err := ParseAQI(field("aqi"))
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}

		rec := Record{State: field("state"), City: field("city"), Date: date, AQI: value}
		if err := rec.Validate(); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		records = append(records, rec)
	}

	return records, nil
}

// WriteCSV writes records with a state,city,date,aqi header.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"state", "city", "date", "aqi"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.State, r.City, r.Date, strconv.Itoa(r.AQI)}); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Dedupe keeps the first record for every (state, city, date).
func Dedupe(records []Record) []Record {
	seen := make(map[Key]bool, len(records))
	out := records[:0:0]
	for _, r := range records {
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
