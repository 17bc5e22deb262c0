package location

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCountry is used when a query does not name one.
const DefaultCountry = "Malaysia"

//go:embed cities.csv
var embeddedCities []byte

var (
	ErrUnknownCity  = errors.New("unknown city")
	ErrUnknownState = errors.New("unknown state")
)

// Location is a point the air quality sources can be queried for.
type Location struct {
	City    string  `json:"city,omitempty"`
	State   string  `json:"state,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// HasCoordinates reports whether Lat/Lon were set.
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lon != 0
}

// Key is a stable identifier for cache keys and logs.
func (l Location) Key() string {
	if l.City != "" {
		return Slug(l.State) + "/" + Slug(l.City)
	}
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// Directory is the static state -> city -> coordinates table.
type Directory struct {
	states map[string]*stateEntry
}

type stateEntry struct {
	name   string
	cities map[string]Location
}

// Default returns the embedded Malaysian city directory.
func Default() *Directory {
	d, err := ParseCSV(bytes.NewReader(embeddedCities))
	if err != nil {
		panic(fmt.Sprintf("embedded cities.csv: %v", err))
	}
	return d
}

// LoadCSV reads a directory from a file with State, City, Latitude and
// Longitude columns.
func LoadCSV(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cities %s: %w", path, err)
	}
	defer f.Close()

	d, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse cities %s: %w", path, err)
	}
	return d, nil
}

// ParseCSV builds a directory from CSV. Columns are matched by header
// name; anything else (such as a pandas index column) is ignored.
func ParseCSV(r io.Reader) (*Directory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{"state", "city", "latitude", "longitude"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}

	d := &Directory{states: make(map[string]*stateEntry)}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(col string) string {
			i := cols[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		lat, err := strconv.ParseFloat(get("latitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		lon, err := strconv.ParseFloat(get("longitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}
		state, city := displayName(get("state")), displayName(get("city"))
		if state == "" || city == "" {
			return nil, fmt.Errorf("line %d: state and city are required", line)
		}

		d.add(Location{City: city, State: state, Country: DefaultCountry, Lat: lat, Lon: lon})
	}

	if len(d.states) == 0 {
		return nil, errors.New("no cities")
	}
	return d, nil
}

func (d *Directory) add(loc Location) {
	sk := normalize(loc.State)
	st, ok := d.states[sk]
	if !ok {
		st = &stateEntry{name: loc.State, cities: make(map[string]Location)}
		d.states[sk] = st
	}
	st.cities[normalize(loc.City)] = loc
}

// States returns state names in alphabetical order.
func (d *Directory) States() []string {
	out := make([]string, 0, len(d.states))
	for _, st := range d.states {
		out = append(out, st.name)
	}
	sort.Strings(out)
	return out
}

// Cities returns the city names of a state in alphabetical order.
func (d *Directory) Cities(state string) ([]string, error) {
	st, ok := d.states[normalize(state)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	out := make([]string, 0, len(st.cities))
	for _, c := range st.cities {
		out = append(out, c.City)
	}
	sort.Strings(out)
	return out, nil
}

// Lookup finds a city. Matching ignores case, surrounding whitespace and
// the hyphens used in URL slugs.
func (d *Directory) Lookup(state, city string) (Location, error) {
	st, ok := d.states[normalize(state)]
	if !ok {
		return Location{}, fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	loc, ok := st.cities[normalize(city)]
	if !ok {
		return Location{}, fmt.Errorf("%w: %s, %s", ErrUnknownCity, city, state)
	}
	return loc, nil
}

// All returns every city, ordered by state then city.
func (d *Directory) All() []Location {
	var out []Location
	for _, state := range d.States() {
		cities, _ := d.Cities(state)
		for _, c := range cities {
			loc, _ := d.Lookup(state, c)
			out = append(out, loc)
		}
	}
	return out
}

// Nearest returns the directory city closest to the given point and its
// great-circle distance in kilometres.
func (d *Directory) Nearest(lat, lon float64) (Location, float64) {
	var (
		best     Location
		bestDist = math.Inf(1)
	)
	for _, loc := range d.All() {
		dist := Haversine(lat, lon, loc.Lat, loc.Lon)
		if dist < bestDist {
			best, bestDist = loc, dist
		}
	}
	return best, bestDist
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// Slug renders a name the way WAQI expects city paths ("kuala-lumpur").
func Slug(name string) string {
	return strings.ReplaceAll(normalize(name), " ", "-")
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// displayName title-cases names that arrive all lowercase or as slugs and
// leaves anything with deliberate capitalisation alone.
func displayName(s string) string {
	s = strings.TrimSpace(s)
	if s == strings.ToLower(s) {
		return cases.Title(language.Und).String(normalize(s))
	}
	return s
}
