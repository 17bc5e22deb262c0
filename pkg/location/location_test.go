package location

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDefaultDirectory(t *testing.T) {
	d := Default()

	states := d.States()
	if len(states) < 10 {
		t.Fatalf("expected the embedded directory to list all states, got %d", len(states))
	}
	for i := 1; i < len(states); i++ {
		if states[i-1] > states[i] {
			t.Fatalf("states not sorted: %q before %q", states[i-1], states[i])
		}
	}

	loc, err := d.Lookup("Kuala Lumpur", "Kuala Lumpur")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if loc.Country != DefaultCountry || loc.Lat == 0 {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLookupIsForgiving(t *testing.T) {
	d := Default()
	for _, q := range [][2]string{
		{"kuala-lumpur", "kuala-lumpur"},
		{"  KUALA LUMPUR ", "Kuala   Lumpur"},
		{"pulau_pinang", "george town"},
	} {
		if _, err := d.Lookup(q[0], q[1]); err != nil {
			t.Errorf("Lookup(%q,%q): %v", q[0], q[1], err)
		}
	}
}

func TestLookupErrors(t *testing.T) {
	d := Default()
	if _, err := d.Lookup("Atlantis", "X"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("want ErrUnknownState, got %v", err)
	}
	if _, err := d.Lookup("Selangor", "Atlantis"); !errors.Is(err, ErrUnknownCity) {
		t.Fatalf("want ErrUnknownCity, got %v", err)
	}
	if _, err := d.Cities("Atlantis"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("want ErrUnknownState, got %v", err)
	}
}

func TestParseCSVIgnoresExtraColumns(t *testing.T) {
	const data = `,State,City,Latitude,Longitude
0,selangor,shah alam,3.07,101.51
1,Selangor,Klang,3.04,101.44
2,Johor,Muar,2.04,102.56
`
	d, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cities, err := d.Cities("Selangor")
	if err != nil {
		t.Fatalf("cities: %v", err)
	}
	if len(cities) != 2 || cities[0] != "Klang" || cities[1] != "Shah Alam" {
		t.Fatalf("cities=%v", cities)
	}
}

func TestParseCSVRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"missing column": "State,City,Latitude\nA,B,1\n",
		"bad latitude":   "State,City,Latitude,Longitude\nA,B,north,1\n",
		"empty":          "State,City,Latitude,Longitude\n",
		"blank city":     "State,City,Latitude,Longitude\nA,,1,1\n",
	}
	for name, data := range tests {
		if _, err := ParseCSV(strings.NewReader(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNearest(t *testing.T) {
	d := Default()
	loc, dist := d.Nearest(3.14, 101.69)
	if loc.City != "Kuala Lumpur" {
		t.Fatalf("nearest=%q want Kuala Lumpur", loc.City)
	}
	if dist > 5 {
		t.Fatalf("distance=%.1fkm, expected < 5km", dist)
	}
}

func TestHaversine(t *testing.T) {
	// Kuala Lumpur to George Town is roughly 290km.
	d := Haversine(3.1390, 101.6869, 5.4141, 100.3288)
	if math.Abs(d-292) > 15 {
		t.Fatalf("distance=%.1f", d)
	}
	if Haversine(1, 1, 1, 1) != 0 {
		t.Fatal("zero distance expected")
	}
}

func TestSlug(t *testing.T) {
	if got := Slug(" Kuala  Lumpur "); got != "kuala-lumpur" {
		t.Fatalf("Slug=%q", got)
	}
}

type fakeGeocoder struct {
	gotZip, gotCountry string
	err                error
}

func (f *fakeGeocoder) GeocodeZip(ctx context.Context, zip, country string) (Location, error) {
	f.gotZip, f.gotCountry = zip, country
	if f.err != nil {
		return Location{}, f.err
	}
	return Location{City: "Kuala Lumpur", Lat: 3.1, Lon: 101.7}, nil
}

func ptr(f float64) *float64 { return &f }

func TestResolver(t *testing.T) {
	geo := &fakeGeocoder{}
	r := NewResolver(Default(), geo, "")
	ctx := context.Background()

	loc, err := r.Resolve(ctx, Query{State: "Perak", City: "Ipoh"})
	if err != nil || loc.City != "Ipoh" {
		t.Fatalf("city query: %+v %v", loc, err)
	}

	loc, err = r.Resolve(ctx, Query{Lat: ptr(3.1), Lon: ptr(101.6)})
	if err != nil || loc.Lat != 3.1 || loc.Lon != 101.6 {
		t.Fatalf("coord query: %+v %v", loc, err)
	}

	loc, err = r.Resolve(ctx, Query{Zip: " 50000 "})
	if err != nil || loc.City != "Kuala Lumpur" {
		t.Fatalf("zip query: %+v %v", loc, err)
	}
	if geo.gotZip != "50000" || geo.gotCountry != "MY" {
		t.Fatalf("geocoder got zip=%q country=%q", geo.gotZip, geo.gotCountry)
	}
}

func TestResolverRejectsInvalidQueries(t *testing.T) {
	r := NewResolver(Default(), nil, "MY")
	ctx := context.Background()

	tests := map[string]Query{
		"empty":         {},
		"city only":     {City: "Ipoh"},
		"lat only":      {Lat: ptr(3)},
		"out of range":  {Lat: ptr(91), Lon: ptr(0)},
		"mixed":         {State: "Perak", City: "Ipoh", Zip: "30000"},
		"no geocoder":   {Zip: "30000"},
		"lon too small": {Lat: ptr(0), Lon: ptr(-181)},
		"nan lat":       {Lat: ptr(math.NaN()), Lon: ptr(101.7)},
		"nan lon":       {Lat: ptr(3.1), Lon: ptr(math.NaN())},
	}
	for name, q := range tests {
		if _, err := r.Resolve(ctx, q); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("%s: want ErrInvalidQuery, got %v", name, err)
		}
	}
}

func TestResolverWrapsGeocoderErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewResolver(Default(), &fakeGeocoder{err: boom}, "MY")
	if _, err := r.Resolve(context.Background(), Query{Zip: "1"}); !errors.Is(err, boom) {
		t.Fatalf("want wrapped geocoder error, got %v", err)
	}
}
