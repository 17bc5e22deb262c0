package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidQuery is returned when a query names no location, more than
// one kind of location, or coordinates that are NaN or out of range.
var ErrInvalidQuery = errors.New("invalid location query")

// ZipGeocoder turns a postal code into coordinates.
type ZipGeocoder interface {
	GeocodeZip(ctx context.Context, zip, countryCode string) (Location, error)
}

// Query selects a location by city, by coordinates or by postal code.
type Query struct {
	State   string
	City    string
	Lat     *float64
	Lon     *float64
	Zip     string
	Country string // ISO code for zip lookups
}

// Resolver turns user queries into Locations.
type Resolver struct {
	dir            *Directory
	geocoder       ZipGeocoder
	defaultCountry string
}

// NewResolver creates a resolver. geocoder may be nil, in which case zip
// queries are rejected.
func NewResolver(dir *Directory, geocoder ZipGeocoder, defaultCountryCode string) *Resolver {
	if defaultCountryCode == "" {
		defaultCountryCode = "MY"
	}
	return &Resolver{dir: dir, geocoder: geocoder, defaultCountry: defaultCountryCode}
}

// Directory returns the resolver's city directory.
func (r *Resolver) Directory() *Directory {
	return r.dir
}

// Resolve validates q and returns the location it names.
func (r *Resolver) Resolve(ctx context.Context, q Query) (Location, error) {
	byCity := q.State != "" || q.City != ""
	byCoords := q.Lat != nil || q.Lon != nil
	byZip := strings.TrimSpace(q.Zip) != ""

	n := 0
	for _, b := range []bool{byCity, byCoords, byZip} {
		if b {
			n++
		}
	}
	if n == 0 {
		return Location{}, fmt.Errorf("%w: provide state and city, lat and lon, or zip", ErrInvalidQuery)
	}
	if n > 1 {
		return Location{}, fmt.Errorf("%w: state/city, lat/lon and zip are mutually exclusive", ErrInvalidQuery)
	}

	switch {
	case byCity:
		if q.State == "" || q.City == "" {
			return Location{}, fmt.Errorf("%w: both state and city are required", ErrInvalidQuery)
		}
		return r.dir.Lookup(q.State, q.City)

	case byCoords:
		if q.Lat == nil || q.Lon == nil {
			return Location{}, fmt.Errorf("%w: both lat and lon are required", ErrInvalidQuery)
		}
		lat, lon := *q.Lat, *q.Lon
		if math.IsNaN(lat) || math.IsNaN(lon) {
			return Location{}, fmt.Errorf("%w: coordinates must be numbers", ErrInvalidQuery)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return Location{}, fmt.Errorf("%w: coordinates out of range (%g, %g)", ErrInvalidQuery, lat, lon)
		}
		return Location{Lat: lat, Lon: lon}, nil

	default:
		if r.geocoder == nil {
			return Location{}, fmt.Errorf("%w: zip lookup is not configured", ErrInvalidQuery)
		}
		country := q.Country
		if country == "" {
			country = r.defaultCountry
		}
		loc, err := r.geocoder.GeocodeZip(ctx, strings.TrimSpace(q.Zip), country)
		if err != nil {
			return Location{}, fmt.Errorf("geocode zip %s: %w", q.Zip, err)
		}
		return loc, nil
	}
}
