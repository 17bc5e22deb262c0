package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/aqiwatch/pkg/location"
)

const openWeatherBaseURL = "https://api.openweathermap.org"

// OpenWeather fetches pollutant concentrations from the OpenWeather air
// pollution API and resolves postal codes through its geocoding API.
type OpenWeather struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewOpenWeather creates a new OpenWeather client. An empty baseURL uses
// the public API.
func NewOpenWeather(apiKey, baseURL string) *OpenWeather {
	if baseURL == "" {
		baseURL = openWeatherBaseURL
	}
	return &OpenWeather{
		client:  newHTTPClient(),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (o *OpenWeather) Name() SourceType { return SourceOpenWeather }

// Fetch returns the current component concentrations. The reading's AQI
// is left at zero since OpenWeather only reports its own 1-5 index.
func (o *OpenWeather) Fetch(ctx context.Context, loc location.Location) (*Reading, error) {
	if !loc.HasCoordinates() {
		return nil, fmt.Errorf("openweather: location %s has no coordinates", loc.Key())
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	params.Set("appid", o.apiKey)

	var result owPollutionResponse
	reqURL := o.baseURL + "/data/2.5/air_pollution?" + params.Encode()
	if err := getJSON(ctx, o.client, SourceOpenWeather, reqURL, &result, messageField); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, ErrNoData
	}

	entry := result.List[0]
	components := make(map[string]float64, len(entry.Components))
	for k, v := range entry.Components {
		components[k] = v
	}

	observed := time.Now().UTC()
	if entry.DT > 0 {
		observed = time.Unix(entry.DT, 0).UTC()
	}

	return &Reading{
		Source:          SourceOpenWeather,
		ComponentSource: SourceOpenWeather,
		Location:        location.Location{Lat: result.Coord.Lat, Lon: result.Coord.Lon},
		Components:      components,
		ObservedAt:      observed,
		CollectedAt:     time.Now().UTC(),
	}, nil
}

// GeocodeZip resolves a postal code to coordinates.
func (o *OpenWeather) GeocodeZip(ctx context.Context, zip, countryCode string) (location.Location, error) {
	params := url.Values{}
	params.Set("zip", zip+","+countryCode)
	params.Set("appid", o.apiKey)

	var result owZipResponse
	reqURL := o.baseURL + "/geo/1.0/zip?" + params.Encode()
	if err := getJSON(ctx, o.client, SourceOpenWeather, reqURL, &result, messageField); err != nil {
		return location.Location{}, err
	}
	if result.Lat == 0 && result.Lon == 0 {
		return location.Location{}, fmt.Errorf("openweather: no coordinates for zip %s", zip)
	}

	return location.Location{
		City: result.Name,
		Lat:  result.Lat,
		Lon:  result.Lon,
	}, nil
}

type owPollutionResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components map[string]float64 `json:"components"`
		DT         int64              `json:"dt"`
	} `json:"list"`
}

type owZipResponse struct {
	Zip     string  `json:"zip"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}
