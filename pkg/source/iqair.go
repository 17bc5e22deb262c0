package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/aqiwatch/pkg/aqi"
	"github.com/elonfeng/aqiwatch/pkg/location"
)

const iqairBaseURL = "https://api.airvisual.com/v2"

// IQAir fetches US AQI, main pollutant and weather from the AirVisual API.
type IQAir struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewIQAir creates a new IQAir client. An empty baseURL uses the public API.
func NewIQAir(apiKey, baseURL string) *IQAir {
	if baseURL == "" {
		baseURL = iqairBaseURL
	}
	return &IQAir{
		client:  newHTTPClient(),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (q *IQAir) Name() SourceType { return SourceIQAir }

// Fetch uses the nearest_city endpoint when coordinates are known and the
// city endpoint otherwise.
func (q *IQAir) Fetch(ctx context.Context, loc location.Location) (*Reading, error) {
	params := url.Values{}
	params.Set("key", q.apiKey)

	var endpoint string
	switch {
	case loc.HasCoordinates():
		endpoint = "/nearest_city"
		params.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	case loc.City != "" && loc.State != "":
		endpoint = "/city"
		country := loc.Country
		if country == "" {
			country = location.DefaultCountry
		}
		params.Set("city", loc.City)
		params.Set("state", loc.State)
		params.Set("country", country)
	default:
		return nil, fmt.Errorf("iqair: location needs coordinates or city and state")
	}

	var result iqairResponse
	if err := getJSON(ctx, q.client, SourceIQAir, q.baseURL+endpoint+"?"+params.Encode(), &result, iqairMessage); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, &APIError{Source: SourceIQAir, Status: http.StatusOK, Message: result.Data.Message}
	}
	if result.Data.Current == nil {
		return nil, ErrNoData
	}

	d := result.Data
	p := d.Current.Pollution
	w := d.Current.Weather

	got := location.Location{City: d.City, State: d.State, Country: d.Country}
	if len(d.Location.Coordinates) == 2 {
		got.Lon, got.Lat = d.Location.Coordinates[0], d.Location.Coordinates[1]
	}

	observed := p.TS
	if observed.IsZero() {
		observed = time.Now().UTC()
	}

	return &Reading{
		Source:        SourceIQAir,
		Location:      got,
		AQI:           p.AQIUS,
		MainPollutant: aqi.NormalizePollutant(p.MainUS),
		Weather: &Weather{
			TemperatureC: w.TP,
			HumidityPct:  w.HU,
			WindSpeedMS:  w.WS,
			WindDirDeg:   w.WD,
			PressureHPa:  w.PR,
			Icon:         w.IC,
		},
		ObservedAt:  observed.UTC(),
		CollectedAt: time.Now().UTC(),
	}, nil
}

func iqairMessage(body []byte) string {
	var v iqairResponse
	if json.Unmarshal(body, &v) == nil && v.Data.Message != "" {
		return v.Data.Message
	}
	return messageField(body)
}

type iqairResponse struct {
	Status string    `json:"status"`
	Data   iqairData `json:"data"`
}

type iqairData struct {
	Message  string `json:"message"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Location struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"location"`
	Current *struct {
		Pollution struct {
			TS     time.Time `json:"ts"`
			AQIUS  int       `json:"aqius"`
			MainUS string    `json:"mainus"`
		} `json:"pollution"`
		Weather struct {
			TP float64 `json:"tp"`
			PR float64 `json:"pr"`
			HU float64 `json:"hu"`
			WS float64 `json:"ws"`
			WD float64 `json:"wd"`
			IC string  `json:"ic"`
		} `json:"weather"`
	} `json:"current"`
}
