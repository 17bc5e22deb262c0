package source

import (
	"bytes"
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

const waqiBaseURL = "https://api.waqi.info"

// WAQI fetches AQI from the World Air Quality Index project.
type WAQI struct {
	client  *http.Client
	token   string
	baseURL string
}

// NewWAQI creates a new WAQI client. An empty baseURL uses the public API.
func NewWAQI(token, baseURL string) *WAQI {
	if baseURL == "" {
		baseURL = waqiBaseURL
	}
	return &WAQI{
		client:  newHTTPClient(),
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (w *WAQI) Name() SourceType { return SourceWAQI }

func (w *WAQI) Fetch(ctx context.Context, loc location.Location) (*Reading, error) {
	// WAQI expects a literal ';' between coordinates.
	var feed string
	switch {
	case loc.HasCoordinates():
		feed = "geo:" + strconv.FormatFloat(loc.Lat, 'f', -1, 64) +
			";" + strconv.FormatFloat(loc.Lon, 'f', -1, 64)
	case loc.City != "":
		feed = url.PathEscape(location.Slug(loc.City))
	default:
		return nil, fmt.Errorf("waqi: location needs coordinates or a city")
	}

	params := url.Values{}
	params.Set("token", w.token)
	reqURL := w.baseURL + "/feed/" + feed + "/?" + params.Encode()

	var result waqiResponse
	if err := getJSON(ctx, w.client, SourceWAQI, reqURL, &result, waqiMessage); err != nil {
		return nil, err
	}
	if result.Status != "ok" {
		return nil, &APIError{Source: SourceWAQI, Status: http.StatusOK, Message: stringData(result.Data)}
	}

	var d waqiData
	if err := json.Unmarshal(result.Data, &d); err != nil {
		return nil, fmt.Errorf("decode waqi data: %w", err)
	}

	value, ok := parseWAQIAQI(d.AQI)
	if !ok {
		return nil, ErrNoData
	}

	got := location.Location{City: d.City.Name}
	if len(d.City.Geo) == 2 {
		got.Lat, got.Lon = d.City.Geo[0], d.City.Geo[1]
	}

	observed := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, d.Time.ISO); err == nil {
		observed = t.UTC()
	}

	r := &Reading{
		Source:        SourceWAQI,
		Location:      got,
		AQI:           value,
		MainPollutant: aqi.NormalizePollutant(d.DominentPol),
		ObservedAt:    observed,
		CollectedAt:   time.Now().UTC(),
	}

	// WAQI reports weather next to the pollutant sub-indices.
	if t, ok := d.IAQI["t"]; ok {
		r.Weather = &Weather{
			TemperatureC: t.V,
			HumidityPct:  d.IAQI["h"].V,
			WindSpeedMS:  d.IAQI["w"].V,
			PressureHPa:  d.IAQI["p"].V,
		}
	}

	return r, nil
}

// parseWAQIAQI accepts a number or a numeric string; WAQI sends "-" when a
// station has no current value.
func parseWAQIAQI(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	s := strings.Trim(string(raw), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f + 0.5), true
}

func waqiMessage(body []byte) string {
	var v waqiResponse
	if json.Unmarshal(body, &v) == nil {
		if msg := stringData(v.Data); msg != "" {
			return msg
		}
	}
	return messageField(body)
}

func stringData(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

type waqiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type waqiData struct {
	AQI  json.RawMessage `json:"aqi"`
	City struct {
		Name string    `json:"name"`
		Geo  []float64 `json:"geo"`
	} `json:"city"`
	DominentPol string `json:"dominentpol"`
	IAQI        map[string]struct {
		V float64 `json:"v"`
	} `json:"iaqi"`
	Time struct {
		ISO string `json:"iso"`
	} `json:"time"`
}
