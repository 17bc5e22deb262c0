package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/prediction"
	"github.com/elonfeng/aqiwatch/pkg/source"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := New(DriverSQLite, filepath.Join(t.TempDir(), "data", "aqiwatch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, newSQLiteStore(t))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New("oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestNormalizeDriver(t *testing.T) {
	tests := map[string]string{
		"":           DriverSQLite,
		"SQLite3":    DriverSQLite,
		"postgresql": DriverPostgres,
		"pg":         DriverPostgres,
		"mysql":      "mysql",
	}
	for in, want := range tests {
		if got := NormalizeDriver(in); got != want {
			t.Errorf("NormalizeDriver(%q)=%q want %q", in, got, want)
		}
	}
}

// runStoreSuite exercises every Store method; it is shared with the
// PostgreSQL integration test.
func runStoreSuite(t *testing.T, s Store) {
	t.Run("predictions", func(t *testing.T) { testPredictions(t, s) })
	t.Run("readings", func(t *testing.T) { testReadings(t, s) })
	t.Run("advisories", func(t *testing.T) { testAdvisories(t, s) })
	t.Run("alert tiers", func(t *testing.T) { testAlertTiers(t, s) })
}

func testPredictions(t *testing.T, s Store) {
	ctx := context.Background()
	records := []prediction.Record{
		{State: "Selangor", City: "Shah Alam", Date: "2025-04-01", AQI: 80},
		{State: "Selangor", City: "Klang", Date: "2025-04-01", AQI: 45},
		{State: "Johor", City: "Muar", Date: "2025-04-01", AQI: 45},
		{State: "Johor", City: "Muar", Date: "2025-04-02", AQI: 60},
	}

	n, err := s.InsertPredictions(ctx, records)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 4 {
		t.Fatalf("inserted=%d want=4", n)
	}

	// Existing keys are left untouched.
	again := []prediction.Record{
		{State: "Selangor", City: "Shah Alam", Date: "2025-04-01", AQI: 999},
		{State: "Perak", City: "Ipoh", Date: "2025-04-01", AQI: 30},
	}
	n, err = s.InsertPredictions(ctx, again)
	if err != nil {
		t.Fatalf("insert again: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted=%d want=1", n)
	}

	day, err := s.ListPredictions(ctx, PredictionOpts{Date: "2025-04-01"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	wantOrder := []string{"Ipoh", "Muar", "Klang", "Shah Alam"}
	if len(day) != len(wantOrder) {
		t.Fatalf("len=%d want=%d: %+v", len(day), len(wantOrder), day)
	}
	for i, city := range wantOrder {
		if day[i].City != city {
			t.Fatalf("row %d city=%q want=%q", i, day[i].City, city)
		}
	}
	if day[3].AQI != 80 {
		t.Fatalf("duplicate insert overwrote aqi: %d", day[3].AQI)
	}

	selangor, err := s.ListPredictions(ctx, PredictionOpts{States: []string{"Selangor"}, Cities: []string{"Klang", "Ipoh"}})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(selangor) != 1 || selangor[0].City != "Klang" {
		t.Fatalf("filtered=%+v", selangor)
	}

	all, err := s.ListPredictions(ctx, PredictionOpts{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(all) != 2 || all[0].Date != "2025-04-02" {
		t.Fatalf("limited=%+v", all)
	}

	dates, err := s.PredictionDates(ctx)
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2025-04-02" || dates[1] != "2025-04-01" {
		t.Fatalf("dates=%v", dates)
	}

	if _, err := s.InsertPredictions(ctx, []prediction.Record{{State: "X", City: "Y", Date: "bad"}}); err == nil {
		t.Fatal("expected validation error")
	}
}

func testReadings(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	klang := location.Location{City: "Klang", State: "Selangor", Country: "Malaysia", Lat: 3.04, Lon: 101.45}
	ipoh := location.Location{City: "Ipoh", State: "Perak", Country: "Malaysia", Lat: 4.6, Lon: 101.08}

	add := func(loc location.Location, aqi int, at time.Time) {
		t.Helper()
		r := &source.Reading{
			Source:          source.SourceIQAir,
			ComponentSource: source.SourceOpenWeather,
			Location:        loc,
			AQI:             aqi,
			MainPollutant:   "pm2_5",
			Weather:         &source.Weather{TemperatureC: 31, HumidityPct: 70, WindSpeedMS: 2.5},
			Components:      map[string]float64{"pm2_5": 18.2, "o3": 40},
			ObservedAt:      at,
			CollectedAt:     at,
		}
		id, err := s.AddReading(ctx, "run-1", r)
		if err != nil {
			t.Fatalf("add reading: %v", err)
		}
		if id <= 0 {
			t.Fatalf("id=%d", id)
		}
	}

	add(klang, 60, base)
	add(klang, 95, base.Add(time.Hour))
	add(ipoh, 40, base.Add(30*time.Minute))

	list, err := s.ListReadings(ctx, ReadingOpts{State: "Selangor", City: "Klang"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].AQI != 95 {
		t.Fatalf("list=%+v", list)
	}
	got := list[0]
	if got.RunID != "run-1" || got.Weather == nil || got.Weather.HumidityPct != 70 {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if got.Components["pm2_5"] != 18.2 || got.Location.Lat != 3.04 {
		t.Fatalf("components/location mismatch: %+v", got)
	}
	if !got.CollectedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("collected_at=%v", got.CollectedAt)
	}

	since, err := s.ListReadings(ctx, ReadingOpts{Since: base.Add(20 * time.Minute)})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("since=%d want=2", len(since))
	}

	latest, err := s.LatestReading(ctx, "Selangor", "Klang")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.AQI != 95 {
		t.Fatalf("latest aqi=%d", latest.AQI)
	}

	if _, err := s.LatestReading(ctx, "Sabah", "Sandakan"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}

	all, err := s.LatestReadings(ctx)
	if err != nil {
		t.Fatalf("latest readings: %v", err)
	}
	if len(all) != 2 || all[0].Location.City != "Klang" || all[1].Location.City != "Ipoh" {
		t.Fatalf("latest readings=%+v", all)
	}

	// A reading without weather stores and loads as nil.
	bare := &source.Reading{Source: source.SourceWAQI, Location: ipoh, AQI: 41, CollectedAt: base.Add(2 * time.Hour)}
	if _, err := s.AddReading(ctx, "", bare); err != nil {
		t.Fatalf("add bare: %v", err)
	}
	r, err := s.LatestReading(ctx, "Perak", "Ipoh")
	if err != nil {
		t.Fatalf("latest ipoh: %v", err)
	}
	if r.Weather != nil || r.AQI != 41 || !r.ObservedAt.Equal(r.CollectedAt) {
		t.Fatalf("bare reading=%+v", r)
	}
}

func testAdvisories(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	items := []source.Advisory{
		{ID: "rss:a:1", Feed: "a", Title: "Haze warning", PublishedAt: now.Add(-2 * time.Hour), CollectedAt: now},
		{ID: "rss:a:2", Feed: "a", Title: "API climbs", PublishedAt: now.Add(-time.Hour), CollectedAt: now},
	}
	if err := s.UpsertAdvisories(ctx, items); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	items[0].Title = "Haze warning (updated)"
	if err := s.UpsertAdvisories(ctx, items[:1]); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := s.ListAdvisories(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d want=2", len(got))
	}
	if got[0].ID != "rss:a:2" || got[1].Title != "Haze warning (updated)" {
		t.Fatalf("advisories=%+v", got)
	}
}

func testAlertTiers(t *testing.T, s Store) {
	ctx := context.Background()
	tier, err := s.GetAlertTier(ctx, "Selangor", "Klang")
	if err != nil || tier != 0 {
		t.Fatalf("tier=%d err=%v want 0", tier, err)
	}
	if err := s.SetAlertTier(ctx, "Selangor", "Klang", 4); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetAlertTier(ctx, "Selangor", "Klang", 3); err != nil {
		t.Fatalf("set again: %v", err)
	}
	tier, err = s.GetAlertTier(ctx, "Selangor", "Klang")
	if err != nil || tier != 3 {
		t.Fatalf("tier=%d err=%v want 3", tier, err)
	}
}
