package trend

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/elonfeng/aqiwatch/internal/store"
	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/source"
)

type fakeReadings struct {
	readings []store.Reading
}

func (f *fakeReadings) add(state, city string, aqi int, at time.Time) {
	f.readings = append(f.readings, store.Reading{
		ID: int64(len(f.readings) + 1),
		Reading: source.Reading{
			Location:    location.Location{State: state, City: city},
			AQI:         aqi,
			CollectedAt: at,
		},
	})
}

func (f *fakeReadings) ListReadings(_ context.Context, opts store.ReadingOpts) ([]store.Reading, error) {
	var out []store.Reading
	for i := len(f.readings) - 1; i >= 0; i-- {
		r := f.readings[i]
		if r.Location.State != opts.State || r.Location.City != opts.City {
			continue
		}
		if r.CollectedAt.Before(opts.Since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeReadings) LatestReadings(_ context.Context) ([]store.Reading, error) {
	latest := map[string]store.Reading{}
	var order []string
	for _, r := range f.readings {
		k := r.Location.Key()
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		latest[k] = r
	}
	out := make([]store.Reading, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out, nil
}

func newTestEngine(f *fakeReadings, now time.Time) *Engine {
	e := NewEngine(f, 6*time.Hour, 2, nil)
	e.now = func() time.Time { return now }
	return e
}

func TestCityTrend(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeReadings{}
	f.add("Selangor", "Klang", 500, now.Add(-10*time.Hour)) // outside window
	f.add("Selangor", "Klang", 60, now.Add(-4*time.Hour))
	f.add("Selangor", "Klang", 130, now.Add(-2*time.Hour))
	f.add("Selangor", "Klang", 100, now)

	tr, err := newTestEngine(f, now).CityTrend(context.Background(), "Selangor", "Klang")
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if tr.Samples != 3 || tr.FirstAQI != 60 || tr.LastAQI != 100 || tr.PeakAQI != 130 {
		t.Fatalf("trend=%+v", tr)
	}
	if math.Abs(tr.Velocity-10) > 1e-9 {
		t.Fatalf("velocity=%v want=10", tr.Velocity)
	}
	if math.Abs(tr.MeanAQI-290.0/3) > 1e-9 {
		t.Fatalf("mean=%v", tr.MeanAQI)
	}
	if tr.Direction != Rising || tr.RiskScore != 2 {
		t.Fatalf("direction=%s risk=%d", tr.Direction, tr.RiskScore)
	}
	if !tr.From.Equal(now.Add(-4*time.Hour)) || !tr.To.Equal(now) {
		t.Fatalf("span=%v..%v", tr.From, tr.To)
	}
}

func TestCityTrendNoReadings(t *testing.T) {
	_, err := newTestEngine(&fakeReadings{}, time.Now()).CityTrend(context.Background(), "Perak", "Ipoh")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestDetectOrdersByVelocity(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeReadings{}
	f.add("Selangor", "Klang", 80, now.Add(-2*time.Hour))
	f.add("Perak", "Ipoh", 90, now.Add(-2*time.Hour))
	f.add("Sabah", "Tawau", 40, now.Add(-20*time.Hour)) // stale
	f.add("Selangor", "Klang", 81, now)
	f.add("Perak", "Ipoh", 60, now)
	f.add("Johor", "Muar", 50, now.Add(-time.Hour))
	f.add("Johor", "Muar", 70, now)

	trends, err := newTestEngine(f, now).Detect(context.Background())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	want := []struct {
		city string
		dir  Direction
	}{
		{"Muar", Rising},
		{"Klang", Steady},
		{"Ipoh", Falling},
	}
	if len(trends) != len(want) {
		t.Fatalf("trends=%+v", trends)
	}
	for i, w := range want {
		if trends[i].City != w.city || trends[i].Direction != w.dir {
			t.Errorf("trend %d=%s/%s want %s/%s", i, trends[i].City, trends[i].Direction, w.city, w.dir)
		}
	}
}

func TestVelocityShortSpan(t *testing.T) {
	if v := velocity(10, 200, time.Minute); v != 0 {
		t.Fatalf("velocity=%v want=0", v)
	}
	if classify(-1.9, 2) != Steady || classify(2, 2) != Rising || classify(-2, 2) != Falling {
		t.Fatal("classify thresholds")
	}
}
