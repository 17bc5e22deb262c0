package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/aqiwatch/pkg/location"
)

// Aggregator merges the AQI reading of the first AQI provider that
// answers with the pollutant concentrations of a component provider.
// Both lookups run concurrently.
type Aggregator struct {
	aqiSources []Source
	components Source
	logger     *slog.Logger
}

// NewAggregator creates an aggregator. AQI sources are tried in order;
// components may be nil.
func NewAggregator(aqiSources []Source, components Source, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		aqiSources: aqiSources,
		components: components,
		logger:     logger,
	}
}

func (a *Aggregator) Name() SourceType { return SourceCombined }

// Sources lists the configured providers.
func (a *Aggregator) Sources() []Source {
	out := append([]Source(nil), a.aqiSources...)
	if a.components != nil {
		out = append(out, a.components)
	}
	return out
}

// Fetch returns a merged reading for loc. The returned reading keeps the
// requested location; provider supplied names fill in blanks. A missing
// component reading is logged and tolerated, a missing AQI is not.
func (a *Aggregator) Fetch(ctx context.Context, loc location.Location) (*Reading, error) {
	if len(a.aqiSources) == 0 {
		return nil, errors.New("no AQI source configured")
	}

	var (
		g          errgroup.Group
		reading    *Reading
		components *Reading
	)

	g.Go(func() error {
		var errs []error
		for _, src := range a.aqiSources {
			r, err := src.Fetch(ctx, loc)
			if err == nil {
				reading = r
				return nil
			}
			a.logger.Warn("aqi source failed", "source", src.Name(), "location", loc.Key(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
		return fmt.Errorf("%w: %w", ErrNoData, errors.Join(errs...))
	})

	if a.components != nil && loc.HasCoordinates() {
		g.Go(func() error {
			r, err := a.components.Fetch(ctx, loc)
			if err != nil {
				a.logger.Warn("component source failed", "source", a.components.Name(), "location", loc.Key(), "err", err)
				return nil
			}
			components = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := *reading
	merged.Location = mergeLocation(loc, reading.Location)
	if components != nil {
		merged.Components = components.Components
		merged.ComponentSource = components.Source
	}
	return &merged, nil
}

func mergeLocation(requested, reported location.Location) location.Location {
	out := requested
	if out.City == "" {
		out.City = reported.City
	}
	if out.State == "" {
		out.State = reported.State
	}
	if out.Country == "" {
		out.Country = reported.Country
	}
	if !out.HasCoordinates() {
		out.Lat, out.Lon = reported.Lat, reported.Lon
	}
	return out
}
