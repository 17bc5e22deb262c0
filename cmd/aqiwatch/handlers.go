package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/aqiwatch/internal/cache"
	"github.com/elonfeng/aqiwatch/internal/config"
	"github.com/elonfeng/aqiwatch/internal/logging"
	"github.com/elonfeng/aqiwatch/internal/scheduler"
	"github.com/elonfeng/aqiwatch/internal/store"
	"github.com/elonfeng/aqiwatch/pkg/alert"
	"github.com/elonfeng/aqiwatch/pkg/insight"
	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/prediction"
	"github.com/elonfeng/aqiwatch/pkg/server"
	"github.com/elonfeng/aqiwatch/pkg/source"
	"github.com/elonfeng/aqiwatch/pkg/travel"
	"github.com/elonfeng/aqiwatch/pkg/trend"
)

func loadConfig() (*config.Config, *slog.Logger, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log, version)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(cfg *config.Config) (*store.SQLStore, error) {
	db, err := store.New(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

func buildDirectory(cfg *config.Config) (*location.Directory, error) {
	if cfg.Locations.File == "" {
		return location.Default(), nil
	}
	return location.LoadCSV(cfg.Locations.File)
}

// sources bundles the reading pipeline and what must be released with it.
type sources struct {
	reading  source.Source
	geocoder location.ZipGeocoder
	closers  []io.Closer
}

func (s *sources) Close() {
	for _, c := range s.closers {
		c.Close()
	}
}

func buildSources(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sources, error) {
	var aqiSources []source.Source
	if cfg.Sources.IQAir.Usable() {
		aqiSources = append(aqiSources, source.NewIQAir(cfg.Sources.IQAir.APIKey, cfg.Sources.IQAir.BaseURL))
	}
	if cfg.Sources.WAQI.Usable() {
		aqiSources = append(aqiSources, source.NewWAQI(cfg.Sources.WAQI.APIKey, cfg.Sources.WAQI.BaseURL))
	}
	if len(aqiSources) == 0 {
		return nil, errors.New("no AQI provider configured: set IQAIR_API_KEY or WAQI_TOKEN")
	}

	out := &sources{}
	var components source.Source
	if cfg.Sources.OpenWeather.Usable() {
		ow := source.NewOpenWeather(cfg.Sources.OpenWeather.APIKey, cfg.Sources.OpenWeather.BaseURL)
		components = ow
		out.geocoder = ow
	}

	var src source.Source = source.NewAggregator(aqiSources, components, logger)

	switch strings.ToLower(cfg.Cache.Backend) {
	case "", "memory":
		src = source.NewCached(src, cache.NewMemory(cfg.Cache.Size(), cfg.Cache.ParseTTL()), cfg.Cache.ParseTTL(), logger)
	case "redis":
		rc, err := cache.NewRedis(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		out.closers = append(out.closers, rc)
		src = source.NewCached(src, rc, cfg.Cache.ParseTTL(), logger)
	case "none":
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	out.reading = src
	names := make([]string, 0, len(aqiSources))
	for _, s := range aqiSources {
		names = append(names, string(s.Name()))
	}
	logger.Debug("sources ready", "aqi", names, "components", components != nil, "cache", cfg.Cache.Backend)
	return out, nil
}

func buildResolver(cfg *config.Config, dir *location.Directory, geocoder location.ZipGeocoder) *location.Resolver {
	return location.NewResolver(dir, geocoder, cfg.Locations.ZipCountry)
}

func buildAdvisories(cfg *config.Config, logger *slog.Logger) *source.Advisories {
	if !cfg.Sources.Advisories.Enabled || len(cfg.Sources.Advisories.Feeds) == 0 {
		return nil
	}
	feeds := make([]source.Feed, len(cfg.Sources.Advisories.Feeds))
	for i, f := range cfg.Sources.Advisories.Feeds {
		feeds[i] = source.Feed{Name: f.Name, URL: f.URL}
	}
	filter := source.NewFilter(cfg.Filter.ExtraKeywords, cfg.Filter.ExcludeKeywords)
	return source.NewAdvisories(feeds, filter, cfg.Sources.Advisories.ParseMaxAge(), logger)
}

func buildAlertManager(ctx context.Context, cfg *config.Config, logger *slog.Logger) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}
	if cfg.Alerts.Kafka.Enabled && len(cfg.Alerts.Kafka.Brokers) > 0 {
		notifiers = append(notifiers, alert.NewKafka(cfg.Alerts.Kafka.Brokers, cfg.Alerts.Kafka.Topic))
	}
	if cfg.Alerts.MQTT.Enabled && cfg.Alerts.MQTT.Broker != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		m, err := alert.NewMQTT(connectCtx, alert.MQTTOptions{
			Broker:      cfg.Alerts.MQTT.Broker,
			ClientID:    cfg.Alerts.MQTT.ClientID,
			Username:    cfg.Alerts.MQTT.Username,
			Password:    cfg.Alerts.MQTT.Password,
			TopicPrefix: cfg.Alerts.MQTT.TopicPrefix,
		})
		cancel()
		if err != nil {
			logger.Warn("mqtt alerts disabled", "err", err)
		} else {
			notifiers = append(notifiers, m)
		}
	}

	mgr := alert.NewManager(notifiers)
	if mgr.HasNotifiers() {
		logger.Info("alerts enabled", "notifiers", mgr.Names(), "min_risk_score", cfg.Alerts.MinRiskScore)
	}
	return mgr
}

func watchList(cfg *config.Config, dir *location.Directory, logger *slog.Logger) []location.Location {
	var out []location.Location
	for _, w := range cfg.Watch {
		loc, err := dir.Lookup(w.State, w.City)
		if err != nil {
			logger.Warn("skipping watched city", "state", w.State, "city", w.City, "err", err)
			continue
		}
		out = append(out, loc)
	}
	return out
}

func buildScheduler(cfg *config.Config, db store.Store, src source.Source, dir *location.Directory, alertMgr *alert.Manager, logger *slog.Logger) *scheduler.Scheduler {
	var advisories scheduler.AdvisoryCollector
	if a := buildAdvisories(cfg, logger); a != nil {
		advisories = a
	}
	return scheduler.New(db, src, advisories, alertMgr, scheduler.Options{
		Watch:            watchList(cfg, dir, logger),
		CollectInterval:  cfg.Schedule.ParseCollectInterval(),
		AdvisoryInterval: cfg.Schedule.ParseAdvisoryInterval(),
		MinRiskScore:     cfg.Alerts.MinRiskScore,
	}, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type checkOptions struct {
	state, city    string
	lat, lon       float64
	hasLat, hasLon bool
	zip, country   string
}

func (o checkOptions) query() location.Query {
	q := location.Query{State: o.state, City: o.city, Zip: o.zip, Country: o.country}
	if o.hasLat {
		q.Lat = &o.lat
	}
	if o.hasLon {
		q.Lon = &o.lon
	}
	return q
}

func runCheck(ctx context.Context, o checkOptions, jsonOutput bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := buildDirectory(cfg)
	if err != nil {
		return err
	}
	srcs, err := buildSources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srcs.Close()

	loc, err := buildResolver(cfg, dir, srcs.geocoder).Resolve(ctx, o.query())
	if err != nil {
		return err
	}
	reading, err := srcs.reading.Fetch(ctx, loc)
	if err != nil {
		return fmt.Errorf("fetch air quality: %w", err)
	}
	report := insight.Build(reading)

	if jsonOutput {
		return printJSON(report)
	}

	fmt.Printf("%s\n", placeName(report.Location))
	fmt.Printf("  %s (%s)\n", report.Gauge.Label, report.RiskLabel)
	if report.Weather != nil {
		fmt.Printf("  %.1f°C, humidity %.0f%%, wind %.1f m/s\n",
			report.Weather.TemperatureC, report.Weather.HumidityPct, report.Weather.WindSpeedMS)
	}
	mp := report.MainPollutant
	if mp.Value != nil {
		fmt.Printf("  main pollutant: %s %.1f %s\n", mp.Name, *mp.Value, mp.Unit)
	} else {
		fmt.Printf("  main pollutant: %s\n", mp.Name)
	}

	if len(report.Pollutants) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "POLLUTANT\tVALUE\tSAFE\t% OF SAFE")
		for _, p := range report.Pollutants {
			fmt.Fprintf(w, "%s\t%.1f %s\t%.0f\t%.0f%%\n", p.Name, p.Value, p.Unit, p.SafeLevel, p.PctOfSafe)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Printf("\n%s\n", report.Recommendations.Title)
	for _, item := range report.Recommendations.Items {
		fmt.Printf("  - %s\n", item)
	}
	return nil
}

func placeName(loc location.Location) string {
	switch {
	case loc.City != "" && loc.State != "":
		return loc.City + ", " + loc.State
	case loc.City != "":
		return loc.City
	default:
		return fmt.Sprintf("%.4f, %.4f", loc.Lat, loc.Lon)
	}
}

func runCollect(ctx context.Context, jsonOutput bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	dir, err := buildDirectory(cfg)
	if err != nil {
		return err
	}
	srcs, err := buildSources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srcs.Close()

	alertMgr := buildAlertManager(ctx, cfg, logger)
	defer alertMgr.Close()

	sched := buildScheduler(cfg, db, srcs.reading, dir, alertMgr, logger)
	res, err := sched.CollectOnce(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(res)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tCITY\tAQI\tSOURCE\tOBSERVED")
	for _, r := range res.Readings {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.Location.State, r.Location.City, r.AQI, r.Source,
			r.ObservedAt.Local().Format(time.Kitchen))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, f := range res.Failures {
		fmt.Fprintf(os.Stderr, "  %s, %s: %s\n", f.City, f.State, f.Error)
	}
	fmt.Fprintf(os.Stderr, "\nrun %s: %d stored, %d failed, %d alerts\n",
		res.RunID, len(res.Readings), len(res.Failures), res.Alerts)
	return nil
}

func runImport(ctx context.Context, path string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := prediction.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	inserted, err := db.InsertPredictions(ctx, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %d of %d rows (%d already present)\n",
		inserted, len(records), len(records)-inserted)
	return nil
}

func runExport(ctx context.Context, date string, states, cities []string, output string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	opts := store.PredictionOpts{States: states, Cities: cities}
	if date != "" {
		if opts.Date, err = prediction.ParseDate(date); err != nil {
			return err
		}
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListPredictions(ctx, opts)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := prediction.WriteCSV(w, records); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", len(records), output)
	}
	return nil
}

type travelOptions struct {
	date     string
	states   []string
	cities   []string
	severity string
}

func runTravel(ctx context.Context, o travelOptions, jsonOutput bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	sev, err := travel.ParseSeverity(o.severity)
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	date := o.date
	if date == "" {
		dates, err := db.PredictionDates(ctx)
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			return errors.New("no predictions stored (try: aqiwatch import predictions.csv)")
		}
		date = dates[0]
	}
	if date, err = prediction.ParseDate(date); err != nil {
		return err
	}

	records, err := db.ListPredictions(ctx, store.PredictionOpts{Date: date})
	if err != nil {
		return err
	}
	plan, err := travel.Build(records, travel.Query{
		Date:     date,
		States:   o.states,
		Cities:   o.cities,
		Severity: sev,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(plan)
	}

	if plan.Warning != "" {
		fmt.Println(plan.Warning)
		return nil
	}

	fmt.Printf("Predicted AQI for %s\n\n", plan.Date)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSTATE\tCITY\tAQI\tCATEGORY")
	for _, r := range plan.Rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", r.Rank, r.State, r.City, r.AQI, r.Category)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if plan.BestCity != nil {
		fmt.Printf("\nBest city to travel: %s, %s (AQI %d)\n", plan.BestCity.City, plan.BestCity.State, plan.BestCity.AQI)
	}
	fmt.Printf("\n%s\n\nTips:\n", plan.Advice.Message)
	for _, tip := range plan.Tips {
		fmt.Printf("  - %s\n", tip)
	}
	return nil
}

func runLocations(state string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := buildDirectory(cfg)
	if err != nil {
		return err
	}

	if state != "" {
		cities, err := dir.Cities(state)
		if err != nil {
			return err
		}
		for _, c := range cities {
			fmt.Println(c)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tCITIES")
	for _, st := range dir.States() {
		cities, _ := dir.Cities(st)
		fmt.Fprintf(w, "%s\t%s\n", st, strings.Join(cities, ", "))
	}
	return w.Flush()
}

func runAdvisories(ctx context.Context, refresh bool, limit int, jsonOutput bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if refresh {
		collector := buildAdvisories(cfg, logger)
		if collector == nil {
			return errors.New("advisories are disabled in config")
		}
		items, err := collector.Collect(ctx)
		if err != nil {
			return err
		}
		if err := db.UpsertAdvisories(ctx, items); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "fetched %d advisories\n", len(items))
	}

	items, err := db.ListAdvisories(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no advisories found (try: aqiwatch advisories --refresh)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PUBLISHED\tFEED\tTITLE")
	for _, a := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.PublishedAt.Format(time.DateOnly), a.Feed, a.Title)
	}
	return w.Flush()
}

func runTrends(ctx context.Context, state, city string, jsonOutput bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := trend.NewEngine(db, cfg.Trend.ParseWindow(), cfg.Trend.SteadyThreshold, logger)

	var trends []trend.Trend
	if state != "" || city != "" {
		t, err := engine.CityTrend(ctx, state, city)
		if err != nil {
			return err
		}
		trends = []trend.Trend{*t}
	} else if trends, err = engine.Detect(ctx); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(trends)
	}
	if len(trends) == 0 {
		fmt.Printf("no readings in the last %s (try collecting data first: aqiwatch collect)\n", engine.Window())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tCITY\tAQI\tPEAK\tAQI/H\tDIRECTION\tSAMPLES")
	for _, t := range trends {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%+.1f\t%s\t%d\n",
			t.State, t.City, t.LastAQI, t.PeakAQI, t.Velocity, t.Direction, t.Samples)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	dir, err := buildDirectory(cfg)
	if err != nil {
		return err
	}
	srcs, err := buildSources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srcs.Close()

	srv := server.New(server.Options{
		Store:    db,
		Resolver: buildResolver(cfg, dir, srcs.geocoder),
		Source:   srcs.reading,
		Engine:   trend.NewEngine(db, cfg.Trend.ParseWindow(), cfg.Trend.SteadyThreshold, logger),
		Logger:   logger,
		Port:     port,
	})
	return srv.Run(ctx)
}

func runDaemon(port int) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	dir, err := buildDirectory(cfg)
	if err != nil {
		return err
	}
	srcs, err := buildSources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srcs.Close()

	alertMgr := buildAlertManager(ctx, cfg, logger)
	defer alertMgr.Close()

	sched := buildScheduler(cfg, db, srcs.reading, dir, alertMgr, logger)
	srv := server.New(server.Options{
		Store:     db,
		Resolver:  buildResolver(cfg, dir, srcs.geocoder),
		Source:    srcs.reading,
		Engine:    trend.NewEngine(db, cfg.Trend.ParseWindow(), cfg.Trend.SteadyThreshold, logger),
		Collector: sched,
		Logger:    logger,
		Port:      port,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}
