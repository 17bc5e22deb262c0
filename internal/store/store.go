package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/prediction"
	"github.com/elonfeng/aqiwatch/pkg/source"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Reading is a stored observation.
type Reading struct {
	ID    int64  `json:"id"`
	RunID string `json:"run_id,omitempty"`
	source.Reading
}

type readingRow struct {
	ID              int64     `db:"id"`
	RunID           string    `db:"run_id"`
	Source          string    `db:"source"`
	ComponentSource string    `db:"component_source"`
	State           string    `db:"state"`
	City            string    `db:"city"`
	Country         string    `db:"country"`
	Lat             float64   `db:"lat"`
	Lon             float64   `db:"lon"`
	AQI             int       `db:"aqi"`
	MainPollutant   string    `db:"main_pollutant"`
	Weather         string    `db:"weather"`
	Components      string    `db:"components"`
	ObservedAt      time.Time `db:"observed_at"`
	CollectedAt     time.Time `db:"collected_at"`
}

func (r readingRow) toReading() Reading {
	out := Reading{
		ID:    r.ID,
		RunID: r.RunID,
		Reading: source.Reading{
			Source:          source.SourceType(r.Source),
			ComponentSource: source.SourceType(r.ComponentSource),
			Location: location.Location{
				City:    r.City,
				State:   r.State,
				Country: r.Country,
				Lat:     r.Lat,
				Lon:     r.Lon,
			},
			AQI:           r.AQI,
			MainPollutant: r.MainPollutant,
			ObservedAt:    r.ObservedAt.UTC(),
			CollectedAt:   r.CollectedAt.UTC(),
		},
	}
	if r.Weather != "" {
		var w source.Weather
		if json.Unmarshal([]byte(r.Weather), &w) == nil {
			out.Weather = &w
		}
	}
	if r.Components != "" {
		json.Unmarshal([]byte(r.Components), &out.Components)
	}
	return out
}

// PredictionOpts filters predicted AQI records. Empty filters match all.
type PredictionOpts struct {
	Date   string
	States []string
	Cities []string
	Limit  int
}

// ReadingOpts controls reading listing.
type ReadingOpts struct {
	State string
	City  string
	Since time.Time
	Limit int
}

// Store is the persistence interface.
type Store interface {
	InsertPredictions(ctx context.Context, records []prediction.Record) (int, error)
	ListPredictions(ctx context.Context, opts PredictionOpts) ([]prediction.Record, error)
	PredictionDates(ctx context.Context) ([]string, error)

	AddReading(ctx context.Context, runID string, r *source.Reading) (int64, error)
	ListReadings(ctx context.Context, opts ReadingOpts) ([]Reading, error)
	LatestReading(ctx context.Context, state, city string) (*Reading, error)
	LatestReadings(ctx context.Context) ([]Reading, error)

	UpsertAdvisories(ctx context.Context, items []source.Advisory) error
	ListAdvisories(ctx context.Context, limit int) ([]source.Advisory, error)

	GetAlertTier(ctx context.Context, state, city string) (int, error)
	SetAlertTier(ctx context.Context, state, city string, tier int) error

	Close() error
}

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// New opens the database and runs migrations. For SQLite dsn is a file
// path; for PostgreSQL it is a connection URL.
func New(driver, dsn string) (*SQLStore, error) {
	var (
		db     *sqlx.DB
		err    error
		schema string
	)

	driver = NormalizeDriver(driver)
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		db, err = sqlx.Open("sqlite", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
		schema = sqliteSchema
	case DriverPostgres:
		db, err = sqlx.Open("postgres", dsn)
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// modernc serialises writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// Driver reports the dialect in use.
func (s *SQLStore) Driver() string { return s.driver }

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) InsertPredictions(ctx context.Context, records []prediction.Record) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO air_quality (state, city, date, aqi)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (state, city, date) DO NOTHING
	`))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return 0, fmt.Errorf("prediction %s/%s/%s: %w", r.State, r.City, r.Date, err)
		}
		res, err := stmt.ExecContext(ctx, r.State, r.City, r.Date, r.AQI)
		if err != nil {
			return 0, fmt.Errorf("insert prediction %s/%s/%s: %w", r.State, r.City, r.Date, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLStore) ListPredictions(ctx context.Context, opts PredictionOpts) ([]prediction.Record, error) {
	query := "SELECT id, state, city, date, aqi FROM air_quality WHERE 1=1"
	var args []any

	if opts.Date != "" {
		query += " AND date = ?"
		args = append(args, opts.Date)
	}
	if len(opts.States) > 0 {
		query += " AND state IN (?)"
		args = append(args, opts.States)
	}
	if len(opts.Cities) > 0 {
		query += " AND city IN (?)"
		args = append(args, opts.Cities)
	}

	query += " ORDER BY date DESC, aqi ASC, state ASC, city ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}

	var records []prediction.Record
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return records, nil
}

func (s *SQLStore) PredictionDates(ctx context.Context) ([]string, error) {
	var dates []string
	if err := s.db.SelectContext(ctx, &dates, "SELECT DISTINCT date FROM air_quality ORDER BY date DESC"); err != nil {
		return nil, fmt.Errorf("list prediction dates: %w", err)
	}
	return dates, nil
}

func (s *SQLStore) AddReading(ctx context.Context, runID string, r *source.Reading) (int64, error) {
	weatherJSON := ""
	if r.Weather != nil {
		b, _ := json.Marshal(r.Weather)
		weatherJSON = string(b)
	}
	components := r.Components
	if components == nil {
		components = map[string]float64{}
	}
	componentsJSON, _ := json.Marshal(components)

	collected := r.CollectedAt
	if collected.IsZero() {
		collected = time.Now()
	}
	observed := r.ObservedAt
	if observed.IsZero() {
		observed = collected
	}

	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`
		INSERT INTO readings (run_id, source, component_source, state, city, country, lat, lon,
			aqi, main_pollutant, weather, components, observed_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), runID, string(r.Source), string(r.ComponentSource), r.Location.State, r.Location.City,
		r.Location.Country, r.Location.Lat, r.Location.Lon, r.AQI, r.MainPollutant,
		weatherJSON, string(componentsJSON), observed.UTC(), collected.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add reading %s: %w", r.Location.Key(), err)
	}
	return id, nil
}

func (s *SQLStore) ListReadings(ctx context.Context, opts ReadingOpts) ([]Reading, error) {
	query := "SELECT * FROM readings WHERE 1=1"
	var args []any

	if opts.State != "" {
		query += " AND state = ?"
		args = append(args, opts.State)
	}
	if opts.City != "" {
		query += " AND city = ?"
		args = append(args, opts.City)
	}
	if !opts.Since.IsZero() {
		query += " AND collected_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	query += " ORDER BY collected_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []readingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return toReadings(rows), nil
}

func (s *SQLStore) LatestReading(ctx context.Context, state, city string) (*Reading, error) {
	var row readingRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT * FROM readings WHERE state = ? AND city = ?
		ORDER BY collected_at DESC, id DESC LIMIT 1
	`), state, city)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest reading %s/%s: %w", state, city, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest reading %s/%s: %w", state, city, err)
	}
	r := row.toReading()
	return &r, nil
}

// LatestReadings returns the most recent reading for every stored city,
// worst AQI first.
func (s *SQLStore) LatestReadings(ctx context.Context) ([]Reading, error) {
	var rows []readingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.* FROM readings r
		WHERE r.id = (
			SELECT r2.id FROM readings r2
			WHERE r2.state = r.state AND r2.city = r.city
			ORDER BY r2.collected_at DESC, r2.id DESC LIMIT 1
		)
		ORDER BY r.aqi DESC, r.state, r.city
	`)
	if err != nil {
		return nil, fmt.Errorf("latest readings: %w", err)
	}
	return toReadings(rows), nil
}

func toReadings(rows []readingRow) []Reading {
	out := make([]Reading, len(rows))
	for i := range rows {
		out[i] = rows[i].toReading()
	}
	return out
}

func (s *SQLStore) UpsertAdvisories(ctx context.Context, items []source.Advisory) error {
	query := s.db.Rebind(`
		INSERT INTO advisories (id, feed, title, url, summary, author, published_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			summary = excluded.summary,
			author = excluded.author,
			collected_at = excluded.collected_at
	`)
	for _, a := range items {
		_, err := s.db.ExecContext(ctx, query, a.ID, a.Feed, a.Title, a.URL, a.Summary,
			a.Author, a.PublishedAt.UTC(), a.CollectedAt.UTC())
		if err != nil {
			return fmt.Errorf("upsert advisory %s: %w", a.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) ListAdvisories(ctx context.Context, limit int) ([]source.Advisory, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []source.Advisory
	err := s.db.SelectContext(ctx, &items, s.db.Rebind(
		"SELECT * FROM advisories ORDER BY published_at DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("list advisories: %w", err)
	}
	for i := range items {
		items[i].PublishedAt = items[i].PublishedAt.UTC()
		items[i].CollectedAt = items[i].CollectedAt.UTC()
	}
	return items, nil
}

// GetAlertTier returns the last alerted risk score for a city, or 0.
func (s *SQLStore) GetAlertTier(ctx context.Context, state, city string) (int, error) {
	var tier int
	err := s.db.GetContext(ctx, &tier, s.db.Rebind(
		"SELECT tier FROM alert_state WHERE state = ? AND city = ?"), state, city)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get alert tier %s/%s: %w", state, city, err)
	}
	return tier, nil
}

func (s *SQLStore) SetAlertTier(ctx context.Context, state, city string, tier int) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO alert_state (state, city, tier, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (state, city) DO UPDATE SET
			tier = excluded.tier,
			updated_at = excluded.updated_at
	`), state, city, tier, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set alert tier %s/%s: %w", state, city, err)
	}
	return nil
}

// NormalizeDriver maps common aliases to a supported driver name.
func NormalizeDriver(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	}
	return name
}
