package store

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS air_quality (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    state TEXT NOT NULL,
    city  TEXT NOT NULL,
    date  TEXT NOT NULL,
    aqi   INTEGER NOT NULL,
    UNIQUE(state, city, date)
);

CREATE INDEX IF NOT EXISTS idx_air_quality_date ON air_quality(date);

CREATE TABLE IF NOT EXISTS readings (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id           TEXT NOT NULL DEFAULT '',
    source           TEXT NOT NULL,
    component_source TEXT NOT NULL DEFAULT '',
    state            TEXT NOT NULL DEFAULT '',
    city             TEXT NOT NULL DEFAULT '',
    country          TEXT NOT NULL DEFAULT '',
    lat              REAL NOT NULL DEFAULT 0,
    lon              REAL NOT NULL DEFAULT 0,
    aqi              INTEGER NOT NULL,
    main_pollutant   TEXT NOT NULL DEFAULT '',
    weather          TEXT NOT NULL DEFAULT '',
    components       TEXT NOT NULL DEFAULT '{}',
    observed_at      DATETIME NOT NULL,
    collected_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_city ON readings(state, city);
CREATE INDEX IF NOT EXISTS idx_readings_collected_at ON readings(collected_at);

CREATE TABLE IF NOT EXISTS advisories (
    id           TEXT PRIMARY KEY,
    feed         TEXT NOT NULL,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    author       TEXT NOT NULL DEFAULT '',
    published_at DATETIME NOT NULL,
    collected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_advisories_published_at ON advisories(published_at);

CREATE TABLE IF NOT EXISTS alert_state (
    state      TEXT NOT NULL,
    city       TEXT NOT NULL,
    tier       INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (state, city)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS air_quality (
    id    BIGSERIAL PRIMARY KEY,
    state TEXT NOT NULL,
    city  TEXT NOT NULL,
    date  TEXT NOT NULL,
    aqi   INTEGER NOT NULL,
    UNIQUE(state, city, date)
);

CREATE INDEX IF NOT EXISTS idx_air_quality_date ON air_quality(date);

CREATE TABLE IF NOT EXISTS readings (
    id               BIGSERIAL PRIMARY KEY,
    run_id           TEXT NOT NULL DEFAULT '',
    source           TEXT NOT NULL,
    component_source TEXT NOT NULL DEFAULT '',
    state            TEXT NOT NULL DEFAULT '',
    city             TEXT NOT NULL DEFAULT '',
    country          TEXT NOT NULL DEFAULT '',
    lat              DOUBLE PRECISION NOT NULL DEFAULT 0,
    lon              DOUBLE PRECISION NOT NULL DEFAULT 0,
    aqi              INTEGER NOT NULL,
    main_pollutant   TEXT NOT NULL DEFAULT '',
    weather          TEXT NOT NULL DEFAULT '',
    components       TEXT NOT NULL DEFAULT '{}',
    observed_at      TIMESTAMPTZ NOT NULL,
    collected_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_city ON readings(state, city);
CREATE INDEX IF NOT EXISTS idx_readings_collected_at ON readings(collected_at);

CREATE TABLE IF NOT EXISTS advisories (
    id           TEXT PRIMARY KEY,
    feed         TEXT NOT NULL,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    author       TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ NOT NULL,
    collected_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_advisories_published_at ON advisories(published_at);

CREATE TABLE IF NOT EXISTS alert_state (
    state      TEXT NOT NULL,
    city       TEXT NOT NULL,
    tier       INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (state, city)
);
`
