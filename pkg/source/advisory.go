package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
)

// Advisory is an air quality news item or health advisory.
type Advisory struct {
	ID          string    `json:"id" db:"id"`
	Feed        string    `json:"feed" db:"feed"`
	Title       string    `json:"title" db:"title"`
	URL         string    `json:"url" db:"url"`
	Summary     string    `json:"summary" db:"summary"`
	Author      string    `json:"author" db:"author"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	CollectedAt time.Time `json:"collected_at" db:"collected_at"`
}

// Feed is a named RSS/Atom feed URL.
type Feed struct {
	Name string
	URL  string
}

// Advisories collects air quality advisories from RSS/Atom feeds.
type Advisories struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []Feed
	filter *Filter
	maxAge time.Duration
	logger *slog.Logger
}

// NewAdvisories creates a new advisory collector. Items older than maxAge
// are skipped; zero means seven days.
func NewAdvisories(feeds []Feed, filter *Filter, maxAge time.Duration, logger *slog.Logger) *Advisories {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisories{
		client: newHTTPClient(),
		parser: gofeed.NewParser(),
		feeds:  feeds,
		filter: filter,
		maxAge: maxAge,
		logger: logger,
	}
}

func (a *Advisories) Name() SourceType { return SourceRSS }

// Collect fetches every feed. A failing feed is logged and skipped.
func (a *Advisories) Collect(ctx context.Context) ([]Advisory, error) {
	var all []Advisory

	for _, feed := range a.feeds {
		items, err := a.collectFeed(ctx, feed)
		if err != nil {
			a.logger.Warn("advisory feed failed", "feed", feed.Name, "err", err)
			continue
		}
		all = append(all, items...)
	}

	return all, nil
}

func (a *Advisories) collectFeed(ctx context.Context, feed Feed) ([]Advisory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "aqiwatch/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	var items []Advisory
	now := time.Now().UTC()
	cutoff := now.Add(-a.maxAge)

	for _, entry := range parsed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}

		text := entry.Title + " " + entry.Description
		if a.filter != nil && !a.filter.Matches(text) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		guid := entry.GUID
		if guid == "" {
			guid = link
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}

		items = append(items, Advisory{
			ID:          fmt.Sprintf("rss:%s:%s", feed.Name, guid),
			Feed:        feed.Name,
			Title:       entry.Title,
			URL:         link,
			Summary:     truncate(entry.Description, 500),
			Author:      author,
			PublishedAt: published,
			CollectedAt: now,
		})
	}

	return items, nil
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
