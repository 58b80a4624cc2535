package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"
	"dailybrief/internal/store"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Item is one article as delivered by an upstream collector, decoded
// from an intake file. Either content field may be empty; the text form
// is derived from the HTML when missing.
type Item struct {
	Source      string     `json:"source"` // Source display name, must exist for the user
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	URL         string     `json:"url,omitempty"`
	ContentHTML string     `json:"content_html,omitempty"`
	ContentText string     `json:"content_text,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Ingester writes intake items into article storage, deriving plain
// text and fingerprints along the way. Items whose fingerprint already
// exists for the same source are counted as skipped, not errors.
type Ingester struct {
	store *store.Store
	log   zerolog.Logger
}

func NewIngester(s *store.Store) *Ingester {
	return &Ingester{
		store: s,
		log:   logger.Get(),
	}
}

// Result reports what one intake run did.
type Result struct {
	Added   int
	Skipped int
}

// IngestFile reads a JSON intake file (an array of items) and stores
// its articles for the given user.
func (ing *Ingester) IngestFile(ctx context.Context, userID, filePath string) (Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read intake file %s: %w", filePath, err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return Result{}, fmt.Errorf("failed to parse intake file %s: %w", filePath, err)
	}

	return ing.Ingest(ctx, userID, items)
}

// Ingest stores a batch of intake items.
func (ing *Ingester) Ingest(ctx context.Context, userID string, items []Item) (Result, error) {
	var result Result
	sourceIDs := make(map[string]string)

	for i, item := range items {
		if item.Title == "" {
			return result, fmt.Errorf("item %d has no title", i)
		}
		if item.Source == "" {
			return result, fmt.Errorf("item %d (%q) has no source", i, item.Title)
		}

		sourceID, ok := sourceIDs[item.Source]
		if !ok {
			source, err := ing.store.GetSourceByName(ctx, userID, item.Source)
			if err != nil {
				return result, fmt.Errorf("failed to resolve source for item %d: %w", i, err)
			}
			sourceID = source.ID
			sourceIDs[item.Source] = sourceID
		}

		if item.ContentText == "" && item.ContentHTML != "" {
			text, err := StripHTML(item.ContentHTML)
			if err != nil {
				return result, fmt.Errorf("failed to extract text for item %d (%q): %w", i, item.Title, err)
			}
			item.ContentText = text
		}

		article := core.Article{
			SourceID:    sourceID,
			Title:       item.Title,
			Author:      item.Author,
			URL:         item.URL,
			ContentHTML: item.ContentHTML,
			ContentText: item.ContentText,
			PublishedAt: item.PublishedAt,
		}

		added, err := ing.store.AddArticle(ctx, &article)
		if err != nil {
			return result, fmt.Errorf("failed to store item %d (%q): %w", i, item.Title, err)
		}
		if added {
			result.Added++
		} else {
			result.Skipped++
		}
	}

	ing.log.Info().
		Str("user_id", userID).
		Int("added", result.Added).
		Int("skipped", result.Skipped).
		Msg("Intake complete")

	return result, nil
}

// StripHTML extracts readable text from an HTML fragment. Script and
// style contents are dropped and whitespace is collapsed.
func StripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
