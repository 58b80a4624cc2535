package pipeline

import (
	"context"
	"fmt"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"

	"github.com/rs/zerolog"
)

// Collector selects the candidate articles for one user's digest run:
// everything from the user's active sources that is newer than the
// user's previous digest. It has no side effects.
type Collector struct {
	source ArticleSource
	log    zerolog.Logger
}

// NewCollector creates a collector reading from the given source.
func NewCollector(source ArticleSource) *Collector {
	return &Collector{
		source: source,
		log:    logger.Get(),
	}
}

// Collect returns the user's candidate articles. An empty result is the
// expected outcome when the user has no active sources or nothing new
// arrived; it is not an error.
func (c *Collector) Collect(ctx context.Context, userID string) ([]core.Article, error) {
	since, err := c.source.LastDigestGeneratedAt(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up last digest: %w", err)
	}

	articles, err := c.source.ListArticlesSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate articles: %w", err)
	}

	c.log.Debug().
		Str("user_id", userID).
		Int("candidates", len(articles)).
		Bool("first_digest", since == nil).
		Msg("collected candidate articles")

	return articles, nil
}
