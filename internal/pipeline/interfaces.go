package pipeline

import (
	"context"
	"time"

	"dailybrief/internal/core"
)

// Oracle is the injectable text-enrichment capability used by the
// semantic dedup and assisted grouping stages. Implementations own their
// own retry policy; the pipeline treats any returned error as "this
// batch is unavailable" and falls back deterministically. A nil Oracle
// disables both enhanced stages.
type Oracle interface {
	// DeduplicateBatch examines a batch of articles and returns groups of
	// batch-local indices judged to cover the same story. Groups of size
	// one are not returned.
	DeduplicateBatch(ctx context.Context, articles []core.Article) ([][]int, error)

	// GroupBatch partitions a batch of articles into labeled topic groups
	// with summaries. Every batch member must appear in exactly one group.
	GroupBatch(ctx context.Context, articles []core.Article) ([]OracleGroup, error)
}

// OracleGroup is one topic group proposed by the oracle for a batch.
// All indices are batch-local.
type OracleGroup struct {
	Label            string         `json:"label"`
	ArticleIndices   []int          `json:"article_indices"`
	PrimaryIndex     int            `json:"primary_index"`
	GroupSummary     string         `json:"group_summary"`
	ArticleSummaries map[int]string `json:"article_summaries"`
}

// ArticleSource supplies the collection stage with candidate articles.
type ArticleSource interface {
	// LastDigestGeneratedAt returns when the user's most recent digest was
	// generated, or nil when the user has none.
	LastDigestGeneratedAt(ctx context.Context, userID string) (*time.Time, error)

	// ListArticlesSince returns articles from the user's active sources
	// newer than the cutoff; all of them when the cutoff is nil.
	ListArticlesSince(ctx context.Context, userID string, since *time.Time) ([]core.Article, error)
}

// InteractionHistory supplies the ranking stage with a user's past
// engagement. Read-only from the pipeline's perspective.
type InteractionHistory interface {
	ListInteractions(ctx context.Context, userID string) ([]core.Interaction, error)
}

// DigestWriter persists the materialized digest.
type DigestWriter interface {
	SaveDigest(ctx context.Context, digest *core.Digest) error
}

// Storage is the full persistence surface the orchestrator needs.
type Storage interface {
	ArticleSource
	InteractionHistory
	DigestWriter
}
