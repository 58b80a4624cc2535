package pipeline

import (
	"context"
	"fmt"
	"time"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline runs the full curation sequence for one user:
// collect -> deduplicate -> group -> rank, then materializes the result
// as an immutable digest. Stages run sequentially within a run; separate
// runs share no mutable state and may execute concurrently.
type Pipeline struct {
	store        Storage
	collector    *Collector
	deduplicator *Deduplicator
	grouper      *Grouper
	ranker       *Ranker
	log          zerolog.Logger
}

// Config carries the pipeline tunables. Zero or negative fields fall
// back to the package defaults.
type Config struct {
	DedupBatchSize        int
	GroupBatchSize        int
	TopKeywords           int
	MinSharedKeywords     int
	PersonalizationDampen float64
}

// New creates a pipeline over the given storage with default tunables.
// The oracle may be nil, which disables semantic dedup and assisted
// grouping for every run.
func New(store Storage, oracle Oracle) *Pipeline {
	return NewWithConfig(store, oracle, Config{})
}

// NewWithConfig creates a pipeline with explicit tunables.
func NewWithConfig(store Storage, oracle Oracle, cfg Config) *Pipeline {
	p := &Pipeline{
		store:        store,
		collector:    NewCollector(store),
		deduplicator: NewDeduplicator(oracle),
		grouper:      NewGrouper(oracle),
		ranker:       NewRanker(store),
		log:          logger.Get(),
	}

	if cfg.DedupBatchSize > 0 {
		p.deduplicator.batchSize = cfg.DedupBatchSize
	}
	if cfg.GroupBatchSize > 0 {
		p.grouper.batchSize = cfg.GroupBatchSize
	}
	if cfg.TopKeywords > 0 {
		p.grouper.topKeywords = cfg.TopKeywords
	}
	if cfg.MinSharedKeywords > 0 {
		p.grouper.minShared = cfg.MinSharedKeywords
	}
	if cfg.PersonalizationDampen > 0 {
		p.ranker.dampen = cfg.PersonalizationDampen
	}

	return p
}

// Generate runs the pipeline for one user and persists the resulting
// digest. A (nil, nil) return means "no digest": there was nothing new
// to curate, which is an expected outcome rather than an error.
func (p *Pipeline) Generate(ctx context.Context, user core.User, date time.Time) (*core.Digest, error) {
	articles, err := p.collector.Collect(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		p.log.Info().Str("user_id", user.ID).Msg("no new articles, skipping digest")
		return nil, nil
	}

	clusters := p.deduplicator.Deduplicate(ctx, articles, user.Tier)
	if len(clusters) == 0 {
		p.log.Info().Str("user_id", user.ID).Msg("no clusters after dedup, skipping digest")
		return nil, nil
	}

	groups := p.grouper.Group(ctx, clusters, user.Tier)
	if len(groups) == 0 {
		return nil, nil
	}

	ranked, err := p.ranker.Rank(ctx, groups, user.Tier, user.ID)
	if err != nil {
		return nil, err
	}

	digest := materialize(user, date, ranked)

	if err := p.store.SaveDigest(ctx, digest); err != nil {
		return nil, fmt.Errorf("failed to save digest: %w", err)
	}

	p.log.Info().
		Str("user_id", user.ID).
		Str("digest_id", digest.ID).
		Int("groups", len(digest.Groups)).
		Msg("digest generated")

	return digest, nil
}

// materialize freezes ranked topic groups into a digest record, with
// explicit sort orders and the primary flag on each group's
// representative item.
func materialize(user core.User, date time.Time, ranked []core.TopicGroup) *core.Digest {
	now := time.Now().UTC()
	if date.IsZero() {
		date = now
	}

	digest := &core.Digest{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Date:           date.Format("2006-01-02"),
		TierAtCreation: user.Tier,
		GeneratedAt:    now,
	}

	for sortOrder, group := range ranked {
		dg := core.DigestGroup{
			ID:        uuid.NewString(),
			DigestID:  digest.ID,
			Label:     group.Label,
			SortOrder: sortOrder,
			Summary:   group.GroupSummary,
		}

		for itemOrder, article := range group.Articles {
			dg.Items = append(dg.Items, core.DigestItem{
				ID:        uuid.NewString(),
				GroupID:   dg.ID,
				ArticleID: article.ID,
				SortOrder: itemOrder,
				Summary:   group.ArticleSummaries[itemOrder],
				IsPrimary: itemOrder == group.PrimaryIndex,
				Article:   article,
			})
		}

		digest.Groups = append(digest.Groups, dg)
	}

	return digest
}
