package pipeline

import (
	"context"
	"fmt"
	"sort"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"

	"github.com/rs/zerolog"
)

// DefaultPersonalizationDampen scales the interaction-affinity
// contribution when scoring groups, so engagement nudges the ordering
// without overwhelming group size.
const DefaultPersonalizationDampen = 0.5

// interactionWeights maps engagement kinds to affinity contributions.
// Unknown kinds contribute nothing.
var interactionWeights = map[core.InteractionKind]float64{
	core.InteractionRead:          1.0,
	core.InteractionTappedThrough: 2.0,
	core.InteractionSaved:         3.0,
	core.InteractionDismissed:     -2.0,
}

// Ranker orders topic groups and the items within them. Items are
// always ordered by recency. Groups are ordered by size, or by a
// personalized score when the user is on the paid tier and has
// interaction history.
type Ranker struct {
	history InteractionHistory
	dampen  float64
	log     zerolog.Logger
}

// NewRanker creates a ranker. A nil history restricts it to the base
// group ordering.
func NewRanker(history InteractionHistory) *Ranker {
	return &Ranker{
		history: history,
		dampen:  DefaultPersonalizationDampen,
		log:     logger.Get(),
	}
}

// Rank sorts items within every group by recency and then orders the
// groups. The input slice is not mutated.
func (r *Ranker) Rank(ctx context.Context, groups []core.TopicGroup, tier core.Tier, userID string) ([]core.TopicGroup, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	ranked := make([]core.TopicGroup, len(groups))
	for i, group := range groups {
		ranked[i] = sortGroupItems(group)
	}

	if tier == core.TierPaid && r.history != nil && userID != "" {
		return r.personalizedRank(ctx, ranked, userID)
	}

	return baseRank(ranked), nil
}

// sortGroupItems orders a group's members by publish time descending
// (ingestion time when unpublished). The primary designation and any
// per-member summaries follow their articles to the new positions, so
// re-sorting never flags the wrong article as primary.
func sortGroupItems(group core.TopicGroup) core.TopicGroup {
	sorted := group
	sorted.Articles = append([]core.Article(nil), group.Articles...)

	var primaryID string
	if group.PrimaryIndex >= 0 && group.PrimaryIndex < len(group.Articles) {
		primaryID = group.Articles[group.PrimaryIndex].ID
	}
	summariesByID := make(map[string]string, len(group.ArticleSummaries))
	for idx, summary := range group.ArticleSummaries {
		if idx >= 0 && idx < len(group.Articles) {
			summariesByID[group.Articles[idx].ID] = summary
		}
	}

	sort.SliceStable(sorted.Articles, func(i, j int) bool {
		return sorted.Articles[i].EffectiveTime().After(sorted.Articles[j].EffectiveTime())
	})

	sorted.PrimaryIndex = 0
	if len(summariesByID) > 0 {
		sorted.ArticleSummaries = make(map[int]string, len(summariesByID))
	} else {
		sorted.ArticleSummaries = nil
	}
	for i, a := range sorted.Articles {
		if a.ID == primaryID {
			sorted.PrimaryIndex = i
		}
		if summary, ok := summariesByID[a.ID]; ok {
			sorted.ArticleSummaries[i] = summary
		}
	}

	return sorted
}

// baseRank orders groups by member count descending. The sort is stable:
// equal-sized groups keep their relative input order.
func baseRank(groups []core.TopicGroup) []core.TopicGroup {
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Articles) > len(groups[j].Articles)
	})
	return groups
}

// personalizedRank orders groups by member count plus a dampened sum of
// per-article affinity built from the user's interaction history. Users
// with no history fall back to the base ordering.
func (r *Ranker) personalizedRank(ctx context.Context, groups []core.TopicGroup, userID string) ([]core.TopicGroup, error) {
	interactions, err := r.history.ListInteractions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read interaction history: %w", err)
	}

	if len(interactions) == 0 {
		return baseRank(groups), nil
	}

	affinity := make(map[string]float64)
	for _, interaction := range interactions {
		affinity[interaction.ArticleID] += interactionWeights[interaction.Kind]
	}

	scores := make([]float64, len(groups))
	for i, group := range groups {
		score := float64(len(group.Articles))
		for _, a := range group.Articles {
			score += r.dampen * affinity[a.ID]
		}
		scores[i] = score
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	ranked := make([]core.TopicGroup, len(groups))
	for pos, idx := range order {
		ranked[pos] = groups[idx]
	}

	r.log.Debug().
		Str("user_id", userID).
		Int("interactions", len(interactions)).
		Msg("applied personalized group ranking")

	return ranked, nil
}
