package pipeline

import (
	"context"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"

	"github.com/rs/zerolog"
)

// DefaultDedupBatchSize is how many primaries go to the oracle per
// semantic-dedup call.
const DefaultDedupBatchSize = 50

// Deduplicator collapses equivalent articles into clusters. Phase 1
// partitions by fingerprint and always runs; phase 2 asks the oracle for
// semantic duplicates among the phase-1 primaries and only runs for paid
// users with an oracle configured.
type Deduplicator struct {
	oracle    Oracle
	batchSize int
	log       zerolog.Logger
}

// NewDeduplicator creates a deduplicator. A nil oracle disables the
// semantic phase.
func NewDeduplicator(oracle Oracle) *Deduplicator {
	return &Deduplicator{
		oracle:    oracle,
		batchSize: DefaultDedupBatchSize,
		log:       logger.Get(),
	}
}

// Deduplicate returns clusters covering every input article exactly
// once. It never fails: oracle trouble degrades to the fingerprint-only
// result.
func (d *Deduplicator) Deduplicate(ctx context.Context, articles []core.Article, tier core.Tier) []core.DedupCluster {
	if len(articles) == 0 {
		return nil
	}

	clusters := d.fingerprintDedup(articles)

	if tier == core.TierPaid && d.oracle != nil {
		clusters = d.semanticDedup(ctx, clusters)
	}

	return clusters
}

// fingerprintDedup partitions articles by fingerprint. The primary of
// each partition is the member with the longest content text; ties keep
// the earliest-encountered member. Cluster order follows the first
// appearance of each fingerprint in the input.
func (d *Deduplicator) fingerprintDedup(articles []core.Article) []core.DedupCluster {
	byFingerprint := make(map[string][]core.Article)
	var order []string

	for _, a := range articles {
		if _, seen := byFingerprint[a.Fingerprint]; !seen {
			order = append(order, a.Fingerprint)
		}
		byFingerprint[a.Fingerprint] = append(byFingerprint[a.Fingerprint], a)
	}

	clusters := make([]core.DedupCluster, 0, len(order))
	for _, fp := range order {
		members := byFingerprint[fp]

		primaryIdx := 0
		for i, a := range members {
			if len(a.ContentText) > len(members[primaryIdx].ContentText) {
				primaryIdx = i
			}
		}

		cluster := core.DedupCluster{Primary: members[primaryIdx]}
		for i, a := range members {
			if i != primaryIdx {
				cluster.Duplicates = append(cluster.Duplicates, a)
			}
		}
		clusters = append(clusters, cluster)
	}

	return clusters
}

// semanticDedup merges clusters whose primaries the oracle judges to
// cover the same story. Batches are independent: a failed or malformed
// batch leaves its clusters exactly as phase 1 produced them.
func (d *Deduplicator) semanticDedup(ctx context.Context, clusters []core.DedupCluster) []core.DedupCluster {
	if len(clusters) <= 1 {
		return clusters
	}

	primaries := make([]core.Article, len(clusters))
	for i, c := range clusters {
		primaries[i] = c.Primary
	}

	merged := make(map[int]bool)

	for start := 0; start < len(primaries); start += d.batchSize {
		end := start + d.batchSize
		if end > len(primaries) {
			end = len(primaries)
		}
		batch := primaries[start:end]

		groups, err := d.oracle.DeduplicateBatch(ctx, batch)
		if err != nil {
			d.log.Warn().Err(err).
				Int("batch_start", start).
				Msg("semantic dedup unavailable for batch, keeping fingerprint clusters")
			continue
		}

		if !validDedupGroups(groups, len(batch)) {
			d.log.Warn().
				Int("batch_start", start).
				Msg("semantic dedup returned malformed groups, keeping fingerprint clusters")
			continue
		}

		for _, group := range groups {
			lead := start + group[0]
			for _, local := range group[1:] {
				idx := start + local
				// Fold the whole cluster into the lead: its primary and any
				// fingerprint duplicates it carried.
				clusters[lead].Duplicates = append(clusters[lead].Duplicates, clusters[idx].Primary)
				clusters[lead].Duplicates = append(clusters[lead].Duplicates, clusters[idx].Duplicates...)
				merged[idx] = true
			}
		}
	}

	if len(merged) == 0 {
		return clusters
	}

	final := make([]core.DedupCluster, 0, len(clusters)-len(merged))
	for i, c := range clusters {
		if !merged[i] {
			final = append(final, c)
		}
	}

	d.log.Debug().
		Int("merged", len(merged)).
		Int("clusters", len(final)).
		Msg("semantic dedup merged clusters")

	return final
}

// validDedupGroups rejects oracle output that references indices outside
// the batch, repeats an index, or contains singleton groups. Malformed
// output is treated like an oracle failure: nothing from the batch is
// applied.
func validDedupGroups(groups [][]int, batchLen int) bool {
	seen := make(map[int]bool)
	for _, group := range groups {
		if len(group) < 2 {
			return false
		}
		for _, idx := range group {
			if idx < 0 || idx >= batchLen || seen[idx] {
				return false
			}
			seen[idx] = true
		}
	}
	return true
}
