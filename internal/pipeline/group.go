package pipeline

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"

	"github.com/rs/zerolog"
)

// Grouping tunables. The statistical strategy keeps the top-scoring
// keywords per document and merges documents sharing at least
// minSharedKeywords of them.
const (
	DefaultGroupBatchSize    = 20
	DefaultTopKeywords       = 10
	DefaultMinSharedKeywords = 2
	minTokenLength           = 3
)

var tokenRegex = regexp.MustCompile(`[a-z]+`)

// stopWords are excluded from keyword extraction.
var stopWords = buildStopWords(
	"a an the is are was were be been being have has had do does did will would " +
		"shall should may might can could of in to for on with at by from as into " +
		"through during before after above below between out off over under again " +
		"further then once here there when where why how all each every both few " +
		"more most other some such no nor not only own same so than too very and " +
		"but if or because until while about against")

func buildStopWords(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

// Grouper clusters deduplicated articles into topics. The oracle-backed
// strategy produces labels and summaries; when it is unavailable or
// fails, the TF-IDF statistical strategy is the deterministic fallback.
type Grouper struct {
	oracle      Oracle
	batchSize   int
	topKeywords int
	minShared   int
	log         zerolog.Logger
}

// NewGrouper creates a grouper. A nil oracle restricts it to the
// statistical strategy.
func NewGrouper(oracle Oracle) *Grouper {
	return &Grouper{
		oracle:      oracle,
		batchSize:   DefaultGroupBatchSize,
		topKeywords: DefaultTopKeywords,
		minShared:   DefaultMinSharedKeywords,
		log:         logger.Get(),
	}
}

// Group assigns every cluster primary to exactly one topic group.
// It never fails: an unusable oracle result falls back to TF-IDF.
func (g *Grouper) Group(ctx context.Context, clusters []core.DedupCluster, tier core.Tier) []core.TopicGroup {
	if len(clusters) == 0 {
		return nil
	}

	primaries := make([]core.Article, len(clusters))
	for i, c := range clusters {
		primaries[i] = c.Primary
	}

	if tier == core.TierPaid && g.oracle != nil {
		if groups := g.oracleGroup(ctx, primaries); groups != nil {
			return groups
		}
		g.log.Warn().Msg("assisted grouping unavailable, falling back to TF-IDF")
	}

	return g.tfidfGroup(primaries)
}

// oracleGroup runs the assisted strategy. All batches must succeed and
// every batch must be fully partitioned; otherwise the entire assisted
// result is discarded so statistical and assisted groups never mix.
func (g *Grouper) oracleGroup(ctx context.Context, articles []core.Article) []core.TopicGroup {
	var all []core.TopicGroup

	for start := 0; start < len(articles); start += g.batchSize {
		end := start + g.batchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]

		oracleGroups, err := g.oracle.GroupBatch(ctx, batch)
		if err != nil {
			g.log.Warn().Err(err).Int("batch_start", start).Msg("assisted grouping failed for batch")
			return nil
		}
		if len(oracleGroups) == 0 {
			g.log.Warn().Int("batch_start", start).Msg("assisted grouping returned no groups")
			return nil
		}
		if !validOracleGroups(oracleGroups, len(batch)) {
			g.log.Warn().Int("batch_start", start).Msg("assisted grouping returned malformed groups")
			return nil
		}

		for _, og := range oracleGroups {
			members := make([]core.Article, len(og.ArticleIndices))
			localPos := make(map[int]int, len(og.ArticleIndices))
			for pos, idx := range og.ArticleIndices {
				members[pos] = batch[idx]
				localPos[idx] = pos
			}

			primaryPos := 0
			if pos, ok := localPos[og.PrimaryIndex]; ok {
				primaryPos = pos
			}

			summaries := make(map[int]string, len(og.ArticleSummaries))
			for idx, summary := range og.ArticleSummaries {
				if pos, ok := localPos[idx]; ok {
					summaries[pos] = summary
				}
			}

			all = append(all, core.TopicGroup{
				Label:            og.Label,
				Articles:         members,
				PrimaryIndex:     primaryPos,
				GroupSummary:     og.GroupSummary,
				ArticleSummaries: summaries,
			})
		}
	}

	return all
}

// validOracleGroups checks that the oracle's groups form an exact
// partition of the batch: every index in range, no index repeated, no
// index missing.
func validOracleGroups(groups []OracleGroup, batchLen int) bool {
	seen := make(map[int]bool)
	total := 0
	for _, group := range groups {
		if len(group.ArticleIndices) == 0 {
			return false
		}
		for _, idx := range group.ArticleIndices {
			if idx < 0 || idx >= batchLen || seen[idx] {
				return false
			}
			seen[idx] = true
			total++
		}
	}
	return total == batchLen
}

// tfidfGroup is the statistical strategy: score tokens with TF-IDF, keep
// each document's top keywords, then greedily cluster documents in input
// order against the cluster seed. Membership is decided only against the
// seed, not transitively against other members; this is a deliberate
// approximation of single-link clustering kept cheap and predictable.
func (g *Grouper) tfidfGroup(articles []core.Article) []core.TopicGroup {
	if len(articles) == 0 {
		return nil
	}

	keywords := g.extractKeywords(articles)

	assigned := make([]bool, len(articles))
	var groups []core.TopicGroup

	for i := range articles {
		if assigned[i] {
			continue
		}
		cluster := []int{i}
		assigned[i] = true

		for j := i + 1; j < len(articles); j++ {
			if assigned[j] {
				continue
			}
			if countShared(keywords[i], keywords[j]) >= g.minShared {
				cluster = append(cluster, j)
				assigned[j] = true
			}
		}

		members := make([]core.Article, len(cluster))
		for pos, idx := range cluster {
			members[pos] = articles[idx]
		}

		groups = append(groups, core.TopicGroup{
			Label:        g.topicLabel(cluster, keywords),
			Articles:     members,
			PrimaryIndex: 0,
		})
	}

	return groups
}

// extractKeywords computes each document's top TF-IDF keywords over the
// title and content.
func (g *Grouper) extractKeywords(articles []core.Article) []map[string]bool {
	type docTerms struct {
		order []string // tokens in first-appearance order, for stable ranking
		tf    map[string]float64
	}

	docs := make([]docTerms, len(articles))
	df := make(map[string]int)

	for i, a := range articles {
		tokens := tokenize(a.Title + " " + a.ContentText)

		tf := make(map[string]float64)
		var order []string
		for _, t := range tokens {
			if _, seen := tf[t]; !seen {
				order = append(order, t)
			}
			tf[t]++
		}
		total := float64(len(tokens))
		if total == 0 {
			total = 1
		}
		for t := range tf {
			tf[t] /= total
		}
		docs[i] = docTerms{order: order, tf: tf}

		for _, t := range order {
			df[t]++
		}
	}

	n := float64(len(articles))
	keywords := make([]map[string]bool, len(articles))

	for i, doc := range docs {
		scored := make(map[string]float64, len(doc.tf))
		for term, freq := range doc.tf {
			idf := math.Log((n+1)/float64(df[term]+1)) + 1
			scored[term] = freq * idf
		}

		ranked := append([]string(nil), doc.order...)
		sort.SliceStable(ranked, func(a, b int) bool {
			return scored[ranked[a]] > scored[ranked[b]]
		})
		if len(ranked) > g.topKeywords {
			ranked = ranked[:g.topKeywords]
		}

		set := make(map[string]bool, len(ranked))
		for _, t := range ranked {
			set[t] = true
		}
		keywords[i] = set
	}

	return keywords
}

// topicLabel derives a group label from keywords shared by every member,
// falling back to the seed's own keywords, then to "General".
func (g *Grouper) topicLabel(cluster []int, keywords []map[string]bool) string {
	seed := keywords[cluster[0]]

	var pool map[string]bool
	if len(cluster) > 1 {
		shared := seed
		for _, idx := range cluster[1:] {
			shared = intersect(shared, keywords[idx])
		}
		if len(shared) == 0 {
			shared = seed
		}
		pool = shared
	} else {
		pool = seed
	}

	terms := make([]string, 0, len(pool))
	for t := range pool {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	if len(terms) > 3 {
		terms = terms[:3]
	}

	label := strings.Join(titleCase(terms), ", ")
	if label == "" {
		return "General"
	}
	return label
}

// tokenize lowercases text, extracts alphabetic runs, and drops short
// tokens and stop words.
func tokenize(text string) []string {
	words := tokenRegex.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) >= minTokenLength && !stopWords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

func countShared(a, b map[string]bool) int {
	count := 0
	for t := range a {
		if b[t] {
			count++
		}
	}
	return count
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for t := range a {
		if b[t] {
			out[t] = true
		}
	}
	return out
}

func titleCase(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		if t == "" {
			continue
		}
		out[i] = strings.ToUpper(t[:1]) + t[1:]
	}
	return out
}
