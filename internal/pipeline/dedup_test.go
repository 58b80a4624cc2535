package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dailybrief/internal/core"

	"github.com/google/uuid"
)

// mockOracle implements Oracle for tests.
type mockOracle struct {
	dedupFn    func(ctx context.Context, articles []core.Article) ([][]int, error)
	groupFn    func(ctx context.Context, articles []core.Article) ([]OracleGroup, error)
	dedupCalls int
	groupCalls int
}

func (m *mockOracle) DeduplicateBatch(ctx context.Context, articles []core.Article) ([][]int, error) {
	m.dedupCalls++
	if m.dedupFn == nil {
		return nil, nil
	}
	return m.dedupFn(ctx, articles)
}

func (m *mockOracle) GroupBatch(ctx context.Context, articles []core.Article) ([]OracleGroup, error) {
	m.groupCalls++
	if m.groupFn == nil {
		return nil, nil
	}
	return m.groupFn(ctx, articles)
}

func testArticle(title, content string) core.Article {
	return core.Article{
		ID:          uuid.NewString(),
		SourceID:    uuid.NewString(),
		Title:       title,
		ContentText: content,
		Fingerprint: core.Fingerprint(title, content),
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// assertDedupPartition fails the test unless the clusters cover every
// input article exactly once.
func assertDedupPartition(t *testing.T, input []core.Article, clusters []core.DedupCluster) {
	t.Helper()

	seen := make(map[string]int)
	for _, c := range clusters {
		for _, a := range c.Articles() {
			seen[a.ID]++
		}
	}

	if len(seen) != len(input) {
		t.Fatalf("Clusters cover %d articles, input had %d", len(seen), len(input))
	}
	for _, a := range input {
		if seen[a.ID] != 1 {
			t.Fatalf("Article %s appears %d times in clusters, want exactly 1", a.ID, seen[a.ID])
		}
	}
}

func TestDeduplicate_FingerprintPicksLongestContent(t *testing.T) {
	short := testArticle("Same Story", "short text")                 // 10 chars
	long := testArticle("Same Story", strings.Repeat("long texts", 5)) // 50 chars
	// The articles represent the same story; give them the same fingerprint.
	long.Fingerprint = short.Fingerprint

	d := NewDeduplicator(nil)
	clusters := d.Deduplicate(context.Background(), []core.Article{short, long}, core.TierFree)

	if len(clusters) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Primary.ID != long.ID {
		t.Error("Expected the longer article to be the cluster primary")
	}
	if len(clusters[0].Duplicates) != 1 || clusters[0].Duplicates[0].ID != short.ID {
		t.Error("Expected the shorter article to be a duplicate")
	}
	assertDedupPartition(t, []core.Article{short, long}, clusters)
}

func TestDeduplicate_TieKeepsEarliest(t *testing.T) {
	first := testArticle("Tie Story", "same length!")
	second := testArticle("Tie Story", "other text!!")
	second.Fingerprint = first.Fingerprint

	d := NewDeduplicator(nil)
	clusters := d.Deduplicate(context.Background(), []core.Article{first, second}, core.TierFree)

	if len(clusters) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Primary.ID != first.ID {
		t.Error("Equal content lengths should keep the earliest article as primary")
	}
}

func TestDeduplicate_DistinctFingerprintsKeepInputOrder(t *testing.T) {
	articles := []core.Article{
		testArticle("Story A", "content about apples"),
		testArticle("Story B", "content about bridges"),
		testArticle("Story C", "content about compilers"),
	}

	d := NewDeduplicator(nil)
	clusters := d.Deduplicate(context.Background(), articles, core.TierFree)

	if len(clusters) != 3 {
		t.Fatalf("Expected 3 clusters, got %d", len(clusters))
	}
	for i, c := range clusters {
		if c.Primary.ID != articles[i].ID {
			t.Errorf("Cluster %d primary out of order: got %s", i, c.Primary.Title)
		}
	}
	assertDedupPartition(t, articles, clusters)
}

func TestDeduplicate_EmptyInput(t *testing.T) {
	d := NewDeduplicator(nil)
	if clusters := d.Deduplicate(context.Background(), nil, core.TierPaid); clusters != nil {
		t.Errorf("Expected nil clusters for empty input, got %d", len(clusters))
	}
}

func TestDeduplicate_SemanticMergeFlattensDuplicates(t *testing.T) {
	a := testArticle("Fed raises rates", "The central bank raised interest rates today")
	aDup := testArticle("Fed raises rates", "The central bank raised interest rates today")
	b := testArticle("Central bank hikes rates", "Rates went up per the latest announcement")
	c := testArticle("Local sports results", "The home team won the derby")

	oracle := &mockOracle{
		dedupFn: func(ctx context.Context, articles []core.Article) ([][]int, error) {
			// Primaries arrive as [a, b, c]; a and b cover the same story.
			return [][]int{{0, 1}}, nil
		},
	}

	input := []core.Article{a, aDup, b, c}
	d := NewDeduplicator(oracle)
	clusters := d.Deduplicate(context.Background(), input, core.TierPaid)

	if len(clusters) != 2 {
		t.Fatalf("Expected 2 clusters after semantic merge, got %d", len(clusters))
	}
	if clusters[0].Primary.ID != a.ID {
		t.Error("Expected the first group index to stay the surviving lead")
	}
	if len(clusters[0].Duplicates) != 2 {
		t.Errorf("Expected the lead to carry 2 duplicates (fingerprint dup + merged primary), got %d", len(clusters[0].Duplicates))
	}
	assertDedupPartition(t, input, clusters)
}

func TestDeduplicate_FreeTierSkipsOracle(t *testing.T) {
	oracle := &mockOracle{}
	d := NewDeduplicator(oracle)
	d.Deduplicate(context.Background(), []core.Article{
		testArticle("One", "content one"),
		testArticle("Two", "content two"),
	}, core.TierFree)

	if oracle.dedupCalls != 0 {
		t.Errorf("Free tier must not call the oracle, got %d calls", oracle.dedupCalls)
	}
}

func TestDeduplicate_OracleFailureKeepsFingerprintResult(t *testing.T) {
	articles := []core.Article{
		testArticle("Alpha", "alpha content here"),
		testArticle("Beta", "beta content here"),
		testArticle("Gamma", "gamma content here"),
	}

	failing := &mockOracle{
		dedupFn: func(ctx context.Context, batch []core.Article) ([][]int, error) {
			return nil, errors.New("oracle unavailable")
		},
	}

	degraded := NewDeduplicator(failing).Deduplicate(context.Background(), articles, core.TierPaid)
	baseline := NewDeduplicator(nil).Deduplicate(context.Background(), articles, core.TierFree)

	if len(degraded) != len(baseline) {
		t.Errorf("Degraded run produced %d clusters, fingerprint-only run produced %d", len(degraded), len(baseline))
	}
	assertDedupPartition(t, articles, degraded)
}

func TestDeduplicate_MalformedOracleOutputIgnored(t *testing.T) {
	articles := []core.Article{
		testArticle("Alpha", "alpha content here"),
		testArticle("Beta", "beta content here"),
	}

	cases := []struct {
		name   string
		groups [][]int
	}{
		{"index out of range", [][]int{{0, 5}}},
		{"repeated index", [][]int{{0, 0}}},
		{"singleton group", [][]int{{1}}},
		{"negative index", [][]int{{-1, 0}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oracle := &mockOracle{
				dedupFn: func(ctx context.Context, batch []core.Article) ([][]int, error) {
					return tc.groups, nil
				},
			}
			clusters := NewDeduplicator(oracle).Deduplicate(context.Background(), articles, core.TierPaid)
			if len(clusters) != 2 {
				t.Errorf("Malformed oracle output must not merge clusters, got %d clusters", len(clusters))
			}
			assertDedupPartition(t, articles, clusters)
		})
	}
}

func TestDeduplicate_Batching(t *testing.T) {
	var articles []core.Article
	for i := 0; i < 120; i++ {
		articles = append(articles, testArticle(
			"Unique title "+uuid.NewString(),
			"unique content "+uuid.NewString(),
		))
	}

	oracle := &mockOracle{}
	d := NewDeduplicator(oracle)
	clusters := d.Deduplicate(context.Background(), articles, core.TierPaid)

	// 120 primaries in batches of 50 -> 3 oracle calls.
	if oracle.dedupCalls != 3 {
		t.Errorf("Expected 3 batch calls for 120 primaries, got %d", oracle.dedupCalls)
	}
	assertDedupPartition(t, articles, clusters)
}
