package store

import (
	"context"
	"testing"
	"time"

	"dailybrief/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUserAndSource(t *testing.T, s *Store) (core.User, core.Source) {
	t.Helper()
	ctx := context.Background()

	user := core.User{Email: "reader@example.com", Tier: core.TierPaid}
	if err := s.CreateUser(ctx, &user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	source := core.Source{UserID: user.ID, Kind: "rss", Name: "Feed One", Active: true}
	if err := s.AddSource(ctx, &source); err != nil {
		t.Fatalf("failed to add source: %v", err)
	}
	return user, source
}

func mustAddArticle(t *testing.T, s *Store, article *core.Article) {
	t.Helper()
	added, err := s.AddArticle(context.Background(), article)
	if err != nil {
		t.Fatalf("failed to add article: %v", err)
	}
	if !added {
		t.Fatalf("expected article %q to be stored", article.Title)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := core.User{Email: "someone@example.com", Tier: core.TierPaid}
	if err := s.CreateUser(ctx, &user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == "" {
		t.Error("expected generated user ID")
	}

	got, err := s.GetUserByEmail(ctx, "someone@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got == nil || got.ID != user.ID || got.Tier != core.TierPaid {
		t.Errorf("unexpected user: %+v", got)
	}

	missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown email, got %+v", missing)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := core.User{Email: "dup@example.com"}
	if err := s.CreateUser(ctx, &first); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	second := core.User{Email: "dup@example.com"}
	if err := s.CreateUser(ctx, &second); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestGetSourceByName(t *testing.T) {
	s := newTestStore(t)
	user, source := seedUserAndSource(t, s)
	ctx := context.Background()

	got, err := s.GetSourceByName(ctx, user.ID, "Feed One")
	if err != nil {
		t.Fatalf("GetSourceByName failed: %v", err)
	}
	if got.ID != source.ID {
		t.Errorf("expected source %s, got %s", source.ID, got.ID)
	}

	if _, err := s.GetSourceByName(ctx, user.ID, "Feed Two"); err == nil {
		t.Error("expected error for unknown source name")
	}
}

func TestAddArticleIgnoresRepeatedFingerprint(t *testing.T) {
	s := newTestStore(t)
	_, source := seedUserAndSource(t, s)
	ctx := context.Background()

	first := core.Article{SourceID: source.ID, Title: "Story", ContentText: "body text"}
	added, err := s.AddArticle(ctx, &first)
	if err != nil || !added {
		t.Fatalf("expected first insert to succeed, added=%v err=%v", added, err)
	}
	if first.Fingerprint == "" {
		t.Error("expected fingerprint to be filled in")
	}

	repeat := core.Article{SourceID: source.ID, Title: "Story", ContentText: "body text"}
	added, err = s.AddArticle(ctx, &repeat)
	if err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}
	if added {
		t.Error("expected repeated fingerprint to be ignored")
	}
}

func TestListArticlesSince(t *testing.T) {
	s := newTestStore(t)
	user, source := seedUserAndSource(t, s)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	fresh := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	mustAddArticle(t, s, &core.Article{
		SourceID: source.ID, Title: "Old published", ContentText: "a",
		PublishedAt: &old, CreatedAt: fresh,
	})
	mustAddArticle(t, s, &core.Article{
		SourceID: source.ID, Title: "Fresh published", ContentText: "b",
		PublishedAt: &fresh, CreatedAt: old,
	})
	mustAddArticle(t, s, &core.Article{
		SourceID: source.ID, Title: "Fresh unpublished", ContentText: "c",
		CreatedAt: fresh,
	})
	mustAddArticle(t, s, &core.Article{
		SourceID: source.ID, Title: "Old unpublished", ContentText: "d",
		CreatedAt: old,
	})

	all, err := s.ListArticlesSince(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("ListArticlesSince failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 articles with nil cutoff, got %d", len(all))
	}

	cutoff := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	recent, err := s.ListArticlesSince(ctx, user.ID, &cutoff)
	if err != nil {
		t.Fatalf("ListArticlesSince failed: %v", err)
	}

	titles := make(map[string]bool)
	for _, a := range recent {
		titles[a.Title] = true
	}
	if len(recent) != 2 || !titles["Fresh published"] || !titles["Fresh unpublished"] {
		t.Errorf("unexpected windowed result: %v", titles)
	}
}

func TestListArticlesSinceSkipsInactiveSources(t *testing.T) {
	s := newTestStore(t)
	user, source := seedUserAndSource(t, s)
	ctx := context.Background()

	inactive := core.Source{UserID: user.ID, Kind: "rss", Name: "Dormant", Active: false}
	if err := s.AddSource(ctx, &inactive); err != nil {
		t.Fatalf("failed to add source: %v", err)
	}

	mustAddArticle(t, s, &core.Article{SourceID: source.ID, Title: "Active story", ContentText: "x"})
	mustAddArticle(t, s, &core.Article{SourceID: inactive.ID, Title: "Dormant story", ContentText: "y"})

	articles, err := s.ListArticlesSince(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("ListArticlesSince failed: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Active story" {
		t.Errorf("expected only the active source's article, got %+v", articles)
	}
}

func TestInteractionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	user, source := seedUserAndSource(t, s)
	ctx := context.Background()

	article := core.Article{SourceID: source.ID, Title: "Engaged", ContentText: "z"}
	mustAddArticle(t, s, &article)

	interaction := core.Interaction{UserID: user.ID, ArticleID: article.ID, Kind: core.InteractionSaved}
	if err := s.AddInteraction(ctx, &interaction); err != nil {
		t.Fatalf("AddInteraction failed: %v", err)
	}

	got, err := s.ListInteractions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListInteractions failed: %v", err)
	}
	if len(got) != 1 || got[0].Kind != core.InteractionSaved || got[0].ArticleID != article.ID {
		t.Errorf("unexpected interactions: %+v", got)
	}
}

func TestDigestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	user, source := seedUserAndSource(t, s)
	ctx := context.Background()

	a := core.Article{SourceID: source.ID, Title: "Lead story", ContentText: "lead", URL: "https://example.com/lead"}
	b := core.Article{SourceID: source.ID, Title: "Follow-up", ContentText: "follow"}
	mustAddArticle(t, s, &a)
	mustAddArticle(t, s, &b)

	last, err := s.LastDigestGeneratedAt(ctx, user.ID)
	if err != nil {
		t.Fatalf("LastDigestGeneratedAt failed: %v", err)
	}
	if last != nil {
		t.Fatalf("expected no digest yet, got %v", last)
	}

	generatedAt := time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)
	digest := core.Digest{
		ID:             "digest-1",
		UserID:         user.ID,
		Date:           "2026-01-10",
		TierAtCreation: core.TierPaid,
		GeneratedAt:    generatedAt,
		Groups: []core.DigestGroup{
			{
				ID: "group-1", DigestID: "digest-1", Label: "Stories", SortOrder: 0, Summary: "The day's stories.",
				Items: []core.DigestItem{
					{ID: "item-1", GroupID: "group-1", ArticleID: a.ID, SortOrder: 0, Summary: "Lead summary.", IsPrimary: true},
					{ID: "item-2", GroupID: "group-1", ArticleID: b.ID, SortOrder: 1},
				},
			},
		},
	}
	if err := s.SaveDigest(ctx, &digest); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}

	last, err = s.LastDigestGeneratedAt(ctx, user.ID)
	if err != nil {
		t.Fatalf("LastDigestGeneratedAt failed: %v", err)
	}
	if last == nil || !last.Equal(generatedAt) {
		t.Errorf("expected last digest at %v, got %v", generatedAt, last)
	}

	loaded, err := s.GetLatestDigest(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetLatestDigest failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a digest")
	}
	if loaded.Date != "2026-01-10" || loaded.TierAtCreation != core.TierPaid {
		t.Errorf("unexpected digest header: %+v", loaded)
	}
	if len(loaded.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(loaded.Groups))
	}

	group := loaded.Groups[0]
	if group.Label != "Stories" || group.Summary != "The day's stories." {
		t.Errorf("unexpected group: %+v", group)
	}
	if len(group.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(group.Items))
	}
	if !group.Items[0].IsPrimary || group.Items[1].IsPrimary {
		t.Error("primary flag not preserved")
	}
	if group.Items[0].Article.Title != "Lead story" || group.Items[0].Article.URL != "https://example.com/lead" {
		t.Errorf("expected denormalized article, got %+v", group.Items[0].Article)
	}
}

func TestSaveDigestRejectsRepeatedDate(t *testing.T) {
	s := newTestStore(t)
	user, _ := seedUserAndSource(t, s)
	ctx := context.Background()

	first := core.Digest{ID: "d1", UserID: user.ID, Date: "2026-01-10", TierAtCreation: core.TierFree, GeneratedAt: time.Now().UTC()}
	if err := s.SaveDigest(ctx, &first); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}

	repeat := core.Digest{ID: "d2", UserID: user.ID, Date: "2026-01-10", TierAtCreation: core.TierFree, GeneratedAt: time.Now().UTC()}
	if err := s.SaveDigest(ctx, &repeat); err == nil {
		t.Error("expected error for second digest on the same date")
	}
}

func TestGetLatestDigestPicksNewest(t *testing.T) {
	s := newTestStore(t)
	user, _ := seedUserAndSource(t, s)
	ctx := context.Background()

	older := core.Digest{ID: "d1", UserID: user.ID, Date: "2026-01-09", TierAtCreation: core.TierFree,
		GeneratedAt: time.Date(2026, 1, 9, 6, 0, 0, 0, time.UTC)}
	newer := core.Digest{ID: "d2", UserID: user.ID, Date: "2026-01-10", TierAtCreation: core.TierFree,
		GeneratedAt: time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)}
	if err := s.SaveDigest(ctx, &older); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}
	if err := s.SaveDigest(ctx, &newer); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}

	latest, err := s.GetLatestDigest(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetLatestDigest failed: %v", err)
	}
	if latest == nil || latest.ID != "d2" {
		t.Errorf("expected newest digest d2, got %+v", latest)
	}
}

func TestListArticlesSinceNewestIngestedFirst(t *testing.T) {
	s := newTestStore(t)
	user, source := seedUserAndSource(t, s)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2026, 1, d, 12, 0, 0, 0, time.UTC) }
	mustAddArticle(t, s, &core.Article{SourceID: source.ID, Title: "Oldest", ContentText: "a", CreatedAt: day(1)})
	mustAddArticle(t, s, &core.Article{SourceID: source.ID, Title: "Middle", ContentText: "b", CreatedAt: day(2)})
	mustAddArticle(t, s, &core.Article{SourceID: source.ID, Title: "Newest", ContentText: "c", CreatedAt: day(3)})

	articles, err := s.ListArticlesSince(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("ListArticlesSince failed: %v", err)
	}

	var titles []string
	for _, a := range articles {
		titles = append(titles, a.Title)
	}
	want := []string{"Newest", "Middle", "Oldest"}
	if len(titles) != len(want) {
		t.Fatalf("expected %d articles, got %v", len(want), titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, titles)
		}
	}
}
