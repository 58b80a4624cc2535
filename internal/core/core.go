package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Tier controls access to the LLM-assisted pipeline stages.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// InteractionKind categorizes how a user engaged with an article.
type InteractionKind string

const (
	InteractionRead          InteractionKind = "read"
	InteractionTappedThrough InteractionKind = "tapped_through"
	InteractionSaved         InteractionKind = "saved"
	InteractionDismissed     InteractionKind = "dismissed"
)

// User represents a digest subscriber.
type User struct {
	ID        string    `json:"id"`         // Unique identifier for the user
	Email     string    `json:"email"`      // User's email address
	Tier      Tier      `json:"tier"`       // Subscription tier (free or paid)
	CreatedAt time.Time `json:"created_at"` // Timestamp when the user was created
}

// Source represents a content source owned by a user (newsletter, RSS feed, subreddit).
type Source struct {
	ID        string    `json:"id"`         // Unique identifier for the source
	UserID    string    `json:"user_id"`    // Owning user
	Kind      string    `json:"kind"`       // Source kind (e.g., "newsletter", "rss", "reddit")
	Name      string    `json:"name"`       // Human-readable source name
	Active    bool      `json:"active"`     // Whether the source participates in digests
	CreatedAt time.Time `json:"created_at"` // Timestamp when the source was added
}

// Article represents a single ingested piece of content. Articles are
// immutable once stored; the pipeline only ever reads them.
type Article struct {
	ID          string     `json:"id"`           // Unique identifier for the article
	SourceID    string     `json:"source_id"`    // Source the article came from
	Title       string     `json:"title"`        // Article title
	ContentHTML string     `json:"content_html"` // Raw HTML content as ingested (can be empty)
	ContentText string     `json:"content_text"` // Plain-text content used by the pipeline
	Author      string     `json:"author"`       // Author name (can be empty)
	URL         string     `json:"url"`          // Original URL (can be empty)
	PublishedAt *time.Time `json:"published_at"` // Publication timestamp, nil when the source omits it
	Fingerprint string     `json:"fingerprint"`  // Deterministic content fingerprint for exact dedup
	CreatedAt   time.Time  `json:"created_at"`   // Ingestion timestamp
}

// EffectiveTime returns the timestamp used for recency ordering:
// the publication time when known, otherwise the ingestion time.
func (a Article) EffectiveTime() time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

// Interaction records one engagement of a user with an article.
// The pipeline reads these to personalize group ranking.
type Interaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	ArticleID string          `json:"article_id"`
	Kind      InteractionKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

// DedupCluster is one primary article plus the articles judged to be
// duplicates of it. Clusters live only for the duration of a pipeline run.
type DedupCluster struct {
	Primary    Article   `json:"primary"`
	Duplicates []Article `json:"duplicates"`
}

// Articles returns the cluster's primary followed by its duplicates.
func (c DedupCluster) Articles() []Article {
	out := make([]Article, 0, len(c.Duplicates)+1)
	out = append(out, c.Primary)
	return append(out, c.Duplicates...)
}

// TopicGroup is a labeled cluster of articles produced by the grouping
// stage. PrimaryIndex points at the representative member. Summaries are
// only present when the LLM-assisted strategy produced the group.
type TopicGroup struct {
	Label            string         `json:"label"`             // Topic label
	Articles         []Article      `json:"articles"`          // Ordered member articles
	PrimaryIndex     int            `json:"primary_index"`     // Index of the representative member
	GroupSummary     string         `json:"group_summary"`     // Group-level summary (empty without LLM)
	ArticleSummaries map[int]string `json:"article_summaries"` // Per-member summaries keyed by member index
}

// Digest is the materialized output of one pipeline run. A digest is
// never mutated after creation; a new run produces a new digest.
type Digest struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	Date           string        `json:"date"` // Digest date in YYYY-MM-DD form
	TierAtCreation Tier          `json:"tier_at_creation"`
	GeneratedAt    time.Time     `json:"generated_at"`
	Groups         []DigestGroup `json:"groups"`
}

// DigestGroup is one ranked topic group inside a digest.
type DigestGroup struct {
	ID        string       `json:"id"`
	DigestID  string       `json:"digest_id"`
	Label     string       `json:"label"`
	SortOrder int          `json:"sort_order"` // Rank position within the digest
	Summary   string       `json:"summary"`    // Group summary (empty for statistical grouping)
	Items     []DigestItem `json:"items"`
}

// DigestItem is one ranked article inside a digest group.
type DigestItem struct {
	ID        string  `json:"id"`
	GroupID   string  `json:"group_id"`
	ArticleID string  `json:"article_id"`
	SortOrder int     `json:"sort_order"` // Rank position within the group
	Summary   string  `json:"summary"`    // Per-article summary (empty for statistical grouping)
	IsPrimary bool    `json:"is_primary"` // Marks the group's representative article
	Article   Article `json:"article"`    // Denormalized article, populated on load
}

// fingerprintContentLen is how much of the content participates in the
// fingerprint. Articles from the same story often differ only past the lede.
const fingerprintContentLen = 200

// Fingerprint computes the deterministic dedup fingerprint for an article:
// a SHA-256 over the normalized title and the normalized first 200
// characters of the content. Case and surrounding whitespace do not
// affect the result.
func Fingerprint(title, contentText string) string {
	prefix := contentText
	if runes := []rune(prefix); len(runes) > fingerprintContentLen {
		prefix = string(runes[:fingerprintContentLen])
	}
	normalized := strings.TrimSpace(strings.ToLower(title)) + ":" +
		strings.TrimSpace(strings.ToLower(prefix))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
