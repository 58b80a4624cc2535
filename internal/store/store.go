package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dailybrief/internal/core"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed persistence layer. It owns users, sources,
// articles and interactions on behalf of the ingestion side, and digests
// on behalf of the pipeline.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with a SQLite database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "dailybrief.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		tier TEXT NOT NULL DEFAULT 'free',
		created_at DATETIME NOT NULL
	);`

	sourcesTable := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id)
	);`

	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content_html TEXT,
		content_text TEXT,
		author TEXT,
		url TEXT,
		published_at DATETIME,
		fingerprint TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (source_id, fingerprint),
		FOREIGN KEY (source_id) REFERENCES sources (id)
	);`

	interactionsTable := `
	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		article_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id),
		FOREIGN KEY (article_id) REFERENCES articles (id)
	);`

	digestsTable := `
	CREATE TABLE IF NOT EXISTS digests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		tier_at_creation TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		UNIQUE (user_id, date),
		FOREIGN KEY (user_id) REFERENCES users (id)
	);`

	digestGroupsTable := `
	CREATE TABLE IF NOT EXISTS digest_groups (
		id TEXT PRIMARY KEY,
		digest_id TEXT NOT NULL,
		label TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		summary TEXT,
		FOREIGN KEY (digest_id) REFERENCES digests (id)
	);`

	digestItemsTable := `
	CREATE TABLE IF NOT EXISTS digest_items (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		article_id TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		summary TEXT,
		is_primary INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (group_id) REFERENCES digest_groups (id),
		FOREIGN KEY (article_id) REFERENCES articles (id)
	);`

	tables := []string{
		usersTable, sourcesTable, articlesTable,
		interactionsTable, digestsTable, digestGroupsTable, digestItemsTable,
	}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser stores a new user. A missing ID or creation time is filled in.
func (s *Store) CreateUser(ctx context.Context, user *core.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Tier == "" {
		user.Tier = core.TierFree
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO users (id, email, tier, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Email, string(user.Tier), user.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up a user by email. Returns nil when not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	query := `SELECT id, email, tier, created_at FROM users WHERE email = ?`
	row := s.db.QueryRowContext(ctx, query, email)

	var user core.User
	var tier string
	err := row.Scan(&user.ID, &user.Email, &tier, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.Tier = core.Tier(tier)
	return &user, nil
}

// AddSource stores a new content source.
func (s *Store) AddSource(ctx context.Context, source *core.Source) error {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO sources (id, user_id, kind, name, active, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		source.ID, source.UserID, source.Kind, source.Name, source.Active, source.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

// GetSourceByName finds a user's source by its display name.
func (s *Store) GetSourceByName(ctx context.Context, userID, name string) (*core.Source, error) {
	query := `SELECT id, user_id, kind, name, active, created_at FROM sources WHERE user_id = ? AND name = ?`

	var source core.Source
	err := s.db.QueryRowContext(ctx, query, userID, name).Scan(
		&source.ID, &source.UserID, &source.Kind, &source.Name, &source.Active, &source.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("source %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}
	return &source, nil
}

// ListActiveSources returns the IDs of a user's active sources.
func (s *Store) ListActiveSources(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT id FROM sources WHERE user_id = ? AND active = 1`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan source id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddArticle stores an article and reports whether a new row was
// written. Articles with a fingerprint already seen for the same source
// are silently skipped; stored articles are immutable.
func (s *Store) AddArticle(ctx context.Context, article *core.Article) (bool, error) {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if article.Fingerprint == "" {
		article.Fingerprint = core.Fingerprint(article.Title, article.ContentText)
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}

	var publishedAt interface{}
	if article.PublishedAt != nil {
		publishedAt = *article.PublishedAt
	}

	query := `
	INSERT OR IGNORE INTO articles
	(id, source_id, title, content_html, content_text, author, url, published_at, fingerprint, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		article.ID, article.SourceID, article.Title, article.ContentHTML, article.ContentText,
		article.Author, article.URL, publishedAt, article.Fingerprint, article.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected > 0, nil
}

// ListArticlesSince returns all articles from the user's active sources
// that were published (or, lacking a publication time, ingested) after
// the cutoff, newest ingested first. A nil cutoff returns all articles
// from active sources.
func (s *Store) ListArticlesSince(ctx context.Context, userID string, since *time.Time) ([]core.Article, error) {
	sourceIDs, err := s.ListActiveSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(sourceIDs) == 0 {
		return nil, nil
	}

	ids := make([]interface{}, len(sourceIDs))
	for i, id := range sourceIDs {
		ids[i] = id
	}

	builder := sq.Select(
		"id", "source_id", "title", "content_html", "content_text",
		"author", "url", "published_at", "fingerprint", "created_at").
		From("articles").
		Where(sq.Eq{"source_id": ids}).
		OrderBy("created_at DESC, id ASC")

	if since != nil {
		builder = builder.Where(sq.Or{
			sq.Gt{"published_at": *since},
			sq.And{
				sq.Eq{"published_at": nil},
				sq.Gt{"created_at": *since},
			},
		})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (core.Article, error) {
	var article core.Article
	var contentHTML, contentText, author, url sql.NullString
	var publishedAt sql.NullTime

	err := row.Scan(
		&article.ID, &article.SourceID, &article.Title,
		&contentHTML, &contentText, &author, &url,
		&publishedAt, &article.Fingerprint, &article.CreatedAt,
	)
	if err != nil {
		return core.Article{}, fmt.Errorf("failed to scan article: %w", err)
	}

	article.ContentHTML = contentHTML.String
	article.ContentText = contentText.String
	article.Author = author.String
	article.URL = url.String
	if publishedAt.Valid {
		t := publishedAt.Time
		article.PublishedAt = &t
	}
	return article, nil
}

// AddInteraction records a user's engagement with an article.
func (s *Store) AddInteraction(ctx context.Context, interaction *core.Interaction) error {
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO interactions (id, user_id, article_id, kind, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		interaction.ID, interaction.UserID, interaction.ArticleID,
		string(interaction.Kind), interaction.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// ListInteractions returns all interaction records for a user.
func (s *Store) ListInteractions(ctx context.Context, userID string) ([]core.Interaction, error) {
	query := `SELECT id, user_id, article_id, kind, created_at FROM interactions WHERE user_id = ?`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []core.Interaction
	for rows.Next() {
		var interaction core.Interaction
		var kind string
		if err := rows.Scan(&interaction.ID, &interaction.UserID, &interaction.ArticleID,
			&kind, &interaction.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interaction.Kind = core.InteractionKind(kind)
		interactions = append(interactions, interaction)
	}
	return interactions, rows.Err()
}

// LastDigestGeneratedAt returns the generation time of the user's most
// recent digest, or nil when the user has no digest yet.
func (s *Store) LastDigestGeneratedAt(ctx context.Context, userID string) (*time.Time, error) {
	query := `SELECT generated_at FROM digests WHERE user_id = ? ORDER BY generated_at DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, userID)

	var generatedAt time.Time
	err := row.Scan(&generatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan last digest time: %w", err)
	}
	return &generatedAt, nil
}

// SaveDigest persists a digest with its groups and items in one transaction.
func (s *Store) SaveDigest(ctx context.Context, digest *core.Digest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	digestQuery := `INSERT INTO digests (id, user_id, date, tier_at_creation, generated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, digestQuery,
		digest.ID, digest.UserID, digest.Date, string(digest.TierAtCreation), digest.GeneratedAt); err != nil {
		return fmt.Errorf("failed to insert digest: %w", err)
	}

	groupQuery := `INSERT INTO digest_groups (id, digest_id, label, sort_order, summary) VALUES (?, ?, ?, ?, ?)`
	itemQuery := `INSERT INTO digest_items (id, group_id, article_id, sort_order, summary, is_primary) VALUES (?, ?, ?, ?, ?, ?)`

	for _, group := range digest.Groups {
		if _, err := tx.ExecContext(ctx, groupQuery,
			group.ID, digest.ID, group.Label, group.SortOrder, group.Summary); err != nil {
			return fmt.Errorf("failed to insert digest group: %w", err)
		}
		for _, item := range group.Items {
			if _, err := tx.ExecContext(ctx, itemQuery,
				item.ID, group.ID, item.ArticleID, item.SortOrder, item.Summary, item.IsPrimary); err != nil {
				return fmt.Errorf("failed to insert digest item: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit digest: %w", err)
	}
	return nil
}

// GetLatestDigest loads the user's most recent digest with its groups,
// items and denormalized articles. Returns nil when no digest exists.
func (s *Store) GetLatestDigest(ctx context.Context, userID string) (*core.Digest, error) {
	query := `
	SELECT id, user_id, date, tier_at_creation, generated_at
	FROM digests WHERE user_id = ? ORDER BY generated_at DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, userID)

	var digest core.Digest
	var tier string
	err := row.Scan(&digest.ID, &digest.UserID, &digest.Date, &tier, &digest.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan digest: %w", err)
	}
	digest.TierAtCreation = core.Tier(tier)

	if err := s.loadDigestGroups(ctx, &digest); err != nil {
		return nil, err
	}
	return &digest, nil
}

func (s *Store) loadDigestGroups(ctx context.Context, digest *core.Digest) error {
	groupQuery := `
	SELECT id, digest_id, label, sort_order, COALESCE(summary, '')
	FROM digest_groups WHERE digest_id = ? ORDER BY sort_order ASC`
	rows, err := s.db.QueryContext(ctx, groupQuery, digest.ID)
	if err != nil {
		return fmt.Errorf("failed to query digest groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var group core.DigestGroup
		if err := rows.Scan(&group.ID, &group.DigestID, &group.Label, &group.SortOrder, &group.Summary); err != nil {
			return fmt.Errorf("failed to scan digest group: %w", err)
		}
		digest.Groups = append(digest.Groups, group)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	itemQuery := `
	SELECT i.id, i.group_id, i.article_id, i.sort_order, COALESCE(i.summary, ''), i.is_primary,
	       a.id, a.source_id, a.title, a.content_html, a.content_text,
	       a.author, a.url, a.published_at, a.fingerprint, a.created_at
	FROM digest_items i
	JOIN articles a ON a.id = i.article_id
	WHERE i.group_id = ? ORDER BY i.sort_order ASC`

	for g := range digest.Groups {
		itemRows, err := s.db.QueryContext(ctx, itemQuery, digest.Groups[g].ID)
		if err != nil {
			return fmt.Errorf("failed to query digest items: %w", err)
		}
		for itemRows.Next() {
			var item core.DigestItem
			var contentHTML, contentText, author, url sql.NullString
			var publishedAt sql.NullTime
			if err := itemRows.Scan(
				&item.ID, &item.GroupID, &item.ArticleID, &item.SortOrder, &item.Summary, &item.IsPrimary,
				&item.Article.ID, &item.Article.SourceID, &item.Article.Title,
				&contentHTML, &contentText, &author, &url,
				&publishedAt, &item.Article.Fingerprint, &item.Article.CreatedAt,
			); err != nil {
				itemRows.Close()
				return fmt.Errorf("failed to scan digest item: %w", err)
			}
			item.Article.ContentHTML = contentHTML.String
			item.Article.ContentText = contentText.String
			item.Article.Author = author.String
			item.Article.URL = url.String
			if publishedAt.Valid {
				t := publishedAt.Time
				item.Article.PublishedAt = &t
			}
			digest.Groups[g].Items = append(digest.Groups[g].Items, item)
		}
		if err := itemRows.Err(); err != nil {
			itemRows.Close()
			return err
		}
		itemRows.Close()
	}

	return nil
}
