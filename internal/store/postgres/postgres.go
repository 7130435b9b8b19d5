// Package postgres is the PostgreSQL implementation of store.Store,
// selected with POSTBOARD_STORE=postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alphabot-ai/postboard/internal/model"
	"github.com/alphabot-ai/postboard/internal/store"
)

type Store struct {
	db *pgxpool.Pool
}

// Connect opens a pgx connection pool with conservative defaults and
// applies pending migrations.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{db: pool}, nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	author_id TEXT NOT NULL,
	comments JSONB NOT NULL DEFAULT '[]'::jsonb,
	likes JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC, id DESC);
`,
}

func applySchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}

	var currentVersion int
	if err := db.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	const q = `INSERT INTO accounts (id, identifier, display_name, password_hash, created_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := s.db.Exec(ctx, q, account.ID, account.Identifier, account.DisplayName, account.PasswordHash, account.CreatedAt); err != nil {
		if isIdentifierTaken(err) {
			return store.ErrDuplicateIdentifier
		}
		return err
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	const q = `SELECT id, identifier, display_name, password_hash, created_at FROM accounts WHERE id=$1`
	return scanAccount(s.db.QueryRow(ctx, q, id))
}

func (s *Store) FindAccountByIdentifier(ctx context.Context, identifier string) (model.Account, error) {
	const q = `SELECT id, identifier, display_name, password_hash, created_at FROM accounts WHERE identifier=$1`
	return scanAccount(s.db.QueryRow(ctx, q, identifier))
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	comments, likes, err := encodeEmbedded(post)
	if err != nil {
		return err
	}
	const q = `INSERT INTO posts (id, title, content, author_id, comments, likes, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = s.db.Exec(ctx, q, post.ID, post.Title, post.Content, post.AuthorID, comments, likes, post.CreatedAt, post.UpdatedAt)
	return err
}

const postColumns = `p.id, p.title, p.content, p.author_id, p.comments, p.likes, p.created_at, p.updated_at, a.identifier, a.display_name`

func (s *Store) GetPost(ctx context.Context, id string) (model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts p LEFT JOIN accounts a ON a.id = p.author_id WHERE p.id=$1`
	return scanPost(s.db.QueryRow(ctx, q, id))
}

func (s *Store) UpdatePost(ctx context.Context, post *model.Post) error {
	comments, likes, err := encodeEmbedded(post)
	if err != nil {
		return err
	}
	const q = `UPDATE posts SET title=$1, content=$2, comments=$3, likes=$4, updated_at=$5 WHERE id=$6`
	tag, err := s.db.Exec(ctx, q, post.Title, post.Content, comments, likes, post.UpdatedAt, post.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, opts store.PostListOpts) ([]model.Post, int, error) {
	where := ""
	args := []any{}
	if term := strings.ToLower(opts.Search); term != "" {
		where = ` WHERE strpos(lower(p.title), $1) > 0 OR strpos(lower(p.content), $1) > 0`
		args = append(args, term)
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// LIMIT NULL means no limit.
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	q := fmt.Sprintf(`SELECT %s FROM posts p LEFT JOIN accounts a ON a.id = p.author_id%s
ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d`, postColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Identifier, &a.DisplayName, &a.PasswordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, store.ErrNotFound
		}
		return model.Account{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func scanPost(row pgx.Row) (model.Post, error) {
	var p model.Post
	var commentsRaw, likesRaw []byte
	var identifier, displayName *string
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &commentsRaw, &likesRaw, &p.CreatedAt, &p.UpdatedAt, &identifier, &displayName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	if err := json.Unmarshal(commentsRaw, &p.Comments); err != nil {
		return model.Post{}, fmt.Errorf("decode comments of post %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(likesRaw, &p.Likes); err != nil {
		return model.Post{}, fmt.Errorf("decode likes of post %s: %w", p.ID, err)
	}
	if p.Comments == nil {
		p.Comments = []model.Comment{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if identifier != nil {
		author := model.PublicAccount{ID: p.AuthorID, Identifier: *identifier}
		if displayName != nil {
			author.DisplayName = *displayName
		}
		p.Author = &author
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func encodeEmbedded(post *model.Post) ([]byte, []byte, error) {
	comments := post.Comments
	if comments == nil {
		comments = []model.Comment{}
	}
	likes := post.Likes
	if likes == nil {
		likes = []string{}
	}
	commentsRaw, err := json.Marshal(comments)
	if err != nil {
		return nil, nil, err
	}
	likesRaw, err := json.Marshal(likes)
	if err != nil {
		return nil, nil, err
	}
	return commentsRaw, likesRaw, nil
}

const identifierConstraint = "accounts_identifier_key"

func isIdentifierTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == identifierConstraint
}
