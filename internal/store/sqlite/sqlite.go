package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/postboard/internal/model"
	"github.com/alphabot-ai/postboard/internal/store"

	"modernc.org/sqlite"
)

// SQLite's lower() only folds ASCII. fold() lowercases with the same rules
// the search term goes through, so non-ASCII titles match case-insensitively.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("fold", 1, foldFunc)
}

func foldFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: accounts and posts. Comments and likes are embedded in
	// the post row as JSON arrays.
	`
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_identifier ON accounts(identifier);

CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	author_id TEXT NOT NULL,
	comments TEXT NOT NULL DEFAULT '[]',
	likes TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC, id DESC);
`,
	// Future migrations go here:
	// Migration 2: `ALTER TABLE ...`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO accounts (id, identifier, display_name, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)
`, account.ID, account.Identifier, account.DisplayName, account.PasswordHash, account.CreatedAt.UnixNano())
	if err != nil {
		if isIdentifierTaken(err) {
			return store.ErrDuplicateIdentifier
		}
		return err
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, identifier, display_name, password_hash, created_at
FROM accounts
WHERE id = ?
`, id)
	return scanAccount(row)
}

// FindAccountByIdentifier matches identifier exactly; identifiers are
// case-sensitive.
func (s *Store) FindAccountByIdentifier(ctx context.Context, identifier string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, identifier, display_name, password_hash, created_at
FROM accounts
WHERE identifier = ?
`, identifier)
	return scanAccount(row)
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	comments, likes, err := encodeEmbedded(post)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO posts (id, title, content, author_id, comments, likes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, post.ID, post.Title, post.Content, post.AuthorID, comments, likes, post.CreatedAt.UnixNano(), post.UpdatedAt.UnixNano())
	return err
}

const postColumns = `p.id, p.title, p.content, p.author_id, p.comments, p.likes, p.created_at, p.updated_at, a.identifier, a.display_name`

func (s *Store) GetPost(ctx context.Context, id string) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+postColumns+`
FROM posts p
LEFT JOIN accounts a ON a.id = p.author_id
WHERE p.id = ?
LIMIT 1
`, id)
	return scanPost(row)
}

// UpdatePost overwrites every mutable column. The author and creation
// time are never rewritten.
func (s *Store) UpdatePost(ctx context.Context, post *model.Post) error {
	comments, likes, err := encodeEmbedded(post)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE posts SET title = ?, content = ?, comments = ?, likes = ?, updated_at = ?
WHERE id = ?
`, post.Title, post.Content, comments, likes, post.UpdatedAt.UnixNano(), post.ID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, opts store.PostListOpts) ([]model.Post, int, error) {
	where := ""
	var args []any
	if term := strings.ToLower(opts.Search); term != "" {
		where = `WHERE instr(fold(p.title), ?) > 0 OR instr(fold(p.content), ?) > 0`
		args = append(args, term, term)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// SQLite reads LIMIT -1 as "no limit".
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+postColumns+`
FROM posts p
LEFT JOIN accounts a ON a.id = p.author_id
`+where+`
ORDER BY p.created_at DESC, p.id DESC
LIMIT ? OFFSET ?
`, append(args, limit, offset)...)
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

func scanAccount(scanner interface{ Scan(dest ...any) error }) (model.Account, error) {
	var a model.Account
	var created int64
	if err := scanner.Scan(&a.ID, &a.Identifier, &a.DisplayName, &a.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, store.ErrNotFound
		}
		return model.Account{}, err
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	return a, nil
}

func scanPost(scanner interface{ Scan(dest ...any) error }) (model.Post, error) {
	var p model.Post
	var commentsRaw, likesRaw string
	var created, updated int64
	var identifier, displayName sql.NullString
	if err := scanner.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &commentsRaw, &likesRaw, &created, &updated, &identifier, &displayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	if err := json.Unmarshal([]byte(commentsRaw), &p.Comments); err != nil {
		return model.Post{}, fmt.Errorf("decode comments of post %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(likesRaw), &p.Likes); err != nil {
		return model.Post{}, fmt.Errorf("decode likes of post %s: %w", p.ID, err)
	}
	if p.Comments == nil {
		p.Comments = []model.Comment{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if identifier.Valid {
		p.Author = &model.PublicAccount{ID: p.AuthorID, Identifier: identifier.String, DisplayName: displayName.String}
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return p, nil
}

func encodeEmbedded(post *model.Post) (string, string, error) {
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
		return "", "", err
	}
	likesRaw, err := json.Marshal(likes)
	if err != nil {
		return "", "", err
	}
	return string(commentsRaw), string(likesRaw), nil
}

// isIdentifierTaken reports whether err is the unique index on
// accounts.identifier rejecting an insert. Other constraint failures,
// including id collisions, are returned as they are.
func isIdentifierTaken(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: accounts.identifier")
}
