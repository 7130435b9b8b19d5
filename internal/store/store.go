package store

import (
	"context"
	"errors"

	"github.com/alphabot-ai/postboard/internal/model"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// PostListOpts filters and pages ListPosts. Search matches title or
// content as a case-insensitive substring; empty matches everything.
type PostListOpts struct {
	Search string
	Limit  int
	Offset int
}

type forUpdateKey struct{}

// ForUpdate marks ctx as reading a document that is about to be written
// back. Caching layers must answer such reads from the backing store.
func ForUpdate(ctx context.Context) context.Context {
	return context.WithValue(ctx, forUpdateKey{}, true)
}

func IsForUpdate(ctx context.Context) bool {
	v, _ := ctx.Value(forUpdateKey{}).(bool)
	return v
}

type Store interface {
	AccountStore
	PostStore
	Close() error
}

type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (model.Account, error)
	FindAccountByIdentifier(ctx context.Context, identifier string) (model.Account, error)
}

// PostStore persists whole post documents. UpdatePost replaces the stored
// title, content, comments, likes and updated_at; there is no
// compare-and-swap, so concurrent writers race and the last one wins.
type PostStore interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id string) error
	// ListPosts returns one page newest first along with the number of
	// posts matching opts.Search across all pages. A Limit of zero or
	// less returns every match.
	ListPosts(ctx context.Context, opts PostListOpts) ([]model.Post, int, error)
}
