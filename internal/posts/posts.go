// Package posts implements the post resource: listing, CRUD gated on
// authorship, comment append and the like toggle.
//
// Every mutation is a read followed by a whole-document write with no
// compare-and-swap, so two concurrent writers to one post race and the
// later write wins.
package posts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/alphabot-ai/postboard/internal/apperr"
	"github.com/alphabot-ai/postboard/internal/clock"
	"github.com/alphabot-ai/postboard/internal/model"
	"github.com/alphabot-ai/postboard/internal/render"
	"github.com/alphabot-ai/postboard/internal/store"
)

const (
	DefaultPage        = 1
	DefaultLimit       = 10
	DefaultMaxPageSize = 100
)

type Service struct {
	store       store.PostStore
	clock       clock.Clock
	maxPageSize int
	logger      *slog.Logger
}

type Options struct {
	// MaxPageSize caps ListInput.Limit. Zero leaves it uncapped.
	MaxPageSize int
	Clock       clock.Clock
	Logger      *slog.Logger
}

// ListInput carries raw query values; unparseable or non-positive page
// and limit fall back to the defaults.
type ListInput struct {
	Page   string
	Limit  string
	Search string
}

// UpdateInput fields left nil or empty keep their stored value.
type UpdateInput struct {
	Title   *string
	Content *string
}

func NewService(posts store.PostStore, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{store: posts, clock: opts.Clock, maxPageSize: opts.MaxPageSize, logger: opts.Logger}
}

func (s *Service) List(ctx context.Context, in ListInput) (model.PostPage, error) {
	page := positiveOr(in.Page, DefaultPage)
	limit := positiveOr(in.Limit, DefaultLimit)
	if s.maxPageSize > 0 && limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	offset := math.MaxInt32
	if page-1 <= offset/limit {
		offset = (page - 1) * limit
	}

	posts, total, err := s.store.ListPosts(ctx, store.PostListOpts{
		Search: strings.TrimSpace(in.Search),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return model.PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	for i := range posts {
		s.renderContent(&posts[i])
	}
	return model.PostPage{Total: total, Page: page, Limit: limit, Posts: posts}, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Post, error) {
	post, err := s.load(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	s.renderContent(&post)
	return post, nil
}

func (s *Service) Create(ctx context.Context, authorID, title, content string) (model.Post, error) {
	if strings.TrimSpace(title) == "" {
		return model.Post{}, apperr.Validation("title is required")
	}
	if strings.TrimSpace(content) == "" {
		return model.Post{}, apperr.Validation("content is required")
	}
	now := s.clock.Now().UTC()
	post := model.Post{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		AuthorID:  authorID,
		Comments:  []model.Comment{},
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreatePost(ctx, &post); err != nil {
		return model.Post{}, fmt.Errorf("create post: %w", err)
	}
	s.logger.InfoContext(ctx, "post created", "post_id", post.ID, "author_id", authorID)

	// Read back so the author is resolved the same way as on every other
	// read path.
	return s.Get(ctx, post.ID)
}

func (s *Service) Update(ctx context.Context, id, requesterID string, in UpdateInput) (model.Post, error) {
	post, err := s.loadOwned(ctx, id, requesterID)
	if err != nil {
		return model.Post{}, err
	}
	if in.Title != nil && *in.Title != "" {
		post.Title = *in.Title
	}
	if in.Content != nil && *in.Content != "" {
		post.Content = *in.Content
	}
	post.UpdatedAt = s.clock.Now().UTC()
	if err := s.save(ctx, &post); err != nil {
		return model.Post{}, err
	}
	s.renderContent(&post)
	return post, nil
}

// Delete removes the post permanently. Nothing else references posts, so
// there is nothing to cascade.
func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	if _, err := s.loadOwned(ctx, id, requesterID); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}
	s.logger.InfoContext(ctx, "post deleted", "post_id", id, "author_id", requesterID)
	return nil
}

// AddComment appends a comment. Any authenticated account may comment.
func (s *Service) AddComment(ctx context.Context, id, authorID, text string) (model.Comment, error) {
	post, err := s.loadForUpdate(ctx, id)
	if err != nil {
		return model.Comment{}, err
	}
	if strings.TrimSpace(text) == "" {
		return model.Comment{}, apperr.Validation("text is required")
	}
	comment := model.Comment{AuthorID: authorID, Text: text, CreatedAt: s.clock.Now().UTC()}
	post.Comments = append(post.Comments, comment)
	if err := s.save(ctx, &post); err != nil {
		return model.Comment{}, err
	}
	return comment, nil
}

// ToggleLike flips accountID's membership in the like set and reports the
// resulting state: Liked if it was absent, Unliked if it was present.
func (s *Service) ToggleLike(ctx context.Context, id, accountID string) (model.LikeState, error) {
	post, err := s.loadForUpdate(ctx, id)
	if err != nil {
		return model.NotLiked, err
	}

	state := model.Liked
	if post.HasLike(accountID) {
		state = model.Unliked
		likes := make([]string, 0, len(post.Likes))
		for _, liker := range post.Likes {
			if liker != accountID {
				likes = append(likes, liker)
			}
		}
		post.Likes = likes
	} else {
		post.Likes = append(post.Likes, accountID)
	}

	if err := s.save(ctx, &post); err != nil {
		return model.NotLiked, err
	}
	return state, nil
}

// load fetches a post, folding malformed ids into not-found.
func (s *Service) load(ctx context.Context, id string) (model.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Post{}, apperr.ErrNotFound
	}
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Post{}, apperr.ErrNotFound
		}
		return model.Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// loadForUpdate reads the post a caller is about to rewrite straight from
// the backing store, never from a cached copy.
func (s *Service) loadForUpdate(ctx context.Context, id string) (model.Post, error) {
	return s.load(store.ForUpdate(ctx), id)
}

func (s *Service) loadOwned(ctx context.Context, id, requesterID string) (model.Post, error) {
	post, err := s.loadForUpdate(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	if post.AuthorID != requesterID {
		return model.Post{}, apperr.ErrForbidden
	}
	return post, nil
}

func (s *Service) save(ctx context.Context, post *model.Post) error {
	if err := s.store.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (s *Service) renderContent(post *model.Post) {
	html, err := render.HTML(post.Content)
	if err != nil {
		s.logger.Warn("render content failed", "post_id", post.ID, "error", err)
		return
	}
	post.ContentHTML = html
}

func positiveOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
