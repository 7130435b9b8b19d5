package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alphabot-ai/postboard/internal/model"
	"github.com/alphabot-ai/postboard/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTBOARD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POSTBOARD_TEST_DATABASE_URL not set")
	}
	st, err := Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	if _, err := Connect(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestAccountsAndPosts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	identifier := uuid.NewString() + "@x.com"
	account := model.Account{
		ID:           uuid.NewString(),
		Identifier:   identifier,
		DisplayName:  "Alice",
		PasswordHash: []byte("hash"),
		CreatedAt:    time.Now(),
	}
	if err := st.CreateAccount(ctx, &account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	dup := account
	dup.ID = uuid.NewString()
	if err := st.CreateAccount(ctx, &dup); err != store.ErrDuplicateIdentifier {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
	found, err := st.FindAccountByIdentifier(ctx, identifier)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if found.ID != account.ID {
		t.Fatalf("found %s, want %s", found.ID, account.ID)
	}

	// A unique marker keeps this test's posts apart from other rows.
	marker := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)
	post := model.Post{
		ID:        uuid.NewString(),
		Title:     "Hello " + marker,
		Content:   "World",
		AuthorID:  account.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreatePost(ctx, &post); err != nil {
		t.Fatalf("create post: %v", err)
	}

	got, err := st.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Author == nil || got.Author.DisplayName != "Alice" {
		t.Fatalf("expected resolved author, got %+v", got.Author)
	}

	got.Likes = append(got.Likes, "someone")
	got.Comments = append(got.Comments, model.Comment{AuthorID: "someone", Text: "nice", CreatedAt: now})
	got.UpdatedAt = now.Add(time.Second)
	if err := st.UpdatePost(ctx, &got); err != nil {
		t.Fatalf("update post: %v", err)
	}

	posts, total, err := st.ListPosts(ctx, store.PostListOpts{Search: marker, Limit: 10})
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if total != 1 || len(posts) != 1 {
		t.Fatalf("total=%d len=%d, want 1", total, len(posts))
	}
	if len(posts[0].Likes) != 1 || len(posts[0].Comments) != 1 {
		t.Fatalf("embedded collections not persisted: %+v", posts[0])
	}

	if err := st.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if _, err := st.GetPost(ctx, post.ID); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
