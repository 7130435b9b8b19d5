package httpapp_test

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/postboard/internal/auth"
	"github.com/alphabot-ai/postboard/internal/client"
	"github.com/alphabot-ai/postboard/internal/config"
	httpapp "github.com/alphabot-ai/postboard/internal/http"
	"github.com/alphabot-ai/postboard/internal/posts"
	"github.com/alphabot-ai/postboard/internal/store/sqlite"
	"github.com/alphabot-ai/postboard/internal/token"
)

func TestEndToEndServer(t *testing.T) {
	st, err := sqlite.Open("file:e2e_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.SigningKey = "e2e-signing-key"
	cfg.TokenAlg = token.AlgSecp256k1

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer, err := token.NewSigner(cfg.TokenAlg, []byte(cfg.SigningKey))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	codec := token.NewCodec(signer, time.Hour, nil)
	authSvc := auth.NewService(st, codec, auth.Options{BcryptCost: bcrypt.MinCost, Logger: logger})
	postSvc := posts.NewService(st, posts.Options{MaxPageSize: cfg.MaxPageSize, Logger: logger})
	server, err := httpapp.NewServer(authSvc, postSvc, codec, cfg, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	httpServer := &http.Server{Handler: server}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	defer httpServer.Close()

	baseURL := "http://" + listener.Addr().String()
	if err := client.New(baseURL).Health(); err != nil {
		t.Fatalf("health: %v", err)
	}

	helper := client.NewTestHelper(baseURL)
	alice, err := helper.CreateAuthenticatedClient("alice")
	if err != nil {
		t.Fatalf("alice: %v", err)
	}
	bob, err := helper.CreateAuthenticatedClient("bob")
	if err != nil {
		t.Fatalf("bob: %v", err)
	}

	if _, err := client.New(baseURL).Signup("alice@example.com", "x", ""); !errors.Is(err, client.ErrAlreadyRegistered) {
		t.Fatalf("duplicate signup: %v", err)
	}

	session, err := alice.Me()
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if session.Account == nil || session.Account.Identifier != "alice@example.com" {
		t.Fatalf("unexpected session %+v", session)
	}

	key, err := alice.TokenKey()
	if err != nil {
		t.Fatalf("token key: %v", err)
	}
	if key.Alg != token.AlgSecp256k1 || key.PublicKey == "" {
		t.Fatalf("unexpected token key %+v", key)
	}

	post, err := alice.CreatePost("E2E Post", "Hello **world**")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.AuthorID != session.AccountID {
		t.Fatalf("author = %s, want %s", post.AuthorID, session.AccountID)
	}

	_, err = bob.UpdatePost(post.ID, "hijack", "")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner edit, got %v", err)
	}

	if _, err := bob.AddComment(post.ID, "nice"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	for _, want := range []string{"liked", "unliked", "liked"} {
		state, err := bob.ToggleLike(post.ID)
		if err != nil {
			t.Fatalf("like: %v", err)
		}
		if state != want {
			t.Fatalf("like state = %s, want %s", state, want)
		}
	}

	updated, err := alice.UpdatePost(post.ID, "E2E Post (edited)", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "E2E Post (edited)" || updated.Content != "Hello **world**" {
		t.Fatalf("unexpected update %+v", updated)
	}

	page, err := client.New(baseURL).ListPosts(client.ListOptions{Search: "EDITED"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || len(page.Posts) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	got := page.Posts[0]
	if len(got.Comments) != 1 || len(got.Likes) != 1 || got.Likes[0] == session.AccountID {
		t.Fatalf("unexpected engagement %+v", got)
	}

	if err := alice.DeletePost(post.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := alice.GetPost(post.ID); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}
