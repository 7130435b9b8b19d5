package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/alphabot-ai/postboard/internal/model"
	"github.com/alphabot-ai/postboard/internal/store"
)

func TestAccounts(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	account := model.Account{
		ID:           "acct-1",
		Identifier:   "a@x.com",
		DisplayName:  "Alice",
		PasswordHash: []byte("$2a$10$hash"),
		CreatedAt:    time.Now(),
	}
	if err := st.CreateAccount(ctx, &account); err != nil {
		t.Fatalf("create account: %v", err)
	}

	got, err := st.FindAccountByIdentifier(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if got.ID != "acct-1" || string(got.PasswordHash) != "$2a$10$hash" {
		t.Fatalf("unexpected account: %+v", got)
	}

	byID, err := st.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if byID.Identifier != "a@x.com" || byID.DisplayName != "Alice" {
		t.Fatalf("unexpected account: %+v", byID)
	}

	dup := account
	dup.ID = "acct-2"
	if err := st.CreateAccount(ctx, &dup); err != store.ErrDuplicateIdentifier {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}

	reused := account
	reused.Identifier = "other@x.com"
	err = st.CreateAccount(ctx, &reused)
	if err == nil || err == store.ErrDuplicateIdentifier {
		t.Fatalf("id collision should fail without ErrDuplicateIdentifier, got %v", err)
	}

	// Identifiers are case-sensitive.
	upper := account
	upper.ID = "acct-3"
	upper.Identifier = "A@X.COM"
	if err := st.CreateAccount(ctx, &upper); err != nil {
		t.Fatalf("create differently-cased account: %v", err)
	}

	if _, err := st.FindAccountByIdentifier(ctx, "nobody@x.com"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.GetAccount(ctx, "missing"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
