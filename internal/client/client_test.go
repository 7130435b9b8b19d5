package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginStoresToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["identifier"] != "ann@example.com" || body["secret"] != "pw" {
			t.Errorf("unexpected body %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":    "Login successful",
			"token":      "tok",
			"expires_at": exp,
			"account":    map[string]string{"id": "a1", "identifier": "ann@example.com"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.Login("ann@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if c.Token != "tok" || !c.TokenExp.Equal(exp) {
		t.Fatalf("token not stored: %q %v", c.Token, c.TokenExp)
	}
	if result.Account.ID != "a1" {
		t.Fatalf("unexpected account %+v", result.Account)
	}
	if !c.IsAuthenticated() {
		t.Fatalf("expected client to be authenticated")
	}
}

func TestBearerHeaderSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"Liked the post","state":"liked"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Token = "tok"
	state, err := c.ToggleLike("p1")
	if err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if state != "liked" {
		t.Fatalf("state = %q", state)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"DUPLICATE_IDENTIFIER","message":"identifier already in use"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Signup("ann@example.com", "pw", "ann")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "DUPLICATE_IDENTIFIER" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected duplicate to match ErrAlreadyRegistered")
	}
}

func TestAPIErrorNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL).Health()
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway || apiErr.Code != "" {
		t.Fatalf("unexpected error %v", err)
	}
	if errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("plain failure must not match ErrAlreadyRegistered")
	}
}

func TestListPostsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "5" || q.Get("search") != "go lang" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"total":7,"page":2,"limit":5,"posts":[{"id":"p6"},{"id":"p7"}]}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).ListPosts(ListOptions{Page: 2, Limit: 5, Search: "go lang"})
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if page.Total != 7 || len(page.Posts) != 2 || page.Posts[1].ID != "p7" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestUpdatePostOmitsEmptyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if _, ok := body["title"]; ok {
			t.Errorf("title should be omitted, got %v", body)
		}
		if body["content"] != "new" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"message":"Post updated successfully","post":{"id":"p1","content":"new"}}`))
	}))
	defer srv.Close()

	post, err := New(srv.URL).UpdatePost("p1", "", "new")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if post.Content != "new" {
		t.Fatalf("unexpected post %+v", post)
	}
}
