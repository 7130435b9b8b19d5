// Package client provides a Go client for the Postboard API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alphabot-ai/postboard/internal/model"
)

var (
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotAuthenticated  = errors.New("not authenticated")
)

// Client is a Postboard API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	TokenExp   time.Time
}

// APIError is a non-2xx reply decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Is lets errors.Is(err, ErrAlreadyRegistered) match a duplicate signup.
func (e *APIError) Is(target error) bool {
	return target == ErrAlreadyRegistered && e.Code == "DUPLICATE_IDENTIFIER"
}

// LoginResult is the reply to a successful login.
type LoginResult struct {
	Message   string              `json:"message"`
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	Account   model.PublicAccount `json:"account"`
}

// Session is the reply to /api/me.
type Session struct {
	Message   string               `json:"message"`
	AccountID string               `json:"account_id"`
	Account   *model.PublicAccount `json:"account,omitempty"`
}

type TokenKey struct {
	Alg       string `json:"alg"`
	PublicKey string `json:"public_key,omitempty"`
}

// ListOptions zero values are left for the server to default.
type ListOptions struct {
	Page   int
	Limit  int
	Search string
}

// New creates a new Postboard client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsAuthenticated returns true if the client holds an unexpired token.
func (c *Client) IsAuthenticated() bool {
	return c.Token != "" && time.Now().Before(c.TokenExp)
}

func (c *Client) Health() error {
	return c.do(http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}

// Signup registers an account.
func (c *Client) Signup(identifier, secret, displayName string) (*model.PublicAccount, error) {
	reqBody := map[string]string{
		"identifier":   identifier,
		"secret":       secret,
		"display_name": displayName,
	}
	var result struct {
		Account model.PublicAccount `json:"account"`
	}
	if err := c.do(http.MethodPost, "/api/signup", reqBody, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result.Account, nil
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(identifier, secret string) (*LoginResult, error) {
	reqBody := map[string]string{"identifier": identifier, "secret": secret}
	var result LoginResult
	if err := c.do(http.MethodPost, "/api/login", reqBody, http.StatusOK, &result); err != nil {
		return nil, err
	}
	c.Token = result.Token
	c.TokenExp = result.ExpiresAt
	return &result, nil
}

// SignupAndLogin registers the account if needed and logs in.
func (c *Client) SignupAndLogin(identifier, secret, displayName string) error {
	if _, err := c.Signup(identifier, secret, displayName); err != nil && !errors.Is(err, ErrAlreadyRegistered) {
		return fmt.Errorf("signup: %w", err)
	}
	if _, err := c.Login(identifier, secret); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func (c *Client) Me() (*Session, error) {
	var result Session
	if err := c.do(http.MethodGet, "/api/me", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) TokenKey() (*TokenKey, error) {
	var result TokenKey
	if err := c.do(http.MethodGet, "/api/token/key", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPosts fetches one page of posts, newest first.
func (c *Client) ListPosts(opts ListOptions) (*model.PostPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	path := "/api/posts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page model.PostPage
	if err := c.do(http.MethodGet, path, nil, http.StatusOK, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetPost(id string) (*model.Post, error) {
	var post model.Post
	if err := c.do(http.MethodGet, "/api/posts/"+url.PathEscape(id), nil, http.StatusOK, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreatePost(title, content string) (*model.Post, error) {
	reqBody := map[string]string{"title": title, "content": content}
	var result struct {
		Post model.Post `json:"post"`
	}
	if err := c.do(http.MethodPost, "/api/posts", reqBody, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result.Post, nil
}

// UpdatePost edits a post the caller owns. Empty arguments are left out
// of the request and keep their stored value.
func (c *Client) UpdatePost(id, title, content string) (*model.Post, error) {
	reqBody := map[string]string{}
	if title != "" {
		reqBody["title"] = title
	}
	if content != "" {
		reqBody["content"] = content
	}
	var result struct {
		Post model.Post `json:"post"`
	}
	if err := c.do(http.MethodPut, "/api/posts/"+url.PathEscape(id), reqBody, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result.Post, nil
}

func (c *Client) DeletePost(id string) error {
	return c.do(http.MethodDelete, "/api/posts/"+url.PathEscape(id), nil, http.StatusOK, nil)
}

func (c *Client) AddComment(postID, text string) (*model.Comment, error) {
	reqBody := map[string]string{"text": text}
	var result struct {
		Comment model.Comment `json:"comment"`
	}
	path := "/api/posts/" + url.PathEscape(postID) + "/comments"
	if err := c.do(http.MethodPost, path, reqBody, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result.Comment, nil
}

// ToggleLike flips the caller's like and returns "liked" or "unliked".
func (c *Client) ToggleLike(postID string) (string, error) {
	var result struct {
		State string `json:"state"`
	}
	path := "/api/posts/" + url.PathEscape(postID) + "/like"
	if err := c.do(http.MethodPost, path, nil, http.StatusOK, &result); err != nil {
		return "", err
	}
	return result.State, nil
}

// do performs a request and decodes a reply with status want into out.
func (c *Client) do(method, path string, body any, want int, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return decodeError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Code == "" {
		return &APIError{Status: status, Message: string(body)}
	}
	return &APIError{Status: status, Code: payload.Error.Code, Message: payload.Error.Message}
}

// TestHelper provides utilities for creating authenticated clients in tests.
type TestHelper struct {
	BaseURL string
}

// NewTestHelper creates a new test helper for the given base URL.
func NewTestHelper(baseURL string) *TestHelper {
	return &TestHelper{BaseURL: baseURL}
}

// CreateAuthenticatedClient signs up name@example.com (if needed) and
// returns a logged-in client.
func (h *TestHelper) CreateAuthenticatedClient(name string) (*Client, error) {
	c := New(h.BaseURL)
	if err := c.SignupAndLogin(name+"@example.com", "secret-"+name, name); err != nil {
		return nil, err
	}
	return c, nil
}

// GetToken creates an account (if needed) and returns an access token.
func (h *TestHelper) GetToken(name string) (string, error) {
	c, err := h.CreateAuthenticatedClient(name)
	if err != nil {
		return "", err
	}
	return c.Token, nil
}
