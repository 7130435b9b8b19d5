package main

import (
	"errors"
	"testing"
	"time"

	"github.com/alphabot-ai/postboard/internal/client"
	"github.com/spf13/pflag"
)

func TestCLIConfigRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := loadCLIConfig(); err == nil {
		t.Fatalf("expected error before anything is saved")
	}
	want := CLIConfig{
		BaseURL:    "http://example.test",
		Identifier: "ann@example.com",
		AccountID:  "a1",
		Token:      "tok",
		TokenExp:   time.Now().Add(time.Hour).Format(time.RFC3339),
	}
	if err := saveCLIConfig(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := loadCLIConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		t.Fatalf("authenticated client: %v", err)
	}
	if c.Token != "tok" || c.BaseURL != "http://example.test" {
		t.Fatalf("unexpected client %+v", c)
	}
}

func TestAuthenticatedClientRejectsMissingOrExpired(t *testing.T) {
	if _, err := authenticatedClient(CLIConfig{}); !errors.Is(err, client.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	expired := CLIConfig{Token: "tok", TokenExp: time.Now().Add(-time.Minute).Format(time.RFC3339)}
	if _, err := authenticatedClient(expired); err == nil {
		t.Fatalf("expected expired token to be refused")
	}
}

func TestPickURL(t *testing.T) {
	tests := []struct {
		flag, saved, want string
	}{
		{"", "", defaultBaseURL},
		{"", "http://saved", "http://saved"},
		{"http://flag/", "http://saved", "http://flag"},
	}
	for _, tt := range tests {
		if got := pickURL(tt.flag, tt.saved); got != tt.want {
			t.Errorf("pickURL(%q, %q) = %q, want %q", tt.flag, tt.saved, got, tt.want)
		}
	}
}

func TestPostIDArg(t *testing.T) {
	fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
	id := fs.String("id", "", "")
	if err := fs.Parse([]string{"p1"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, err := postIDArg(fs, *id); err != nil || got != "p1" {
		t.Fatalf("positional id: %q %v", got, err)
	}
	if got, _ := postIDArg(fs, "p2"); got != "p2" {
		t.Fatalf("flag should win, got %q", got)
	}

	empty := pflag.NewFlagSet("like", pflag.ContinueOnError)
	if _, err := postIDArg(empty, ""); err == nil {
		t.Fatalf("expected usage error")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run([]string{"frobnicate"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
