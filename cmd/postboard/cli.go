package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/alphabot-ai/postboard/internal/client"
	"github.com/alphabot-ai/postboard/internal/model"
)

const defaultBaseURL = "http://localhost:5000"

// CLIConfig holds the CLI client state persisted to disk.
type CLIConfig struct {
	BaseURL    string `json:"base_url"`
	Identifier string `json:"identifier"`
	AccountID  string `json:"account_id"`
	Token      string `json:"token"`
	TokenExp   string `json:"token_expires"`
}

func cmdSignup(args []string) error {
	fs := pflag.NewFlagSet("signup", pflag.ContinueOnError)
	baseURL := fs.String("url", "", "Server URL (default: saved URL or "+defaultBaseURL+")")
	identifier := fs.String("identifier", "", "Account identifier, usually an email (required)")
	displayName := fs.String("display-name", "", "Display name")
	password := fs.String("password", "", "Password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *identifier == "" {
		return errors.New("--identifier is required")
	}

	cfg, _ := loadCLIConfig()
	cfg.BaseURL = pickURL(*baseURL, cfg.BaseURL)
	secret, err := readPassword(*password)
	if err != nil {
		return err
	}

	account, err := client.New(cfg.BaseURL).Signup(*identifier, secret, *displayName)
	if err != nil {
		return err
	}
	if err := saveCLIConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("✓ Registered %s\n", account.Identifier)
	fmt.Printf("  ID: %s\n", account.ID)
	fmt.Println("\nNext: postboard login --identifier " + account.Identifier)
	return nil
}

func cmdLogin(args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	baseURL := fs.String("url", "", "Server URL (default: saved URL or "+defaultBaseURL+")")
	identifier := fs.String("identifier", "", "Account identifier (default: last used)")
	password := fs.String("password", "", "Password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _ := loadCLIConfig()
	cfg.BaseURL = pickURL(*baseURL, cfg.BaseURL)
	if *identifier != "" {
		cfg.Identifier = *identifier
	}
	if cfg.Identifier == "" {
		return errors.New("--identifier is required")
	}
	secret, err := readPassword(*password)
	if err != nil {
		return err
	}

	c := client.New(cfg.BaseURL)
	result, err := c.Login(cfg.Identifier, secret)
	if err != nil {
		return err
	}
	cfg.AccountID = result.Account.ID
	cfg.Token = result.Token
	cfg.TokenExp = result.ExpiresAt.Format(time.RFC3339)
	if err := saveCLIConfig(cfg); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	fmt.Printf("✓ Logged in as %s (expires %s)\n", cfg.Identifier, cfg.TokenExp)
	return nil
}

func cmdWhoami(args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		fmt.Println("Status: Not logged in")
		fmt.Println("\nRun: postboard login --identifier <identifier>")
		return nil
	}
	fmt.Printf("Server:  %s\n", cfg.BaseURL)
	fmt.Printf("Account: %s (%s)\n", cfg.Identifier, cfg.AccountID)

	c, err := authenticatedClient(cfg)
	if err != nil {
		fmt.Printf("Token:   %v\n", err)
		return nil
	}
	session, err := c.Me()
	if err != nil {
		return err
	}
	fmt.Printf("Token:   valid until %s\n", cfg.TokenExp)
	if session.Account != nil && session.Account.DisplayName != "" {
		fmt.Printf("Name:    %s\n", session.Account.DisplayName)
	}
	return nil
}

func cmdPosts(args []string) error {
	fs := pflag.NewFlagSet("posts", pflag.ContinueOnError)
	page := fs.Int("page", 1, "Page number")
	limit := fs.Int("limit", 10, "Posts per page")
	search := fs.String("search", "", "Only posts whose title or content contains this text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _ := loadCLIConfig()
	result, err := client.New(pickURL("", cfg.BaseURL)).ListPosts(client.ListOptions{Page: *page, Limit: *limit, Search: *search})
	if err != nil {
		return err
	}

	fmt.Printf("\nPostboard (page %d, %d total)\n\n", result.Page, result.Total)
	for i, p := range result.Posts {
		fmt.Printf("%d. %s\n", (result.Page-1)*result.Limit+i+1, p.Title)
		fmt.Printf("   %d likes | %d comments | by %s | %s\n\n", len(p.Likes), len(p.Comments), authorName(p), p.ID)
	}
	return nil
}

func cmdShow(args []string) error {
	fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
	id := fs.String("id", "", "Post ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	postID, err := postIDArg(fs, *id)
	if err != nil {
		return err
	}

	cfg, _ := loadCLIConfig()
	post, err := client.New(pickURL("", cfg.BaseURL)).GetPost(postID)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s\n", post.Title)
	fmt.Printf("  by %s | %d likes | %s\n", authorName(*post), len(post.Likes), post.CreatedAt.Format(time.RFC3339))
	fmt.Printf("\n  %s\n", post.Content)
	if len(post.Comments) > 0 {
		fmt.Printf("\n  --- Comments (%d) ---\n", len(post.Comments))
		for _, comment := range post.Comments {
			fmt.Printf("  [%s] %s: %s\n", comment.CreatedAt.Format(time.RFC3339), comment.AuthorID, comment.Text)
		}
	}
	return nil
}

func cmdPost(args []string) error {
	fs := pflag.NewFlagSet("post", pflag.ContinueOnError)
	title := fs.String("title", "", "Post title (required)")
	content := fs.String("content", "", "Post content, markdown (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" || *content == "" {
		return errors.New("--title and --content are required")
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		return err
	}
	post, err := c.CreatePost(*title, *content)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Posted: %s\n", post.Title)
	fmt.Printf("  ID: %s\n", post.ID)
	return nil
}

func cmdEdit(args []string) error {
	fs := pflag.NewFlagSet("edit", pflag.ContinueOnError)
	id := fs.String("id", "", "Post ID")
	title := fs.String("title", "", "New title")
	content := fs.String("content", "", "New content")
	if err := fs.Parse(args); err != nil {
		return err
	}
	postID, err := postIDArg(fs, *id)
	if err != nil {
		return err
	}
	if *title == "" && *content == "" {
		return errors.New("nothing to change: pass --title and/or --content")
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		return err
	}
	post, err := c.UpdatePost(postID, *title, *content)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Updated: %s\n", post.Title)
	return nil
}

func cmdDelete(args []string) error {
	fs := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	id := fs.String("id", "", "Post ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	postID, err := postIDArg(fs, *id)
	if err != nil {
		return err
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		return err
	}
	if err := c.DeletePost(postID); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted post %s\n", postID)
	return nil
}

func cmdComment(args []string) error {
	fs := pflag.NewFlagSet("comment", pflag.ContinueOnError)
	id := fs.String("id", "", "Post ID")
	text := fs.String("text", "", "Comment text (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	postID, err := postIDArg(fs, *id)
	if err != nil {
		return err
	}
	if *text == "" {
		return errors.New("--text is required")
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		return err
	}
	if _, err := c.AddComment(postID, *text); err != nil {
		return err
	}
	fmt.Printf("✓ Commented on %s\n", postID)
	return nil
}

func cmdLike(args []string) error {
	fs := pflag.NewFlagSet("like", pflag.ContinueOnError)
	id := fs.String("id", "", "Post ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	postID, err := postIDArg(fs, *id)
	if err != nil {
		return err
	}

	c, err := loadAuthenticatedClient()
	if err != nil {
		return err
	}
	state, err := c.ToggleLike(postID)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Post %s is now %s\n", postID, state)
	return nil
}

func postIDArg(fs *pflag.FlagSet, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if fs.NArg() > 0 {
		return fs.Arg(0), nil
	}
	return "", fmt.Errorf("usage: postboard %s <post-id>", fs.Name())
}

func authorName(p model.Post) string {
	if p.Author == nil {
		return p.AuthorID
	}
	if p.Author.DisplayName != "" {
		return p.Author.DisplayName
	}
	return p.Author.Identifier
}

func pickURL(flagValue, saved string) string {
	switch {
	case flagValue != "":
		return strings.TrimRight(flagValue, "/")
	case saved != "":
		return saved
	default:
		return defaultBaseURL
	}
}

// readPassword returns flagValue when set, otherwise prompts on the
// terminal without echo. A non-terminal stdin is read up to the first
// newline so passwords can be piped in.
func readPassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return "", errors.New("no password on stdin (use --password)")
		}
		return line, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func cliConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "postboard", "cli.json"), nil
}

func loadCLIConfig() (CLIConfig, error) {
	path, err := cliConfigPath()
	if err != nil {
		return CLIConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CLIConfig{}, errors.New("not initialized")
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, err
	}
	return cfg, nil
}

func saveCLIConfig(cfg CLIConfig) error {
	path, err := cliConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return os.WriteFile(path, data, 0o600)
}

func authenticatedClient(cfg CLIConfig) (*client.Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w - run 'postboard login'", client.ErrNotAuthenticated)
	}
	c := client.New(pickURL("", cfg.BaseURL))
	c.Token = cfg.Token
	c.TokenExp, _ = time.Parse(time.RFC3339, cfg.TokenExp)
	if !c.IsAuthenticated() {
		return nil, errors.New("token expired - run 'postboard login'")
	}
	return c, nil
}

func loadAuthenticatedClient() (*client.Client, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, fmt.Errorf("%w - run 'postboard login'", client.ErrNotAuthenticated)
	}
	return authenticatedClient(cfg)
}
