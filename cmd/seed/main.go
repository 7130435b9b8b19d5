package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/spf13/pflag"

	"github.com/alphabot-ai/postboard/internal/client"
)

var accounts = []struct {
	identifier string
	name       string
}{
	{"ada@example.com", "Ada"},
	{"brian@example.com", "Brian"},
	{"grace@example.com", "Grace"},
	{"linus@example.com", "Linus"},
	{"margaret@example.com", "Margaret"},
}

var seedPosts = []struct {
	title   string
	content string
}{
	{"Hello, Postboard", "First post! Say hi in the comments."},
	{"Weekend reading list", "- *The Go Programming Language*\n- *Designing Data-Intensive Applications*\n- *A Philosophy of Software Design*"},
	{"Tabs or spaces?", "Asking for a friend. Please keep it civil."},
	{"Markdown works here", "You can use **bold**, _italics_ and `code`.\n\nTables too:\n\n| a | b |\n|---|---|\n| 1 | 2 |"},
	{"Show Postboard: a tiny CLI", "Try `postboard posts --search go` to find everything about Go."},
	{"Coffee recommendations", "Looking for a light roast that works as espresso."},
	{"Postmortem: the cache that never expired", "We forgot the TTL. Lessons learned inside."},
	{"Ask Postboard: favourite algorithm?", "Mine is reservoir sampling. Yours?"},
}

var comments = []string{
	"Great post, thanks for sharing.",
	"I disagree, but appreciate the perspective.",
	"Has anyone benchmarked this?",
	"This reminds me of the early days of the web.",
	"Would love a follow-up on this.",
	"Bookmarked.",
	"Spaces. Obviously.",
	"Same question here.",
}

func main() {
	baseURL := pflag.String("url", "http://localhost:5000", "Postboard server URL")
	password := pflag.String("password", "postboard-demo", "Password for every seeded account")
	pflag.Parse()

	log.Printf("Seeding %s...\n", *baseURL)

	var clients []*client.Client
	for _, acct := range accounts {
		c := client.New(*baseURL)
		if err := c.SignupAndLogin(acct.identifier, *password, acct.name); err != nil {
			log.Fatalf("account %s: %v", acct.identifier, err)
		}
		log.Printf("✓ Account ready: %s", acct.identifier)
		clients = append(clients, c)
	}

	var postIDs []string
	for _, p := range seedPosts {
		idx := rand.Intn(len(clients))
		post, err := clients[idx].CreatePost(p.title, p.content)
		if err != nil {
			log.Printf("✗ Failed to create post: %v", err)
			continue
		}
		postIDs = append(postIDs, post.ID)
		log.Printf("✓ Posted %s: %s (by %s)", post.ID, p.title, accounts[idx].name)

		// Spread out created_at so the newest-first order is visible.
		time.Sleep(50 * time.Millisecond)
	}

	commentCount := 0
	for _, postID := range postIDs {
		n := rand.Intn(4) + 1
		for i := 0; i < n; i++ {
			idx := rand.Intn(len(clients))
			if _, err := clients[idx].AddComment(postID, comments[rand.Intn(len(comments))]); err != nil {
				log.Printf("✗ Failed to comment: %v", err)
				continue
			}
			commentCount++
		}
	}
	log.Printf("✓ Added %d comments", commentCount)

	likeCount := 0
	for _, c := range clients {
		for _, postID := range postIDs {
			if rand.Float32() >= 0.4 {
				continue
			}
			if state, err := c.ToggleLike(postID); err == nil && state == "liked" {
				likeCount++
			}
		}
	}
	log.Printf("✓ Added %d likes", likeCount)

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Accounts: %d\n", len(accounts))
	fmt.Printf("Posts:    %d\n", len(postIDs))
	fmt.Printf("Password: %s\n", *password)
	fmt.Println("\nView at:", *baseURL+"/api/posts")
}
