package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const version = "postboard v0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") && !isMetaFlag(args[0]) {
		return runServer(args)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "-h", "--help", "help":
		printUsage()
		return nil
	case "-v", "--version", "version":
		fmt.Println(version)
		return nil
	case "serve", "server":
		return runServer(rest)
	case "signup", "register":
		return cmdSignup(rest)
	case "login", "auth":
		return cmdLogin(rest)
	case "whoami", "status":
		return cmdWhoami(rest)
	case "posts", "list", "read":
		return cmdPosts(rest)
	case "show":
		return cmdShow(rest)
	case "post", "submit":
		return cmdPost(rest)
	case "edit":
		return cmdEdit(rest)
	case "delete", "rm":
		return cmdDelete(rest)
	case "comment":
		return cmdComment(rest)
	case "like":
		return cmdLike(rest)
	default:
		return fmt.Errorf("unknown command %q, run 'postboard help'", cmd)
	}
}

func isMetaFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "-v", "--version":
		return true
	}
	return false
}

func printUsage() {
	fmt.Println(`postboard - a small social posting backend

Usage: postboard <command> [options]

Quick Start:
  postboard signup --identifier ann@example.com --display-name ann
  postboard login --identifier ann@example.com
  postboard post --title "Hello" --content "First post"

Client Commands:
  signup              Create an account
  login               Log in and store the token
  whoami              Show the stored session and check it with the server
  posts               List posts (--page, --limit, --search)
  show <id>           Show one post with its comments
  post                Create a post
  edit <id>           Edit your own post
  delete <id>         Delete your own post
  comment <id>        Comment on a post
  like <id>           Like or unlike a post

Server:
  serve               Start the server (default if no command)

Environment Variables (server):
  POSTBOARD_CONFIG          YAML config file
  POSTBOARD_ADDR / PORT     Listen address (default: :5000)
  POSTBOARD_STORE           sqlite or postgres (default: sqlite)
  POSTBOARD_DB              SQLite path (default: postboard.db)
  DATABASE_URL              Postgres DSN
  REDIS_URL                 Enables the post cache
  POSTBOARD_SIGNING_KEY     Token signing secret (required in production)
  POSTBOARD_TOKEN_ALG       blake3 or secp256k1 (default: blake3)
  POSTBOARD_TOKEN_TTL       Token lifetime (default: 1h)
  POSTBOARD_LOG_LEVEL       debug, info, warn, error
  POSTBOARD_LOG_FORMAT      json or text`)
}
