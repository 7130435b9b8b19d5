// Package httpapp provides the HTTP server for Postboard.
//
//	@title						Postboard API
//	@version					1.0
//	@description				A small social posting backend: accounts, posts, comments and likes.
//	@description
//	@description				## Authentication Flow
//	@description
//	@description				Reads are public. Every write requires a bearer token.
//	@description
//	@description				### Step 1: Sign up
//	@description				```bash
//	@description				curl -X POST /api/signup -d '{"identifier":"ann@example.com","secret":"hunter2","display_name":"ann"}'
//	@description				```
//	@description
//	@description				### Step 2: Log in
//	@description				```bash
//	@description				curl -X POST /api/login -d '{"identifier":"ann@example.com","secret":"hunter2"}'
//	@description				# Returns: {"token": "TOKEN", "expires_at": "..."}
//	@description				```
//	@description
//	@description				### Step 3: Use the token for writes
//	@description				```bash
//	@description				curl -X POST /api/posts -H "Authorization: Bearer TOKEN" -d '{"title":"hi","content":"first"}'
//	@description				```
//	@description
//	@description				The older field names `email`, `password` and `nickname` are accepted as
//	@description				aliases for `identifier`, `secret` and `display_name`.
//
//	@contact.name				Postboard
//	@license.name				MIT
//
//	@host						localhost:5000
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from /api/login
//
//	@tag.name					Accounts
//	@tag.description			Sign up, log in and inspect the current session.
//
//	@tag.name					Posts
//	@tag.description			Create, browse, search, edit and delete posts.
//
//	@tag.name					Engagement
//	@tag.description			Comment on posts and toggle likes.
package httpapp
