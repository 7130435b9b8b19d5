package httpapp

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"

	"github.com/alphabot-ai/postboard/internal/apperr"
	"github.com/alphabot-ai/postboard/internal/auth"
	"github.com/alphabot-ai/postboard/internal/config"
	"github.com/alphabot-ai/postboard/internal/model"
	"github.com/alphabot-ai/postboard/internal/posts"
	"github.com/alphabot-ai/postboard/internal/token"
)

// gzipMinSize keeps tiny JSON bodies such as error replies uncompressed.
const gzipMinSize = 512

const subjectKey = "account_id"

type Server struct {
	auth    *auth.Service
	posts   *posts.Service
	tokens  *token.Codec
	cfg     config.Config
	logger  *slog.Logger
	handler http.Handler
}

func NewServer(authSvc *auth.Service, postSvc *posts.Service, tokens *token.Codec, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{auth: authSvc, posts: postSvc, tokens: tokens, cfg: cfg, logger: logger}

	gz, err := gzhttp.NewWrapper(gzhttp.MinSize(gzipMinSize))
	if err != nil {
		return nil, err
	}
	s.handler = gz(s.routes())
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.logRequests())
	r.Use(s.cors())

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/signup", s.handleSignup)
		api.POST("/login", s.handleLogin)
		api.GET("/me", s.requireAuth(), s.handleMe)
		api.GET("/token/key", s.handleTokenKey)

		api.GET("/posts", s.handleListPosts)
		api.GET("/posts/:id", s.handleGetPost)

		authed := api.Group("/posts", s.requireAuth())
		authed.POST("", s.handleCreatePost)
		authed.PUT("/:id", s.handleUpdatePost)
		authed.DELETE("/:id", s.handleDeletePost)
		authed.POST("/:id/comments", s.handleAddComment)
		authed.POST("/:id/like", s.handleToggleLike)
	}
	return r
}

type credentialsRequest struct {
	Identifier  string `json:"identifier"`
	Email       string `json:"email"`
	Secret      string `json:"secret"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname"`
}

func (r credentialsRequest) identifier() string  { return firstNonEmpty(r.Identifier, r.Email) }
func (r credentialsRequest) secret() string      { return firstNonEmpty(r.Secret, r.Password) }
func (r credentialsRequest) displayName() string { return firstNonEmpty(r.DisplayName, r.Nickname) }

// handleHealth godoc
//
//	@Summary	Liveness probe
//	@Tags		Accounts
//	@Produce	json
//	@Success	200	{object}	object{status=string}
//	@Router		/healthz [get]
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSignup godoc
//
//	@Summary		Create an account
//	@Description	Register a new account. The identifier must be unused.
//	@Tags			Accounts
//	@Accept			json
//	@Produce		json
//	@Param			account	body		object{identifier=string,secret=string,display_name=string}	true	"Account data"
//	@Success		201		{object}	object{message=string,account=model.PublicAccount}
//	@Failure		400		{object}	map[string]any	"Duplicate identifier or validation error"
//	@Router			/api/signup [post]
func (s *Server) handleSignup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return
	}
	account, err := s.auth.Register(c.Request.Context(), auth.RegisterInput{
		Identifier:  req.identifier(),
		Secret:      req.secret(),
		DisplayName: req.displayName(),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "account": account})
}

// handleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchange an identifier and secret for a bearer token.
//	@Tags			Accounts
//	@Accept			json
//	@Produce		json
//	@Param			credentials	body		object{identifier=string,secret=string}	true	"Credentials"
//	@Success		200			{object}	object{message=string,token=string,expires_at=string,account=model.PublicAccount}
//	@Failure		400			{object}	map[string]any	"Unknown identifier"
//	@Failure		401			{object}	map[string]any	"Wrong secret"
//	@Router			/api/login [post]
func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return
	}
	result, err := s.auth.Login(c.Request.Context(), req.identifier(), req.secret())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			respondError(c, http.StatusBadRequest, apperr.Code(err), "identifier not found")
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"account":    result.Account,
	})
}

// handleMe godoc
//
//	@Summary	Current session
//	@Tags		Accounts
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	object{message=string,account_id=string,account=model.PublicAccount}
//	@Failure	401	{object}	map[string]any	"Authentication required"
//	@Router		/api/me [get]
func (s *Server) handleMe(c *gin.Context) {
	result, err := s.auth.Me(c.Request.Context(), c.GetString(subjectKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	body := gin.H{"message": "Token verified", "account_id": result.AccountID}
	if result.Account != nil {
		body["account"] = result.Account
	}
	c.JSON(http.StatusOK, body)
}

// handleTokenKey godoc
//
//	@Summary		Token verification key
//	@Description	Reports the signing algorithm and, for secp256k1, the public key that verifies tokens.
//	@Tags			Accounts
//	@Produce		json
//	@Success		200	{object}	object{alg=string,public_key=string}
//	@Router			/api/token/key [get]
func (s *Server) handleTokenKey(c *gin.Context) {
	body := gin.H{"alg": s.tokens.Alg()}
	if key := s.tokens.PublicKey(); key != "" {
		body["public_key"] = key
	}
	c.JSON(http.StatusOK, body)
}

// handleListPosts godoc
//
//	@Summary		List posts
//	@Description	Newest first. search matches title or content, case-insensitively.
//	@Tags			Posts
//	@Produce		json
//	@Param			page	query		int		false	"Page number (default 1)"
//	@Param			limit	query		int		false	"Page size (default 10)"
//	@Param			search	query		string	false	"Substring filter"
//	@Success		200		{object}	model.PostPage
//	@Router			/api/posts [get]
func (s *Server) handleListPosts(c *gin.Context) {
	page, err := s.posts.List(c.Request.Context(), posts.ListInput{
		Page:   c.Query("page"),
		Limit:  c.Query("limit"),
		Search: c.Query("search"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if page.Posts == nil {
		page.Posts = []model.Post{}
	}
	c.JSON(http.StatusOK, page)
}

// handleGetPost godoc
//
//	@Summary	Get a post
//	@Tags		Posts
//	@Produce	json
//	@Param		id	path		string	true	"Post ID"
//	@Success	200	{object}	model.Post
//	@Failure	404	{object}	map[string]any	"Post not found"
//	@Router		/api/posts/{id} [get]
func (s *Server) handleGetPost(c *gin.Context) {
	post, err := s.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// handleCreatePost godoc
//
//	@Summary	Create a post
//	@Tags		Posts
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		post	body		object{title=string,content=string}	true	"Post data"
//	@Success	201		{object}	object{message=string,post=model.Post}
//	@Failure	400		{object}	map[string]any	"Validation error"
//	@Failure	401		{object}	map[string]any	"Authentication required"
//	@Router		/api/posts [post]
func (s *Server) handleCreatePost(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return
	}
	post, err := s.posts.Create(c.Request.Context(), c.GetString(subjectKey), req.Title, req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post created successfully", "post": post})
}

// handleUpdatePost godoc
//
//	@Summary		Edit a post
//	@Description	Only the author may edit. Empty or missing fields keep their value.
//	@Tags			Posts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string								true	"Post ID"
//	@Param			post	body		object{title=string,content=string}	true	"Fields to change"
//	@Success		200		{object}	object{message=string,post=model.Post}
//	@Failure		403		{object}	map[string]any	"Not the author"
//	@Failure		404		{object}	map[string]any	"Post not found"
//	@Router			/api/posts/{id} [put]
func (s *Server) handleUpdatePost(c *gin.Context) {
	var req struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return
	}
	post, err := s.posts.Update(c.Request.Context(), c.Param("id"), c.GetString(subjectKey), posts.UpdateInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post updated successfully", "post": post})
}

// handleDeletePost godoc
//
//	@Summary	Delete a post
//	@Tags		Posts
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Post ID"
//	@Success	200	{object}	object{message=string}
//	@Failure	403	{object}	map[string]any	"Not the author"
//	@Failure	404	{object}	map[string]any	"Post not found"
//	@Router		/api/posts/{id} [delete]
func (s *Server) handleDeletePost(c *gin.Context) {
	if err := s.posts.Delete(c.Request.Context(), c.Param("id"), c.GetString(subjectKey)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// handleAddComment godoc
//
//	@Summary	Comment on a post
//	@Tags		Engagement
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string				true	"Post ID"
//	@Param		comment	body		object{text=string}	true	"Comment"
//	@Success	201		{object}	object{message=string,comment=model.Comment}
//	@Failure	400		{object}	map[string]any	"Empty text"
//	@Failure	404		{object}	map[string]any	"Post not found"
//	@Router		/api/posts/{id}/comments [post]
func (s *Server) handleAddComment(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return
	}
	comment, err := s.posts.AddComment(c.Request.Context(), c.Param("id"), c.GetString(subjectKey), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Comment added", "comment": comment})
}

// handleToggleLike godoc
//
//	@Summary		Like or unlike a post
//	@Description	Flips the caller's membership in the post's like set.
//	@Tags			Engagement
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Post ID"
//	@Success		200	{object}	object{message=string,state=string}
//	@Failure		404	{object}	map[string]any	"Post not found"
//	@Router			/api/posts/{id}/like [post]
func (s *Server) handleToggleLike(c *gin.Context) {
	state, err := s.posts.ToggleLike(c.Request.Context(), c.Param("id"), c.GetString(subjectKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	message := "Liked the post"
	if state == model.Unliked {
		message = "Unliked the post"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "state": state.String()})
}

var errorStatus = map[error]int{
	apperr.ErrUnauthenticated:     http.StatusUnauthorized,
	apperr.ErrForbidden:           http.StatusForbidden,
	apperr.ErrNotFound:            http.StatusNotFound,
	apperr.ErrDuplicateIdentifier: http.StatusBadRequest,
	apperr.ErrBadCredentials:      http.StatusUnauthorized,
	apperr.ErrValidation:          http.StatusBadRequest,
}

var errorMessage = map[error]string{
	apperr.ErrUnauthenticated:     "invalid or expired token",
	apperr.ErrForbidden:           "permission denied",
	apperr.ErrNotFound:            "post not found",
	apperr.ErrDuplicateIdentifier: "identifier already in use",
	apperr.ErrBadCredentials:      "invalid password",
}

// fail writes err using its apperr kind. Anything unrecognised is logged
// and reported as a bare 500.
func (s *Server) fail(c *gin.Context, err error) {
	for sentinel, status := range errorStatus {
		if !errors.Is(err, sentinel) {
			continue
		}
		message, ok := errorMessage[sentinel]
		if !ok {
			message = err.Error()
		}
		respondError(c, status, apperr.Code(err), message)
		return
	}
	s.logger.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"error", err,
	)
	respondError(c, http.StatusInternalServerError, apperr.Code(err), "internal server error")
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Microsecond)
}
