package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Dj01-glitch/docucloud-harmony/internal/auth"
	"github.com/Dj01-glitch/docucloud-harmony/internal/docs"
	"github.com/Dj01-glitch/docucloud-harmony/internal/session"
	"github.com/Dj01-glitch/docucloud-harmony/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityContextKey = "harmony_identity"

var (
	errMissingAccounts  = errors.New("account service dependency required")
	errMissingIssuer    = errors.New("token issuer dependency required")
	errMissingValidator = errors.New("session validator dependency required")
	errMissingRemote    = errors.New("remote document store dependency required")
)

// AccountService is the slice of the users service the router needs.
type AccountService interface {
	Register(ctx context.Context, displayName, email, password string) (users.Account, error)
	Authenticate(ctx context.Context, email, password string) (users.Account, error)
}

// SessionTokenIssuer issues session tokens for authenticated identities.
type SessionTokenIssuer interface {
	IssueSessionToken(identity session.Identity) (string, int64, error)
}

// SessionTokenValidator validates session tokens carried by requests.
type SessionTokenValidator interface {
	CookieName() string
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// Dependencies wires the HTTP surface to its collaborators.
type Dependencies struct {
	Accounts     AccountService
	TokenIssuer  SessionTokenIssuer
	Validator    SessionTokenValidator
	Remote       docs.RemoteStore
	ShareBaseURL string
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the document service.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.TokenIssuer == nil {
		return nil, errMissingIssuer
	}
	if deps.Validator == nil {
		return nil, errMissingValidator
	}
	if deps.Remote == nil {
		return nil, errMissingRemote
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	anonymousStore, err := docs.NewStore(docs.StoreConfig{
		Remote:     deps.Remote,
		Session:    session.New(),
		IDProvider: docs.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		accounts:     deps.Accounts,
		tokens:       deps.TokenIssuer,
		validator:    deps.Validator,
		registry:     newSessionRegistry(deps.Remote, logger),
		anonymous:    anonymousStore,
		shareBaseURL: strings.TrimRight(deps.ShareBaseURL, "/"),
		logger:       logger,
	}

	router.POST("/auth/signup", handler.handleSignup)
	router.POST("/auth/login", handler.handleLogin)
	router.GET("/shared/:shareId", handler.handleSharedFetch)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/documents", handler.handleListDocuments)
	protected.POST("/documents", handler.handleCreateDocument)
	protected.GET("/documents/:id", handler.handleGetDocument)
	protected.PATCH("/documents/:id", handler.handleUpdateDocument)
	protected.POST("/documents/:id/share", handler.handleToggleShare)

	return router, nil
}

type httpHandler struct {
	accounts     AccountService
	tokens       SessionTokenIssuer
	validator    SessionTokenValidator
	registry     *sessionRegistry
	anonymous    *docs.Store
	shareBaseURL string
	logger       *zap.Logger
}

type signupRequestPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponsePayload struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	TokenType   string      `json:"token_type"`
	User        userPayload `json:"user"`
}

type userPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type documentPayload struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Excerpt       string `json:"excerpt"`
	LastEdited    string `json:"last_edited"`
	Collaborators int    `json:"collaborators"`
	ShareID       string `json:"share_id,omitempty"`
	IsPublic      bool   `json:"is_public"`
	Synced        bool   `json:"synced"`
}

type createDocumentPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type updateDocumentPayload struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type sharePayload struct {
	ShareID  string `json:"share_id"`
	ShareURL string `json:"share_url"`
	IsPublic bool   `json:"is_public"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request signupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), request.Name, request.Email, request.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		case errors.Is(err, users.ErrInvalidEmail), errors.Is(err, users.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		default:
			h.logger.Error("signup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signup_failed"})
		}
		return
	}

	h.respondWithToken(c, account)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	h.respondWithToken(c, account)
}

func (h *httpHandler) respondWithToken(c *gin.Context, account users.Account) {
	identity := session.Identity{
		UserID:      account.UserID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		AvatarURL:   account.AvatarURL,
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(identity)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	if _, err := h.registry.acquire(c.Request.Context(), identity); err != nil {
		h.logger.Error("failed to open session store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_open_failed"})
		return
	}

	c.SetCookie(h.validator.CookieName(), token, int(expiresIn), "/", "", false, true)
	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User: userPayload{
			ID:          account.UserID,
			Email:       account.Email,
			DisplayName: account.DisplayName,
			AvatarURL:   account.AvatarURL,
		},
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	identity, ok := h.currentIdentity(c)
	if ok {
		h.registry.release(identity.UserID)
	}
	c.SetCookie(h.validator.CookieName(), "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	documents := store.Documents()
	payload := make([]documentPayload, 0, len(documents))
	for _, doc := range documents {
		payload = append(payload, toDocumentPayload(doc))
	}
	c.JSON(http.StatusOK, gin.H{"documents": payload})
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	var request createDocumentPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}

	doc, err := store.Create(c.Request.Context(), request.Title, request.Content)
	if err != nil {
		h.logger.Error("document create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, toDocumentPayload(doc))
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	doc, found := store.Document(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, toDocumentPayload(doc))
}

func (h *httpHandler) handleUpdateDocument(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	var request updateDocumentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	id := c.Param("id")
	updates := docs.DocumentUpdate{Title: request.Title, Content: request.Content}
	if !store.Update(c.Request.Context(), id, updates) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	doc, found := store.Document(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, toDocumentPayload(doc))
}

func (h *httpHandler) handleToggleShare(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if _, found := store.Document(id); !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	shareID, ok := store.TogglePublic(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusBadGateway, gin.H{"error": "share_toggle_failed"})
		return
	}

	// Report the flag the store confirmed, not the inverse of a pre-toggle read.
	isPublic := false
	if confirmed, found := store.Document(id); found {
		isPublic = confirmed.IsPublic
	}

	c.JSON(http.StatusOK, sharePayload{
		ShareID:  shareID,
		ShareURL: h.shareBaseURL + "/" + shareID,
		IsPublic: isPublic,
	})
}

func (h *httpHandler) handleSharedFetch(c *gin.Context) {
	doc, found := h.anonymous.DocumentByShareID(c.Request.Context(), c.Param("shareId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, toDocumentPayload(doc))
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(identityContextKey, claims.Identity())
	c.Next()
}

func (h *httpHandler) currentIdentity(c *gin.Context) (session.Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return session.Identity{}, false
	}
	identity, ok := value.(session.Identity)
	return identity, ok
}

func (h *httpHandler) sessionStore(c *gin.Context) (*docs.Store, bool) {
	identity, ok := h.currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	store, err := h.registry.acquire(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("failed to open session store",
			zap.String("user_id", identity.UserID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_open_failed"})
		return nil, false
	}
	return store, true
}

func toDocumentPayload(doc docs.Document) documentPayload {
	return documentPayload{
		ID:            doc.ID,
		Title:         doc.Title,
		Content:       doc.Content,
		Excerpt:       doc.Excerpt,
		LastEdited:    doc.LastEdited,
		Collaborators: doc.Collaborators,
		ShareID:       doc.ShareID,
		IsPublic:      doc.IsPublic,
		Synced:        doc.Synced,
	}
}
