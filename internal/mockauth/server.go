// Package mockauth is an in-memory stand-in for a hosted auth/REST project.
// It answers the same request patterns authprobe sends, so plans can be run
// locally and tests have something realistic to talk to.
package mockauth

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raysh454/authprobe/internal/jsonutil"
	"github.com/raysh454/authprobe/internal/logging"
)

var (
	ErrMissingKeys  = errors.New("mockauth: anon and service keys are required")
	ErrUserExists   = errors.New("user already registered")
	ErrWeakPassword = errors.New("password should be at least 6 characters")
	ErrInvalidEmail = errors.New("invalid email address")
)

const minPasswordBytes = 6

type tier int

const (
	tierAnon tier = iota + 1
	tierService
)

type ctxKey struct{}

// Server is the HTTP + WebSocket surface of the mock.
type Server struct {
	cfg      Config
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
	now      func() time.Time

	mu      sync.RWMutex
	users   map[string]*User // id -> user
	byEmail map[string]string
	tables  map[string][]map[string]any
	tokens  map[string]string // access token -> user id
}

// NewServer creates a Server with an empty user table.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AnonKey == "" || cfg.ServiceKey == "" {
		return nil, ErrMissingKeys
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("mockauth")
	}

	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		logger:  logger,
		now:     time.Now,
		users:   map[string]*User{},
		byEmail: map[string]string{},
		tables:  map[string][]map[string]any{},
		tokens:  map[string]string{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.corsMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(s.keyMiddleware)

		r.Post("/auth/v1/signup", s.handleSignUp)
		r.Post("/auth/v1/token", s.handleToken)
		r.Post("/auth/v1/otp", s.handleOTP)
		r.Get("/rest/v1/{table}", s.handleRestSelect)
		r.Head("/rest/v1/{table}", s.handleRestSelect)

		r.Group(func(r chi.Router) {
			r.Use(s.requireService)
			r.Get("/auth/v1/admin/users", s.handleAdminListUsers)
			r.Post("/auth/v1/admin/users", s.handleAdminCreateUser)
		})
	})

	r.Get("/realtime/v1/websocket", s.handleRealtime)

	// Website-style endpoints, for the site plans.
	for _, p := range []string{"/api/auth/signin", "/api/login", "/auth/signin"} {
		r.Options(p, s.optionsHandler("POST"))
		r.Post(p, s.handleSiteSignIn)
	}
	r.Options("/api/auth/signup", s.optionsHandler("POST"))
	r.Post("/api/auth/signup", s.handleSiteSignUp)
	r.Options("/api/*", s.optionsHandler("GET, POST"))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, apikey, x-client-info")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// keyTier maps a presented key to its tier; 0 means unknown.
func (s *Server) keyTier(key string) tier {
	switch key {
	case s.cfg.ServiceKey:
		return tierService
	case s.cfg.AnonKey:
		return tierAnon
	}
	return 0
}

// keyMiddleware checks the apikey header, and the bearer token when one is
// sent, against the configured keys.
func (s *Server) keyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("apikey")
		if key == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "No API key found in request",
				"hint":    "No `apikey` request header or url param was found.",
			})
			return
		}
		t := s.keyTier(key)
		if t == 0 {
			writeError(w, http.StatusUnauthorized, "invalid_api_key")
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			bearer, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || (s.keyTier(bearer) == 0 && !s.validAccessToken(bearer)) {
				writeError(w, http.StatusUnauthorized, "invalid_api_key")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, t)))
	})
}

func (s *Server) requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t, _ := r.Context().Value(ctxKey{}).(tier); t != tierService {
			writeJSON(w, http.StatusForbidden, errorResponse{Code: http.StatusForbidden, ErrorCode: "not_admin", Msg: "User not allowed"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler. Bodies are not logged: they carry
// passwords.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path})
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// SeedTable installs rows served by GET /rest/v1/<name>.
func (s *Server) SeedTable(name string, rows []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = rows
}

// Users returns a snapshot of the user table ordered by creation time.
func (s *Server) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = jsonutil.Encode(w, v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return jsonutil.Decode(r.Body, v)
}

// --- Users ---

// createUser adds a user. The caller must hold s.mu.
func (s *Server) createUser(id, email, password string, confirmed bool, userMeta, appMeta map[string]any) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if _, ok := s.byEmail[email]; ok {
		return nil, ErrUserExists
	}
	if password != "" && len(password) < minPasswordBytes {
		return nil, ErrWeakPassword
	}
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, errors.New("id must be a UUID")
	}
	if _, taken := s.users[id]; taken {
		return nil, ErrUserExists
	}

	now := s.now().UTC()
	if userMeta == nil {
		userMeta = map[string]any{}
	}
	app := map[string]any{"provider": "email", "providers": []any{"email"}}
	for k, v := range appMeta {
		app[k] = v
	}
	u := &User{
		ID:           id,
		Aud:          "authenticated",
		Role:         "authenticated",
		Email:        email,
		Password:     password,
		CreatedAt:    now,
		UpdatedAt:    now,
		UserMetadata: userMeta,
		AppMetadata:  app,
	}
	if confirmed {
		u.EmailConfirmedAt = &now
	}
	s.users[id] = u
	s.byEmail[email] = id
	return u, nil
}

func (s *Server) userByEmail(email string) (*User, bool) {
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, false
	}
	return s.users[id], true
}

func (s *Server) issueToken(u *User) tokenResponse {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = u.ID
	s.mu.Unlock()
	return tokenResponse{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    3600,
		ExpiresAt:    s.now().Add(time.Hour).Unix(),
		RefreshToken: uuid.NewString(),
		User:         u,
	}
}

func (s *Server) validAccessToken(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[token]
	return ok
}

func userError(w http.ResponseWriter, err error) {
	code := "validation_failed"
	switch {
	case errors.Is(err, ErrUserExists):
		code = "user_already_exists"
	case errors.Is(err, ErrWeakPassword):
		code = "weak_password"
	case errors.Is(err, ErrInvalidEmail):
		code = "email_address_invalid"
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: http.StatusUnprocessableEntity, ErrorCode: code, Msg: err.Error()})
}

// --- Auth handlers ---

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body signUpRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, ErrorCode: "bad_json", Msg: "Could not parse request body as JSON"})
		return
	}
	if body.Password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: http.StatusUnprocessableEntity, ErrorCode: "validation_failed", Msg: "Signup requires a valid password"})
		return
	}

	s.mu.Lock()
	u, err := s.createUser("", body.Email, body.Password, false, body.Data, nil)
	var snapshot User
	if err == nil {
		snapshot = *u
	}
	s.mu.Unlock()
	if err != nil {
		userError(w, err)
		return
	}
	s.logger.Info("signed up user", logging.Field{Key: "id", Value: snapshot.ID})
	writeJSON(w, http.StatusOK, &snapshot)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if gt := r.URL.Query().Get("grant_type"); gt != "password" {
		writeJSON(w, http.StatusBadRequest, grantError{Error: "unsupported_grant_type", ErrorDescription: "unsupported grant_type " + strconv.Quote(gt)})
		return
	}
	var body tokenRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, grantError{Error: "invalid_request", ErrorDescription: "Could not read password grant params"})
		return
	}

	s.mu.RLock()
	u, ok := s.userByEmail(body.Email)
	var snapshot User
	if ok {
		snapshot = *u
	}
	s.mu.RUnlock()

	if !ok || snapshot.Password == "" || snapshot.Password != body.Password {
		writeJSON(w, http.StatusBadRequest, grantError{Error: "invalid_grant", ErrorDescription: "Invalid login credentials"})
		return
	}
	if !snapshot.Confirmed() {
		writeJSON(w, http.StatusBadRequest, grantError{Error: "invalid_grant", ErrorDescription: "Email not confirmed"})
		return
	}
	writeJSON(w, http.StatusOK, s.issueToken(&snapshot))
}

func (s *Server) handleOTP(w http.ResponseWriter, r *http.Request) {
	var body otpRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, ErrorCode: "bad_json", Msg: "Could not parse request body as JSON"})
		return
	}

	s.mu.Lock()
	_, exists := s.userByEmail(body.Email)
	var err error
	if !exists {
		if !body.CreateUser {
			s.mu.Unlock()
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: http.StatusUnprocessableEntity, ErrorCode: "otp_disabled", Msg: "Signups not allowed for otp"})
			return
		}
		_, err = s.createUser("", body.Email, "", false, body.Data, nil)
	}
	s.mu.Unlock()
	if err != nil {
		userError(w, err)
		return
	}
	// The real service sends a magic link email here.
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users := s.Users()
	s.logger.Info("listed users", logging.Field{Key: "count", Value: len(users)})
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "aud": "authenticated"})
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var body adminCreateRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, ErrorCode: "bad_json", Msg: "Could not parse request body as JSON"})
		return
	}

	s.mu.Lock()
	u, err := s.createUser(body.ID, body.Email, body.Password, body.EmailConfirm, body.UserMetadata, body.AppMetadata)
	var snapshot User
	if err == nil {
		snapshot = *u
	}
	s.mu.Unlock()
	if err != nil {
		userError(w, err)
		return
	}
	s.logger.Info("created user", logging.Field{Key: "id", Value: snapshot.ID})
	writeJSON(w, http.StatusOK, &snapshot)
}

// --- REST ---

func (s *Server) handleRestSelect(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	s.mu.RLock()
	rows, ok := s.tables[table]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, restError{
			Code:    "42P01",
			Message: `relation "public.` + table + `" does not exist`,
		})
		return
	}

	limit := len(rows)
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v >= 0 && v < limit {
			limit = v
		}
	}
	out := rows[:limit]
	if out == nil {
		out = []map[string]any{}
	}
	w.Header().Set("Content-Range", "0-"+strconv.Itoa(max(limit-1, 0))+"/*")
	writeJSON(w, http.StatusOK, out)
}

// --- Website ---

func (s *Server) handleSiteSignIn(w http.ResponseWriter, r *http.Request) {
	var body siteLoginRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	login := body.Email
	if login == "" {
		login = body.Username
	}
	if login == "" {
		login = body.UserID
	}

	s.mu.RLock()
	u, ok := s.userByEmail(login)
	var snapshot User
	if ok {
		snapshot = *u
	}
	s.mu.RUnlock()

	if !ok || snapshot.Password == "" || snapshot.Password != body.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": map[string]string{"id": snapshot.ID, "email": snapshot.Email}})
}

func (s *Server) handleSiteSignUp(w http.ResponseWriter, r *http.Request) {
	var body siteLoginRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	meta := map[string]any{}
	if body.Name != "" {
		meta["full_name"] = body.Name
	}

	s.mu.Lock()
	u, err := s.createUser("", body.Email, body.Password, true, meta, nil)
	var id string
	if err == nil {
		id = u.ID
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}
