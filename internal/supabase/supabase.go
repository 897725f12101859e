// Package supabase builds probe requests for the hosted auth (GoTrue) and
// REST (PostgREST) endpoints of a backend-as-a-service project.
package supabase

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/utils"
)

// Tier selects which project key a request carries.
type Tier string

const (
	TierAnon    Tier = "anon"
	TierService Tier = "service"
	TierNone    Tier = "none"
)

var (
	ErrMissingKey  = errors.New("no key configured for tier")
	ErrUnknownTier = errors.New("unknown credential tier")
)

// ParseTier maps a config string to a Tier. Empty means anon.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case "", TierAnon:
		return TierAnon, nil
	case TierService, "service_role":
		return TierService, nil
	case TierNone:
		return TierNone, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownTier)
}

// Credentials are the two project keys.
type Credentials struct {
	AnonKey    string
	ServiceKey string
}

// Key returns the key for tier; TierNone yields "".
func (c Credentials) Key(tier Tier) (string, error) {
	var key string
	switch tier {
	case TierNone:
		return "", nil
	case TierAnon, "":
		key = c.AnonKey
	case TierService:
		key = c.ServiceKey
	default:
		return "", fmt.Errorf("%q: %w", tier, ErrUnknownTier)
	}
	if key == "" {
		return "", fmt.Errorf("%s: %w", tier, ErrMissingKey)
	}
	return key, nil
}

// Headers returns the apikey/Authorization pair for tier plus a JSON content
// type, matching what the official client libraries send.
func (c Credentials) Headers(tier Tier) (map[string]string, error) {
	key, err := c.Key(tier)
	if err != nil {
		return nil, err
	}
	h := map[string]string{"Content-Type": "application/json"}
	if key != "" {
		h["apikey"] = key
		h["Authorization"] = "Bearer " + key
	}
	return h, nil
}

// Builder turns the recognized auth/REST patterns into probe requests.
type Builder struct {
	BaseURL string
	Creds   Credentials
}

// NewBuilder normalizes baseURL and returns a Builder.
func NewBuilder(baseURL string, creds Credentials) (*Builder, error) {
	base, err := utils.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("auth base url: %w", err)
	}
	return &Builder{BaseURL: base, Creds: creds}, nil
}

func (b *Builder) request(name string, tier Tier, method probe.Method, path string, body any) (probe.Request, error) {
	headers, err := b.Creds.Headers(tier)
	if err != nil {
		return probe.Request{}, fmt.Errorf("%s: %w", name, err)
	}
	return probe.Request{
		Name:    name,
		Kind:    probe.KindHTTP,
		Method:  method,
		URL:     utils.JoinURL(b.BaseURL, path),
		Headers: headers,
		Body:    body,
	}, nil
}

// SignUpParams is the body of POST /auth/v1/signup.
type SignUpParams struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// SignUp builds POST /auth/v1/signup.
func (b *Builder) SignUp(tier Tier, email, password, fullName string) (probe.Request, error) {
	p := SignUpParams{Email: email, Password: password}
	if fullName != "" {
		p.Data = map[string]any{"full_name": fullName}
	}
	return b.request("signup", tier, probe.MethodPost, "/auth/v1/signup", p)
}

// PasswordGrantParams is the body of POST /auth/v1/token?grant_type=password.
type PasswordGrantParams struct {
	Email              string         `json:"email"`
	Password           string         `json:"password"`
	GotrueMetaSecurity map[string]any `json:"gotrue_meta_security"`
}

// PasswordGrant builds the password sign-in request.
func (b *Builder) PasswordGrant(tier Tier, email, password string) (probe.Request, error) {
	p := PasswordGrantParams{Email: email, Password: password, GotrueMetaSecurity: map[string]any{}}
	return b.request("signin", tier, probe.MethodPost, "/auth/v1/token?grant_type=password", p)
}

// AdminListUsers builds GET /auth/v1/admin/users.
func (b *Builder) AdminListUsers(tier Tier) (probe.Request, error) {
	return b.request("admin-list-users", tier, probe.MethodGet, "/auth/v1/admin/users", nil)
}

// AdminUser is the body of POST /auth/v1/admin/users.
type AdminUser struct {
	ID           string         `json:"id,omitempty"`
	Email        string         `json:"email"`
	Password     string         `json:"password,omitempty"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// AdminCreateUser builds POST /auth/v1/admin/users. An empty ID is filled
// with a random UUID so the created row can be found again.
func (b *Builder) AdminCreateUser(tier Tier, u AdminUser) (probe.Request, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return b.request("admin-create-user", tier, probe.MethodPost, "/auth/v1/admin/users", u)
}

// OTPParams is the body of POST /auth/v1/otp.
type OTPParams struct {
	Email      string         `json:"email"`
	CreateUser bool           `json:"create_user"`
	Data       map[string]any `json:"data,omitempty"`
}

// OTP builds the magic-link request.
func (b *Builder) OTP(tier Tier, email string, createUser bool, data map[string]any) (probe.Request, error) {
	return b.request("otp", tier, probe.MethodPost, "/auth/v1/otp", OTPParams{Email: email, CreateUser: createUser, Data: data})
}

// RestSelect builds GET /rest/v1/<table>?select=*&limit=N.
func (b *Builder) RestSelect(tier Tier, table string, limit int) (probe.Request, error) {
	if strings.TrimSpace(table) == "" {
		return probe.Request{}, errors.New("rest select: table is required")
	}
	if limit <= 0 {
		limit = 1
	}
	path := "/rest/v1/" + url.PathEscape(table) + "?select=*&limit=" + strconv.Itoa(limit)
	req, err := b.request("rest-"+table, tier, probe.MethodGet, path, nil)
	return req, err
}

// RealtimeJoin builds the websocket probe for the realtime endpoint. The
// channel topic travels in the body; the key travels in the query string
// because browsers cannot set headers on a websocket upgrade.
func (b *Builder) RealtimeJoin(tier Tier, table string) (probe.Request, error) {
	key, err := b.Creds.Key(tier)
	if err != nil {
		return probe.Request{}, fmt.Errorf("realtime: %w", err)
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return probe.Request{}, fmt.Errorf("realtime: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", key)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()

	topic := "realtime:*"
	if table != "" {
		topic = "realtime:public:" + table
	}
	return probe.Request{
		Name:   "realtime-join",
		Kind:   probe.KindWebSocket,
		Method: probe.MethodGet,
		URL:    u.String(),
		Body:   map[string]any{"topic": topic},
	}, nil
}
