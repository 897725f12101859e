package mockauth

import "time"

// User is an account held by the mock. Password never leaves the process.
type User struct {
	ID               string         `json:"id"`
	Aud              string         `json:"aud"`
	Role             string         `json:"role"`
	Email            string         `json:"email"`
	Password         string         `json:"-"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
	AppMetadata      map[string]any `json:"app_metadata"`
}

// Confirmed reports whether the email address was confirmed.
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data"`
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

type adminCreateRequest struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

type otpRequest struct {
	Email      string         `json:"email"`
	CreateUser bool           `json:"create_user"`
	Data       map[string]any `json:"data"`
}

// siteLoginRequest accepts every login body shape the site probes send.
type siteLoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// errorResponse is the GoTrue error shape.
type errorResponse struct {
	Code      int    `json:"code,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Msg       string `json:"msg,omitempty"`
}

// grantError is the OAuth-style error returned by the token endpoint.
type grantError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// restError is the PostgREST error shape.
type restError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}
