// Package identity talks to the Google Identity Toolkit REST API for
// provider-backed accounts. Only the two calls the product needs are
// implemented: password sign-up and password sign-in.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/config"
)

const defaultEndpoint = "https://identitytoolkit.googleapis.com/v1"

// Account is the provider's view of a signed-in user.
type Account struct {
	SubjectID string // Provider-local user ID.
	Email     string
	IDToken   string
}

// Provider authenticates email+password credentials against an
// external identity service.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Account, error)
	SignIn(ctx context.Context, email, password string) (*Account, error)
}

// GoogleProvider implements Provider against identitytoolkit.
type GoogleProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewGoogleProvider returns nil when no API key is configured;
// callers treat a nil provider as "local accounts only".
func NewGoogleProvider(cfg config.IdentityConfig) *GoogleProvider {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &GoogleProvider{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type tokenRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type tokenResponse struct {
	IDToken string `json:"idToken"`
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SignUp creates a provider account for the credentials.
func (p *GoogleProvider) SignUp(ctx context.Context, email, password string) (*Account, error) {
	return p.call(ctx, "accounts:signUp", email, password)
}

// SignIn verifies the credentials against the provider.
func (p *GoogleProvider) SignIn(ctx context.Context, email, password string) (*Account, error) {
	return p.call(ctx, "accounts:signInWithPassword", email, password)
}

func (p *GoogleProvider) call(ctx context.Context, action, email, password string) (*Account, error) {
	body, errMarshal := json.Marshal(tokenRequest{Email: email, Password: password, ReturnSecureToken: true})
	if errMarshal != nil {
		return nil, errMarshal
	}
	url := fmt.Sprintf("%s/%s?key=%s", p.endpoint, action, p.apiKey)
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if errReq != nil {
		return nil, errReq
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := p.client.Do(req)
	if errDo != nil {
		return nil, apperr.Upstream("identity provider unreachable", errDo)
	}
	defer resp.Body.Close()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return nil, apperr.Upstream("identity provider response unreadable", errRead)
	}
	var decoded tokenResponse
	if errDecode := json.Unmarshal(raw, &decoded); errDecode != nil {
		return nil, apperr.Upstream("identity provider returned malformed response", errDecode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapProviderError(decoded, resp.StatusCode)
	}
	if decoded.LocalID == "" || decoded.IDToken == "" {
		return nil, apperr.Upstream("identity provider returned an incomplete response", nil)
	}
	return &Account{SubjectID: decoded.LocalID, Email: decoded.Email, IDToken: decoded.IDToken}, nil
}

func mapProviderError(decoded tokenResponse, status int) error {
	message := ""
	if decoded.Error != nil {
		message = decoded.Error.Message
	}
	switch {
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(message, "USER_DISABLED"):
		return apperr.Unauthorized("invalid email or password")
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		return apperr.Conflict("email already registered with the identity provider")
	case strings.HasPrefix(message, "WEAK_PASSWORD"):
		return apperr.InvalidInput("password rejected by the identity provider")
	default:
		return apperr.Upstream(fmt.Sprintf("identity provider error (status %d)", status), nil)
	}
}
