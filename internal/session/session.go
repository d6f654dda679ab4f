package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/uniquiz/quiz-client/internal/config"
	"github.com/uniquiz/quiz-client/internal/model"
	"github.com/uniquiz/quiz-client/internal/response"
)

// Common session errors.
var (
	// ErrSessionInvalidated means credential renewal failed and the local
	// session was cleared. The user must log in again.
	ErrSessionInvalidated = errors.New("session invalidated, please log in again")

	// ErrUnauthorized means the server rejected a request that had already
	// been retried with a freshly renewed token.
	ErrUnauthorized = errors.New("request unauthorized after token renewal")

	// ErrNotAuthenticated means no credential pair is held.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// APIError is a structured rejection from the quiz service.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Claims extends JWT registered claims with the fields the quiz service
// embeds in its tokens.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
}

// Request describes one HTTP call to the quiz backend.
type Request struct {
	Method string
	Path   string      // Relative to the base URL, e.g. "/student/classes"
	Body   interface{} // Marshaled as JSON when non-nil
}

// Manager signs every outbound call with the current access credential and
// transparently heals exactly one class of failure: access-token expiry.
// A 401 response triggers a single-flight renewal shared by all concurrent
// callers; the failed request is then replayed once with the new token.
type Manager struct {
	baseURL  string
	http     *http.Client
	store    *Store
	initData string // Static platform identity header, passed through unmodified
	renewals singleflight.Group
	log      zerolog.Logger
}

// NewManager creates a session manager over the given credential store.
func NewManager(cfg *config.Config, store *Store, log zerolog.Logger) *Manager {
	return &Manager{
		baseURL:  cfg.BaseURL,
		http:     &http.Client{Timeout: cfg.HTTPTimeout},
		store:    store,
		initData: cfg.TelegramInitData,
		log:      log.With().Str("component", "session").Logger(),
	}
}

// Authenticated reports whether a credential pair is currently held.
func (m *Manager) Authenticated() bool {
	return !m.store.Get().IsZero()
}

// Login exchanges email/password for a credential pair and stores it.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	status, body, err := m.roundTrip(ctx, http.MethodPost, "/auth/login",
		model.LoginRequest{Email: email, Password: password}, "")
	if err != nil {
		return err
	}

	var creds model.Credentials
	if err := decodeEnvelope(status, body, &creds); err != nil {
		return err
	}
	if err := m.store.Set(creds); err != nil {
		return err
	}

	m.log.Info().Str("email", email).Msg("Logged in")
	return nil
}

// Logout clears the credential pair.
func (m *Manager) Logout() error {
	m.log.Info().Msg("Logging out")
	return m.store.Clear()
}

// Claims parses the held access token without verifying its signature.
// Only the server can verify tokens; this is for display purposes (who is
// logged in, when the token expires).
func (m *Manager) Claims() (*Claims, error) {
	creds := m.store.Get()
	if creds.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(creds.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

// Do issues the request with the current access credential and decodes the
// response payload into out (which may be nil). On a 401 it renews the
// credential pair once and replays the request; a second 401 is terminal.
// Non-401 rejections pass through as *APIError.
func (m *Manager) Do(ctx context.Context, req Request, out interface{}) error {
	status, body, err := m.roundTrip(ctx, req.Method, req.Path, req.Body, m.store.Get().AccessToken)
	if err != nil {
		return err
	}

	if status != http.StatusUnauthorized {
		return decodeEnvelope(status, body, out)
	}

	// Authorization failure: renew once, then replay. The renewal is
	// single-flight — concurrent 401s share one in-flight renewal and all
	// observe the same outcome.
	m.log.Debug().Str("path", req.Path).Msg("Access token rejected, renewing")
	if err := m.renew(ctx); err != nil {
		return err
	}

	status, body, err = m.roundTrip(ctx, req.Method, req.Path, req.Body, m.store.Get().AccessToken)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		// Already retried with a fresh token. Do not loop.
		return ErrUnauthorized
	}
	return decodeEnvelope(status, body, out)
}

// renew exchanges the refresh credential for a new pair. At most one renewal
// runs at a time; any error clears the credential pair and surfaces
// ErrSessionInvalidated to every waiting caller.
func (m *Manager) renew(ctx context.Context) error {
	_, err, _ := m.renewals.Do("renew", func() (interface{}, error) {
		creds := m.store.Get()
		if creds.RefreshToken == "" {
			_ = m.store.Clear()
			return nil, ErrSessionInvalidated
		}

		// Deliberately not routed through Do: a rejected refresh must never
		// recurse into another renewal.
		status, body, err := m.roundTrip(ctx, http.MethodPost, "/auth/refresh",
			model.RefreshRequest{RefreshToken: creds.RefreshToken}, "")
		if err != nil {
			m.log.Warn().Err(err).Msg("Token renewal failed")
			_ = m.store.Clear()
			return nil, ErrSessionInvalidated
		}

		var renewed model.Credentials
		if err := decodeEnvelope(status, body, &renewed); err != nil {
			m.log.Warn().Err(err).Msg("Token renewal rejected")
			_ = m.store.Clear()
			return nil, ErrSessionInvalidated
		}

		if err := m.store.Set(renewed); err != nil {
			return nil, err
		}
		m.log.Debug().Msg("Credential pair renewed")
		return nil, nil
	})
	return err
}

// roundTrip performs a single HTTP exchange and returns the status code and
// raw body. It never interprets 401 — that is Do's job.
func (m *Manager) roundTrip(ctx context.Context, method, path string, body interface{}, accessToken string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(response.HeaderRequestID, uuid.New().String())
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if m.initData != "" {
		req.Header.Set("X-Telegram-Init-Data", m.initData)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// decodeEnvelope unwraps the service's response envelope. Rejections become
// *APIError; successful payloads are decoded into out when non-nil.
func decodeEnvelope(status int, body []byte, out interface{}) error {
	var env response.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope (status %d): %w", status, err)
	}

	if env.Error != nil {
		return &APIError{
			Status:  status,
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Fields:  env.Error.Fields,
		}
	}
	if status >= 400 {
		return &APIError{Status: status, Code: response.ErrInternal, Message: http.StatusText(status)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
