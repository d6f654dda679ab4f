package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/uniquiz/quiz-client/internal/config"
	"github.com/uniquiz/quiz-client/internal/model"
	"github.com/uniquiz/quiz-client/internal/response"
)

func testManager(t *testing.T, baseURL string) (*Manager, *Store) {
	t.Helper()
	store := NewStore("")
	cfg := &config.Config{
		BaseURL:     baseURL,
		HTTPTimeout: 5 * time.Second,
	}
	return NewManager(cfg, store, zerolog.Nop()), store
}

func writeData(w http.ResponseWriter, data interface{}) {
	raw, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(response.Envelope{Data: raw})
}

func writeErr(w http.ResponseWriter, status int, code response.ErrCode) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response.Envelope{
		Error: &response.ErrorBody{Code: code, Message: response.GetMessage(code)},
	})
}

func TestDoAttachesBearerAndRequestHeaders(t *testing.T) {
	var gotAuth, gotReqID, gotInitData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get(response.HeaderRequestID)
		gotInitData = r.Header.Get("X-Telegram-Init-Data")
		writeData(w, map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	store := NewStore("")
	require.NoError(t, store.Set(model.Credentials{AccessToken: "tok", RefreshToken: "ref"}))
	cfg := &config.Config{BaseURL: srv.URL, HTTPTimeout: 5 * time.Second, TelegramInitData: "init-blob"}
	mgr := NewManager(cfg, store, zerolog.Nop())

	var out map[string]string
	require.NoError(t, mgr.Do(context.Background(), Request{Method: http.MethodGet, Path: "/ping"}, &out))
	require.Equal(t, "ok", out["status"])
	require.Equal(t, "Bearer tok", gotAuth)
	require.NotEmpty(t, gotReqID)
	require.Equal(t, "init-blob", gotInitData)
}

func TestConcurrent401sShareOneRenewal(t *testing.T) {
	var refreshCalls int64
	var retriedTokens sync.Map

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		var req model.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		// Hold the renewal in flight long enough that every concurrent 401
		// joins it rather than starting its own.
		time.Sleep(200 * time.Millisecond)
		writeData(w, model.Credentials{AccessToken: "fresh", RefreshToken: "ref-2"})
	})
	mux.HandleFunc("/student/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeErr(w, http.StatusUnauthorized, response.ErrTokenExpired)
			return
		}
		retriedTokens.Store(r.Header.Get(response.HeaderRequestID), true)
		writeData(w, model.Profile{ID: "s1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mgr, store := testManager(t, srv.URL)
	require.NoError(t, store.Set(model.Credentials{AccessToken: "stale", RefreshToken: "ref-1"}))

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out model.Profile
			errs[i] = mgr.Do(context.Background(), Request{Method: http.MethodGet, Path: "/student/profile"}, &out)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), atomic.LoadInt64(&refreshCalls))
	require.Equal(t, "fresh", store.Get().AccessToken)

	retried := 0
	retriedTokens.Range(func(_, _ interface{}) bool { retried++; return true })
	require.Equal(t, callers, retried)
}

func TestRenewalFailureClearsCredentialsAndFailsCallers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writeErr(w, http.StatusUnauthorized, response.ErrRefreshInvalid)
	})
	mux.HandleFunc("/student/profile", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, response.ErrTokenExpired)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mgr, store := testManager(t, srv.URL)
	require.NoError(t, store.Set(model.Credentials{AccessToken: "stale", RefreshToken: "dead"}))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = mgr.Do(context.Background(), Request{Method: http.MethodGet, Path: "/student/profile"}, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrSessionInvalidated)
	}
	require.True(t, store.Get().IsZero(), "both tokens must be cleared together")
}

func TestSecond401AfterRenewalIsTerminal(t *testing.T) {
	var profileCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, model.Credentials{AccessToken: "fresh", RefreshToken: "ref-2"})
	})
	mux.HandleFunc("/student/profile", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&profileCalls, 1)
		writeErr(w, http.StatusUnauthorized, response.ErrTokenInvalid)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mgr, store := testManager(t, srv.URL)
	require.NoError(t, store.Set(model.Credentials{AccessToken: "stale", RefreshToken: "ref-1"}))

	err := mgr.Do(context.Background(), Request{Method: http.MethodGet, Path: "/student/profile"}, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	// Retried exactly once, then surfaced — no retry loop.
	require.Equal(t, int64(2), atomic.LoadInt64(&profileCalls))
}

func TestNon401RejectionsPassThrough(t *testing.T) {
	var refreshCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
	})
	mux.HandleFunc("/student/quizzes/quiz-1/start", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusBadRequest, response.ErrAttemptsExhausted)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mgr, store := testManager(t, srv.URL)
	require.NoError(t, store.Set(model.Credentials{AccessToken: "tok", RefreshToken: "ref"}))

	err := mgr.Do(context.Background(), Request{Method: http.MethodPost, Path: "/student/quizzes/quiz-1/start"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, response.ErrAttemptsExhausted, apiErr.Code)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Zero(t, atomic.LoadInt64(&refreshCalls), "business rejections must not trigger renewal")
}

func TestRenewalWithoutRefreshTokenInvalidatesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/student/profile", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, response.ErrTokenExpired)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mgr, store := testManager(t, srv.URL)
	require.NoError(t, store.Set(model.Credentials{AccessToken: "stale"}))

	err := mgr.Do(context.Background(), Request{Method: http.MethodGet, Path: "/student/profile"}, nil)
	require.ErrorIs(t, err, ErrSessionInvalidated)
	require.True(t, store.Get().IsZero())
}

func TestLoginStoresCredentialPair(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "alice@example.com", req.Email)
		writeData(w, model.Credentials{AccessToken: "a1", RefreshToken: "r1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mgr, store := testManager(t, srv.URL)
	require.False(t, mgr.Authenticated())

	require.NoError(t, mgr.Login(context.Background(), "alice@example.com", "password123"))
	require.True(t, mgr.Authenticated())
	require.Equal(t, model.Credentials{AccessToken: "a1", RefreshToken: "r1"}, store.Get())

	require.NoError(t, mgr.Logout())
	require.False(t, mgr.Authenticated())
}
