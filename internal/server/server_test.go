package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

func exchangeOK(_ context.Context, code string) (*models.Credentials, error) {
	return &models.Credentials{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func receive(t *testing.T, h *CallbackHandler) CallbackResult {
	t.Helper()
	select {
	case r := <-h.Result():
		return r
	case <-time.After(time.Second):
		t.Fatal("no callback result")
		return CallbackResult{}
	}
}

func TestCallbackHandler(t *testing.T) {
	t.Run("Exchanges code from query", func(t *testing.T) {
		h := NewCallbackHandler("/callback/spotify", "Spotify", "s1", exchangeOK)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback/spotify?state=s1&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Spotify connected") {
			t.Errorf("unexpected body %q", rec.Body.String())
		}

		r := receive(t, h)
		if r.Err != nil {
			t.Fatalf("unexpected error %v", r.Err)
		}
		if r.Credentials.AccessToken != "access-abc" {
			t.Errorf("unexpected token %q", r.Credentials.AccessToken)
		}
	})

	t.Run("Accepts form_post", func(t *testing.T) {
		h := NewCallbackHandler("/callback/apple_music", "Apple Music", "s2", exchangeOK)
		form := url.Values{"state": {"s2"}, "code": {"xyz"}}
		req := httptest.NewRequest(http.MethodPost, "/callback/apple_music", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if r := receive(t, h); r.Credentials == nil || r.Credentials.RefreshToken != "refresh-xyz" {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("Rejects wrong state", func(t *testing.T) {
		h := NewCallbackHandler("/cb", "Spotify", "good", exchangeOK)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=bad&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if r := receive(t, h); !errors.Is(r.Err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", r.Err)
		}
	})

	t.Run("Provider error", func(t *testing.T) {
		h := NewCallbackHandler("/cb", "Spotify", "s", exchangeOK)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=s&error=access_denied", nil))

		r := receive(t, h)
		if !errors.Is(r.Err, shared.ErrAuthFailed) || !strings.Contains(r.Err.Error(), "access_denied") {
			t.Errorf("unexpected error %v", r.Err)
		}
	})

	t.Run("Exchange failure", func(t *testing.T) {
		h := NewCallbackHandler("/cb", "Spotify", "s", func(context.Context, string) (*models.Credentials, error) {
			return nil, shared.ErrAuthFailed
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=s&code=abc", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if r := receive(t, h); !errors.Is(r.Err, shared.ErrAuthFailed) {
			t.Errorf("expected wrapped ErrAuthFailed, got %v", r.Err)
		}
	})

	t.Run("Processes one callback", func(t *testing.T) {
		h := NewCallbackHandler("/cb", "Spotify", "s", exchangeOK)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cb?state=s&code=one", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=s&code=two", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replay, got %d", rec.Code)
		}
		if r := receive(t, h); r.Credentials.AccessToken != "access-one" {
			t.Errorf("expected first code to win, got %q", r.Credentials.AccessToken)
		}
	})

	t.Run("Method not allowed", func(t *testing.T) {
		h := NewCallbackHandler("/cb", "Spotify", "s", exchangeOK)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cb", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("Middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(shared.NewLogger(io.Discard)))
		router.Handler(Route{Path: "/boom", Handler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("Returns credentials from the callback", func(t *testing.T) {
		h := NewCallbackHandler("/callback/soundcloud", "SoundCloud", "st", exchangeOK)
		srv := NewCallbackServer("127.0.0.1:0", h, logger)

		creds, err := srv.Run(context.Background(), 5*time.Second, func(addr string) {
			go func() {
				resp, err := http.Get("http://" + addr + "/callback/soundcloud?state=st&code=c1")
				if err == nil {
					resp.Body.Close()
				}
			}()
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if creds.AccessToken != "access-c1" {
			t.Errorf("unexpected token %q", creds.AccessToken)
		}
	})

	t.Run("Times out", func(t *testing.T) {
		h := NewCallbackHandler("/cb", "Spotify", "st", exchangeOK)
		_, err := NewCallbackServer("127.0.0.1:0", h, logger).Run(context.Background(), 50*time.Millisecond, nil)
		if !errors.Is(err, shared.ErrProviderTimeout) {
			t.Errorf("expected ErrProviderTimeout, got %v", err)
		}
	})

	t.Run("Context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		h := NewCallbackHandler("/cb", "Spotify", "st", exchangeOK)
		_, err := NewCallbackServer("127.0.0.1:0", h, logger).Run(ctx, time.Minute, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Callback path rejects other methods", func(t *testing.T) {
		h := NewCallbackHandler("/cb", "Spotify", "st", exchangeOK)

		var status int
		var allow string
		creds, err := NewCallbackServer("127.0.0.1:0", h, logger).Run(context.Background(), 5*time.Second, func(addr string) {
			req, _ := http.NewRequest(http.MethodDelete, "http://"+addr+"/cb?state=st&code=c1", nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Errorf("DELETE failed: %v", err)
				return
			}
			resp.Body.Close()
			status, allow = resp.StatusCode, resp.Header.Get("Allow")

			resp, err = http.Get("http://" + addr + "/cb?state=st&code=c2")
			if err == nil {
				resp.Body.Close()
			}
		})
		if status != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", status)
		}
		if !strings.Contains(allow, http.MethodGet) || !strings.Contains(allow, http.MethodPost) {
			t.Errorf("expected Allow to list GET and POST, got %q", allow)
		}
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if creds.AccessToken != "access-c2" {
			t.Errorf("expected the GET callback to be processed, got %q", creds.AccessToken)
		}
	})

	t.Run("Serves extra handlers", func(t *testing.T) {
		h := NewCallbackHandler("/cb", "Spotify", "st", exchangeOK)
		extra := Route{Path: "/healthz", Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})}

		var body string
		_, _ = NewCallbackServer("127.0.0.1:0", h, logger, extra).Run(context.Background(), 2*time.Second, func(addr string) {
			resp, err := http.Get("http://" + addr + "/healthz")
			if err != nil {
				t.Errorf("GET failed: %v", err)
				return
			}
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)
			body = string(data)
			h.send(CallbackResult{Err: errors.New("done")})
		})
		if body != "ok" {
			t.Errorf("expected ok, got %q", body)
		}
	})
}
