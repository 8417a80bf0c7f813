package app

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gfi-bot/internal/config"
	"gfi-bot/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	const secret = "hook-secret"
	body := []byte(`{"action":"ping"}`)

	tests := []struct {
		name   string
		body   []byte
		header string
		want   bool
	}{
		{name: "valid signature", body: body, header: signBody(secret, body), want: true},
		{name: "tampered body", body: []byte(`{"action":"pong"}`), header: signBody(secret, body), want: false},
		{name: "wrong secret", body: body, header: signBody("other-secret", body), want: false},
		{name: "missing prefix", body: body, header: hex.EncodeToString([]byte("deadbeef")), want: false},
		{name: "empty header", body: body, header: "", want: false},
		{name: "garbage after prefix", body: body, header: "sha256=not-hex", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifySignature(secret, tt.body, tt.header))
		})
	}
}

// newWebhookApp builds an App with just enough wiring to serve the webhook
// endpoint. Unknown actions are logged and ignored by the service, so no
// mock collaborators are needed.
func newWebhookApp(secret string) *App {
	cfg := &config.Config{}
	cfg.GitHub.WebhookSecret = secret
	logger := zerolog.Nop()
	svc := service.New(nil, nil, config.DefaultsConfig{}, time.Hour, &logger)
	return &App{cfg: cfg, log: logger, service: svc}
}

func TestHandleWebhookSignature(t *testing.T) {
	const secret = "hook-secret"
	body := []byte(`{"action":"ping","sender":{"login":"octocat"}}`)

	post := func(a *App, body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set("X-Hub-Signature-256", signature)
		}
		w := httptest.NewRecorder()
		a.handleWebhook(w, req)
		return w
	}

	t.Run("valid signature is accepted", func(t *testing.T) {
		w := post(newWebhookApp(secret), body, signBody(secret, body))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"code":200`)
	})

	t.Run("tampered body is rejected", func(t *testing.T) {
		signature := signBody(secret, body)
		tampered := []byte(`{"action":"added","sender":{"login":"octocat"}}`)
		w := post(newWebhookApp(secret), tampered, signature)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		w := post(newWebhookApp(secret), body, "sha1=abcdef")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		w := post(newWebhookApp(secret), body, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("check is skipped when no secret is configured", func(t *testing.T) {
		w := post(newWebhookApp(""), body, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
