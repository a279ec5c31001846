package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pin-bot/project/domain"
	"pin-bot/project/dto"
)

const signingSecret = "test-signing-secret"

// fakeEvents は受け取ったイベントを記録します
type fakeEvents struct {
	mu    sync.Mutex
	got   []domain.Event
	reply string
	err   error
}

func (f *fakeEvents) Handle(ctx context.Context, ev domain.Event) error {
	f.mu.Lock()
	f.got = append(f.got, ev)
	f.mu.Unlock()

	if cmd, ok := ev.(domain.CommandEvent); ok && cmd.Respond != nil && f.reply != "" {
		cmd.Respond(ctx, f.reply)
	}
	return f.err
}

func (f *fakeEvents) events() []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Event(nil), f.got...)
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func signedRequest(t *testing.T, path, contentType, body string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte("v0:" + ts + ":" + body))

	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("X-Slack-Request-Timestamp", ts)
	r.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(h.Sum(nil)))
	return r
}

// ===== /slack/events =====

func TestEventsHandler_URLVerification(t *testing.T) {
	events := &fakeEvents{}
	h := NewEventsHandler(signingSecret, events, testLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, "/slack/events", "application/json",
		`{"token":"x","challenge":"abc123","type":"url_verification"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", w.Body.String())
	assert.Empty(t, events.events())
}

func TestEventsHandler_ReactionAdded(t *testing.T) {
	events := &fakeEvents{}
	h := NewEventsHandler(signingSecret, events, testLogger())

	body := `{
		"type": "event_callback",
		"team_id": "T1",
		"event": {
			"type": "reaction_added",
			"user": "U1",
			"reaction": "pushpin",
			"item": {"type": "message", "channel": "C1", "ts": "1700000000.000100"}
		}
	}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, "/slack/events", "application/json", body))

	assert.Equal(t, http.StatusOK, w.Code)
	got := events.events()
	require.Len(t, got, 1)
	assert.Equal(t, domain.ReactionAddedEvent{
		Emoji:  domain.Emoji{Name: "pushpin"},
		Ref:    domain.MessageRef{TeamID: "T1", ChannelID: "C1", MessageID: "1700000000.000100"},
		UserID: "U1",
	}, got[0])
}

func TestEventsHandler_ErrorStillAcknowledged(t *testing.T) {
	events := &fakeEvents{err: domain.ErrForbidden}
	h := NewEventsHandler(signingSecret, events, testLogger())

	body := `{"type":"event_callback","team_id":"T1","event":{"type":"reaction_removed","user":"U1","reaction":"pushpin","item":{"type":"message","channel":"C1","ts":"1.0"}}}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, "/slack/events", "application/json", body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, events.events(), 1)
}

func TestEventsHandler_RejectsBadSignature(t *testing.T) {
	events := &fakeEvents{}
	h := NewEventsHandler(signingSecret, events, testLogger())

	r := signedRequest(t, "/slack/events", "application/json", `{"type":"event_callback"}`)
	r.Header.Set("X-Slack-Signature", "v0=0000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, events.events())
}

func TestEventsHandler_MethodNotAllowed(t *testing.T) {
	h := NewEventsHandler(signingSecret, &fakeEvents{}, testLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slack/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// ===== /slack/commands =====

func commandBody(command string) string {
	return url.Values{
		"command":    {command},
		"team_id":    {"T1"},
		"channel_id": {"C1"},
		"user_id":    {"U1"},
		"text":       {""},
	}.Encode()
}

func TestCommandsHandler_Register(t *testing.T) {
	events := &fakeEvents{reply: "コマンドを登録しました"}
	h := NewCommandsHandler(signingSecret, events, testLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, "/slack/commands", "application/x-www-form-urlencoded", commandBody("/pin_register")))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.SlackSlashResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ephemeral", resp.ResponseType)
	assert.Equal(t, "コマンドを登録しました", resp.Text)

	got := events.events()
	require.Len(t, got, 1)
	cmd, ok := got[0].(domain.CommandEvent)
	require.True(t, ok)
	assert.Equal(t, "register", cmd.Name)
	assert.Equal(t, domain.MessageRef{TeamID: "T1", ChannelID: "C1"}, cmd.Ref)
}

func TestCommandsHandler_RejectsBadSignature(t *testing.T) {
	events := &fakeEvents{}
	h := NewCommandsHandler(signingSecret, events, testLogger())

	r := signedRequest(t, "/slack/commands", "application/x-www-form-urlencoded", commandBody("/pin_register"))
	r.Header.Set("X-Slack-Request-Timestamp", "1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, events.events())
}

// ===== /slack/oauth_redirect =====

type fakeSecretWriter struct {
	values map[string]string
	err    error
}

func (f *fakeSecretWriter) PutSecret(ctx context.Context, name, value string) error {
	if f.err != nil {
		return f.err
	}
	f.values[name] = value
	return nil
}

type fakeTenantRepo struct {
	tenants map[string]string
}

func (f *fakeTenantRepo) Get(ctx context.Context, teamID string) (*domain.Tenant, error) {
	name, ok := f.tenants[teamID]
	if !ok {
		return nil, domain.ErrTenantNotRegistered
	}
	return &domain.Tenant{TeamID: teamID, BotTokenSecretName: name}, nil
}

func (f *fakeTenantRepo) UpsertBotTokenSecret(ctx context.Context, teamID, secretName string) error {
	f.tenants[teamID] = secretName
	return nil
}

// fakeClientCache は Invalidate された teamID を記録します
type fakeClientCache struct {
	invalidated []string
}

func (f *fakeClientCache) Invalidate(teamID string) {
	f.invalidated = append(f.invalidated, teamID)
}

func newOAuthHandler(secrets *fakeSecretWriter, tenants *fakeTenantRepo, exchange TokenExchanger) (*OAuthHandler, *fakeClientCache) {
	clients := &fakeClientCache{}
	return &OAuthHandler{
		secretPrefix:     "slack_token_",
		tenantRepository: tenants,
		secrets:          secrets,
		exchange:         exchange,
		clients:          clients,
		log:              testLogger(),
	}, clients
}

func okExchange(ctx context.Context, code string) (*slack.OAuthV2Response, error) {
	resp := &slack.OAuthV2Response{AccessToken: "xoxb-new"}
	resp.Team.ID = "T9"
	return resp, nil
}

func TestOAuthHandler_Install(t *testing.T) {
	secrets := &fakeSecretWriter{values: map[string]string{}}
	tenants := &fakeTenantRepo{tenants: map[string]string{}}
	h, clients := newOAuthHandler(secrets, tenants, okExchange)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slack/oauth_redirect?code=abc", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "xoxb-new", secrets.values["slack_token_T9"])
	assert.Equal(t, "slack_token_T9", tenants.tenants["T9"])
	// 再インストールで新しいトークンが使われるよう、キャッシュを捨てる
	assert.Equal(t, []string{"T9"}, clients.invalidated)
}

func TestOAuthHandler_Errors(t *testing.T) {
	failExchange := func(ctx context.Context, code string) (*slack.OAuthV2Response, error) {
		return nil, errors.New("invalid_code")
	}

	tests := []struct {
		name     string
		target   string
		secrets  *fakeSecretWriter
		exchange TokenExchanger
		want     int
	}{
		{name: "code なし", target: "/slack/oauth_redirect", secrets: &fakeSecretWriter{}, exchange: okExchange, want: http.StatusBadRequest},
		{name: "インストール拒否", target: "/slack/oauth_redirect?error=access_denied", secrets: &fakeSecretWriter{}, exchange: okExchange, want: http.StatusBadRequest},
		{name: "交換失敗", target: "/slack/oauth_redirect?code=bad", secrets: &fakeSecretWriter{}, exchange: failExchange, want: http.StatusBadRequest},
		{name: "保存失敗", target: "/slack/oauth_redirect?code=abc", secrets: &fakeSecretWriter{err: errors.New("boom")}, exchange: okExchange, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenants := &fakeTenantRepo{tenants: map[string]string{}}
			h, clients := newOAuthHandler(tt.secrets, tenants, tt.exchange)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.want, w.Code)
			assert.Empty(t, tenants.tenants)
			assert.Empty(t, clients.invalidated)
		})
	}
}
