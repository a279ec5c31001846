package httpsec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func sign(secret, ts, body string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte("v0:" + ts + ":" + body))
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}

func signedRequest(ts time.Time, body, signature string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	stamp := strconv.FormatInt(ts.Unix(), 10)
	if signature == "" {
		signature = sign(testSecret, stamp, body)
	}
	r.Header.Set("X-Slack-Request-Timestamp", stamp)
	r.Header.Set("X-Slack-Signature", signature)
	return r
}

func TestVerifySlackRequest(t *testing.T) {
	body := `{"type":"event_callback"}`
	r := signedRequest(time.Now(), body, "")

	got, err := VerifySlackRequest(r, testSecret)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	// 本体は読み直せる
	again, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(again))
}

func TestVerifySlackRequest_Rejects(t *testing.T) {
	body := `{"type":"event_callback"}`

	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "署名不一致", req: signedRequest(time.Now(), body, "v0=deadbeef")},
		{name: "別のシークレット", req: signedRequest(time.Now(), body, sign("other", strconv.FormatInt(time.Now().Unix(), 10), body))},
		{name: "古いタイムスタンプ", req: signedRequest(time.Now().Add(-10*time.Minute), body, "")},
		{name: "ヘッダなし", req: httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifySlackRequest(tt.req, testSecret)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}
