package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"pin-bot/project/domain"
	"pin-bot/project/infrastructure/config"
)

// SecretWriter はシークレットを保存します（secret.Manager が実装）
type SecretWriter interface {
	PutSecret(ctx context.Context, secretName, secretValue string) error
}

// ClientCache はワークスペースごとの API クライアントのキャッシュです（slack.Client が実装）
type ClientCache interface {
	Invalidate(teamID string)
}

// TokenExchanger は OAuth の code を Bot トークンに交換します
type TokenExchanger func(ctx context.Context, code string) (*slack.OAuthV2Response, error)

// OAuthHandler は Slack OAuth フロー（インストール完了）を処理します
type OAuthHandler struct {
	secretPrefix     string
	tenantRepository domain.TenantRepository
	secrets          SecretWriter
	exchange         TokenExchanger
	clients          ClientCache
	log              logrus.FieldLogger
}

// NewOAuthHandler は OAuth ハンドラーを作成します
// clients には再インストール時に古いトークンのクライアントを捨てるキャッシュを渡します
func NewOAuthHandler(cfg *config.Config, tenantRepository domain.TenantRepository, secrets SecretWriter, clients ClientCache, log logrus.FieldLogger) *OAuthHandler {
	return &OAuthHandler{
		secretPrefix:     cfg.SecretTokenPrefix,
		tenantRepository: tenantRepository,
		secrets:          secrets,
		exchange:         SlackTokenExchanger(cfg.SlackClientID, cfg.SlackClientSecret, cfg.OAuthRedirectURL),
		clients:          clients,
		log:              log,
	}
}

// SlackTokenExchanger は oauth.v2.access を呼び出す TokenExchanger を返します
func SlackTokenExchanger(clientID, clientSecret, redirectURL string) TokenExchanger {
	return func(ctx context.Context, code string) (*slack.OAuthV2Response, error) {
		return slack.GetOAuthV2ResponseContext(ctx, http.DefaultClient, clientID, clientSecret, code, redirectURL)
	}
}

// ServeHTTP は OAuth コールバック処理 (/slack/oauth_redirect)
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// ユーザーがインストールを拒否した場合
	if e := r.URL.Query().Get("error"); e != "" {
		http.Error(w, fmt.Sprintf("インストールがキャンセルされました: %s", e), http.StatusBadRequest)
		return
	}

	// クエリパラメータから code を取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code パラメータが不足しています", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Slack OAuth token 交換
	resp, err := h.exchange(ctx, code)
	if err != nil {
		h.log.WithError(err).Warn("OAuth トークン交換失敗")
		http.Error(w, fmt.Sprintf("トークン交換失敗: %v", err), http.StatusBadRequest)
		return
	}
	teamID := resp.Team.ID
	log := h.log.WithField("team", teamID)

	// Secret Manager にトークンを保存
	secretName := h.secretPrefix + teamID
	if err := h.secrets.PutSecret(ctx, secretName, resp.AccessToken); err != nil {
		log.WithError(err).Error("トークン保存失敗")
		http.Error(w, "トークン保存失敗", http.StatusInternalServerError)
		return
	}

	// Tenant として登録
	if err := h.tenantRepository.UpsertBotTokenSecret(ctx, teamID, secretName); err != nil {
		log.WithError(err).Error("テナント登録失敗")
		http.Error(w, "テナント登録失敗", http.StatusInternalServerError)
		return
	}

	// 再インストールの場合、古いトークンのクライアントを使わせない
	if h.clients != nil {
		h.clients.Invalidate(teamID)
	}
	log.Info("ワークスペースにインストールされました")

	// インストール成功画面を表示
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`
<!DOCTYPE html>
<html>
<head>
    <title>インストール成功</title>
    <style>
        body { font-family: sans-serif; margin: 40px; }
        .success { color: green; font-size: 18px; font-weight: bold; }
    </style>
</head>
<body>
    <div class="success">✓ Pin Bot がインストールされました！</div>
    <p>Bot をチャンネルに招待し、メッセージに :pushpin: を付けるとピン留めされます。</p>
    <p>最後の :pushpin: を外すとピン留めが解除されます。</p>
</body>
</html>
	`))
}
