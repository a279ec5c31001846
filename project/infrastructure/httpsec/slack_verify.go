package httpsec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/slack-go/slack"
)

// ErrInvalidSignature は署名検証に失敗したことを表します
var ErrInvalidSignature = errors.New("httpsec: 署名検証失敗")

// maxBodyBytes は受け付けるリクエスト本体の上限です
const maxBodyBytes = 1 << 20

// VerifySlackRequest は Slack からのリクエストを検証し、リクエスト本体を返します
// X-Slack-Signature と X-Slack-Request-Timestamp（5分以内）を確認し、
// 改ざんやリプレイ攻撃から保護します。r.Body は読み直せる状態に戻します
func VerifySlackRequest(r *http.Request, signingSecret string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("httpsec: リクエスト本体の読み込み失敗: %w", err)
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	// ヘッダ欠落・タイムスタンプ期限切れはここでエラー
	sv, err := slack.NewSecretsVerifier(r.Header, signingSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if _, err := sv.Write(body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if err := sv.Ensure(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return body, nil
}
