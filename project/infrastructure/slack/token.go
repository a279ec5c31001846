package slack

import (
	"context"
	"fmt"

	"pin-bot/project/domain"
)

// TokenSource はワークスペースごとの Bot トークンを返します
type TokenSource interface {
	Token(ctx context.Context, teamID string) (string, error)
}

// SecretReader はシークレット名から値を取得します（secret.Manager が実装）
type SecretReader interface {
	GetSecret(ctx context.Context, secretName string) (string, error)
}

// StaticTokenSource は単一ワークスペース用の固定トークンです
type StaticTokenSource string

// Token はワークスペースに関係なく同じトークンを返します
func (s StaticTokenSource) Token(ctx context.Context, teamID string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("slack: トークンが設定されていません")
	}
	return string(s), nil
}

// TenantTokenSource は OAuth でインストールされたワークスペースのトークンを
// Firestore のインストール情報と Secret Manager から取得します
type TenantTokenSource struct {
	tenants domain.TenantRepository
	secrets SecretReader
}

// NewTenantTokenSource は TenantTokenSource を作成します
func NewTenantTokenSource(tenants domain.TenantRepository, secrets SecretReader) *TenantTokenSource {
	return &TenantTokenSource{
		tenants: tenants,
		secrets: secrets,
	}
}

// Token はインストール情報に記録されたシークレット名からトークンを取得します
func (s *TenantTokenSource) Token(ctx context.Context, teamID string) (string, error) {
	if teamID == "" {
		return "", fmt.Errorf("slack: TeamID が空です: %w", domain.ErrTenantNotRegistered)
	}

	tenant, err := s.tenants.Get(ctx, teamID)
	if err != nil {
		return "", fmt.Errorf("slack: インストール情報取得失敗 (team=%s): %w", teamID, err)
	}

	token, err := s.secrets.GetSecret(ctx, tenant.BotTokenSecretName)
	if err != nil {
		return "", fmt.Errorf("slack: トークン取得失敗 (team=%s): %w", teamID, err)
	}
	return token, nil
}
