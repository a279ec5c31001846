package domain

import (
	"context"
)

// TenantRepository はSlackワークスペースのインストール情報の永続化を担当します
// ピン留めの履歴は保存しません
type TenantRepository interface {
	// Get は指定されたチームIDのインストール情報を取得します
	// 存在しない場合は domain.ErrTenantNotRegistered を返します
	Get(ctx context.Context, teamID string) (*Tenant, error)

	// UpsertBotTokenSecret はBotトークンのシークレット名を保存します
	// レコードが存在しない場合は新規作成し、ある場合は上書きします
	// CreatedAtは初回作成時のみ設定されます
	// バリデーションエラー時は domain.ErrInvalid を返します
	UpsertBotTokenSecret(ctx context.Context, teamID, secretName string) error
}
