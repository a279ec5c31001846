package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pin-bot/project/domain"
)

// isNotFound は Firestore の NotFound エラーを判定するヘルパー関数です
func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// FirestoreRepo は domain.TenantRepository の Firestore 実装です
// ワークスペースのインストール情報のみを保存し、ピン留めの履歴は保存しません
type FirestoreRepo struct {
	cli        *firestore.Client
	tenantsCol string
	now        func() time.Time
}

// NewFirestoreRepo は Firestore リポジトリを初期化します
func NewFirestoreRepo(ctx context.Context, projectID, tenantsCol string) (*FirestoreRepo, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore: クライアント初期化失敗: %w", err)
	}

	return &FirestoreRepo{
		cli:        client,
		tenantsCol: tenantsCol,
		now:        time.Now,
	}, nil
}

// Get はインストール情報を取得します
func (repo *FirestoreRepo) Get(ctx context.Context, teamID string) (*domain.Tenant, error) {
	docRef := repo.cli.Collection(repo.tenantsCol).Doc(tenantDocID(teamID))

	snapshot, err := docRef.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w (team=%s)", domain.ErrTenantNotRegistered, teamID)
		}
		return nil, fmt.Errorf("firestore: テナント取得失敗 (team=%s): %w", teamID, err)
	}

	var t domain.Tenant
	if err := snapshot.DataTo(&t); err != nil {
		return nil, fmt.Errorf("firestore: テナント構造体変換失敗: %w", err)
	}

	return &t, nil
}

// UpsertBotTokenSecret は Botトークンのシークレット名を保存します
// 既存レコードの CreatedAt はトランザクション内で保持します
func (repo *FirestoreRepo) UpsertBotTokenSecret(ctx context.Context, teamID, secretName string) error {
	t := domain.Tenant{
		TeamID:             teamID,
		BotTokenSecretName: secretName,
		CreatedAt:          repo.now().Unix(),
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("firestore: UpsertBotTokenSecret検証失敗: %w", err)
	}

	docRef := repo.cli.Collection(repo.tenantsCol).Doc(tenantDocID(teamID))

	err := repo.cli.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(docRef)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil {
			var existing domain.Tenant
			if err := snapshot.DataTo(&existing); err == nil && existing.CreatedAt > 0 {
				t.CreatedAt = existing.CreatedAt
			}
		}
		return tx.Set(docRef, tenantData(t), firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("firestore: ボットトークン保存失敗 (team=%s): %w", teamID, err)
	}

	return nil
}

// Close は Firestore クライアントを閉じます
func (repo *FirestoreRepo) Close() error {
	if repo.cli != nil {
		return repo.cli.Close()
	}
	return nil
}

// ===== ヘルパー関数 =====

// tenantData は Firestore 保存用のマップを作成します
func tenantData(t domain.Tenant) map[string]interface{} {
	return map[string]interface{}{
		"team_id":               t.TeamID,
		"bot_token_secret_name": t.BotTokenSecretName,
		"created_at":            t.CreatedAt,
	}
}

// tenantDocID はテナントのドキュメントID を生成します
// 形式: "team"
func tenantDocID(team string) string {
	return team
}
