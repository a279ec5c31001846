package secret

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Manager は Bot の認証情報を Secret Manager から読み書きします
type Manager struct {
	client    *secretmanager.Client
	projectID string
}

// NewManager は Secret Manager のマネージャーを初期化します
func NewManager(ctx context.Context, projectID string) (*Manager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret manager: クライアント初期化失敗: %w", err)
	}

	return &Manager{
		client:    client,
		projectID: projectID,
	}, nil
}

// GetSecret は指定されたシークレットの最新版の値を取得します
func (m *Manager) GetSecret(ctx context.Context, secretName string) (string, error) {
	// projects/{project_id}/secrets/{secret_name}/versions/latest
	result, err := m.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: versionName(m.projectID, secretName),
	})
	if err != nil {
		return "", fmt.Errorf("secret manager: シークレット取得失敗 (name=%s): %w", secretName, err)
	}

	value := string(result.GetPayload().GetData())
	if value == "" {
		return "", fmt.Errorf("secret manager: シークレット値が空です (name=%s)", secretName)
	}

	return value, nil
}

// PutSecret はシークレットが無ければ作成し、新しいバージョンとして値を追加します
func (m *Manager) PutSecret(ctx context.Context, secretName, secretValue string) error {
	_, err := m.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   fmt.Sprintf("projects/%s", m.projectID),
		SecretId: secretName,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	// 既存のシークレットはそのまま使う
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("secret manager: シークレット作成失敗 (name=%s): %w", secretName, err)
	}

	_, err = m.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent: secretPath(m.projectID, secretName),
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(secretValue),
		},
	})
	if err != nil {
		return fmt.Errorf("secret manager: シークレット保存失敗 (name=%s): %w", secretName, err)
	}

	return nil
}

// Close は Secret Manager クライアントを閉じます
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// secretPath はシークレットのリソース名を返します
func secretPath(projectID, secretName string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", projectID, secretName)
}

// versionName は最新バージョンのリソース名を返します
func versionName(projectID, secretName string) string {
	return secretPath(projectID, secretName) + "/versions/latest"
}
