package domain

import "errors"

// ドメインエラー定義
var (
	// ErrInvalid は不正な値が設定された場合のエラー
	ErrInvalid = errors.New("ドメイン: 不正な値です")

	// ErrNotFound はメッセージやチャンネルが見つからない場合のエラー（イベント間に削除された等）
	ErrNotFound = errors.New("ドメイン: リソースが見つかりません")

	// ErrForbidden は取得・ピン留めの権限が無い場合のエラー
	ErrForbidden = errors.New("ドメイン: 権限がありません")

	// ErrTransient はレート制限や一時的なネットワーク障害のエラー（再試行はしない）
	ErrTransient = errors.New("ドメイン: 一時的なプラットフォームエラーです")

	// ErrAlreadyInDesiredState はピン留め済み・ピン解除済みを表します
	// 同時リアクションで普通に起こるため、呼び出し元へは伝播させません
	ErrAlreadyInDesiredState = errors.New("ドメイン: すでに目的の状態です")

	// ErrTenantNotRegistered はワークスペースがインストールされていない場合のエラー
	ErrTenantNotRegistered = errors.New("ドメイン: ワークスペースが登録されていません")
)

// エラー分類ラベル
const (
	ClassOK        = "ok"
	ClassInvalid   = "invalid"
	ClassNotFound  = "not_found"
	ClassForbidden = "forbidden"
	ClassTransient = "transient"
	ClassAlready   = "already"
	ClassTenant    = "tenant_not_registered"
	ClassUnknown   = "error"
)

// Classify はエラーをログ・メトリクス用のラベルに分類します
func Classify(err error) string {
	switch {
	case err == nil:
		return ClassOK
	case errors.Is(err, ErrAlreadyInDesiredState):
		return ClassAlready
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrForbidden):
		return ClassForbidden
	case errors.Is(err, ErrTransient):
		return ClassTransient
	case errors.Is(err, ErrTenantNotRegistered):
		return ClassTenant
	case errors.Is(err, ErrInvalid):
		return ClassInvalid
	default:
		return ClassUnknown
	}
}
