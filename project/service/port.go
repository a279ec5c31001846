package service

import (
	"context"

	"pin-bot/project/domain"
)

// MessagePort はメッセージ取得とピン操作のポートです
// 実装はプラットフォームのエラーを domain のエラー（ErrNotFound, ErrForbidden, ErrTransient,
// ErrAlreadyInDesiredState）でラップして返します
type MessagePort interface {
	// FetchMessage は現在のリアクション状態を含むメッセージを取得します
	// キャッシュせず、毎回プラットフォームへ問い合わせます
	FetchMessage(ctx context.Context, ref domain.MessageRef) (*domain.Message, error)

	// PinMessage はメッセージをピン留めします
	// すでにピン留め済みの場合は domain.ErrAlreadyInDesiredState を返すことがあります
	PinMessage(ctx context.Context, msg *domain.Message) error

	// UnpinMessage はメッセージのピン留めを解除します
	// すでに解除済みの場合は domain.ErrAlreadyInDesiredState を返すことがあります
	UnpinMessage(ctx context.Context, msg *domain.Message) error
}

// PresencePort はBotのステータス表示を設定するポートです
type PresencePort interface {
	// SetPresence はステータス文字列を設定します。何度呼んでも失敗しない実装にします
	SetPresence(ctx context.Context, statusText string) error
}

// CommandRegistrar は管理コマンドの登録を行うポートです
type CommandRegistrar interface {
	// RegisterCommands はコマンド一式を（再）登録します
	// ref にはコマンドが実行された場所（TeamID, ChannelID）が入ります
	RegisterCommands(ctx context.Context, ref domain.MessageRef) error
}

// MetricsPort は処理結果を記録するポートです
type MetricsPort interface {
	// ObserveEvent はイベント1件の処理結果を記録します
	ObserveEvent(kind, outcome string)

	// ObserveMutation はピン操作1回の結果を記録します
	ObserveMutation(action, outcome string)
}

// NopMetrics は何も記録しない MetricsPort です
type NopMetrics struct{}

func (NopMetrics) ObserveEvent(kind, outcome string)      {}
func (NopMetrics) ObserveMutation(action, outcome string) {}
