package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"pin-bot/project/domain"
)

// ピン操作の種類（メトリクスのラベル）
const (
	ActionPin   = "pin"
	ActionUnpin = "unpin"

	// OutcomeKept は他のユーザーのトリガー絵文字が残っていたため解除しなかったことを表します
	OutcomeKept = "kept"
)

// PinSynchronizer はリアクションの増減をピン留め状態に反映するサービスです
type PinSynchronizer interface {
	// OnReactionAdded はリアクション追加時に呼ばれ、トリガー絵文字ならメッセージをピン留めします
	OnReactionAdded(ctx context.Context, emoji domain.Emoji, ref domain.MessageRef) error

	// OnReactionRemoved はリアクション削除時に呼ばれ、トリガー絵文字が1つも残っていなければピン留めを解除します
	OnReactionRemoved(ctx context.Context, emoji domain.Emoji, ref domain.MessageRef) error
}

// pinSynchronizer は PinSynchronizer の実装です
// 状態は持たず、判断のたびにメッセージを取得し直すことで同時実行に耐えます
type pinSynchronizer struct {
	trigger string
	mp      MessagePort
	log     logrus.FieldLogger
	metrics MetricsPort
}

// NewPinSynchronizer は PinSynchronizer のインスタンスを作成します
func NewPinSynchronizer(trigger string, mp MessagePort, log logrus.FieldLogger, metrics MetricsPort) PinSynchronizer {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &pinSynchronizer{
		trigger: trigger,
		mp:      mp,
		log:     log,
		metrics: metrics,
	}
}

// OnReactionAdded はトリガー絵文字が付いたメッセージをピン留めします
func (ps *pinSynchronizer) OnReactionAdded(ctx context.Context, emoji domain.Emoji, ref domain.MessageRef) error {
	// トリガー絵文字以外は何もしない
	if !emoji.Matches(ps.trigger) {
		return nil
	}

	// メッセージ取得（1回のみ、失敗したらそのまま返す）
	msg, err := ps.mp.FetchMessage(ctx, ref)
	if err != nil {
		return fmt.Errorf("OnReactionAdded: メッセージ取得失敗 (ref=%s): %w", ref, err)
	}

	// ピン留め
	return ps.mutate(ActionPin, msg, ps.mp.PinMessage(ctx, msg))
}

// OnReactionRemoved はトリガー絵文字が無くなったメッセージのピン留めを解除します
func (ps *pinSynchronizer) OnReactionRemoved(ctx context.Context, emoji domain.Emoji, ref domain.MessageRef) error {
	// トリガー絵文字以外は何もしない
	if !emoji.Matches(ps.trigger) {
		return nil
	}

	// イベント発生時点の情報は古いため、必ず取得し直す
	msg, err := ps.mp.FetchMessage(ctx, ref)
	if err != nil {
		return fmt.Errorf("OnReactionRemoved: メッセージ取得失敗 (ref=%s): %w", ref, err)
	}

	// 他のユーザーのトリガー絵文字が残っていればピン留めを維持
	if n := msg.Reactions.Count(ps.trigger); n > 0 {
		ps.log.WithFields(logrus.Fields{
			"message": ref.String(),
			"remain":  n,
		}).Debug("トリガー絵文字が残っているためピン留めを維持")
		ps.metrics.ObserveMutation(ActionUnpin, OutcomeKept)
		return nil
	}

	// ピン留め解除
	return ps.mutate(ActionUnpin, msg, ps.mp.UnpinMessage(ctx, msg))
}

// mutate はピン操作の結果を分類し、すでに目的の状態だった場合は成功扱いにします
func (ps *pinSynchronizer) mutate(action string, msg *domain.Message, err error) error {
	outcome := domain.Classify(err)
	ps.metrics.ObserveMutation(action, outcome)

	entry := ps.log.WithFields(logrus.Fields{
		"action":  action,
		"message": msg.Ref.String(),
	})

	if err == nil {
		entry.Info("ピン状態を更新しました")
		return nil
	}

	// 同時リアクションによる重複操作はエラーにしない
	if errors.Is(err, domain.ErrAlreadyInDesiredState) {
		entry.WithError(err).Debug("すでに目的のピン状態です")
		return nil
	}

	return fmt.Errorf("%s: ピン操作失敗 (ref=%s): %w", action, msg.Ref, err)
}
