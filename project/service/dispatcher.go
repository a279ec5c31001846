package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pin-bot/project/domain"
)

// DefaultEventTimeout は1イベントの処理に許す最大時間です
const DefaultEventTimeout = 30 * time.Second

// Dispatcher は受信イベントを種別ごとのハンドラーへ振り分けます
type Dispatcher struct {
	pins     PinSynchronizer
	presence PresencePort
	commands CommandService
	status   string
	timeout  time.Duration
	log      logrus.FieldLogger
	metrics  MetricsPort

	mu       sync.RWMutex
	identity domain.BotIdentity
	ready    bool
}

// DispatcherOption は Dispatcher の任意設定です
type DispatcherOption func(*Dispatcher)

// WithEventTimeout は1イベントの処理タイムアウトを設定します
func WithEventTimeout(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.timeout = d
		}
	}
}

// WithMetrics は処理結果の記録先を設定します
func WithMetrics(m MetricsPort) DispatcherOption {
	return func(ds *Dispatcher) {
		if m != nil {
			ds.metrics = m
		}
	}
}

// NewDispatcher は Dispatcher を作成します
// statusText は接続完了時に設定するステータス文字列です
func NewDispatcher(
	pins PinSynchronizer,
	presence PresencePort,
	commands CommandService,
	statusText string,
	log logrus.FieldLogger,
	opts ...DispatcherOption,
) *Dispatcher {
	ds := &Dispatcher{
		pins:     pins,
		presence: presence,
		commands: commands,
		status:   statusText,
		timeout:  DefaultEventTimeout,
		log:      log,
		metrics:  NopMetrics{},
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Identity は Ready で記録したBot自身の情報を返します
func (ds *Dispatcher) Identity() (domain.BotIdentity, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.identity, ds.ready
}

// Dispatch はイベント1件を種別に応じたハンドラーで処理します
// 返したエラーはこのイベントの処理だけを終わらせます
func (ds *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.ReadyEvent:
		return ds.onReady(ctx, e)
	case domain.ReactionAddedEvent:
		return ds.pins.OnReactionAdded(ctx, e.Emoji, e.Ref)
	case domain.ReactionRemovedEvent:
		return ds.pins.OnReactionRemoved(ctx, e.Emoji, e.Ref)
	case domain.CommandEvent:
		return ds.onCommand(ctx, e)
	case domain.OtherEvent:
		return nil
	default:
		return fmt.Errorf("%w: 未対応のイベント型: %T", domain.ErrInvalid, ev)
	}
}

// Run はイベントストリームを読み続け、各イベントを独立した goroutine で処理します
// ctx の終了またはチャネルのクローズで戻り、処理中のイベントの完了を待ちます
func (ds *Dispatcher) Run(ctx context.Context, events <-chan domain.Event) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				ds.Handle(ctx, ev)
			}()
		}
	}
}

// Handle はタイムアウト付きでイベント1件を処理し、結果を記録します
// エラーも panic もここで止め、他のイベントへは影響させません
func (ds *Dispatcher) Handle(ctx context.Context, ev domain.Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, ds.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("イベント処理中に panic: %v", r)
		}
		ds.report(ev, err)
	}()

	return ds.Dispatch(ctx, ev)
}

// onReady はBot自身の情報を記録し、ステータスを設定します
// 再接続で何度届いても上書きするだけです
func (ds *Dispatcher) onReady(ctx context.Context, e domain.ReadyEvent) error {
	ds.mu.Lock()
	ds.identity = e.Bot
	ds.ready = true
	ds.mu.Unlock()

	ds.log.WithFields(logrus.Fields{
		"bot_user": e.Bot.UserID,
		"bot_name": e.Bot.Name,
	}).Info("接続準備完了")

	if ds.presence == nil || ds.status == "" {
		return nil
	}
	if err := ds.presence.SetPresence(ctx, ds.status); err != nil {
		return fmt.Errorf("onReady: ステータス設定失敗: %w", err)
	}
	return nil
}

// onCommand は管理コマンドを実行し、実行者へ結果を返します
func (ds *Dispatcher) onCommand(ctx context.Context, e domain.CommandEvent) error {
	if ds.commands == nil {
		return nil
	}

	text, err := ds.commands.Handle(ctx, e)
	if err != nil {
		text = fmt.Sprintf("コマンド実行に失敗しました: %v", err)
	}
	if e.Respond != nil {
		if rerr := e.Respond(ctx, text); rerr != nil {
			ds.log.WithError(rerr).Warn("コマンド応答の送信に失敗")
		}
	}
	return err
}

// report はイベント処理結果をログとメトリクスに残します
func (ds *Dispatcher) report(ev domain.Event, err error) {
	kind := domain.KindOther
	if ev != nil {
		kind = ev.Kind()
	}
	outcome := domain.Classify(err)
	ds.metrics.ObserveEvent(kind, outcome)

	if err == nil {
		return
	}

	entry := ds.log.WithError(err).WithFields(logrus.Fields{
		"event":   kind,
		"outcome": outcome,
	})
	switch outcome {
	case domain.ClassNotFound:
		// イベントとメッセージ取得の間に削除された等、スキップ扱い
		entry.Info("イベントをスキップしました")
	case domain.ClassForbidden, domain.ClassTransient:
		entry.Warn("イベント処理失敗")
	default:
		entry.Error("イベント処理失敗")
	}
}
