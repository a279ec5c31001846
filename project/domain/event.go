package domain

import "context"

// Event はプラットフォームから届くイベントです
// 具体型は ReadyEvent / ReactionAddedEvent / ReactionRemovedEvent / CommandEvent / OtherEvent のみで、
// パッケージ外から実装を増やすことはできません
type Event interface {
	// Kind はログやメトリクスに使うイベント種別名を返します
	Kind() string

	isEvent()
}

// イベント種別名
const (
	KindReady           = "ready"
	KindReactionAdded   = "reaction_added"
	KindReactionRemoved = "reaction_removed"
	KindCommand         = "command"
	KindOther           = "other"
)

// ReadyEvent は接続確立時に一度届くイベントです
type ReadyEvent struct {
	Bot BotIdentity
}

// ReactionAddedEvent はメッセージにリアクションが付けられたイベントです
type ReactionAddedEvent struct {
	Emoji Emoji
	Ref   MessageRef

	// UserID はリアクションを付けたユーザー
	UserID string
}

// ReactionRemovedEvent はメッセージからリアクションが1つ外されたイベントです
// 「その絵文字が無くなった」ことは意味しません
type ReactionRemovedEvent struct {
	Emoji Emoji
	Ref   MessageRef

	// UserID はリアクションを外したユーザー
	UserID string
}

// CommandEvent は管理コマンドの呼び出しです
type CommandEvent struct {
	// Name はコマンド名（例: "register"）
	Name string

	// Ref はコマンドが実行された場所。TeamID と ChannelID のみ使われます
	Ref MessageRef

	// UserID はコマンドを実行したユーザー
	UserID string

	// Respond は実行者へ応答を返します。nil の場合は応答しません
	Respond func(ctx context.Context, text string) error
}

// OtherEvent は処理対象外のイベントです
type OtherEvent struct {
	// Type はプラットフォーム側のイベント型名
	Type string
}

func (ReadyEvent) Kind() string           { return KindReady }
func (ReactionAddedEvent) Kind() string   { return KindReactionAdded }
func (ReactionRemovedEvent) Kind() string { return KindReactionRemoved }
func (CommandEvent) Kind() string         { return KindCommand }
func (OtherEvent) Kind() string           { return KindOther }

func (ReadyEvent) isEvent()           {}
func (ReactionAddedEvent) isEvent()   {}
func (ReactionRemovedEvent) isEvent() {}
func (CommandEvent) isEvent()         {}
func (OtherEvent) isEvent()           {}
