package domain

import (
	"fmt"
	"strings"
)

// Emoji はリアクションに使われた絵文字を表します
type Emoji struct {
	// ID はカスタム絵文字のID。Unicode 絵文字の場合は空です
	ID string

	// Name は Unicode 絵文字そのもの（Discord）または絵文字名（Slack, 例: "pushpin"）
	Name string
}

// Matches は絵文字がトリガー絵文字と一致するかを判定します
// カスタム絵文字は同名でも Unicode トリガーとは一致しません
func (e Emoji) Matches(trigger string) bool {
	if e.ID != "" || trigger == "" {
		return false
	}
	return e.Name == trigger
}

// String はログ出力用の表現を返します
func (e Emoji) String() string {
	if e.ID != "" {
		return fmt.Sprintf("%s:%s", e.Name, e.ID)
	}
	return e.Name
}

// メッセージを一意に指す参照（不変）
type MessageRef struct {
	// TeamID はSlackワークスペースID、またはDiscordギルドID（DMの場合は空）
	TeamID string

	// ChannelID はメッセージが投稿されたチャンネルのID
	ChannelID string

	// MessageID はメッセージID（Slackではメッセージのts）
	MessageID string
}

// Validate はMessageRefの必須項目を検証します
func (r MessageRef) Validate() error {
	if strings.TrimSpace(r.ChannelID) == "" {
		return fmt.Errorf("%w: ChannelIDは必須項目です", ErrInvalid)
	}
	if strings.TrimSpace(r.MessageID) == "" {
		return fmt.Errorf("%w: MessageIDは必須項目です", ErrInvalid)
	}
	return nil
}

// String はログ出力用の表現を返します
func (r MessageRef) String() string {
	return fmt.Sprintf("%s:%s:%s", r.TeamID, r.ChannelID, r.MessageID)
}

// Reaction はメッセージに付いている絵文字1種類とその数です
type Reaction struct {
	Emoji Emoji
	Count int
}

// ReactionSnapshot は取得時点でメッセージに付いているリアクションの一覧です
// 判断のたびに取得し直し、キャッシュしてはいけません
type ReactionSnapshot []Reaction

// Count はトリガー絵文字のリアクション数を返します
func (s ReactionSnapshot) Count(trigger string) int {
	total := 0
	for _, r := range s {
		if r.Emoji.Matches(trigger) {
			total += r.Count
		}
	}
	return total
}

// Contains はトリガー絵文字が1つ以上残っているかを返します
func (s ReactionSnapshot) Contains(trigger string) bool {
	return s.Count(trigger) >= 1
}

// Message はプラットフォームから取得したメッセージです
type Message struct {
	Ref       MessageRef
	Reactions ReactionSnapshot
}

// BotIdentity は接続中のBot自身の情報です
type BotIdentity struct {
	// UserID はBotユーザーのID
	UserID string

	// Name はBotの表示名
	Name string
}

// ワークスペース（Slackチーム）ごとのインストール情報
type Tenant struct {
	// TeamID はSlackワークスペースのID
	TeamID string `firestore:"team_id"`

	// BotTokenSecretName はSecret Managerに保存されたBotトークンのシークレット名
	BotTokenSecretName string `firestore:"bot_token_secret_name"`

	// CreatedAt はレコードの作成日時（Unix秒）
	CreatedAt int64 `firestore:"created_at"`
}

// Validate はTenantの必須項目を検証します
func (t Tenant) Validate() error {
	if strings.TrimSpace(t.TeamID) == "" {
		return fmt.Errorf("%w: TeamIDは必須項目です", ErrInvalid)
	}
	if strings.TrimSpace(t.BotTokenSecretName) == "" {
		return fmt.Errorf("%w: BotTokenSecretNameは必須項目です", ErrInvalid)
	}
	if t.CreatedAt <= 0 {
		return fmt.Errorf("%w: CreatedAtは0より大きい必要があります", ErrInvalid)
	}
	return nil
}
