package slack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"pin-bot/project/domain"
)

// Client は service.MessagePort / PresencePort / CommandRegistrar の Slack SDK 実装です
type Client struct {
	tokens  TokenSource
	options []slack.Option
	log     logrus.FieldLogger

	mu      sync.Mutex
	clients map[string]*slack.Client // teamID -> Slack API クライアント

	onIdentity func(ctx context.Context, ev domain.Event) error
}

// NewClient は Slack クライアントを初期化します
// options は全ワークスペースのクライアント作成時に渡されます（テストでは API URL の差し替えに使用）
func NewClient(tokens TokenSource, log logrus.FieldLogger, options ...slack.Option) *Client {
	return &Client{
		tokens:  tokens,
		options: options,
		log:     log,
		clients: make(map[string]*slack.Client),
	}
}

// OnIdentity は auth.test で取得した Bot 情報を ReadyEvent として渡す先を設定します
func (c *Client) OnIdentity(fn func(ctx context.Context, ev domain.Event) error) {
	c.onIdentity = fn
}

// api は teamID に対応する Slack API クライアントを取得します
// トークン取得は通信を伴うため、ロックの外で行います
func (c *Client) api(ctx context.Context, teamID string) (*slack.Client, error) {
	// キャッシュを確認
	c.mu.Lock()
	cli, ok := c.clients[teamID]
	c.mu.Unlock()
	if ok {
		return cli, nil
	}

	token, err := c.tokens.Token(ctx, teamID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// 並行して作成されていればそちらを使う
	if cli, ok := c.clients[teamID]; ok {
		return cli, nil
	}
	cli = slack.New(token, c.options...)
	c.clients[teamID] = cli
	return cli, nil
}

// Invalidate はキャッシュしたクライアントを捨て、次回の呼び出しでトークンを取り直させます
// 再インストールでトークンが変わった場合に使います
func (c *Client) Invalidate(teamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, teamID)
}

// FetchMessage はメッセージと現在のリアクションを取得します
// チャンネル直下は conversations.history、スレッド返信は conversations.replies で探します
func (c *Client) FetchMessage(ctx context.Context, ref domain.MessageRef) (*domain.Message, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	cli, err := c.api(ctx, ref.TeamID)
	if err != nil {
		return nil, err
	}

	// ts ちょうどのメッセージを1件だけ取得
	history, err := cli.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: ref.ChannelID,
		Latest:    ref.MessageID,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return nil, classify("conversations.history", err)
	}
	if msg := findMessage(history.Messages, ref.MessageID); msg != nil {
		return toDomainMessage(ref, msg), nil
	}

	// スレッド内の返信の場合
	// 応答の先頭は常にスレッドの親なので、返信自身を含めて2件取得する
	replies, _, _, err := cli.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: ref.ChannelID,
		Timestamp: ref.MessageID,
		Oldest:    ref.MessageID,
		Inclusive: true,
		Limit:     2,
	})
	if err != nil {
		return nil, classify("conversations.replies", err)
	}
	if msg := findMessage(replies, ref.MessageID); msg != nil {
		return toDomainMessage(ref, msg), nil
	}

	return nil, fmt.Errorf("slack: メッセージが見つかりません (ref=%s): %w", ref, domain.ErrNotFound)
}

// PinMessage はメッセージをピン留めします
func (c *Client) PinMessage(ctx context.Context, msg *domain.Message) error {
	cli, err := c.api(ctx, msg.Ref.TeamID)
	if err != nil {
		return err
	}

	item := slack.NewRefToMessage(msg.Ref.ChannelID, msg.Ref.MessageID)
	return classify("pins.add", cli.AddPinContext(ctx, msg.Ref.ChannelID, item))
}

// UnpinMessage はメッセージのピン留めを解除します
func (c *Client) UnpinMessage(ctx context.Context, msg *domain.Message) error {
	cli, err := c.api(ctx, msg.Ref.TeamID)
	if err != nil {
		return err
	}

	item := slack.NewRefToMessage(msg.Ref.ChannelID, msg.Ref.MessageID)
	return classify("pins.remove", cli.RemovePinContext(ctx, msg.Ref.ChannelID, item))
}

// SetPresence は Bot をオンライン表示にします
// Slack の Bot はステータス文字列を設定できないため statusText はログにのみ残します
func (c *Client) SetPresence(ctx context.Context, statusText string) error {
	cli, err := c.api(ctx, "")
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotRegistered) {
			// 複数ワークスペース運用では既定のワークスペースが無い
			return nil
		}
		return err
	}

	if err := cli.SetUserPresenceContext(ctx, "auto"); err != nil {
		return classify("users.setPresence", err)
	}
	c.log.WithField("status", statusText).Debug("Slack ではステータス文字列は設定されません")
	return nil
}

// Identify は auth.test で Bot 自身の情報を取得します
func (c *Client) Identify(ctx context.Context, teamID string) (domain.BotIdentity, error) {
	cli, err := c.api(ctx, teamID)
	if err != nil {
		return domain.BotIdentity{}, err
	}

	resp, err := cli.AuthTestContext(ctx)
	if err != nil {
		return domain.BotIdentity{}, classify("auth.test", err)
	}
	return domain.BotIdentity{UserID: resp.UserID, Name: resp.User}, nil
}

// RegisterCommands は auth.test を再実行し、Bot 情報を ReadyEvent として通知し直します
// Slack のスラッシュコマンド自体はアプリ設定側で定義されます
func (c *Client) RegisterCommands(ctx context.Context, ref domain.MessageRef) error {
	// キャッシュしたクライアントを捨て、トークンを取り直す
	c.Invalidate(ref.TeamID)

	bot, err := c.Identify(ctx, ref.TeamID)
	if err != nil {
		return fmt.Errorf("slack: Bot 情報取得失敗 (team=%s): %w", ref.TeamID, err)
	}

	if c.onIdentity != nil {
		return c.onIdentity(ctx, domain.ReadyEvent{Bot: bot})
	}
	return nil
}

// findMessage は ts が一致するメッセージを探します
func findMessage(messages []slack.Message, ts string) *slack.Message {
	for i := range messages {
		if messages[i].Timestamp == ts {
			return &messages[i]
		}
	}
	return nil
}

// toDomainMessage は Slack のメッセージをドメインモデルに変換します
func toDomainMessage(ref domain.MessageRef, msg *slack.Message) *domain.Message {
	reactions := make(domain.ReactionSnapshot, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		reactions = append(reactions, domain.Reaction{
			Emoji: domain.Emoji{Name: r.Name},
			Count: r.Count,
		})
	}
	return &domain.Message{Ref: ref, Reactions: reactions}
}

// Slack API のエラーコード分類
var (
	alreadyCodes   = []string{"already_pinned", "no_pin"}
	notFoundCodes  = []string{"message_not_found", "channel_not_found", "thread_not_found", "no_item_specified"}
	forbiddenCodes = []string{"not_in_channel", "missing_scope", "restricted_action", "not_pinnable", "is_archived", "not_authed", "invalid_auth", "account_inactive"}
)

// classify は Slack API のエラーを domain のエラーでラップします
func classify(method string, err error) error {
	if err == nil {
		return nil
	}

	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Errorf("slack: %s: %w: %w", method, domain.ErrTransient, err)
	}

	code := errorCode(err)
	switch {
	case hasCode(code, alreadyCodes):
		return fmt.Errorf("slack: %s: %w: %w", method, domain.ErrAlreadyInDesiredState, err)
	case hasCode(code, notFoundCodes):
		return fmt.Errorf("slack: %s: %w: %w", method, domain.ErrNotFound, err)
	case hasCode(code, forbiddenCodes):
		return fmt.Errorf("slack: %s: %w: %w", method, domain.ErrForbidden, err)
	case code == "ratelimited" || code == "fatal_error" || code == "internal_error":
		return fmt.Errorf("slack: %s: %w: %w", method, domain.ErrTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("slack: %s: %w: %w", method, domain.ErrTransient, err)
	}

	return fmt.Errorf("slack: %s: %w", method, err)
}

// errorCode は Slack API のエラーコード（例: "already_pinned"）を取り出します
func errorCode(err error) string {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		return se.Err
	}
	return strings.TrimSpace(err.Error())
}

// hasCode はコードが一覧に含まれるかを判定します
func hasCode(code string, codes []string) bool {
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}
