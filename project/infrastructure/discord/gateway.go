package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"pin-bot/project/domain"
)

// registerCommand は登録するアプリケーションコマンドです
var registerCommand = &discordgo.ApplicationCommand{
	Name:        "register",
	Description: "Bot のコマンドを登録し直します",
}

// Gateway は Discord の Gateway 接続を domain.Event のストリームに変換し、
// service.MessagePort / PresencePort / CommandRegistrar を実装します
type Gateway struct {
	session *discordgo.Session
	log     logrus.FieldLogger

	events chan domain.Event
	done   chan struct{}
	once   sync.Once

	mu    sync.RWMutex
	botID string // Ready で受け取った Bot のユーザーID
	appID string // Ready で受け取ったアプリケーションID（コマンド登録に使う）
}

// NewGateway は Discord セッションを作成します（接続は Run で行います）
func NewGateway(token string, log logrus.FieldLogger, buffer int) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: セッション作成失敗: %w", err)
	}

	// リアクション・メッセージ・ギルド情報のみ購読
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessageReactions
	// レート制限時は待たずにエラーを返す
	s.ShouldRetryOnRateLimit = false

	g := &Gateway{
		session: s,
		log:     log,
		events:  make(chan domain.Event, buffer),
		done:    make(chan struct{}),
	}

	s.AddHandler(g.onReady)
	s.AddHandler(g.onReactionAdd)
	s.AddHandler(g.onReactionRemove)
	s.AddHandler(g.onMessageCreate)
	s.AddHandler(g.onInteractionCreate)

	return g, nil
}

// Events はイベントストリームを返します
func (g *Gateway) Events() <-chan domain.Event {
	return g.events
}

// Run は Gateway に接続し、ctx が終了するまで待ちます
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("discord: Gateway 接続失敗: %w", err)
	}
	g.log.Info("Discord Gateway に接続しました")

	<-ctx.Done()

	g.once.Do(func() { close(g.done) })
	if err := g.session.Close(); err != nil {
		return fmt.Errorf("discord: Gateway 切断失敗: %w", err)
	}
	g.log.Info("Discord Gateway から切断しました")
	return nil
}

// emit はイベントを送ります。停止後は捨てます
func (g *Gateway) emit(ev domain.Event) {
	select {
	case g.events <- ev:
	case <-g.done:
		g.log.WithField("event", ev.Kind()).Debug("停止中のためイベントを破棄しました")
	}
}

// ===== Gateway イベントハンドラ =====

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}

	g.mu.Lock()
	g.botID = r.User.ID
	g.appID = applicationID(r)
	g.mu.Unlock()

	g.emit(domain.ReadyEvent{Bot: domain.BotIdentity{UserID: r.User.ID, Name: r.User.Username}})
}

func (g *Gateway) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil {
		return
	}
	g.emit(reactionEvent(true, r.MessageReaction))
}

func (g *Gateway) onReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.MessageReaction == nil {
		return
	}
	g.emit(reactionEvent(false, r.MessageReaction))
}

func (g *Gateway) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil {
		return
	}

	cmd, ok := commandFromMessage(m.Message, g.currentBotID())
	if !ok {
		return
	}

	channelID := m.ChannelID
	cmd.Respond = func(ctx context.Context, text string) error {
		_, err := s.ChannelMessageSend(channelID, text)
		return classify("メッセージ送信", err)
	}
	g.emit(cmd)
}

func (g *Gateway) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Interaction == nil {
		return
	}

	cmd, ok := commandFromInteraction(i.Interaction)
	if !ok {
		g.emit(domain.OtherEvent{Type: i.Type.String()})
		return
	}

	interaction := i.Interaction
	cmd.Respond = func(ctx context.Context, text string) error {
		err := s.InteractionRespond(interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: text,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		return classify("インタラクション応答", err)
	}
	g.emit(cmd)
}

func (g *Gateway) currentBotID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.botID
}

func (g *Gateway) currentAppID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.appID
}

// ===== service のポート実装 =====

// FetchMessage はメッセージと現在のリアクションを REST API から取得します
func (g *Gateway) FetchMessage(ctx context.Context, ref domain.MessageRef) (*domain.Message, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := g.session.ChannelMessage(ref.ChannelID, ref.MessageID)
	if err != nil {
		return nil, classify("メッセージ取得", err)
	}
	return toDomainMessage(ref, m), nil
}

// PinMessage はメッセージをピン留めします
func (g *Gateway) PinMessage(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("ピン留め", g.session.ChannelMessagePin(msg.Ref.ChannelID, msg.Ref.MessageID))
}

// UnpinMessage はメッセージのピン留めを解除します
func (g *Gateway) UnpinMessage(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("ピン解除", g.session.ChannelMessageUnpin(msg.Ref.ChannelID, msg.Ref.MessageID))
}

// SetPresence は「プレイ中」のステータスを設定します
func (g *Gateway) SetPresence(ctx context.Context, statusText string) error {
	if err := g.session.UpdateGameStatus(0, statusText); err != nil {
		return fmt.Errorf("discord: ステータス設定失敗: %w", err)
	}
	return nil
}

// RegisterCommands はアプリケーションコマンドを一括で上書き登録します
// ギルド内で実行された場合はそのギルドに、DM の場合はグローバルに登録します
func (g *Gateway) RegisterCommands(ctx context.Context, ref domain.MessageRef) error {
	appID := g.currentAppID()
	if appID == "" {
		return fmt.Errorf("discord: Ready 前のため登録できません: %w", domain.ErrTransient)
	}

	_, err := g.session.ApplicationCommandBulkOverwrite(appID, ref.TeamID, []*discordgo.ApplicationCommand{registerCommand})
	if err != nil {
		return classify("コマンド登録", err)
	}
	g.log.WithField("guild", ref.TeamID).Info("アプリケーションコマンドを登録しました")
	return nil
}

// ===== 変換ヘルパー =====

// applicationID は Ready からアプリケーションIDを取り出します
// application が無い古いアプリではユーザーIDと同じ値になります
func applicationID(r *discordgo.Ready) string {
	if r.Application != nil && r.Application.ID != "" {
		return r.Application.ID
	}
	return r.User.ID
}

// reactionEvent はリアクションの追加・削除を domain のイベントに変換します
func reactionEvent(added bool, r *discordgo.MessageReaction) domain.Event {
	emoji := domain.Emoji{ID: r.Emoji.ID, Name: r.Emoji.Name}
	ref := domain.MessageRef{TeamID: r.GuildID, ChannelID: r.ChannelID, MessageID: r.MessageID}

	if added {
		return domain.ReactionAddedEvent{Emoji: emoji, Ref: ref, UserID: r.UserID}
	}
	return domain.ReactionRemovedEvent{Emoji: emoji, Ref: ref, UserID: r.UserID}
}

// commandFromMessage は "@bot register" 形式のメンションをコマンドに変換します
// Bot 自身の発言や Bot 宛てでないメッセージは ok=false になります
func commandFromMessage(m *discordgo.Message, botID string) (domain.CommandEvent, bool) {
	if botID == "" || m.Author == nil || m.Author.ID == botID || m.Author.Bot {
		return domain.CommandEvent{}, false
	}

	content := strings.TrimSpace(m.Content)
	var rest string
	for _, mention := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, mention) {
			rest = strings.TrimSpace(strings.TrimPrefix(content, mention))
			break
		}
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return domain.CommandEvent{}, false
	}

	return domain.CommandEvent{
		Name:   fields[0],
		Ref:    domain.MessageRef{TeamID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID},
		UserID: m.Author.ID,
	}, true
}

// commandFromInteraction はスラッシュコマンドをコマンドに変換します
func commandFromInteraction(i *discordgo.Interaction) (domain.CommandEvent, bool) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return domain.CommandEvent{}, false
	}

	var userID string
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
	case i.User != nil:
		userID = i.User.ID
	}

	return domain.CommandEvent{
		Name:   i.ApplicationCommandData().Name,
		Ref:    domain.MessageRef{TeamID: i.GuildID, ChannelID: i.ChannelID},
		UserID: userID,
	}, true
}

// toDomainMessage は Discord のメッセージをドメインモデルに変換します
func toDomainMessage(ref domain.MessageRef, m *discordgo.Message) *domain.Message {
	reactions := make(domain.ReactionSnapshot, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		if r == nil || r.Emoji == nil {
			continue
		}
		reactions = append(reactions, domain.Reaction{
			Emoji: domain.Emoji{ID: r.Emoji.ID, Name: r.Emoji.Name},
			Count: r.Count,
		})
	}
	return &domain.Message{Ref: ref, Reactions: reactions}
}

// classify は discordgo のエラーを domain のエラーでラップします
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("discord: %s: %w: %w", op, domain.ErrTransient, err)
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		code, statusCode := 0, 0
		if rest.Message != nil {
			code = rest.Message.Code
		}
		if rest.Response != nil {
			statusCode = rest.Response.StatusCode
		}

		switch {
		case code == discordgo.ErrCodeUnknownMessage || code == discordgo.ErrCodeUnknownChannel ||
			statusCode == http.StatusNotFound:
			return fmt.Errorf("discord: %s: %w: %w", op, domain.ErrNotFound, err)
		case code == discordgo.ErrCodeMissingAccess || code == discordgo.ErrCodeMissingPermissions ||
			statusCode == http.StatusForbidden:
			return fmt.Errorf("discord: %s: %w: %w", op, domain.ErrForbidden, err)
		case statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError:
			return fmt.Errorf("discord: %s: %w: %w", op, domain.ErrTransient, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("discord: %s: %w: %w", op, domain.ErrTransient, err)
	}

	return fmt.Errorf("discord: %s: %w", op, err)
}
