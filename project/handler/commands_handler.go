package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"pin-bot/project/dto"
	"pin-bot/project/infrastructure/httpsec"
)

// CommandsHandler は Slack スラッシュコマンドを処理します
// コマンドは EventHandler（Dispatcher）経由で CommandService に渡され、
// その応答をスラッシュコマンドのレスポンスとして返します
type CommandsHandler struct {
	signingSecret string
	events        EventHandler
	log           logrus.FieldLogger
}

// NewCommandsHandler はコマンドハンドラーを作成します
func NewCommandsHandler(signingSecret string, events EventHandler, log logrus.FieldLogger) *CommandsHandler {
	return &CommandsHandler{
		signingSecret: signingSecret,
		events:        events,
		log:           log,
	}
}

// ServeHTTP は Slack スラッシュコマンド受信エンドポイントです
func (h *CommandsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Slack 署名検証
	if _, err := httpsec.VerifySlackRequest(r, h.signingSecret); err != nil {
		h.log.WithError(err).Warn("スラッシュコマンドの署名検証失敗")
		writeSlash(w, http.StatusUnauthorized, dto.Ephemeral("署名検証失敗"))
		return
	}

	// form パース（検証後に本体は読み直せる）
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		writeSlash(w, http.StatusBadRequest, dto.Ephemeral("リクエスト解析失敗"))
		return
	}

	// 応答テキストは Respond 経由で受け取る
	var (
		mu    sync.Mutex
		reply string
	)
	ev := dto.ToCommandEvent(cmd)
	ev.Respond = func(ctx context.Context, text string) error {
		mu.Lock()
		defer mu.Unlock()
		reply = text
		return nil
	}

	h.log.WithFields(logrus.Fields{
		"command": cmd.Command,
		"team":    cmd.TeamID,
		"user":    cmd.UserID,
	}).Info("スラッシュコマンド受信")

	// エラー時も Respond で失敗メッセージが設定される
	_ = h.events.Handle(context.WithoutCancel(r.Context()), ev)

	mu.Lock()
	text := reply
	mu.Unlock()
	if text == "" {
		text = "コマンドを受け付けました"
	}
	writeSlash(w, http.StatusOK, dto.Ephemeral(text))
}

// writeSlash はスラッシュコマンドのレスポンスを JSON で書き込みます
func writeSlash(w http.ResponseWriter, status int, resp dto.SlackSlashResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
