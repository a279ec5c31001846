package dto

import (
	"strings"

	"github.com/slack-go/slack"

	"pin-bot/project/domain"
)

// SlashCommandPrefix は Slack 側で登録するスラッシュコマンドの接頭辞です
// 例: "/pin_register" -> "register"
const SlashCommandPrefix = "/pin_"

// SlackSlashResponse はスラッシュコマンドのレスポンスです
type SlackSlashResponse struct {
	ResponseType string `json:"response_type"` // "in_channel" or "ephemeral"
	Text         string `json:"text"`
}

// Ephemeral は実行者にだけ見えるレスポンスを作ります
func Ephemeral(text string) SlackSlashResponse {
	return SlackSlashResponse{ResponseType: "ephemeral", Text: text}
}

// ToCommandEvent はスラッシュコマンドを domain.CommandEvent に変換します
// 接頭辞の無いコマンドはそのままの名前（先頭の "/" を除く）になります
func ToCommandEvent(cmd slack.SlashCommand) domain.CommandEvent {
	name := strings.TrimPrefix(cmd.Command, SlashCommandPrefix)
	name = strings.TrimPrefix(name, "/")

	return domain.CommandEvent{
		Name:   name,
		Ref:    domain.MessageRef{TeamID: cmd.TeamID, ChannelID: cmd.ChannelID},
		UserID: cmd.UserID,
	}
}
