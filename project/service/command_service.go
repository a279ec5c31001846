package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pin-bot/project/domain"
)

// CommandRegister はコマンド一式を再登録する管理コマンド名です
const CommandRegister = "register"

// CommandService は管理コマンドを処理するサービスです
type CommandService interface {
	// Handle はコマンドを実行し、実行者へ返す応答文を返します
	// 不明なコマンドの場合は domain.ErrInvalid を返します
	Handle(ctx context.Context, cmd domain.CommandEvent) (string, error)
}

// commandService は CommandService の実装です
type commandService struct {
	registrar CommandRegistrar
	log       logrus.FieldLogger
}

// NewCommandService は CommandService のインスタンスを作成します
func NewCommandService(registrar CommandRegistrar, log logrus.FieldLogger) CommandService {
	return &commandService{
		registrar: registrar,
		log:       log,
	}
}

// Handle はコマンド名に応じて処理を振り分けます
func (cs *commandService) Handle(ctx context.Context, cmd domain.CommandEvent) (string, error) {
	name := strings.ToLower(strings.TrimSpace(cmd.Name))

	switch name {
	case CommandRegister:
		cs.log.WithFields(logrus.Fields{
			"team":    cmd.Ref.TeamID,
			"channel": cmd.Ref.ChannelID,
			"user":    cmd.UserID,
		}).Info("コマンドを再登録します")

		if err := cs.registrar.RegisterCommands(ctx, cmd.Ref); err != nil {
			return "", fmt.Errorf("Handle: コマンド登録失敗: %w", err)
		}
		return "コマンドを登録しました", nil
	default:
		return "", fmt.Errorf("%w: 不明なコマンド: %s", domain.ErrInvalid, cmd.Name)
	}
}
