package dto

import (
	"github.com/slack-go/slack/slackevents"

	"pin-bot/project/domain"
)

// Events API で扱うリアクションの対象種別
const reactionItemMessage = "message"

// ToDomainEvent は Events API の event_callback を domain.Event に変換します
// メッセージ以外（ファイル等）へのリアクションやその他のイベントは OtherEvent になります
func ToDomainEvent(ev slackevents.EventsAPIEvent) domain.Event {
	inner := ev.InnerEvent

	switch data := inner.Data.(type) {
	case *slackevents.ReactionAddedEvent:
		if data.Item.Type != reactionItemMessage {
			return domain.OtherEvent{Type: inner.Type + ":" + data.Item.Type}
		}
		return domain.ReactionAddedEvent{
			Emoji:  domain.Emoji{Name: data.Reaction},
			Ref:    reactionRef(ev.TeamID, data.Item),
			UserID: data.User,
		}

	case *slackevents.ReactionRemovedEvent:
		if data.Item.Type != reactionItemMessage {
			return domain.OtherEvent{Type: inner.Type + ":" + data.Item.Type}
		}
		return domain.ReactionRemovedEvent{
			Emoji:  domain.Emoji{Name: data.Reaction},
			Ref:    reactionRef(ev.TeamID, data.Item),
			UserID: data.User,
		}

	default:
		return domain.OtherEvent{Type: inner.Type}
	}
}

// reactionRef はリアクション対象のメッセージ参照を作ります
func reactionRef(teamID string, item slackevents.Item) domain.MessageRef {
	return domain.MessageRef{
		TeamID:    teamID,
		ChannelID: item.Channel,
		MessageID: item.Timestamp,
	}
}
