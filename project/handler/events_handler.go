package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack/slackevents"

	"pin-bot/project/domain"
	"pin-bot/project/dto"
	"pin-bot/project/infrastructure/httpsec"
)

// EventHandler はイベント1件を処理します（service.Dispatcher が実装）
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// EventsHandler は Slack Events API からのイベントを処理します
type EventsHandler struct {
	signingSecret string
	events        EventHandler
	log           logrus.FieldLogger
}

// NewEventsHandler はイベントハンドラーを作成します
func NewEventsHandler(signingSecret string, events EventHandler, log logrus.FieldLogger) *EventsHandler {
	return &EventsHandler{
		signingSecret: signingSecret,
		events:        events,
		log:           log,
	}
}

// ServeHTTP は Slack イベント受信エンドポイントです
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST のみ対応しています", http.StatusMethodNotAllowed)
		return
	}

	// Slack 署名検証（url_verification も署名付きで届く）
	body, err := httpsec.VerifySlackRequest(r, h.signingSecret)
	if err != nil {
		h.log.WithError(err).Warn("Slack イベントの署名検証失敗")
		status := http.StatusBadRequest
		if errors.Is(err, httpsec.ErrInvalidSignature) {
			status = http.StatusUnauthorized
		}
		http.Error(w, "署名検証失敗", status)
		return
	}

	// トークン検証は署名検証で代替
	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(w, "JSON パース失敗", http.StatusBadRequest)
		return
	}

	switch ev.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "JSON パース失敗", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge.Challenge))
		return

	case slackevents.CallbackEvent:
		// Slack との接続が切れても処理は最後まで行う
		ctx := context.WithoutCancel(r.Context())

		// エラーはログとメトリクスに残し、Slack 側への応答は成功にする
		_ = h.events.Handle(ctx, dto.ToDomainEvent(ev))
	}

	w.WriteHeader(http.StatusOK)
}
