package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pin-bot/project/domain"
	"pin-bot/project/handler"
	"pin-bot/project/infrastructure/config"
	"pin-bot/project/infrastructure/discord"
	"pin-bot/project/infrastructure/logging"
	"pin-bot/project/infrastructure/metrics"
	"pin-bot/project/infrastructure/secret"
	"pin-bot/project/infrastructure/slack"
	"pin-bot/project/infrastructure/store"
	"pin-bot/project/service"
)

const serviceName = "pin-bot"

// eventBuffer は Gateway から Dispatcher へのイベントキューの長さです
const eventBuffer = 64

func main() {
	// 1. ロガーを作成し、設定を読み込む
	log := logging.NewLoggerWithService(serviceName, logrus.InfoLevel)

	config.LoadEnv(log)
	cfg, err := config.NewConfig()
	if err != nil {
		// 認証情報が無い場合もここで起動を中止する
		log.WithError(err).Fatal("設定読み込み失敗")
	}
	log.Logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. プラットフォームごとに起動
	recorder := metrics.NewRecorder(serviceName)
	log = log.WithField("platform", cfg.Platform)

	switch cfg.Platform {
	case config.PlatformSlack:
		err = runSlack(ctx, cfg, log, recorder)
	default:
		err = runDiscord(ctx, cfg, log, recorder)
	}
	if err != nil {
		log.WithError(err).Fatal("異常終了")
	}
	log.Info("終了しました")
}

// runDiscord は Discord Gateway に接続し、イベントループと HTTP サーバーを動かします
func runDiscord(ctx context.Context, cfg *config.Config, log *logrus.Entry, recorder *metrics.Recorder) error {
	token, err := resolveCredential(ctx, cfg, log, cfg.DiscordToken, cfg.DiscordTokenSecret)
	if err != nil {
		return err
	}

	gateway, err := discord.NewGateway(token, log.WithField("component", "discord"), eventBuffer)
	if err != nil {
		return err
	}

	dispatcher := newDispatcher(cfg, log, recorder, gateway, gateway, gateway)

	mux := newMux(recorder)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gateway.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx, gateway.Events()) })
	serve(gctx, g, cfg.Port, mux, log)

	return g.Wait()
}

// runSlack は Events API を受ける HTTP サーバーを動かします
func runSlack(ctx context.Context, cfg *config.Config, log *logrus.Entry, recorder *metrics.Recorder) error {
	mux := newMux(recorder)

	var (
		tokens    slack.TokenSource
		secretMgr *secret.Manager
		tenants   domain.TenantRepository
		err       error
	)
	if cfg.SlackBotTokenSecret != "" || cfg.MultiWorkspace() {
		secretMgr, err = secret.NewManager(ctx, cfg.GcpProject)
		if err != nil {
			return err
		}
		defer secretMgr.Close()
	}

	if cfg.MultiWorkspace() {
		// OAuth でインストールされたワークスペースごとのトークン
		repo, err := store.NewFirestoreRepo(ctx, cfg.FirestoreProjectID, cfg.CollectionTenants)
		if err != nil {
			return err
		}
		defer repo.Close()

		tokens = slack.NewTenantTokenSource(repo, secretMgr)
		tenants = repo
	} else {
		token := cfg.SlackBotToken
		if cfg.SlackBotTokenSecret != "" {
			if token, err = secretMgr.GetSecret(ctx, cfg.SlackBotTokenSecret); err != nil {
				return err
			}
		}
		tokens = slack.StaticTokenSource(token)
	}

	client := slack.NewClient(tokens, log.WithField("component", "slack"))
	dispatcher := newDispatcher(cfg, log, recorder, client, client, client)
	client.OnIdentity(dispatcher.Handle)

	if tenants != nil {
		// 再インストール時は client のキャッシュを捨てて新しいトークンを使う
		mux.Handle("/slack/oauth_redirect", handler.NewOAuthHandler(cfg, tenants, secretMgr, client, log.WithField("component", "oauth")))
	}

	// 単一ワークスペースでは起動時に Bot 情報を取得する（Gateway の Ready に相当）
	if !cfg.MultiWorkspace() {
		bot, err := client.Identify(ctx, "")
		if err != nil {
			return fmt.Errorf("slack: Bot 情報取得失敗（トークンを確認してください）: %w", err)
		}
		dispatcher.Handle(ctx, domain.ReadyEvent{Bot: bot})
	}

	mux.Handle("/slack/events", handler.NewEventsHandler(cfg.SlackSigningSecret, dispatcher, log.WithField("component", "events")))
	mux.Handle("/slack/commands", handler.NewCommandsHandler(cfg.SlackSigningSecret, dispatcher, log.WithField("component", "commands")))

	g, gctx := errgroup.WithContext(ctx)
	serve(gctx, g, cfg.Port, mux, log)
	return g.Wait()
}

// newDispatcher はサービス層を組み立てます
func newDispatcher(
	cfg *config.Config,
	log *logrus.Entry,
	recorder *metrics.Recorder,
	messages service.MessagePort,
	presence service.PresencePort,
	registrar service.CommandRegistrar,
) *service.Dispatcher {
	synchronizer := service.NewPinSynchronizer(cfg.TriggerEmoji, messages, log.WithField("component", "pin"), recorder)
	commands := service.NewCommandService(registrar, log.WithField("component", "command"))

	return service.NewDispatcher(
		synchronizer,
		presence,
		commands,
		cfg.StatusText,
		log.WithField("component", "dispatcher"),
		service.WithEventTimeout(cfg.EventTimeout),
		service.WithMetrics(recorder),
	)
}

// resolveCredential は認証情報を返します。シークレット名が設定されていれば Secret Manager から読み込みます
func resolveCredential(ctx context.Context, cfg *config.Config, log *logrus.Entry, value, secretName string) (string, error) {
	if secretName == "" {
		return value, nil
	}

	mgr, err := secret.NewManager(ctx, cfg.GcpProject)
	if err != nil {
		return "", err
	}
	defer mgr.Close()

	v, err := mgr.GetSecret(ctx, secretName)
	if err != nil {
		return "", err
	}
	log.WithField("secret", secretName).Info("Secret Manager から認証情報を読み込みました")
	return v, nil
}

// newMux はヘルスチェックとメトリクスのエンドポイントを持つ ServeMux を作成します
func newMux(recorder *metrics.Recorder) *http.ServeMux {
	mux := http.NewServeMux()

	// ヘルスチェック
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus メトリクス
	mux.Handle("/metrics", recorder.Handler())
	return mux
}

// serve は HTTP サーバーを errgroup 上で起動し、ctx の終了で停止します
func serve(ctx context.Context, g *errgroup.Group, port string, mux http.Handler, log *logrus.Entry) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("サーバー起動")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバーエラー: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
