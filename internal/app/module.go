package app

import (
	"context"

	"github.com/feiralink/chat/internal/bus"
	"github.com/feiralink/chat/internal/config"
	"github.com/feiralink/chat/internal/engine"
	"github.com/feiralink/chat/internal/fallback"
	"github.com/feiralink/chat/internal/lock"
	"github.com/feiralink/chat/internal/logging"
	"github.com/feiralink/chat/internal/presence"
	"github.com/feiralink/chat/internal/session"
	"github.com/feiralink/chat/internal/status"
	"github.com/feiralink/chat/internal/store"
	"github.com/feiralink/chat/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the chat process, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("chat",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideConversationStore,
			provideMessageStore,
			provideFallbackClient,
			provideChannel,
			provideTracker,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.ProfileName), p.ProfileName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		// Missing config is the common first-run case; defaults apply.
		logger.Info("no config file, using defaults", zap.Error(err))
		return nil
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(session.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideConversationStore() *store.ConversationStore {
	return store.NewConversationStore()
}

func provideMessageStore() *store.MessageStore {
	return store.NewMessageStore()
}

func provideFallbackClient(cfg *config.Config, logger *zap.Logger) *fallback.Client {
	return fallback.NewClient(cfg.Server(), logger)
}

func provideChannel(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *transport.Channel {
	return transport.NewChannel(cfg.Server(), b, logger)
}

func provideTracker(cfg *config.Config, ch *transport.Channel, logger *zap.Logger) *presence.Tracker {
	return presence.NewTracker(ch, cfg.TypingIdle(), logger)
}

func provideEngine(
	ch *transport.Channel,
	client *fallback.Client,
	conversations *store.ConversationStore,
	messages *store.MessageStore,
	tracker *presence.Tracker,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) *engine.Engine {
	return engine.New(ch, client, conversations, messages, tracker, machine, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, eng *engine.Engine, client *fallback.Client, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			creds, err := session.LoadCredentials(session.CredentialsPath(p.ProfileName))
			if err != nil {
				return err
			}
			client.SetCredential(creds.Token)
			logger.Info("session starting",
				zap.String("user", creds.Identity.ID),
				zap.String("role", creds.Identity.Role))
			return eng.Start(context.Background(), creds.Identity, creds.Token)
		},
		OnStop: func(_ context.Context) error {
			eng.Logout()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("chat process stopped")
			return nil
		},
	})
}
