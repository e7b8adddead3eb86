package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medihelp/carewire/internal/aggregate"
	"github.com/medihelp/carewire/internal/config"
	"github.com/medihelp/carewire/internal/dashboard"
	"github.com/medihelp/carewire/internal/feed"
	"github.com/medihelp/carewire/internal/identity"
	"github.com/medihelp/carewire/internal/logging"
	"github.com/medihelp/carewire/internal/mutate"
	"github.com/medihelp/carewire/internal/notify"
	notifydiscord "github.com/medihelp/carewire/internal/notify/discord"
	notifyslack "github.com/medihelp/carewire/internal/notify/slack"
	"github.com/medihelp/carewire/internal/remind"
	"github.com/medihelp/carewire/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Carewire backend",
		Long:  "Starts the API server, the change feed, care-team notifications, and the appointment reminder sweep.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "carewire.yaml", "path to Carewire config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

// bridgePublisher adapts the Redis bridge to the gateway's publisher
// contract. A failed publish is logged; the row is already committed and
// the poll path will not resurrect it, so the operator needs to know.
type bridgePublisher struct {
	bridge *feed.Bridge
	logger *zap.Logger
}

func (p *bridgePublisher) Publish(ev feed.Event) {
	if err := p.bridge.Publish(context.Background(), ev.Collection, ev.Row); err != nil {
		p.logger.Error("serve: feed publish failed",
			zap.String("collection", ev.Collection), zap.Error(err))
	}
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	st := store.NewGormStore(gormDB)
	hub := feed.NewHub(logger)

	// Feed topology: with Redis every committed write goes out over the
	// bridge and comes back into the hub exactly once, so multiple
	// processes share one feed. Without Redis the poll tailer is the sole
	// hub publisher and the gateway publishes nothing itself.
	var publisher mutate.Publisher
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		bridge := feed.NewBridge(client, hub, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("serve: feed bridge stopped", zap.Error(err))
				cancel()
			}
		}()
		publisher = &bridgePublisher{bridge: bridge, logger: logger}
		logger.Info("serve: change feed via redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		tailer := feed.NewTailer(gormDB, hub, feed.DefaultTailInterval, logger)
		go func() {
			if err := tailer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("serve: feed tailer stopped", zap.Error(err))
				cancel()
			}
		}()
		logger.Info("serve: change feed via database tailer")
	}

	gateway := mutate.NewGateway(st, publisher, logger)
	aggregator := aggregate.New(st, logger)
	resolver := identity.NewResolver(st, logger)

	notifiers, err := buildNotifiers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, n := range notifiers {
			n.Close()
		}
	}()

	if len(notifiers) > 0 {
		watcher := notify.NewWatcher(st, hub, notifiers, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("serve: notification watcher stopped", zap.Error(err))
			}
		}()

		scheduler, err := remind.NewScheduler(remind.SchedulerOpts{
			Store:     st,
			Notifiers: notifiers,
			Logger:    logger,
			Schedule:  cfg.Reminders.Schedule,
			Lead:      time.Duration(cfg.Reminders.LeadMinutes) * time.Minute,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("serve: reminder scheduler stopped", zap.Error(err))
			}
		}()
	}

	if port <= 0 {
		port = cfg.Dashboard.Port
	}
	return dashboard.Start(ctx, dashboard.StartOpts{
		Store:      st,
		Feed:       hub,
		Gateway:    gateway,
		Aggregator: aggregator,
		Identity:   resolver,
		Logger:     logger,
		Port:       port,
		Out:        cmd.OutOrStdout(),
	})
}

// buildNotifiers creates and connects every adapter with a configured
// token.
func buildNotifiers(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]notify.Notifier, error) {
	var notifiers []notify.Notifier

	if cfg.Notify.SlackBotToken != "" {
		adapter, err := notifyslack.NewAdapter(notifyslack.AdapterOpts{
			BotToken:  cfg.Notify.SlackBotToken,
			ChannelID: cfg.Notify.SlackChannel,
		})
		if err != nil {
			return nil, err
		}
		if err := adapter.Connect(ctx); err != nil {
			return nil, err
		}
		notifiers = append(notifiers, adapter)
		logger.Info("serve: slack notifications enabled", zap.String("channel", cfg.Notify.SlackChannel))
	}

	if cfg.Notify.DiscordToken != "" {
		adapter, err := notifydiscord.NewAdapter(notifydiscord.AdapterOpts{
			Token:     cfg.Notify.DiscordToken,
			ChannelID: cfg.Notify.DiscordChannel,
		})
		if err != nil {
			return nil, err
		}
		if err := adapter.Connect(ctx); err != nil {
			return nil, err
		}
		notifiers = append(notifiers, adapter)
		logger.Info("serve: discord notifications enabled", zap.String("channel", cfg.Notify.DiscordChannel))
	}

	return notifiers, nil
}
