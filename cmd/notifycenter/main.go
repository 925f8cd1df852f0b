package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nhle/cfish-notify/internal/api"
	"github.com/nhle/cfish-notify/internal/app"
	"github.com/nhle/cfish-notify/internal/credential"
	"github.com/nhle/cfish-notify/internal/delivery"
	"github.com/nhle/cfish-notify/internal/feed"
	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/metrics"
	"github.com/nhle/cfish-notify/internal/model"
	"github.com/nhle/cfish-notify/internal/notification"
	"github.com/nhle/cfish-notify/internal/push"
	"github.com/nhle/cfish-notify/internal/session"
	"github.com/nhle/cfish-notify/internal/settings"
	"github.com/nhle/cfish-notify/internal/store"
	appsync "github.com/nhle/cfish-notify/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notifycenter:", err)
		os.Exit(1)
	}
}

func loadConfig() (*model.AppConfig, error) {
	flags := pflag.NewFlagSet("notifycenter", pflag.ExitOnError)
	path := flags.String("config", model.DefaultConfigPath(), "path to the YAML config file")
	flags.String("wallet", "", "wallet address to connect on start")
	flags.String("feed-mode", "", "event feed: simulated, websocket or off")
	flags.String("feed-url", "", "WebSocket feed URL")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("metrics-addr", "", "serve Prometheus metrics on host:port")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, flag := range map[string]string{
		"wallet.address": "wallet",
		"feed.mode":      "feed-mode",
		"feed.url":       "feed-url",
		"log.level":      "log-level",
		"metrics.addr":   "metrics-addr",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return model.LoadConfig(v, *path)
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, logCloser, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	db, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	persist := store.NewAdapter(db, log)

	vault, err := credential.Open(model.ConfigDir())
	if err != nil {
		log.WithError(err).Warn("keyring unavailable, secrets will not survive a restart")
		vault = credential.NewMemoryVault()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prefs := settings.NewStore(persist, log)
	prefs.Load(ctx)
	notes := notification.NewStore(
		notification.WithMaxEntries(cfg.Notifications.MaxEntries),
		notification.WithSaver(persist),
		notification.WithLogger(log),
	)

	mt := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, mt, log)
		defer srv.Close()
	}

	desktop := delivery.NewDBusNotifier("CFish", "")
	defer desktop.Close()
	routerOpts := []delivery.Option{
		delivery.WithDesktop(desktop),
		delivery.WithLogger(log),
		delivery.WithMetrics(mt),
	}
	if cfg.Sound.File != "" {
		player, err := delivery.NewOtoPlayer(cfg.Sound.File, cfg.Sound.Volume)
		if err != nil {
			log.WithError(err).Warn("sound disabled")
		} else {
			routerOpts = append(routerOpts, delivery.WithSound(player))
		}
	}
	router := delivery.NewRouter(notes, prefs, routerOpts...)

	timeout := time.Duration(cfg.API.TimeoutSec) * time.Second
	client := api.NewClient(cfg.API.BaseURL, timeout, api.WithToken(vault.Token()))
	sess := session.New(notes, client, persist, log)

	manager := push.NewManager(
		push.NewDeviceService(cfg.Push.ServiceURL, vault, timeout),
		client,
		prefs,
		notes,
		push.WithApplicationKey(cfg.Push.VAPIDPublicKey),
		push.WithWallet(sess.Wallet),
		push.WithPermissions(desktop),
		push.WithLogger(log),
		push.WithMetrics(mt),
	)
	if err := manager.Restore(ctx); err != nil {
		log.WithError(err).Warn("restoring push subscription")
	}

	if cfg.Wallet.Address != "" {
		if err := sess.Connect(ctx, cfg.Wallet.Address); err != nil {
			log.WithError(err).Warn("initial notification fetch failed")
		}
	} else {
		sess.Resume(ctx)
	}

	dispatcher := feed.NewDispatcher(router, feed.WithLogger(log), feed.WithMetrics(mt))
	interval := time.Duration(cfg.Feed.IntervalSec) * time.Second
	switch cfg.Feed.Mode {
	case "simulated":
		dispatcher.Register(feed.NewSimulatedSource(interval, cfg.Feed.Probability, cfg.Feed.Seed))
	case "websocket":
		dispatcher.Register(feed.NewWebSocketSource(cfg.Feed.URL,
			feed.WithHeader(func() http.Header {
				h := http.Header{}
				if w := sess.Wallet(); w != "" {
					h.Set(api.WalletHeader, w)
				}
				return h
			}),
			feed.WithReconnectDelay(interval),
			feed.WithSourceLogger(log),
		))
	}
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	poller := appsync.New(sess, time.Duration(cfg.API.RefreshSec)*time.Second, log)
	defer poller.Stop()

	root := app.New(app.Services{
		Notes:    notes,
		Settings: prefs,
		Push:     manager,
		Session:  sess,
		Poller:   poller,
		Log:      log,
	})
	defer root.Close()

	log.WithField("feed", cfg.Feed.Mode).Info("notification center started")
	if _, err := tea.NewProgram(root, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

func serveMetrics(addr string, mt *metrics.Metrics, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mt.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return srv
}
