package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/civicworks/wastewatch/internal/applog"
	"github.com/civicworks/wastewatch/internal/config"
	"github.com/civicworks/wastewatch/internal/events"
	"github.com/civicworks/wastewatch/internal/hub"
	"github.com/civicworks/wastewatch/internal/notify"
	"github.com/civicworks/wastewatch/internal/store"
	"github.com/civicworks/wastewatch/internal/viewer"
	"github.com/civicworks/wastewatch/internal/webserver"
)

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func main() {
	// watch subcommand: follow the broadcast stream of a running server and
	// print record changes as they arrive.
	if len(os.Args) == 3 && os.Args[1] == "watch" {
		if err := runWatch(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	st, err := openStore(cfg.StorePath)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	h := hub.New(logger)
	var notifier *notify.Notifier
	if cfg.Notify.Webhook != "" || cfg.Notify.NtfyURL != "" {
		notifier = notify.New(notify.Config(cfg.Notify), logger)
	}

	srv := webserver.New(st, h, notifier, webserver.Config{
		Port:          cfg.Port,
		Host:          "0.0.0.0",
		AllowedOrigin: cfg.AllowedOrigin,
	}, logger)

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	if err := srv.Start(); err != nil {
		logger.Error("server closed", "error", err)
		os.Exit(1)
	}
	logger.Info("server closed")
}

func runWatch(baseURL string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := viewer.NewClient(baseURL, logger)
	client.OnEvent = func(e events.Event) {
		r := e.Record
		if r == nil {
			return
		}
		fmt.Printf("%s  %s  %s  %s (v%d)\n",
			time.Now().Format("15:04:05"), e.Type, r.ID, r.Status, r.Version)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := client.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
