package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ambunow/ambugo-app/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	svc, consumer := buildNotifier(cfg, defaultNotifierFactories())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		err := runNotifierHTTPServer(ctx, notifierHTTPOpts{
			httpAddr: cfg.Ambugo.NotifierHTTPAddr,
			svc:      svc,
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("notifier http server failed", "error", err.Error())
		}
	}()

	if err := runNotifier(ctx, svc, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}
