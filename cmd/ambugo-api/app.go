package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ambunow/ambugo-app/internal/api/requests_api"
	"github.com/ambunow/ambugo-app/internal/services/feed"
)

type apiOpts struct {
	httpAddr string

	topics        []string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(topic string, key, value []byte) error) error
}

func runAmbugoAPI(ctx context.Context, opts apiOpts, api *requests_api.API, fd *feed.Feed, consumer kafkaConsumer) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	go runFeedConsumer(ctx, opts, fd, consumer)

	srv := &http.Server{Handler: api.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && ctx.Err() != nil {
		return ctx.Err()
	} else if err != nil {
		return err
	}
	return nil
}

// runFeedConsumer держит подписку живой: при сбое помечает фид,
// пересинхронизируется из базы и подписывается заново.
func runFeedConsumer(ctx context.Context, opts apiOpts, fd *feed.Feed, consumer kafkaConsumer) {
	slog.Info("kafka consumer started", "topics", opts.topics, "group", opts.consumerGroup)
	for {
		err := consumer.Consume(ctx, fd.HandleMessage)
		if ctx.Err() != nil {
			return
		}
		fd.MarkError(err)
		slog.Error("kafka consumer stopped, retrying", "error", err.Error())

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
		if err := fd.Load(ctx); err != nil {
			slog.Error("feed resync failed", "error", err.Error())
		}
	}
}
