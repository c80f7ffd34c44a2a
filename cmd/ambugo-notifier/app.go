package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ambunow/ambugo-app/config"
	"github.com/ambunow/ambugo-app/internal/broker/kafka"
	"github.com/ambunow/ambugo-app/internal/integrations/mailer"
	"github.com/ambunow/ambugo-app/internal/integrations/mailer/fake"
	"github.com/ambunow/ambugo-app/internal/integrations/mailer/resendhttp"
	"github.com/ambunow/ambugo-app/internal/services/notify"
)

type notifierConsumer interface {
	Consume(ctx context.Context, handler func(topic string, key, value []byte) error) error
}

type notifierFactories struct {
	newMailer   func(cfg *config.Config) mailer.Client
	newConsumer func(cfg *config.Config, topic, group string) notifierConsumer
}

func defaultNotifierFactories() notifierFactories {
	return notifierFactories{
		newMailer: func(cfg *config.Config) mailer.Client {
			// Без ключа почтового API письма собираются в памяти.
			// Удобно для локального запуска без внешнего сервиса.
			if cfg.Ambugo.MailerBaseURL != "" && cfg.Ambugo.MailerAPIKey != "" {
				return resendhttp.New(cfg.Ambugo.MailerBaseURL, cfg.Ambugo.MailerAPIKey)
			}
			return fake.New()
		},
		newConsumer: func(cfg *config.Config, topic, group string) notifierConsumer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, []string{topic}, group)
		},
	}
}

func buildNotifier(cfg *config.Config, f notifierFactories) (*notify.Service, notifierConsumer) {
	topic := cfg.Kafka.RequestCreatedTopicName
	if topic == "" {
		topic = "request.created"
	}
	group := cfg.Ambugo.NotifierKafkaConsumerGroup
	if group == "" {
		group = "ambugo-notifier"
	}

	svc := notify.New(f.newMailer(cfg), notify.Config{
		FromEmail:     cfg.Ambugo.MailerFrom,
		Recipients:    splitRecipients(cfg.Ambugo.MailerRecipients),
		PublicBaseURL: cfg.Ambugo.PublicBaseURL,
		CreatedTopic:  topic,
	}, slog.Default())

	slog.Info("notifier configured", "topic", topic, "group", group)
	return svc, f.newConsumer(cfg, topic, group)
}

// runNotifier крутит консьюмер, пока не погаснет контекст.
// Упавшую подписку поднимает заново с паузой.
func runNotifier(ctx context.Context, svc *notify.Service, consumer notifierConsumer) error {
	for {
		err := consumer.Consume(ctx, svc.HandleMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("notifier consumer stopped, retrying", "error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
