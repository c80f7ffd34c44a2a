package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ambunow/ambugo-app/config"
	"github.com/ambunow/ambugo-app/internal/api/requests_api"
	"github.com/ambunow/ambugo-app/internal/broker/kafka"
	"github.com/ambunow/ambugo-app/internal/cache/rediscache"
	"github.com/ambunow/ambugo-app/internal/integrations/geocode"
	geocodefake "github.com/ambunow/ambugo-app/internal/integrations/geocode/fake"
	"github.com/ambunow/ambugo-app/internal/integrations/geocode/googlehttp"
	"github.com/ambunow/ambugo-app/internal/services/feed"
	"github.com/ambunow/ambugo-app/internal/services/requests"
	"github.com/ambunow/ambugo-app/internal/services/suggest"
	"github.com/ambunow/ambugo-app/internal/storage/pgrequest"
	"github.com/ambunow/ambugo-app/internal/token"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Ambugo.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Ambugo.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "ambugo-api"
	}
	createdTopic := cfg.Kafka.RequestCreatedTopicName
	if createdTopic == "" {
		createdTopic = "request.created"
	}
	statusTopic := cfg.Kafka.RequestStatusChangedTopicName
	if statusTopic == "" {
		statusTopic = "request.status.changed"
	}
	sourceTag := cfg.Ambugo.SourceTag
	if sourceTag == "" {
		sourceTag = "ambugo-web"
	}
	lookupTTL := time.Duration(cfg.Ambugo.LookupCacheTTLSeconds) * time.Second
	if lookupTTL <= 0 {
		lookupTTL = 5 * time.Minute
	}
	minChars := cfg.Ambugo.SuggestMinChars
	if minChars <= 0 {
		minChars = 3
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st, err := pgrequest.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	// Без ключа геокодера работаем на локальном fake.
	var geo geocode.Client
	if cfg.Ambugo.GeocodeBaseURL != "" && cfg.Ambugo.GeocodeAPIKey != "" {
		geo = googlehttp.New(cfg.Ambugo.GeocodeBaseURL, cfg.Ambugo.GeocodeAPIKey, cfg.Ambugo.GeocodeRegion)
	} else {
		geo = geocodefake.New()
	}

	svc := requests.New(st, geo, producer, token.New(), rc, requests.Config{
		SourceTag:          sourceTag,
		CreatedTopic:       createdTopic,
		StatusChangedTopic: statusTopic,
		LookupCacheTTL:     lookupTTL,
	}, slog.Default())

	fd := feed.New(st, createdTopic, statusTopic, slog.Default())
	if err := fd.Load(context.Background()); err != nil {
		panic(err)
	}

	sg := suggest.New(geo, minChars)

	api := requests_api.New(svc, fd, sg, geo, rl, requests_api.Config{
		SubmitLimitPerMinute:  int64(cfg.Ambugo.SubmitRateLimitPerMinute),
		SuggestLimitPerMinute: int64(cfg.Ambugo.SuggestRateLimitPerMinute),
	}, slog.Default())

	consumer := kafka.NewConsumer(brokers, []string{createdTopic, statusTopic}, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runAmbugoAPI(ctx, apiOpts{
		httpAddr:      httpAddr,
		topics:        []string{createdTopic, statusTopic},
		consumerGroup: consumerGroup,
	}, api, fd, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}
