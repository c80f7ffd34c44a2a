package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Ambugo   AmbugoConfig   `yaml:"ambugo"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                          string `yaml:"host"`
	Port                          int    `yaml:"port"`
	RequestCreatedTopicName       string `yaml:"request_created_topic_name"`
	RequestStatusChangedTopicName string `yaml:"request_status_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AmbugoConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	// PublicBaseURL is the origin customers open their status links on,
	// e.g. https://ambugo.app. The /r/<token> path is appended to it.
	PublicBaseURL string `yaml:"public_base_url"`
	SourceTag     string `yaml:"source_tag"`

	LookupCacheTTLSeconds int `yaml:"lookup_cache_ttl_seconds"`

	SuggestMinChars           int `yaml:"suggest_min_chars"`
	SuggestRateLimitPerMinute int `yaml:"suggest_rate_limit_per_minute"`
	SubmitRateLimitPerMinute  int `yaml:"submit_rate_limit_per_minute"`

	GeocodeBaseURL string `yaml:"geocode_base_url"`
	GeocodeAPIKey  string `yaml:"geocode_api_key"`
	GeocodeRegion  string `yaml:"geocode_region"`

	MailerBaseURL string `yaml:"mailer_base_url"`
	MailerAPIKey  string `yaml:"mailer_api_key"`
	MailerFrom    string `yaml:"mailer_from"`
	// Comma-separated operator distribution list for new-request emails.
	MailerRecipients string `yaml:"mailer_recipients"`

	NotifierHTTPAddr           string `yaml:"notifier_http_addr"`
	NotifierKafkaConsumerGroup string `yaml:"notifier_kafka_consumer_group"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
