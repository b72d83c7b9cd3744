package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rifadigital/raffle-gateway/internal/config"
	"github.com/rifadigital/raffle-gateway/internal/notifier"
	"github.com/rifadigital/raffle-gateway/internal/queue"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	mailer, err := notifier.NewSMTPMailer(notifier.SMTPConfig{
		Host:     config.Get().SMTPHost,
		Port:     config.Get().SMTPPort,
		Username: config.Get().SMTPUsername,
		Password: config.Get().SMTPPassword,
		From:     config.Get().SMTPFrom,
	})
	if err != nil {
		logger.Error("failed creating mailer", "error", err)
		return
	}

	service := notifier.NewService(redisAdap, mailer, notifier.ServiceConfig{
		RaffleName: config.Get().RaffleName,
		Queue: queue.Config{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      config.Get().QueueConsumerName,
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		},
	})

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := service.Start(); err != nil {
		logger.Error("failed to start notifier", "error", err)
		return
	}

	select {
	case <-c:
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
