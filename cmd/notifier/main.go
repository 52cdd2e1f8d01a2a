// Command notifier consumes queued order events and emails their summaries.
// It is the delivery side of NOTIFY_MODE=amqp.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"gravecare-api/config"
	"gravecare-api/notify"
	"gravecare-api/utils"
)

func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat).WithField("component", "notifier")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := notify.NewFromConfig(cfg.Mail, cfg.Notify.Timeout)
	log = log.WithField("transport", notifier.Transport())
	if !notifier.IsConfigured() {
		log.Warn("mail transport not configured; queued orders will be acknowledged without sending")
	} else if err := notifier.Verify(ctx); err != nil {
		log.WithError(err).Warn("mail transport verification failed")
	}

	consumer, err := notify.NewAMQPConsumer(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange, cfg.Notify.AMQPQueue, cfg.Notify.Workers)
	if err != nil {
		log.WithError(err).Fatal("connect to queue")
	}
	defer consumer.Close()

	log.WithField("queue", cfg.Notify.AMQPQueue).Info("consuming order notifications")
	if err := consumer.Run(ctx, notifier, cfg.Notify.Timeout, log); err != nil {
		log.WithError(err).Error("consumer stopped")
	}
}
