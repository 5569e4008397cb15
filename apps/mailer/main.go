// Command mailer delivers the emails the API queued on RabbitMQ.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/tutorhub/apps/shared"
	"github.com/trezcool/tutorhub/core"
	emailsvc "github.com/trezcool/tutorhub/services/email"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger(conf, "mailer")
	if conf.AMQP.URL == "" {
		logger.Fatal("amqp.url is not set: the API delivers its emails itself")
	}
	core.ParseEmailTemplates(conf, logger)

	consumer, err := emailsvc.NewConsumer(conf, shared.NewDeliverer(conf, logger), logger)
	if err != nil {
		logger.Fatal("starting mailer", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = consumer.Run(ctx); err != nil {
		logger.Error("mailer stopped", err)
	}
	if err = consumer.Close(); err != nil {
		logger.Error("closing broker connection", err)
	}
	logger.Info("mailer stopped")
}
