package emailsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/tutorhub/core"
)

const publishTimeout = 5 * time.Second

// Deliverer sends one message synchronously. The mailer worker relays queued messages through it.
type Deliverer interface {
	Deliver(msg *core.EmailMessage) error
}

var (
	_ Deliverer = (*consoleService)(nil)
	_ Deliverer = (*sendgridService)(nil)
)

func declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	return errors.Wrapf(err, "declaring queue %q", queue)
}

type queueService struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger core.Logger
}

var _ core.EmailService = (*queueService)(nil)

// NewQueueService renders messages and publishes them on the mail queue; apps/mailer delivers them.
func NewQueueService(conf *core.Config, logger core.Logger) (*queueService, error) {
	conn, err := amqp.Dial(conf.AMQP.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	if err = declareQueue(ch, conf.AMQP.MailQueue); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &queueService{conn: conn, ch: ch, queue: conf.AMQP.MailQueue, logger: logger}, nil
}

func (svc *queueService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.publish(context.Background(), msg); err != nil {
				svc.logger.Error("queueing email", err)
			}
		}()
	}
}

func (svc *queueService) publish(ctx context.Context, msg *core.EmailMessage) error {
	// template data is not serialized, so render before queueing
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, msg.TemplateName)
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding email")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return svc.ch.PublishWithContext(ctx,
		"",        // default exchange
		svc.queue, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

func (svc *queueService) Close() error {
	return svc.conn.Close()
}

// Consumer relays the queued messages to a Deliverer.
type Consumer struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queue     string
	deliverer Deliverer
	logger    core.Logger
}

func NewConsumer(conf *core.Config, deliverer Deliverer, logger core.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(conf.AMQP.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	if err = declareQueue(ch, conf.AMQP.MailQueue); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err = ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "setting prefetch")
	}
	return &Consumer{conn: conn, ch: ch, queue: conf.AMQP.MailQueue, deliverer: deliverer, logger: logger}, nil
}

// Run consumes until ctx is done or the broker closes the channel.
// Undecodable messages are dropped; failed deliveries are requeued once.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consuming mail queue")
	}
	c.logger.Info("mailer consuming " + c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("mail queue channel closed")
			}
			c.handle(d)
		}
	}
}

func (c *Consumer) handle(d amqp.Delivery) {
	var msg core.EmailMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("decoding queued email", err)
		_ = d.Nack(false, false)
		return
	}
	if err := c.deliverer.Deliver(&msg); err != nil {
		c.logger.Error("delivering queued email", err, map[string]interface{}{"subject": msg.Subject, "redelivered": d.Redelivered})
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	return c.conn.Close()
}
