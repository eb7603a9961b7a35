package rabbit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aokihara/eventboard/internal/app"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

type Config struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Queue    string
}

type Provider struct {
	conn       *amqp.Connection
	queue      amqp.Queue
	channel    *amqp.Channel
	connString string
	queueName  string
}

func New(config Config) *Provider {
	return &Provider{
		connString: fmt.Sprintf(
			"amqp://%s:%s@%s:%d/",
			config.User,
			config.Password,
			config.Host,
			config.Port,
		),
		queueName: config.Queue,
	}
}

func (r *Provider) Connect() error {
	var err error
	r.conn, err = amqp.Dial(r.connString)
	if err != nil {
		return err
	}

	r.channel, err = r.conn.Channel()
	if err != nil {
		return err
	}
	r.queue, err = r.channel.QueueDeclare(
		r.queueName,
		false,
		true,
		false,
		false,
		nil,
	)
	return err
}

func (r *Provider) Close() {
	r.conn.Close()
}

func (r *Provider) Publish(body []byte) error {
	return r.channel.Publish(
		"",           // exchange
		r.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

type MessageProcess = func(msg amqp.Delivery)

func (r Provider) Consume(ctx context.Context, process MessageProcess) error {
	msgs, err := r.channel.Consume(
		r.queue.Name, // queue
		"",           // consumer
		true,         // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if ok {
				process(m)
			}
		}
	}
}

// ChangePublisher mirrors committed event writes onto the queue so
// out-of-process consumers see the same change feed as in-process
// subscribers. Implements app.Notifier; publish failures are logged, never
// propagated back to the write path.
type ChangePublisher struct {
	provider *Provider
}

func NewChangePublisher(provider *Provider) *ChangePublisher {
	return &ChangePublisher{provider: provider}
}

func (p *ChangePublisher) EventsChanged(_ context.Context, change app.Change) {
	data, err := json.Marshal(change)
	if err != nil {
		log.Errorf("failed to marshal change message: %v", err)
		return
	}
	if err := p.provider.Publish(data); err != nil {
		log.Errorf("failed to publish change message: %v", err)
	}
}
