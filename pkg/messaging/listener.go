package messaging

import (
	"fmt"
	"log"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
)

func getName(prefix string, topic ChangeTopic) string {
	return fmt.Sprintf("%s_%s", prefix, topic)
}

func DeclareBindAndConsume(ch *amqp.Channel, prefix string, topic ChangeTopic) (<-chan amqp.Delivery, error) {
	name := getName(prefix, topic)
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, err
	}
	if err := ch.QueueBind(q.Name, name, name, false, nil); err != nil {
		return nil, err
	}
	return ch.Consume(
		q.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
}

func ListenToTopic(ch *amqp.Channel, prefix string, topic ChangeTopic, handle func(amqp.Delivery) error) error {
	fc, err := DeclareBindAndConsume(ch, prefix, topic)
	if err != nil {
		return err
	}
	go func(msgs <-chan amqp.Delivery) {
		defer ch.Close()
		for d := range msgs {
			if err := handle(d); err != nil {
				log.Printf("Error processing message: %v", err)
				return
			}
			d.Ack(false)
		}
	}(fc)
	return nil
}

// ListenForProductChanges decodes change payloads and forwards them to
// the handler, typically a cache flush.
func ListenForProductChanges(ch *amqp.Channel, cfg *RabbitConfig, handle func(ProductChange)) error {
	return ListenToTopic(ch, cfg.Prefix, ProductsChanged, func(d amqp.Delivery) error {
		var change ProductChange
		if err := sonic.Unmarshal(d.Body, &change); err != nil {
			return err
		}
		handle(change)
		return nil
	})
}

// ListenForRangeChanges is the range counterpart, the consumer wants its
// own channel because ListenToTopic owns and closes it.
func ListenForRangeChanges(ch *amqp.Channel, cfg *RabbitConfig, handle func(RangeChange)) error {
	return ListenToTopic(ch, cfg.Prefix, RangesChanged, func(d amqp.Delivery) error {
		var change RangeChange
		if err := sonic.Unmarshal(d.Body, &change); err != nil {
			return err
		}
		handle(change)
		return nil
	})
}
