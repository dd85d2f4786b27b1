package broker

import (
	"context"
	"log"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
)

type KafkaQueue struct {
	producer *kafka.Producer
	consumer *kafka.Consumer
	topic    string
}

func NewKafkaQueue(brokers, topic, group string) (*KafkaQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
		"retries":           3,
		"batch.size":        16384,
		"linger.ms":         5,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Kafka producer")
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"group.id":          group,
		"auto.offset.reset": "latest",
	})
	if err != nil {
		producer.Close()
		return nil, errors.Wrap(err, "failed to create Kafka consumer")
	}

	return &KafkaQueue{
		producer: producer,
		consumer: consumer,
		topic:    topic,
	}, nil
}

func (k *KafkaQueue) Publish(ctx context.Context, data []byte) error {
	// Buffered and never closed: on ctx cancellation librdkafka may still
	// deliver the report, and a send on a closed channel would panic. The
	// channel is left for the GC once the report lands in the buffer.
	deliveryChan := make(chan kafka.Event, 1)

	err := k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: kafka.PartitionAny,
		},
		Value: data,
	}, deliveryChan)
	if err != nil {
		return errors.Wrap(err, "publishing batch")
	}

	select {
	case e := <-deliveryChan:
		if msg, ok := e.(*kafka.Message); ok {
			if msg.TopicPartition.Error != nil {
				return msg.TopicPartition.Error
			}
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (k *KafkaQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	if err := k.consumer.Subscribe(k.topic, nil); err != nil {
		return errors.Wrap(err, "subscribing to topic")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := k.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				return err
			}

			if err := handler(msg.Value); err != nil {
				log.Printf("Error processing message: %v", err)
			}
		}
	}
}

func (k *KafkaQueue) Close() error {
	k.producer.Close()
	return k.consumer.Close()
}
