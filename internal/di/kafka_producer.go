package di

import (
	"context"
	"log"
	"net"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

// NotificationProducer publishes appointment events to the notification
// topic. The push delivery service consumes them and fans out to devices.
// One producer is built at startup and injected into the service layer.
type NotificationProducer struct {
	writer *kafka.Writer
}

func NewNotificationProducer(broker, topic string) *NotificationProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &NotificationProducer{writer: writer}
}

func (p *NotificationProducer) PublishAppointmentEvent(ctx context.Context, event domain.AppointmentEvent) error {
	if event.EventId == "" {
		event.EventId = uuid.NewString()
	}
	message, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// AppointmentId as the key keeps events of one appointment in order.
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.AppointmentId), 10)),
		Value: message,
	})
}

func (p *NotificationProducer) Close() error {
	return p.writer.Close()
}

// EnsureTopicExists creates the notification topic when the broker doesn't
// have it yet, so a fresh environment works without manual setup.
func EnsureTopicExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		log.Fatalf("Failed to dial kafka broker %s: %v", broker, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		log.Fatalf("Failed to resolve kafka controller: %v", err)
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		log.Fatalf("Failed to dial kafka controller: %v", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		log.Fatalf("Failed to create topic %s: %v", topic, err)
	}
}
