package auditchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaMirror publishes appended receipts to a Kafka topic so compliance
// consumers can tail the chain without read access to the primary store.
type KafkaMirror struct {
	client *kgo.Client
	topic  string
}

// NewKafkaMirror connects to the brokers and ensures the audit topic exists.
func NewKafkaMirror(ctx context.Context, brokers []string, topic string) (*KafkaMirror, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	ctxEnsure, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := adm.CreateTopic(ctxEnsure, 1, 1, nil, topic)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	// TOPIC_ALREADY_EXISTS is fine; anything else is a broker-side refusal.
	if resp.Err != nil && !kerrIsAlreadyExists(resp.Err) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", resp.Err)
	}

	return &KafkaMirror{client: client, topic: topic}, nil
}

type mirrorRecord struct {
	ID           string    `json:"id"`
	EventType    EventType `json:"event_type"`
	ActorID      string    `json:"actor_id,omitempty"`
	ActorType    ActorType `json:"actor_type"`
	ResourceID   string    `json:"resource_id,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	DetailsHash  string    `json:"details_hash"`
	PreviousHash string    `json:"previous_hash"`
	ReceiptHash  string    `json:"receipt_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Publish produces the receipt synchronously. The receipt ID keys the record
// so per-partition order matches chain order.
func (m *KafkaMirror) Publish(ctx context.Context, r Receipt) error {
	payload, err := json.Marshal(mirrorRecord(r))
	if err != nil {
		return fmt.Errorf("marshal mirror record: %w", err)
	}
	record := &kgo.Record{
		Topic: m.topic,
		Key:   []byte(r.ID),
		Value: payload,
	}
	if err := m.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit receipt: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (m *KafkaMirror) Close() {
	m.client.Close()
}

func kerrIsAlreadyExists(err error) bool {
	// kadm surfaces broker error codes as *kerr.Error; matching on the
	// message avoids importing kerr for a single comparison.
	return err != nil && err.Error() == "TOPIC_ALREADY_EXISTS: Topic with this name already exists."
}
