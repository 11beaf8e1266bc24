package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
)

// KafkaBus is a Kafka-based event bus implementation.
type KafkaBus struct {
	config   KafkaConfig
	producer sarama.SyncProducer
	consumer sarama.ConsumerGroup
	client   sarama.Client
	log      *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool

	consumerWg   sync.WaitGroup
	consumerStop chan struct{}
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers       []string // Kafka broker addresses
	ConsumerGroup string   // Consumer group ID
	ClientID      string   // Client identifier
	Version       string   // Kafka version (e.g., "2.8.0")
	TopicPrefix   string   // Prepended to every topic name
}

// NewKafkaBus creates a new Kafka-based event bus.
func NewKafkaBus(cfg KafkaConfig, log *logger.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeValidation, "kafka brokers cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		return nil, errors.New(errors.CodeValidation, "kafka consumer group cannot be empty")
	}
	if log == nil {
		log = logger.Discard()
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "arena-eval-bus"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid kafka version", err)
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kafkaConfig.Consumer.Return.Errors = true
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = 10 * time.Second

	client, err := sarama.NewClient(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka client", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka producer", err)
	}

	consumer, err := sarama.NewConsumerGroupFromClient(cfg.ConsumerGroup, client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka consumer group", err)
	}

	return &KafkaBus{
		config:       cfg,
		producer:     producer,
		consumer:     consumer,
		client:       client,
		log:          log,
		handlers:     make(map[string][]Handler),
		consumerStop: make(chan struct{}),
	}, nil
}

// Publish publishes an event to a Kafka topic.
func (b *KafkaBus) Publish(_ context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	msg, err := b.message(topic, event)
	if err != nil {
		return err
	}

	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to publish to kafka", err)
	}

	return nil
}

func (b *KafkaBus) message(topic string, event Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "failed to marshal event", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: b.config.TopicPrefix + topic,
		Value: sarama.ByteEncoder(data),
		Key:   sarama.StringEncoder(event.ID),
	}
	if event.CorrelationID != "" {
		msg.Headers = []sarama.RecordHeader{
			{Key: []byte("correlation_id"), Value: []byte(event.CorrelationID)},
		}
	}
	return msg, nil
}

// Subscribe registers a handler for events on a Kafka topic.
func (b *KafkaBus) Subscribe(_ context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	isNewTopic := len(b.handlers[topic]) == 0
	b.handlers[topic] = append(b.handlers[topic], handler)

	if isNewTopic {
		b.consumerWg.Add(1)
		go b.consumeTopic(topic)
	}

	return nil
}

// consumeTopic runs a consumer group session loop for one topic.
func (b *KafkaBus) consumeTopic(topic string) {
	defer b.consumerWg.Done()

	handler := &consumerGroupHandler{bus: b, topic: topic}

	for {
		select {
		case <-b.consumerStop:
			return
		default:
		}

		err := b.consumer.Consume(context.Background(), []string{b.config.TopicPrefix + topic}, handler)
		if err != nil {
			b.log.Warn("Kafka consumer error", "topic", topic, "error", err)
		}

		select {
		case <-b.consumerStop:
			return
		case <-time.After(time.Second):
		}
	}
}

// Close closes the Kafka bus and releases resources.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.consumerStop)

	var errs []error

	// Closing the group unblocks Consume.
	if err := b.consumer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close consumer: %w", err))
	}
	b.consumerWg.Wait()

	if err := b.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close producer: %w", err))
	}

	if err := b.client.Close(); err != nil && err != sarama.ErrClosedClient {
		errs = append(errs, fmt.Errorf("close client: %w", err))
	}

	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()

	if len(errs) > 0 {
		return errors.New(errors.CodeInternal, fmt.Sprintf("errors during close: %v", errs))
	}

	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	bus   *KafkaBus
	topic string
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes messages from a Kafka partition.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg := <-claim.Messages():
			if msg == nil {
				return nil
			}
			h.dispatch(session.Context(), msg.Value)
			session.MarkMessage(msg, "")
		}
	}
}

func (h *consumerGroupHandler) dispatch(ctx context.Context, value []byte) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.bus.log.Warn("Dropping undecodable kafka event", "topic", h.topic, "error", err)
		return
	}

	h.bus.mu.RLock()
	handlers := h.bus.handlers[h.topic]
	h.bus.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			h.bus.log.Warn("Event handler failed", "topic", h.topic, "event_id", event.ID, "error", err)
		}
	}
}

// ParseKafkaBrokers parses a comma-separated string of Kafka brokers.
func ParseKafkaBrokers(brokersStr string) []string {
	if strings.TrimSpace(brokersStr) == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(brokersStr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
