package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/indexscout/index-scout/internal/pkg/errors"
	"github.com/indexscout/index-scout/internal/pkg/logger"
)

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers       []string // Kafka broker addresses
	Topic         string   // Topic carrying extended-JSON query events
	ConsumerGroup string   // Consumer group ID
	ClientID      string   // Client identifier
	Version       string   // Kafka version (e.g., "2.8.0")
}

// KafkaSource consumes query events shipped through a Kafka topic. Kafka has
// no natural end of stream, so this source is only meaningful in watch mode;
// a batch run over Kafka ends only via timeout or cancellation.
type KafkaSource struct {
	client   sarama.Client
	consumer sarama.ConsumerGroup
	topic    string

	events chan kafkaItem
	group  *errgroup.Group
	cancel context.CancelFunc

	closeOnce sync.Once
	log       *logger.Logger
}

type kafkaItem struct {
	doc RawEvent
	err error
}

// NewKafkaSource creates a Kafka-backed event source and starts consuming.
func NewKafkaSource(cfg KafkaConfig, log *logger.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.ValidationError("kafka brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, errors.ValidationError("kafka topic cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = "index-scout"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "index-scout-source"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}
	if log == nil {
		log = logger.Default()
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid kafka version", err)
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kafkaConfig.Consumer.Return.Errors = true
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = 10 * time.Second

	client, err := sarama.NewClient(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, errors.SourceUnavailable("create kafka client", err)
	}

	consumer, err := sarama.NewConsumerGroupFromClient(cfg.ConsumerGroup, client)
	if err != nil {
		client.Close()
		return nil, errors.SourceUnavailable("create kafka consumer group", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	s := &KafkaSource{
		client:   client,
		consumer: consumer,
		topic:    cfg.Topic,
		events:   make(chan kafkaItem, 256),
		group:    group,
		cancel:   cancel,
		log:      log.WithSource("kafka"),
	}

	group.Go(func() error {
		return s.consume(ctx)
	})

	return s, nil
}

// consume runs the consumer group session loop until the source is closed.
func (s *KafkaSource) consume(ctx context.Context) error {
	handler := &claimHandler{source: s}

	for {
		err := s.consumer.Consume(ctx, []string{s.topic}, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.log.WithError(err).Warn("kafka consume session ended, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Next blocks until a message arrives or the context is cancelled.
func (s *KafkaSource) Next(ctx context.Context) (RawEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item, ok := <-s.events:
		if !ok {
			return nil, ErrEndOfStream
		}
		return item.doc, item.err
	}
}

// Close stops the consumer and releases Kafka resources.
func (s *KafkaSource) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.group.Wait()
		close(s.events)

		if err := s.consumer.Close(); err != nil {
			closeErr = fmt.Errorf("close consumer: %w", err)
		}
		if err := s.client.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("close client: %w", err)
		}
	})
	return closeErr
}

// claimHandler implements sarama.ConsumerGroupHandler.
type claimHandler struct {
	source *KafkaSource
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, after all ConsumeClaim goroutines have exited.
func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim forwards decoded messages to the source channel.
func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			item := kafkaItem{}
			var doc bson.D
			if err := bson.UnmarshalExtJSON(msg.Value, false, &doc); err != nil {
				item.err = errors.MalformedEvent(fmt.Sprintf("offset %d: %v", msg.Offset, err))
			} else {
				item.doc = doc
			}

			select {
			case h.source.events <- item:
				session.MarkMessage(msg, "")
			case <-session.Context().Done():
				return nil
			}
		}
	}
}

// ParseBrokers parses a comma-separated string of Kafka brokers.
func ParseBrokers(brokersStr string) []string {
	if brokersStr == "" {
		return nil
	}
	brokers := strings.Split(brokersStr, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}
