package bus

import (
	"fmt"
	"strings"

	"github.com/crsarena/arena-eval/internal/config"
	"github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
)

// NewBus creates a new Bus instance based on the configuration. When a
// journal path is configured the bus also writes every event to disk.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	var b Bus

	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		b = NewMemoryBus(log)

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		group := cfg.KafkaGroup
		if group == "" {
			group = "arena-eval"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: group,
			TopicPrefix:   cfg.KafkaTopicPrefix,
		}, log)
		if err != nil {
			return nil, err
		}
		b = kb

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.JournalPath != "" {
		journal, err := OpenJournal(cfg.JournalPath)
		if err != nil {
			_ = b.Close()
			return nil, errors.Wrap(errors.CodeInternal, "opening event journal", err)
		}
		b = NewLoggedBus(b, journal, log)
	}

	return b, nil
}
