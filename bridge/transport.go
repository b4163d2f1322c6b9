package bridge

import (
	stdsql "database/sql"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/rise-and-shine/dddbase/observability/logger"
	"github.com/rise-and-shine/dddbase/pg"
)

const (
	DriverNone      = "none"
	DriverGoChannel = "gochannel"
	DriverKafka     = "kafka"
	DriverSQL       = "sql"
)

// Config selects the broker the bridge talks to.
type Config struct {
	Driver string `yaml:"driver" default:"none" validate:"oneof=none gochannel kafka sql"`
	Topic  string `yaml:"topic"  default:"events"`

	// Forward lists the event names published to the topic.
	Forward []string `yaml:"forward"`
	// Relay enables consuming the topic into the local event dispatcher.
	Relay bool `yaml:"relay" default:"false"`

	Kafka KafkaConfig `yaml:"kafka"`
	SQL   SQLConfig   `yaml:"sql"`
}

type KafkaConfig struct {
	Brokers       string `yaml:"brokers"`
	ClientID      string `yaml:"client_id"`
	ConsumerGroup string `yaml:"consumer_group"`
}

type SQLConfig struct {
	Postgres      *pg.Config    `yaml:"postgres"`
	ConsumerGroup string        `yaml:"consumer_group"`
	PollInterval  time.Duration `yaml:"poll_interval"  default:"500ms"`
	RetryInterval time.Duration `yaml:"retry_interval" default:"1s"`
	BatchSize     int           `yaml:"batch_size"     default:"100"`
}

// PubSub is a connected publisher and subscriber pair.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both sides.
func (p PubSub) Close() error {
	pubErr := p.Publisher.Close()
	if p.Subscriber == nil {
		return errx.Wrap(pubErr)
	}
	if err := p.Subscriber.Close(); err != nil {
		return errx.Wrap(err)
	}
	return errx.Wrap(pubErr)
}

// Open connects to the configured broker. It returns ok=false for DriverNone.
func Open(cfg Config, log logger.Logger) (PubSub, bool, error) {
	wlog := NewLoggerAdapter(log.Named("bridge.watermill"))

	switch cfg.Driver {
	case DriverNone, "":
		return PubSub{}, false, nil

	case DriverGoChannel:
		ch := NewGoChannel(wlog)
		return PubSub{Publisher: ch, Subscriber: ch}, true, nil

	case DriverKafka:
		pub, err := NewKafkaPublisher(cfg.Kafka, wlog)
		if err != nil {
			return PubSub{}, false, err
		}
		if !cfg.Relay {
			return PubSub{Publisher: pub}, true, nil
		}
		sub, err := NewKafkaSubscriber(cfg.Kafka, wlog)
		if err != nil {
			_ = pub.Close()
			return PubSub{}, false, err
		}
		return PubSub{Publisher: pub, Subscriber: sub}, true, nil

	case DriverSQL:
		if cfg.SQL.Postgres == nil {
			return PubSub{}, false, errx.New("[bridge]: sql driver needs postgres config", errx.WithType(errx.T_Validation))
		}
		pool, err := pg.NewPool(*cfg.SQL.Postgres)
		if err != nil {
			return PubSub{}, false, errx.Wrap(err)
		}
		db := stdlib.OpenDBFromPool(pool)

		pub, err := NewSQLPublisher(db, wlog)
		if err != nil {
			return PubSub{}, false, err
		}
		if !cfg.Relay {
			return PubSub{Publisher: pub}, true, nil
		}
		sub, err := NewSQLSubscriber(db, cfg.SQL, wlog)
		if err != nil {
			return PubSub{}, false, err
		}
		return PubSub{Publisher: pub, Subscriber: sub}, true, nil

	default:
		return PubSub{}, false, errx.New("[bridge]: unknown driver: "+cfg.Driver, errx.WithType(errx.T_Validation))
	}
}

// NewGoChannel returns an in-process pub/sub.
func NewGoChannel(log watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, log)
}

// NewKafkaPublisher publishes to Kafka, partitioning by saga id or event name.
func NewKafkaPublisher(cfg KafkaConfig, log watermill.LoggerAdapter) (message.Publisher, error) {
	saramaCfg := wkafka.DefaultSaramaSyncPublisherConfig()
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}

	marshaler := wkafka.NewWithPartitioningMarshaler(func(_ string, msg *message.Message) (string, error) {
		key := msg.Metadata.Get(MetaPartitionKey)
		if key == "" {
			return "", errx.New("[bridge]: partition key is empty")
		}
		return key, nil
	})

	publisher, err := wkafka.NewPublisher(brokers(cfg.Brokers), marshaler, saramaCfg, log)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return publisher, nil
}

// NewKafkaSubscriber consumes from Kafka within cfg.ConsumerGroup.
func NewKafkaSubscriber(cfg KafkaConfig, log watermill.LoggerAdapter) (message.Subscriber, error) {
	subscriber, err := wkafka.NewSubscriber(
		wkafka.SubscriberConfig{
			Brokers:       brokers(cfg.Brokers),
			ConsumerGroup: cfg.ConsumerGroup,
		},
		wkafka.DefaultSaramaSubscriberConfig(),
		wkafka.DefaultMarshaler{},
		log,
	)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return subscriber, nil
}

// NewSQLPublisher stores messages in a Postgres table per topic.
func NewSQLPublisher(db *stdsql.DB, log watermill.LoggerAdapter) (message.Publisher, error) {
	publisher, err := sql.NewPublisher(
		db,
		sql.PublisherConfig{
			SchemaAdapter:        sql.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: true,
		},
		log,
	)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return publisher, nil
}

// NewSQLSubscriber polls the Postgres table written by NewSQLPublisher.
func NewSQLSubscriber(db *stdsql.DB, cfg SQLConfig, log watermill.LoggerAdapter) (message.Subscriber, error) {
	subscriber, err := sql.NewSubscriber(
		db,
		sql.SubscriberConfig{
			ConsumerGroup:  cfg.ConsumerGroup,
			BackoffManager: sql.NewDefaultBackoffManager(cfg.PollInterval, cfg.RetryInterval),
			SchemaAdapter: sql.DefaultPostgreSQLSchema{
				SubscribeBatchSize: cfg.BatchSize,
			},
			OffsetsAdapter:   sql.DefaultPostgreSQLOffsetsAdapter{},
			InitializeSchema: true,
		},
		log,
	)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return subscriber, nil
}

func brokers(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
