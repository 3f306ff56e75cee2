package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

// Publisher relays recorded webhook events to a message bus.
type Publisher interface {
	// Publish sends an event to a specific topic.
	Publish(ctx context.Context, topic string, event WebhookEvent) error
	// Close gracefully closes the publisher and its underlying connections.
	Close() error
}

// PublisherFactory builds a watermill publisher for a custom driver.
type PublisherFactory func(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, error)

var publisherFactories = map[string]PublisherFactory{}

// RegisterPublisherDriver registers a new publisher driver.
func RegisterPublisherDriver(name string, factory PublisherFactory) {
	if name == "" || factory == nil {
		return
	}
	publisherFactories[strings.ToLower(name)] = factory
}

// NewPublisher creates a publisher for every configured driver.
func NewPublisher(cfg WatermillConfig) (Publisher, error) {
	drivers := cfg.Drivers
	if len(drivers) == 0 && cfg.Driver != "" {
		drivers = []string{cfg.Driver}
	}
	if len(drivers) == 0 {
		return nil, errors.New("no relay driver configured")
	}
	logger := watermill.NewStdLogger(false, false)

	pubs := make(map[string]message.Publisher, len(drivers))
	order := make([]string, 0, len(drivers))
	for _, driver := range drivers {
		key := strings.ToLower(strings.TrimSpace(driver))
		if key == "" {
			continue
		}
		if _, ok := pubs[key]; ok {
			continue
		}
		pub, err := newSinglePublisher(cfg, key, logger)
		if err != nil {
			for _, built := range pubs {
				_ = built.Close()
			}
			return nil, fmt.Errorf("relay driver %s: %w", key, err)
		}
		pubs[key] = pub
		order = append(order, key)
	}
	if len(pubs) == 0 {
		return nil, errors.New("no relay driver configured")
	}
	return &publisherMux{publishers: pubs, drivers: order}, nil
}

func newSinglePublisher(cfg WatermillConfig, driver string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	switch driver {
	case "gochannel":
		return gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            cfg.GoChannel.OutputChannelBuffer,
			Persistent:                     cfg.GoChannel.Persistent,
			BlockPublishUntilSubscriberAck: cfg.GoChannel.BlockPublishUntilSubscriberAck,
		}, logger), nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return nil, errors.New("amqp url is required")
		}
		amqpCfg, err := amqpConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		if err != nil {
			return nil, err
		}
		return wmamqp.NewPublisher(amqpCfg, logger)
	case "nats":
		if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
			return nil, errors.New("nats cluster_id and client_id are required")
		}
		natsCfg := wmnats.StreamingPublisherConfig{
			ClusterID: cfg.NATS.ClusterID,
			ClientID:  cfg.NATS.ClientID,
			Marshaler: wmnats.GobMarshaler{},
		}
		if cfg.NATS.URL != "" {
			natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
		}
		return wmnats.NewStreamingPublisher(natsCfg, logger)
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, errors.New("kafka brokers are required")
		}
		return wmkafka.NewPublisher(cfg.Kafka.Brokers, wmkafka.DefaultMarshaler{}, nil, logger)
	case "http":
		if strings.TrimSpace(cfg.HTTP.BaseURL) == "" {
			return nil, errors.New("http base_url is required")
		}
		marshal, err := httpMarshalFunc(cfg.HTTP.BaseURL, cfg.HTTP.Mode)
		if err != nil {
			return nil, err
		}
		return wmhttp.NewPublisher(wmhttp.PublisherConfig{
			MarshalMessageFunc: marshal,
			Client:             &http.Client{Timeout: 10 * time.Second},
		}, logger)
	default:
		if factory, ok := publisherFactories[driver]; ok {
			return factory(cfg, logger)
		}
		return nil, fmt.Errorf("unsupported relay driver: %s", driver)
	}
}

func amqpConfigFromMode(url, mode string) (wmamqp.Config, error) {
	switch strings.ToLower(mode) {
	case "", "durable_queue":
		return wmamqp.NewDurableQueueConfig(url), nil
	case "nondurable_queue":
		return wmamqp.NewNonDurableQueueConfig(url), nil
	case "durable_pubsub":
		return wmamqp.NewDurablePubSubConfig(url, nil), nil
	case "nondurable_pubsub":
		return wmamqp.NewNonDurablePubSubConfig(url, nil), nil
	default:
		return wmamqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", mode)
	}
}

// httpMarshalFunc maps a topic to a request URL. In topic_url mode the topic
// is appended to the base URL; in base_url mode every topic posts to the base.
func httpMarshalFunc(baseURL, mode string) (wmhttp.MarshalMessageFunc, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "topic_url":
		return func(topic string, msg *message.Message) (*http.Request, error) {
			return wmhttp.DefaultMarshalMessageFunc(base+"/"+strings.TrimLeft(topic, "/"), msg)
		}, nil
	case "base_url":
		return func(_ string, msg *message.Message) (*http.Request, error) {
			return wmhttp.DefaultMarshalMessageFunc(base, msg)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported http mode: %s", mode)
	}
}

// newEventMessage encodes an event as a JSON watermill message.
func newEventMessage(ctx context.Context, event WebhookEvent) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("content_type", "application/json")
	msg.Metadata.Set("received_at", event.Timestamp)
	if event.RequestID != "" {
		msg.Metadata.Set("request_id", event.RequestID)
	}
	if ctx != nil {
		msg.SetContext(ctx)
	}
	return msg, nil
}

// publisherMux fans an event out to every configured driver.
type publisherMux struct {
	publishers map[string]message.Publisher
	drivers    []string
}

// Publish sends the event to every driver and joins their errors.
func (m *publisherMux) Publish(ctx context.Context, topic string, event WebhookEvent) error {
	var err error
	for _, driver := range m.drivers {
		msg, buildErr := newEventMessage(ctx, event)
		if buildErr != nil {
			return buildErr
		}
		if publishErr := m.publishers[driver].Publish(topic, msg); publishErr != nil {
			err = errors.Join(err, fmt.Errorf("%s: %w", driver, publishErr))
		}
	}
	return err
}

// Close closes all underlying publishers.
func (m *publisherMux) Close() error {
	var err error
	for _, driver := range m.drivers {
		err = errors.Join(err, m.publishers[driver].Close())
	}
	return err
}
