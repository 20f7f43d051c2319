package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"farmalytica/api/models"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var errBadPayload = errors.New("invalid sensor payload")

// sensorIngest stores probe readings published over MQTT.
type sensorIngest struct {
	broker   string
	topic    string
	clientID string
	user     string
	password string

	log   *zap.Logger
	store func(ctx context.Context, r *models.SoilReading) error
	now   func() time.Time
}

func newSensorIngest(cfg Config, log *zap.Logger, store func(context.Context, *models.SoilReading) error) *sensorIngest {
	return &sensorIngest{
		broker:   cfg.MQTTBroker,
		topic:    cfg.MQTTTopic,
		clientID: cfg.MQTTClientID,
		user:     cfg.MQTTUser,
		password: cfg.MQTTPassword,
		log:      log,
		store:    store,
		now:      time.Now,
	}
}

// handle decodes and stores one message. A bad payload is reported, never retried.
func (s *sensorIngest) handle(ctx context.Context, topic string, payload []byte) error {
	var in models.ReadingInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("%w on %s: %v", errBadPayload, topic, err)
	}
	reading, ok := in.Reading(models.SourceMQTT, s.now())
	if !ok {
		return fmt.Errorf("%w on %s: missing required fields", errBadPayload, topic)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return s.store(ctx, &reading)
}

func (s *sensorIngest) connect() (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.broker)
	opts.SetClientID(s.clientID)
	opts.SetUsername(s.user)
	opts.SetPassword(s.password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	const maxTries = 5

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			s.log.Warn("mqtt connect failed", zap.String("broker", s.broker), zap.Error(token.Error()))
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, maxTries-1))
	if err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", s.broker, err)
	}
	return client, nil
}

// run subscribes and blocks until ctx is cancelled.
func (s *sensorIngest) run(ctx context.Context) error {
	client, err := s.connect()
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(s.topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		if err := s.handle(ctx, m.Topic(), m.Payload()); err != nil {
			s.log.Warn("sensor reading dropped", zap.String("topic", m.Topic()), zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.topic, token.Error())
	}
	s.log.Info("subscribed to sensor readings", zap.String("broker", s.broker), zap.String("topic", s.topic))

	<-ctx.Done()
	client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	return nil
}
