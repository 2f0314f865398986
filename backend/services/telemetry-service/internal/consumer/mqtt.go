package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/stream"
)

const (
	mqttQoS          = 1
	mqttWaitTimeout  = 10 * time.Second
	mqttDisconnectMS = 250
)

// MQTTConfig selects broker and subscription.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// NewMQTTClient builds a reconnecting client with a persistent session. Acks are manual:
// a message that failed on storage stays unacknowledged and is redelivered when the
// session resumes.
func NewMQTTClient(cfg MQTTConfig) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false).
		SetAutoAckDisabled(true)
	return mqtt.NewClient(opts)
}

// MQTTSubscriber feeds frames published by devices into ingestion.
type MQTTSubscriber struct {
	client     mqtt.Client
	topic      string
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewMQTTSubscriber returns subscriber.
func NewMQTTSubscriber(client mqtt.Client, topic string, dispatcher Dispatcher, logger *zap.Logger) *MQTTSubscriber {
	return &MQTTSubscriber{client: client, topic: topic, dispatcher: dispatcher, logger: logger}
}

// Run connects, subscribes and blocks until ctx is cancelled.
func (s *MQTTSubscriber) Run(ctx context.Context) error {
	if err := wait(s.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer s.client.Disconnect(mqttDisconnectMS)

	if err := wait(s.client.Subscribe(s.topic, mqttQoS, s.handler(ctx))); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.topic, err)
	}
	s.logger.Info("mqtt subscriber started", zap.String("topic", s.topic))

	<-ctx.Done()
	if err := wait(s.client.Unsubscribe(s.topic)); err != nil {
		s.logger.Warn("mqtt unsubscribe failed", zap.Error(err))
	}
	s.logger.Info("mqtt subscriber stopped")
	return nil
}

func (s *MQTTSubscriber) handler(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		_, err := s.dispatcher.Dispatch(ctx, msg.Payload())
		switch {
		case err == nil:
			msg.Ack()
		case errors.Is(err, stream.ErrInvalidFrame):
			s.logger.Warn("dropping invalid frame", zap.String("topic", msg.Topic()), zap.Error(err))
			msg.Ack()
		default:
			s.logger.Error("mqtt frame ingestion failed", zap.String("topic", msg.Topic()), zap.Uint16("message_id", msg.MessageID()), zap.Error(err))
		}
	}
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(mqttWaitTimeout) {
		return errors.New("timed out")
	}
	return token.Error()
}
