package telemetry

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/config"
)

const (
	connectTimeout   = 15 * time.Second
	subscribeTimeout = 10 * time.Second
	handleTimeout    = 5 * time.Second
	qosAtLeastOnce   = 1
)

// Listener subscribes to the connector status topic on an MQTT broker.
type Listener struct {
	cfg     config.MQTTConfig
	applier *Applier
	client  mqtt.Client
	logger  zerolog.Logger
}

func NewListener(cfg config.MQTTConfig, applier *Applier) *Listener {
	return &Listener{
		cfg:     cfg,
		applier: applier,
		logger:  log.With().Str("component", "telemetry").Logger(),
	}
}

// Start connects and subscribes. Subscriptions are restored on reconnect.
func (l *Listener) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(l.cfg.BrokerURL)
	opts.SetClientID(l.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetCleanSession(true)
	opts.OnConnect = func(client mqtt.Client) {
		l.logger.Info().Str("broker", l.cfg.BrokerURL).Msg("MQTT connected")
		token := client.Subscribe(l.cfg.Topic, qosAtLeastOnce, l.onMessage)
		if !token.WaitTimeout(subscribeTimeout) {
			l.logger.Warn().Str("topic", l.cfg.Topic).Msg("Timed out subscribing to MQTT topic")
			return
		}
		if err := token.Error(); err != nil {
			l.logger.Error().Err(err).Str("topic", l.cfg.Topic).Msg("Failed to subscribe to MQTT topic")
			return
		}
		l.logger.Info().Str("topic", l.cfg.Topic).Msg("Subscribed to connector status")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		l.logger.Warn().Err(err).Msg("MQTT connection lost")
	}

	l.client = mqtt.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// ConnectRetry keeps trying in the background.
		l.logger.Warn().Str("broker", l.cfg.BrokerURL).Msg("MQTT broker not reachable yet")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker %s: %w", l.cfg.BrokerURL, err)
	}
	return nil
}

func (l *Listener) onMessage(client mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	ctx = l.logger.WithContext(ctx)

	if err := l.applier.Handle(ctx, msg.Topic(), msg.Payload()); err != nil {
		l.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Rejected connector status")
		return
	}
	l.logger.Debug().Str("topic", msg.Topic()).Msg("Applied connector status")
}

// Stop disconnects, waiting briefly for in-flight work.
func (l *Listener) Stop() {
	if l.client == nil {
		return
	}
	l.client.Disconnect(250)
	l.logger.Info().Msg("MQTT disconnected")
}
