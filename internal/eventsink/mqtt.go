package eventsink

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MqttSink mirrors LogSink's leveled events to an MQTT broker, for
// deployments that already centralize device telemetry over MQTT.
// Publishing is best-effort: a disconnected or slow broker degrades to
// dropped log lines, never to blocked discovery processing.
type MqttSink struct {
	local  *LogSink
	client mqtt.Client
	topic  string
	queue  chan string
}

// NewMqttSink connects to broker (e.g. "tcp://localhost:1883") and starts a
// background publisher. verbose has the same meaning as LogSink's.
func NewMqttSink(broker, topic, clientID string, verbose int) (*MqttSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		if token.Error() != nil {
			return nil, fmt.Errorf("connect to mqtt broker %s: %w", broker, token.Error())
		}
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", broker)
	}

	s := &MqttSink{
		local:  NewLogSink(verbose),
		client: client,
		topic:  topic,
		queue:  make(chan string, 256),
	}
	go s.run()

	return s, nil
}

func (s *MqttSink) run() {
	for line := range s.queue {
		if !s.client.IsConnected() {
			continue
		}
		s.client.Publish(s.topic, 0, false, line)
	}
}

func (s *MqttSink) publish(level, format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s", level, fmt.Sprintf(format, args...))
	select {
	case s.queue <- line:
	default:
		// queue full: drop rather than block the discovery core
	}
}

func (s *MqttSink) Debugf(format string, args ...interface{}) {
	s.local.Debugf(format, args...)
	if s.local.verbose > 1 {
		s.publish("DEBUG", format, args...)
	}
}

func (s *MqttSink) Infof(format string, args ...interface{}) {
	s.local.Infof(format, args...)
	if s.local.verbose > 0 {
		s.publish("INFO", format, args...)
	}
}

func (s *MqttSink) Warnf(format string, args ...interface{}) {
	s.local.Warnf(format, args...)
	s.publish("WARN", format, args...)
}

func (s *MqttSink) Errorf(format string, args ...interface{}) {
	s.local.Errorf(format, args...)
	s.publish("ERROR", format, args...)
}

// Close disconnects from the broker and stops the publisher goroutine.
func (s *MqttSink) Close() {
	close(s.queue)
	s.client.Disconnect(250)
}
