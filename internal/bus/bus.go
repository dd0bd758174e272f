// Package bus is the MQTT fabric connecting the launcher, the Pi agents,
// and the dashboard. Everything on the wire is JSON at QoS 0.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"airwave/internal/logging"
)

// mqttConn is the slice of paho's client the bus uses. Narrow so tests can
// substitute a fake.
type mqttConn interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	IsConnected() bool
}

// Options configures a Bus connection.
type Options struct {
	Broker   string // host or IP, no scheme
	Port     int    // 1883 when zero
	ClientID string // generated when empty

	// WillTopic, when set, installs a last-will message so subscribers see
	// an offline status if the connection dies. Close publishes the same
	// payload cleanly.
	WillTopic   string
	WillPayload interface{}
}

// Bus is a connected MQTT client with typed publish and subscribe helpers.
type Bus struct {
	opts Options
	log  *logging.Logger

	mu   sync.Mutex
	conn mqttConn
	subs map[string][]mqtt.MessageHandler

	will []byte

	// newConn is swapped in tests.
	newConn func(*mqtt.ClientOptions) mqttConn
}

// New builds an unconnected Bus.
func New(o Options) (*Bus, error) {
	if o.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}
	if o.Port == 0 {
		o.Port = 1883
	}
	if o.ClientID == "" {
		o.ClientID = "airwave-" + uuid.NewString()[:8]
	}

	b := &Bus{
		opts: o,
		log:  logging.Get(logging.CategoryMQTT),
		subs: make(map[string][]mqtt.MessageHandler),
		newConn: func(co *mqtt.ClientOptions) mqttConn {
			return mqtt.NewClient(co)
		},
	}

	if o.WillTopic != "" {
		data, err := json.Marshal(o.WillPayload)
		if err != nil {
			return nil, fmt.Errorf("marshal will payload: %w", err)
		}
		b.will = data
	}
	return b, nil
}

// Connect dials the broker and blocks until connected or ctx expires.
// Subscriptions made before Connect are replayed once connected, and again
// after every automatic reconnect.
func (b *Bus) Connect(ctx context.Context) error {
	co := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", b.opts.Broker, b.opts.Port)).
		SetClientID(b.opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true)

	if b.opts.WillTopic != "" {
		co.SetBinaryWill(b.opts.WillTopic, b.will, 0, false)
	}
	co.SetOnConnectHandler(func(mqtt.Client) {
		b.log.Debug("connected to %s:%d as %s", b.opts.Broker, b.opts.Port, b.opts.ClientID)
		b.resubscribe()
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.Warn("connection lost: %v", err)
	})

	b.mu.Lock()
	b.conn = b.newConn(co)
	conn := b.conn
	b.mu.Unlock()

	return b.wait(ctx, conn.Connect())
}

// Close publishes the offline will payload (if any) and disconnects.
func (b *Bus) Close() {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return
	}
	if b.opts.WillTopic != "" && conn.IsConnected() {
		conn.Publish(b.opts.WillTopic, 0, false, b.will).Wait()
	}
	conn.Disconnect(250)
}

// Connected reports whether the underlying client is connected.
func (b *Bus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}

// Publish marshals v as JSON and publishes it.
func (b *Bus) Publish(topic string, v interface{}) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("publish %s: not connected", topic)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("publish %s: marshal: %w", topic, err)
	}
	tok := conn.Publish(topic, 0, false, data)
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	b.log.Debug("published %s: %s", topic, data)
	return nil
}

// Subscribe registers a raw handler for a topic. Safe to call before
// Connect; the subscription is made on (re)connect. A topic may carry any
// number of handlers; each message is delivered to all of them in
// registration order.
func (b *Bus) Subscribe(topic string, fn func(topic string, payload []byte)) {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		fn(msg.Topic(), msg.Payload())
	}

	b.mu.Lock()
	first := len(b.subs[topic]) == 0
	b.subs[topic] = append(b.subs[topic], handler)
	conn := b.conn
	b.mu.Unlock()

	// Only the first handler installs the route; later ones are picked up
	// by the shared dispatcher.
	if first && conn != nil && conn.IsConnected() {
		conn.Subscribe(topic, 0, b.route)
	}
}

// route fans an incoming message out to every handler registered for its
// topic. It is the single handler the paho router ever sees per topic.
func (b *Bus) route(c mqtt.Client, msg mqtt.Message) {
	b.mu.Lock()
	handlers := append([]mqtt.MessageHandler(nil), b.subs[msg.Topic()]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(c, msg)
	}
}

// resubscribe replays all registered subscriptions on the live connection.
func (b *Bus) resubscribe() {
	b.mu.Lock()
	conn := b.conn
	topics := make([]string, 0, len(b.subs))
	for t := range b.subs {
		topics = append(topics, t)
	}
	b.mu.Unlock()

	for _, topic := range topics {
		if tok := conn.Subscribe(topic, 0, b.route); tok.Wait() && tok.Error() != nil {
			b.log.Error("subscribe %s: %v", topic, tok.Error())
		}
	}
}

func (b *Bus) wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishGesture publishes a gesture or voice event on home/gestures.
func (b *Bus) PublishGesture(ev GestureEvent) error {
	return b.Publish(TopicGestures, ev)
}

// PublishMood publishes a mood event on home/mood.
func (b *Bus) PublishMood(ev MoodEvent) error {
	return b.Publish(TopicMood, ev)
}

// OnGesture subscribes to home/gestures with a decoded handler.
func (b *Bus) OnGesture(fn func(GestureEvent)) {
	b.Subscribe(TopicGestures, func(topic string, payload []byte) {
		var ev GestureEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			b.log.Error("bad payload on %s: %v", topic, err)
			return
		}
		if ev.Type == "" {
			return
		}
		fn(ev)
	})
}

// OnMood subscribes to home/mood with a decoded handler.
func (b *Bus) OnMood(fn func(MoodEvent)) {
	b.Subscribe(TopicMood, func(topic string, payload []byte) {
		var ev MoodEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			b.log.Error("bad payload on %s: %v", topic, err)
			return
		}
		fn(ev)
	})
}

// OnCommand subscribes to a commands topic with a decoded handler.
func (b *Bus) OnCommand(topic string, fn func(Command)) {
	b.Subscribe(topic, func(topic string, payload []byte) {
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			b.log.Error("bad payload on %s: %v", topic, err)
			return
		}
		if cmd.Command == "" {
			return
		}
		fn(cmd)
	})
}

// OnPi1Status subscribes to home/pi1/status with a decoded handler.
func (b *Bus) OnPi1Status(fn func(Pi1Status)) {
	b.Subscribe(TopicPi1Status, func(topic string, payload []byte) {
		var st Pi1Status
		if err := json.Unmarshal(payload, &st); err != nil {
			b.log.Error("bad payload on %s: %v", topic, err)
			return
		}
		fn(st)
	})
}

// OnPi2Status subscribes to home/pi2/status with a decoded handler.
func (b *Bus) OnPi2Status(fn func(Pi2Status)) {
	b.Subscribe(TopicPi2Status, func(topic string, payload []byte) {
		var st Pi2Status
		if err := json.Unmarshal(payload, &st); err != nil {
			b.log.Error("bad payload on %s: %v", topic, err)
			return
		}
		fn(st)
	})
}
