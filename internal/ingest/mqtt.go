package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/slamviewer/internal/viewer"
)

// Config holds broker settings shared by Subscriber and Publisher.
type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	Prefix   string
	ClientID string

	ConnectTimeout time.Duration
}

// DefaultConfig returns settings for a local broker.
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		Prefix:         DefaultPrefix,
		ConnectTimeout: 5 * time.Second,
	}
}

func (c Config) clientOptions(role string) *mqtt.ClientOptions {
	id := c.ClientID
	if id == "" {
		id = "slamviewer-" + role + "-" + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logf("%s connection to %s lost, reconnecting: %v", role, c.Broker, err)
	}
	return opts
}

func connect(ctx context.Context, client mqtt.Client, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(timeout):
		return errors.New("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Subscriber listens on every category topic and applies messages to a
// State. Paho delivers messages on its own goroutine, which makes the
// subscriber one more producer.
type Subscriber struct {
	cfg     Config
	handler *Handler
	client  mqtt.Client
}

// NewSubscriber creates an unconnected subscriber.
func NewSubscriber(cfg Config, state *viewer.State) *Subscriber {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Subscriber{cfg: cfg, handler: NewHandler(state, cfg.Prefix)}
}

// Handler returns the message handler, for stats.
func (s *Subscriber) Handler() *Handler {
	return s.handler
}

// OnMessage is the paho callback for every category topic.
func (s *Subscriber) OnMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.handler.Handle(msg.Topic(), msg.Payload()); err != nil {
		logf("dropped %s: %v", msg.Topic(), err)
	}
}

// Start connects and subscribes. Subscriptions are renewed on reconnect.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := s.cfg.clientOptions("sub")
	opts.OnConnect = func(c mqtt.Client) {
		filters := make(map[string]byte, len(Topics))
		for _, t := range Topics {
			filters[s.cfg.Prefix+t] = defaultSubscriptionQoS
		}
		token := c.SubscribeMultiple(filters, s.OnMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			logf("subscribe failed: %v", err)
			return
		}
		logf("subscribed to %d topics under %s", len(filters), s.cfg.Prefix)
	}

	s.client = mqtt.NewClient(opts)
	if err := connect(ctx, s.client, s.cfg.ConnectTimeout); err != nil {
		return err
	}
	logf("connected to %s", s.cfg.Broker)
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	if s.client == nil {
		return
	}
	s.client.Disconnect(250)
	st := s.handler.Stats()
	logf("disconnected: accepted=%d dropped=%d", st.Accepted, st.Dropped)
}

// Publisher encodes pushes as ingest messages. It has the same push methods
// as viewer.State, so an estimator can target either.
type Publisher struct {
	cfg    Config
	client mqtt.Client
}

// NewPublisher wraps a client. Pass nil to have Start create one.
func NewPublisher(cfg Config, client mqtt.Client) *Publisher {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Publisher{cfg: cfg, client: client}
}

// Start connects a publisher created without a client.
func (p *Publisher) Start(ctx context.Context) error {
	if p.client == nil {
		p.client = mqtt.NewClient(p.cfg.clientOptions("pub"))
	}
	return connect(ctx, p.client, p.cfg.ConnectTimeout)
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}

func (p *Publisher) publish(suffix string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", suffix, err)
	}
	token := p.client.Publish(p.cfg.Prefix+suffix, 0, false, payload)
	token.Wait()
	return token.Error()
}

func (p *Publisher) PushRawPosition(pt viewer.Point, offset int) error {
	return p.publish(TopicRawPosition, PositionMessage{P: arr(pt), Offset: offset})
}

func (p *Publisher) PushPosition(pt viewer.Point, offset int) error {
	return p.publish(TopicPosition, PositionMessage{P: arr(pt), Offset: offset})
}

func (p *Publisher) PushOrientation(r mat.Matrix) error {
	rows, cols := r.Dims()
	if rows != 3 || cols != 3 {
		return fmt.Errorf("%w: got %dx%d", viewer.ErrNotRotation, rows, cols)
	}
	var m [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i*3+j] = r.At(i, j)
		}
	}
	return p.publish(TopicOrientation, OrientationMessage{R: &m})
}

func (p *Publisher) PushLandmarks(landmarks map[int64]viewer.Point) {
	m := LandmarksMessage{Landmarks: make(map[int64][3]float64, len(landmarks))}
	for id, pt := range landmarks {
		m.Landmarks[id] = *arr(pt)
	}
	if err := p.publish(TopicLandmarks, m); err != nil {
		logf("publish landmarks: %v", err)
	}
}

func (p *Publisher) PushLoopLink(ref, cur int) error {
	return p.publish(TopicLoop, LoopMessage{Ref: &ref, Cur: &cur})
}

func (p *Publisher) PushOptimizedPosition(pt viewer.Point) {
	if err := p.publish(TopicFullBAPosition, PositionMessage{P: arr(pt)}); err != nil {
		logf("publish full BA position: %v", err)
	}
}
