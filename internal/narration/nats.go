package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/talkmate-aac/talkmate/internal/config"
)

// NATS forwards utterances to a speaker device listening on the bus.
//
// Subjects, relative to the configured prefix:
//
//	<prefix>.speak           utterance JSON, published
//	<prefix>.cancel          {"id": ...}, published
//	<prefix>.voices          request/reply, answers a JSON voice array
//	<prefix>.voices.changed  any message triggers a voice reload
type NATS struct {
	conn           *nats.Conn
	prefix         string
	requestTimeout time.Duration
	log            *slog.Logger
}

// ConnectNATS dials the configured servers
func ConnectNATS(cfg config.NATSConfig, log *slog.Logger) (*NATS, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url,
		nats.Name("talkmate-narration"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout)*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))
	return NewNATS(conn, cfg, log), nil
}

// NewNATS wraps an established connection
func NewNATS(conn *nats.Conn, cfg config.NATSConfig, log *slog.Logger) *NATS {
	return &NATS{
		conn:           conn,
		prefix:         cfg.SubjectPrefix,
		requestTimeout: time.Duration(cfg.RequestTimeout) * time.Millisecond,
		log:            log.With(slog.String("component", "narration-nats")),
	}
}

func (n *NATS) subject(name string) string {
	return n.prefix + "." + name
}

func (n *NATS) Voices(ctx context.Context) ([]Voice, error) {
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}
	msg, err := n.conn.RequestWithContext(ctx, n.subject("voices"), nil)
	if err != nil {
		return nil, fmt.Errorf("request voices: %w", err)
	}
	var voices []Voice
	if err := json.Unmarshal(msg.Data, &voices); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	return voices, nil
}

// Speak publishes the utterance and returns; playback happens on the device
func (n *NATS) Speak(_ context.Context, u Utterance) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject("speak"), data)
}

func (n *NATS) Cancel(_ context.Context, id string) error {
	data, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject("cancel"), data)
}

func (n *NATS) Subscribe(onChange func()) (func(), error) {
	sub, err := n.conn.Subscribe(n.subject("voices.changed"), func(*nats.Msg) {
		// the handler runs on the connection's dispatch goroutine
		go onChange()
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe voices.changed: %w", err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			n.log.Warn("unsubscribe voices.changed", slog.String("error", err.Error()))
		}
	}, nil
}

func (n *NATS) Healthy() bool {
	return n != nil && n.conn != nil && n.conn.Status() == nats.CONNECTED
}

func (n *NATS) Close() {
	if n == nil || n.conn == nil {
		return
	}
	n.log.Info("closing NATS connection")
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}
