package publisher

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to the event kind to form the subject.
const SubjectPrefix = "arcticbus"

type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to url. Reconnects are handled by the client.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("arcticbus"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc}, nil
}

func subject(kind string) string {
	return SubjectPrefix + "." + kind
}

// Publish sends ev with its ID as the message ID header so a JetStream
// stream on the subject can de-duplicate.
func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	msg, err := natsMsg(ev)
	if err != nil {
		return err
	}
	return p.nc.PublishMsg(msg)
}

func natsMsg(ev Event) (*nats.Msg, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject(ev.Kind))
	msg.Header.Set(nats.MsgIdHdr, ev.ID)
	msg.Data = b
	return msg, nil
}

func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
