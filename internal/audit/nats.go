package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vbonduro/pullsheet/internal/domain"
)

// SubjectPrefix is followed by the action, e.g. pullsheet.audit.login.
const SubjectPrefix = "pullsheet.audit."

type msgPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes every audit entry as JSON.
type NATSPublisher struct {
	conn  msgPublisher
	close func()
}

// ConnectNATS dials url and returns a publisher that owns the connection.
func ConnectNATS(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pullsheet"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: nc, close: nc.Close}, nil
}

func Subject(action string) string {
	return SubjectPrefix + action
}

func (p *NATSPublisher) Publish(ctx context.Context, in *domain.Interaction) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	if err := p.conn.Publish(Subject(in.Action), data); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}
