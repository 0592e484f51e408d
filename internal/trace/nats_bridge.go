package trace

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	nc "github.com/nats-io/nats.go"
)

// NatsBridge subscribes to a Fabric as an ordinary Subscriber and
// republishes every line it receives to a NATS subject derived from its
// category, so an out-of-process observer can watch the feed without
// holding an in-process subscription.
type NatsBridge struct {
	conn          *nc.Conn
	subjectPrefix string
}

// NewNatsBridge connects to url and returns a bridge that publishes under
// subjectPrefix (e.g. "npccore.trace" yields "npccore.trace.CMD", etc).
func NewNatsBridge(url, subjectPrefix string) (*NatsBridge, error) {
	conn, err := nc.Connect(url, nc.Name("npccore-trace-bridge"), nc.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("trace: connecting to nats: %w", err)
	}
	return &NatsBridge{conn: conn, subjectPrefix: subjectPrefix}, nil
}

// Deliver implements Subscriber. Publish failures are logged, not
// returned — trace fan-out is best-effort and must never block or break
// delivery to other subscribers.
func (b *NatsBridge) Deliver(line Line) {
	data, err := json.Marshal(line)
	if err != nil {
		slog.Warn("trace: marshal line for nats publish failed", "error", err)
		return
	}
	subject := fmt.Sprintf("%s.%s", b.subjectPrefix, line.Category)
	if err := b.conn.Publish(subject, data); err != nil {
		slog.Warn("trace: nats publish failed", "subject", subject, "error", err)
	}
}

// Close closes the underlying NATS connection.
func (b *NatsBridge) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}
