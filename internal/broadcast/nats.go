package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/vinayprograms/agentkit/logging"
)

// NATSMirror republishes every session event on a NATS subject so observers
// outside the process can follow a run. Delivery is best-effort, matching
// the in-process stream.
type NATSMirror struct {
	conn   *nats.Conn
	prefix string
	logger *logging.Logger
}

// NewNATSMirror connects to a NATS server. Events for a session are
// published on "<prefix>.<session_id>".
func NewNATSMirror(url, prefix string) (*NATSMirror, error) {
	conn, err := nats.Connect(url, nats.Name("taskmill"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if prefix == "" {
		prefix = "taskmill.sessions"
	}
	return &NATSMirror{
		conn:   conn,
		prefix: prefix,
		logger: logging.New().WithComponent("nats-mirror"),
	}, nil
}

// Publish mirrors one event. Failures are logged, never surfaced.
func (m *NATSMirror) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	subject := m.prefix + "." + ev.SessionID
	if err := m.conn.Publish(subject, data); err != nil {
		m.logger.Debug("mirror publish failed", map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		})
	}
}

// Close drains and closes the connection.
func (m *NATSMirror) Close() {
	_ = m.conn.Drain()
}
