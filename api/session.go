package api

import (
	"fmt"
	"strconv"
	"strings"
)

// Handshake is the result of a control-process client's opening "session
// ping" line (spec.md §6.3).
type Handshake struct {
	ClientUUID string
	StartedAt  string
}

// ParseHandshake parses "session ping <client-uuid> <client-start-timestamp>".
func ParseHandshake(line string) (*Handshake, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != "session" || fields[1] != "ping" {
		return nil, newParseError(line, "expected 'session ping <uuid> <timestamp>'")
	}
	return &Handshake{ClientUUID: fields[2], StartedAt: fields[3]}, nil
}

// Pong renders the daemon's handshake reply: "pong <daemon-uuid>
// active=true|false request_id=<id>".
func Pong(daemonUUID string, active bool, requestID int) string {
	return fmt.Sprintf("pong %s active=%t request_id=%d", daemonUUID, active, requestID)
}

// IsAckEnable reports whether line is "session ack enable", which turns on
// per-command completion markers for that client (spec.md §6.3).
func IsAckEnable(line string) bool {
	return strings.TrimSpace(line) == "session ack enable"
}

// ClientRegistry tracks which client UUID currently holds an active
// control-socket session, so a newer connection can preempt an older one
// (spec.md §6.3 "If active=false, a newer client has preempted this one").
type ClientRegistry struct {
	active    string
	nextReqID int
}

// Register admits a new client as the active one, returning its assigned
// request id and whether it preempted a different prior client.
func (r *ClientRegistry) Register(clientUUID string) (requestID int, preempted bool) {
	r.nextReqID++
	preempted = r.active != "" && r.active != clientUUID
	r.active = clientUUID
	return r.nextReqID, preempted
}

// IsActive reports whether clientUUID is the currently registered client.
func (r *ClientRegistry) IsActive(clientUUID string) bool {
	return r.active == clientUUID
}

// RequestID allocates the next response-routing id for a command issued by
// the active client (spec.md §6.3 "a response may include a
// request_id=<id> suffix which the control process uses to route the
// response to the originating client").
func (r *ClientRegistry) RequestID() int {
	r.nextReqID++
	return r.nextReqID
}

// WithRequestID appends a "request_id=<id>" suffix to a response line, for
// a client that has issued `session ack enable`.
func WithRequestID(line string, requestID int) string {
	return line + " request_id=" + strconv.Itoa(requestID)
}
