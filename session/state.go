// Package session drives one peer's BGP finite state machine (RFC 4271 §8):
// Idle, Connect, Active, OpenSent, OpenConfirm, Established, with the
// timers, collision resolution, and error taxonomy that tie the transport
// and message layers together into a running session (spec.md §4.7).
//
// Grounded on the teacher's fsm/fsm.go (session attribute fields, dial/
// drop/write) and the simpler root fsm.go/peer.go/timers.go (state/event
// name tables, reused here verbatim as this package's own). Rather than
// the teacher's event-queue dispatch, Session exposes an explicit
// Poll(now) step function per the teacher's own Design Notes
// recommendation ("fold each peer's logic into an explicit poll(&mut
// self, now) step function").
package session

// State is one BGP FSM state (RFC 4271 §8.2.1).
type State int

const (
	Idle State = iota
	Connect
	Active
	OpenSent
	OpenConfirm
	Established
)

var stateName = map[State]string{
	Idle:        "Idle",
	Connect:     "Connect",
	Active:      "Active",
	OpenSent:    "OpenSent",
	OpenConfirm: "OpenConfirm",
	Established: "Established",
}

func (s State) String() string {
	if name, ok := stateName[s]; ok {
		return name
	}
	return "Unknown"
}

// Event is one FSM input. The administrative/TCP/message-layer events a
// session actually needs are a small subset of RFC 4271's full table;
// names are kept consistent with the teacher's event constants.
type Event int

const (
	ManualStart Event = iota
	ManualStop
	ConnectRetryTimerExpires
	HoldTimerExpires
	KeepaliveTimerExpires
	TCPConnectionConfirmed
	TCPConnectionFails
	BGPOpen
	BGPOpenMsgErr
	BGPHeaderErr
	KeepAliveMsg
	UpdateMsg
	UpdateMsgErr
	NotifMsg
	NotifMsgVerErr
	OpenCollisionDump
)

var eventName = map[Event]string{
	ManualStart:              "ManualStart",
	ManualStop:               "ManualStop",
	ConnectRetryTimerExpires: "ConnectRetryTimerExpires",
	HoldTimerExpires:         "HoldTimerExpires",
	KeepaliveTimerExpires:    "KeepaliveTimerExpires",
	TCPConnectionConfirmed:   "TCPConnectionConfirmed",
	TCPConnectionFails:       "TCPConnectionFails",
	BGPOpen:                  "BGPOpen",
	BGPOpenMsgErr:            "BGPOpenMsgErr",
	BGPHeaderErr:             "BGPHeaderErr",
	KeepAliveMsg:             "KeepAliveMsg",
	UpdateMsg:                "UpdateMsg",
	UpdateMsgErr:             "UpdateMsgErr",
	NotifMsg:                 "NotifMsg",
	NotifMsgVerErr:           "NotifMsgVerErr",
	OpenCollisionDump:        "OpenCollisionDump",
}

func (e Event) String() string {
	if name, ok := eventName[e]; ok {
		return name
	}
	return "Unknown"
}

// fromWire reports whether event represents a message the peer actually
// sent, as opposed to an administrative or timer-driven event local to
// this system - the distinction Session.Deliver uses to count messages
// received (spec.md §6.2 "show neighbor" message counters).
func (e Event) fromWire() bool {
	switch e {
	case BGPOpen, BGPOpenMsgErr, BGPHeaderErr, KeepAliveMsg, UpdateMsg, UpdateMsgErr, NotifMsg, NotifMsgVerErr:
		return true
	default:
		return false
	}
}
