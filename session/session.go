package session

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"bgpd/attribute"
	"bgpd/bgp"
	"bgpd/counter"
	"bgpd/message"
	"bgpd/rib"
	"bgpd/timer"
)

// Action is what the caller of Poll/Deliver must do next: write bytes to
// the wire, tear down the connection, or nothing. It is the step
// function's return value, per the teacher's own Design Notes
// recommendation to fold generator-style coroutines into an explicit
// poll(now) function.
type Action struct {
	Send   []byte      // framed message(s) to write, if non-nil
	Notify *bgp.Notify // set when the session must be torn down with this NOTIFICATION
	Dial   bool        // Connect state: caller should attempt an active TCP connection now
	Drop   bool        // caller should close the current transport connection
}

// Session drives one peer's FSM. It owns its two RIBs and the negotiated
// session state for its current connection, per spec.md §3 "Lifecycle
// ownership: Neighbor objects own their two RIBs ... The session driver
// owns timers and the outstanding update generator."
type Session struct {
	config Config
	log    *logrus.Entry

	state               State
	connectRetryCounter int

	connectRetryTimer *timer.Timer
	holdTimer         *timer.Timer
	keepaliveTimer    *timer.Timer

	messagesSent     *counter.Counter
	messagesReceived *counter.Counter
	errorsSeen       *counter.Counter

	localOpen  *message.Open
	negotiated *message.Negotiated

	adjIn  *rib.AdjRIBIn
	adjOut *rib.AdjRIBOut
	gen    rib.Generator

	// localInitiated records whether the connection currently occupying
	// the FSM is the one this system dialed (true) or accepted (false).
	// RFC 4271 §6.8 collision resolution keys off which side initiated
	// each of the two colliding connections, not just their identifiers.
	localInitiated bool
}

// New creates an idle session for cfg. Callers must call Validate/
// ApplyDefaults on cfg themselves before this if they want default-filled,
// validated configuration - New does not do it implicitly so a caller
// that already validated elsewhere isn't charged twice.
func New(cfg Config, logger *logrus.Entry) *Session {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		config:           cfg,
		log:              logger.WithField("peer", cfg.PeerAddr.String()),
		state:            Idle,
		messagesSent:     counter.New(),
		messagesReceived: counter.New(),
		errorsSeen:       counter.New(),
		adjIn:            rib.NewAdjRIBIn(),
		adjOut:           rib.NewAdjRIBOut(),
	}
}

func (s *Session) State() State { return s.state }

// Deliver feeds one FSM event (an administrative command, a timer firing,
// or a parsed incoming message) into the state machine and returns the
// resulting Action.
func (s *Session) Deliver(event Event, payload interface{}) Action {
	s.log.WithFields(logrus.Fields{"state": s.state, "event": event}).Debug("fsm event")
	if event.fromWire() {
		s.messagesReceived.Increment()
	}
	action := s.dispatch(event, payload)
	if action.Send != nil {
		s.messagesSent.Increment()
	}
	return action
}

func (s *Session) dispatch(event Event, payload interface{}) Action {
	switch s.state {
	case Idle:
		return s.idle(event, payload)
	case Connect:
		return s.connect(event, payload)
	case Active:
		return s.active(event, payload)
	case OpenSent:
		return s.openSent(event, payload)
	case OpenConfirm:
		return s.openConfirm(event, payload)
	case Established:
		return s.established(event, payload)
	}
	return Action{}
}

// Stats reports this session's running message/error counts (spec.md §6.2
// "show neighbor" surfaces these per-peer).
type Stats struct {
	MessagesSent     uint64
	MessagesReceived uint64
	ErrorsSeen       uint64
}

func (s *Session) Stats() Stats {
	return Stats{
		MessagesSent:     s.messagesSent.Value(),
		MessagesReceived: s.messagesReceived.Value(),
		ErrorsSeen:       s.errorsSeen.Value(),
	}
}

func (s *Session) idle(event Event, payload interface{}) Action {
	switch event {
	case ManualStart:
		s.connectRetryCounter = 0
		s.startConnectRetryTimer()
		s.transition(Connect)
		if s.config.Passive {
			s.transition(Active)
			return Action{}
		}
		return Action{Dial: true}
	case TCPConnectionConfirmed:
		// The collision winner is handed straight to the FSM after
		// ResolveCollision/OpenCollisionDump drops the losing connection
		// (RFC 4271 §6.8), skipping the dial/retry cycle a fresh ManualStart
		// would otherwise run.
		localInitiated, _ := payload.(bool)
		return s.reopen(localInitiated)
	default:
		return Action{}
	}
}

func (s *Session) connect(event Event, payload interface{}) Action {
	switch event {
	case TCPConnectionConfirmed:
		localInitiated, _ := payload.(bool)
		return s.reopen(localInitiated)
	case ConnectRetryTimerExpires:
		s.startConnectRetryTimer()
		return Action{Dial: true}
	case TCPConnectionFails:
		s.startConnectRetryTimer()
		s.transition(Active)
		return Action{}
	default:
		return s.errorToIdle()
	}
}

func (s *Session) active(event Event, payload interface{}) Action {
	switch event {
	case TCPConnectionConfirmed:
		localInitiated, _ := payload.(bool)
		return s.reopen(localInitiated)
	case ConnectRetryTimerExpires:
		s.startConnectRetryTimer()
		s.transition(Connect)
		return Action{Dial: true}
	default:
		return s.errorToIdle()
	}
}

// reopen transitions directly to OpenSent for a TCP connection that is
// already up, bypassing the connect-retry bookkeeping connect()/active()
// otherwise run. localInitiated records which side dialed it, for later
// collision resolution (RFC 4271 §6.8).
func (s *Session) reopen(localInitiated bool) Action {
	if s.connectRetryTimer != nil {
		s.connectRetryTimer.Stop()
	}
	s.localInitiated = localInitiated
	s.transition(OpenSent)
	open := s.buildOpen()
	s.localOpen = open
	return Action{Send: message.Frame(message.TypeOpen, open.Encode())}
}

// ResolveCollision applies RFC 4271 §6.8 when a second TCP connection
// attempt shows up for this peer while the FSM already has one past
// Connect/Active. newLocal reports whether the new connection is the one
// this system just dialed, as opposed to one it just accepted. It reports
// whether the already-active connection should be kept: when false, the
// caller must deliver OpenCollisionDump to tear the existing connection
// down with NOTIFICATION(Cease, ConnectionCollisionResolution) before
// wiring the new connection in via TCPConnectionConfirmed.
func (s *Session) ResolveCollision(newLocal bool) bool {
	if s.state != OpenSent && s.state != OpenConfirm && s.state != Established {
		return false
	}
	if s.localInitiated == newLocal {
		// Both connections were initiated the same way (e.g. two inbound
		// accepts racing) - not the collision RFC 4271 §6.8 resolves. Keep
		// whichever connection the FSM already has.
		return true
	}
	if s.negotiated == nil {
		// The existing connection hasn't told us the remote's BGP
		// Identifier yet; keep it rather than guess which one wins.
		return true
	}
	localWins := s.config.LocalIdentifier > s.negotiated.RemoteIdentifier
	return localWins == s.localInitiated
}

func (s *Session) openSent(event Event, payload interface{}) Action {
	switch event {
	case BGPOpen:
		remote, ok := payload.(*message.Open)
		if !ok {
			return s.fsmError()
		}
		n, err := message.Negotiate(s.localOpen, remote, s.config.HoldTime)
		if err != nil {
			return s.openError(bgp.SubcodeUnacceptableHoldTime)
		}
		s.negotiated = n
		s.connectRetryTimer.Stop()
		s.startHoldTimer(n.HoldTime)
		s.startKeepaliveTimer(n.HoldTime)
		s.transition(OpenConfirm)
		return Action{Send: message.Frame(message.TypeKeepalive, message.EmptyKeepalive)}
	case BGPHeaderErr, BGPOpenMsgErr:
		return s.fsmErrorTo(bgp.NotifyOpen, bgp.SubcodeUnsupportedVersion)
	case OpenCollisionDump:
		return s.fsmErrorTo(bgp.NotifyCease, bgp.SubcodeConnectionCollisionResolution)
	case TCPConnectionFails:
		s.startConnectRetryTimer()
		s.transition(Active)
		return Action{}
	default:
		return s.errorToIdle()
	}
}

func (s *Session) openConfirm(event Event, payload interface{}) Action {
	switch event {
	case KeepAliveMsg:
		s.restartHoldTimer()
		s.transition(Established)
		s.log.Info("session established")
		return Action{}
	case NotifMsg:
		s.transition(Idle)
		return Action{Drop: true}
	case HoldTimerExpires:
		return s.fsmErrorTo(bgp.NotifyHoldExpired, 0)
	case KeepaliveTimerExpires:
		s.startKeepaliveTimer(s.negotiated.HoldTime)
		return Action{Send: message.Frame(message.TypeKeepalive, message.EmptyKeepalive)}
	case OpenCollisionDump:
		return s.fsmErrorTo(bgp.NotifyCease, bgp.SubcodeConnectionCollisionResolution)
	case TCPConnectionFails:
		s.startConnectRetryTimer()
		s.transition(Active)
		return Action{}
	default:
		return s.errorToIdle()
	}
}

func (s *Session) established(event Event, payload interface{}) Action {
	switch event {
	case KeepAliveMsg:
		s.restartHoldTimer()
		return Action{}
	case UpdateMsg:
		s.restartHoldTimer()
		u, ok := payload.(*message.Update)
		if !ok {
			return s.fsmError()
		}
		family := bgp.FamilyIPv4Unicast
		if mp, ok := u.Attributes.Get(attribute.CodeMPReachNLRI); ok {
			family = mp.(*attribute.MPReach).Family
		} else if mp, ok := u.Attributes.Get(attribute.CodeMPUnreachNLRI); ok {
			family = mp.(*attribute.MPUnreach).Family
		}
		s.adjIn.Apply(family, u.Withdrawn, u.Reachable, u.Attributes)
		return Action{}
	case UpdateMsgErr:
		return s.fsmErrorTo(bgp.NotifyUpdate, bgp.SubcodeMalformedAttributeList)
	case HoldTimerExpires:
		return s.fsmErrorTo(bgp.NotifyHoldExpired, 0)
	case KeepaliveTimerExpires:
		s.startKeepaliveTimer(s.negotiated.HoldTime)
		return Action{Send: message.Frame(message.TypeKeepalive, message.EmptyKeepalive)}
	case OpenCollisionDump:
		return s.fsmErrorTo(bgp.NotifyCease, bgp.SubcodeConnectionCollisionResolution)
	case NotifMsg, TCPConnectionFails:
		s.transition(Idle)
		s.resetRIBs()
		return Action{Drop: true}
	case ManualStop:
		s.transition(Idle)
		s.resetRIBs()
		n := bgp.NewNotify(bgp.NotifyCease, 0, nil)
		return Action{Send: message.Frame(message.TypeNotification, message.EncodeNotification(n)), Drop: true}
	default:
		return s.errorToIdle()
	}
}

// Poll checks the running timers against now and returns whatever Event
// that implies, already delivered. Callers typically call this once per
// reactor tick alongside draining the transport connection.
func (s *Session) Poll(now time.Time) Action {
	if s.holdTimer != nil && !s.holdTimer.Running() && s.state != Idle {
		return s.Deliver(HoldTimerExpires, nil)
	}
	if s.keepaliveTimer != nil && !s.keepaliveTimer.Running() && (s.state == OpenConfirm || s.state == Established) {
		return s.Deliver(KeepaliveTimerExpires, nil)
	}
	if s.connectRetryTimer != nil && !s.connectRetryTimer.Running() && (s.state == Connect || s.state == Active) {
		return s.Deliver(ConnectRetryTimerExpires, nil)
	}
	return Action{}
}

// Negotiated returns the session's negotiated state, valid once
// Established (and retained after a later teardown for diagnostics).
func (s *Session) Negotiated() *message.Negotiated { return s.negotiated }

// DecodeContext returns the attribute.Context and IPv4-unicast add-path
// setting to decode an incoming UPDATE under, given whatever has been
// negotiated so far. Safe to call before negotiation completes (returns
// the zero Context and addPath=false); callers decoding off a connection
// that hasn't reached OpenConfirm yet will get this zero value since no
// UPDATE is expected before then anyway.
func (s *Session) DecodeContext() (attribute.Context, bool) {
	if s.negotiated == nil {
		return attribute.Context{}, false
	}
	receive := receiveAddPath(s.negotiated.AddPath)
	ctx := attribute.Context{
		FourByteASN:    s.negotiated.FourByteASN,
		AddPathReceive: receive,
	}
	return ctx, receive[bgp.FamilyIPv4Unicast]
}

func (s *Session) AdjRIBIn() *rib.AdjRIBIn   { return s.adjIn }
func (s *Session) AdjRIBOut() *rib.AdjRIBOut { return s.adjOut }

// GenerateUpdates drains whatever is queued in the outbound RIB into wire
// frames ready to send, once the session is Established and a negotiated
// state exists to size and order them by.
func (s *Session) GenerateUpdates() ([][]byte, []error) {
	if s.negotiated == nil {
		return nil, []error{fmt.Errorf("session: no updates before OPEN negotiation completes")}
	}
	opts := rib.Options{
		Families:   s.negotiated.Families,
		MaxMessage: s.negotiated.MaxMessageLength(),
		Context:    attribute.Context{FourByteASN: s.negotiated.FourByteASN},
		AddPath:    sendAddPath(s.negotiated.AddPath),
		EmitEOR:    true,
	}
	updates, errs := s.gen.Generate(s.adjOut, opts)
	return frameUpdates(updates, opts, errs)
}

// RequestRefresh replays the cached-sent state for family as though it had
// just been queued again, for an inbound ROUTE-REFRESH (spec.md §4.5
// "ROUTE_REFRESH replay").
func (s *Session) RequestRefresh(family bgp.Family, enhanced bool) ([][]byte, []error) {
	if s.negotiated == nil {
		return nil, []error{fmt.Errorf("session: no refresh before OPEN negotiation completes")}
	}
	opts := rib.Options{
		Families:   s.negotiated.Families,
		MaxMessage: s.negotiated.MaxMessageLength(),
		Context:    attribute.Context{FourByteASN: s.negotiated.FourByteASN},
		AddPath:    sendAddPath(s.negotiated.AddPath),
	}
	updates, errs := s.gen.Refresh(s.adjOut, family, opts, enhanced)
	return frameUpdates(updates, opts, errs)
}

func frameUpdates(updates []*message.Update, opts rib.Options, errs []error) ([][]byte, []error) {
	frames := make([][]byte, 0, len(updates))
	for _, u := range updates {
		body, err := message.EncodeUpdate(u, opts.Context, opts.AddPath[bgp.FamilyIPv4Unicast])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		frames = append(frames, message.Frame(message.TypeUpdate, body))
	}
	return frames, errs
}

func sendAddPath(addPath map[bgp.Family]message.AddPathDirection) map[bgp.Family]bool {
	out := make(map[bgp.Family]bool, len(addPath))
	for f, dir := range addPath {
		out[f] = dir.Send
	}
	return out
}

func receiveAddPath(addPath map[bgp.Family]message.AddPathDirection) map[bgp.Family]bool {
	out := make(map[bgp.Family]bool, len(addPath))
	for f, dir := range addPath {
		out[f] = dir.Receive
	}
	return out
}

func (s *Session) transition(to State) {
	s.log.WithFields(logrus.Fields{"from": s.state, "to": to}).Debug("state transition")
	s.state = to
}

func (s *Session) resetRIBs() {
	s.adjIn = rib.NewAdjRIBIn()
	s.negotiated = nil
}

func (s *Session) buildOpen() *message.Open {
	asn := s.config.LocalASN
	wireASN := uint16(bgp.ASTrans)
	if asn <= 0xFFFF {
		wireASN = uint16(asn)
	}
	return &message.Open{
		Version:    bgp.CurrentVersion,
		ASN:        wireASN,
		HoldTime:   uint16(s.config.HoldTime / time.Second),
		Identifier: s.config.LocalIdentifier,
		Capabilities: message.Capabilities{
			Families:        s.config.Families,
			FourByteASN:     true,
			ASN4:            asn,
			RouteRefresh:    true,
			AddPathFamilies: addPathCapabilities(s.config.AddPath),
		},
	}
}

func addPathCapabilities(addPath map[bgp.Family]bool) map[bgp.Family]message.AddPathDirection {
	out := map[bgp.Family]message.AddPathDirection{}
	for f, enabled := range addPath {
		if enabled {
			out[f] = message.AddPathDirection{Send: true, Receive: true}
		}
	}
	return out
}

func (s *Session) startConnectRetryTimer() {
	s.connectRetryCounter++
	s.connectRetryTimer = timer.New(s.config.ConnectRetryTime, func() {})
}

func (s *Session) startHoldTimer(d time.Duration) {
	if d == 0 {
		return
	}
	s.holdTimer = timer.New(d, func() {})
}

func (s *Session) restartHoldTimer() {
	if s.holdTimer != nil {
		s.holdTimer.Reset()
	}
}

func (s *Session) startKeepaliveTimer(hold time.Duration) {
	if hold == 0 {
		return
	}
	s.keepaliveTimer = timer.New(message.KeepaliveInterval(hold), func() {})
}

func (s *Session) errorToIdle() Action {
	s.transition(Idle)
	return Action{Drop: true}
}

func (s *Session) fsmError() Action {
	return s.fsmErrorTo(bgp.NotifyFSM, 0)
}

func (s *Session) fsmErrorTo(code, subcode uint8) Action {
	s.errorsSeen.Increment()
	s.transition(Idle)
	s.resetRIBs()
	n := bgp.NewNotify(code, subcode, nil)
	return Action{Send: message.Frame(message.TypeNotification, message.EncodeNotification(n)), Notify: n, Drop: true}
}

func (s *Session) openError(subcode uint8) Action {
	return s.fsmErrorTo(bgp.NotifyOpen, subcode)
}
