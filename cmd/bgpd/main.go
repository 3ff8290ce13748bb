// Command bgpd wires one speaker instance together: a listening socket
// accepting passive connections, a fixed set of configured peers, and a
// single-threaded scheduler rotating each peer's Poll call (spec.md §5
// "Concurrency & Resource Model"; full config-file loading, signal
// handling, and PID files remain out of scope per spec.md §1).
//
// Grounded on the teacher's cmd/main.go (listener-then-peer-loop shape)
// and cmd/cmd.go (speaker/peer construction order), rebuilt around
// session.Session/transport.Connection instead of the monolithic
// router/speaker types.
package main

import (
	"context"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bgpd/attribute"
	"bgpd/bgp"
	"bgpd/message"
	"bgpd/queue"
	"bgpd/session"
	"bgpd/transport"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	log.Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if os.Getenv("BGPD_DEBUG") != "" {
		log.Logger.SetLevel(logrus.DebugLevel)
	}

	localID := bgp.Identifier(0x01020304) // 1.2.3.4, matching the teacher's example wiring
	localASN := bgp.ASN(65000)

	ln, err := transport.Listen(netip.MustParseAddrPort("0.0.0.0:179"), transport.Config{})
	if err != nil {
		log.WithError(err).Fatal("listen failed")
	}
	defer ln.Close()

	peers := map[netip.Addr]*peerHandle{}
	for _, cfg := range configuredPeers(localASN, localID) {
		sess := session.New(cfg, log)
		peers[cfg.PeerAddr] = &peerHandle{
			session: sess,
			config:  cfg,
			parser:  attribute.NewParser(),
			outbox:  queue.New(),
		}
		if !cfg.Passive {
			go dialLoop(peers[cfg.PeerAddr], log)
		}
	}

	go acceptLoop(ln, peers, log)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for now := range ticker.C {
		for _, p := range peers {
			p.mu.Lock()
			action := p.session.Poll(now)
			p.applyLocked(action, log)
			p.fillOutboxLocked(log)
			p.drainOutboxLocked(log)
			p.mu.Unlock()
		}
	}
}

// fillOutboxLocked drains whatever the outbound RIB has queued into framed
// UPDATEs and pushes them onto this peer's write queue; callers must
// already hold p.mu.
func (p *peerHandle) fillOutboxLocked(log *logrus.Entry) {
	if p.session.State() != session.Established {
		return
	}
	frames, errs := p.session.GenerateUpdates()
	for _, err := range errs {
		log.WithError(err).WithField("peer", p.config.PeerAddr).Warn("update generation error")
	}
	for _, f := range frames {
		p.outbox.Push(f)
	}
}

// drainOutboxLocked writes as much of the outbox as the connection accepts
// this tick; callers must already hold p.mu.
func (p *peerHandle) drainOutboxLocked(log *logrus.Entry) {
	if p.conn == nil {
		return
	}
	for p.outbox.Length() > 0 {
		if err := p.conn.WriteMessage(p.outbox.Pop()); err != nil {
			log.WithError(err).WithField("peer", p.config.PeerAddr).Warn("write failed")
			return
		}
	}
}

// configuredPeers stands in for a config-file loader (spec.md §6.4
// "Persisted state: none required for correctness. The daemon reads
// configuration at startup"); wiring an actual parser is out of scope
// here. A real deployment would load session.Config values (with
// ApplyDefaults/Validate already run) from a file here instead.
func configuredPeers(localASN bgp.ASN, localID bgp.Identifier) []session.Config {
	return nil
}

// peerHandle pairs one session.Session with its live transport connection.
// The mutex guards both fields since readLoop (goroutine per connection)
// and the reactor tick both deliver events into the same session.
type peerHandle struct {
	mu      sync.Mutex
	session *session.Session
	config  session.Config
	conn    *transport.Connection
	parser  *attribute.Parser

	// outbox decouples update generation from the write side: a session
	// tick that generates several UPDATEs shouldn't block on however much
	// of them the socket accepts per Write call.
	outbox *queue.Queue
}

// applyLocked performs whatever side effect an Action calls for; callers
// must already hold p.mu.
func (p *peerHandle) applyLocked(action session.Action, log *logrus.Entry) {
	if action.Send != nil && p.conn != nil {
		if err := p.conn.WriteMessage(action.Send); err != nil {
			log.WithError(err).Warn("write failed")
		}
	}
	if action.Drop && p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func dialLoop(p *peerHandle, log *logrus.Entry) {
	p.mu.Lock()
	action := p.session.Deliver(session.ManualStart, nil)
	dial := action.Dial
	p.applyLocked(action, log)
	p.mu.Unlock()
	if dial {
		connect(p, log)
	}
}

func connect(p *peerHandle, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := transport.Dial(ctx, transport.Config{
		RemoteAddr: p.config.PeerAddr,
		RemotePort: p.config.PeerPort,
		MD5Key:     p.config.MD5Key,
		TTL:        p.config.TTL,
		GTSMCheck:  p.config.GTSM,
	})
	if err != nil {
		log.WithError(err).WithField("peer", p.config.PeerAddr).Warn("dial failed")
		return
	}
	p.mu.Lock()
	if !p.acquireConnLocked(conn, true, log) {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.mu.Unlock()
	go readLoop(p, log)
}

func acceptLoop(ln *transport.Listener, peers map[netip.Addr]*peerHandle, log *logrus.Entry) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.WithError(err).Warn("accept failed")
			return
		}
		addrPort, err := netip.ParseAddrPort(conn.RemoteAddr().String())
		if err != nil {
			conn.Close()
			continue
		}
		p, ok := peers[addrPort.Addr()]
		if !ok {
			log.WithField("remote", addrPort.Addr()).Warn("connection from unconfigured peer")
			conn.Close()
			continue
		}
		p.mu.Lock()
		if !p.acquireConnLocked(conn, false, log) {
			p.mu.Unlock()
			conn.Close()
			continue
		}
		p.mu.Unlock()
		go readLoop(p, log)
	}
}

// acquireConnLocked wires conn in as this peer's active transport
// connection, applying RFC 4271 §6.8 collision resolution when one is
// already in place (i.e. past Connect/Active): the connection initiated by
// the side with the higher BGP Identifier survives, and the other is
// dropped with NOTIFICATION(Cease, ConnectionCollisionResolution). Reports
// whether conn was wired in; a false return means the caller must close it
// without ever becoming this peer's connection. Callers must already hold
// p.mu.
func (p *peerHandle) acquireConnLocked(conn *transport.Connection, localInitiated bool, log *logrus.Entry) bool {
	if p.conn != nil {
		if p.session.ResolveCollision(localInitiated) {
			n := bgp.NewNotify(bgp.NotifyCease, bgp.SubcodeConnectionCollisionResolution, nil)
			_ = conn.WriteMessage(message.Frame(message.TypeNotification, message.EncodeNotification(n)))
			return false
		}
		dump := p.session.Deliver(session.OpenCollisionDump, nil)
		p.applyLocked(dump, log)
	}
	p.conn = conn
	action := p.session.Deliver(session.TCPConnectionConfirmed, localInitiated)
	p.applyLocked(action, log)
	return true
}

func readLoop(p *peerHandle, log *logrus.Entry) {
	for {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}
		header, body, err := conn.ReadMessage(message.StandardMaxLength)
		if err != nil {
			p.mu.Lock()
			action := p.session.Deliver(session.TCPConnectionFails, nil)
			p.applyLocked(action, log)
			p.mu.Unlock()
			return
		}
		p.mu.Lock()
		ctx, addPath := p.session.DecodeContext()
		event, payload := decode(header, body, p.parser, ctx, addPath)
		action := p.session.Deliver(event, payload)
		p.applyLocked(action, log)
		p.mu.Unlock()
	}
}

// decode turns one framed message into the FSM event/payload pair
// Session.Deliver expects, translating a decode failure into the matching
// BGPHeaderErr/BGPOpenMsgErr/UpdateMsgErr event rather than propagating the
// error up (spec.md §7 tier 1 "Wire errors ... the session driver catches
// it, sends NOTIFICATION, resets"). ctx/addPath come from the session's
// negotiated state (Session.DecodeContext) so UPDATE bodies are parsed
// under whatever 4-byte-ASN and add-path facts this connection actually
// negotiated, not a zero Context.
func decode(header message.Header, body []byte, parser *attribute.Parser, ctx attribute.Context, addPath bool) (session.Event, interface{}) {
	switch header.Type {
	case message.TypeOpen:
		open, err := message.DecodeOpen(body)
		if err != nil {
			return session.BGPOpenMsgErr, nil
		}
		return session.BGPOpen, open
	case message.TypeKeepalive:
		return session.KeepAliveMsg, nil
	case message.TypeNotification:
		n, err := message.DecodeNotification(body)
		if err != nil {
			return session.BGPHeaderErr, nil
		}
		return session.NotifMsg, n
	case message.TypeUpdate:
		update, err := message.DecodeUpdate(body, parser, ctx, addPath)
		if err != nil {
			return session.UpdateMsgErr, nil
		}
		return session.UpdateMsg, update
	default:
		return session.BGPHeaderErr, nil
	}
}
