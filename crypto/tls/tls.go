//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"fmt"
	"io"
)

// Connection is the blocking, single-transport facade spec.md §5 says
// an implementation "may" build around the non-blocking Engine core:
// it owns an io.ReadWriter and pumps bytes to and from Engine's
// Start/Received/Send/Close so a caller can drive a handshake with
// ordinary blocking Read/Write semantics instead of managing the two
// byte buffers itself. Engine does all the decoding and state-machine
// work; Connection's only job is the read-loop and the byte plumbing.
//
// Grounded on the teacher's tls.go Connection, which wrapped a net.Conn
// the same way; re-targeted from the server to the client role and
// rebuilt around Engine rather than driving RecordLayer directly.
type Connection struct {
	eng  *Engine
	conn io.ReadWriter
}

// NewConnection wraps conn (already-connected to a TLS 1.3 server) with
// a client-side handshake engine driven by cfg.
func NewConnection(conn io.ReadWriter, cfg *Config) (*Connection, error) {
	eng, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &Connection{eng: eng, conn: conn}, nil
}

func (c *Connection) writeAll(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := c.conn.Write(data)
	return err
}

// readMore blocks for one Read off the transport, feeds whatever
// arrived to the engine, writes out anything the engine queued in
// response, and returns the events the engine produced.
func (c *Connection) readMore() ([]Event, error) {
	buf := make([]byte, 4096)
	n, err := c.conn.Read(buf)
	var events []Event
	if n > 0 {
		var rerr error
		events, rerr = c.eng.Received(buf[:n])
		if werr := c.writeAll(c.eng.Outbound()); werr != nil && rerr == nil {
			return events, werr
		}
		if rerr != nil {
			return events, rerr
		}
	}
	if err != nil {
		return events, fmt.Errorf("read record: %w", err)
	}
	return events, nil
}

// Handshake drives the full client handshake to completion (or to a
// fatal error), including at most one HelloRetryRequest round trip.
// Synchronous and blocking, the same shape as the teacher's
// ServerHandshake.
func (c *Connection) Handshake() (*HandshakeResult, error) {
	out, err := c.eng.Start()
	if err != nil {
		return nil, err
	}
	if err := c.writeAll(out); err != nil {
		return nil, err
	}

	for {
		events, err := c.readMore()
		for _, ev := range events {
			switch ev.Kind {
			case EventHandshakeComplete:
				return ev.Handshake, nil
			case EventPeerClosed:
				return nil, ErrClosed
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// KeyUpdate sends a key_update message and ratchets this connection's
// own write key (RFC 8446 §4.6.3). requestPeerUpdate asks the peer to
// ratchet its write direction too.
func (c *Connection) KeyUpdate(requestPeerUpdate bool) error {
	out, err := c.eng.KeyUpdate(requestPeerUpdate)
	if err != nil {
		return err
	}
	return c.writeAll(out)
}

// Send writes application data. Only valid once CONNECTED.
func (c *Connection) Send(data []byte) error {
	out, err := c.eng.Send(data)
	if err != nil {
		return err
	}
	return c.writeAll(out)
}

// Recv returns the next application-data payload, transparently
// consuming and handling any post-handshake handshake messages or
// alerts interleaved on the wire.
func (c *Connection) Recv() ([]byte, error) {
	for {
		if c.eng.Closed() {
			return nil, ErrClosed
		}
		events, err := c.readMore()
		for _, ev := range events {
			switch ev.Kind {
			case EventApplicationData:
				return ev.Data, nil
			case EventPeerClosed:
				return nil, ErrClosed
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// Close sends a close_notify alert and marks the connection closed.
// Grounded on the close/ping-pong driver in original_source/tls.py's
// __main__, which always ends a session with a close_notify before
// closing the socket.
func (c *Connection) Close() error {
	out, err := c.eng.Close()
	if werr := c.writeAll(out); werr != nil && err == nil {
		err = werr
	}
	return err
}
