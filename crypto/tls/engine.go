//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"bytes"
	"fmt"
	"hash"

	"go.uber.org/zap"
)

// state names the phases of the client handshake state machine
// (RFC 8446 Appendix A.1, client side). Grounded on the teacher's
// ServerHandshake, which drives an equivalent (server-side) sequence of
// recv/derive/send steps in a single function; here the steps are
// split into named phases so HelloRetryRequest can jump back to
// waitServerHello without re-entering the whole function.
type state int

const (
	stateStart state = iota
	stateWaitServerHello
	stateWaitEncryptedExtensions
	stateWaitCertOrCertRequest
	stateWaitCert
	stateWaitCertVerify
	stateWaitFinished
	stateConnected
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "START"
	case stateWaitServerHello:
		return "WAIT_SH"
	case stateWaitEncryptedExtensions:
		return "WAIT_EE"
	case stateWaitCertOrCertRequest:
		return "WAIT_CERT_CR"
	case stateWaitCert:
		return "WAIT_CERT"
	case stateWaitCertVerify:
		return "WAIT_CV"
	case stateWaitFinished:
		return "WAIT_FINISHED"
	case stateConnected:
		return "CONNECTED"
	case stateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("{state %d}", int(s))
	}
}

// EventKind discriminates the events Engine.Received can return, the
// event surface spec.md §6 names for received(bytes) -> [events].
type EventKind int

const (
	// EventHandshakeComplete fires once, carrying the negotiated
	// parameters (spec.md: HandshakeComplete{alpn, peer_certs, sni}).
	EventHandshakeComplete EventKind = iota
	// EventApplicationData carries one decrypted application_data
	// fragment (spec.md: ApplicationData(bytes)).
	EventApplicationData
	// EventSessionTicket carries one parsed NewSessionTicket message
	// (spec.md: SessionTicket{lifetime, age_add, nonce, ticket,
	// extensions}).
	EventSessionTicket
	// EventKeyUpdateRequested fires when the peer's KeyUpdate asked this
	// side to also ratchet its own write key (spec.md: KeyUpdateRequested).
	EventKeyUpdateRequested
	// EventPeerClosed fires on a close_notify alert (spec.md: PeerClosed).
	EventPeerClosed
	// EventError fires on any fatal decode/protocol/crypto failure
	// (spec.md: Error(kind, description)); Err carries the *Error, whose
	// Kind and alert description are the (kind, description) pair.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventHandshakeComplete:
		return "HandshakeComplete"
	case EventApplicationData:
		return "ApplicationData"
	case EventSessionTicket:
		return "SessionTicket"
	case EventKeyUpdateRequested:
		return "KeyUpdateRequested"
	case EventPeerClosed:
		return "PeerClosed"
	case EventError:
		return "Error"
	default:
		return fmt.Sprintf("{event %d}", int(k))
	}
}

// SessionTicketEvent is the payload of an EventSessionTicket event: a
// parsed NewSessionTicket (RFC 8446 §4.6.1), surfaced but never acted
// on per spec.md's Non-goals (no PSK resumption).
type SessionTicketEvent struct {
	LifetimeSeconds uint32
	AgeAdd          uint32
	Nonce           []byte
	Ticket          []byte
	Extensions      []Extension
}

// Event is one item of the slice Engine.Received returns. Exactly the
// fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind      EventKind
	Handshake *HandshakeResult
	Data      []byte
	Ticket    *SessionTicketEvent
	Err       error
}

// HandshakeResult summarizes a completed handshake: the negotiated
// parameters a caller needs without digging through the connection.
type HandshakeResult struct {
	CipherSuite        CipherSuite
	NegotiatedALPN     string
	PeerCertificates   [][]byte
	HelloRetryHappened bool
	ServerName         string
}

// Engine is the non-blocking client-side TLS 1.3 handshake and
// record-layer core (spec.md §5): "the core is a single-threaded state
// machine, exposing a non-blocking 'advance' operation ... Suspension
// points: none internally." Engine never performs I/O and never blocks
// -- Start/Received/Send/Close only ever consume bytes already in hand
// and queue bytes for the caller to drain via Outbound. Connection
// (tls.go) is the blocking facade spec.md §5 says an implementation
// "may" build around a core like this one.
//
// Grounded on the teacher's tls.go Connection, re-targeted from the
// server to the client role; split out of that single blocking type so
// the state machine itself holds no conn/io.ReadWriter and cannot
// suspend on a Read.
type Engine struct {
	cfg *Config
	log *zap.Logger
	rl  *RecordLayer

	state state

	provider    CryptoProvider
	hashFn      func() hash.Hash
	cipherSuite CipherSuite
	keyLen      int

	transcript *TranscriptHash
	ks         *KeySchedule

	offeredShares []KeyPair
	retryGroup    *NamedGroup
	retryCookie   []byte
	helloRetried  bool

	// legacySessionID is the legacy_session_id this engine sent in its
	// most recent ClientHello, kept so handleServerHello can check the
	// server's legacy_session_id_echo against it (RFC 8446 §4.1.3).
	legacySessionID []byte

	// pendingFirstClientHello/pendingSecondClientHello/
	// pendingHelloRetryRequest buffer raw handshake bytes until the
	// transcript hash function is known: RFC 8446 §4.1.2 says the
	// transcript is hashed with whatever hash the eventually-negotiated
	// cipher suite uses, so nothing can be hashed before ServerHello
	// names that suite.
	pendingFirstClientHello  []byte
	pendingSecondClientHello []byte
	pendingHelloRetryRequest []byte

	parser HandshakeParser

	result HandshakeResult

	// alpnOffered records whether ALPN was offered, to decide whether
	// its absence in EncryptedExtensions is an error.
	alpnOffered bool
}

// NewEngine validates cfg and returns a fresh, unstarted Engine.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:         cfg,
		log:         cfg.logger(),
		rl:          NewRecordLayer(),
		state:       stateStart,
		provider:    cfg.provider(),
		alpnOffered: len(cfg.ALPNProtocols) > 0,
		result:      HandshakeResult{ServerName: cfg.ServerName},
	}, nil
}

func (e *Engine) setState(s state) {
	logPhase(e.log, e.state.String(), s.String())
	e.state = s
}

// Closed reports whether the engine has reached its terminal state,
// either through Close, a fatal error, or a received fatal/close alert.
func (e *Engine) Closed() bool {
	return e.state == stateClosed
}

// Outbound drains every byte the engine has queued for the transport
// since the last call.
func (e *Engine) Outbound() []byte {
	return e.rl.Outbound()
}

// Start begins the handshake: it builds and queues ClientHello1 and
// returns the bytes to hand to the transport (spec.md §6:
// start() -> outbound_bytes).
func (e *Engine) Start() ([]byte, error) {
	if e.state != stateStart {
		return nil, newErrorf(KindProtocol, AlertInternalError, "handshake already started")
	}

	var random [32]byte
	if _, err := randReader(e.cfg).Read(random[:]); err != nil {
		return nil, e.fail(KindInternal, AlertInternalError, "generate client random: %v", err)
	}

	shares, err := e.generateShares()
	if err != nil {
		return nil, err
	}
	e.offeredShares = shares

	if err := e.sendClientHello(random, nil); err != nil {
		return nil, err
	}
	e.setState(stateWaitServerHello)
	return e.Outbound(), nil
}

func (e *Engine) generateShares() ([]KeyPair, error) {
	groups := e.cfg.supportedGroups()
	if len(groups) == 0 {
		return nil, e.fail(KindConfig, AlertInternalError, "no supported groups")
	}
	kp, err := e.provider.GenerateKeyShare(groups[0])
	if err != nil {
		return nil, e.fail(KindCrypto, AlertInternalError, "generate key share: %v", err)
	}
	return []KeyPair{*kp}, nil
}

func (e *Engine) sendClientHello(random [32]byte, cookie []byte) error {
	msg, sessionID, err := makeClientHello(e.cfg, random, e.offeredShares, e.retryGroup, cookie)
	if err != nil {
		return e.fail(KindInternal, AlertInternalError, "build client_hello: %v", err)
	}
	e.legacySessionID = sessionID
	if e.helloRetried {
		e.pendingSecondClientHello = msg
	} else {
		e.pendingFirstClientHello = msg
	}
	logHandshake(e.log, "send", HTClientHello, len(msg))
	return e.rl.WriteRecord(CTHandshake, msg)
}

// Received feeds transport bytes into the engine and returns the
// events produced while decoding and processing however many complete
// records are now buffered (spec.md §6: received(bytes) -> [events]).
// Call Outbound afterward to drain any bytes the engine queued in
// response -- a HelloRetryRequest's second ClientHello, a Finished, a
// change_cipher_spec, or a best-effort alert.
func (e *Engine) Received(data []byte) ([]Event, error) {
	e.rl.Feed(data)
	var events []Event
	for {
		ct, fragment, ok, err := e.rl.ReadRecord()
		if err != nil {
			return append(events, Event{Kind: EventError, Err: err}), err
		}
		if !ok {
			return events, nil
		}
		evs, err := e.processRecord(ct, fragment)
		events = append(events, evs...)
		if err != nil {
			return append(events, Event{Kind: EventError, Err: err}), err
		}
	}
}

func (e *Engine) processRecord(ct ContentType, fragment []byte) ([]Event, error) {
	switch ct {
	case CTAlert:
		return e.handleAlertRecord(fragment)
	case CTChangeCipherSpec:
		// Middlebox-compatibility CCS records are ignored entirely
		// (RFC 8446 Appendix D.4).
		return nil, nil
	case CTHandshake:
		e.parser.Feed(fragment)
		var events []Event
		for {
			msg, ok, perr := e.parser.Next()
			if perr != nil {
				return events, e.fail(KindDecode, AlertDecodeError, "parse handshake message: %v", perr)
			}
			if !ok {
				return events, nil
			}
			evs, err := e.dispatch(msg)
			events = append(events, evs...)
			if err != nil {
				return events, err
			}
		}
	case CTApplicationData:
		if e.state != stateConnected {
			return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
				"application_data received before handshake completed")
		}
		return []Event{{Kind: EventApplicationData, Data: fragment}}, nil
	default:
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage, "unexpected record type %v", ct)
	}
}

func (e *Engine) handleAlertRecord(fragment []byte) ([]Event, error) {
	a, err := parseAlert(fragment)
	if err != nil {
		return nil, e.fail(KindDecode, AlertDecodeError, "decode alert: %v", err)
	}
	logAlert(e.log, "recv", a)
	e.setState(stateClosed)
	if a.Description == AlertCloseNotify {
		return []Event{{Kind: EventPeerClosed}}, nil
	}
	return nil, newErrorf(KindAlertReceived, a.Description, "received fatal alert %v", a.Description)
}

func (e *Engine) dispatch(msg HandshakeMessage) ([]Event, error) {
	logHandshake(e.log, "recv", msg.Type, len(msg.Body))
	switch e.state {
	case stateWaitServerHello:
		return e.handleServerHelloPhase(msg)
	case stateWaitEncryptedExtensions:
		return e.handleEncryptedExtensions(msg)
	case stateWaitCertOrCertRequest:
		return e.handleCertOrCertRequest(msg)
	case stateWaitCert:
		return e.handleCertificate(msg)
	case stateWaitCertVerify:
		return e.handleCertificateVerify(msg)
	case stateWaitFinished:
		return e.handleFinished(msg)
	case stateConnected:
		return e.handlePostHandshake(msg)
	default:
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"handshake message %v in state %v", msg.Type, e.state)
	}
}

func (e *Engine) handleServerHelloPhase(msg HandshakeMessage) ([]Event, error) {
	if msg.Type != HTServerHello {
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"expected server_hello, got %v", msg.Type)
	}
	var sh ServerHello
	n, err := UnmarshalFrom(msg.Body, &sh)
	if err != nil || n != len(msg.Body) {
		return nil, e.fail(KindDecode, AlertDecodeError, "decode server_hello: %v", err)
	}

	if sh.IsHelloRetryRequest() {
		return e.handleHelloRetryRequest(msg, &sh)
	}
	return e.handleServerHello(msg, &sh)
}

func (e *Engine) handleHelloRetryRequest(msg HandshakeMessage, sh *ServerHello) ([]Event, error) {
	if e.helloRetried {
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"second hello_retry_request on same connection")
	}

	ext, err := requireExtension(sh.Extensions, ETKeyShare)
	if err != nil {
		return nil, err
	}
	group, err := parseKeyShareHelloRetryRequest(ext.Data)
	if err != nil {
		return nil, e.fail(KindDecode, AlertDecodeError, "hello_retry_request key_share: %v", err)
	}
	e.retryGroup = &group

	if cookieExt, ok := findExtension(sh.Extensions, ETCookie); ok {
		cookie, err := parseCookieHelloRetryRequest(cookieExt.Data)
		if err != nil {
			return nil, e.fail(KindDecode, AlertDecodeError, "hello_retry_request cookie: %v", err)
		}
		e.retryCookie = cookie
	}

	kp, err := e.provider.GenerateKeyShare(group)
	if err != nil {
		return nil, e.fail(KindNegotiation, AlertHandshakeFailure,
			"cannot generate key share for requested group %v: %v", group, err)
	}
	e.offeredShares = append(e.offeredShares, *kp)

	e.helloRetried = true
	e.result.HelloRetryHappened = true
	e.pendingHelloRetryRequest = msg.Raw

	var random [32]byte
	if _, err := randReader(e.cfg).Read(random[:]); err != nil {
		return nil, e.fail(KindInternal, AlertInternalError, "generate client random: %v", err)
	}
	if err := e.sendClientHello(random, e.retryCookie); err != nil {
		return nil, err
	}
	return nil, nil
}

func (e *Engine) handleServerHello(msg HandshakeMessage, sh *ServerHello) ([]Event, error) {
	if sh.LegacyVersion != VersionTLS12 {
		return nil, e.fail(KindProtocol, AlertProtocolVersion,
			"server_hello legacy_version=%v, want %v", sh.LegacyVersion, VersionTLS12)
	}
	for _, ext := range sh.Extensions {
		if !serverHelloAllowedExtensions[ext.Type] {
			return nil, e.fail(KindDecode, AlertUnsupportedExtension,
				"server_hello carries disallowed extension %v", ext.Type)
		}
	}
	// RFC 8446 §4.1.3: the server echoes legacy_session_id_echo back
	// unmodified. The client only ever sends a 0- or 32-byte session id
	// (makeClientHello), so a correct echo is bytewise identical to it.
	if !bytes.Equal(sh.LegacySessionIDEcho, e.legacySessionID) {
		return nil, e.fail(KindNegotiation, AlertIllegalParameter,
			"server_hello legacy_session_id_echo does not match the session id offered")
	}

	suite := sh.CipherSuite
	offered := false
	for _, s := range e.cfg.cipherSuites() {
		if s == suite {
			offered = true
			break
		}
	}
	if !offered {
		return nil, e.fail(KindNegotiation, AlertIllegalParameter,
			"server_hello selected unoffered cipher suite %v", suite)
	}

	hashFn, err := e.provider.Hash(suite)
	if err != nil {
		return nil, e.fail(KindNegotiation, AlertHandshakeFailure, "unsupported cipher suite %v: %v", suite, err)
	}
	keyLen, err := e.provider.KeyLength(suite)
	if err != nil {
		return nil, e.fail(KindNegotiation, AlertHandshakeFailure, "cipher suite %v: %v", suite, err)
	}
	e.cipherSuite = suite
	e.hashFn = hashFn
	e.keyLen = keyLen
	e.ks = NewKeySchedule(hashFn)

	e.startTranscript(msg.Raw)

	ext, err := requireExtension(sh.Extensions, ETKeyShare)
	if err != nil {
		return nil, err
	}
	peerShare, err := parseKeyShareServerHello(ext.Data)
	if err != nil {
		return nil, e.fail(KindDecode, AlertDecodeError, "server_hello key_share: %v", err)
	}

	var kp *KeyPair
	for i := range e.offeredShares {
		if e.offeredShares[i].Group == peerShare.Group {
			kp = &e.offeredShares[i]
			break
		}
	}
	if kp == nil {
		return nil, e.fail(KindNegotiation, AlertIllegalParameter,
			"server_hello selected group %v was never offered", peerShare.Group)
	}

	secret, err := e.provider.SharedSecret(kp, peerShare.KeyExchange)
	if err != nil {
		return nil, e.fail(KindCrypto, AlertDecryptError, "compute shared secret: %v", err)
	}

	e.ks.DeriveHandshakeSecrets(secret, e.transcript.Sum())
	if err := e.installHandshakeKeys(); err != nil {
		return nil, err
	}
	e.setState(stateWaitEncryptedExtensions)
	return nil, nil
}

// startTranscript is called once the cipher suite (and therefore the
// transcript hash function) is known: it hashes ClientHello1 (or its
// HelloRetryRequest message_hash collapse), the HelloRetryRequest
// itself if one happened, and ClientHello2, before appending
// ServerHello's own raw bytes.
func (e *Engine) startTranscript(serverHelloRaw []byte) {
	e.transcript = NewTranscriptHash(e.hashFn)
	e.transcript.Write(e.pendingFirstClientHello)
	if e.pendingHelloRetryRequest != nil {
		e.transcript.ReplaceWithMessageHash()
		e.transcript.Write(e.pendingHelloRetryRequest)
		e.transcript.Write(e.pendingSecondClientHello)
	}
	e.transcript.Write(serverHelloRaw)
}

func (e *Engine) installHandshakeKeys() error {
	clientKeys := e.ks.ClientHandshakeKeys(e.keyLen)
	serverKeys := e.ks.ServerHandshakeKeys(e.keyLen)

	writeAEAD, err := e.provider.AEAD(e.cipherSuite, clientKeys.Key)
	if err != nil {
		return e.fail(KindCrypto, AlertInternalError, "client handshake aead: %v", err)
	}
	readAEAD, err := e.provider.AEAD(e.cipherSuite, serverKeys.Key)
	if err != nil {
		return e.fail(KindCrypto, AlertInternalError, "server handshake aead: %v", err)
	}
	e.rl.SetWriteKeys(writeAEAD, clientKeys.IV)
	e.rl.SetReadKeys(readAEAD, serverKeys.IV)
	e.rl.ResetWriteSequence()
	e.rl.ResetReadSequence()
	return nil
}

func (e *Engine) handleEncryptedExtensions(msg HandshakeMessage) ([]Event, error) {
	if msg.Type != HTEncryptedExtensions {
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"expected encrypted_extensions, got %v", msg.Type)
	}
	var ee EncryptedExtensions
	n, err := UnmarshalFrom(msg.Body, &ee)
	if err != nil || n != len(msg.Body) {
		return nil, e.fail(KindDecode, AlertDecodeError, "decode encrypted_extensions: %v", err)
	}
	e.transcript.Write(msg.Raw)

	if ext, ok := findExtension(ee.Extensions, ETApplicationLayerProtocolNegotiation); ok {
		proto, err := parseALPNEncryptedExtensions(ext.Data)
		if err != nil {
			return nil, e.fail(KindDecode, AlertDecodeError, "encrypted_extensions alpn: %v", err)
		}
		e.result.NegotiatedALPN = proto
	} else if e.alpnOffered {
		return nil, e.fail(KindNegotiation, AlertNoApplicationProtocol,
			"server accepted no offered ALPN protocol")
	}

	e.setState(stateWaitCertOrCertRequest)
	return nil, nil
}

func (e *Engine) handleCertOrCertRequest(msg HandshakeMessage) ([]Event, error) {
	switch msg.Type {
	case HTCertificateRequest:
		var cr CertificateRequest
		n, err := UnmarshalFrom(msg.Body, &cr)
		if err != nil || n != len(msg.Body) {
			return nil, e.fail(KindDecode, AlertDecodeError, "decode certificate_request: %v", err)
		}
		e.transcript.Write(msg.Raw)
		// Client authentication is not initiated by this engine
		// (spec.md Non-goals: no client-cert send path); the request
		// is parsed and noted, not answered with a certificate.
		e.setState(stateWaitCert)
		return nil, nil
	case HTCertificate:
		return e.handleCertificate(msg)
	default:
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"expected certificate_request or certificate, got %v", msg.Type)
	}
}

func (e *Engine) handleCertificate(msg HandshakeMessage) ([]Event, error) {
	if msg.Type != HTCertificate {
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"expected certificate, got %v", msg.Type)
	}
	var cert Certificate
	n, err := UnmarshalFrom(msg.Body, &cert)
	if err != nil || n != len(msg.Body) {
		return nil, e.fail(KindDecode, AlertDecodeError, "decode certificate: %v", err)
	}
	e.transcript.Write(msg.Raw)

	var chain [][]byte
	for _, entry := range cert.CertificateList {
		chain = append(chain, entry.Data)
	}
	if len(chain) == 0 {
		return nil, e.fail(KindCertificate, AlertCertificateRequired, "empty certificate_list")
	}
	e.result.PeerCertificates = chain

	e.setState(stateWaitCertVerify)
	return nil, nil
}

func (e *Engine) handleCertificateVerify(msg HandshakeMessage) ([]Event, error) {
	if msg.Type != HTCertificateVerify {
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"expected certificate_verify, got %v", msg.Type)
	}
	var cv CertificateVerify
	n, err := UnmarshalFrom(msg.Body, &cv)
	if err != nil || n != len(msg.Body) {
		return nil, e.fail(KindDecode, AlertDecodeError, "decode certificate_verify: %v", err)
	}

	offered := false
	for _, s := range e.cfg.signatureSchemes() {
		if s == cv.Algorithm {
			offered = true
			break
		}
	}
	if !offered {
		return nil, e.fail(KindNegotiation, AlertIllegalParameter,
			"certificate_verify uses unoffered signature scheme %v", cv.Algorithm)
	}

	transcriptHash := e.transcript.Sum()

	if e.cfg.VerifySignature {
		if err := verifySignature(e.result.PeerCertificates[0], cv.Algorithm, transcriptHash, cv.Signature); err != nil {
			return nil, err
		}
	}
	if err := e.cfg.VerifyCallback(e.result.PeerCertificates, transcriptHash); err != nil {
		return nil, e.fail(KindCertificate, AlertBadCertificate, "verify_callback: %v", err)
	}

	e.transcript.Write(msg.Raw)
	e.setState(stateWaitFinished)
	return nil, nil
}

func (e *Engine) handleFinished(msg HandshakeMessage) ([]Event, error) {
	if msg.Type != HTFinished {
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"expected finished, got %v", msg.Type)
	}

	expected := e.ks.VerifyData(e.ks.ServerHandshakeTrafficSecret(), e.transcript.Sum())
	if !constantTimeEqual(expected, msg.Body) {
		return nil, e.fail(KindCrypto, AlertDecryptError, "server finished verify_data mismatch")
	}
	e.transcript.Write(msg.Raw)

	e.ks.DeriveMasterSecrets(e.transcript.Sum())

	if e.cfg.compatibilityMode() {
		// RFC 8446 Appendix D.4: the client emits a dummy
		// change_cipher_spec record immediately before its Finished.
		if err := e.rl.WriteRecord(CTChangeCipherSpec, []byte{0x01}); err != nil {
			return nil, e.fail(KindInternal, AlertInternalError, "send change_cipher_spec: %v", err)
		}
	}

	clientFinishedVerifyData := e.ks.VerifyData(e.ks.ClientHandshakeTrafficSecret(), e.transcript.Sum())
	finishedMsg := makeFinished(clientFinishedVerifyData)
	logHandshake(e.log, "send", HTFinished, len(finishedMsg))
	if err := e.rl.WriteRecord(CTHandshake, finishedMsg); err != nil {
		return nil, e.fail(KindInternal, AlertInternalError, "send finished: %v", err)
	}
	e.transcript.Write(finishedMsg)

	if err := e.installApplicationKeys(); err != nil {
		return nil, err
	}

	e.result.CipherSuite = e.cipherSuite
	e.setState(stateConnected)
	result := e.result
	return []Event{{Kind: EventHandshakeComplete, Handshake: &result}}, nil
}

func (e *Engine) installApplicationKeys() error {
	clientKeys := e.ks.ClientApplicationKeys(e.keyLen)
	serverKeys := e.ks.ServerApplicationKeys(e.keyLen)

	writeAEAD, err := e.provider.AEAD(e.cipherSuite, clientKeys.Key)
	if err != nil {
		return e.fail(KindCrypto, AlertInternalError, "client application aead: %v", err)
	}
	readAEAD, err := e.provider.AEAD(e.cipherSuite, serverKeys.Key)
	if err != nil {
		return e.fail(KindCrypto, AlertInternalError, "server application aead: %v", err)
	}
	e.rl.SetWriteKeys(writeAEAD, clientKeys.IV)
	e.rl.SetReadKeys(readAEAD, serverKeys.IV)
	e.rl.ResetWriteSequence()
	e.rl.ResetReadSequence()
	return nil
}

// handlePostHandshake processes NewSessionTicket and KeyUpdate
// messages received once CONNECTED, the two post-handshake message
// types spec.md names.
func (e *Engine) handlePostHandshake(msg HandshakeMessage) ([]Event, error) {
	switch msg.Type {
	case HTNewSessionTicket:
		var nst NewSessionTicket
		n, err := UnmarshalFrom(msg.Body, &nst)
		if err != nil || n != len(msg.Body) {
			return nil, e.fail(KindDecode, AlertDecodeError, "decode new_session_ticket: %v", err)
		}
		e.log.Debug("new_session_ticket received", zap.Int("ticket_bytes", len(nst.Ticket)))
		return []Event{{Kind: EventSessionTicket, Ticket: &SessionTicketEvent{
			LifetimeSeconds: nst.LifetimeSeconds,
			AgeAdd:          nst.AgeAdd,
			Nonce:           nst.Nonce,
			Ticket:          nst.Ticket,
			Extensions:      nst.Extensions,
		}}}, nil
	case HTKeyUpdate:
		var ku KeyUpdate
		n, err := UnmarshalFrom(msg.Body, &ku)
		if err != nil || n != len(msg.Body) {
			return nil, e.fail(KindDecode, AlertDecodeError, "decode key_update: %v", err)
		}
		newSecret := e.ks.UpdateServerApplicationSecret()
		keys := e.ks.trafficKeys(newSecret, e.keyLen)
		readAEAD, err := e.provider.AEAD(e.cipherSuite, keys.Key)
		if err != nil {
			return nil, e.fail(KindCrypto, AlertInternalError, "rekey read direction: %v", err)
		}
		e.rl.SetReadKeys(readAEAD, keys.IV)
		e.rl.ResetReadSequence()

		var events []Event
		if ku.RequestUpdate == KeyUpdateRequested {
			events = append(events, Event{Kind: EventKeyUpdateRequested})
			if err := e.keyUpdate(false); err != nil {
				return events, err
			}
		}
		return events, nil
	default:
		return nil, e.fail(KindProtocol, AlertUnexpectedMessage,
			"unexpected post-handshake message %v", msg.Type)
	}
}

func (e *Engine) keyUpdate(requestPeerUpdate bool) error {
	if e.state != stateConnected {
		return e.fail(KindProtocol, AlertInternalError, "key_update before handshake complete")
	}
	request := KeyUpdateNotRequested
	if requestPeerUpdate {
		request = KeyUpdateRequested
	}
	msg := makeKeyUpdate(request)
	if err := e.rl.WriteRecord(CTHandshake, msg); err != nil {
		return e.fail(KindInternal, AlertInternalError, "send key_update: %v", err)
	}

	newSecret := e.ks.UpdateClientApplicationSecret()
	keys := e.ks.trafficKeys(newSecret, e.keyLen)
	writeAEAD, err := e.provider.AEAD(e.cipherSuite, keys.Key)
	if err != nil {
		return e.fail(KindCrypto, AlertInternalError, "rekey write direction: %v", err)
	}
	e.rl.SetWriteKeys(writeAEAD, keys.IV)
	e.rl.ResetWriteSequence()
	return nil
}

// KeyUpdate queues a key_update message and ratchets this connection's
// own write key (RFC 8446 §4.6.3), returning the bytes to send.
// requestPeerUpdate asks the peer to ratchet its write direction too.
func (e *Engine) KeyUpdate(requestPeerUpdate bool) ([]byte, error) {
	if err := e.keyUpdate(requestPeerUpdate); err != nil {
		return nil, err
	}
	return e.Outbound(), nil
}

// Send queues application data and returns the bytes to send (spec.md
// §6: send(app_bytes) -> outbound_bytes). Only valid once CONNECTED.
func (e *Engine) Send(data []byte) ([]byte, error) {
	if e.state != stateConnected {
		return nil, e.fail(KindProtocol, AlertInternalError, "send before handshake complete")
	}
	if err := e.rl.WriteRecord(CTApplicationData, data); err != nil {
		return nil, err
	}
	return e.Outbound(), nil
}

// Close queues a close_notify alert, marks the connection closed, and
// returns the bytes to send (spec.md §6: close() -> outbound_bytes).
func (e *Engine) Close() ([]byte, error) {
	if e.state == stateClosed {
		return nil, nil
	}
	a := Alert{Level: AlertLevelWarning, Description: AlertCloseNotify}
	logAlert(e.log, "send", a)
	err := e.rl.WriteRecord(CTAlert, a.Bytes())
	e.setState(stateClosed)
	out := e.Outbound()
	if err != nil {
		return out, fmt.Errorf("send close_notify: %w", err)
	}
	return out, nil
}

func (e *Engine) fail(kind Kind, alert AlertDescription, format string, args ...interface{}) error {
	e.setState(stateClosed)
	a := Alert{Level: alert.Level(), Description: alert}
	logAlert(e.log, "send", a)
	// Best-effort: the peer may already be gone, a failed alert send
	// must not mask the original error. Mirrors the teacher's
	// decodeErrorf/illegalParameterf/internalErrorf "queue alert, keep
	// going" behavior in tls.go.
	_ = e.rl.WriteRecord(CTAlert, a.Bytes())
	return newErrorf(kind, alert, format, args...)
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
