//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"errors"
	"fmt"
)

// Kind classifies the failure that terminated a connection, independent
// of the alert description that was sent or received for it. Callers
// that want to react programmatically (retry, fall back, log a metric)
// switch on Kind rather than parsing Error strings.
type Kind int

// Failure kinds.
const (
	// KindProtocol covers malformed or out-of-order handshake messages.
	KindProtocol Kind = iota + 1
	// KindDecode covers codec/record-layer framing failures.
	KindDecode
	// KindCrypto covers AEAD open failures, a Finished verify_data
	// mismatch, and key exchange or cipher setup failures.
	KindCrypto
	// KindNegotiation covers failed cipher-suite/group/version agreement.
	KindNegotiation
	// KindCertificate covers certificate parsing, CertificateVerify
	// signature failures, and verify_callback rejections.
	KindCertificate
	// KindAlertReceived covers a fatal alert received from the peer.
	KindAlertReceived
	// KindAlertSent covers a fatal alert the engine itself generated.
	KindAlertSent
	// KindClosed covers use of a connection after a close_notify or
	// fatal alert has already torn it down.
	KindClosed
	// KindInternal covers failures inside the engine itself (for
	// example reading randomness or building an outgoing message).
	KindInternal
	// KindConfig covers a Config value that was invalid or incomplete
	// at connection start.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	case KindCrypto:
		return "crypto"
	case KindNegotiation:
		return "negotiation"
	case KindCertificate:
		return "certificate"
	case KindAlertReceived:
		return "alert_received"
	case KindAlertSent:
		return "alert_sent"
	case KindClosed:
		return "closed"
	case KindInternal:
		return "internal"
	case KindConfig:
		return "config"
	default:
		return fmt.Sprintf("{Kind %d}", int(k))
	}
}

// Error is the concrete error type returned by Connection methods. It
// carries the classification (Kind), the alert description that was or
// will be sent to the peer (if any), and the underlying cause.
type Error struct {
	Kind  Kind
	Alert AlertDescription
	// HaveAlert reports whether Alert is meaningful; some KindClosed
	// errors have no alert of their own, the connection is simply
	// already torn down.
	HaveAlert bool
	Err       error
}

func (e *Error) Error() string {
	if e.HaveAlert {
		return fmt.Sprintf("tls: %v (alert %v): %v", e.Kind, e.Alert, e.Err)
	}
	return fmt.Sprintf("tls: %v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrClosed) style sentinels to match on Kind,
// and also on Alert when the target has HaveAlert set. The target's
// wrapped cause is not compared.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (!t.HaveAlert || t.Alert == e.Alert)
	}
	return false
}

func newError(kind Kind, alert AlertDescription, err error) *Error {
	return &Error{Kind: kind, Alert: alert, HaveAlert: true, Err: err}
}

func newErrorf(kind Kind, alert AlertDescription, format string, a ...interface{}) *Error {
	return newError(kind, alert, fmt.Errorf(format, a...))
}

func newClosedError(err error) *Error {
	return &Error{Kind: KindClosed, Err: err}
}

// ErrClosed is a sentinel matched via errors.Is against any KindClosed
// error, regardless of the wrapped cause.
var ErrClosed = &Error{Kind: KindClosed, Err: errors.New("connection closed")}

// ErrUnsupportedCipherSuite is returned by a CryptoProvider's AEAD
// method for cipher suites it recognizes but cannot instantiate (for
// example the CCM suites, see DefaultProvider).
var ErrUnsupportedCipherSuite = errors.New("tls: unsupported cipher suite")
