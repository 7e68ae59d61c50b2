//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"go.uber.org/zap"
)

// VerifyCallback is invoked once the peer's Certificate and
// CertificateVerify messages have both been parsed. raw is the
// (unverified) DER certificate chain in the order the peer sent it;
// transcriptHash is the transcript hash covering every handshake
// message up to but not including CertificateVerify, the exact value
// the signature in CertificateVerify is computed over (RFC 8446
// §4.4.3). Returning a non-nil error aborts the handshake with a
// bad_certificate alert.
//
// Implemented per SPEC_FULL.md §4.4, resolving spec.md §9's open
// question: this engine does not skip certificate validation.
type VerifyCallback func(raw [][]byte, transcriptHash []byte) error

// Config carries everything a ClientStateMachine needs to start a
// handshake. Grounded on the configuration surface of spec.md §3 and
// the teacher's kernel/params.go Params, which plays the analogous
// role of a single settings struct threaded through a connection's
// constructor.
type Config struct {
	// ServerName is sent in the server_name extension (SNI) and
	// reported in HandshakeResult. The engine does not check it against
	// the peer certificate; that is up to VerifyCallback (VerifyChain
	// does so).
	ServerName string

	// CipherSuites overrides DefaultCipherSuites when non-empty.
	CipherSuites []CipherSuite

	// SupportedGroups overrides the default offered groups
	// (GroupX25519 alone) when non-empty. The first group is the one
	// an initial key_share is generated for; later groups are offered
	// without a share and only used if the server asks for one of
	// them via HelloRetryRequest.
	SupportedGroups []NamedGroup

	// SignatureSchemes overrides DefaultSignatureSchemes when
	// non-empty.
	SignatureSchemes []SignatureScheme

	// ALPNProtocols, if non-empty, is offered via the
	// application_layer_protocol_negotiation extension [SUPPLEMENT].
	ALPNProtocols []string

	// CompatibilityMode sends a change_cipher_spec record (content 0x01)
	// immediately before Finished, and a non-empty legacy_session_id,
	// matching middlebox-compatibility behavior widely deployed alongside
	// TLS 1.3 (RFC 8446 Appendix D.4). nil defaults to true (SPEC_FULL.md
	// §3's stated default); set explicitly to disable it. A pointer,
	// like the other optional fields below, because the zero value of a
	// plain bool can't be distinguished from an explicit "off".
	CompatibilityMode *bool

	// VerifyCallback is invoked as described above and is mandatory
	// (SPEC_FULL.md §4.4): NewConnection rejects a Config that leaves
	// it nil rather than silently skipping certificate chain
	// validation. Signature verification over CertificateVerify is a
	// separate, independent check gated by VerifySignature.
	VerifyCallback VerifyCallback

	// VerifySignature, when true, makes the engine itself verify the
	// CertificateVerify signature against the leaf certificate's
	// public key using the stdlib verifiers in verify.go, rather than
	// leaving signature math entirely to VerifyCallback.
	VerifySignature bool

	// Provider supplies the primitive cryptography. Defaults to
	// DefaultProvider{}.
	Provider CryptoProvider

	// Logger receives structured trace events. Defaults to a no-op
	// logger, mirroring the teacher's trace-gated Debugf but replacing
	// fmt.Printf with zap fields a host can route anywhere.
	Logger *zap.Logger

	// Rand, if set, overrides crypto/rand.Reader for ClientHello.Random
	// and legacy_session_id. Key shares come from the CryptoProvider;
	// DefaultProvider generates them from crypto/rand.Reader whether or
	// not Rand is set.
	Rand interface {
		Read(p []byte) (int, error)
	}
}

func (c *Config) provider() CryptoProvider {
	if c.Provider != nil {
		return c.Provider
	}
	return DefaultProvider{}
}

func (c *Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c *Config) cipherSuites() []CipherSuite {
	if len(c.CipherSuites) > 0 {
		return c.CipherSuites
	}
	return DefaultCipherSuites
}

func (c *Config) supportedGroups() []NamedGroup {
	if len(c.SupportedGroups) > 0 {
		return c.SupportedGroups
	}
	return []NamedGroup{GroupX25519}
}

func (c *Config) signatureSchemes() []SignatureScheme {
	if len(c.SignatureSchemes) > 0 {
		return c.SignatureSchemes
	}
	return DefaultSignatureSchemes
}

// compatibilityMode returns CompatibilityMode's effective value: true
// unless the caller explicitly set it to false.
func (c *Config) compatibilityMode() bool {
	if c.CompatibilityMode == nil {
		return true
	}
	return *c.CompatibilityMode
}

// validate checks the few preconditions the engine cannot recover from
// at connection start.
func (c *Config) validate() error {
	if len(c.supportedGroups()) == 0 {
		return newErrorf(KindConfig, AlertInternalError, "no supported groups configured")
	}
	if c.VerifyCallback == nil {
		return newErrorf(KindConfig, AlertInternalError,
			"VerifyCallback is mandatory (SPEC_FULL.md §4.4): certificate chain validation may not be skipped")
	}
	return nil
}
