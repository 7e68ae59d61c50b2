//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"fmt"
)

// ContentType specifies record layer record types.
type ContentType uint8

// Record layer record types.
const (
	CTInvalid          ContentType = 0
	CTChangeCipherSpec ContentType = 20
	CTAlert            ContentType = 21
	CTHandshake        ContentType = 22
	CTApplicationData  ContentType = 23
)

func (ct ContentType) String() string {
	name, ok := contentTypes[ct]
	if ok {
		return name
	}
	return fmt.Sprintf("{ContentType %d}", ct)
}

var contentTypes = map[ContentType]string{
	CTInvalid:          "invalid",
	CTChangeCipherSpec: "change_cipher_spec",
	CTAlert:            "alert",
	CTHandshake:        "handshake",
	CTApplicationData:  "application_data",
}

// ProtocolVersion defines TLS protocol version.
type ProtocolVersion uint16

// Protocol versions in use by this engine.
const (
	VersionTLS12 ProtocolVersion = 0x0303
	VersionTLS13 ProtocolVersion = 0x0304
)

func (v ProtocolVersion) String() string {
	name, ok := protocolVersions[v]
	if ok {
		return name
	}
	return fmt.Sprintf("%04x", uint(v))
}

// Bytes returns the 2-byte wire encoding of the version.
func (v ProtocolVersion) Bytes() []byte {
	return []byte{byte(v >> 8), byte(v)}
}

var protocolVersions = map[ProtocolVersion]string{
	0x0300:       "SSL 3.0",
	0x0301:       "TLS 1.0",
	0x0302:       "TLS 1.1",
	VersionTLS12: "TLS 1.2",
	VersionTLS13: "TLS 1.3",
}

// HandshakeType defines handshake message types.
type HandshakeType uint8

// Handshake message types.
const (
	HTClientHello HandshakeType = iota + 1
	HTServerHello
	_
	HTNewSessionTicket
	HTEndOfEarlyData
	_
	_
	HTEncryptedExtensions
	_
	_
	HTCertificate
	_
	HTCertificateRequest
	_
	HTCertificateVerify
	_
	_
	_
	_
	HTFinished
	_
	_
	_
	HTKeyUpdate
)

// HTMessageHash is the synthetic handshake type used to replace
// ClientHello1 in the transcript after a HelloRetryRequest.
const HTMessageHash HandshakeType = 254

func (ht HandshakeType) String() string {
	name, ok := handshakeTypes[ht]
	if ok {
		return name
	}
	return fmt.Sprintf("{HandshakeType %d}", ht)
}

var handshakeTypes = map[HandshakeType]string{
	HTClientHello:         "client_hello",
	HTServerHello:         "server_hello",
	HTNewSessionTicket:    "new_session_ticket",
	HTEndOfEarlyData:      "end_of_early_data",
	HTEncryptedExtensions: "encrypted_extensions",
	HTCertificate:         "certificate",
	HTCertificateRequest:  "certificate_request",
	HTCertificateVerify:   "certificate_verify",
	HTFinished:            "finished",
	HTKeyUpdate:           "key_update",
	HTMessageHash:         "message_hash",
}

// ClientHello implements the client_hello message.
type ClientHello struct {
	LegacyVersion            ProtocolVersion
	Random                   [32]byte
	LegacySessionID          []byte        `tls:"u8"`
	CipherSuites             []CipherSuite `tls:"u16"`
	LegacyCompressionMethods []byte        `tls:"u8"`
	Extensions               []Extension   `tls:"u16"`
}

// ServerHello implements the server_hello message, and also the
// HelloRetryRequest message (distinguished by Random).
type ServerHello struct {
	LegacyVersion           ProtocolVersion
	Random                  [32]byte
	LegacySessionIDEcho     []byte `tls:"u8"`
	CipherSuite             CipherSuite
	LegacyCompressionMethod uint8
	Extensions              []Extension `tls:"u16"`
}

// HelloRetryRequestRandom is the sentinel value (SHA-256 of
// "HelloRetryRequest") that distinguishes a HelloRetryRequest from an
// ordinary ServerHello (RFC 8446 §4.1.3).
var HelloRetryRequestRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// IsHelloRetryRequest reports whether sh is a HelloRetryRequest.
func (sh *ServerHello) IsHelloRetryRequest() bool {
	return sh.Random == HelloRetryRequestRandom
}

// EncryptedExtensions implements the encrypted_extensions message.
type EncryptedExtensions struct {
	Extensions []Extension `tls:"u16"`
}

// CertificateRequest implements the certificate_request message.
type CertificateRequest struct {
	CertificateRequestContext []byte      `tls:"u8"`
	Extensions                []Extension `tls:"u16"`
}

// CertificateEntry is one entry of a Certificate message's
// certificate_list.
type CertificateEntry struct {
	Data       []byte      `tls:"u24"`
	Extensions []Extension `tls:"u16"`
}

// Certificate implements the certificate message.
type Certificate struct {
	CertificateRequestContext []byte             `tls:"u8"`
	CertificateList           []CertificateEntry `tls:"u24"`
}

// CertificateVerify implements the certificate_verify message.
type CertificateVerify struct {
	Algorithm SignatureScheme
	Signature []byte `tls:"u16"`
}

// Finished implements the finished message. VerifyData is sized to the
// negotiated hash's output length (32 bytes for SHA-256, 48 for
// SHA-384).
type Finished struct {
	VerifyData []byte
}

// NewSessionTicket implements the new_session_ticket post-handshake
// message.
type NewSessionTicket struct {
	LifetimeSeconds uint32
	AgeAdd          uint32
	Nonce           []byte      `tls:"u8"`
	Ticket          []byte      `tls:"u16"`
	Extensions      []Extension `tls:"u16"`
}

// KeyUpdate implements the key_update post-handshake message.
type KeyUpdate struct {
	RequestUpdate KeyUpdateRequest
}

// CipherSuite defines cipher suites.
type CipherSuite uint16

// TLS 1.3 cipher suites.
const (
	CipherTLSAes128GcmSha256        CipherSuite = 0x1301
	CipherTLSAes256GcmSha384        CipherSuite = 0x1302
	CipherTLSChacha20Poly1305Sha256 CipherSuite = 0x1303
	CipherTLSAes128CcmSha256        CipherSuite = 0x1304
	CipherTLSAes128Ccm8Sha256       CipherSuite = 0x1305
)

func (cs CipherSuite) String() string {
	name, ok := tls13CipherSuites[cs]
	if ok {
		return name
	}
	return fmt.Sprintf("{CipherSuite 0x%02x,0x%02x}", int(cs>>8), int(cs&0xff))
}

var tls13CipherSuites = map[CipherSuite]string{
	CipherTLSAes128GcmSha256:        "TLS_AES_128_GCM_SHA256",
	CipherTLSAes256GcmSha384:        "TLS_AES_256_GCM_SHA384",
	CipherTLSChacha20Poly1305Sha256: "TLS_CHACHA20_POLY1305_SHA256",
	CipherTLSAes128CcmSha256:        "TLS_AES_128_CCM_SHA256",
	CipherTLSAes128Ccm8Sha256:       "TLS_AES_128_CCM_8_SHA256",
}

// DefaultCipherSuites is the order in which the engine offers cipher
// suites in ClientHello when Config.CipherSuites is unset.
var DefaultCipherSuites = []CipherSuite{
	CipherTLSAes128GcmSha256,
	CipherTLSChacha20Poly1305Sha256,
	CipherTLSAes256GcmSha384,
	CipherTLSAes128CcmSha256,
	CipherTLSAes128Ccm8Sha256,
}

// NamedGroup defines named key exchange groups.
type NamedGroup uint16

// Named groups.
const (
	GroupSecp256r1 NamedGroup = 0x0017
	GroupSecp384r1 NamedGroup = 0x0018
	GroupSecp521r1 NamedGroup = 0x0019
	GroupX25519    NamedGroup = 0x001D
	GroupX448      NamedGroup = 0x001E
	GroupFfdhe2048 NamedGroup = 0x0100
	GroupFfdhe3072 NamedGroup = 0x0101
	GroupFfdhe4096 NamedGroup = 0x0102
	GroupFfdhe6144 NamedGroup = 0x0103
	GroupFfdhe8192 NamedGroup = 0x0104
)

func (group NamedGroup) String() string {
	name, ok := tls13NamedGroups[group]
	if ok {
		return name
	}
	return fmt.Sprintf("%04x", int(group))
}

// Bytes returns the 2-byte wire encoding of the named group.
func (group NamedGroup) Bytes() []byte {
	return []byte{byte(group >> 8), byte(group)}
}

var tls13NamedGroups = map[NamedGroup]string{
	GroupSecp256r1: "secp256r1",
	GroupSecp384r1: "secp384r1",
	GroupSecp521r1: "secp521r1",
	GroupX25519:    "x25519",
	GroupX448:      "x448",
}

// SignatureScheme defines the signature algorithms for the
// signature_algorithms and signature_algorithms_cert extensions.
type SignatureScheme uint16

// Signature algorithms.
const (
	SigSchemeRsaPkcs1Sha256       SignatureScheme = 0x0401
	SigSchemeRsaPkcs1Sha384       SignatureScheme = 0x0501
	SigSchemeRsaPkcs1Sha512       SignatureScheme = 0x0601
	SigSchemeEcdsaSecp256r1Sha256 SignatureScheme = 0x0403
	SigSchemeEcdsaSecp384r1Sha384 SignatureScheme = 0x0503
	SigSchemeEcdsaSecp521r1Sha512 SignatureScheme = 0x0603
	SigSchemeRsaPssRsaeSha256     SignatureScheme = 0x0804
	SigSchemeRsaPssRsaeSha384     SignatureScheme = 0x0805
	SigSchemeRsaPssRsaeSha512     SignatureScheme = 0x0806
	SigSchemeEd25519              SignatureScheme = 0x0807
	SigSchemeEd448                SignatureScheme = 0x0808
	SigSchemeRsaPssPssSha256      SignatureScheme = 0x0809
	SigSchemeRsaPssPssSha384      SignatureScheme = 0x080a
	SigSchemeRsaPssPssSha512      SignatureScheme = 0x080b
	SigSchemeRsaPkcs1Sha1         SignatureScheme = 0x0201
	SigSchemeEcdsaSha1            SignatureScheme = 0x0203
)

func (scheme SignatureScheme) String() string {
	name, ok := tls13SignatureSchemes[scheme]
	if ok {
		return name
	}
	return fmt.Sprintf("%04x", int(scheme))
}

var tls13SignatureSchemes = map[SignatureScheme]string{
	SigSchemeRsaPkcs1Sha256:       "rsa_pkcs1_sha256",
	SigSchemeRsaPkcs1Sha384:       "rsa_pkcs1_sha384",
	SigSchemeRsaPkcs1Sha512:       "rsa_pkcs1_sha512",
	SigSchemeEcdsaSecp256r1Sha256: "ecdsa_secp256r1_sha256",
	SigSchemeEcdsaSecp384r1Sha384: "ecdsa_secp384r1_sha384",
	SigSchemeEcdsaSecp521r1Sha512: "ecdsa_secp521r1_sha512",
	SigSchemeRsaPssRsaeSha256:     "rsa_pss_rsae_sha256",
	SigSchemeRsaPssRsaeSha384:     "rsa_pss_rsae_sha384",
	SigSchemeRsaPssRsaeSha512:     "rsa_pss_rsae_sha512",
	SigSchemeEd25519:              "ed25519",
	SigSchemeEd448:                "ed448",
	SigSchemeRsaPssPssSha256:      "rsa_pss_pss_sha256",
	SigSchemeRsaPssPssSha384:      "rsa_pss_pss_sha384",
	SigSchemeRsaPssPssSha512:      "rsa_pss_pss_sha512",
}

// DefaultSignatureSchemes is the set offered in ClientHello when
// Config.SignatureSchemes is unset.
var DefaultSignatureSchemes = []SignatureScheme{
	SigSchemeEcdsaSecp256r1Sha256,
	SigSchemeEd25519,
	SigSchemeRsaPssRsaeSha256,
	SigSchemeRsaPssRsaeSha384,
	SigSchemeRsaPssRsaeSha512,
	SigSchemeRsaPkcs1Sha256,
	SigSchemeRsaPkcs1Sha384,
	SigSchemeRsaPkcs1Sha512,
	SigSchemeEcdsaSecp384r1Sha384,
	SigSchemeEcdsaSecp521r1Sha512,
}

// KeyShareEntry defines a key_share extension entry.
type KeyShareEntry struct {
	Group       NamedGroup
	KeyExchange []byte `tls:"u16"`
}

// Bytes returns the wire encoding of the entry (group || len || key).
func (e *KeyShareEntry) Bytes() []byte {
	data, err := Marshal(e)
	if err != nil {
		// KeyShareEntry has no variable-policy fields; marshal cannot fail.
		panic(err)
	}
	return data
}

// KeyUpdateRequest defines the key_update request flag.
type KeyUpdateRequest uint8

// Key update request values.
const (
	KeyUpdateNotRequested KeyUpdateRequest = 0
	KeyUpdateRequested    KeyUpdateRequest = 1
)

func (k KeyUpdateRequest) String() string {
	switch k {
	case KeyUpdateNotRequested:
		return "update_not_requested"
	case KeyUpdateRequested:
		return "update_requested"
	default:
		return fmt.Sprintf("{KeyUpdateRequest %d}", k)
	}
}

// CertificateType distinguishes X.509 vs. raw-public-key certificate
// entries (RFC 7250). Only X509 is supported by this engine.
type CertificateType uint8

// Certificate entry types.
const (
	CertificateTypeX509         CertificateType = 0
	CertificateTypeRawPublicKey CertificateType = 2
)

// Extension defines handshake extensions.
type Extension struct {
	Type ExtensionType
	Data []byte `tls:"u16"`
}

func (ext Extension) String() string {
	return fmt.Sprintf("%v[%d]", ext.Type, len(ext.Data))
}

// ExtensionType defines the handshake protocol extensions.
type ExtensionType uint16

// ExtensionTypes.
const (
	ETServerName                          ExtensionType = 0     // RFC 6066
	ETMaxFragmentLength                   ExtensionType = 1     // RFC 6066
	ETStatusRequest                       ExtensionType = 5     // RFC 6066
	ETSupportedGroups                     ExtensionType = 10    // RFC 8422 7919
	ETECPointFormats                      ExtensionType = 11    // RFC 8422
	ETSignatureAlgorithms                 ExtensionType = 13    // RFC 8446
	ETUseSRTP                             ExtensionType = 14    // RFC 5764
	ETHeartbeat                           ExtensionType = 15    // RFC 6520
	ETApplicationLayerProtocolNegotiation ExtensionType = 16    // RFC 7301
	ETSignedCertificateTimestamp          ExtensionType = 18    // RFC 6962
	ETClientCertificateType               ExtensionType = 19    // RFC 7250
	ETServerCertificateType               ExtensionType = 20    // RFC 7250
	ETPadding                             ExtensionType = 21    // RFC 7685
	ETExtendedMasterSecret                ExtensionType = 23    // RFC 7627
	ETCompressCertificate                 ExtensionType = 27    // RFC 8879
	ETSessionTicket                       ExtensionType = 35    // RFC 8446
	ETPreSharedKey                        ExtensionType = 41    // RFC 8446
	ETEarlyData                           ExtensionType = 42    // RFC 8446
	ETSupportedVersions                   ExtensionType = 43    // RFC 8446
	ETCookie                              ExtensionType = 44    // RFC 8446
	ETPSKKeyExchangeModes                 ExtensionType = 45    // RFC 8446
	ETCertificateAuthorities              ExtensionType = 47    // RFC 8446
	ETOIDFilters                          ExtensionType = 48    // RFC 8446
	ETPostHandshakeAuth                   ExtensionType = 49    // RFC 8446
	ETSignatureAlgorithmsCert             ExtensionType = 50    // RFC 8446
	ETKeyShare                            ExtensionType = 51    // RFC 8446
	ETRenegotiationInfo                   ExtensionType = 65281 // RFC 5746
)

func (et ExtensionType) String() string {
	name, ok := tls13Extensions[et]
	if ok {
		return name
	}
	name, ok = extensionTypeNames[et]
	if ok {
		return name
	}
	return fmt.Sprintf("{ExtensionType %d}", et)
}

var tls13Extensions = map[ExtensionType]string{
	ETSupportedVersions:   "supported_versions",
	ETSignatureAlgorithms: "signature_algorithms",
	ETSupportedGroups:     "supported_groups",
	ETKeyShare:            "key_share",
	ETPreSharedKey:        "pre_shared_key",
	ETPSKKeyExchangeModes: "psk_key_exchange_modes",
}

var extensionTypeNames = map[ExtensionType]string{
	ETServerName:                          "server_name",
	ETMaxFragmentLength:                   "max_fragment_length",
	ETStatusRequest:                       "status_request",
	ETECPointFormats:                      "ec_point_formats",
	ETUseSRTP:                             "use_srtp",
	ETHeartbeat:                           "heartbeat",
	ETApplicationLayerProtocolNegotiation: "application_layer_protocol_negotiation",
	ETSignedCertificateTimestamp:          "signed_certificate_timestamp",
	ETClientCertificateType:               "client_certificate_type",
	ETServerCertificateType:               "server_certificate_type",
	ETPadding:                             "padding",
	ETExtendedMasterSecret:                "extended_master_secret",
	ETCompressCertificate:                 "compress_certificate",
	ETSessionTicket:                       "session_ticket",
	ETEarlyData:                           "early_data",
	ETCookie:                              "cookie",
	ETCertificateAuthorities:              "certificate_authorities",
	ETOIDFilters:                          "oid_filters",
	ETPostHandshakeAuth:                   "post_handshake_auth",
	ETSignatureAlgorithmsCert:             "signature_algorithms_cert",
	ETRenegotiationInfo:                   "renegotiation_info",
}

// serverHelloAllowedExtensions is the set of extension types
// handleServerHello accepts in a ServerHello. Everything else is a strict decode
// failure there, unlike EncryptedExtensions/NewSessionTicket which
// tolerate unknown types (spec.md §4.1/§4.5).
var serverHelloAllowedExtensions = map[ExtensionType]bool{
	ETSupportedVersions: true,
	ETKeyShare:          true,
}

// NameType defines server_name extension name types.
type NameType uint8

// Name types.
const (
	NameTypeHostName NameType = 0
)

// AlertLevel defines the severity of an alert.
type AlertLevel uint8

// Alert levels.
const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

func (l AlertLevel) String() string {
	switch l {
	case AlertLevelWarning:
		return "warning"
	case AlertLevelFatal:
		return "fatal"
	default:
		return fmt.Sprintf("{AlertLevel %d}", l)
	}
}

// AlertDescription defines the alert descriptions of RFC 8446 §6.
type AlertDescription uint8

// Alert descriptions.
const (
	AlertCloseNotify                  AlertDescription = 0
	AlertUnexpectedMessage            AlertDescription = 10
	AlertBadRecordMac                 AlertDescription = 20
	AlertRecordOverflow               AlertDescription = 22
	AlertHandshakeFailure             AlertDescription = 40
	AlertBadCertificate               AlertDescription = 42
	AlertUnsupportedCertificate       AlertDescription = 43
	AlertCertificateRevoked           AlertDescription = 44
	AlertCertificateExpired           AlertDescription = 45
	AlertCertificateUnknown           AlertDescription = 46
	AlertIllegalParameter             AlertDescription = 47
	AlertUnknownCA                    AlertDescription = 48
	AlertAccessDenied                 AlertDescription = 49
	AlertDecodeError                  AlertDescription = 50
	AlertDecryptError                 AlertDescription = 51
	AlertProtocolVersion              AlertDescription = 70
	AlertInsufficientSecurity         AlertDescription = 71
	AlertInternalError                AlertDescription = 80
	AlertInappropriateFallback        AlertDescription = 86
	AlertUserCanceled                 AlertDescription = 90
	AlertMissingExtension             AlertDescription = 109
	AlertUnsupportedExtension         AlertDescription = 110
	AlertUnrecognizedName             AlertDescription = 112
	AlertBadCertificateStatusResponse AlertDescription = 113
	AlertUnknownPSKIdentity           AlertDescription = 115
	AlertCertificateRequired          AlertDescription = 116
	AlertNoApplicationProtocol        AlertDescription = 120
)

var alertDescriptionNames = map[AlertDescription]string{
	AlertCloseNotify:                  "close_notify",
	AlertUnexpectedMessage:            "unexpected_message",
	AlertBadRecordMac:                 "bad_record_mac",
	AlertRecordOverflow:               "record_overflow",
	AlertHandshakeFailure:             "handshake_failure",
	AlertBadCertificate:               "bad_certificate",
	AlertUnsupportedCertificate:       "unsupported_certificate",
	AlertCertificateRevoked:           "certificate_revoked",
	AlertCertificateExpired:           "certificate_expired",
	AlertCertificateUnknown:           "certificate_unknown",
	AlertIllegalParameter:             "illegal_parameter",
	AlertUnknownCA:                    "unknown_ca",
	AlertAccessDenied:                 "access_denied",
	AlertDecodeError:                  "decode_error",
	AlertDecryptError:                 "decrypt_error",
	AlertProtocolVersion:              "protocol_version",
	AlertInsufficientSecurity:         "insufficient_security",
	AlertInternalError:                "internal_error",
	AlertInappropriateFallback:        "inappropriate_fallback",
	AlertUserCanceled:                 "user_canceled",
	AlertMissingExtension:             "missing_extension",
	AlertUnsupportedExtension:         "unsupported_extension",
	AlertUnrecognizedName:             "unrecognized_name",
	AlertBadCertificateStatusResponse: "bad_certificate_status_response",
	AlertUnknownPSKIdentity:           "unknown_psk_identity",
	AlertCertificateRequired:          "certificate_required",
	AlertNoApplicationProtocol:        "no_application_protocol",
}

func (d AlertDescription) String() string {
	name, ok := alertDescriptionNames[d]
	if ok {
		return name
	}
	return fmt.Sprintf("{AlertDescription %d}", d)
}

// Level returns the alert level mandated for this description. Only
// close_notify and user_canceled are warnings; everything else is
// fatal (RFC 8446 §6).
func (d AlertDescription) Level() AlertLevel {
	switch d {
	case AlertCloseNotify, AlertUserCanceled:
		return AlertLevelWarning
	default:
		return AlertLevelFatal
	}
}
