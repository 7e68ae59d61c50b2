//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"crypto/hmac"
	"hash"
)

// hkdfExpandLabel implements HKDF-Expand-Label (RFC 8446 §7.1):
//
//	HKDF-Expand-Label(Secret, Label, Context, Length) =
//	    HKDF-Expand(Secret, HkdfLabel, Length)
//
// where HkdfLabel is an encoded struct carrying Length, the label
// prefixed with "tls13 ", and Context. Grounded on the teacher's
// key_exchange.go hkdfExpandLabel, generalized to take the hash
// constructor so SHA-384 suites share this implementation instead of
// it being hardcoded to SHA-256.
func hkdfExpandLabel(hashFn func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label

	hkdfLabel := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	hkdfLabel = append(hkdfLabel, byte(length>>8), byte(length))
	hkdfLabel = append(hkdfLabel, byte(len(fullLabel)))
	hkdfLabel = append(hkdfLabel, fullLabel...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)

	return hkdfExpand(hashFn, secret, hkdfLabel, length)
}

// deriveSecret implements Derive-Secret (RFC 8446 §7.1):
//
//	Derive-Secret(Secret, Label, Messages) =
//	    HKDF-Expand-Label(Secret, Label, Transcript-Hash(Messages), Hash.length)
//
// Grounded on the teacher's key_exchange.go deriveSecret.
func deriveSecret(hashFn func() hash.Hash, secret []byte, label string, transcript []byte) []byte {
	return hkdfExpandLabel(hashFn, secret, label, transcript, hashFn().Size())
}

// KeySchedule drives the RFC 8446 §7.1 secret schedule for a single
// connection: Early -> Handshake -> Master, plus the per-direction
// traffic keys derived at each phase. It is built incrementally as
// transcript milestones are reached, mirroring the teacher's
// deriveServerHandshakeKeys but carried across the whole connection
// lifetime instead of being a one-shot function, since the client
// needs access-secrets again later for NewSessionTicket/KeyUpdate.
type KeySchedule struct {
	hashFn func() hash.Hash

	earlySecret        []byte
	handshakeSecret    []byte
	masterSecret       []byte
	clientHSTraffic    []byte
	serverHSTraffic    []byte
	clientAppTraffic   []byte
	serverAppTraffic   []byte
	exporterMasterSecr []byte
}

// NewKeySchedule starts a key schedule for hashFn, the hash associated
// with the negotiated cipher suite.
func NewKeySchedule(hashFn func() hash.Hash) *KeySchedule {
	ks := &KeySchedule{hashFn: hashFn}
	zero := make([]byte, hashFn().Size())
	ks.earlySecret = hkdfExtract(hashFn, zero, zero)
	return ks
}

// DeriveHandshakeSecrets computes the Handshake Secret and the
// client/server handshake traffic secrets from the ECDHE shared
// secret and the transcript hash through ServerHello.
func (ks *KeySchedule) DeriveHandshakeSecrets(sharedSecret, transcriptHelloToSH []byte) {
	derivedEarly := deriveSecret(ks.hashFn, ks.earlySecret, "derived", emptyHash(ks.hashFn))
	ks.handshakeSecret = hkdfExtract(ks.hashFn, derivedEarly, sharedSecret)
	ks.clientHSTraffic = deriveSecret(ks.hashFn, ks.handshakeSecret, "c hs traffic", transcriptHelloToSH)
	ks.serverHSTraffic = deriveSecret(ks.hashFn, ks.handshakeSecret, "s hs traffic", transcriptHelloToSH)
}

// DeriveMasterSecrets computes the Master Secret and the client/server
// application traffic secrets plus the exporter master secret, from
// the transcript hash through server Finished.
func (ks *KeySchedule) DeriveMasterSecrets(transcriptThroughServerFinished []byte) {
	derivedHS := deriveSecret(ks.hashFn, ks.handshakeSecret, "derived", emptyHash(ks.hashFn))
	zero := make([]byte, ks.hashFn().Size())
	ks.masterSecret = hkdfExtract(ks.hashFn, derivedHS, zero)
	ks.clientAppTraffic = deriveSecret(ks.hashFn, ks.masterSecret, "c ap traffic", transcriptThroughServerFinished)
	ks.serverAppTraffic = deriveSecret(ks.hashFn, ks.masterSecret, "s ap traffic", transcriptThroughServerFinished)
	ks.exporterMasterSecr = deriveSecret(ks.hashFn, ks.masterSecret, "exp master", transcriptThroughServerFinished)
}

func emptyHash(hashFn func() hash.Hash) []byte {
	h := hashFn()
	return h.Sum(nil)
}

// TrafficKeys is the {key, iv} pair derived from a traffic secret for
// one AEAD direction (RFC 8446 §7.3).
type TrafficKeys struct {
	Key []byte
	IV  []byte
}

// trafficKeys derives {key, iv} from secret for the given key length
// and a 12-byte IV (fixed by RFC 8446 for all defined AEADs).
func (ks *KeySchedule) trafficKeys(secret []byte, keyLen int) TrafficKeys {
	return TrafficKeys{
		Key: hkdfExpandLabel(ks.hashFn, secret, "key", nil, keyLen),
		IV:  hkdfExpandLabel(ks.hashFn, secret, "iv", nil, 12),
	}
}

// ClientHandshakeKeys derives the client handshake traffic keys.
func (ks *KeySchedule) ClientHandshakeKeys(keyLen int) TrafficKeys {
	return ks.trafficKeys(ks.clientHSTraffic, keyLen)
}

// ServerHandshakeKeys derives the server handshake traffic keys.
func (ks *KeySchedule) ServerHandshakeKeys(keyLen int) TrafficKeys {
	return ks.trafficKeys(ks.serverHSTraffic, keyLen)
}

// ClientApplicationKeys derives the client application traffic keys.
func (ks *KeySchedule) ClientApplicationKeys(keyLen int) TrafficKeys {
	return ks.trafficKeys(ks.clientAppTraffic, keyLen)
}

// ServerApplicationKeys derives the server application traffic keys.
func (ks *KeySchedule) ServerApplicationKeys(keyLen int) TrafficKeys {
	return ks.trafficKeys(ks.serverAppTraffic, keyLen)
}

// FinishedKey derives the finished_key used to HMAC the transcript
// hash for a Finished message (RFC 8446 §4.4.4), from either the
// client or server handshake traffic secret.
func (ks *KeySchedule) FinishedKey(baseKey []byte) []byte {
	return hkdfExpandLabel(ks.hashFn, baseKey, "finished", nil, ks.hashFn().Size())
}

// ClientHandshakeTrafficSecret exposes the raw secret so callers can
// compute a Finished verify_data (HMAC(finished_key, transcript_hash)).
func (ks *KeySchedule) ClientHandshakeTrafficSecret() []byte { return ks.clientHSTraffic }

// ServerHandshakeTrafficSecret exposes the raw secret.
func (ks *KeySchedule) ServerHandshakeTrafficSecret() []byte { return ks.serverHSTraffic }

// VerifyData computes HMAC(finished_key, transcript_hash) per
// RFC 8446 §4.4.4.
func (ks *KeySchedule) VerifyData(baseKey, transcriptHash []byte) []byte {
	finishedKey := ks.FinishedKey(baseKey)
	mac := hmac.New(ks.hashFn, finishedKey)
	mac.Write(transcriptHash)
	return mac.Sum(nil)
}

// NextApplicationSecret implements the KeyUpdate secret ratchet
// (RFC 8446 §7.2):
//
//	application_traffic_secret_N+1 =
//	    HKDF-Expand-Label(application_traffic_secret_N, "traffic upd", "", Hash.length)
func (ks *KeySchedule) NextApplicationSecret(secret []byte) []byte {
	return hkdfExpandLabel(ks.hashFn, secret, "traffic upd", nil, ks.hashFn().Size())
}

// UpdateClientApplicationSecret ratchets and replaces the stored client
// application traffic secret, returning the new value.
func (ks *KeySchedule) UpdateClientApplicationSecret() []byte {
	ks.clientAppTraffic = ks.NextApplicationSecret(ks.clientAppTraffic)
	return ks.clientAppTraffic
}

// UpdateServerApplicationSecret ratchets and replaces the stored server
// application traffic secret, returning the new value.
func (ks *KeySchedule) UpdateServerApplicationSecret() []byte {
	ks.serverAppTraffic = ks.NextApplicationSecret(ks.serverAppTraffic)
	return ks.serverAppTraffic
}

// ResumptionMasterSecret derives the secret a NewSessionTicket nonce is
// combined with to form a PSK (RFC 8446 §7.1). The engine parses
// tickets (spec.md's events surface) but, per the Non-goals, never
// uses the result to attempt resumption.
func (ks *KeySchedule) ResumptionMasterSecret(transcriptThroughClientFinished []byte) []byte {
	return deriveSecret(ks.hashFn, ks.masterSecret, "res master", transcriptThroughClientFinished)
}
