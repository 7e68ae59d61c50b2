//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"fmt"
	"hash"
)

// TranscriptHash is the incremental running hash over every handshake
// message seen so far, required to support "an inexpensive snapshot
// operation" (spec.md §3's Data Model: the H.clone().finalize()
// contract). Go 1.25 formalized the Clone method crypto/sha256's and
// crypto/sha512's digest types have carried since Go 1.21 as the
// hash.Cloner interface; Sum and Snapshot clone the live hash.Hash
// rather than re-hashing a kept byte log, so a snapshot costs one small
// clone instead of re-reading the whole transcript.
type TranscriptHash struct {
	hashFn func() hash.Hash
	h      hash.Hash
}

// NewTranscriptHash starts an empty transcript for the given hash
// constructor (chosen by the negotiated cipher suite).
func NewTranscriptHash(hashFn func() hash.Hash) *TranscriptHash {
	return &TranscriptHash{hashFn: hashFn, h: hashFn()}
}

// Write appends a handshake message's wire bytes (header included) to
// the transcript.
func (t *TranscriptHash) Write(msg []byte) {
	t.h.Write(msg)
}

func (t *TranscriptHash) clone() hash.Hash {
	cloner, ok := t.h.(hash.Cloner)
	if !ok {
		panic(fmt.Sprintf("tls: transcript hash %T does not implement hash.Cloner", t.h))
	}
	clone, err := cloner.Clone()
	if err != nil {
		panic(fmt.Sprintf("tls: clone transcript hash: %v", err))
	}
	return clone
}

// Sum returns the running hash of every message written so far, without
// disturbing the live hash so further Write calls keep accumulating
// correctly.
func (t *TranscriptHash) Sum() []byte {
	return t.clone().Sum(nil)
}

// Snapshot returns an independent copy of the transcript, so a caller
// can fork off a speculative continuation (for example computing a
// CertificateVerify transcript hash) without disturbing the connection's
// own running transcript.
func (t *TranscriptHash) Snapshot() *TranscriptHash {
	return &TranscriptHash{hashFn: t.hashFn, h: t.clone()}
}

// ReplaceWithMessageHash implements the HelloRetryRequest transcript
// rewrite of RFC 8446 §4.4.1: after a HelloRetryRequest, ClientHello1 is
// replaced in the transcript by a synthetic "message_hash" handshake
// message whose body is Hash(ClientHello1), then HelloRetryRequest
// itself and ClientHello2 are appended normally. Grounded on the
// teacher's ServerHandshake, which performs the same rewrite (see its
// handling of the "message_hash" synthetic entry before re-deriving
// early secrets for a second ClientHello).
func (t *TranscriptHash) ReplaceWithMessageHash() {
	sum := t.Sum()

	t.h = t.hashFn()
	body := make([]byte, 0, 4+len(sum))
	body = append(body, byte(HTMessageHash), 0, 0, byte(len(sum)))
	body = append(body, sum...)
	t.h.Write(body)
}
