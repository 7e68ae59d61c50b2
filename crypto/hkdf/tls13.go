//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package hkdf implements the HMAC-based key derivation function of
// RFC 5869, as used by the TLS 1.3 key schedule (RFC 8446 §7.1).
package hkdf

import (
	"crypto/hmac"
	"hash"
)

// Extract implements HKDF-Extract (RFC 5869 §2.2): PRK = HMAC-Hash(salt, IKM).
// A zero-length salt is replaced by a string of HashLen zero bytes, per
// the RFC. Used by the TLS 1.3 key schedule to fold each stage's input
// keying material into the running secret.
func Extract(hashFn func() hash.Hash, salt, ikm []byte) []byte {
	if len(salt) == 0 {
		salt = make([]byte, hashFn().Size())
	}
	mac := hmac.New(hashFn, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

// ExpandTLS13 implements HKDF-Expand (RFC 5869 §2.3), filling out with
// OKM derived from pseudorandomKey and info. Originally hardcoded to
// SHA-256; generalized here to take the hash constructor as a
// parameter so TLS_AES_256_GCM_SHA384 (SHA-384) shares this
// implementation instead of requiring a second copy.
func ExpandTLS13(hashFn func() hash.Hash, pseudorandomKey, info, out []byte) {
	expander := hmac.New(hashFn, pseudorandomKey)
	counter := []byte{1}

	var prev []byte

	for len(out) > 0 {
		if counter[0] > 1 {
			expander.Reset()
			expander.Write(prev)
		}
		expander.Write(info)
		expander.Write(counter)
		prev = expander.Sum(prev[:0])
		counter[0]++

		n := copy(out, prev)
		out = out[n:]
	}
}

// Expand is a convenience wrapper over ExpandTLS13 that allocates and
// returns the output buffer instead of writing into a caller-supplied
// one.
func Expand(hashFn func() hash.Hash, pseudorandomKey, info []byte, length int) []byte {
	out := make([]byte, length)
	ExpandTLS13(hashFn, pseudorandomKey, info, out)
	return out
}
