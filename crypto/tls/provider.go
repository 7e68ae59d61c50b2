//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"github.com/markkurossi/tls13/crypto/hkdf"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeyPair is an ephemeral key exchange key pair offered in a key_share
// entry and retained until the peer's share arrives.
type KeyPair struct {
	Group      NamedGroup
	PrivateKey *ecdh.PrivateKey
}

// CryptoProvider is the external collaborator spec.md §1 delegates all
// primitive cryptography to: key exchange, AEAD, and hashing. The
// engine never implements a cipher itself; it only drives this
// interface according to the negotiated cipher suite and group.
type CryptoProvider interface {
	// GenerateKeyShare creates an ephemeral key pair for group, or an
	// error if the group is not supported.
	GenerateKeyShare(group NamedGroup) (*KeyPair, error)

	// SharedSecret completes the exchange for a key pair generated by
	// GenerateKeyShare against the peer's public key bytes.
	SharedSecret(kp *KeyPair, peerPublic []byte) ([]byte, error)

	// Hash returns the hash constructor associated with suite, for use
	// by the transcript hash and key schedule.
	Hash(suite CipherSuite) (func() hash.Hash, error)

	// AEAD returns a cipher.AEAD for suite keyed with key. Returns
	// ErrUnsupportedCipherSuite if suite is recognized for negotiation
	// but has no implementation (in DefaultProvider: the CCM suites).
	AEAD(suite CipherSuite, key []byte) (cipher.AEAD, error)

	// KeyLength returns the symmetric key length in bytes for suite.
	KeyLength(suite CipherSuite) (int, error)
}

// DefaultProvider is the CryptoProvider used when Config.Provider is
// nil. It implements X25519 via crypto/ecdh (the same stdlib package
// the teacher's single-party exchange already used, here parameterized
// to the curve this engine actually negotiates), AES-GCM via
// crypto/aes + crypto/cipher, and ChaCha20-Poly1305 via
// golang.org/x/crypto/chacha20poly1305.
type DefaultProvider struct{}

var _ CryptoProvider = DefaultProvider{}

// GenerateKeyShare implements CryptoProvider.
func (DefaultProvider) GenerateKeyShare(group NamedGroup) (*KeyPair, error) {
	curve, err := ecdhCurve(group)
	if err != nil {
		return nil, err
	}
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key share: %w", err)
	}
	return &KeyPair{Group: group, PrivateKey: priv}, nil
}

// SharedSecret implements CryptoProvider.
func (DefaultProvider) SharedSecret(kp *KeyPair, peerPublic []byte) ([]byte, error) {
	curve, err := ecdhCurve(kp.Group)
	if err != nil {
		return nil, err
	}
	pub, err := curve.NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("parse peer key share: %w", err)
	}
	secret, err := kp.PrivateKey.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	return secret, nil
}

func ecdhCurve(group NamedGroup) (ecdh.Curve, error) {
	switch group {
	case GroupX25519:
		return ecdh.X25519(), nil
	case GroupSecp256r1:
		return ecdh.P256(), nil
	case GroupSecp384r1:
		return ecdh.P384(), nil
	case GroupSecp521r1:
		return ecdh.P521(), nil
	default:
		return nil, fmt.Errorf("%w: group %v", ErrUnsupportedCipherSuite, group)
	}
}

// Hash implements CryptoProvider.
func (DefaultProvider) Hash(suite CipherSuite) (func() hash.Hash, error) {
	switch suite {
	case CipherTLSAes128GcmSha256, CipherTLSChacha20Poly1305Sha256,
		CipherTLSAes128CcmSha256, CipherTLSAes128Ccm8Sha256:
		return sha256.New, nil
	case CipherTLSAes256GcmSha384:
		return sha512.New384, nil
	default:
		return nil, fmt.Errorf("%w: suite %v", ErrUnsupportedCipherSuite, suite)
	}
}

// KeyLength implements CryptoProvider.
func (DefaultProvider) KeyLength(suite CipherSuite) (int, error) {
	switch suite {
	case CipherTLSAes128GcmSha256, CipherTLSAes128CcmSha256, CipherTLSAes128Ccm8Sha256:
		return 16, nil
	case CipherTLSAes256GcmSha384:
		return 32, nil
	case CipherTLSChacha20Poly1305Sha256:
		return chacha20poly1305.KeySize, nil
	default:
		return 0, fmt.Errorf("%w: suite %v", ErrUnsupportedCipherSuite, suite)
	}
}

// AEAD implements CryptoProvider. The CCM suites are recognized above
// for negotiation (so a peer offering them is not treated as a
// protocol error) but rejected here: no CCM implementation exists in
// the standard library or anywhere in the corpus this engine was
// built from, and hand-rolling AES-CCM is out of scope (spec.md §1
// treats cipher primitives as an external collaborator's concern). A
// host that needs CCM supplies its own CryptoProvider.
func (DefaultProvider) AEAD(suite CipherSuite, key []byte) (cipher.AEAD, error) {
	switch suite {
	case CipherTLSAes128GcmSha256, CipherTLSAes256GcmSha384:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("aes: %w", err)
		}
		return cipher.NewGCM(block)
	case CipherTLSChacha20Poly1305Sha256:
		return chacha20poly1305.New(key)
	case CipherTLSAes128CcmSha256, CipherTLSAes128Ccm8Sha256:
		return nil, fmt.Errorf("%w: %v (no CCM implementation available)",
			ErrUnsupportedCipherSuite, suite)
	default:
		return nil, fmt.Errorf("%w: suite %v", ErrUnsupportedCipherSuite, suite)
	}
}

// hkdfExtract implements the HKDF-Extract step (RFC 5869 §2.2), used by
// the key schedule to fold ikm into the running secret under salt.
// Delegates to the teacher's crypto/hkdf package, generalized to take
// the hash constructor as a parameter (see hkdf.Extract).
func hkdfExtract(hashFn func() hash.Hash, salt, ikm []byte) []byte {
	return hkdf.Extract(hashFn, salt, ikm)
}

// hkdfExpand implements HKDF-Expand (RFC 5869 §2.3) by delegating to
// the teacher's crypto/hkdf.ExpandTLS13, generalized to take the hash
// constructor as a parameter instead of hardcoding SHA-256, so
// TLS_AES_256_GCM_SHA384 can share this code.
func hkdfExpand(hashFn func() hash.Hash, pseudorandomKey, info []byte, length int) []byte {
	return hkdf.Expand(hashFn, pseudorandomKey, info, length)
}

// cryptoRandReader is crypto/rand.Reader, aliased so messages.go can
// default to it without importing crypto/rand itself.
var cryptoRandReader io.Reader = rand.Reader
