//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"bytes"
	"errors"
	"testing"
)

func TestDefaultProviderKeyExchangeX25519(t *testing.T) {
	p := DefaultProvider{}

	client, err := p.GenerateKeyShare(GroupX25519)
	if err != nil {
		t.Fatalf("GenerateKeyShare(client): %v", err)
	}
	server, err := p.GenerateKeyShare(GroupX25519)
	if err != nil {
		t.Fatalf("GenerateKeyShare(server): %v", err)
	}

	clientSecret, err := p.SharedSecret(client, server.PrivateKey.PublicKey().Bytes())
	if err != nil {
		t.Fatalf("SharedSecret(client): %v", err)
	}
	serverSecret, err := p.SharedSecret(server, client.PrivateKey.PublicKey().Bytes())
	if err != nil {
		t.Fatalf("SharedSecret(server): %v", err)
	}

	if !bytes.Equal(clientSecret, serverSecret) {
		t.Error("client and server did not derive the same X25519 shared secret")
	}
}

func TestDefaultProviderUnsupportedGroup(t *testing.T) {
	p := DefaultProvider{}
	if _, err := p.GenerateKeyShare(NamedGroup(0xFFFF)); err == nil {
		t.Error("expected error for unsupported group")
	}
}

func TestDefaultProviderHashAndKeyLength(t *testing.T) {
	p := DefaultProvider{}

	h, err := p.Hash(CipherTLSAes128GcmSha256)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h().Size() != 32 {
		t.Errorf("hash size=%d, want 32", h().Size())
	}

	h384, err := p.Hash(CipherTLSAes256GcmSha384)
	if err != nil {
		t.Fatalf("Hash(sha384 suite): %v", err)
	}
	if h384().Size() != 48 {
		t.Errorf("hash size=%d, want 48", h384().Size())
	}

	keyLen, err := p.KeyLength(CipherTLSAes128GcmSha256)
	if err != nil {
		t.Fatalf("KeyLength: %v", err)
	}
	if keyLen != 16 {
		t.Errorf("key length=%d, want 16", keyLen)
	}
}

func TestDefaultProviderAEADSealOpen(t *testing.T) {
	p := DefaultProvider{}

	cases := []struct {
		name  string
		suite CipherSuite
		key   []byte
	}{
		{"aes128gcm", CipherTLSAes128GcmSha256, bytes.Repeat([]byte{0x01}, 16)},
		{"aes256gcm", CipherTLSAes256GcmSha384, bytes.Repeat([]byte{0x02}, 32)},
		{"chacha20poly1305", CipherTLSChacha20Poly1305Sha256, bytes.Repeat([]byte{0x03}, 32)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			aead, err := p.AEAD(c.suite, c.key)
			if err != nil {
				t.Fatalf("AEAD: %v", err)
			}
			nonce := make([]byte, aead.NonceSize())
			plaintext := []byte("hello tls 1.3")
			ad := []byte{0x17, 0x03, 0x03, 0x00, 0x20}

			sealed := aead.Seal(nil, nonce, plaintext, ad)
			opened, err := aead.Open(nil, nonce, sealed, ad)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if !bytes.Equal(opened, plaintext) {
				t.Errorf("opened=%q, want %q", opened, plaintext)
			}

			if _, err := aead.Open(nil, nonce, sealed, []byte{0x00}); err == nil {
				t.Error("Open succeeded with tampered additional data")
			}
		})
	}
}

func TestDefaultProviderCCMUnsupported(t *testing.T) {
	p := DefaultProvider{}
	key := bytes.Repeat([]byte{0x04}, 16)

	for _, suite := range []CipherSuite{CipherTLSAes128CcmSha256, CipherTLSAes128Ccm8Sha256} {
		if _, err := p.AEAD(suite, key); !errors.Is(err, ErrUnsupportedCipherSuite) {
			t.Errorf("suite %v: err=%v, want ErrUnsupportedCipherSuite", suite, err)
		}
	}
}
