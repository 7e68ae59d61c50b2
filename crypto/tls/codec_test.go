//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"bytes"
	"testing"
)

func TestMarshalKeyShareEntry(t *testing.T) {
	e := KeyShareEntry{
		Group:       GroupX25519,
		KeyExchange: []byte{1, 2, 3, 4},
	}
	data := e.Bytes()

	want := []byte{0x00, 0x1D, 0x00, 0x04, 1, 2, 3, 4}
	if !bytes.Equal(data, want) {
		t.Errorf("KeyShareEntry.Bytes()=%x, want %x", data, want)
	}

	var got KeyShareEntry
	n, err := UnmarshalFrom(data, &got)
	if err != nil {
		t.Fatalf("UnmarshalFrom: %v", err)
	}
	if n != len(data) {
		t.Errorf("consumed %d bytes, want %d", n, len(data))
	}
	if got.Group != e.Group || !bytes.Equal(got.KeyExchange, e.KeyExchange) {
		t.Errorf("got %+v, want %+v", got, e)
	}
}

func TestMarshalClientHelloRoundTrip(t *testing.T) {
	ch := ClientHello{
		LegacyVersion:            VersionTLS12,
		LegacySessionID:          []byte{},
		CipherSuites:             []CipherSuite{CipherTLSAes128GcmSha256, CipherTLSChacha20Poly1305Sha256},
		LegacyCompressionMethods: []byte{0},
		Extensions: []Extension{
			{Type: ETServerName, Data: []byte{0, 1, 2}},
		},
	}
	for i := range ch.Random {
		ch.Random[i] = byte(i)
	}

	data, err := Marshal(&ch)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got ClientHello
	n, err := UnmarshalFrom(data, &got)
	if err != nil {
		t.Fatalf("UnmarshalFrom: %v", err)
	}
	if n != len(data) {
		t.Errorf("consumed %d of %d bytes", n, len(data))
	}
	if got.LegacyVersion != ch.LegacyVersion {
		t.Errorf("LegacyVersion=%v, want %v", got.LegacyVersion, ch.LegacyVersion)
	}
	if got.Random != ch.Random {
		t.Errorf("Random=%x, want %x", got.Random, ch.Random)
	}
	if len(got.CipherSuites) != 2 || got.CipherSuites[0] != CipherTLSAes128GcmSha256 ||
		got.CipherSuites[1] != CipherTLSChacha20Poly1305Sha256 {
		t.Errorf("CipherSuites=%v, want %v", got.CipherSuites, ch.CipherSuites)
	}
	if len(got.Extensions) != 1 || got.Extensions[0].Type != ETServerName {
		t.Errorf("Extensions=%v, want %v", got.Extensions, ch.Extensions)
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	// A key_share vector claiming 4 bytes of key material but only 2
	// present must fail, not panic or silently truncate.
	data := []byte{0x00, 0x1D, 0x00, 0x04, 1, 2}
	var e KeyShareEntry
	_, err := UnmarshalFrom(data, &e)
	if err == nil {
		t.Fatal("expected truncation error, got nil")
	}
}

func TestEncodeHandshakeHeader(t *testing.T) {
	body := []byte{1, 2, 3}
	msg := encodeHandshake(HTClientHello, body)
	if len(msg) != 4+len(body) {
		t.Fatalf("len(msg)=%d, want %d", len(msg), 4+len(body))
	}
	if msg[0] != byte(HTClientHello) {
		t.Errorf("type byte=%d, want %d", msg[0], HTClientHello)
	}
	if msg[1] != 0 || msg[2] != 0 || msg[3] != 3 {
		t.Errorf("length bytes=%v, want [0 0 3]", msg[1:4])
	}
}
