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

func TestBuildServerNameExtension(t *testing.T) {
	ext := buildServerNameExtension("example.com")
	if ext.Type != ETServerName {
		t.Fatalf("Type=%v, want %v", ext.Type, ETServerName)
	}
	want := []byte{0x00, 0x0E, 0x00, 0x00, 0x0B}
	want = append(want, "example.com"...)
	if !bytes.Equal(ext.Data, want) {
		t.Errorf("Data=%x, want %x", ext.Data, want)
	}
}

func TestBuildKeyShareExtensionAndParseServerHello(t *testing.T) {
	share := KeyShareEntry{Group: GroupX25519, KeyExchange: bytes.Repeat([]byte{0x07}, 32)}
	ext := buildKeyShareExtension([]KeyShareEntry{share})
	if ext.Type != ETKeyShare {
		t.Fatalf("Type=%v, want %v", ext.Type, ETKeyShare)
	}

	// The ClientHello key_share extension wraps the vector in its own
	// 2-byte list length; the ServerHello form (parseKeyShareServerHello)
	// expects a single bare KeyShareEntry, so strip that outer length
	// before round-tripping through the ServerHello parser.
	got, err := parseKeyShareServerHello(ext.Data[2:])
	if err != nil {
		t.Fatalf("parseKeyShareServerHello: %v", err)
	}
	if got.Group != share.Group || !bytes.Equal(got.KeyExchange, share.KeyExchange) {
		t.Errorf("got %+v, want %+v", got, share)
	}
}

func TestParseKeyShareHelloRetryRequest(t *testing.T) {
	data := []byte{0x00, 0x17} // secp256r1
	group, err := parseKeyShareHelloRetryRequest(data)
	if err != nil {
		t.Fatalf("parseKeyShareHelloRetryRequest: %v", err)
	}
	if group != GroupSecp256r1 {
		t.Errorf("group=%v, want %v", group, GroupSecp256r1)
	}

	if _, err := parseKeyShareHelloRetryRequest([]byte{0x01}); err == nil {
		t.Error("expected error for wrong-length hello_retry_request key_share")
	}
}

func TestBuildALPNExtensionAndParse(t *testing.T) {
	ext := buildALPNExtension([]string{"h2", "http/1.1"})
	if ext.Type != ETApplicationLayerProtocolNegotiation {
		t.Fatalf("Type=%v, want %v", ext.Type, ETApplicationLayerProtocolNegotiation)
	}

	// EncryptedExtensions carries only the single negotiated protocol,
	// still shaped as a protocol-name-list, so a server that picked
	// "h2" would send a data payload built the same way restricted to
	// one entry; exercise the parser against that shape directly.
	negotiated := buildALPNExtension([]string{"h2"})
	proto, err := parseALPNEncryptedExtensions(negotiated.Data)
	if err != nil {
		t.Fatalf("parseALPNEncryptedExtensions: %v", err)
	}
	if proto != "h2" {
		t.Errorf("proto=%q, want %q", proto, "h2")
	}
}

func TestBuildCookieExtensionAndParse(t *testing.T) {
	cookie := bytes.Repeat([]byte{0x09}, 24)
	ext := buildCookieExtension(cookie)
	if ext.Type != ETCookie {
		t.Fatalf("Type=%v, want %v", ext.Type, ETCookie)
	}

	got, err := parseCookieHelloRetryRequest(ext.Data)
	if err != nil {
		t.Fatalf("parseCookieHelloRetryRequest: %v", err)
	}
	if !bytes.Equal(got, cookie) {
		t.Errorf("got %x, want %x", got, cookie)
	}

	if _, err := parseCookieHelloRetryRequest([]byte{0x00, 0x05, 0x01}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestFindExtensionAndRequireExtension(t *testing.T) {
	exts := []Extension{
		{Type: ETServerName, Data: []byte{1, 2, 3}},
	}
	if _, ok := findExtension(exts, ETKeyShare); ok {
		t.Error("findExtension found an extension that is not present")
	}
	ext, ok := findExtension(exts, ETServerName)
	if !ok || !bytes.Equal(ext.Data, []byte{1, 2, 3}) {
		t.Errorf("findExtension did not return the expected extension")
	}

	if _, err := requireExtension(exts, ETKeyShare); err == nil {
		t.Error("requireExtension: expected error for missing extension")
	}
	if _, err := requireExtension(exts, ETServerName); err != nil {
		t.Errorf("requireExtension: unexpected error %v", err)
	}
}
