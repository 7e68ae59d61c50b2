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

// readOneRecord drives r with data fed a byte at a time, the way bytes
// might trickle in off a non-blocking transport, and returns the first
// complete record decoded.
func readOneRecord(t *testing.T, r *RecordLayer, wire []byte) (ContentType, []byte) {
	t.Helper()
	for i := 0; i < len(wire); i++ {
		r.Feed(wire[i : i+1])
		ct, body, ok, err := r.ReadRecord()
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if ok {
			return ct, body
		}
	}
	t.Fatal("ReadRecord never became ready")
	return 0, nil
}

func TestRecordLayerPlaintextRoundTrip(t *testing.T) {
	w := NewRecordLayer()
	r := NewRecordLayer()

	payload := []byte("client_hello body bytes")
	if err := w.WriteRecord(CTHandshake, payload); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	ct, body := readOneRecord(t, r, w.Outbound())
	if ct != CTHandshake {
		t.Errorf("content type=%v, want %v", ct, CTHandshake)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body=%q, want %q", body, payload)
	}
}

func TestRecordLayerReadRecordNeedsInput(t *testing.T) {
	w := NewRecordLayer()
	r := NewRecordLayer()

	if err := w.WriteRecord(CTHandshake, []byte("hello")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	wire := w.Outbound()

	r.Feed(wire[:3])
	_, _, ok, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if ok {
		t.Fatal("ReadRecord reported a complete record from a partial header")
	}

	r.Feed(wire[3:])
	_, _, ok, err = r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !ok {
		t.Fatal("ReadRecord did not report the record complete once fully fed")
	}
}

func TestRecordLayerFragmentation(t *testing.T) {
	w := NewRecordLayer()
	r := NewRecordLayer()

	payload := bytes.Repeat([]byte{0xAB}, MaxPlaintextLength+100)
	if err := w.WriteRecord(CTApplicationData, payload); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	r.Feed(w.Outbound())

	var got []byte
	for len(got) < len(payload) {
		ct, body, ok, err := r.ReadRecord()
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if !ok {
			t.Fatal("ReadRecord ran out of buffered records before reassembly finished")
		}
		if ct != CTApplicationData {
			t.Fatalf("content type=%v, want %v", ct, CTApplicationData)
		}
		if len(body) > MaxPlaintextLength {
			t.Fatalf("fragment of %d bytes exceeds maximum %d", len(body), MaxPlaintextLength)
		}
		got = append(got, body...)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("reassembled payload mismatch, got %d bytes want %d", len(got), len(payload))
	}
}

func TestRecordLayerCiphertextRoundTrip(t *testing.T) {
	w := NewRecordLayer()
	r := NewRecordLayer()

	provider := DefaultProvider{}
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x22}, 12)

	aeadW, err := provider.AEAD(CipherTLSAes128GcmSha256, key)
	if err != nil {
		t.Fatalf("AEAD: %v", err)
	}
	aeadR, err := provider.AEAD(CipherTLSAes128GcmSha256, key)
	if err != nil {
		t.Fatalf("AEAD: %v", err)
	}
	w.SetWriteKeys(aeadW, iv)
	r.SetReadKeys(aeadR, iv)

	payload := []byte("application data")
	if err := w.WriteRecord(CTApplicationData, payload); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	r.Feed(w.Outbound())

	ct, body, ok, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !ok {
		t.Fatal("ReadRecord did not decode the buffered record")
	}
	if ct != CTApplicationData {
		t.Errorf("content type=%v, want %v", ct, CTApplicationData)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body=%q, want %q", body, payload)
	}
}

func TestRecordLayerBadRecordMac(t *testing.T) {
	w := NewRecordLayer()
	r := NewRecordLayer()

	provider := DefaultProvider{}
	keyA := bytes.Repeat([]byte{0x11}, 16)
	keyB := bytes.Repeat([]byte{0x33}, 16)
	iv := bytes.Repeat([]byte{0x22}, 12)

	aeadW, _ := provider.AEAD(CipherTLSAes128GcmSha256, keyA)
	aeadR, _ := provider.AEAD(CipherTLSAes128GcmSha256, keyB)
	w.SetWriteKeys(aeadW, iv)
	r.SetReadKeys(aeadR, iv)

	if err := w.WriteRecord(CTApplicationData, []byte("x")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	r.Feed(w.Outbound())

	_, _, _, err := r.ReadRecord()
	if err == nil {
		t.Fatal("expected bad_record_mac error, got nil")
	}
	var tlsErr *Error
	if !asError(err, &tlsErr) || tlsErr.Alert != AlertBadRecordMac {
		t.Errorf("error=%v, want alert bad_record_mac", err)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
