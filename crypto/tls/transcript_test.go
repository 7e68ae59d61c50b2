//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestTranscriptHashSum(t *testing.T) {
	tr := NewTranscriptHash(sha256.New)
	tr.Write([]byte("hello"))
	tr.Write([]byte("world"))

	want := sha256.Sum256([]byte("helloworld"))
	got := tr.Sum()
	if !bytes.Equal(got, want[:]) {
		t.Errorf("Sum()=%x, want %x", got, want)
	}
}

func TestTranscriptHashSnapshotIndependence(t *testing.T) {
	tr := NewTranscriptHash(sha256.New)
	tr.Write([]byte("first"))

	snap := tr.Snapshot()
	tr.Write([]byte("second"))

	if bytes.Equal(tr.Sum(), snap.Sum()) {
		t.Error("snapshot observed a mutation made to the original transcript")
	}

	want := sha256.Sum256([]byte("first"))
	if !bytes.Equal(snap.Sum(), want[:]) {
		t.Errorf("snapshot Sum()=%x, want %x", snap.Sum(), want)
	}
}

func TestTranscriptHashReplaceWithMessageHash(t *testing.T) {
	tr := NewTranscriptHash(sha256.New)
	ch1 := []byte("client_hello_1_bytes")
	tr.Write(ch1)

	tr.ReplaceWithMessageHash()

	innerHash := sha256.Sum256(ch1)
	wantLog := append([]byte{byte(HTMessageHash), 0, 0, byte(len(innerHash))}, innerHash[:]...)
	wantSum := sha256.Sum256(wantLog)
	if !bytes.Equal(tr.Sum(), wantSum[:]) {
		t.Errorf("Sum() after ReplaceWithMessageHash=%x, want %x", tr.Sum(), wantSum)
	}

	hrr := []byte("hello_retry_request_bytes")
	ch2 := []byte("client_hello_2_bytes")
	tr.Write(hrr)
	tr.Write(ch2)

	want := sha256.Sum256(append(append([]byte{}, wantLog...), append(hrr, ch2...)...))
	got := tr.Sum()
	if !bytes.Equal(got, want[:]) {
		t.Errorf("Sum() after HRR collapse=%x, want %x", got, want)
	}
}
