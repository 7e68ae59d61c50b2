//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

// fakeServerCert builds a self-signed ed25519 certificate, playing the
// role of the peer this test drives the real client state machine
// against.
func fakeServerCert(t *testing.T) ([]byte, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "example.com"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		t.Fatalf("x509.CreateCertificate: %v", err)
	}
	return der, priv
}

// serverRL pumps a net.Conn through a buffer-driven RecordLayer, the
// same Feed/Outbound plumbing Connection (tls.go) uses, so this
// hand-built fake server can drive the real client Engine over a real
// net.Pipe despite RecordLayer no longer performing I/O itself.
type serverRL struct {
	rl   *RecordLayer
	conn net.Conn
}

func (s *serverRL) readRecord() (ContentType, []byte, error) {
	for {
		ct, fragment, ok, err := s.rl.ReadRecord()
		if err != nil {
			return 0, nil, err
		}
		if ok {
			return ct, fragment, nil
		}
		buf := make([]byte, 4096)
		n, rerr := s.conn.Read(buf)
		if n > 0 {
			s.rl.Feed(buf[:n])
		}
		if rerr != nil {
			return 0, nil, rerr
		}
	}
}

func (s *serverRL) writeRecord(ct ContentType, data []byte) error {
	if err := s.rl.WriteRecord(ct, data); err != nil {
		return err
	}
	_, err := s.conn.Write(s.rl.Outbound())
	return err
}

// readHandshakeMessage pulls records off srv until parser has a fully
// reassembled handshake message buffered. change_cipher_spec records
// (which the client sends before its Finished in compatibility mode)
// are skipped, not fed to the parser.
func readHandshakeMessage(srv *serverRL, parser *HandshakeParser) (HandshakeMessage, error) {
	for {
		msg, ok, err := parser.Next()
		if err != nil {
			return HandshakeMessage{}, err
		}
		if ok {
			return msg, nil
		}
		ct, fragment, err := srv.readRecord()
		if err != nil {
			return HandshakeMessage{}, err
		}
		if ct == CTChangeCipherSpec {
			continue
		}
		parser.Feed(fragment)
	}
}

// TestFullClientHandshake drives the real Connection state machine
// (client side) over a net.Pipe against a minimal, hand-built TLS 1.3
// server sequence living entirely in this test: server_hello,
// encrypted_extensions, certificate, certificate_verify and finished,
// built with the package's own internals (RecordLayer, KeySchedule,
// TranscriptHash, DefaultProvider, the wire codec) the same way the
// real client builds and parses them. This exercises the complete
// client Appendix A.1 sequence (spec.md's [ClientStateMachine]) against
// real cryptography, not mocks.
func TestFullClientHandshake(t *testing.T) {
	certDER, certKey := fakeServerCert(t)

	clientConn, serverConn := net.Pipe()

	type clientOutcome struct {
		result *HandshakeResult
		echo   []byte
		err    error
	}
	clientDone := make(chan clientOutcome, 1)

	go func() {
		cfg := &Config{
			ServerName:      "example.com",
			VerifySignature: true,
			VerifyCallback: func(raw [][]byte, transcriptHash []byte) error {
				return nil
			},
		}
		conn, err := NewConnection(clientConn, cfg)
		if err != nil {
			clientDone <- clientOutcome{err: err}
			return
		}
		result, err := conn.Handshake()
		if err != nil {
			clientDone <- clientOutcome{err: err}
			return
		}
		if err := conn.Send([]byte("ping")); err != nil {
			clientDone <- clientOutcome{err: err}
			return
		}
		echo, err := conn.Recv()
		if err != nil {
			clientDone <- clientOutcome{err: err}
			return
		}
		if err := conn.Close(); err != nil {
			clientDone <- clientOutcome{err: err}
			return
		}
		clientDone <- clientOutcome{result: result, echo: echo}
	}()

	provider := DefaultProvider{}
	srv := &serverRL{rl: NewRecordLayer(), conn: serverConn}
	parser := &HandshakeParser{}

	chMsg, err := readHandshakeMessage(srv, parser)
	if err != nil {
		t.Fatalf("read client_hello: %v", err)
	}
	if chMsg.Type != HTClientHello {
		t.Fatalf("first message type=%v, want client_hello", chMsg.Type)
	}
	var ch ClientHello
	if _, err := UnmarshalFrom(chMsg.Body, &ch); err != nil {
		t.Fatalf("decode client_hello: %v", err)
	}
	if len(ch.CipherSuites) == 0 {
		t.Fatal("client_hello offered no cipher suites")
	}
	suite := ch.CipherSuites[0]

	ksExt, ok := findExtension(ch.Extensions, ETKeyShare)
	if !ok {
		t.Fatal("client_hello missing key_share extension")
	}
	if len(ksExt.Data) < 2 {
		t.Fatal("key_share extension too short")
	}
	clientShare, err := parseKeyShareServerHello(ksExt.Data[2:])
	if err != nil {
		t.Fatalf("parse client key_share: %v", err)
	}

	serverKP, err := provider.GenerateKeyShare(clientShare.Group)
	if err != nil {
		t.Fatalf("GenerateKeyShare: %v", err)
	}
	sharedSecret, err := provider.SharedSecret(serverKP, clientShare.KeyExchange)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}

	hashFn, err := provider.Hash(suite)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	keyLen, err := provider.KeyLength(suite)
	if err != nil {
		t.Fatalf("KeyLength: %v", err)
	}

	var serverRandom [32]byte
	if _, err := rand.Read(serverRandom[:]); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	serverShareEntry := KeyShareEntry{Group: serverKP.Group, KeyExchange: serverKP.PrivateKey.PublicKey().Bytes()}
	sh := ServerHello{
		LegacyVersion:           VersionTLS12,
		Random:                  serverRandom,
		LegacySessionIDEcho:     ch.LegacySessionID,
		CipherSuite:             suite,
		LegacyCompressionMethod: 0,
		Extensions: []Extension{
			{Type: ETSupportedVersions, Data: VersionTLS13.Bytes()},
			{Type: ETKeyShare, Data: serverShareEntry.Bytes()},
		},
	}
	shBody, err := Marshal(&sh)
	if err != nil {
		t.Fatalf("marshal server_hello: %v", err)
	}
	shRaw := encodeHandshake(HTServerHello, shBody)
	if err := srv.writeRecord(CTHandshake, shRaw); err != nil {
		t.Fatalf("write server_hello: %v", err)
	}

	transcript := NewTranscriptHash(hashFn)
	transcript.Write(chMsg.Raw)
	transcript.Write(shRaw)

	ks := NewKeySchedule(hashFn)
	ks.DeriveHandshakeSecrets(sharedSecret, transcript.Sum())

	clientHSKeys := ks.ClientHandshakeKeys(keyLen)
	serverHSKeys := ks.ServerHandshakeKeys(keyLen)

	writeAEAD, err := provider.AEAD(suite, serverHSKeys.Key)
	if err != nil {
		t.Fatalf("server handshake write aead: %v", err)
	}
	readAEAD, err := provider.AEAD(suite, clientHSKeys.Key)
	if err != nil {
		t.Fatalf("server handshake read aead: %v", err)
	}
	srv.rl.SetWriteKeys(writeAEAD, serverHSKeys.IV)
	srv.rl.SetReadKeys(readAEAD, clientHSKeys.IV)

	eeBody, err := Marshal(&EncryptedExtensions{})
	if err != nil {
		t.Fatalf("marshal encrypted_extensions: %v", err)
	}
	eeRaw := encodeHandshake(HTEncryptedExtensions, eeBody)
	if err := srv.writeRecord(CTHandshake, eeRaw); err != nil {
		t.Fatalf("write encrypted_extensions: %v", err)
	}
	transcript.Write(eeRaw)

	certMsg := Certificate{
		CertificateRequestContext: []byte{},
		CertificateList: []CertificateEntry{
			{Data: certDER},
		},
	}
	certBody, err := Marshal(&certMsg)
	if err != nil {
		t.Fatalf("marshal certificate: %v", err)
	}
	certRaw := encodeHandshake(HTCertificate, certBody)
	if err := srv.writeRecord(CTHandshake, certRaw); err != nil {
		t.Fatalf("write certificate: %v", err)
	}
	transcript.Write(certRaw)

	cvTranscriptHash := transcript.Sum()
	content := make([]byte, 0, len(certificateVerifyServerContext)+len(cvTranscriptHash))
	content = append(content, certificateVerifyServerContext...)
	content = append(content, cvTranscriptHash...)
	sig := ed25519.Sign(certKey, content)

	cv := CertificateVerify{Algorithm: SigSchemeEd25519, Signature: sig}
	cvBody, err := Marshal(&cv)
	if err != nil {
		t.Fatalf("marshal certificate_verify: %v", err)
	}
	cvRaw := encodeHandshake(HTCertificateVerify, cvBody)
	if err := srv.writeRecord(CTHandshake, cvRaw); err != nil {
		t.Fatalf("write certificate_verify: %v", err)
	}
	transcript.Write(cvRaw)

	serverFinishedVerifyData := ks.VerifyData(ks.ServerHandshakeTrafficSecret(), transcript.Sum())
	finishedRaw := encodeHandshake(HTFinished, serverFinishedVerifyData)
	if err := srv.writeRecord(CTHandshake, finishedRaw); err != nil {
		t.Fatalf("write finished: %v", err)
	}
	transcript.Write(finishedRaw)

	ks.DeriveMasterSecrets(transcript.Sum())

	clientExpectedFinished := ks.VerifyData(ks.ClientHandshakeTrafficSecret(), transcript.Sum())
	clientFinishedMsg, err := readHandshakeMessage(srv, parser)
	if err != nil {
		t.Fatalf("read client finished: %v", err)
	}
	if clientFinishedMsg.Type != HTFinished {
		t.Fatalf("message type=%v, want finished", clientFinishedMsg.Type)
	}
	if !bytes.Equal(clientFinishedMsg.Body, clientExpectedFinished) {
		t.Fatal("client finished verify_data mismatch")
	}
	transcript.Write(clientFinishedMsg.Raw)

	clientAppKeys := ks.ClientApplicationKeys(keyLen)
	serverAppKeys := ks.ServerApplicationKeys(keyLen)

	appWriteAEAD, err := provider.AEAD(suite, serverAppKeys.Key)
	if err != nil {
		t.Fatalf("server application write aead: %v", err)
	}
	appReadAEAD, err := provider.AEAD(suite, clientAppKeys.Key)
	if err != nil {
		t.Fatalf("server application read aead: %v", err)
	}
	srv.rl.SetWriteKeys(appWriteAEAD, serverAppKeys.IV)
	srv.rl.SetReadKeys(appReadAEAD, clientAppKeys.IV)
	srv.rl.ResetWriteSequence()
	srv.rl.ResetReadSequence()

	ct, appData, err := srv.readRecord()
	if err != nil {
		t.Fatalf("read application data: %v", err)
	}
	if ct != CTApplicationData {
		t.Fatalf("content type=%v, want application_data", ct)
	}
	if !bytes.Equal(appData, []byte("ping")) {
		t.Fatalf("application data=%q, want %q", appData, "ping")
	}

	if err := srv.writeRecord(CTApplicationData, []byte("pong")); err != nil {
		t.Fatalf("write application data: %v", err)
	}

	ct, alertBody, err := srv.readRecord()
	if err != nil {
		t.Fatalf("read close_notify: %v", err)
	}
	if ct != CTAlert {
		t.Fatalf("content type=%v, want alert", ct)
	}
	a, err := parseAlert(alertBody)
	if err != nil {
		t.Fatalf("parseAlert: %v", err)
	}
	if a.Description != AlertCloseNotify {
		t.Fatalf("alert=%v, want close_notify", a.Description)
	}

	outcome := <-clientDone
	if outcome.err != nil {
		t.Fatalf("client handshake failed: %v", outcome.err)
	}
	if outcome.result.CipherSuite != suite {
		t.Errorf("negotiated cipher suite=%v, want %v", outcome.result.CipherSuite, suite)
	}
	if len(outcome.result.PeerCertificates) != 1 || !bytes.Equal(outcome.result.PeerCertificates[0], certDER) {
		t.Error("client did not report the server's certificate")
	}
	if !bytes.Equal(outcome.echo, []byte("pong")) {
		t.Errorf("client received %q, want %q", outcome.echo, "pong")
	}
}
