//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"crypto/cipher"
	"encoding/binary"
)

// MaxPlaintextLength is the maximum TLSPlaintext.fragment length
// (RFC 8446 §5.1).
const MaxPlaintextLength = 1 << 14

// MaxCiphertextLength is the maximum TLSCiphertext.fragment length: the
// plaintext limit plus room for the inner content type byte and the
// AEAD's expansion, capped at +256 by RFC 8446 §5.2.
const MaxCiphertextLength = MaxPlaintextLength + 256

// recordHeaderLen is the size of a TLSPlaintext/TLSCiphertext header:
// ContentType(1) + ProtocolVersion(2) + length(2).
const recordHeaderLen = 5

// directionKeys holds one side's AEAD state: the cipher itself, its
// base IV, and the 64-bit record sequence number that is XORed into
// the IV per record (RFC 8446 §5.3). Grounded on the teacher's
// key_exchange.go Cipher/NewCipher/Encrypt, generalized into a
// symmetric read/write pair instead of a single write-only cipher.
type directionKeys struct {
	aead cipher.AEAD
	iv   []byte
	seq  uint64
}

func (d *directionKeys) nonce() []byte {
	nonce := make([]byte, len(d.iv))
	copy(nonce, d.iv)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], d.seq)
	for i := range seqBytes {
		nonce[len(nonce)-8+i] ^= seqBytes[i]
	}
	return nonce
}

// RecordLayer implements the record-protection component of spec.md
// §4.2: plaintext record framing prior to the handshake completing key
// installation, and authenticated encryption/decryption with
// independent read/write keys and sequence numbers afterward.
//
// RecordLayer never performs I/O itself (spec.md §5: "the core consumes
// input byte slices and produces output byte slices via two byte
// buffers... there are no internal threads, no callbacks registered for
// I/O readiness, and no locks"): Feed appends transport-received bytes
// to an input buffer, ReadRecord decodes as many complete records as
// are buffered and reports NeedsInput (ok=false) rather than blocking
// when one isn't fully here yet, and WriteRecord/Outbound push encoded
// bytes through an output buffer a caller drains and hands to the
// transport on its own schedule. Connection (tls.go) supplies the
// blocking facade spec.md §5 says an implementation "may" build around
// this core, by looping conn.Read/Feed/ReadRecord and conn.Write/
// Outbound itself.
type RecordLayer struct {
	readKeys  *directionKeys
	writeKeys *directionKeys

	// inBuf holds transport bytes fed via Feed that ReadRecord has not
	// yet consumed; outBuf holds encoded record bytes WriteRecord has
	// produced that Outbound has not yet drained.
	inBuf  []byte
	outBuf []byte
}

// NewRecordLayer returns an empty RecordLayer. Before key installation,
// records are sent and received in TLSPlaintext form.
func NewRecordLayer() *RecordLayer {
	return &RecordLayer{}
}

// Feed appends bytes received from the transport to the input buffer.
func (r *RecordLayer) Feed(data []byte) {
	r.inBuf = append(r.inBuf, data...)
}

// Outbound drains and returns every byte WriteRecord has queued so far.
func (r *RecordLayer) Outbound() []byte {
	out := r.outBuf
	r.outBuf = nil
	return out
}

// SetWriteKeys installs (or replaces, for a KeyUpdate) the AEAD used to
// protect outgoing records.
func (r *RecordLayer) SetWriteKeys(aead cipher.AEAD, iv []byte) {
	r.writeKeys = &directionKeys{aead: aead, iv: iv}
}

// SetReadKeys installs (or replaces) the AEAD used to open incoming
// records.
func (r *RecordLayer) SetReadKeys(aead cipher.AEAD, iv []byte) {
	r.readKeys = &directionKeys{aead: aead, iv: iv}
}

// WriteRecord fragments and sends content (an inner plaintext of the
// given content type) as one or more TLSCiphertext/TLSPlaintext
// records, per the 2^14 fragmentation limit of RFC 8446 §5.1.
func (r *RecordLayer) WriteRecord(ct ContentType, content []byte) error {
	if len(content) == 0 {
		return r.writeOneRecord(ct, nil)
	}
	for offset := 0; offset < len(content); offset += MaxPlaintextLength {
		end := offset + MaxPlaintextLength
		if end > len(content) {
			end = len(content)
		}
		if err := r.writeOneRecord(ct, content[offset:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *RecordLayer) writeOneRecord(ct ContentType, fragment []byte) error {
	if ct == CTChangeCipherSpec || r.writeKeys == nil {
		// change_cipher_spec is always sent as a plaintext record, even
		// once handshake write keys are installed: it is the
		// middlebox-compatibility sentinel of RFC 8446 Appendix D.4, not
		// a protected message.
		return r.writePlaintext(ct, fragment)
	}
	return r.writeCiphertext(ct, fragment)
}

func (r *RecordLayer) writePlaintext(ct ContentType, fragment []byte) error {
	header := make([]byte, recordHeaderLen)
	header[0] = byte(ct)
	header[1], header[2] = byte(VersionTLS12>>8), byte(VersionTLS12)
	binary.BigEndian.PutUint16(header[3:], uint16(len(fragment)))

	r.outBuf = append(r.outBuf, header...)
	r.outBuf = append(r.outBuf, fragment...)
	return nil
}

// writeCiphertext seals fragment (with the inner content type appended
// per RFC 8446 §5.2's TLSInnerPlaintext) as one TLSCiphertext record,
// with the 5-byte outer header as AEAD additional data -- identical to
// the teacher's key_exchange.go Encrypt.
func (r *RecordLayer) writeCiphertext(ct ContentType, fragment []byte) error {
	inner := make([]byte, 0, len(fragment)+1)
	inner = append(inner, fragment...)
	inner = append(inner, byte(ct))

	nonce := r.writeKeys.nonce()
	header := make([]byte, recordHeaderLen)
	header[0] = byte(CTApplicationData)
	header[1], header[2] = byte(VersionTLS12>>8), byte(VersionTLS12)
	sealedLen := len(inner) + r.writeKeys.aead.Overhead()
	binary.BigEndian.PutUint16(header[3:], uint16(sealedLen))

	sealed := r.writeKeys.aead.Seal(nil, nonce, inner, header)
	r.writeKeys.seq++

	r.outBuf = append(r.outBuf, header...)
	r.outBuf = append(r.outBuf, sealed...)
	return nil
}

// ReadRecord decodes one full record from the input buffer and returns
// its content type and plaintext fragment. When read keys are
// installed, the returned content type is the inner (unwrapped) type,
// and trailing zero-padding inside TLSInnerPlaintext is stripped.
//
// ok is false when the input buffer does not yet hold a complete
// record (spec.md §5's NeedsInput status): the caller must Feed more
// transport bytes and call ReadRecord again, never treating a false ok
// as an error.
func (r *RecordLayer) ReadRecord() (ct ContentType, fragment []byte, ok bool, err error) {
	if len(r.inBuf) < recordHeaderLen {
		return 0, nil, false, nil
	}
	header := r.inBuf[:recordHeaderLen]
	length := binary.BigEndian.Uint16(header[3:])
	if int(length) > MaxCiphertextLength {
		return 0, nil, false, newErrorf(KindDecode, AlertRecordOverflow,
			"record length %d exceeds maximum %d", length, MaxCiphertextLength)
	}
	total := recordHeaderLen + int(length)
	if len(r.inBuf) < total {
		return 0, nil, false, nil
	}

	ct = ContentType(header[0])
	body := r.inBuf[recordHeaderLen:total]
	r.inBuf = r.inBuf[total:]

	if r.readKeys == nil {
		return ct, append([]byte(nil), body...), true, nil
	}
	if ct != CTApplicationData {
		// change_cipher_spec is the one record type still sent in the
		// clear after keys are installed, for middlebox compatibility
		// (RFC 8446 §5 / appendix D.4); everything else must be
		// protected once read keys are up.
		if ct == CTChangeCipherSpec {
			return ct, append([]byte(nil), body...), true, nil
		}
		return 0, nil, false, newErrorf(KindDecode, AlertUnexpectedMessage,
			"unprotected record of type %v after read keys installed", ct)
	}

	nonce := r.readKeys.nonce()
	plain, err := r.readKeys.aead.Open(nil, nonce, body, header)
	if err != nil {
		return 0, nil, false, newErrorf(KindCrypto, AlertBadRecordMac,
			"record decryption failed: %v", err)
	}
	r.readKeys.seq++

	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return 0, nil, false, newErrorf(KindDecode, AlertUnexpectedMessage,
			"empty inner plaintext")
	}
	innerType := ContentType(plain[i])
	return innerType, plain[:i], true, nil
}

// ResetWriteSequence zeroes the write sequence number, used when
// switching from handshake to application write keys (each key
// installation starts its sequence number back at zero, RFC 8446 §5.3).
func (r *RecordLayer) ResetWriteSequence() {
	if r.writeKeys != nil {
		r.writeKeys.seq = 0
	}
}

// ResetReadSequence zeroes the read sequence number.
func (r *RecordLayer) ResetReadSequence() {
	if r.readKeys != nil {
		r.readKeys.seq = 0
	}
}
