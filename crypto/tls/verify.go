//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
)

// certificateVerifyServerContext is the prefix RFC 8446 §4.4.3 requires
// a server's CertificateVerify signature to cover ahead of the
// transcript hash: 64 space (0x20) bytes, the server context string and
// a 0x00 separator. It distinguishes a TLS 1.3 CertificateVerify
// signature from any other use of the same key. The client context
// string is not defined here; this engine does not do client
// authentication.
var certificateVerifyServerContext = []byte(
	"                                                                " +
		"TLS 1.3, server CertificateVerify\x00")

// verifySignature implements SPEC_FULL.md §4.4's internal signature
// fallback: given the leaf certificate (DER), the negotiated scheme,
// the transcript hash CertificateVerify covers, and the signature
// bytes, verify the signature using the stdlib verifier matching the
// scheme. Used when Config.VerifySignature is true; a VerifyCallback
// can instead do this itself (or skip it, e.g. in a test harness).
func verifySignature(certDER []byte, scheme SignatureScheme, transcriptHash, sig []byte) error {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return newErrorf(KindCertificate, AlertBadCertificate, "parse certificate: %v", err)
	}

	content := make([]byte, 0, len(certificateVerifyServerContext)+len(transcriptHash))
	content = append(content, certificateVerifyServerContext...)
	content = append(content, transcriptHash...)

	switch scheme {
	case SigSchemeRsaPssRsaeSha256, SigSchemeRsaPssPssSha256:
		return verifyRSAPSS(cert, sha256.New(), content, sig)
	case SigSchemeRsaPssRsaeSha384, SigSchemeRsaPssPssSha384:
		return verifyRSAPSS(cert, sha512.New384(), content, sig)
	case SigSchemeRsaPssRsaeSha512, SigSchemeRsaPssPssSha512:
		return verifyRSAPSS(cert, sha512.New(), content, sig)
	case SigSchemeEcdsaSecp256r1Sha256:
		return verifyECDSA(cert, sha256.New(), content, sig)
	case SigSchemeEcdsaSecp384r1Sha384:
		return verifyECDSA(cert, sha512.New384(), content, sig)
	case SigSchemeEcdsaSecp521r1Sha512:
		return verifyECDSA(cert, sha512.New(), content, sig)
	case SigSchemeEd25519:
		return verifyEd25519(cert, content, sig)
	default:
		return newErrorf(KindCertificate, AlertHandshakeFailure,
			"unsupported signature scheme for verification: %v", scheme)
	}
}

func verifyRSAPSS(cert *x509.Certificate, h interface {
	Write([]byte) (int, error)
	Sum([]byte) []byte
	Size() int
	Reset()
}, content, sig []byte) error {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return newErrorf(KindCertificate, AlertBadCertificate, "certificate key is not RSA")
	}
	h.Write(content)
	digest := h.Sum(nil)

	var cryptoHash crypto.Hash
	switch h.Size() {
	case sha256.Size:
		cryptoHash = crypto.SHA256
	case sha512.Size384:
		cryptoHash = crypto.SHA384
	case sha512.Size:
		cryptoHash = crypto.SHA512
	default:
		return newErrorf(KindCertificate, AlertInternalError, "unsupported hash size %d", h.Size())
	}

	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: cryptoHash}
	if err := rsa.VerifyPSS(pub, cryptoHash, digest, sig, opts); err != nil {
		return newErrorf(KindCertificate, AlertDecryptError, "rsa-pss verify: %v", err)
	}
	return nil
}

func verifyECDSA(cert *x509.Certificate, h interface {
	Write([]byte) (int, error)
	Sum([]byte) []byte
	Size() int
	Reset()
}, content, sig []byte) error {
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return newErrorf(KindCertificate, AlertBadCertificate, "certificate key is not ECDSA")
	}
	h.Write(content)
	digest := h.Sum(nil)
	// RFC 8446 §4.3.2: the signature is a DER-encoded ECDSA-Sig-Value,
	// the same ASN.1 form crypto/ecdsa.VerifyASN1 expects.
	if !ecdsa.VerifyASN1(pub, digest, sig) {
		return newErrorf(KindCertificate, AlertDecryptError, "ecdsa certificate_verify failed")
	}
	return nil
}

func verifyEd25519(cert *x509.Certificate, content, sig []byte) error {
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return newErrorf(KindCertificate, AlertBadCertificate, "certificate key is not Ed25519")
	}
	if !ed25519.Verify(pub, content, sig) {
		return newErrorf(KindCertificate, AlertDecryptError, "ed25519 certificate_verify failed")
	}
	return nil
}

// VerifyChain returns a VerifyCallback built around crypto/x509's
// ordinary chain verification against the host's system root pool: the
// leaf must chain to a trusted root and be valid for serverName. A
// caller with its own trust store or pinning policy writes its own
// VerifyCallback instead; this one covers the common case so a simple
// client isn't forced to.
func VerifyChain(serverName string) VerifyCallback {
	return func(raw [][]byte, transcriptHash []byte) error {
		if len(raw) == 0 {
			return fmt.Errorf("empty certificate chain")
		}
		leaf, err := x509.ParseCertificate(raw[0])
		if err != nil {
			return fmt.Errorf("parse leaf certificate: %w", err)
		}
		intermediates := x509.NewCertPool()
		for _, der := range raw[1:] {
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return fmt.Errorf("parse intermediate certificate: %w", err)
			}
			intermediates.AddCert(cert)
		}
		_, err = leaf.Verify(x509.VerifyOptions{
			DNSName:       serverName,
			Intermediates: intermediates,
		})
		return err
	}
}
