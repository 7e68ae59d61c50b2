//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

// findExtension returns the first extension of type et, if present.
func findExtension(exts []Extension, et ExtensionType) (Extension, bool) {
	for _, e := range exts {
		if e.Type == et {
			return e, true
		}
	}
	return Extension{}, false
}

// buildServerNameExtension encodes the server_name extension
// (RFC 6066 §3) for a single host_name entry.
func buildServerNameExtension(hostName string) Extension {
	name := []byte(hostName)
	body := make([]byte, 0, 2+1+2+len(name))
	listLen := 1 + 2 + len(name)
	body = append(body, byte(listLen>>8), byte(listLen))
	body = append(body, byte(NameTypeHostName))
	body = append(body, byte(len(name)>>8), byte(len(name)))
	body = append(body, name...)
	return Extension{Type: ETServerName, Data: body}
}

// buildSupportedVersionsExtension encodes the supported_versions
// extension for a ClientHello: a u8-length vector of ProtocolVersion.
func buildSupportedVersionsExtension(versions []ProtocolVersion) Extension {
	body := make([]byte, 0, 1+2*len(versions))
	body = append(body, byte(2*len(versions)))
	for _, v := range versions {
		body = append(body, v.Bytes()...)
	}
	return Extension{Type: ETSupportedVersions, Data: body}
}

// buildSupportedGroupsExtension encodes the supported_groups
// extension.
func buildSupportedGroupsExtension(groups []NamedGroup) Extension {
	body := make([]byte, 0, 2+2*len(groups))
	listLen := 2 * len(groups)
	body = append(body, byte(listLen>>8), byte(listLen))
	for _, g := range groups {
		body = append(body, g.Bytes()...)
	}
	return Extension{Type: ETSupportedGroups, Data: body}
}

// buildSignatureAlgorithmsExtension encodes the signature_algorithms
// extension.
func buildSignatureAlgorithmsExtension(schemes []SignatureScheme) Extension {
	body := make([]byte, 0, 2+2*len(schemes))
	listLen := 2 * len(schemes)
	body = append(body, byte(listLen>>8), byte(listLen))
	for _, s := range schemes {
		body = append(body, byte(s>>8), byte(s))
	}
	return Extension{Type: ETSignatureAlgorithms, Data: body}
}

// buildKeyShareExtension encodes the key_share extension for a
// ClientHello carrying one or more offered shares.
func buildKeyShareExtension(shares []KeyShareEntry) Extension {
	var list []byte
	for i := range shares {
		list = append(list, shares[i].Bytes()...)
	}
	body := make([]byte, 0, 2+len(list))
	body = append(body, byte(len(list)>>8), byte(len(list)))
	body = append(body, list...)
	return Extension{Type: ETKeyShare, Data: body}
}

// buildALPNExtension encodes the application_layer_protocol_negotiation
// extension (RFC 7301 §3.1). Added per SPEC_FULL.md §4.5: Config.alpn
// is part of the configuration surface but spec.md named no component
// that encodes it.
func buildALPNExtension(protocols []string) Extension {
	var list []byte
	for _, p := range protocols {
		list = append(list, byte(len(p)))
		list = append(list, p...)
	}
	body := make([]byte, 0, 2+len(list))
	body = append(body, byte(len(list)>>8), byte(len(list)))
	body = append(body, list...)
	return Extension{Type: ETApplicationLayerProtocolNegotiation, Data: body}
}

// buildCookieExtension encodes the cookie extension (RFC 8446 §4.2.2)
// for the second ClientHello, echoing the opaque value a
// HelloRetryRequest asked for verbatim.
func buildCookieExtension(cookie []byte) Extension {
	body := make([]byte, 0, 2+len(cookie))
	body = append(body, byte(len(cookie)>>8), byte(len(cookie)))
	body = append(body, cookie...)
	return Extension{Type: ETCookie, Data: body}
}

// parseCookieHelloRetryRequest decodes the opaque cookie carried in a
// HelloRetryRequest's cookie extension, to be echoed back unmodified in
// ClientHello2.
func parseCookieHelloRetryRequest(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, decodeErrorf("cookie: truncated length")
	}
	n := int(data[0])<<8 | int(data[1])
	if 2+n != len(data) {
		return nil, decodeErrorf("cookie: length mismatch")
	}
	return append([]byte(nil), data[2:2+n]...), nil
}

// parseKeyShareServerHello decodes the single KeyShareEntry carried in
// a ServerHello's key_share extension (RFC 8446 §4.2.8: the server
// sends exactly one).
func parseKeyShareServerHello(data []byte) (KeyShareEntry, error) {
	var entry KeyShareEntry
	n, err := UnmarshalFrom(data, &entry)
	if err != nil {
		return KeyShareEntry{}, err
	}
	if n != len(data) {
		return KeyShareEntry{}, decodeErrorf("key_share: %d trailing bytes", len(data)-n)
	}
	return entry, nil
}

// parseKeyShareHelloRetryRequest decodes the single NamedGroup carried
// in a HelloRetryRequest's key_share extension (RFC 8446 §4.2.8: the
// server only names the group it wants, not a full entry).
func parseKeyShareHelloRetryRequest(data []byte) (NamedGroup, error) {
	if len(data) != 2 {
		return 0, decodeErrorf("hello_retry_request key_share: want 2 bytes, got %d", len(data))
	}
	return NamedGroup(uint16(data[0])<<8 | uint16(data[1])), nil
}

// parseSupportedVersionsServerHello decodes the single selected version
// in a ServerHello/HelloRetryRequest's supported_versions extension.
func parseSupportedVersionsServerHello(data []byte) (ProtocolVersion, error) {
	if len(data) != 2 {
		return 0, decodeErrorf("supported_versions: want 2 bytes, got %d", len(data))
	}
	return ProtocolVersion(uint16(data[0])<<8 | uint16(data[1])), nil
}

// parseALPNEncryptedExtensions decodes the single negotiated protocol
// from an EncryptedExtensions ALPN extension.
func parseALPNEncryptedExtensions(data []byte) (string, error) {
	if len(data) < 2 {
		return "", decodeErrorf("alpn: truncated list length")
	}
	listLen := int(data[0])<<8 | int(data[1])
	if 2+listLen > len(data) {
		return "", decodeErrorf("alpn: truncated list")
	}
	list := data[2 : 2+listLen]
	if len(list) == 0 {
		return "", decodeErrorf("alpn: empty protocol list")
	}
	n := int(list[0])
	if 1+n > len(list) {
		return "", decodeErrorf("alpn: truncated protocol name")
	}
	return string(list[1 : 1+n]), nil
}

// requireExtension is a small helper used by the state machine to turn
// a missing mandatory extension into a protocol-kind error.
func requireExtension(exts []Extension, et ExtensionType) (Extension, error) {
	ext, ok := findExtension(exts, et)
	if !ok {
		return Extension{}, newErrorf(KindProtocol, AlertMissingExtension,
			"missing required extension %v", et)
	}
	return ext, nil
}
