// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/lestrrat-go/jwx/v3/jwk"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
)

// keyMembers holds the registered JWK members that Key exposes directly.
type keyMembers struct {
	KeyID                 string   `json:"kid"`
	Type                  string   `json:"kty"`
	Algorithm             string   `json:"alg"`
	Usage                 string   `json:"use"`
	Operations            []string `json:"key_ops"`
	CertificateURL        string   `json:"x5u"`
	CertificateChain      []string `json:"x5c"`
	CertificateThumbprint string   `json:"x5t"`
}

var registeredMembers = []string{"kid", "kty", "alg", "use", "key_ops", "x5u", "x5c", "x5t"}

// jwksDocument is the wire format of a JWKS endpoint response.
type jwksDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

// Key is a single JSON Web Key as published by a JWKS endpoint.
// A Key is immutable; accessors return copies of slice and map members.
type Key struct {
	members    keyMembers
	additional map[string]any
	raw        []byte
}

// ParseKey decodes one JWK object. Unknown members are kept and exposed
// through AdditionalAttributes.
func ParseKey(raw []byte) (*Key, error) {
	var members keyMembers
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, jwkerrors.NewParseError("failed to decode JWK", err)
	}
	if members.Type == "" {
		return nil, jwkerrors.NewParseError("JWK is missing the kty member", nil)
	}

	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, jwkerrors.NewParseError("failed to decode JWK", err)
	}
	for _, name := range registeredMembers {
		delete(all, name)
	}

	return &Key{
		members:    members,
		additional: all,
		raw:        slices.Clone(raw),
	}, nil
}

// ParseKeySet decodes a JWKS document into its keys, preserving their order.
func ParseKeySet(body []byte) ([]*Key, error) {
	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, jwkerrors.NewParseError("failed to decode JWKS document", err)
	}
	return parseDocument(doc)
}

func parseDocument(doc jwksDocument) ([]*Key, error) {
	if doc.Keys == nil {
		return nil, jwkerrors.NewParseError("JWKS document has no keys member", nil)
	}

	keys := make([]*Key, 0, len(doc.Keys))
	for i, raw := range doc.Keys {
		key, err := ParseKey(raw)
		if err != nil {
			return nil, fmt.Errorf("key at index %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ID returns the key identifier (kid).
func (k *Key) ID() string { return k.members.KeyID }

// Type returns the key type (kty), e.g. "RSA" or "EC".
func (k *Key) Type() string { return k.members.Type }

// Algorithm returns the intended algorithm (alg), e.g. "RS256".
func (k *Key) Algorithm() string { return k.members.Algorithm }

// Usage returns the public key use (use), e.g. "sig".
func (k *Key) Usage() string { return k.members.Usage }

// Operations returns the key operations (key_ops).
func (k *Key) Operations() []string { return slices.Clone(k.members.Operations) }

// CertificateURL returns the X.509 URL (x5u).
func (k *Key) CertificateURL() string { return k.members.CertificateURL }

// CertificateChain returns the base64 DER X.509 certificate chain (x5c).
func (k *Key) CertificateChain() []string { return slices.Clone(k.members.CertificateChain) }

// CertificateThumbprint returns the X.509 SHA-1 thumbprint (x5t).
func (k *Key) CertificateThumbprint() string { return k.members.CertificateThumbprint }

// AdditionalAttributes returns every member not exposed by a dedicated
// accessor, such as the RSA "n" and "e" or the EC "crv", "x" and "y".
func (k *Key) AdditionalAttributes() map[string]any { return maps.Clone(k.additional) }

// MarshalJSON returns the key exactly as it was received.
func (k *Key) MarshalJSON() ([]byte, error) { return slices.Clone(k.raw), nil }

// PublicKey reconstructs the public key from the JWK material. The result is
// an *rsa.PublicKey, *ecdsa.PublicKey or ed25519.PublicKey depending on kty.
func (k *Key) PublicKey() (crypto.PublicKey, error) {
	if k.Type() == "oct" {
		return nil, jwkerrors.NewParseError(fmt.Sprintf("kid %q is a symmetric key", k.ID()), nil)
	}

	parsed, err := jwk.ParseKey(k.raw)
	if err != nil {
		return nil, jwkerrors.NewParseError(fmt.Sprintf("invalid key material for kid %q", k.ID()), err)
	}

	public, err := jwk.PublicKeyOf(parsed)
	if err != nil {
		return nil, jwkerrors.NewParseError(fmt.Sprintf("failed to derive public key for kid %q", k.ID()), err)
	}

	var rawKey any
	if err := jwk.Export(public, &rawKey); err != nil {
		return nil, jwkerrors.NewParseError(fmt.Sprintf("failed to export public key for kid %q", k.ID()), err)
	}
	return rawKey, nil
}

// Certificates decodes the x5c chain, leaf first.
func (k *Key) Certificates() ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, len(k.members.CertificateChain))
	for i, encoded := range k.members.CertificateChain {
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, jwkerrors.NewParseError(fmt.Sprintf("x5c entry %d is not valid base64", i), err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, jwkerrors.NewParseError(fmt.Sprintf("x5c entry %d is not a valid certificate", i), err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}
