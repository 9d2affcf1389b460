// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/bureau-foundation/federation/lib/canonical"
	"github.com/bureau-foundation/federation/lib/ref"
)

var (
	// ErrNotSigned is returned by Verify when the document carries no
	// signatures from the claimed server.
	ErrNotSigned = errors.New("not signed by the expected server")

	// ErrNoKeysSucceeded is returned by Verify when signatures from
	// the claimed server are present but none verifies against a
	// known key.
	ErrNoKeysSucceeded = errors.New("no keys succeeded")
)

// Fields excluded from the signed form of a document. The signature
// covers the content hash, so stripping the mutable fields here still
// transitively protects event content.
var unsignedFields = []string{"signatures", "unsigned"}

// KeyLookup resolves a server's public verify key by key ID. ok is
// false when no key is cached under that (server, key ID) pair.
// Implemented by KeyCache and, for a node's own keys, by Identity.
type KeyLookup interface {
	VerifyKey(server ref.ServerName, keyID ref.KeyID) (key ed25519.PublicKey, ok bool)
}

// Sign signs a document with every one of the identity's keys and
// merges the results into the document's signatures field under the
// identity's server name. The signed bytes are the canonical form with
// signatures and unsigned stripped, so signing is idempotent: signing
// an already-signed document replaces this server's entries and leaves
// other servers' entries intact.
//
// Works on events and standalone documents alike (server key
// documents, outbound request envelopes).
func (id *Identity) Sign(document *canonical.Value) error {
	if document.Kind() != canonical.KindObject {
		return fmt.Errorf("document is not a JSON object")
	}
	if len(id.Keys) == 0 {
		return fmt.Errorf("identity for %s has no signing keys", id.Server)
	}

	signed := canonical.Encode(strippedCopy(*document, unsignedFields))

	ownSignatures := canonical.Object()
	for keyID, privateKey := range id.Keys {
		signature := ed25519.Sign(privateKey, signed)
		ownSignatures.Set(keyID.String(), canonical.String(base64.RawStdEncoding.EncodeToString(signature)))
	}

	signatures := canonical.Object()
	if existing, ok := document.Get("signatures"); ok {
		for _, member := range existing.Members() {
			if member.Key != id.Server.String() {
				signatures.Set(member.Key, member.Value)
			}
		}
	}
	signatures.Set(id.Server.String(), ownSignatures)
	document.Set("signatures", signatures)
	return nil
}

// Verify checks a document's signature against the claimed server's
// known keys. Every (key ID, signature) pair the document carries
// under that server is tried in order; the first signature that
// verifies against a cached key wins. Key IDs with no cached key are
// skipped rather than failed, tolerating rotation. The document is
// never mutated.
//
// Returns ErrNotSigned if the server has no entries in the signature
// map, and ErrNoKeysSucceeded if entries exist but none verifies.
func Verify(document canonical.Value, server ref.ServerName, keys KeyLookup) error {
	if document.Kind() != canonical.KindObject {
		return fmt.Errorf("document is not a JSON object")
	}

	signatures, ok := document.Get("signatures")
	if !ok {
		return ErrNotSigned
	}
	serverSignatures, ok := signatures.Get(server.String())
	if !ok || len(serverSignatures.Members()) == 0 {
		return ErrNotSigned
	}

	signed := canonical.Encode(strippedCopy(document, unsignedFields))

	for _, member := range serverSignatures.Members() {
		keyID, err := ref.ParseKeyID(member.Key)
		if err != nil {
			continue
		}
		publicKey, ok := keys.VerifyKey(server, keyID)
		if !ok {
			continue
		}
		encoded, ok := member.Value.StringValue()
		if !ok {
			continue
		}
		signature, err := base64.RawStdEncoding.DecodeString(encoded)
		if err != nil || len(signature) != ed25519.SignatureSize {
			continue
		}
		if ed25519.Verify(publicKey, signed, signature) {
			return nil
		}
	}
	return fmt.Errorf("%w for %s", ErrNoKeysSucceeded, server)
}
