// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bureau-foundation/federation/lib/ref"
)

// DefaultKeyID is the key ID assigned to a freshly generated signing
// key. Matrix key IDs are "<algorithm>:<version>"; a single-key node
// never needs anything beyond the conventional "auto" version.
var DefaultKeyID = ref.MustParseKeyID("ed25519:auto")

// Identity is the node's own signing identity: its server name and one
// Ed25519 private key per key ID. Multiple keys exist during rotation;
// Sign signs with all of them.
type Identity struct {
	Server ref.ServerName
	Keys   map[ref.KeyID]ed25519.PrivateKey
}

// VerifyKey returns the public half of one of the identity's own keys,
// implementing KeyLookup so locally signed documents can be checked
// without a round trip through a key cache.
func (id *Identity) VerifyKey(server ref.ServerName, keyID ref.KeyID) (ed25519.PublicKey, bool) {
	if server != id.Server {
		return nil, false
	}
	privateKey, ok := id.Keys[keyID]
	if !ok {
		return nil, false
	}
	return privateKey.Public().(ed25519.PublicKey), true
}

// GenerateIdentity creates a fresh identity for server with a single
// new Ed25519 key under DefaultKeyID. The identity is not persisted;
// call Save.
func GenerateIdentity(server ref.ServerName) (*Identity, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return &Identity{
		Server: server,
		Keys:   map[ref.KeyID]ed25519.PrivateKey{DefaultKeyID: privateKey},
	}, nil
}

// Save writes the identity's private keys to path as a JSON mapping
// from key ID to base64-encoded private key, with 0600 permissions.
func (id *Identity) Save(path string) error {
	encoded := make(map[ref.KeyID]string, len(id.Keys))
	for keyID, privateKey := range id.Keys {
		encoded[keyID] = base64.RawStdEncoding.EncodeToString(privateKey)
	}
	data, err := json.MarshalIndent(encoded, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding signing keys: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("writing signing keys: %w", err)
	}
	return nil
}

// LoadIdentity reads an identity from the key file written by Save.
// Returns an error if the file is missing, a key ID fails validation,
// or a decoded key has the wrong length.
func LoadIdentity(path string, server ref.ServerName) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing keys: %w", err)
	}
	var encoded map[ref.KeyID]string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, fmt.Errorf("parsing signing keys %s: %w", path, err)
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("signing key file %s contains no keys", path)
	}

	keys := make(map[ref.KeyID]ed25519.PrivateKey, len(encoded))
	for keyID, value := range encoded {
		keyBytes, err := base64.RawStdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("decoding key %s: %w", keyID, err)
		}
		if len(keyBytes) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("key %s has %d bytes, want %d", keyID, len(keyBytes), ed25519.PrivateKeySize)
		}
		keys[keyID] = ed25519.PrivateKey(keyBytes)
	}
	return &Identity{Server: server, Keys: keys}, nil
}

// LoadOrGenerateIdentity loads an existing identity from path, or
// generates and saves a new one if the file doesn't exist. Returns the
// identity and whether it was newly generated. A file that exists but
// cannot be loaded is an error, not a trigger for regeneration:
// silently replacing a corrupt key would change the server's identity.
func LoadOrGenerateIdentity(path string, server ref.ServerName) (*Identity, bool, error) {
	identity, err := LoadIdentity(path, server)
	if err == nil {
		return identity, false, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, false, err
	}

	identity, err = GenerateIdentity(server)
	if err != nil {
		return nil, false, err
	}
	if err := identity.Save(path); err != nil {
		return nil, false, err
	}
	return identity, true, nil
}
