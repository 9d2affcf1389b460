// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/federation/lib/canonical"
	"github.com/bureau-foundation/federation/lib/ref"
)

// RenderOwnServerKeys produces the node's signed server keys document:
// the canonical JSON bytes a key-query response hands to peers. The
// document declares the public half of every signing key and a
// validity deadline after which peers should re-fetch.
func RenderOwnServerKeys(identity *Identity, validUntil time.Time) ([]byte, error) {
	verifyKeys := canonical.Object()
	for keyID, privateKey := range identity.Keys {
		entry := canonical.Object()
		publicKey := privateKey.Public().(ed25519.PublicKey)
		entry.Set("key", canonical.String(base64.RawStdEncoding.EncodeToString(publicKey)))
		verifyKeys.Set(keyID.String(), entry)
	}

	document := canonical.Object()
	document.Set("server_name", canonical.String(identity.Server.String()))
	document.Set("valid_until_ts", canonical.Int(validUntil.UnixMilli()))
	document.Set("verify_keys", verifyKeys)

	if err := identity.Sign(&document); err != nil {
		return nil, fmt.Errorf("signing server keys document: %w", err)
	}
	return canonical.Encode(document), nil
}

// KeyCache holds the public verify keys of other servers, populated
// from their signed server keys documents. Lookups are read-locked and
// cheap; the ingestion hot path consults the cache for every event
// signature check.
type KeyCache struct {
	mu      sync.RWMutex
	servers map[ref.ServerName]*serverKeys
}

type serverKeys struct {
	keys       map[ref.KeyID]ed25519.PublicKey
	validUntil time.Time
}

// NewKeyCache returns an empty cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{servers: make(map[ref.ServerName]*serverKeys)}
}

// AddKey inserts or replaces a single verify key for a server,
// extending the server's validity deadline if validUntil is later.
// Used for keys obtained out of band (configuration, tests).
func (c *KeyCache) AddKey(server ref.ServerName, keyID ref.KeyID, key ed25519.PublicKey, validUntil time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.servers[server]
	if entry == nil {
		entry = &serverKeys{keys: make(map[ref.KeyID]ed25519.PublicKey)}
		c.servers[server] = entry
	}
	entry.keys[keyID] = key
	if validUntil.After(entry.validUntil) {
		entry.validUntil = validUntil
	}
}

// AddDocument parses a server keys document, checks its
// self-signature, and caches the declared verify keys. The document
// must verify against a key it itself declares; a document that fails
// its own signature check is rejected wholesale.
func (c *KeyCache) AddDocument(raw []byte) error {
	document, err := canonical.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing server keys document: %w", err)
	}

	serverValue, ok := document.Get("server_name")
	if !ok {
		return fmt.Errorf("server keys document has no server_name")
	}
	serverString, ok := serverValue.StringValue()
	if !ok {
		return fmt.Errorf("server keys server_name is not a string")
	}
	server, err := ref.ParseServerName(serverString)
	if err != nil {
		return fmt.Errorf("server keys document: %w", err)
	}

	var validUntil time.Time
	if tsValue, ok := document.Get("valid_until_ts"); ok {
		if ts, ok := tsValue.IntValue(); ok {
			validUntil = time.UnixMilli(ts)
		}
	}

	declared, err := parseVerifyKeys(document)
	if err != nil {
		return fmt.Errorf("server keys document for %s: %w", server, err)
	}
	if len(declared) == 0 {
		return fmt.Errorf("server keys document for %s declares no keys", server)
	}

	// Self-signature check: the document must be signed by one of the
	// keys it declares.
	if err := Verify(document, server, declaredKeys{server: server, keys: declared}); err != nil {
		return fmt.Errorf("server keys document for %s: %w", server, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.servers[server]
	if entry == nil {
		entry = &serverKeys{keys: make(map[ref.KeyID]ed25519.PublicKey)}
		c.servers[server] = entry
	}
	for keyID, key := range declared {
		entry.keys[keyID] = key
	}
	if validUntil.After(entry.validUntil) {
		entry.validUntil = validUntil
	}
	return nil
}

// VerifyKey implements KeyLookup against the cached keys.
func (c *KeyCache) VerifyKey(server ref.ServerName, keyID ref.KeyID) (ed25519.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry := c.servers[server]
	if entry == nil {
		return nil, false
	}
	key, ok := entry.keys[keyID]
	return key, ok
}

// Stale reports whether a server's keys need re-fetching: either the
// server is unknown or its validity deadline has passed.
func (c *KeyCache) Stale(server ref.ServerName, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry := c.servers[server]
	return entry == nil || now.After(entry.validUntil)
}

// parseVerifyKeys extracts and decodes the verify_keys map of a parsed
// server keys document.
func parseVerifyKeys(document canonical.Value) (map[ref.KeyID]ed25519.PublicKey, error) {
	verifyKeys, ok := document.Get("verify_keys")
	if !ok {
		return nil, fmt.Errorf("no verify_keys field")
	}
	keys := make(map[ref.KeyID]ed25519.PublicKey)
	for _, member := range verifyKeys.Members() {
		keyID, err := ref.ParseKeyID(member.Key)
		if err != nil {
			return nil, fmt.Errorf("verify key ID: %w", err)
		}
		keyValue, ok := member.Value.Get("key")
		if !ok {
			return nil, fmt.Errorf("verify key %s has no key field", keyID)
		}
		encoded, ok := keyValue.StringValue()
		if !ok {
			return nil, fmt.Errorf("verify key %s is not a string", keyID)
		}
		keyBytes, err := base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding verify key %s: %w", keyID, err)
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("verify key %s has %d bytes, want %d", keyID, len(keyBytes), ed25519.PublicKeySize)
		}
		keys[keyID] = ed25519.PublicKey(keyBytes)
	}
	return keys, nil
}

// declaredKeys is a KeyLookup over the keys a document declares for
// itself, used only for the self-signature check in AddDocument.
type declaredKeys struct {
	server ref.ServerName
	keys   map[ref.KeyID]ed25519.PublicKey
}

func (d declaredKeys) VerifyKey(server ref.ServerName, keyID ref.KeyID) (ed25519.PublicKey, bool) {
	if server != d.server {
		return nil, false
	}
	key, ok := d.keys[keyID]
	return key, ok
}
