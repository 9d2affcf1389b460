// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"fmt"

	"github.com/bureau-foundation/federation/lib/canonical"
	"github.com/bureau-foundation/federation/lib/ref"
)

// SignRequest produces the X-Matrix Authorization header values that
// authenticate an outbound federation request. The signature covers a
// canonical JSON document of the request's method, URI (path and
// query, not the host), origin, destination, and body; the receiving
// server reconstructs the same document from the request it sees and
// verifies against the origin's published keys.
//
// content is the raw JSON request body, or nil for bodyless requests.
// One header value is returned per signing key.
func SignRequest(identity *Identity, method, uri string, destination ref.ServerName, content []byte) ([]string, error) {
	document := canonical.Object()
	if content != nil {
		body, err := canonical.Parse(content)
		if err != nil {
			return nil, fmt.Errorf("parsing request body: %w", err)
		}
		document.Set("content", body)
	}
	document.Set("destination", canonical.String(destination.String()))
	document.Set("method", canonical.String(method))
	document.Set("origin", canonical.String(identity.Server.String()))
	document.Set("uri", canonical.String(uri))

	if err := identity.Sign(&document); err != nil {
		return nil, fmt.Errorf("signing request envelope: %w", err)
	}

	signatures, _ := document.Get("signatures")
	ownSignatures, ok := signatures.Get(identity.Server.String())
	if !ok {
		return nil, fmt.Errorf("signed envelope missing own signatures")
	}

	var headers []string
	for _, member := range ownSignatures.Members() {
		signature, _ := member.Value.StringValue()
		headers = append(headers, fmt.Sprintf("X-Matrix origin=%s,key=%q,sig=%q",
			identity.Server, member.Key, signature))
	}
	return headers, nil
}

// VerifyRequest checks an inbound request signature: it rebuilds the
// request envelope exactly as SignRequest constructs it and verifies
// the claimed origin's signature against cached keys. The signature
// string comes from the request's X-Matrix Authorization header.
func VerifyRequest(keys KeyLookup, method, uri string, origin, destination ref.ServerName, keyID ref.KeyID, signature string, content []byte) error {
	document := canonical.Object()
	if content != nil {
		body, err := canonical.Parse(content)
		if err != nil {
			return fmt.Errorf("parsing request body: %w", err)
		}
		document.Set("content", body)
	}
	document.Set("destination", canonical.String(destination.String()))
	document.Set("method", canonical.String(method))
	document.Set("origin", canonical.String(origin.String()))
	document.Set("uri", canonical.String(uri))

	signatures := canonical.Object()
	originSignatures := canonical.Object()
	originSignatures.Set(keyID.String(), canonical.String(signature))
	signatures.Set(origin.String(), originSignatures)
	document.Set("signatures", signatures)

	return Verify(document, origin, keys)
}
