// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// federation-node is the host process for the event integrity and
// ingestion pipeline: it loads the node's configuration and signing
// keys, opens the per-room logs, replays them into in-memory room
// views, and then waits for shutdown.
//
// The HTTP federation transport that would feed IngestTransaction is
// a separate concern and is not part of this binary. Until it exists,
// --print-server-keys renders the signed server keys document other
// servers would fetch to verify this node's signatures.
package main
