// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// federation node.
//
// Configuration is loaded from a single file passed via --config.
// There are no fallbacks, no ~/.config discovery, and no environment
// variable overrides beyond ${HOME}-style path expansion. This
// ensures deterministic, auditable configuration.
//
// The node additionally reads a JSONC room list (comments and
// trailing commas allowed, since the file is authored by hand): the
// bootstrap set of rooms this node is responsible for. Events for
// rooms outside the set are dropped as not this node's concern.
package config
