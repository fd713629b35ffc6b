// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package manifest models a deployment's resource manifest and core resource
// set, derives manifest keys from request URLs, and fingerprints a build
// directory into a bundle.
package manifest
