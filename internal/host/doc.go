// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package host runs cache managers the way a browser runs service workers.
// The Registry decides which version is active, and Server puts the active
// version in front of the origin over HTTP.
package host
