// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package output renders partition listings and activation plans as text,
// json or yaml.
package output
