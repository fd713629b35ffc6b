// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// shellcache is the main package for the shellcache command line tool. It
// wires the CLI, delegates to internal packages, and serves as the entry
// point.
package main
