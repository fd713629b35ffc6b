// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package disk provides a file-based store.Storage so cache partitions
// survive between shellcache invocations.
package disk
