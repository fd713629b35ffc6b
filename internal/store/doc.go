// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package store defines the partition storage capability used by the cache
// manager. Implementations live in the memory, disk and s3 subpackages.
package store
