// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package worker implements the offline cache manager: install stages the
// app shell, activate reconciles cached content with the current manifest,
// and Handle serves requests cache-first or online-first.
package worker
