// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app assembles pimsync from its configuration and runs the
// commands of the pimsync binary: one-shot sync and dry-run planning, the
// daemon, the last-run status report and DAV collection discovery.
//
// Command output (summaries, plans, collections) is written as JSON to the
// writer given to the app; logs go to the logger.
package app
