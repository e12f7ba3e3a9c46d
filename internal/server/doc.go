// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the loopback HTTP API the desktop shell talks to.
//
// # Endpoints
//
//   - GET    /conversations/index      - Filenames, newest first
//   - GET    /conversations/{filename} - {"filename": ..., "content": ...}
//   - POST   /conversations/{filename} - Save {"content": ...}
//   - DELETE /conversations/{filename} - Delete one conversation
//   - DELETE /conversations            - Clear all conversations
//   - /models, /appearance, /prompts  - Settings documents
//   - GET    /health                   - Index health
//
// Errors are returned as {"error": "<message>"}. A missing conversation is a
// 404; a malformed body or filename is a 400; other store failures are 500s.
//
// # Middleware
//
// Requests pass through, outermost first: panic recovery, security headers,
// request ids, request logging, CORS, and a per-IP token bucket rate limit.
//
// # Usage
//
//	srv := server.New(conversations, prefs, server.Config{Port: 3000})
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
