// Package server wires the fieldbook components into one HTTP service.
//
// # Overview
//
// Server owns the SQLite store, the token issuer, the account and plot
// services, the Prometheus metrics and the HTTP listener. New opens the
// database named by the config; NewWithStore accepts an open store.
//
// # Listeners
//
// By default the API listens on server.http_addr. With tailscale.enabled the
// server joins the tailnet as tailscale.hostname instead and listens on :80,
// on :443 with a tailnet certificate (tailscale.https), or on a public Funnel
// (tailscale.funnel).
//
// # HTTP API
//
//   - POST /auth/register - Create an account
//   - POST /auth/login - Exchange credentials for a bearer token
//   - GET /me, DELETE /me - The caller's account; delete cascades to plots and actions
//   - GET /plots, POST /plots - The caller's plots
//   - GET /plots/{id}, DELETE /plots/{id} - One plot with its full action history
//   - PUT /plots/{id} - Change name, size, coordinates, topography or soil type
//   - POST /plots/{id}/actions - Record an action
//   - GET /actions/{id}, DELETE /actions/{id} - One action
//   - GET /health, GET /health/ready - Liveness and database readiness
//   - GET /metrics - Prometheus scrape endpoint (metrics.path)
//
// # Authentication
//
// Every API route runs behind auth.Gate. Routes that need a caller add
// auth.RequireIdentity. Single plot and action reads skip it when
// auth.allow_anonymous is set; what an anonymous or foreign caller can then
// read is decided by plots.enforce_ownership.
//
// # Retries
//
// POST /plots and POST /plots/{id}/actions honor an Idempotency-Key header.
// A repeated key from the same caller on the same route returns the record
// the first request created (201) instead of creating another; a repeat that
// arrives while the first is still running gets 409. Keys live in memory for
// 24 hours.
//
// # Errors
//
// Errors are JSON objects of the form {"error": "..."}. Validation failures
// and duplicate emails are 400, credential and token failures 401, missing or
// foreign records 404. Anything else is logged and returned as a bare 500.
package server
