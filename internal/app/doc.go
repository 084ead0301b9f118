// Package app wires the To-Docx backend together and manages its lifecycle.
//
// New builds every component from a *config.Config: the fingerprint
// generator, license verifier and store, quota ledger, conversion gate,
// media resolver, transcription client, document generator and the
// websocket event hub. It then mounts the HTTP API:
//
//	/api/license/*   activation, status and quota
//	/api/convert/*   file conversion and downloads
//	/api/system/*    health, liveness and version
//	/ws              conversion and quota events
//	/metrics         Prometheus scrape endpoint, when metrics are enabled
//
// Run starts the server and blocks until SIGINT or SIGTERM, then shuts down
// the server, the hub and the telemetry providers. Initialization errors are
// returned to the caller; the package never calls os.Exit.
package app
