// Package main hosts the mdmirror entrypoint.
//
// Architecture overview:
//   - Session: internal/session.Client owns the cookie jar and retries
//     transient failures (network errors, 5xx, 429) with capped
//     exponential backoff and jitter. Every remote call in the pipeline
//     goes through it.
//   - Auth: internal/auth scrapes the CSRF token from the landing page
//     and submits the login form with the token echoed in the
//     X-XSRF-Token header. Credentials come from the terminal prompt or
//     the environment, selected by credentials.provider.
//   - Pipeline: internal/mirror runs login, team listing, and bounded
//     concurrent content download in strict order, then persists the
//     snapshot wholesale. An existing snapshot short-circuits the whole
//     pipeline unless --update is given.
//   - Persistence: the snapshot store is provider-switched between a
//     JSON file and Postgres (snapshot.provider). Saves always replace
//     the previous snapshot in full.
//   - Fanout: pages are optionally indexed into Meilisearch
//     (search.url) and a run summary is optionally published to Pub/Sub
//     (notify.provider).
//   - Serving: the serve subcommand exposes the snapshot read-only over
//     chi with health, readiness, and Prometheus metrics endpoints.
//   - Configuration & plumbing: Viper populates config from file and
//     MDMIRROR_* env vars; zap provides structured logging.
//
// Quick start:
//   - mdmirror sync --team <name> --snapshot hackmd.json
//   - mdmirror serve --port 8080
package main
