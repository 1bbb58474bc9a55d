// Package stores persists run history: one row per run with its outcome and
// timings, plus the workunit rows recorded by the run tracker. Backed by
// SQLite with embedded golang-migrate migrations.
package stores
