// Package sqlite implements the point-storage collaborator on SQLite.
//
// The store owns raw point data: classified per-group points awaiting
// clustering, per-instance point subsets, materialized unions for merged
// instances, and the final accepted instance table. The decision layer in
// internal/cloud never touches points directly; it holds opaque refs and
// asks this package to read, union, or publish them.
//
// Schema changes ship as embedded golang-migrate migrations and are
// applied on open.
package sqlite
