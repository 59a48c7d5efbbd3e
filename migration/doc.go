// Package migration discovers, orders and executes database schema
// migrations.
//
// A Migration is identified by a lexicographically sortable ID, and carries a
// required up Step and an optional down Step. Migrations are discovered on
// every operation by a Registry, which reads .sql files and YAML/JSON
// definition files from a directory tree, and lets program code contribute or
// override migrations through hooks.
//
// The Engine applies pending migrations in dependency order, or rolls back a
// selection of applied ones. Each migration's SQL statements run in a single
// transaction, and the set of applied IDs is updated immediately after each
// migration succeeds, so a failed run leaves the applied set consistent with
// what was actually executed. Every run holds a lock for its whole duration,
// and writes an audit trail to the state store.
package migration
