// Package notes persists VideoNote records.
//
// Store is implemented by SQLiteStore (default, single file under the data
// directory), PostgresStore (Supabase or any Postgres reachable through
// DATABASE_URL) and FirestoreStore. Every backend is append-only from the
// pipeline's point of view and lists records newest first, breaking
// created_at ties by id so repeated listings are stable.
package notes
