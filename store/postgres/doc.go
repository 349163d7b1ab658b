// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: status upserts keyed on file_id, registry joins for the
// console listing, embedded SQL migrations.
package postgres
