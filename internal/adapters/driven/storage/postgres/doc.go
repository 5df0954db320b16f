// Package postgres provides a PostgreSQL implementation of
// driven.CredentialStore for deployments that share the credential table
// with the web front end.
//
// Connections use the pgx stdlib driver. The schema is managed with goose
// migrations embedded from the migrations/ directory and applied by
// NewStore.
package postgres
