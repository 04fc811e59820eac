// Package storage provides the GORM implementation of the publisher's
// persistence contracts.
//
// GormStorage implements:
//   - core.Store for scheduled jobs, including the atomic status guard
//   - core.StaleFinder for stuck PROCESSING jobs
//   - core.CredentialResolver backed by the social_accounts table
//   - core.PublicationLog backed by the publications table
//
// Any GORM dialect works; the tests run against SQLite and, when
// TEST_DATABASE_URL is set, PostgreSQL.
package storage
