// Package sqlstore persists revocation state and principals in a relational
// database through gorm.
//
// Open selects the dialector by driver name (postgres, mysql or sqlite).
// Tables are created by AutoMigrate: token_revocations, subject_watermarks
// and principals.
package sqlstore
