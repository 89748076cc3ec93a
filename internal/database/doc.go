// Package database provides the PostgreSQL connection pool and schema for
// the news sink.
//
// Rows are keyed by (id, symbol, updated_at): one row per symbol an article
// was delivered for, and a new row whenever the article is revised.
package database
