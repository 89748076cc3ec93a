// Package writer implements the batch writer that persists delivered news
// events.
//
// The writer drains the dispatcher's buffer and inserts one row per
// (article, symbol, revision). Inserts are append-only: replays of an
// article that is already stored are counted as conflicts and skipped.
package writer
