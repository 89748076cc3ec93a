// Package model defines the news types shared across the stream client.
//
// Conventions:
//   - Timestamps: int64 microseconds since Unix epoch
//   - Symbols: upper-case tickers as published by the feed
//   - IDs: numeric Benzinga story IDs
package model
