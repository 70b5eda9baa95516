// Package crawl implements the keyword crawl engine: the rate-limited
// search client, result normalization, and live stream sessions.
package crawl
