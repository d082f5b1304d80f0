// Package research fans one goal out over many topics. Each topic runs as
// its own orchestrated sub-run in an isolated session, bounded by a weighted
// semaphore; the per-topic outcomes are folded into a single report with a
// summary synthesized from the successful sub-runs only.
package research
