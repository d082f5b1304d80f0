// Package workspace implements the external file-backed memory of a session:
// large artifacts are stored durably and referenced in context by short,
// token-minimal manifest lines instead of being inlined.
//
// Entries are content-addressed by SHA-256 hash for integrity verification
// and deduplication. The manifest rendering is deterministic (sorted by entry
// name) so repeated context builds over the same workspace produce identical
// bytes.
//
// Two blob store backends ship with the package: an in-process store for
// tests and prototypes, and a filesystem store that lays content out under a
// per-session directory. Durable remote backends can be plugged in through
// core.BlobStore.
package workspace
