// Package memory stores consciousness vectors so they can be compared across
// users and over time.
//
// Every processed batch of user activity yields one consciousness vector.
// The Manager records it as a ConsciousnessMemory, keyed by user, and answers
// nearest-neighbour queries against everything recorded so far.
//
// Architecture:
//   - Embedder: item-to-feature-vector conversion, consumed by the graph builder
//   - Store: vector storage backend (chromem in memory or on disk, sqlite)
//   - Archive: serialized graph documents (sqlite)
//   - Manager: decides what to record and how to rank and format results
//
// Integration:
//   - RECORD phase: the engine records each new consciousness vector
//   - QUERY phase: similar-user lookups go through Manager.Similar
package memory
