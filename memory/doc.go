// Package memory maintains per-user conversational memory for a
// long-running companion agent: a bounded short-term buffer of raw
// turns plus a vector-indexed long-term store of distilled facts,
// preferences, events and emotions.
//
// Architecture:
//   - ShortTermBuffer: rolling window of recent exchanges, per user
//   - LongTermStore: durable memories over a VectorIndex backend
//   - System: consolidation pipeline, context composition, profiles
//   - Embedder: text-to-vector conversion (ONNX local, mock for tests)
//   - Extractor: turns-to-candidate-memories (Claude, keyword fallback)
//
// Flow:
//   - Every exchange enters the short-term buffer via ProcessTurn
//   - Consolidation extracts candidates, dedups against the store
//     (merge, never duplicate) and inserts the rest
//   - ContextForResponse merges recent turns with the top-ranked
//     relevant memories into one bounded bundle for response generation
//
// Local implementation:
//   - chromem-go index (embedded vector database)
//   - ONNX embedder with all-MiniLM-L6-v2 (real semantic search, offline)
//   - Claude extraction with a dependency-free keyword fallback
package memory
