// Package framegraph implements a frame graph builder and compiler.
//
// A Builder describes one rendering frame: the queue families available,
// the logical resources passes read and write, the passes themselves, and
// explicit "must execute before" edges. Compile turns that description into
// an immutable FrameGraph.
//
// ARCHITECTURE:
//
// Construction:
// Resources are logical handles (kind, index, frame offset) with no backing
// memory. Passes carry a setup value that names the resources they touch and
// a body that runs against physical handles later. Setup values live in a
// type-tagged store; the pass keeps only the store index.
//
// Compilation Flow:
// 1. Topological sort of the explicit dependencies (ties by PassID)
// 2. Cycle reporting via strongly connected components
// 3. Reference checks and history resolution for negative frame offsets
// 4. Access validation: a writer and any other user must be ordered
// 5. Live range per resource over the execution order
// 6. Greedy interval allocation onto physical slots
//
// Ordering comes only from AddDependency. Resource access never adds edges;
// an unordered write is an error, not an implicit barrier.
//
// Execution:
// FrameGraph.Execute walks the order, hands each pass an encoder from the
// Recorder, and runs its body with resources resolved to slots.
//
// History:
// Ring keeps recent graphs. A resource requested at frame -k resolves to the
// retained frame-0 resource of the same kind and name compiled k frames ago.
package framegraph
