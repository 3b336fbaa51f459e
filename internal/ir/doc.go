// Package ir provides the serializable representation of frame graphs.
//
// GraphSpec is the declarative description a graph file decodes into;
// CompileReport is what compiling one frame of it produced. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - sizes and positions are int64/int
//   - All JSON and YAML tags use snake_case
//   - Hashes are computed over canonical JSON only (see MarshalCanonical)
package ir
