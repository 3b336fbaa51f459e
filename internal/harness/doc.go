// Package harness runs conformance scenarios against the frame graph
// compiler.
//
// A scenario compiles one or more frames through a shared history ring,
// executes each compiled frame against a recording backend, and checks
// assertions over the compile reports and the execution trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: temporal_reprojection
//	description: "lit@-1 resolves into the previous frame's slot"
//	frames:
//	  - graph: graphs/first.yaml
//	  - graph: graphs/deferred.cue
//	    name: deferred
//	    repeat: 2
//	assertions:
//	  - type: order_before
//	    before: geometry
//	    after: lighting
//	  - type: history_source
//	    frame: 1
//	    resource: lit@-1
//	    source_frame: 0
//
// Graph paths are relative to the scenario file. The first frame that fails
// to validate or compile stops the run; a compile_error assertion can
// expect that.
//
// # Golden Files
//
// RunWithGolden snapshots the reports and trace as canonical JSON under
// testdata/golden. Regenerate with go test ./internal/harness -update.
package harness
