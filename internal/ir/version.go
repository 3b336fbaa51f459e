package ir

// Version constants for the description schema and compiler.
const (
	// IRVersion is the GraphSpec/CompileReport schema version.
	IRVersion = "1"

	// CompilerVersion is the framegraph tool version.
	CompilerVersion = "0.1.0"
)
