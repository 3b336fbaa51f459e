package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/framegraph/internal/ir"
)

var (
	// ErrNoGraphs is returned when a source holds no graph descriptions.
	ErrNoGraphs = errors.New("no graphs found")

	// ErrUnsupportedFile is returned for extensions other than .cue, .yaml and .yml.
	ErrUnsupportedFile = errors.New("unsupported graph file")
)

// LoadFile reads graph descriptions from a .cue, .yaml or .yml file, or from
// a directory of .cue files loaded as one CUE instance.
//
// CUE sources declare graphs under graph: <name>: {...}. YAML files hold a
// single GraphSpec document, or several separated by "---".
func LoadFile(path string) ([]*ir.GraphSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return loadCUE(path, ".")
	}
	switch filepath.Ext(path) {
	case ".cue":
		return loadCUE(filepath.Dir(path), filepath.Base(path))
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return nil, fmt.Errorf("%s: %w extension %q", path, ErrUnsupportedFile, filepath.Ext(path))
	}
}

// LoadGraph loads path and picks one graph. An empty name is only accepted
// when the source holds exactly one graph.
func LoadGraph(path, name string) (*ir.GraphSpec, error) {
	specs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(specs) != 1 {
			return nil, fmt.Errorf("%s holds %d graphs; name one", path, len(specs))
		}
		return specs[0], nil
	}
	for _, s := range specs {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%s: graph %q not found", path, name)
}

func loadCUE(dir, arg string) ([]*ir.GraphSpec, error) {
	instances := load.Instances([]string{arg}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("%s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	graphsVal := value.LookupPath(cue.ParsePath("graph"))
	if !graphsVal.Exists() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoGraphs)
	}
	iter, err := graphsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []*ir.GraphSpec
	for iter.Next() {
		spec, err := CompileGraph(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("graph.%s: %w", iter.Selector().Unquoted(), err)
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoGraphs)
	}
	return specs, nil
}

func loadYAML(path string) ([]*ir.GraphSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Strict decoding catches typos like "pases:"
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var specs []*ir.GraphSpec
	for {
		var spec ir.GraphSpec
		err := dec.Decode(&spec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		specs = append(specs, &spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoGraphs)
	}
	return specs, nil
}
