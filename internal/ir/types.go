package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// GraphSpec describes one frame graph: the queue families available, the
// logical resources, the passes and their explicit ordering edges.
// Slice order is significant: passes get PassIDs in declaration order.
type GraphSpec struct {
	Name         string           `json:"name" yaml:"name"`
	Queues       []QueueSpec      `json:"queues,omitempty" yaml:"queues"`
	Resources    []ResourceSpec   `json:"resources,omitempty" yaml:"resources"`
	Passes       []PassSpec       `json:"passes,omitempty" yaml:"passes"`
	Dependencies []DependencySpec `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// QueueSpec declares a queue family.
type QueueSpec struct {
	Name         string   `json:"name" yaml:"name"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities"` // "graphics", "compute", "transfer", "general"
	Count        int      `json:"count" yaml:"count"`
}

// ResourceSpec declares a logical resource. Frame 0 is the current frame;
// negative frames import a resource retained by an earlier frame under the
// same name.
type ResourceSpec struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind" yaml:"kind"` // "buffer", "image", "buffer_view", "image_view"
	Frame  int    `json:"frame,omitempty" yaml:"frame,omitempty"`
	Size   int64  `json:"size,omitempty" yaml:"size,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	Retain bool   `json:"retain,omitempty" yaml:"retain,omitempty"`
}

// Key returns the reference passes use for this resource.
func (r ResourceSpec) Key() string {
	return ResourceKey(r.Name, r.Frame)
}

// PassSpec declares a pass. Reads and Writes hold resource keys; a key in
// both lists is a read-modify-write.
type PassSpec struct {
	Name   string   `json:"name" yaml:"name"`
	Kind   string   `json:"kind" yaml:"kind"` // "graphics", "compute", "transfer"
	Queue  string   `json:"queue" yaml:"queue"`
	Index  int      `json:"index,omitempty" yaml:"index,omitempty"`
	Reads  []string `json:"reads,omitempty" yaml:"reads,omitempty"`
	Writes []string `json:"writes,omitempty" yaml:"writes,omitempty"`
}

// DependencySpec orders pass Before ahead of pass After.
type DependencySpec struct {
	Before string `json:"before" yaml:"before"`
	After  string `json:"after" yaml:"after"`
}

// ResourceKey formats a resource reference: "name" for the current frame,
// "name@-1" for the previous one.
func ResourceKey(name string, frame int) string {
	if frame == 0 {
		return name
	}
	return name + "@" + strconv.Itoa(frame)
}

// ParseResourceKey is the inverse of ResourceKey.
func ParseResourceKey(key string) (name string, frame int, err error) {
	at := strings.LastIndexByte(key, '@')
	if at < 0 {
		return key, 0, nil
	}
	frame, err = strconv.Atoi(key[at+1:])
	if err != nil {
		return "", 0, fmt.Errorf("resource key %q: bad frame offset: %w", key, err)
	}
	return key[:at], frame, nil
}

// CompileReport records the outcome of compiling one frame of a GraphSpec.
type CompileReport struct {
	Graph     string           `json:"graph"`
	SpecHash  string           `json:"spec_hash"`
	IRVersion string           `json:"ir_version"`
	Frame     int64            `json:"frame"`
	Passes    []PassReport     `json:"passes"`
	Slots     []SlotReport     `json:"slots"`
	Resources []ResourceReport `json:"resources"`
}

// PassReport is one pass in execution order.
type PassReport struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Queue    string `json:"queue"`
	Index    int    `json:"index"`
	Position int    `json:"position"`
}

// SlotReport is one physical slot and the resources aliased onto it.
type SlotReport struct {
	Index     int      `json:"index"`
	Kind      string   `json:"kind"`
	Format    string   `json:"format,omitempty"`
	Capacity  int64    `json:"capacity"`
	Residents []string `json:"residents"`
}

// ResourceReport is one logical resource. Resources no pass uses report -1
// for Slot, SourceFrame, Start and End. SourceFrame is the frame whose slot
// table Slot indexes; for history imports that is an earlier frame, which
// have no lifetime of their own.
type ResourceReport struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"`
	Slot        int    `json:"slot"`
	SourceFrame int64  `json:"source_frame"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

// PassOrder returns pass names in execution order.
func (r *CompileReport) PassOrder() []string {
	out := make([]string, len(r.Passes))
	for i, p := range r.Passes {
		out[i] = p.Name
	}
	return out
}

// Resource finds a resource by key.
func (r *CompileReport) Resource(key string) (ResourceReport, bool) {
	for _, res := range r.Resources {
		if res.Key == key {
			return res, true
		}
	}
	return ResourceReport{}, false
}
