package framegraph

import "fmt"

// Frame is relative to the frame graph being built. 0 is the current frame;
// negative values address resources produced by earlier frames (e.g. TAA history).
type Frame int

// ResourceKind distinguishes the four logical resource tables.
type ResourceKind uint8

const (
	KindBuffer ResourceKind = iota
	KindImage
	KindBufferView
	KindImageView
)

var kindNames = [...]string{"buffer", "image", "buffer_view", "image_view"}

func (k ResourceKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseResourceKind is the inverse of ResourceKind.String.
func ParseResourceKind(s string) (ResourceKind, bool) {
	for i, name := range kindNames {
		if name == s {
			return ResourceKind(i), true
		}
	}
	return 0, false
}

// ResourceID is the logical identity of a resource: table index within its
// kind plus the frame offset it was requested for.
type ResourceID struct {
	Kind  ResourceKind
	Index int
	Frame Frame
}

func (id ResourceID) String() string {
	return fmt.Sprintf("%s#%d@%d", id.Kind, id.Index, id.Frame)
}

// ID lets a bare ResourceID stand in for a typed handle.
func (id ResourceID) ID() ResourceID { return id }

// Ref is implemented by the four logical handle types and ResourceID.
type Ref interface {
	ID() ResourceID
}

// BufferRef is a logical buffer handle. It carries no lifetime guarantee.
type BufferRef struct {
	Index int
	Frame Frame
}

func (r BufferRef) ID() ResourceID { return ResourceID{KindBuffer, r.Index, r.Frame} }

// ImageRef is a logical image handle.
type ImageRef struct {
	Index int
	Frame Frame
}

func (r ImageRef) ID() ResourceID { return ResourceID{KindImage, r.Index, r.Frame} }

// BufferViewRef is a logical buffer view handle.
type BufferViewRef struct {
	Index int
	Frame Frame
}

func (r BufferViewRef) ID() ResourceID { return ResourceID{KindBufferView, r.Index, r.Frame} }

// ImageViewRef is a logical image view handle.
type ImageViewRef struct {
	Index int
	Frame Frame
}

func (r ImageViewRef) ID() ResourceID { return ResourceID{KindImageView, r.Index, r.Frame} }

// ResourceDesc is what the table records per logical resource.
// Size and Format feed slot compatibility; Name is diagnostic only and
// doubles as the cross-frame key for history imports.
type ResourceDesc struct {
	ID       ResourceID
	Name     string
	Size     uint64
	Format   string
	Retained bool
}

// ResourceOption configures a resource at creation.
type ResourceOption func(*ResourceDesc)

// WithSize sets the byte size used when picking a physical slot.
func WithSize(bytes uint64) ResourceOption {
	return func(d *ResourceDesc) { d.Size = bytes }
}

// WithFormat sets the format class. Only resources of the same kind and
// format may share a slot.
func WithFormat(format string) ResourceOption {
	return func(d *ResourceDesc) { d.Format = format }
}

// ResourceTable assigns sequential logical indices per resource kind.
type ResourceTable struct {
	tables [4][]ResourceDesc
}

// NewResourceTable returns an empty table.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{}
}

func (t *ResourceTable) add(kind ResourceKind, name string, frame Frame, opts []ResourceOption) ResourceID {
	id := ResourceID{Kind: kind, Index: len(t.tables[kind]), Frame: frame}
	desc := ResourceDesc{ID: id, Name: name}
	for _, opt := range opts {
		opt(&desc)
	}
	t.tables[kind] = append(t.tables[kind], desc)
	return id
}

func (t *ResourceTable) CreateBuffer(name string, frame Frame, opts ...ResourceOption) BufferRef {
	id := t.add(KindBuffer, name, frame, opts)
	return BufferRef{id.Index, id.Frame}
}

func (t *ResourceTable) CreateImage(name string, frame Frame, opts ...ResourceOption) ImageRef {
	id := t.add(KindImage, name, frame, opts)
	return ImageRef{id.Index, id.Frame}
}

func (t *ResourceTable) CreateBufferView(name string, frame Frame, opts ...ResourceOption) BufferViewRef {
	id := t.add(KindBufferView, name, frame, opts)
	return BufferViewRef{id.Index, id.Frame}
}

func (t *ResourceTable) CreateImageView(name string, frame Frame, opts ...ResourceOption) ImageViewRef {
	id := t.add(KindImageView, name, frame, opts)
	return ImageViewRef{id.Index, id.Frame}
}

// Lookup returns the descriptor for id. The frame offset must match the one
// the resource was created with.
func (t *ResourceTable) Lookup(id ResourceID) (ResourceDesc, bool) {
	if int(id.Kind) >= len(t.tables) {
		return ResourceDesc{}, false
	}
	table := t.tables[id.Kind]
	if id.Index < 0 || id.Index >= len(table) {
		return ResourceDesc{}, false
	}
	desc := table[id.Index]
	if desc.ID.Frame != id.Frame {
		return ResourceDesc{}, false
	}
	return desc, true
}

// Len returns the number of resources of the given kind.
func (t *ResourceTable) Len(kind ResourceKind) int {
	return len(t.tables[kind])
}

// All returns every descriptor ordered by kind then index.
func (t *ResourceTable) All() []ResourceDesc {
	var out []ResourceDesc
	for _, table := range t.tables {
		out = append(out, table...)
	}
	return out
}

func (t *ResourceTable) retain(id ResourceID) bool {
	if _, ok := t.Lookup(id); !ok {
		return false
	}
	t.tables[id.Kind][id.Index].Retained = true
	return true
}
