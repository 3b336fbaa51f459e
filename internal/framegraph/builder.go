package framegraph

// Builder accumulates resources, queue families, passes and dependencies
// for one frame. It is single-threaded and consumed by Compile.
type Builder struct {
	data      *PassDataStorage
	resources *ResourceTable
	queues    *QueueRegistry
	passes    []passRecord
	deps      DependencySet
	history   History
	consumed  bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithHistory sets the source used to resolve resources requested at a
// negative frame offset.
func WithHistory(h History) BuilderOption {
	return func(b *Builder) { b.history = h }
}

// NewBuilder returns an empty builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		data:      &PassDataStorage{},
		resources: NewResourceTable(),
		queues:    &QueueRegistry{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) checkOpen() error {
	if b.consumed {
		return newError(ErrCodeBuilderConsumed, "builder was already compiled")
	}
	return nil
}

// CreateBuffer requests a logical buffer for the given frame offset.
func (b *Builder) CreateBuffer(name string, frame Frame, opts ...ResourceOption) BufferRef {
	return b.resources.CreateBuffer(name, frame, opts...)
}

// CreateImage requests a logical image for the given frame offset.
func (b *Builder) CreateImage(name string, frame Frame, opts ...ResourceOption) ImageRef {
	return b.resources.CreateImage(name, frame, opts...)
}

// CreateBufferView requests a logical buffer view for the given frame offset.
func (b *Builder) CreateBufferView(name string, frame Frame, opts ...ResourceOption) BufferViewRef {
	return b.resources.CreateBufferView(name, frame, opts...)
}

// CreateImageView requests a logical image view for the given frame offset.
func (b *Builder) CreateImageView(name string, frame Frame, opts ...ResourceOption) ImageViewRef {
	return b.resources.CreateImageView(name, frame, opts...)
}

// Resource returns the descriptor recorded for id.
func (b *Builder) Resource(id ResourceID) (ResourceDesc, bool) {
	return b.resources.Lookup(id)
}

// RegisterFamily records a queue family with a runtime capability set.
func (b *Builder) RegisterFamily(handle FamilyHandle, caps Capability, numQueues QueueCount) (FamilyRef, error) {
	if err := b.checkOpen(); err != nil {
		return FamilyRef{}, err
	}
	return b.queues.Register(handle, caps, numQueues)
}

// RegisterQueueFamily records a queue family whose capability set is fixed
// by the marker type C.
func RegisterQueueFamily[C CapabilitySet](b *Builder, handle FamilyHandle, numQueues QueueCount) (FamilyID[C], error) {
	var marker C
	ref, err := b.RegisterFamily(handle, marker.Capability(), numQueues)
	if err != nil {
		return FamilyID[C]{}, err
	}
	return FamilyID[C]{index: ref.index}, nil
}

// AddDependency records that producer must complete before consumer begins.
func (b *Builder) AddDependency(producer, consumer PassID) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if producer == consumer {
		e := newError(ErrCodeInvalidDependency, "pass %s cannot depend on itself", producer)
		e.Passes = []PassID{producer}
		return e
	}
	for _, id := range []PassID{producer, consumer} {
		if id < 0 || int(id) >= len(b.passes) {
			e := newError(ErrCodeInvalidDependency, "pass %s was not issued by this builder", id)
			e.Passes = []PassID{producer, consumer}
			return e
		}
	}
	b.deps.Add(Dependency{Producer: producer, Consumer: consumer})
	return nil
}

// Retain keeps a current-frame resource live until the end of the frame and
// out of slot reuse, so the next frames can import it by name.
func (b *Builder) Retain(r Ref) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	id := r.ID()
	if id.Frame != 0 {
		e := newError(ErrCodeUnknownResource, "only current-frame resources can be retained")
		e.Resource = &id
		return e
	}
	if !b.resources.retain(id) {
		e := newError(ErrCodeUnknownResource, "resource was not created by this builder")
		e.Resource = &id
		return e
	}
	return nil
}

// PassCount returns the number of registered passes.
func (b *Builder) PassCount() int {
	return len(b.passes)
}

// Dependencies returns the recorded edges.
func (b *Builder) Dependencies() []Dependency {
	return b.deps.Edges()
}

// take moves the builder's state out and marks it consumed. Later
// construction calls fail and resource creation lands in a scratch table.
func (b *Builder) take() (data *PassDataStorage, res *ResourceTable, queues *QueueRegistry, passes []passRecord, deps []Dependency) {
	data, res, queues, passes, deps = b.data, b.resources, b.queues, b.passes, b.deps.Edges()
	b.data = &PassDataStorage{}
	b.resources = NewResourceTable()
	b.queues = &QueueRegistry{}
	b.passes = nil
	b.deps = DependencySet{}
	b.consumed = true
	return
}
