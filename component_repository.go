package quartz

import (
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/phanxgames/quartz/memory"
)

// componentType is the registered runtime state of one component type.
type componentType struct {
	tid        ComponentTID
	desc       ComponentType
	maxCount   int
	members    map[string]*memory.Accessor
	memberList []MemberDesc
	instances  []Component // indexed by SID; nil after detach
	nextSID    ComponentSID
	goType     reflect.Type
}

// ComponentRepository registers component types and creates instances.
// SIDs are handed out in attach order and never reused.
type ComponentRepository struct {
	world   *World
	types   map[ComponentTID]*componentType
	byName  map[string]ComponentTID
	byType  map[reflect.Type]ComponentTID
	nextTID ComponentTID
	log     *zap.Logger
}

func newComponentRepository(w *World, log *zap.Logger) *ComponentRepository {
	return &ComponentRepository{
		world:   w,
		types:   make(map[ComponentTID]*componentType),
		byName:  make(map[string]ComponentTID),
		byType:  make(map[reflect.Type]ComponentTID),
		nextTID: FirstUserTID,
		log:     log,
	}
}

// RegisterComponentType registers desc under the next free user TID.
func (r *ComponentRepository) RegisterComponentType(desc ComponentType) (ComponentTID, error) {
	tid := r.nextTID
	if err := r.RegisterComponentTypeWithTID(tid, desc); err != nil {
		return 0, err
	}
	return tid, nil
}

// RegisterComponentTypeWithTID registers desc under an explicit TID and takes
// one accessor per member, sized for desc.MaxCount instances, from the
// memory manager. Registration fails if the TID or name is taken or if the
// member buffers cannot hold the pool.
func (r *ComponentRepository) RegisterComponentTypeWithTID(tid ComponentTID, desc ComponentType) error {
	if tid == 0 {
		return fmt.Errorf("quartz: component TID 0 is reserved")
	}
	if desc.New == nil || desc.Name == "" {
		return fmt.Errorf("quartz: component type needs a name and constructor")
	}
	if _, ok := r.types[tid]; ok {
		return fmt.Errorf("%w: TID %d", ErrComponentTypeExists, tid)
	}
	if _, ok := r.byName[desc.Name]; ok {
		return fmt.Errorf("%w: %q", ErrComponentTypeExists, desc.Name)
	}
	maxCount := desc.MaxCount
	if n, ok := r.world.cfg.ComponentCapacity[desc.Name]; ok {
		maxCount = n
	}
	if maxCount <= 0 {
		maxCount = defaultMaxCount
	}
	ct := &componentType{
		tid:        tid,
		desc:       desc,
		maxCount:   maxCount,
		members:    make(map[string]*memory.Accessor, len(desc.Members)),
		memberList: desc.Members,
	}
	for _, m := range desc.Members {
		acc, err := r.takeMemberAccessor(m, maxCount)
		if err != nil {
			return fmt.Errorf("quartz: register %q member %q: %w", desc.Name, m.Name, err)
		}
		ct.members[m.Name] = acc
	}
	r.types[tid] = ct
	r.byName[desc.Name] = tid
	if tid >= r.nextTID {
		r.nextTID = tid + 1
	}
	r.log.Debug("component type registered",
		zap.String("name", desc.Name),
		zap.Uint32("tid", uint32(tid)),
		zap.Int("max_count", maxCount))
	return nil
}

func (r *ComponentRepository) takeMemberAccessor(m MemberDesc, count int) (*memory.Accessor, error) {
	mm := r.world.memory
	if mm == nil {
		return nil, ErrMemoryNotInitialized
	}
	buf, err := mm.CreateOrGetBuffer(m.Use)
	if err != nil {
		return nil, err
	}
	desc := memory.AccessorDesc{
		CompositionType: m.CompositionType,
		ComponentType:   m.ComponentType,
		Count:           count,
	}
	stride := memory.AlignUp(m.CompositionType.NumComponents()*m.ComponentType.ByteSize(), buf.ByteAlign())
	view, err := buf.TakeBufferView(memory.BufferViewDesc{ByteLengthToNeed: stride * count})
	if err != nil {
		return nil, err
	}
	return view.TakeFlexibleAccessor(memory.FlexibleAccessorDesc{AccessorDesc: desc, Alignment: buf.ByteAlign()})
}

// bindGoType associates a Go component type with tid for the generic helpers.
func (r *ComponentRepository) bindGoType(tid ComponentTID, t reflect.Type) {
	r.byType[t] = tid
	if ct := r.types[tid]; ct != nil {
		ct.goType = t
	}
}

// TIDByName returns the TID registered under name.
func (r *ComponentRepository) TIDByName(name string) (ComponentTID, bool) {
	tid, ok := r.byName[name]
	return tid, ok
}

// Name returns the registered name of tid, or "" if unknown.
func (r *ComponentRepository) Name(tid ComponentTID) string {
	if ct := r.types[tid]; ct != nil {
		return ct.desc.Name
	}
	return ""
}

// MaxCount returns the instance capacity of tid, or 0 if unknown.
func (r *ComponentRepository) MaxCount(tid ComponentTID) int {
	if ct := r.types[tid]; ct != nil {
		return ct.maxCount
	}
	return 0
}

// Count returns how many SIDs of tid have been handed out, detached
// components included.
func (r *ComponentRepository) Count(tid ComponentTID) int {
	if ct := r.types[tid]; ct != nil {
		return int(ct.nextSID)
	}
	return 0
}

// MemberAccessor returns the accessor backing a member of tid.
func (r *ComponentRepository) MemberAccessor(tid ComponentTID, member string) (*memory.Accessor, bool) {
	ct := r.types[tid]
	if ct == nil {
		return nil, false
	}
	acc, ok := ct.members[member]
	return acc, ok
}

// TIDs returns every registered TID in ascending order.
func (r *ComponentRepository) TIDs() []ComponentTID {
	out := make([]ComponentTID, 0, len(r.types))
	for tid := range r.types {
		out = append(out, tid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ComponentsWithTID returns live components of tid in ascending SID order.
func (r *ComponentRepository) ComponentsWithTID(tid ComponentTID) []Component {
	ct := r.types[tid]
	if ct == nil {
		return nil
	}
	out := make([]Component, 0, len(ct.instances))
	for _, c := range ct.instances {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// instancesOf returns the SID-indexed instance slice of tid without copying.
// Detached slots are nil.
func (r *ComponentRepository) instancesOf(tid ComponentTID) []Component {
	if ct := r.types[tid]; ct != nil {
		return ct.instances
	}
	return nil
}

// GetComponent returns the live component of tid with the given SID.
func (r *ComponentRepository) GetComponent(tid ComponentTID, sid ComponentSID) Component {
	ct := r.types[tid]
	if ct == nil || int(sid) >= len(ct.instances) {
		return nil
	}
	return ct.instances[sid]
}

// create allocates the next SID of tid for e and constructs the component.
func (r *ComponentRepository) create(tid ComponentTID, e *Entity) (Component, error) {
	ct := r.types[tid]
	if ct == nil {
		return nil, fmt.Errorf("%w: TID %d", ErrUnknownComponentType, tid)
	}
	if int(ct.nextSID) >= ct.maxCount {
		return nil, fmt.Errorf("%w: %q holds %d instances", ErrComponentCapacity, ct.desc.Name, ct.maxCount)
	}
	sid := ct.nextSID
	ct.nextSID++
	for _, m := range ct.memberList {
		if m.Initial != nil {
			ct.members[m.Name].SetElement(int(sid), m.Initial)
		}
	}
	c := ct.desc.New(&ComponentInit{
		Base:  ComponentBase{tid: tid, sid: sid, entity: e, ctype: ct},
		World: r.world,
	})
	ct.instances = append(ct.instances, c)
	return c, nil
}

// release drops c from its type's instance table. The SID is not reused.
func (r *ComponentRepository) release(c Component) {
	b := c.componentBase()
	b.ctype.instances[b.sid] = nil
	b.detached = true
}

// RegisterComponent registers desc and binds the Go type C to the new TID so
// AddComponentToEntity[C] and GetComponentsWithType[C] can find it.
func RegisterComponent[C Component](w *World, desc ComponentType) (ComponentTID, error) {
	tid, err := w.components.RegisterComponentType(desc)
	if err != nil {
		return 0, err
	}
	w.components.bindGoType(tid, typeOf[C]())
	return tid, nil
}

// TIDOf returns the TID bound to the Go type C.
func TIDOf[C Component](w *World) (ComponentTID, bool) {
	tid, ok := w.components.byType[typeOf[C]()]
	return tid, ok
}

func typeOf[C any]() reflect.Type {
	return reflect.TypeOf((*C)(nil)).Elem()
}
