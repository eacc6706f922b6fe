package quartz

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/phanxgames/quartz/memory"
)

// maxConcurrentFetches bounds the buffer fetch stage of BuildScene.
const maxConcurrentFetches = 4

// BufferSource supplies the bytes of one binary buffer. Exactly one of Fetch,
// Data or URI is used, in that order of preference. URI is a file path
// (relative paths resolve against SceneDesc.BaseDir) or a base64 data URI.
type BufferSource struct {
	Name  string                                    `yaml:"name"`
	URI   string                                    `yaml:"uri"`
	Data  []byte                                    `yaml:"-"`
	Fetch func(ctx context.Context) ([]byte, error) `yaml:"-"`
}

// AccessorRef locates typed data inside a loaded buffer.
type AccessorRef struct {
	Buffer        string                 `yaml:"buffer"`
	ByteOffset    int                    `yaml:"byte_offset"`
	ByteStride    int                    `yaml:"byte_stride,omitempty"`
	Type          memory.CompositionType `yaml:"type"`
	ComponentType memory.ComponentType   `yaml:"component_type"`
	Count         int                    `yaml:"count"`
	Normalized    bool                   `yaml:"normalized,omitempty"`
}

// PrimitiveRef describes a primitive whose streams live in loaded buffers.
// Attributes are keyed by glTF name ("POSITION", "NORMAL", ...). A nil Mode
// means triangles.
type PrimitiveRef struct {
	Mode       *PrimitiveMode         `yaml:"mode,omitempty"`
	Attributes map[string]AccessorRef `yaml:"attributes"`
	Indices    *AccessorRef           `yaml:"indices,omitempty"`
}

// MeshDesc is a named list of primitives given inline, by reference, or both.
type MeshDesc struct {
	Name       string          `yaml:"name"`
	Primitives []PrimitiveDesc `yaml:"-"`
	Refs       []PrimitiveRef  `yaml:"primitives"`
}

// CameraDesc configures a camera attached to a node.
type CameraDesc struct {
	Orthographic bool    `yaml:"orthographic"`
	YFov         float32 `yaml:"yfov"`
	AspectRatio  float32 `yaml:"aspect_ratio"`
	XMag         float32 `yaml:"xmag"`
	YMag         float32 `yaml:"ymag"`
	ZNear        float32 `yaml:"znear"`
	ZFar         float32 `yaml:"zfar"`
	// Current makes the camera the world's current camera.
	Current bool `yaml:"current"`
}

// SkinDesc binds node indices as joints of the nodes that name it.
type SkinDesc struct {
	Name                string       `yaml:"name"`
	Joints              []int        `yaml:"joints"`
	InverseBindMatrices *AccessorRef `yaml:"inverse_bind_matrices,omitempty"`
}

// NodeDesc is one node of a scene. Matrix, when set, takes precedence over
// Translation, Rotation (xyzw) and Scale. Mesh and Skin name entries of the
// scene's Meshes and Skins; Children are indices into SceneDesc.Nodes.
type NodeDesc struct {
	Name        string      `yaml:"name"`
	Translation *mgl32.Vec3 `yaml:"translation,omitempty"`
	Rotation    *mgl32.Vec4 `yaml:"rotation,omitempty"`
	Scale       *mgl32.Vec3 `yaml:"scale,omitempty"`
	Matrix      *mgl32.Mat4 `yaml:"matrix,omitempty"`
	Mesh        string      `yaml:"mesh,omitempty"`
	Skin        string      `yaml:"skin,omitempty"`
	Camera      *CameraDesc `yaml:"camera,omitempty"`
	Children    []int       `yaml:"children,omitempty"`
}

// SceneDesc is the input of World.BuildScene.
type SceneDesc struct {
	Buffers []BufferSource `yaml:"buffers"`
	Meshes  []MeshDesc     `yaml:"meshes"`
	Skins   []SkinDesc     `yaml:"skins"`
	Nodes   []NodeDesc     `yaml:"nodes"`
	// BaseDir resolves relative buffer URIs.
	BaseDir string `yaml:"-"`
}

// ParseSceneDesc decodes a YAML scene description.
func ParseSceneDesc(data []byte) (SceneDesc, error) {
	var desc SceneDesc
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return SceneDesc{}, fmt.Errorf("quartz: parse scene: %w", err)
	}
	return desc, nil
}

// LoadSceneDesc reads a YAML scene description; buffer URIs resolve relative
// to the file's directory.
func LoadSceneDesc(path string) (SceneDesc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SceneDesc{}, fmt.Errorf("quartz: read scene: %w", err)
	}
	desc, err := ParseSceneDesc(data)
	if err != nil {
		return SceneDesc{}, err
	}
	desc.BaseDir = filepath.Dir(path)
	return desc, nil
}

// LoadFailure is one resource BuildScene skipped.
type LoadFailure struct {
	Kind  string // "buffer", "mesh", "node", "link" or "skin"
	Name  string
	Index int
	Err   error
}

func (f LoadFailure) Error() string {
	return fmt.Sprintf("%s %d (%q): %v", f.Kind, f.Index, f.Name, f.Err)
}

func (f LoadFailure) Unwrap() error { return f.Err }

// LoadReport describes the outcome of BuildScene.
type LoadReport struct {
	ID uuid.UUID
	// Entities holds the entity created for each node, by node index.
	Entities []*Entity
	// Roots are the entities of nodes no other node lists as a child.
	Roots    []*Entity
	Failures []LoadFailure
	Elapsed  time.Duration
}

// OK reports whether every resource was built.
func (r *LoadReport) OK() bool { return len(r.Failures) == 0 }

// Err joins every failure, or returns nil.
func (r *LoadReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// BuildScene materializes desc in the world. Buffer sources are fetched
// concurrently; everything else runs on the calling goroutine after the
// fetch stage completes.
//
// Individual resources that fail (a buffer that cannot be read, a mesh that
// does not fit in memory, a child link that would form a cycle) are recorded
// in the report and logged; the rest of the scene is still built and a node
// whose mesh failed is kept without one. The returned error is non-nil only
// when ctx is canceled during the fetch stage, in which case nothing was
// created.
func (w *World) BuildScene(ctx context.Context, desc SceneDesc) (*LoadReport, error) {
	start := time.Now()
	report := &LoadReport{ID: uuid.New()}
	b := &sceneBuilder{
		world:   w,
		desc:    desc,
		report:  report,
		log:     w.log.With(zap.String("load_id", report.ID.String())),
		buffers: make(map[string]*memory.Buffer, len(desc.Buffers)),
		meshes:  make(map[string][]*Primitive, len(desc.Meshes)),
		skins:   make(map[string]int, len(desc.Skins)),
	}
	blobs, errs, err := fetchBuffers(ctx, desc)
	if err != nil {
		return nil, err
	}
	b.adoptBuffers(blobs, errs)
	b.buildMeshes()
	b.buildNodes()
	b.linkNodes()
	b.bindSkins()
	report.Elapsed = time.Since(start)

	b.log.Info("scene built",
		zap.Int("nodes", len(desc.Nodes)),
		zap.Int("roots", len(report.Roots)),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// fetchBuffers reads every buffer source concurrently. Per-source errors are
// returned in errs; only cancellation of ctx aborts the stage.
func fetchBuffers(ctx context.Context, desc SceneDesc) (blobs [][]byte, errs []error, err error) {
	blobs = make([][]byte, len(desc.Buffers))
	errs = make([]error, len(desc.Buffers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, src := range desc.Buffers {
		g.Go(func() error {
			data, err := src.fetch(gctx, desc.BaseDir)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				errs[i] = err
				return nil
			}
			blobs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("quartz: fetch buffers: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("quartz: fetch buffers: %w", err)
	}
	return blobs, errs, nil
}

func (src BufferSource) fetch(ctx context.Context, baseDir string) ([]byte, error) {
	switch {
	case src.Fetch != nil:
		return src.Fetch(ctx)
	case src.Data != nil:
		return src.Data, nil
	case strings.HasPrefix(src.URI, "data:"):
		return decodeDataURI(src.URI)
	case src.URI != "":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := src.URI
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return os.ReadFile(path)
	}
	return nil, fmt.Errorf("%w: buffer %q has no source", memory.ErrInvalidDescriptor, src.Name)
}

// decodeDataURI decodes "data:[<mediatype>];base64,<payload>".
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: malformed data URI", memory.ErrInvalidDescriptor)
	}
	if !strings.HasSuffix(uri[:comma], ";base64") {
		return nil, fmt.Errorf("%w: data URI is not base64", memory.ErrInvalidDescriptor)
	}
	return base64.StdEncoding.DecodeString(uri[comma+1:])
}

// sceneBuilder carries the state of one BuildScene call.
type sceneBuilder struct {
	world   *World
	desc    SceneDesc
	report  *LoadReport
	log     *zap.Logger
	buffers map[string]*memory.Buffer
	meshes  map[string][]*Primitive
	skins   map[string]int
}

func (b *sceneBuilder) fail(kind, name string, index int, err error) {
	b.report.Failures = append(b.report.Failures, LoadFailure{Kind: kind, Name: name, Index: index, Err: err})
	b.log.Warn("scene resource skipped",
		zap.String("kind", kind),
		zap.String("name", name),
		zap.Int("index", index),
		zap.Error(err))
}

func (b *sceneBuilder) adoptBuffers(blobs [][]byte, errs []error) {
	for i, src := range b.desc.Buffers {
		switch {
		case errs[i] != nil:
			b.fail("buffer", src.Name, i, errs[i])
		case b.buffers[src.Name] != nil:
			b.fail("buffer", src.Name, i, fmt.Errorf("%w: duplicate buffer name", memory.ErrInvalidDescriptor))
		default:
			b.buffers[src.Name] = memory.WrapBytes(src.Name, blobs[i])
		}
	}
}

// accessor opens ref as a read-only accessor over its loaded buffer.
func (b *sceneBuilder) accessor(ref AccessorRef) (*memory.Accessor, error) {
	buf := b.buffers[ref.Buffer]
	if buf == nil {
		return nil, fmt.Errorf("%w: buffer %q is not loaded", memory.ErrInvalidDescriptor, ref.Buffer)
	}
	elem := ref.Type.NumComponents() * ref.ComponentType.ByteSize()
	if elem == 0 || ref.Count <= 0 {
		return nil, fmt.Errorf("%w: %s/%s x%d", memory.ErrInvalidDescriptor, ref.Type, ref.ComponentType, ref.Count)
	}
	stride := ref.ByteStride
	if stride == 0 {
		stride = elem
	}
	view, err := buf.TakeBufferViewWithByteOffset(memory.BufferViewDesc{
		ByteLengthToNeed: (ref.Count-1)*stride + elem,
		ByteStride:       ref.ByteStride,
		ByteOffset:       ref.ByteOffset,
	})
	if err != nil {
		return nil, err
	}
	return view.TakeAccessorWithByteOffset(memory.AccessorDesc{
		CompositionType: ref.Type,
		ComponentType:   ref.ComponentType,
		Count:           ref.Count,
		Normalized:      ref.Normalized,
	}, 0)
}

// decodePrimitive reads a PrimitiveRef into a PrimitiveDesc.
func (b *sceneBuilder) decodePrimitive(ref PrimitiveRef) (PrimitiveDesc, error) {
	desc := PrimitiveDesc{Mode: ModeTriangles}
	if ref.Mode != nil {
		desc.Mode = *ref.Mode
	}
	for name, aref := range ref.Attributes {
		attr, err := VertexAttributeFromString(name)
		if err != nil {
			return desc, err
		}
		acc, err := b.accessor(aref)
		if err != nil {
			return desc, fmt.Errorf("quartz: %s: %w", name, err)
		}
		n := acc.ElementCount()
		switch {
		case (attr == AttributePosition || attr == AttributeNormal) && aref.Type == memory.Vec3:
			dst := make([]mgl32.Vec3, n)
			for i := range dst {
				dst[i] = acc.GetVec3(i)
			}
			if attr == AttributePosition {
				desc.Positions = dst
			} else {
				desc.Normals = dst
			}
		case attr == AttributeTexcoord0 && aref.Type == memory.Vec2:
			desc.Texcoords = make([]mgl32.Vec2, n)
			for i := range desc.Texcoords {
				desc.Texcoords[i] = acc.GetVec2(i)
			}
		case attr == AttributeColor0 && aref.Type == memory.Vec4:
			desc.Colors = make([]mgl32.Vec4, n)
			for i := range desc.Colors {
				desc.Colors[i] = acc.GetVec4(i)
			}
		default:
			b.log.Debug("vertex attribute ignored",
				zap.String("attribute", name),
				zap.Stringer("type", aref.Type))
		}
	}
	if ref.Indices != nil {
		acc, err := b.accessor(*ref.Indices)
		if err != nil {
			return desc, fmt.Errorf("quartz: indices: %w", err)
		}
		if !acc.ComponentType().IsInteger() || acc.CompositionType() != memory.Scalar {
			return desc, fmt.Errorf("%w: indices must be integer scalars", memory.ErrInvalidDescriptor)
		}
		desc.Indices = make([]uint32, acc.ElementCount())
		for i := range desc.Indices {
			desc.Indices[i] = uint32(acc.GetIndex(i))
		}
	}
	return desc, nil
}

func (b *sceneBuilder) buildMeshes() {
	mm := b.world.memory
	for i, md := range b.desc.Meshes {
		prims, err := b.buildMesh(mm, md)
		if err != nil {
			b.fail("mesh", md.Name, i, err)
			continue
		}
		b.meshes[md.Name] = prims
	}
}

func (b *sceneBuilder) buildMesh(mm *MemoryManager, md MeshDesc) ([]*Primitive, error) {
	if _, dup := b.meshes[md.Name]; dup {
		return nil, fmt.Errorf("%w: duplicate mesh name", memory.ErrInvalidDescriptor)
	}
	descs := append([]PrimitiveDesc(nil), md.Primitives...)
	for _, ref := range md.Refs {
		d, err := b.decodePrimitive(ref)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	prims := make([]*Primitive, 0, len(descs))
	for _, d := range descs {
		p, err := NewPrimitive(mm, d)
		if err != nil {
			return nil, err
		}
		prims = append(prims, p)
	}
	return prims, nil
}

func (b *sceneBuilder) buildNodes() {
	repo := b.world.entities
	b.report.Entities = make([]*Entity, len(b.desc.Nodes))
	for i, nd := range b.desc.Nodes {
		e := repo.CreateEntity()
		b.report.Entities[i] = e
		if nd.Name != "" {
			repo.SetEntityName(e, nd.Name)
		}
		for _, tid := range []ComponentTID{TIDTransform, TIDSceneGraph} {
			if _, err := repo.TryToAddComponentToEntityByTID(tid, e); err != nil {
				b.fail("node", nd.Name, i, err)
			}
		}
		if t := e.Transform(); t != nil {
			applyNodeTransform(t, nd)
		}
		if nd.Mesh != "" {
			b.attachMesh(e, i, nd)
		}
		if nd.Camera != nil {
			b.attachCamera(e, i, nd)
		}
	}
}

func applyNodeTransform(t *TransformComponent, nd NodeDesc) {
	if nd.Matrix != nil {
		t.SetMatrix(*nd.Matrix)
		return
	}
	tr, r, s := mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1}
	if nd.Translation != nil {
		tr = *nd.Translation
	}
	if nd.Rotation != nil {
		q := *nd.Rotation
		r = mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}
	}
	if nd.Scale != nil {
		s = *nd.Scale
	}
	t.SetTRS(tr, r, s)
}

func (b *sceneBuilder) attachMesh(e *Entity, i int, nd NodeDesc) {
	prims, ok := b.meshes[nd.Mesh]
	if !ok {
		// A mesh that failed to build was already reported.
		if !b.meshFailed(nd.Mesh) {
			b.fail("node", nd.Name, i, fmt.Errorf("%w: unknown mesh %q", memory.ErrInvalidDescriptor, nd.Mesh))
		}
		return
	}
	mesh, err := AddComponentToEntity[*MeshComponent](b.world.entities, e)
	if err != nil {
		b.fail("node", nd.Name, i, err)
		return
	}
	mesh.SetPrimitives(prims)
}

func (b *sceneBuilder) meshFailed(name string) bool {
	for _, f := range b.report.Failures {
		if f.Kind == "mesh" && f.Name == name {
			return true
		}
	}
	return false
}

func (b *sceneBuilder) attachCamera(e *Entity, i int, nd NodeDesc) {
	cam, err := AddComponentToEntity[*CameraComponent](b.world.entities, e)
	if err != nil {
		b.fail("node", nd.Name, i, err)
		return
	}
	cd := *nd.Camera
	defaults := cam.Parameters()
	if cd.ZNear == 0 {
		cd.ZNear = defaults[2]
	}
	if cd.ZFar == 0 {
		cd.ZFar = defaults[3]
	}
	if cd.Orthographic {
		cam.SetOrthographic(cd.XMag, cd.YMag, cd.ZNear, cd.ZFar)
	} else {
		if cd.YFov == 0 {
			cd.YFov = defaults[0]
		}
		if cd.AspectRatio == 0 {
			cd.AspectRatio = defaults[1]
		}
		cam.SetPerspective(cd.YFov, cd.AspectRatio, cd.ZNear, cd.ZFar)
	}
	if cd.Current {
		b.world.SetCurrentCamera(cam)
	}
}

func (b *sceneBuilder) linkNodes() {
	ents := b.report.Entities
	hasParent := make([]bool, len(ents))
	for i, nd := range b.desc.Nodes {
		parent := ents[i].SceneGraph()
		for _, ci := range nd.Children {
			if ci < 0 || ci >= len(ents) {
				b.fail("link", nd.Name, i, fmt.Errorf("%w: child index %d", ErrInvalidChild, ci))
				continue
			}
			child := ents[ci].SceneGraph()
			if parent == nil || child == nil {
				b.fail("link", nd.Name, i, fmt.Errorf("%w: node %d or %d has no scene graph", ErrInvalidChild, i, ci))
				continue
			}
			if hasParent[ci] {
				b.fail("link", nd.Name, i, fmt.Errorf("%w: node %d already has a parent", ErrInvalidChild, ci))
				continue
			}
			if err := parent.TryAddChild(child); err != nil {
				b.fail("link", nd.Name, i, err)
				continue
			}
			hasParent[ci] = true
		}
	}
	for i, e := range ents {
		if !hasParent[i] {
			b.report.Roots = append(b.report.Roots, e)
		}
	}
}

func (b *sceneBuilder) bindSkins() {
	for i, sd := range b.desc.Skins {
		b.skins[sd.Name] = i
	}
	for i, nd := range b.desc.Nodes {
		if nd.Skin == "" {
			continue
		}
		si, ok := b.skins[nd.Skin]
		if !ok {
			b.fail("skin", nd.Skin, i, fmt.Errorf("%w: unknown skin", memory.ErrInvalidDescriptor))
			continue
		}
		if err := b.bindSkin(b.report.Entities[i], b.desc.Skins[si]); err != nil {
			b.fail("skin", nd.Skin, i, err)
		}
	}
}

func (b *sceneBuilder) bindSkin(e *Entity, sd SkinDesc) error {
	joints := make([]*SceneGraphComponent, len(sd.Joints))
	for j, ni := range sd.Joints {
		if ni < 0 || ni >= len(b.report.Entities) {
			return fmt.Errorf("%w: joint node %d", memory.ErrInvalidDescriptor, ni)
		}
		if joints[j] = b.report.Entities[ni].SceneGraph(); joints[j] == nil {
			return fmt.Errorf("%w: joint node %d has no scene graph", memory.ErrInvalidDescriptor, ni)
		}
	}
	var ibm *memory.Accessor
	if sd.InverseBindMatrices != nil {
		acc, err := b.accessor(*sd.InverseBindMatrices)
		if err != nil {
			return fmt.Errorf("quartz: inverse bind matrices: %w", err)
		}
		ibm = acc
	}
	skel, err := AddComponentToEntity[*SkeletalComponent](b.world.entities, e)
	if err != nil {
		return err
	}
	return skel.SetJoints(joints, ibm)
}
