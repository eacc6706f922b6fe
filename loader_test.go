package quartz

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/quartz/memory"
)

// triangleBlob packs three float VEC3 positions followed by three uint16
// indices, little-endian.
func triangleBlob() []byte {
	positions := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	buf := make([]byte, 0, 42)
	for _, f := range positions {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	for _, i := range []uint16{0, 1, 2} {
		buf = binary.LittleEndian.AppendUint16(buf, i)
	}
	return buf
}

func dataURI(b []byte) string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b)
}

var triangleRef = PrimitiveRef{
	Attributes: map[string]AccessorRef{
		"POSITION": {Buffer: "geo", Type: memory.Vec3, ComponentType: memory.Float, Count: 3},
	},
	Indices: &AccessorRef{Buffer: "geo", ByteOffset: 36, Type: memory.Scalar, ComponentType: memory.UnsignedShort, Count: 3},
}

func buildScene(t *testing.T, w *World, desc SceneDesc) *LoadReport {
	t.Helper()
	report, err := w.BuildScene(context.Background(), desc)
	if err != nil {
		t.Fatalf("BuildScene: %v", err)
	}
	return report
}

func TestBuildSceneFromYAML(t *testing.T) {
	doc := fmt.Sprintf(`
buffers:
  - name: geo
    uri: %q
meshes:
  - name: tri
    primitives:
      - attributes:
          POSITION: {buffer: geo, type: VEC3, component_type: 5126, count: 3}
        indices: {buffer: geo, byte_offset: 36, type: SCALAR, component_type: 5123, count: 3}
nodes:
  - name: root
    translation: [10, 0, 0]
    children: [1]
  - name: leaf
    mesh: tri
    rotation: [0, 0, 0.7071068, 0.7071068]
    scale: [2, 2, 2]
`, dataURI(triangleBlob()))
	desc, err := ParseSceneDesc([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	w := newTestWorld(t)
	report := buildScene(t, w, desc)
	if !report.OK() {
		t.Fatalf("failures: %v", report.Err())
	}
	if report.ID.String() == "" || len(report.Entities) != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Roots) != 1 || report.Roots[0] != report.Entities[0] {
		t.Errorf("Roots = %v", uids(report.Roots))
	}

	leaf := w.Entities().FindByName("leaf")
	if len(leaf) != 1 {
		t.Fatalf("FindByName(leaf) = %d entities", len(leaf))
	}
	mesh := leaf[0].Mesh()
	if mesh == nil || mesh.NumPrimitives() != 1 {
		t.Fatal("leaf has no mesh")
	}
	prim := mesh.Primitives()[0]
	if prim.VertexCount() != 3 || prim.IndexCount() != 3 || prim.Mode != ModeTriangles {
		t.Errorf("primitive = %d vertices, %d indices, %v", prim.VertexCount(), prim.IndexCount(), prim.Mode)
	}
	// Vertex data is copied out of the blob into engine memory.
	if prim.Attribute(AttributePosition).BufferView().Buffer() != w.Memory().GetBuffer(memory.GPUVertexData) {
		t.Error("positions not copied into GPUVertexData")
	}

	sg := leaf[0].SceneGraph()
	assertVec3(t, "leaf origin", sg.WorldPosition(), mgl32.Vec3{10, 0, 0})
	// (1,0,0) scaled by 2 and turned 90 degrees about Z lands at (0,2,0).
	assertVec3(t, "leaf vertex", sg.GetWorldPositionOf(prim.Positions().GetVec3(1)), mgl32.Vec3{10, 2, 0})
}

func TestBuildScenePartialFailures(t *testing.T) {
	logs := observeLogs(t)
	w := newTestWorld(t)
	desc := SceneDesc{
		Buffers: []BufferSource{
			{Name: "geo", Data: triangleBlob()},
			{Name: "empty"},
		},
		Meshes: []MeshDesc{
			{Name: "tri", Refs: []PrimitiveRef{triangleRef}},
			{Name: "broken", Refs: []PrimitiveRef{{Attributes: map[string]AccessorRef{
				"POSITION": {Buffer: "empty", Type: memory.Vec3, ComponentType: memory.Float, Count: 3},
			}}}},
		},
		Nodes: []NodeDesc{
			{Name: "a", Mesh: "tri", Children: []int{1, 7}},
			{Name: "b", Mesh: "missing", Children: []int{0}},
			{Name: "c", Mesh: "broken"},
		},
	}
	report := buildScene(t, w, desc)

	type key struct {
		kind  string
		index int
	}
	want := map[key]error{
		{"buffer", 1}: memory.ErrInvalidDescriptor, // no source
		{"mesh", 1}:   memory.ErrInvalidDescriptor, // buffer not loaded
		{"node", 1}:   memory.ErrInvalidDescriptor, // unknown mesh
		{"link", 0}:   ErrInvalidChild,             // index 7
		{"link", 1}:   ErrSceneGraphCycle,          // b -> a while a -> b
	}
	if len(report.Failures) != len(want) {
		t.Fatalf("failures = %v", report.Failures)
	}
	for _, f := range report.Failures {
		werr, ok := want[key{f.Kind, f.Index}]
		if !ok {
			t.Errorf("unexpected failure %v", f)
			continue
		}
		if !errors.Is(f, werr) {
			t.Errorf("failure %v, want %v", f, werr)
		}
	}
	if !errors.Is(report.Err(), ErrSceneGraphCycle) {
		t.Error("Err does not join the cycle failure")
	}

	// Everything else is still built.
	a, b, c := report.Entities[0], report.Entities[1], report.Entities[2]
	if a.Mesh() == nil {
		t.Error("node a lost its mesh")
	}
	if b.Mesh() != nil || c.Mesh() != nil {
		t.Error("nodes with failed meshes got one")
	}
	if b.SceneGraph().Parent() != a.SceneGraph() {
		t.Error("a -> b link missing")
	}
	if got := uids(report.Roots); len(got) != 2 || got[0] != a.UID() || got[1] != c.UID() {
		t.Errorf("Roots = %v, want [a c]", got)
	}
	if n := logs.FilterMessage("scene resource skipped").Len(); n != len(want) {
		t.Errorf("skip warnings = %d, want %d", n, len(want))
	}
}

func TestBuildSceneCanceled(t *testing.T) {
	w := newTestWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	desc := SceneDesc{
		Buffers: []BufferSource{{Name: "slow", Fetch: func(ctx context.Context) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}},
		Nodes: []NodeDesc{{Name: "n"}},
	}
	report, err := w.BuildScene(ctx, desc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if report != nil {
		t.Error("report returned on cancel")
	}
	if w.Entities().EntityCount() != 0 {
		t.Error("entities created after cancel")
	}

	if _, err := w.BuildScene(ctx, SceneDesc{Nodes: []NodeDesc{{}}}); !errors.Is(err, context.Canceled) {
		t.Errorf("err without buffers = %v, want context.Canceled", err)
	}
}

func TestBuildSceneBufferSources(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tri.bin"), triangleBlob(), 0o644); err != nil {
		t.Fatal(err)
	}
	fetched := false
	sources := []BufferSource{
		{Name: "geo", URI: "tri.bin"},
		{Name: "geo", Data: triangleBlob(), URI: "missing.bin"},
		{Name: "geo", Fetch: func(context.Context) ([]byte, error) {
			fetched = true
			return triangleBlob(), nil
		}, URI: "missing.bin"},
	}
	for i, src := range sources {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			w := newTestWorld(t)
			report := buildScene(t, w, SceneDesc{
				BaseDir: dir,
				Buffers: []BufferSource{src},
				Meshes:  []MeshDesc{{Name: "tri", Refs: []PrimitiveRef{triangleRef}}},
				Nodes:   []NodeDesc{{Mesh: "tri"}},
			})
			if !report.OK() {
				t.Fatalf("failures: %v", report.Err())
			}
			if report.Entities[0].Mesh() == nil {
				t.Error("mesh not attached")
			}
		})
	}
	if !fetched {
		t.Error("Fetch not preferred over URI")
	}

	w := newTestWorld(t)
	report := buildScene(t, w, SceneDesc{
		BaseDir: dir,
		Buffers: []BufferSource{
			{Name: "gone", URI: "missing.bin"},
			{Name: "bad", URI: "data:text/plain,hello"},
			{Name: "err", Fetch: func(context.Context) ([]byte, error) { return nil, errors.New("404") }},
		},
	})
	if len(report.Failures) != 3 {
		t.Fatalf("failures = %v", report.Failures)
	}
	if !errors.Is(report.Failures[0], os.ErrNotExist) {
		t.Errorf("missing file failure = %v", report.Failures[0])
	}
	if !errors.Is(report.Failures[1], memory.ErrInvalidDescriptor) {
		t.Errorf("non-base64 data URI failure = %v", report.Failures[1])
	}
}

func TestLoadSceneDescResolvesBaseDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tri.bin"), triangleBlob(), 0o644); err != nil {
		t.Fatal(err)
	}
	scene := `
buffers: [{name: geo, uri: tri.bin}]
meshes:
  - name: tri
    primitives:
      - attributes:
          POSITION: {buffer: geo, type: VEC3, component_type: 5126, count: 3}
nodes: [{name: only, mesh: tri}]
`
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte(scene), 0o644); err != nil {
		t.Fatal(err)
	}
	desc, err := LoadSceneDesc(path)
	if err != nil {
		t.Fatal(err)
	}
	if desc.BaseDir != dir {
		t.Errorf("BaseDir = %q, want %q", desc.BaseDir, dir)
	}
	w := newTestWorld(t)
	report := buildScene(t, w, desc)
	if !report.OK() {
		t.Fatalf("failures: %v", report.Err())
	}
	if prim := report.Entities[0].Mesh().Primitives()[0]; prim.IsIndexed() {
		t.Error("primitive without indices is indexed")
	}
}

func TestBuildSceneInlineMeshAndMatrix(t *testing.T) {
	w := newTestWorld(t)
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	report := buildScene(t, w, SceneDesc{
		Meshes: []MeshDesc{{Name: "box", Primitives: []PrimitiveDesc{BoxDesc(mgl32.Vec3{1, 1, 1})}}},
		Nodes:  []NodeDesc{{Name: "crate", Mesh: "box", Matrix: &m, Translation: &mgl32.Vec3{9, 9, 9}}},
	})
	if !report.OK() {
		t.Fatalf("failures: %v", report.Err())
	}
	e := report.Entities[0]
	assertVec3(t, "translate", e.Transform().Translate(), mgl32.Vec3{1, 2, 3})
	assertVec3(t, "scale", e.Transform().Scale(), mgl32.Vec3{2, 2, 2})
	box := e.SceneGraph().WorldAABB()
	assertVec3(t, "world aabb min", box.Min, mgl32.Vec3{0, 1, 2})
}

func TestBuildSceneCameras(t *testing.T) {
	w := newTestWorld(t)
	report := buildScene(t, w, SceneDesc{Nodes: []NodeDesc{
		{Name: "persp", Camera: &CameraDesc{YFov: 1, Current: true}},
		{Name: "ortho", Camera: &CameraDesc{Orthographic: true, XMag: 4, YMag: 3}},
	}})
	if !report.OK() {
		t.Fatalf("failures: %v", report.Err())
	}
	persp := report.Entities[0].Camera()
	if w.CurrentCamera() != persp {
		t.Error("current camera not set")
	}
	p := persp.Parameters()
	assertNear(t, "fovY", p[0], 1)
	assertNear(t, "default aspect", p[1], 1)
	assertNear(t, "default zFar", p[3], 1000)

	ortho := report.Entities[1].Camera()
	if ortho.ProjectionType() != Orthographic {
		t.Error("ortho camera is perspective")
	}
	assertNear(t, "xMag", ortho.Parameters()[0], 4)
	assertNear(t, "default zNear", ortho.Parameters()[2], 0.1)
}

func TestBuildSceneSkins(t *testing.T) {
	w := newTestWorld(t)
	ibm := make([]byte, 0, 128)
	for _, m := range []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(0, -1, 0)} {
		for _, f := range m {
			ibm = binary.LittleEndian.AppendUint32(ibm, math.Float32bits(f))
		}
	}
	report := buildScene(t, w, SceneDesc{
		Buffers: []BufferSource{{Name: "skin", Data: ibm}},
		Skins: []SkinDesc{{
			Name:                "arm",
			Joints:              []int{1, 2},
			InverseBindMatrices: &AccessorRef{Buffer: "skin", Type: memory.Mat4, ComponentType: memory.Float, Count: 2},
		}},
		Nodes: []NodeDesc{
			{Name: "body", Skin: "arm", Children: []int{1}},
			{Name: "shoulder", Children: []int{2}},
			{Name: "elbow", Translation: &mgl32.Vec3{0, 1, 0}},
			{Name: "ghost", Skin: "leg"},
		},
	})
	if len(report.Failures) != 1 || report.Failures[0].Kind != "skin" || report.Failures[0].Name != "leg" {
		t.Fatalf("failures = %v", report.Failures)
	}
	sk := report.Entities[0].Skeletal()
	if sk == nil || sk.NumJoints() != 2 {
		t.Fatal("skin not bound")
	}
	acc := sk.JointMatrices()
	assertMat4(t, "elbow at bind pose", acc.GetMat4(1), mgl32.Ident4())
}
