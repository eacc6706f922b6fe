package quartz

import (
	"github.com/go-gl/mathgl/mgl32"
)

// --- Box ---

// BoxDesc returns a box centered on the origin with the given extents. Each
// face has its own four vertices so normals and UVs are per face.
// 24 vertices, 36 indices.
func BoxDesc(size mgl32.Vec3) PrimitiveDesc {
	h := size.Mul(0.5)
	// normal, then two tangent axes spanning the face
	faces := [6][3]mgl32.Vec3{
		{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
		{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
		{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
		{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
		{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
		{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	desc := PrimitiveDesc{
		Mode:      ModeTriangles,
		Positions: make([]mgl32.Vec3, 0, 24),
		Normals:   make([]mgl32.Vec3, 0, 24),
		Texcoords: make([]mgl32.Vec2, 0, 24),
		Indices:   make([]uint32, 0, 36),
	}
	for _, f := range faces {
		n, u, v := f[0], f[1], f[2]
		base := uint32(len(desc.Positions))
		for _, c := range corners {
			p := n.Add(u.Mul(c[0])).Add(v.Mul(c[1]))
			desc.Positions = append(desc.Positions, mgl32.Vec3{p[0] * h[0], p[1] * h[1], p[2] * h[2]})
			desc.Normals = append(desc.Normals, n)
			desc.Texcoords = append(desc.Texcoords, mgl32.Vec2{(c[0] + 1) / 2, (1 - c[1]) / 2})
		}
		desc.Indices = append(desc.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return desc
}

// --- Grid ---

// GridDesc returns a flat grid in the XZ plane centered on the origin, facing
// +Y. cols and rows define the number of cells (vertices = (cols+1) * (rows+1)).
func GridDesc(width, depth float32, cols, rows int) PrimitiveDesc {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	vcols := cols + 1
	vrows := rows + 1
	numVerts := vcols * vrows

	desc := PrimitiveDesc{
		Mode:      ModeTriangles,
		Positions: make([]mgl32.Vec3, numVerts),
		Normals:   make([]mgl32.Vec3, numVerts),
		Texcoords: make([]mgl32.Vec2, numVerts),
		Indices:   make([]uint32, 0, cols*rows*6),
	}
	for r := 0; r < vrows; r++ {
		for c := 0; c < vcols; c++ {
			idx := r*vcols + c
			u := float32(c) / float32(cols)
			v := float32(r) / float32(rows)
			desc.Positions[idx] = mgl32.Vec3{(u - 0.5) * width, 0, (v - 0.5) * depth}
			desc.Normals[idx] = mgl32.Vec3{0, 1, 0}
			desc.Texcoords[idx] = mgl32.Vec2{u, v}
		}
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			tl := uint32(r*vcols + c)
			tr := tl + 1
			bl := uint32((r+1)*vcols + c)
			br := bl + 1
			desc.Indices = append(desc.Indices, tl, bl, tr, tr, bl, br)
		}
	}
	return desc
}

// --- Polygon ---

// PolygonDesc returns a fan-triangulated polygon in the XY plane from the
// given points (convex polygons). UVs map the points' bounding box to [0,1].
// N vertices, 3*(N-2) indices. Fewer than three points yields an empty
// PrimitiveDesc, which NewPrimitive rejects.
func PolygonDesc(points []mgl32.Vec2) PrimitiveDesc {
	n := len(points)
	if n < 3 {
		return PrimitiveDesc{Mode: ModeTriangles}
	}

	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = mgl32.Vec2{min(lo[0], p[0]), min(lo[1], p[1])}
		hi = mgl32.Vec2{max(hi[0], p[0]), max(hi[1], p[1])}
	}
	span := hi.Sub(lo)

	desc := PrimitiveDesc{
		Mode:      ModeTriangles,
		Positions: make([]mgl32.Vec3, n),
		Normals:   make([]mgl32.Vec3, n),
		Texcoords: make([]mgl32.Vec2, n),
		Indices:   make([]uint32, 0, (n-2)*3),
	}
	for i, p := range points {
		desc.Positions[i] = mgl32.Vec3{p[0], p[1], 0}
		desc.Normals[i] = mgl32.Vec3{0, 0, 1}
		var uv mgl32.Vec2
		if span[0] != 0 {
			uv[0] = (p[0] - lo[0]) / span[0]
		}
		if span[1] != 0 {
			uv[1] = (p[1] - lo[1]) / span[1]
		}
		desc.Texcoords[i] = uv
	}
	for i := 1; i < n-1; i++ {
		desc.Indices = append(desc.Indices, 0, uint32(i), uint32(i+1))
	}
	return desc
}
