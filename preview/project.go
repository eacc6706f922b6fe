package preview

import (
	"cmp"
	"slices"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/quartz"
)

// triangle is one projected, shaded triangle in screen space.
type triangle struct {
	pos   [3]mgl32.Vec2
	depth float32 // mean NDC z, larger is farther
	color mgl32.Vec4
}

// projector turns draw commands into screen space triangles.
type projector struct {
	viewProj mgl32.Mat4
	width    float32
	height   float32
	light    mgl32.Vec3
	ambient  float32
	base     mgl32.Vec4

	tris []triangle
}

// reset clears the triangle list for a new frame.
func (p *projector) reset(viewProj mgl32.Mat4, width, height int) {
	p.viewProj = viewProj
	p.width = float32(width)
	p.height = float32(height)
	p.tris = p.tris[:0]
}

// add projects every triangle of cmd. Point and line primitives are skipped.
func (p *projector) add(cmd quartz.DrawCommand) {
	prim := cmd.Primitive
	tri := triangleIndices(prim.Mode, prim.IndexCount())
	if len(tri) == 0 {
		return
	}
	positions := prim.Positions()
	var colors *indexedColors
	if acc := prim.Attribute(quartz.AttributeColor0); acc != nil {
		colors = &indexedColors{get: acc.WithIndices(prim.Indices).GetVec4}
	}
	mvp := p.viewProj.Mul4(cmd.WorldMatrix)

	for i := 0; i+2 < len(tri); i += 3 {
		var (
			world [3]mgl32.Vec3
			clip  [3]mgl32.Vec4
			out   triangle
		)
		behind := false
		for k := 0; k < 3; k++ {
			local := positions.GetVec3(tri[i+k])
			world[k] = mgl32.TransformCoordinate(local, cmd.WorldMatrix)
			clip[k] = mvp.Mul4x1(local.Vec4(1))
			if clip[k][3] <= 0 {
				behind = true
				break
			}
		}
		if behind {
			continue
		}
		for k := 0; k < 3; k++ {
			ndc := clip[k].Vec3().Mul(1 / clip[k][3])
			out.pos[k] = mgl32.Vec2{
				(ndc[0] + 1) * 0.5 * p.width,
				(1 - ndc[1]) * 0.5 * p.height,
			}
			out.depth += ndc[2] / 3
		}

		base := p.base
		if colors != nil {
			base = colors.mean(tri[i], tri[i+1], tri[i+2])
		}
		out.color = shade(base, faceNormal(world), p.light, p.ambient)
		p.tris = append(p.tris, out)
	}
}

// sorted returns the triangles farthest first.
func (p *projector) sorted() []triangle {
	slices.SortStableFunc(p.tris, func(a, b triangle) int {
		return cmp.Compare(b.depth, a.depth)
	})
	return p.tris
}

type indexedColors struct {
	get func(int) mgl32.Vec4
}

func (c *indexedColors) mean(a, b, d int) mgl32.Vec4 {
	return c.get(a).Add(c.get(b)).Add(c.get(d)).Mul(1.0 / 3)
}

// triangleIndices expands a primitive mode into a flat list of triangle
// corners, as positions into the primitive's draw order. Strips alternate
// winding so every triangle keeps the orientation of the first.
func triangleIndices(mode quartz.PrimitiveMode, n int) []int {
	var out []int
	switch mode {
	case quartz.ModeTriangles:
		out = make([]int, 0, n-n%3)
		for i := 0; i+2 < n; i += 3 {
			out = append(out, i, i+1, i+2)
		}
	case quartz.ModeTriangleStrip:
		for i := 0; i+2 < n; i++ {
			if i%2 == 0 {
				out = append(out, i, i+1, i+2)
			} else {
				out = append(out, i+1, i, i+2)
			}
		}
	case quartz.ModeTriangleFan:
		for i := 1; i+1 < n; i++ {
			out = append(out, 0, i, i+1)
		}
	}
	return out
}

// faceNormal returns the unit normal of a counter-clockwise triangle, or zero
// for a degenerate one.
func faceNormal(v [3]mgl32.Vec3) mgl32.Vec3 {
	n := v[1].Sub(v[0]).Cross(v[2].Sub(v[0]))
	if l := n.Len(); l > 0 {
		return n.Mul(1 / l)
	}
	return mgl32.Vec3{}
}

// shade applies a two-sided Lambert term towards light on top of ambient.
func shade(base mgl32.Vec4, normal, light mgl32.Vec3, ambient float32) mgl32.Vec4 {
	diffuse := math32.Abs(normal.Dot(light))
	k := mgl32.Clamp(ambient+(1-ambient)*diffuse, 0, 1)
	return mgl32.Vec4{base[0] * k, base[1] * k, base[2] * k, base[3]}
}
