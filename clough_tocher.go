package etopo

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/delaunay"
)

// barycentricEpsilon is the tolerance within which a point on a triangle's
// edge is considered inside it.
const barycentricEpsilon = 100 * 2.220446049250313e-16

// A CloughTocher is a piecewise cubic, C1 smooth interpolant of scattered
// samples over their Delaunay triangulation. Vertex gradients are estimated by
// minimizing the curvature of the interpolant along triangulation edges.
//
// A CloughTocher caches the last triangle it found, so it is not safe for
// concurrent use.
type CloughTocher struct {
	points       []delaunay.Point
	values       []float64
	gradients    []float64 // x and y gradient of each point, interleaved.
	triangles    []int
	halfedges    []int
	iterations   int
	converged    bool
	lastTriangle int
}

type cloughTocherOptions struct {
	tolerance     float64
	maxIterations int
}

// A CloughTocherOption sets an option on a CloughTocher.
type CloughTocherOption func(*cloughTocherOptions)

// WithGradientTolerance sets the relative change below which gradient
// estimation stops.
func WithGradientTolerance(tolerance float64) CloughTocherOption {
	return func(o *cloughTocherOptions) {
		o.tolerance = tolerance
	}
}

// WithGradientMaxIterations sets the maximum number of gradient estimation
// sweeps.
func WithGradientMaxIterations(maxIterations int) CloughTocherOption {
	return func(o *cloughTocherOptions) {
		o.maxIterations = maxIterations
	}
}

// NewCloughTocher returns a new CloughTocher interpolating samples.
func NewCloughTocher(samples []ScatteredSample, options ...CloughTocherOption) (*CloughTocher, error) {
	o := cloughTocherOptions{
		tolerance:     1e-6,
		maxIterations: 400,
	}
	for _, option := range options {
		option(&o)
	}

	if len(samples) < 3 {
		return nil, newError("triangulate", KindInterpolation, "",
			fmt.Errorf("%d samples, need at least 3", len(samples)))
	}

	points := make([]delaunay.Point, len(samples))
	values := make([]float64, len(samples))
	for i, sample := range samples {
		points[i] = delaunay.Point{X: sample.Lon, Y: sample.Lat}
		values[i] = sample.Value
	}

	triangulation, err := delaunay.Triangulate(points)
	switch {
	case err != nil:
		return nil, newError("triangulate", KindInterpolation, "", err)
	case len(triangulation.Triangles) == 0:
		return nil, newError("triangulate", KindInterpolation, "", errors.New("no triangles"))
	}

	c := &CloughTocher{
		points:    points,
		values:    values,
		gradients: make([]float64, 2*len(points)),
		triangles: triangulation.Triangles,
		halfedges: triangulation.Halfedges,
	}
	c.estimateGradients(o.tolerance, o.maxIterations)
	return c, nil
}

// Converged returns whether gradient estimation converged.
func (c *CloughTocher) Converged() bool {
	return c.converged
}

// Eval returns the interpolated value at (x, y), or NaN if (x, y) is outside
// the convex hull of the samples.
func (c *CloughTocher) Eval(x, y float64) float64 {
	t := c.locate(x, y)
	if t < 0 {
		return math.NaN()
	}
	return c.evalTriangle(t, c.barycentric(t, x, y))
}

// EvalAll evaluates c at each (xs[i], ys[i]).
func (c *CloughTocher) EvalAll(xs, ys []float64) []float64 {
	result := make([]float64, len(xs))
	for i := range xs {
		result[i] = c.Eval(xs[i], ys[i])
	}
	return result
}

// neighbors returns the neighbors of each point in the triangulation.
func (c *CloughTocher) neighbors() [][]int {
	neighbors := make([][]int, len(c.points))
	for e, a := range c.triangles {
		if opposite := c.halfedges[e]; opposite != -1 && opposite < e {
			continue
		}
		b := c.triangles[nextHalfedge(e)]
		neighbors[a] = append(neighbors[a], b)
		neighbors[b] = append(neighbors[b], a)
	}
	return neighbors
}

// estimateGradients estimates the gradient at each point by Gauss-Seidel
// iteration. Each sweep minimizes, one point at a time, the sum over the
// point's edges of the integrated squared second derivative of the cubic
// along the edge, holding the other points' gradients fixed.
func (c *CloughTocher) estimateGradients(tolerance float64, maxIterations int) {
	neighbors := c.neighbors()
	g := c.gradients
	for iteration := range maxIterations {
		maxChange := 0.0
		for i, p := range c.points {
			if len(neighbors[i]) == 0 {
				continue
			}
			var q00, q01, q11, s0, s1 float64
			for _, j := range neighbors[i] {
				ex := c.points[j].X - p.X
				ey := c.points[j].Y - p.Y
				l := math.Hypot(ex, ey)
				l3 := l * l * l
				df2 := -ex*g[2*j] - ey*g[2*j+1]
				q00 += 4 * ex * ex / l3
				q01 += 4 * ex * ey / l3
				q11 += 4 * ey * ey / l3
				k := 6*(c.values[i]-c.values[j]) - 2*df2
				s0 += k * ex / l3
				s1 += k * ey / l3
			}
			det := q00*q11 - q01*q01
			if det == 0 {
				continue
			}
			r0 := (q11*s0 - q01*s1) / det
			r1 := (-q01*s0 + q00*s1) / det

			change := max(math.Abs(g[2*i]+r0), math.Abs(g[2*i+1]+r1))
			g[2*i] = -r0
			g[2*i+1] = -r1

			change /= max(1, math.Abs(r0), math.Abs(r1))
			if change > maxChange {
				maxChange = change
			}
		}
		if maxChange < tolerance {
			c.iterations = iteration + 1
			c.converged = true
			return
		}
	}
	c.iterations = maxIterations
}

// locate returns the triangle containing (x, y), or -1 if there is none. It
// walks towards (x, y) from the last triangle found, falling back to a scan of
// all triangles if the walk does not terminate.
func (c *CloughTocher) locate(x, y float64) int {
	if math.IsNaN(x) || math.IsNaN(y) {
		return -1
	}
	triangleCount := len(c.triangles) / 3
	t := c.lastTriangle
	for range triangleCount + 1 {
		b := c.barycentric(t, x, y)
		k, minB := -1, -barycentricEpsilon
		for i, bi := range b {
			if bi < minB {
				k, minB = i, bi
			}
		}
		if k == -1 {
			c.lastTriangle = t
			return t
		}
		// Cross the edge opposite vertex k. If it is on the hull then (x, y)
		// is outside it.
		opposite := c.halfedges[3*t+(k+1)%3]
		if opposite == -1 {
			return -1
		}
		t = opposite / 3
	}
	for t := range triangleCount {
		b := c.barycentric(t, x, y)
		if b[0] >= -barycentricEpsilon && b[1] >= -barycentricEpsilon && b[2] >= -barycentricEpsilon {
			c.lastTriangle = t
			return t
		}
	}
	return -1
}

// barycentric returns the barycentric coordinates of (x, y) in triangle t.
func (c *CloughTocher) barycentric(t int, x, y float64) [3]float64 {
	p0 := c.points[c.triangles[3*t]]
	p1 := c.points[c.triangles[3*t+1]]
	p2 := c.points[c.triangles[3*t+2]]
	det := (p1.Y-p2.Y)*(p0.X-p2.X) + (p2.X-p1.X)*(p0.Y-p2.Y)
	b0 := ((p1.Y-p2.Y)*(x-p2.X) + (p2.X-p1.X)*(y-p2.Y)) / det
	b1 := ((p2.Y-p0.Y)*(x-p2.X) + (p0.X-p2.X)*(y-p2.Y)) / det
	return [3]float64{b0, b1, 1 - b0 - b1}
}

// evalTriangle evaluates the Clough-Tocher patch of triangle t at barycentric
// coordinates b. The triangle is split at its centroid into three cubic
// Bezier sub-triangles whose control points are set by the vertex values and
// gradients and by C1 continuity with the neighboring triangles.
func (c *CloughTocher) evalTriangle(t int, b [3]float64) float64 {
	v0, v1, v2 := c.triangles[3*t], c.triangles[3*t+1], c.triangles[3*t+2]
	p0, p1, p2 := c.points[v0], c.points[v1], c.points[v2]
	g := c.gradients

	e12x, e12y := p1.X-p0.X, p1.Y-p0.Y
	e23x, e23y := p2.X-p1.X, p2.Y-p1.Y
	e31x, e31y := p0.X-p2.X, p0.Y-p2.Y

	f1, f2, f3 := c.values[v0], c.values[v1], c.values[v2]

	df12 := +(g[2*v0]*e12x + g[2*v0+1]*e12y)
	df21 := -(g[2*v1]*e12x + g[2*v1+1]*e12y)
	df23 := +(g[2*v1]*e23x + g[2*v1+1]*e23y)
	df32 := -(g[2*v2]*e23x + g[2*v2+1]*e23y)
	df31 := +(g[2*v2]*e31x + g[2*v2+1]*e31y)
	df13 := -(g[2*v0]*e31x + g[2*v0+1]*e31y)

	c3000 := f1
	c2100 := (df12 + 3*c3000) / 3
	c2010 := (df13 + 3*c3000) / 3
	c0300 := f2
	c1200 := (df21 + 3*c0300) / 3
	c0210 := (df23 + 3*c0300) / 3
	c0030 := f3
	c1020 := (df31 + 3*c0030) / 3
	c0120 := (df32 + 3*c0030) / 3

	c2001 := (c2100 + c2010 + c3000) / 3
	c0201 := (c1200 + c0300 + c0210) / 3
	c0021 := (c1020 + c0120 + c0030) / 3

	// The cross-boundary derivative on each edge is taken towards the
	// centroid of the neighboring triangle, which keeps the interpolant affine
	// invariant and agrees between neighbors. Hull edges use the direction
	// towards the midpoint of the other two edges.
	var gk [3]float64
	for k := range 3 {
		opposite := c.halfedges[3*t+(k+1)%3]
		if opposite == -1 {
			gk[k] = -0.5
			continue
		}
		n := opposite / 3
		q0 := c.points[c.triangles[3*n]]
		q1 := c.points[c.triangles[3*n+1]]
		q2 := c.points[c.triangles[3*n+2]]
		cb := c.barycentric(t, (q0.X+q1.X+q2.X)/3, (q0.Y+q1.Y+q2.Y)/3)
		switch k {
		case 0:
			gk[k] = (2*cb[2] + cb[1] - 1) / (2 - 3*cb[2] - 3*cb[1])
		case 1:
			gk[k] = (2*cb[0] + cb[2] - 1) / (2 - 3*cb[0] - 3*cb[2])
		case 2:
			gk[k] = (2*cb[1] + cb[0] - 1) / (2 - 3*cb[1] - 3*cb[0])
		}
	}

	c0111 := (gk[0]*(-c0300+3*c0210-3*c0120+c0030) + (-c0300 + 2*c0210 - c0120 + c0021 + c0201)) / 2
	c1011 := (gk[1]*(-c0030+3*c1020-3*c2010+c3000) + (-c0030 + 2*c1020 - c2010 + c2001 + c0021)) / 2
	c1101 := (gk[2]*(-c3000+3*c2100-3*c1200+c0300) + (-c3000 + 2*c2100 - c1200 + c2001 + c0201)) / 2

	c1002 := (c1101 + c1011 + c2001) / 3
	c0102 := (c1101 + c0111 + c0201) / 3
	c0012 := (c1011 + c0111 + c0021) / 3

	c0003 := (c1002 + c0102 + c0012) / 3

	// Extended barycentric coordinates relative to the centroid: one of
	// b1, b2, b3 is zero, selecting the sub-triangle.
	minB := min(b[0], b[1], b[2])
	b1 := b[0] - minB
	b2 := b[1] - minB
	b3 := b[2] - minB
	b4 := 3 * minB

	return b1*b1*b1*c3000 + 3*b1*b1*b2*c2100 + 3*b1*b1*b3*c2010 +
		3*b1*b1*b4*c2001 + 3*b1*b2*b2*c1200 +
		6*b1*b2*b4*c1101 + 3*b1*b3*b3*c1020 + 6*b1*b3*b4*c1011 +
		3*b1*b4*b4*c1002 + b2*b2*b2*c0300 + 3*b2*b2*b3*c0210 +
		3*b2*b2*b4*c0201 + 3*b2*b3*b3*c0120 + 6*b2*b3*b4*c0111 +
		3*b2*b4*b4*c0102 + b3*b3*b3*c0030 + 3*b3*b3*b4*c0021 +
		3*b3*b4*b4*c0012 + b4*b4*b4*c0003
}

func nextHalfedge(e int) int {
	if e%3 == 2 {
		return e - 2
	}
	return e + 1
}
