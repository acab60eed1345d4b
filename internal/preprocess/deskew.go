package preprocess

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// minForegroundPixels guards against fitting a rectangle to a near-blank
// page, which would produce a spurious large rotation.
const minForegroundPixels = 10

// Deskew estimates the rotation of the ink on a scanned page and rotates the
// image back to level. Near-blank pages are returned unchanged.
func Deskew(img image.Image) image.Image {
	gray := toGray(img)

	points := foregroundPoints(gray)
	if len(points) < minForegroundPixels {
		return img
	}

	angle := skewAngle(points)
	if angle == 0 {
		return img
	}

	return toRGBA(rotateAboutCenter(gray, angle))
}

// foregroundPoints collects the coordinates of ink pixels. The page is
// treated with inverted polarity so ink is foreground.
func foregroundPoints(gray *image.Gray) []image.Point {
	bounds := gray.Bounds()
	points := make([]image.Point, 0, bounds.Dx()*bounds.Dy()/8)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if 255-gray.GrayAt(x, y).Y > 0 {
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}
	return points
}

// skewAngle fits a minimum-area bounding rectangle over the pixel cloud and
// converts its orientation into a correction angle in [-45, 45). Rotating the
// page by the returned angle levels the ink.
func skewAngle(points []image.Point) float64 {
	hull := convexHull(points)
	if len(hull) < 3 {
		return 0
	}

	bestArea := math.MaxFloat64
	bestEdgeAngle := 0.0

	for i := range hull {
		p := hull[i]
		q := hull[(i+1)%len(hull)]
		dx := float64(q.X - p.X)
		dy := float64(q.Y - p.Y)
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		ux, uy := dx/length, dy/length

		minU, maxU := math.MaxFloat64, -math.MaxFloat64
		minV, maxV := math.MaxFloat64, -math.MaxFloat64
		for _, pt := range hull {
			x, y := float64(pt.X), float64(pt.Y)
			u := ux*x + uy*y
			v := -uy*x + ux*y
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		area := (maxU - minU) * (maxV - minV)
		if area < bestArea {
			bestArea = area
			bestEdgeAngle = math.Atan2(dy, dx) * 180 / math.Pi
		}
	}

	// Angle of the rectangle normalized to [-90, 0). Image rows grow
	// downward, so the rectangle angle already carries the sign the
	// rotation step needs once folded into [-45, 45).
	phi := math.Mod(bestEdgeAngle, 90)
	if phi < 0 {
		phi += 90
	}
	raw := phi - 90

	if raw < -45 {
		return 90 + raw
	}
	return raw
}

// convexHull computes the convex hull of the point cloud using the monotone
// chain algorithm. Points are returned in counterclockwise order.
func convexHull(points []image.Point) []image.Point {
	if len(points) < 3 {
		return points
	}

	sorted := make([]image.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower []image.Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []image.Point
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// rotateAboutCenter rotates the grayscale page by angle degrees around its
// center with Catmull-Rom (cubic) interpolation, keeping the original
// dimensions and filling exposed borders with white.
func rotateAboutCenter(gray *image.Gray, angle float64) *image.Gray {
	bounds := gray.Bounds()
	dst := image.NewGray(bounds)
	stddraw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, stddraw.Src)

	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx := float64(bounds.Min.X) + float64(bounds.Dx())/2
	cy := float64(bounds.Min.Y) + float64(bounds.Dy())/2

	m := f64.Aff3{
		cos, sin, (1-cos)*cx - sin*cy,
		-sin, cos, sin*cx + (1-cos)*cy,
	}

	xdraw.CatmullRom.Transform(dst, m, gray, bounds, xdraw.Over, nil)

	return dst
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	stddraw.Draw(gray, bounds, img, bounds.Min, stddraw.Src)
	return gray
}
