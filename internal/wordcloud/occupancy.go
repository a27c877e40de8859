package wordcloud

import (
	"image"
	"math/rand"
)

// occupancy tracks used pixels with a summed-area table so the emptiness of
// any rectangle is answered in constant time.
type occupancy struct {
	w, h     int
	used     []bool
	integral []int32 // (w+1)*(h+1), row-major, first row and column are zero
}

func newOccupancy(w, h int) *occupancy {
	return &occupancy{
		w:        w,
		h:        h,
		used:     make([]bool, w*h),
		integral: make([]int32, (w+1)*(h+1)),
	}
}

func (o *occupancy) at(x, y int) int32 {
	return o.integral[y*(o.w+1)+x]
}

// free reports whether the bw x bh rectangle at (x, y) has no used pixel.
func (o *occupancy) free(x, y, bw, bh int) bool {
	return o.at(x+bw, y+bh)-o.at(x, y+bh)-o.at(x+bw, y)+o.at(x, y) == 0
}

// sample picks uniformly among all free top-left positions for a bw x bh
// box. It reports false when none exists.
func (o *occupancy) sample(bw, bh int, rng *rand.Rand) (int, int, bool) {
	if bw > o.w || bh > o.h || bw <= 0 || bh <= 0 {
		return 0, 0, false
	}
	hits := 0
	for y := 0; y <= o.h-bh; y++ {
		for x := 0; x <= o.w-bw; x++ {
			if o.free(x, y, bw, bh) {
				hits++
			}
		}
	}
	if hits == 0 {
		return 0, 0, false
	}

	pick := rng.Intn(hits)
	for y := 0; y <= o.h-bh; y++ {
		for x := 0; x <= o.w-bw; x++ {
			if !o.free(x, y, bw, bh) {
				continue
			}
			if pick == 0 {
				return x, y, true
			}
			pick--
		}
	}
	return 0, 0, false
}

// markFrom records every pixel of img inside r that differs from bg, then
// rebuilds the table from r's first row down.
func (o *occupancy) markFrom(img *image.RGBA, r image.Rectangle, bg [4]uint8) {
	r = r.Intersect(image.Rect(0, 0, o.w, o.h))
	if r.Empty() {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+4 : i+4]
			if p[0] != bg[0] || p[1] != bg[1] || p[2] != bg[2] || p[3] != bg[3] {
				o.used[y*o.w+x] = true
			}
		}
	}
	o.rebuild(r.Min.Y)
}

func (o *occupancy) rebuild(fromRow int) {
	stride := o.w + 1
	for y := fromRow; y < o.h; y++ {
		var rowSum int32
		for x := 0; x < o.w; x++ {
			if o.used[y*o.w+x] {
				rowSum++
			}
			o.integral[(y+1)*stride+x+1] = o.integral[y*stride+x+1] + rowSum
		}
	}
}
