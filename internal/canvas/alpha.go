package canvas

import "image"

// AlphaBounds computes the tight bounding box of non-transparent pixels.
// threshold admits any reasonably visible pixel; bottomThreshold is a
// stricter cut applied to the bottom edge only, so soft anti-aliased halos
// below the subject do not inflate the box and break bottom anchoring.
// Returns false when the image has no pixel at or above threshold.
func AlphaBounds(img image.Image, threshold, bottomThreshold uint8) (image.Rectangle, bool) {
	b := img.Bounds()
	if b.Empty() {
		return image.Rectangle{}, false
	}

	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	maxYStrong := b.Min.Y - 1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			alpha := uint8(a >> 8)
			if alpha >= threshold {
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
			if alpha >= bottomThreshold && y > maxYStrong {
				maxYStrong = y
			}
		}
	}

	if maxX < b.Min.X || maxY < b.Min.Y {
		return image.Rectangle{}, false
	}

	// The bottom edge follows the stricter threshold when any pixel meets
	// it, trimming soft halos below the subject.
	bottom := maxY
	if maxYStrong >= b.Min.Y {
		bottom = maxYStrong
	}
	return image.Rect(minX, minY, maxX+1, bottom+1), true
}

// cropped returns the sub-image of img bounded by r when img supports
// sub-imaging, or img unchanged otherwise.
func cropped(img image.Image, r image.Rectangle) image.Image {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	return img
}
