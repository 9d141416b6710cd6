package images

import "image"

// ClampRect intersects rect with a cols x rows frame.
//
// Returns:
//   - image.Rectangle: The clamped box.
//   - bool: false when nothing of the box lies inside the frame.
func ClampRect(rect image.Rectangle, cols, rows int) (image.Rectangle, bool) {
	clamped := rect.Canon().Intersect(image.Rect(0, 0, cols, rows))
	if clamped.Empty() {
		return image.Rectangle{}, false
	}
	return clamped, true
}
