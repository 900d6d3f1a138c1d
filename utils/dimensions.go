package utils

import "math"

// ScaleDimensions computes output (w, h) preserving aspect ratio.
// Pass 0 for either axis to calculate it from the other.
func ScaleDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	if targetW == 0 {
		ratio := float64(targetH) / float64(srcH)
		return atLeastOne(round(float64(srcW) * ratio)), targetH
	}
	if targetH == 0 {
		ratio := float64(targetW) / float64(srcW)
		return targetW, atLeastOne(round(float64(srcH) * ratio))
	}
	return targetW, targetH
}

// IsLandscape classifies square images as landscape.
func IsLandscape(w, h int) bool { return w >= h }

// ScaleToFloor upscales (w, h) by a single factor so both axes reach the
// floor.  Dimensions already at or above the floor are returned unchanged.
func ScaleToFloor(w, h, floorW, floorH int) (int, int) {
	if w <= 0 || h <= 0 || (w >= floorW && h >= floorH) {
		return w, h
	}
	scale := math.Max(float64(floorW)/float64(w), float64(floorH)/float64(h))
	return atLeastOne(round(float64(w) * scale)), atLeastOne(round(float64(h) * scale))
}

// FitWithin downscales (w, h) so neither axis exceeds the box, preserving
// aspect ratio.  Dimensions that already fit are returned unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := min(atLeastOne(round(float64(w)*scale)), maxW)
	nh := min(atLeastOne(round(float64(h)*scale)), maxH)
	return nw, nh
}

// MaxWebPDimension is the largest edge a WebP bitstream can carry.
const MaxWebPDimension = 16383

// ThumbnailDimensions fits (w, h) into a maxSize square and then, if the
// shorter side ended up under minSize, rescales so it equals minSize.  Both
// passes scale from the source so the aspect ratio drifts by at most one
// pixel of rounding.  The minSize rescale never enlarges past the source (or
// past the fit pass, if that already upscaled), and no edge exceeds
// MaxWebPDimension, so extreme strips keep a short side below minSize.
func ThumbnailDimensions(w, h, maxSize, minSize int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	short, long := float64(min(w, h)), float64(max(w, h))
	fit := float64(maxSize) / long
	scale := fit
	if round(short*fit) < minSize {
		scale = math.Min(float64(minSize)/short, math.Max(fit, 1))
	}
	scale = math.Min(scale, MaxWebPDimension/long)
	return atLeastOne(round(float64(w) * scale)), atLeastOne(round(float64(h) * scale))
}

func round(f float64) int { return int(math.Round(f)) }

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
