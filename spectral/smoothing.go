package spectral

// DefaultSmoothingWindow is the moving-average width used by Smooth.
const DefaultSmoothingWindow = 5

// Smooth applies a 5-point moving average. Points within two samples of
// either edge are returned unchanged, so the output has the input's length.
func Smooth(curve Curve) Curve {
	return SmoothWindow(curve, DefaultSmoothingWindow)
}

// SmoothWindow is Smooth with a caller-chosen window. Even widths are rounded
// up to the next odd width first; a width that is still below 3 returns a
// copy of the input.
func SmoothWindow(curve Curve, window int) Curve {
	out := curve.Clone()
	if window%2 == 0 {
		window++
	}
	if window < 3 {
		return out
	}
	half := window / 2

	for i := half; i < len(curve)-half; i++ {
		var sum float64
		for j := i - half; j <= i+half; j++ {
			sum += curve[j].Absorbance
		}
		out[i].Absorbance = sum / float64(window)
	}
	return out
}
