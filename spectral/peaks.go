package spectral

// Peak Detection
//
// A point is a candidate when its absorbance is strictly greater than both
// neighbours and greater than the caller's minimum height. Candidates are
// accepted in scan order (ascending wavelength); a candidate closer than the
// minimum distance to an already accepted peak is dropped, so the first peak
// found in a cluster wins even if a later one is taller.
//
// Width is measured at half the apex intensity by walking outward from the
// apex. A side that never falls to half height contributes nothing, which
// keeps skirts running off the edge of the data from being extrapolated.

import "sort"

// FindPeaks returns the accepted peaks in scan order.
func FindPeaks(curve Curve, minHeight, minDistanceNm float64) []Peak {
	peaks := []Peak{}
	if len(curve) < 3 {
		return peaks
	}

	for i := 1; i < len(curve)-1; i++ {
		current := curve[i].Absorbance
		if current <= curve[i-1].Absorbance || current <= curve[i+1].Absorbance {
			continue
		}
		if current <= minHeight {
			continue
		}
		if tooClose(peaks, curve[i].Wavelength, minDistanceNm) {
			continue
		}

		peaks = append(peaks, Peak{
			Wavelength: curve[i].Wavelength,
			Intensity:  current,
			Width:      halfMaxWidth(curve, i),
		})
	}

	return peaks
}

func tooClose(accepted []Peak, wavelength, minDistance float64) bool {
	for _, p := range accepted {
		d := p.Wavelength - wavelength
		if d < 0 {
			d = -d
		}
		if d < minDistance {
			return true
		}
	}
	return false
}

func halfMaxWidth(curve Curve, apex int) float64 {
	half := curve[apex].Absorbance / 2

	left := apex
	for j := apex - 1; j >= 0; j-- {
		if curve[j].Absorbance <= half {
			left = j
			break
		}
	}

	right := apex
	for j := apex + 1; j < len(curve); j++ {
		if curve[j].Absorbance <= half {
			right = j
			break
		}
	}

	return curve[right].Wavelength - curve[left].Wavelength
}

// SortByIntensity orders peaks by descending intensity, keeping scan order for ties.
func SortByIntensity(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})
}

// SortByWavelength orders peaks by ascending wavelength.
func SortByWavelength(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Wavelength < peaks[j].Wavelength
	})
}

func Wavelengths(peaks []Peak) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = p.Wavelength
	}
	return out
}
