package stats

// FitVectorGT reports whether v1 beats v2: no component worse, and better
// in total. Vectors of different lengths never compare.
func FitVectorGT(v1, v2 []float64) bool {
	if v2 == nil || len(v1) != len(v2) {
		return false
	}
	acc := 0.0
	for i := range v1 {
		if v1[i] < v2[i] {
			return false
		}
		acc += v1[i] - v2[i]
	}
	return acc > 0
}

func FitVectorLT(v1, v2 []float64) bool {
	if v2 == nil || len(v1) != len(v2) {
		return false
	}
	acc := 0.0
	for i := range v1 {
		if v1[i] > v2[i] {
			return false
		}
		acc += v1[i] - v2[i]
	}
	return acc < 0
}

func FitVectorEQ(v1, v2 []float64) bool {
	if v2 == nil || len(v1) != len(v2) {
		return false
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			return false
		}
	}
	return true
}
