package iforest

import "math"

// eulerGamma is the Euler-Mascheroni constant.
const eulerGamma = 0.5772156649

// AveragePathLength returns c(n), the expected path length of an unsuccessful
// search in a random binary search tree of n nodes:
//
//	c(n) = 2*H(n-1) - 2*(n-1)/n, with H(k) ~ ln(k) + gamma
//
// c(0) = c(1) = 0 and c(2) = 1.
func AveragePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	k := float64(n)
	return 2*(math.Log(k-1)+eulerGamma) - 2*(k-1)/k
}
