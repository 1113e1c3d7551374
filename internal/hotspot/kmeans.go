package hotspot

import "math"

// feature is one standardized (lat, lon, value) point.
type feature [3]float64

// Partition is the outcome of one clustering run.
type Partition struct {
	K          int
	Iterations int
	Converged  bool
	// Assignments maps each input point to its cluster index.
	Assignments []int
	// Sizes holds the member count of each cluster.
	Sizes []int
}

// standardize z-scores each feature column. Columns with zero spread are
// centered but left unscaled.
func standardize(raw []feature) []feature {
	n := float64(len(raw))
	var mean, std feature
	for _, f := range raw {
		for d := range f {
			mean[d] += f[d]
		}
	}
	for d := range mean {
		mean[d] /= n
	}
	for _, f := range raw {
		for d := range f {
			std[d] += (f[d] - mean[d]) * (f[d] - mean[d])
		}
	}
	for d := range std {
		std[d] = math.Sqrt(std[d] / n)
		if std[d] == 0 {
			std[d] = 1
		}
	}

	out := make([]feature, len(raw))
	for i, f := range raw {
		for d := range f {
			out[i][d] = (f[d] - mean[d]) / std[d]
		}
	}
	return out
}

func dist2(a, b feature) float64 {
	var s float64
	for d := range a {
		s += (a[d] - b[d]) * (a[d] - b[d])
	}
	return s
}

func distinct(points []feature) int {
	seen := make(map[feature]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// seed picks k initial centroids deterministically: the point with the
// highest value first, then repeatedly the point farthest from every chosen
// centroid. Ties go to the lowest input index.
func seed(points []feature, k int) []feature {
	first := 0
	for i, p := range points {
		if p[2] > points[first][2] {
			first = i
		}
	}
	centroids := []feature{points[first]}

	nearest := make([]float64, len(points))
	for i, p := range points {
		nearest[i] = dist2(p, centroids[0])
	}
	for len(centroids) < k {
		best := -1
		for i := range points {
			if nearest[i] > 0 && (best < 0 || nearest[i] > nearest[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		c := points[best]
		centroids = append(centroids, c)
		for i, p := range points {
			nearest[i] = math.Min(nearest[i], dist2(p, c))
		}
	}
	return centroids
}

// kmeans runs Lloyd iterations until assignments stop changing or maxIter is
// reached. Equidistant points go to the lowest centroid index; an empty
// cluster keeps its previous centroid.
func kmeans(points []feature, k, maxIter int) Partition {
	centroids := seed(points, k)
	k = len(centroids)
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	p := Partition{K: k}
	for p.Iterations < maxIter {
		p.Iterations++
		changed := false
		for i, pt := range points {
			best, bestD := 0, math.Inf(1)
			for c, cen := range centroids {
				if d := dist2(pt, cen); d < bestD {
					best, bestD = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			p.Converged = true
			break
		}

		sums := make([]feature, k)
		counts := make([]int, k)
		for i, pt := range points {
			c := assign[i]
			counts[c]++
			for d := range pt {
				sums[c][d] += pt[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	p.Assignments = assign
	p.Sizes = make([]int, k)
	for _, c := range assign {
		p.Sizes[c]++
	}
	return p
}
