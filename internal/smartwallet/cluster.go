package smartwallet

import (
	"sort"

	"solana-meme-radar/internal/domain"
)

const (
	clusterK        = 3
	clusterMaxIters = 100
)

// Cluster assigns behavioral classes to profiles in place: k-means with
// k=3 over (avg ROI, total trades, win rate), each dimension min-max
// normalized. Centroids are labeled by ascending ROI: retail, sniper,
// insider. Seeding and iteration order are deterministic, so the same
// population always yields the same classes. High-volume-noise labels
// are preserved; those wallets are excluded from the population.
func Cluster(profiles []*domain.WalletProfile) {
	pop := make([]*domain.WalletProfile, 0, len(profiles))
	for _, p := range profiles {
		if p != nil && p.Class != domain.WalletHighVolumeNoise {
			pop = append(pop, p)
		}
	}
	if len(pop) == 0 {
		return
	}
	sort.Slice(pop, func(i, j int) bool {
		if pop[i].AvgROI != pop[j].AvgROI {
			return pop[i].AvgROI < pop[j].AvgROI
		}
		return pop[i].Address < pop[j].Address
	})

	// Too few wallets for three clusters: rank by ROI directly.
	if len(pop) < clusterK {
		pop[0].Class = domain.WalletRetail
		for _, p := range pop[1:] {
			p.Class = domain.WalletSniper
		}
		return
	}

	points := normalize(pop)

	// Seed from the ROI-sorted population: low, middle, high.
	centroids := [][3]float64{
		points[0],
		points[len(points)/2],
		points[len(points)-1],
	}

	assign := make([]int, len(points))
	for iter := 0; iter < clusterMaxIters; iter++ {
		changed := false
		for i, pt := range points {
			best := nearest(pt, centroids)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		var sums [clusterK][3]float64
		var counts [clusterK]int
		for i, pt := range points {
			c := assign[i]
			for d := 0; d < 3; d++ {
				sums[c][d] += pt[d]
			}
			counts[c]++
		}
		for c := 0; c < clusterK; c++ {
			if counts[c] == 0 {
				continue // empty cluster keeps its centroid
			}
			for d := 0; d < 3; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	// Rank clusters by the ROI dimension of their centroid; ties keep
	// seed order, which is already ROI-ascending.
	order := []int{0, 1, 2}
	sort.SliceStable(order, func(a, b int) bool {
		return centroids[order[a]][0] < centroids[order[b]][0]
	})
	classOf := make(map[int]domain.WalletClass, clusterK)
	tiers := []domain.WalletClass{domain.WalletRetail, domain.WalletSniper, domain.WalletInsider}
	for rank, c := range order {
		classOf[c] = tiers[rank]
	}

	for i, p := range pop {
		p.Class = classOf[assign[i]]
	}
}

// normalize maps each profile to a point in [0,1]^3. A flat dimension
// collapses to zeros so it cannot dominate the distance.
func normalize(pop []*domain.WalletProfile) [][3]float64 {
	lo := [3]float64{pop[0].AvgROI, float64(pop[0].TotalTrades), pop[0].WinRate}
	hi := lo
	for _, p := range pop {
		dims := [3]float64{p.AvgROI, float64(p.TotalTrades), p.WinRate}
		for d := 0; d < 3; d++ {
			if dims[d] < lo[d] {
				lo[d] = dims[d]
			}
			if dims[d] > hi[d] {
				hi[d] = dims[d]
			}
		}
	}

	points := make([][3]float64, len(pop))
	for i, p := range pop {
		dims := [3]float64{p.AvgROI, float64(p.TotalTrades), p.WinRate}
		for d := 0; d < 3; d++ {
			if span := hi[d] - lo[d]; span > 0 {
				points[i][d] = (dims[d] - lo[d]) / span
			}
		}
	}
	return points
}

// nearest returns the index of the closest centroid by squared Euclidean
// distance, lowest index winning ties.
func nearest(pt [3]float64, centroids [][3]float64) int {
	best, bestDist := 0, -1.0
	for c, ct := range centroids {
		dist := 0.0
		for d := 0; d < 3; d++ {
			diff := pt[d] - ct[d]
			dist += diff * diff
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}
