package training

import (
	"math"
	"math/rand/v2"
	"sort"
)

// stratifiedSplit partitions row indices into (rest, held) so that each class
// contributes round(ratio * classSize) rows to held, with at least one row per
// class on each side whenever the class has two or more rows. Both outputs are
// sorted, and the result depends only on labels, ratio and seed.
func stratifiedSplit(labels []bool, ratio float64, seed uint64) (rest, held []int) {
	var pos, neg []int
	for i, l := range labels {
		if l {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}

	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	for _, class := range [][]int{neg, pos} {
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })

		k := int(math.Round(ratio * float64(len(class))))
		if len(class) >= 2 {
			k = max(1, min(k, len(class)-1))
		}
		held = append(held, class[:k]...)
		rest = append(rest, class[k:]...)
	}

	sort.Ints(rest)
	sort.Ints(held)
	return rest, held
}

func gatherRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func gatherLabels(y []bool, idx []int) []bool {
	out := make([]bool, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
