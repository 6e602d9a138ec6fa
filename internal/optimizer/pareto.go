package optimizer

// dominates reports whether loss vector a Pareto-dominates b.
func dominates(a, b []float64) bool {
	strictly := false

	for i := range a {
		if a[i] > b[i] {
			return false
		}

		if a[i] < b[i] {
			strictly = true
		}
	}

	return strictly
}

// nonDominatedRanks assigns each loss vector its front index, 0 being the Pareto front.
func nonDominatedRanks(losses [][]float64) []int {
	n := len(losses)
	ranks := make([]int, n)
	dominatedBy := make([]int, n)
	dominating := make([][]int, n)

	for i := range n {
		for j := range n {
			if i == j {
				continue
			}

			if dominates(losses[i], losses[j]) {
				dominating[i] = append(dominating[i], j)
			} else if dominates(losses[j], losses[i]) {
				dominatedBy[i]++
			}
		}
	}

	var current []int

	for i := range n {
		if dominatedBy[i] == 0 {
			current = append(current, i)
		}
	}

	rank := 0
	for len(current) > 0 {
		var next []int

		for _, i := range current {
			ranks[i] = rank

			for _, j := range dominating[i] {
				dominatedBy[j]--
				if dominatedBy[j] == 0 {
					next = append(next, j)
				}
			}
		}

		current = next
		rank++
	}

	return ranks
}
