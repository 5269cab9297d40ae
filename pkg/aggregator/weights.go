package aggregator

import "tc.com/price-oracle/pkg/sources"

// NormalizeWeights returns a weight per observed source, summing to 1.
//
// Sources with an explicit weight keep their relative share. Sources missing
// an entry split the remainder up to 1 equally; if the explicit weights
// already reach 1 or more, unweighted sources receive the mean explicit
// weight instead. The final map is scaled so all entries sum to exactly 1.
func NormalizeWeights(observations []sources.Price, weights map[string]float64) map[string]float64 {
	if len(observations) == 0 {
		return nil
	}

	assigned := make(map[string]float64, len(observations))
	explicitSum := 0.0
	explicitCount := 0
	var unweighted []string

	for _, obs := range observations {
		if w, ok := weights[obs.Source]; ok && w > 0 {
			assigned[obs.Source] = w
			explicitSum += w
			explicitCount++
		} else {
			unweighted = append(unweighted, obs.Source)
		}
	}

	if len(unweighted) > 0 {
		share := 1.0
		if remainder := 1.0 - explicitSum; remainder > 0 {
			share = remainder / float64(len(unweighted))
		} else if explicitCount > 0 {
			share = explicitSum / float64(explicitCount)
		}
		for _, name := range unweighted {
			assigned[name] = share
		}
	}

	total := 0.0
	for _, w := range assigned {
		total += w
	}
	if total == 0 {
		// All zero weights, fall back to equal shares
		equal := 1.0 / float64(len(assigned))
		for name := range assigned {
			assigned[name] = equal
		}
		return assigned
	}

	for name, w := range assigned {
		assigned[name] = w / total
	}
	return assigned
}
