// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package cli

// suggestCommand returns the name of the subcommand closest to input,
// or "" when nothing is close enough to be a plausible typo.
func suggestCommand(input string, subcommands []*Command) string {
	const maxDistance = 2

	best := ""
	bestDistance := maxDistance + 1
	for _, sub := range subcommands {
		distance := editDistance(input, sub.Name)
		if distance < bestDistance {
			best = sub.Name
			bestDistance = distance
		}
	}
	return best
}

// editDistance computes the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}

	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, current[j-1]+1, previous[j-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(b)]
}
