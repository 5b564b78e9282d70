// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance still offered as a
// suggestion.
const maxSuggestDistance = 3

// suggestCommand returns the subcommand name closest to unknown, or "".
func suggestCommand(unknown string, commands []*Command) string {
	bestName := ""
	bestDistance := maxSuggestDistance + 1
	for _, command := range commands {
		if distance := levenshtein(unknown, command.Name); distance < bestDistance {
			bestDistance = distance
			bestName = command.Name
		}
	}
	return bestName
}

// suggestFlag finds the first undefined flag in args and returns the
// closest defined flag with its dashes, or "".
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			continue
		}

		name := strings.TrimLeft(arg, "-")
		name, _, _ = strings.Cut(name, "=")
		if !strings.HasPrefix(arg, "--") {
			if flagSet.ShorthandLookup(name[:1]) != nil {
				continue
			}
		} else if flagSet.Lookup(name) != nil {
			continue
		}

		bestName := ""
		bestDistance := maxSuggestDistance + 1
		flagSet.VisitAll(func(candidate *pflag.Flag) {
			if distance := levenshtein(name, candidate.Name); distance < bestDistance {
				bestDistance = distance
				bestName = candidate.Name
			}
		})
		if bestName == "" {
			return ""
		}
		return "--" + bestName
	}
	return ""
}

// levenshtein computes the edit distance between a and b using a
// single row of the distance matrix.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	previous := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}
	for j := 1; j <= len(b); j++ {
		current := make([]int, len(a)+1)
		current[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}
		previous = current
	}
	return previous[len(a)]
}
