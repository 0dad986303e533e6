// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean" suggestion.
const maxSuggestDistance = 3

// closest returns the candidate nearest to typed, or "" when none is
// within maxSuggestDistance. Ties go to the earlier candidate.
func closest(typed string, candidates []string) string {
	best, bestDistance := "", maxSuggestDistance+1
	for _, candidate := range candidates {
		if distance := levenshtein(typed, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

// firstUnknownFlag returns the first flag in args that flagSet does not
// define, stripped of dashes and any "=value". Arguments after "--" are
// positional.
func firstUnknownFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if arg == "--" {
			return ""
		}
		name, isFlag := strings.CutPrefix(arg, "-")
		if !isFlag || name == "" {
			continue
		}
		name, _, _ = strings.Cut(strings.TrimPrefix(name, "-"), "=")
		if flagSet.Lookup(name) != nil {
			continue
		}
		if len(name) == 1 && flagSet.ShorthandLookup(name) != nil {
			continue
		}
		return name
	}
	return ""
}

func flagNames(flagSet *pflag.FlagSet) []string {
	var names []string
	flagSet.VisitAll(func(f *pflag.Flag) { names = append(names, f.Name) })
	return names
}

// levenshtein is the edit distance between a and b, counted in runes.
func levenshtein(a, b string) int {
	long, short := []rune(a), []rune(b)
	if len(long) < len(short) {
		long, short = short, long
	}

	previous := make([]int, len(short)+1)
	current := make([]int, len(short)+1)
	for j := range previous {
		previous[j] = j
	}
	for i, l := range long {
		current[0] = i + 1
		for j, s := range short {
			substitute := previous[j]
			if l != s {
				substitute++
			}
			current[j+1] = min(previous[j+1]+1, current[j]+1, substitute)
		}
		previous, current = current, previous
	}
	return previous[len(short)]
}
