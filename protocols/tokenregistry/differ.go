package tokenregistry

import "slices"

type TokenSystemDiff struct {
	Additions []Token  `json:"additions,omitempty"`
	Updates   []Token  `json:"updates,omitempty"`
	Deletions []uint64 `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d TokenSystemDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Differ calculates the difference between two states of the token system.
// A token whose metadata changed under the same ID is reported as an update.
func Differ(old, new []Token) TokenSystemDiff {
	oldTokensMap := make(map[uint64]Token, len(old))
	for _, token := range old {
		oldTokensMap[token.ID] = token
	}

	newTokensMap := make(map[uint64]Token, len(new))
	for _, token := range new {
		newTokensMap[token.ID] = token
	}

	var diff TokenSystemDiff
	for newID, newToken := range newTokensMap {
		oldToken, exists := oldTokensMap[newID]
		if !exists {
			diff.Additions = append(diff.Additions, newToken)
		} else if oldToken != newToken {
			diff.Updates = append(diff.Updates, newToken)
		}
	}

	for oldID := range oldTokensMap {
		if _, exists := newTokensMap[oldID]; !exists {
			diff.Deletions = append(diff.Deletions, oldID)
		}
	}

	slices.SortFunc(diff.Additions, compareTokens)
	slices.SortFunc(diff.Updates, compareTokens)
	slices.Sort(diff.Deletions)
	return diff
}

func compareTokens(a, b Token) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
