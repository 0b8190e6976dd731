package tokenregistry

import "slices"

// Patcher constructs a new state for the token system by applying a diff to a previous state.
// Token contains no pointer fields, so copies are safe to share.
func Patcher(prevState []Token, diff TokenSystemDiff) ([]Token, error) {
	newStateMap := make(map[uint64]Token, len(prevState))
	for _, token := range prevState {
		newStateMap[token.ID] = token
	}

	for _, id := range diff.Deletions {
		delete(newStateMap, id)
	}
	for _, updated := range diff.Updates {
		newStateMap[updated.ID] = updated
	}
	for _, added := range diff.Additions {
		newStateMap[added.ID] = added
	}

	finalState := make([]Token, 0, len(newStateMap))
	for _, token := range newStateMap {
		finalState = append(finalState, token)
	}
	slices.SortFunc(finalState, compareTokens)

	return finalState, nil
}
