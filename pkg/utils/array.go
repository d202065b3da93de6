package utils

// Returns the elements of a sequence for which the predicate holds
func Filter[T any](input []T, predicate func(T) bool) []T {
	output := make([]T, 0, len(input))

	for _, value := range input {
		if predicate(value) {
			output = append(output, value)
		}
	}

	return output
}

// Returns a shallow copy of a slice. A nil input stays nil.
func Clone[T any](input []T) []T {
	if input == nil {
		return nil
	}

	return append(make([]T, 0, len(input)), input...)
}
