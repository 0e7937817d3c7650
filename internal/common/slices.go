package common

// Unique returns the elements of s in first-seen order with duplicates removed.
func Unique[S ~[]E, E comparable](s S) S {
	if len(s) == 0 {
		return s
	}

	seen := make(map[E]struct{}, len(s))
	out := make(S, 0, len(s))

	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}

// Concat returns a new slice holding the elements of every input in order.
// The inputs are never aliased by the result.
func Concat[S ~[]E, E any](parts ...S) S {
	n := 0
	for _, p := range parts {
		n += len(p)
	}

	out := make(S, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}

	return out
}
