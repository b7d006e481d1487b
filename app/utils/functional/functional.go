package functional

func Map[T, V any](slice []T, f func(T) V) []V {
	result := make([]V, len(slice))
	for i, v := range slice {
		result[i] = f(v)
	}

	return result
}

func Filter[T any](slice []T, keep func(T) bool) []T {
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if keep(v) {
			result = append(result, v)
		}
	}
	return result
}

func Distinct[T comparable](slice []T) []T {
	seen := make(map[T]struct{})
	result := []T{}

	for _, v := range slice {
		if _, ok := seen[v]; !ok {
			result = append(result, v)
			seen[v] = struct{}{}
		}
	}
	return result
}

// Chunk splits slice into consecutive pieces of at most size elements.
func Chunk[T any](slice []T, size int) [][]T {
	if len(slice) == 0 {
		return [][]T{}
	}
	if size <= 0 {
		size = len(slice)
	}
	chunks := make([][]T, 0, (len(slice)+size-1)/size)
	for start := 0; start < len(slice); start += size {
		end := min(start+size, len(slice))
		chunks = append(chunks, slice[start:end])
	}
	return chunks
}

func ToSet[T comparable](slice []T) map[T]struct{} {
	set := make(map[T]struct{}, len(slice))
	for _, v := range slice {
		set[v] = struct{}{}
	}
	return set
}
