package domain

// IntSource is the subset of *rand.Rand used for shuffling.
type IntSource interface {
	Intn(n int) int
}

// NewPermutation returns a uniformly random permutation of [0, n) using Fisher-Yates.
func NewPermutation(rng IntSource, n int) ([]int, error) {
	if n <= 0 {
		return nil, ErrInvalidOptionCount
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}

// CheckPermutation reports whether perm is a bijection on [0, n).
func CheckPermutation(perm []int, n int) error {
	if n <= 0 {
		return ErrInvalidOptionCount
	}
	if len(perm) != n {
		return ErrInvalidPermutation
	}
	seen := make([]bool, n)
	for _, idx := range perm {
		if idx < 0 || idx >= n || seen[idx] {
			return ErrInvalidPermutation
		}
		seen[idx] = true
	}
	return nil
}

// ApplyShuffle reorders options so that display[i] = options[perm[i]].
func ApplyShuffle(options []string, perm []int) ([]string, error) {
	if err := CheckPermutation(perm, len(options)); err != nil {
		return nil, err
	}
	display := make([]string, len(perm))
	for i, idx := range perm {
		display[i] = options[idx]
	}
	return display, nil
}

// OriginalIndex maps a displayed position back to the original option index.
func OriginalIndex(displayIndex int, perm []int) (int, error) {
	if displayIndex < 0 || displayIndex >= len(perm) {
		return 0, ErrDisplayIndexOutOfRange
	}
	return perm[displayIndex], nil
}

// ValidateAnswer reports whether the displayed selection maps to the correct original option.
func ValidateAnswer(displayIndex int, perm []int, correctOriginal int) (bool, error) {
	original, err := OriginalIndex(displayIndex, perm)
	if err != nil {
		return false, err
	}
	return original == correctOriginal, nil
}

// DisplayIndexOf returns where an original option is shown, or -1.
func DisplayIndexOf(originalIndex int, perm []int) int {
	for i, idx := range perm {
		if idx == originalIndex {
			return i
		}
	}
	return -1
}
