package domain

// MaxPoints is awarded for an instant correct answer.
const MaxPoints = 1000

// Points is the speed bonus for answering after elapsed of limit seconds.
// It is never negative and is 0 once elapsed reaches the limit.
func Points(elapsed, limit int) int {
	if limit <= 0 || elapsed >= limit {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return (limit - elapsed) * MaxPoints / limit
}
