package protection

// Evaluation is the outcome of comparing a window count with its limit.
type Evaluation struct {
	Count    int
	Limit    int
	Exceeded bool
}

// Evaluate reports a breach once count meets or exceeds a positive limit.
func Evaluate(count, limit int) Evaluation {
	return Evaluation{
		Count:    count,
		Limit:    limit,
		Exceeded: limit > 0 && count >= limit,
	}
}
