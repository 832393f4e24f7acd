package text

// Bias disambiguates positions that sit on a transform boundary. Left
// resolves to the side before the boundary, Right to the side after it.
type Bias int

const (
	Left Bias = iota
	Right
)

func (b Bias) String() string {
	if b == Left {
		return "left"
	}
	return "right"
}

// Invert returns the opposite bias.
func (b Bias) Invert() Bias {
	if b == Left {
		return Right
	}
	return Left
}
