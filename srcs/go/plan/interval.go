package plan

// Interval represents the interval of integers [Begin, End)
type Interval struct {
	Begin int
	End   int
}

func (i Interval) Len() int { return i.End - i.Begin }

// DivideRoundUp returns ceil(x/2).
func DivideRoundUp(x int) int { return x/2 + x%2 }

// DivideRoundDown returns floor(x/2).
func DivideRoundDown(x int) int { return x / 2 }

// Halve splits i into a first part of DivideRoundUp(len) elements and a
// second part of DivideRoundDown(len) elements. Both ends of a halving
// exchange compute the same split without negotiating.
func (i Interval) Halve() (Interval, Interval) {
	mid := i.Begin + DivideRoundUp(i.Len())
	return Interval{Begin: i.Begin, End: mid}, Interval{Begin: mid, End: i.End}
}

// Union returns the smallest interval covering i and j, which are expected to be adjacent.
func (i Interval) Union(j Interval) Interval {
	return Interval{Begin: min(i.Begin, j.Begin), End: max(i.End, j.End)}
}
