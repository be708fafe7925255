package ensemble

import "iter"

// Sweep yields the neighbor counts a sweep-capable detector is run with:
// start, start+step, ... while below min(rows-5, start+span). When that
// range is empty the sweep degenerates to the single value start.
// The sequence is lazy and can be ranged over any number of times.
func Sweep(start, rows, span, step int) iter.Seq[int] {
	if step < 1 {
		step = 1
	}
	end := min(rows-neighborMargin, start+span)
	return func(yield func(int) bool) {
		if start >= end {
			yield(start)
			return
		}
		for n := start; n < end; n += step {
			if !yield(n) {
				return
			}
		}
	}
}
