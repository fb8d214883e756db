package pipeline

import "fmt"

// Assemble orders results by slide number into a slice of length
// slideCount, where index i holds slide i+1. A slot nobody reported on
// gets ErrNoResult; when a slide is reported twice the first report wins.
// Results for slide numbers outside [1, slideCount] are dropped.
func Assemble(results []Result, slideCount int) []Result {
	if slideCount <= 0 {
		return nil
	}
	out := make([]Result, slideCount)
	filled := make([]bool, slideCount)

	for _, r := range results {
		i := r.SlideNumber - 1
		if i < 0 || i >= slideCount || filled[i] {
			continue
		}
		out[i] = r
		filled[i] = true
	}

	for i := range out {
		if !filled[i] {
			out[i] = failed(i+1, fmt.Errorf("%w %d", ErrNoResult, i+1))
		}
	}
	return out
}
