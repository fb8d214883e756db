package story

// Element is a recurring character or object, with the slides it
// appears in.
type Element struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	AppearsIn   []int  `json:"appears_in_slides" yaml:"appears_in_slides"`
}

// AppearsOn reports whether the element is present on the given slide.
func (e Element) AppearsOn(slide int) bool {
	for _, n := range e.AppearsIn {
		if n == slide {
			return true
		}
	}
	return false
}

// Environment holds setting hints shared across the whole series.
type Environment struct {
	PrimarySetting      string `json:"primary_setting" yaml:"primary_setting"`
	LightingConsistency string `json:"lighting_consistency" yaml:"lighting_consistency"`
	ColorGrading        string `json:"color_grading" yaml:"color_grading"`
}

// Consistency is the optional cross-slide visual continuity data produced
// by the character analysis collaborator. It is read-only.
type Consistency struct {
	Characters  []Element   `json:"characters" yaml:"characters"`
	Objects     []Element   `json:"objects" yaml:"objects"`
	Environment Environment `json:"environment" yaml:"environment"`
}

// CharactersOn returns the characters that appear on a slide.
func (c *Consistency) CharactersOn(slide int) []Element {
	if c == nil {
		return nil
	}
	return filterElements(c.Characters, slide)
}

// ObjectsOn returns the recurring objects that appear on a slide.
func (c *Consistency) ObjectsOn(slide int) []Element {
	if c == nil {
		return nil
	}
	return filterElements(c.Objects, slide)
}

func filterElements(elements []Element, slide int) []Element {
	var out []Element
	for _, e := range elements {
		if e.AppearsOn(slide) {
			out = append(out, e)
		}
	}
	return out
}
