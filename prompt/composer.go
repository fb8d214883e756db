// Package prompt assembles the per-slide prompt text sent to image backends.
//
// composer.go builds the final prompt from the slide, the series aesthetic,
// the consistency hints that apply to the slide and the style-family text
// guidance in styles.go. Everything here is pure.
package prompt

import (
	"fmt"
	"strings"

	"storyforge/story"
)

const qualityConstraints = `<AVOID_IN_IMAGE>
DO NOT generate any of these common AI failures:
- Blurry, illegible, misspelled, or distorted text
- Extra fingers, deformed hands, anatomical errors
- Watermarks, signatures, logos, or artist stamps
- Low quality, pixelated, JPEG artifacts, or compression noise
- Floating objects or disconnected/disembodied elements
- Duplicate body parts, merged figures, or conjoined limbs
- Text with gibberish characters or random letters
- Wrong aspect ratio, stretched, or squished content
- Uncanny valley faces or plastic-looking skin
- Overly busy backgrounds that compete with the subject
</AVOID_IN_IMAGE>`

const compositionRules = `<COMPOSITION_RULES>
1. FOCAL HIERARCHY: Main subject at center or rule-of-thirds intersection
2. TEXT ZONES: Reserve top 15% and bottom 20% for text with appropriate contrast
3. VISUAL FLOW: Guide eye from title to main visual to fact
4. BREATHING ROOM: Ensure text has clean background behind it (gradient, blur, or solid overlay)
5. BALANCE: No element should fight for attention, harmonious composition
</COMPOSITION_RULES>`

// Compose returns the prompt for one slide. consistency may be nil.
// Inputs are read only.
func Compose(slide story.Slide, plan *story.Plan, consistency *story.Consistency) string {
	aesthetic := plan.Aesthetic.WithDefaults()
	artStyle := aesthetic.ArtStyle

	var b strings.Builder
	b.WriteString("<IMAGE_GENERATION_BRIEF>\n")
	b.WriteString(StyleEnforcement(artStyle))
	fmt.Fprintf(&b, "TOPIC: %s\n", plan.Topic)
	fmt.Fprintf(&b, "FORMAT: %s\n", strings.ToUpper(plan.ImageFormat().Describe()))
	b.WriteString("QUALITY: Award-winning professional artwork, 8K resolution, museum-quality detail\n\n")

	b.WriteString(ConsistencySection(slide.Number, consistency))

	b.WriteString("<SCENE_DIRECTION>\n")
	fmt.Fprintf(&b, "Subject: %s\n", plan.Topic)
	fmt.Fprintf(&b, "Scene: %s\n", slide.VisualDescription)
	if slide.Mood != "" {
		fmt.Fprintf(&b, "Mood: %s\n", slide.Mood)
	}
	b.WriteString("</SCENE_DIRECTION>\n\n")

	b.WriteString("<VISUAL_STYLE_SYSTEM>\n")
	fmt.Fprintf(&b, "Art Direction: %s\n", artStyle)
	fmt.Fprintf(&b, "Color Palette: %s\n", aesthetic.ColorPalette)
	fmt.Fprintf(&b, "Lighting Design: %s\n", aesthetic.Lighting)
	fmt.Fprintf(&b, "Texture: %s\n", aesthetic.Texture)
	fmt.Fprintf(&b, "Background: %s\n", aesthetic.BackgroundStyle)
	b.WriteString("</VISUAL_STYLE_SYSTEM>\n\n")

	b.WriteString("<INTEGRATED_TEXT_ELEMENTS>\n")
	fmt.Fprintf(&b, "HEADLINE (Top Zone - 15%% of frame):\n%q\n\n", slide.Title)
	fmt.Fprintf(&b, "KEY FACT (Bottom Zone - 20%% of frame):\n%q\n\n", slide.KeyFact)
	b.WriteString(TextInstructions(artStyle, aesthetic.Typography))
	b.WriteString("\n</INTEGRATED_TEXT_ELEMENTS>\n\n")

	b.WriteString(compositionRules)
	b.WriteString("\n\n")
	b.WriteString(qualityStandards(artStyle))
	b.WriteString("\n\n")
	b.WriteString(qualityConstraints)
	b.WriteString("\n</IMAGE_GENERATION_BRIEF>\n\nGenerate this image now. English text only.")

	return b.String()
}

// ConsistencySection renders the VISUAL_CONSISTENCY block for a slide.
// Only characters and objects that appear on the slide are included.
// Returns "" when nothing applies.
func ConsistencySection(slideNumber int, consistency *story.Consistency) string {
	if consistency == nil {
		return ""
	}

	var lines []string
	for _, c := range consistency.CharactersOn(slideNumber) {
		lines = append(lines, fmt.Sprintf("CHARACTER - %s: %s", c.Name, c.Description))
	}
	for _, o := range consistency.ObjectsOn(slideNumber) {
		lines = append(lines, fmt.Sprintf("RECURRING ELEMENT - %s: %s", o.Name, o.Description))
	}
	env := consistency.Environment
	if env.PrimarySetting != "" {
		lines = append(lines, "SETTING: "+env.PrimarySetting)
	}
	if env.LightingConsistency != "" {
		lines = append(lines, "LIGHTING: "+env.LightingConsistency)
	}
	if env.ColorGrading != "" {
		lines = append(lines, "COLOR GRADING: "+env.ColorGrading)
	}

	if len(lines) == 0 {
		return ""
	}
	return "<VISUAL_CONSISTENCY>\nMaintain these consistent elements:\n" +
		strings.Join(lines, "\n") + "\n</VISUAL_CONSISTENCY>\n\n"
}

func qualityStandards(artStyle string) string {
	lead := "professional"
	if fields := strings.Fields(artStyle); len(fields) > 0 {
		lead = fields[0]
	}
	return "<QUALITY_STANDARDS>\n" +
		"MUST ACHIEVE:\n" +
		"- Text is perfectly spelled, crisp, and instantly readable\n" +
		"- Art style is unmistakably " + lead + "\n" +
		"- Colors are vibrant and screen-optimized (not muddy or dull)\n" +
		"- Composition feels intentional and professionally designed\n" +
		"- Image would make someone stop scrolling and screenshot\n\n" +
		"MUST AVOID:\n" +
		"- Blurry or illegible text\n" +
		"- Cluttered composition with competing focal points\n" +
		"- Generic stock photo aesthetic\n" +
		"- Text that blends into busy backgrounds\n" +
		"- Inconsistent style elements\n" +
		"</QUALITY_STANDARDS>"
}
