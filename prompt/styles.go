package prompt

import (
	"fmt"
	"strings"
)

// styleFamily pairs art-style keywords with the text-rendering guidance
// used when any keyword appears in the plan's art style.
type styleFamily struct {
	name     string
	keywords []string
	title    string
	fact     string
	effects  string
	feel     string
}

// styleFamilies is evaluated in order; the first family with a matching
// keyword wins.
var styleFamilies = []styleFamily{
	{
		name:     "Anime/Manga",
		keywords: []string{"anime", "manga", "japanese", "ghibli", "shinkai"},
		title:    "Bold Japanese manga-style impact text, dynamic angle, with speed lines or glow effects",
		fact:     "Clean white text in a stylized text box with rounded corners",
		effects:  "Add dramatic manga effects: sparkles, motion lines, emphasis marks",
		feel:     "Text should feel like it's from a professional anime poster or Studio Ghibli film",
	},
	{
		name:     "Comic Book/Pop Art",
		keywords: []string{"comic", "pop art", "marvel", "dc", "warhol", "lichtenstein"},
		title:    "BOLD ALL-CAPS comic book lettering with thick black outline, halftone dots behind",
		fact:     "Speech bubble or caption box style, bold sans-serif",
		effects:  "Add comic effects: Ben-Day dots, action words, bold outlines",
		feel:     "Text should feel like classic Marvel/DC comics or Roy Lichtenstein art",
	},
	{
		name:     "Cyberpunk/Neon",
		keywords: []string{"cyberpunk", "neon", "futuristic", "holographic", "tech", "digital", "blade runner", "ghost in the shell"},
		title:    "Glowing neon text with electric blue/pink glow, holographic effect",
		fact:     "Digital display style text, like a futuristic HUD interface",
		effects:  "Add tech elements: glitch effects, scan lines, digital noise",
		feel:     "Text should feel like Blade Runner or Ghost in the Shell",
	},
	{
		name:     "Vintage/Retro",
		keywords: []string{"vintage", "retro", "classic", "old", "1950", "1960", "nostalgia", "antique"},
		title:    "Classic vintage typography, serif fonts, aged paper texture",
		fact:     "Typewriter style or old newspaper headline font",
		effects:  "Add vintage elements: worn edges, sepia tones, film grain",
		feel:     "Text should feel like a 1950s advertisement or old movie poster",
	},
	{
		name:     "Minimal/Corporate",
		keywords: []string{"minimal", "clean", "corporate", "premium", "business", "professional", "bloomberg", "fortune"},
		title:    "Ultra-clean sans-serif, lots of whitespace, elegant positioning",
		fact:     "Thin, sophisticated typography with perfect kerning",
		effects:  "Keep text simple and uncluttered, no effects",
		feel:     "Text should feel like high-end magazine, Apple design, or Bloomberg",
	},
	{
		name:     "Artistic/Editorial",
		keywords: []string{"watercolor", "painting", "artistic", "brush", "editorial", "kinfolk"},
		title:    "Hand-lettered brush script, flowing and artistic",
		fact:     "Elegant serif font that complements the painterly style",
		effects:  "Text should blend with the artwork, feel hand-crafted and premium",
		feel:     "Add subtle artistic touches that complement the style",
	},
	{
		name:     "Cinematic/Sports",
		keywords: []string{"cinematic", "film", "photo", "realistic", "dramatic", "sports", "dynamic", "motion", "espn", "nike", "national geographic"},
		title:    "Bold movie poster typography, strong contrast, slight 3D depth",
		fact:     "Clean white text at bottom with subtle gradient overlay for readability",
		effects:  "Professional film credits or sports broadcast style positioning",
		feel:     "Text should feel like a Hollywood movie poster or ESPN graphic",
	},
	{
		name:     "Fantasy/Magical",
		keywords: []string{"fantasy", "magical", "ethereal", "mystical", "elvish", "lord of the rings", "enchanted"},
		title:    "Ornate fantasy lettering with magical glow, elvish or mystical feel",
		fact:     "Elegant text on a semi-transparent magical scroll or banner",
		effects:  "Add magical particles, sparkles, or runes around text",
		feel:     "Text should feel like Lord of the Rings or fantasy book cover",
	},
	{
		name:     "Sacred/Spiritual",
		keywords: []string{"sacred", "spiritual", "religious", "golden", "divine", "holy", "temple", "renaissance"},
		title:    "Elegant gold-embossed lettering with divine glow, ornate serifs",
		fact:     "Classical text on parchment-style banner or sacred scroll",
		effects:  "Add subtle golden light rays, sacred geometry, or divine particles",
		feel:     "Text should feel like illuminated manuscripts or temple inscriptions",
	},
	{
		name:     "Cosmic/Space",
		keywords: []string{"cosmic", "space", "stellar", "galaxy", "nebula", "interstellar", "cosmos"},
		title:    "Glowing stellar text with cosmic particle effects, floating in space",
		fact:     "Clean futuristic font with subtle starlight glow",
		effects:  "Add space elements: star particles, nebula wisps, cosmic dust",
		feel:     "Text should feel like Interstellar or Cosmos documentary",
	},
	{
		name:     "3D/Animated",
		keywords: []string{"3d", "pixar", "animated", "playful", "cartoon", "nintendo", "render"},
		title:    "Bold 3D extruded text with colorful shadows, playful and fun",
		fact:     "Rounded, friendly font like Pixar movie titles",
		effects:  "Text should pop out, feel touchable and dimensional",
		feel:     "Add subtle reflections and glossy finish to text",
	},
	{
		name:     "Street Art/Graffiti",
		keywords: []string{"graffiti", "street", "urban", "hip-hop", "spray", "stencil"},
		title:    "Bold graffiti-style lettering, spray paint effect, drips",
		fact:     "Stencil style or bold urban typography",
		effects:  "Add street art elements: tags, paint splatters, brick texture",
		feel:     "Text should feel like authentic street art or hip-hop album cover",
	},
	{
		name:     "Horror/Gothic",
		keywords: []string{"horror", "dark", "gothic", "mystery", "eerie", "creepy", "crimson", "souls"},
		title:    "Dripping, distressed text with eerie glow, blood red or ghostly white",
		fact:     "Gothic serif font, slightly unsettling",
		effects:  "Add horror elements: cracks, fog, shadows, decay",
		feel:     "Text should feel like a horror movie poster or Dark Souls",
	},
	{
		name:     "Warm/Lifestyle",
		keywords: []string{"warm", "food", "lifestyle", "cozy", "appetit", "culinary", "cafe"},
		title:    "Warm, inviting serif or script font with soft shadows",
		fact:     "Clean text with warm color tones, organic feel",
		effects:  "Keep text cozy and approachable, like a cookbook or cafe menu",
		feel:     "Text should feel like Bon Appetit or a premium lifestyle brand",
	},
	{
		name:     "Nature/Documentary",
		keywords: []string{"nature", "wildlife", "earth", "documentary", "forest", "ocean", "planet"},
		title:    "Strong, authoritative sans-serif with subtle earth-tone shadow",
		fact:     "Clean documentary-style lower third text",
		effects:  "Professional but organic feel, respecting the natural subject",
		feel:     "Text should feel like Planet Earth or National Geographic",
	},
}

// matchFamily returns the first family whose keywords appear in artStyle.
func matchFamily(artStyle string) (styleFamily, bool) {
	lower := strings.ToLower(artStyle)
	for _, f := range styleFamilies {
		if containsAny(lower, f.keywords) {
			return f, true
		}
	}
	return styleFamily{}, false
}

// TextInstructions returns the text-rendering guidance for an art style.
// With no family match it falls back to custom typography guidance when
// typography is set, and to the professional set otherwise.
func TextInstructions(artStyle, typography string) string {
	hint := ""
	if typography != "" {
		hint = "\nTypography Direction: " + typography
	}

	if f, ok := matchFamily(artStyle); ok {
		return fmt.Sprintf("TEXT STYLE (%s):\n- Title: %s\n- Fact: %s\n- %s\n- %s%s",
			f.name, f.title, f.fact, f.effects, f.feel, hint)
	}

	if typography != "" {
		return fmt.Sprintf("TEXT STYLE (Custom - %s):\n"+
			"- Title: %s, prominent and eye-catching at top\n"+
			"- Fact: Complementary clean text at bottom with good contrast\n"+
			"- Ensure text matches the overall %s aesthetic\n"+
			"- Text should be professional, readable, and style-appropriate%s",
			typography, typography, strings.ToLower(artStyle), hint)
	}

	return "TEXT STYLE (Professional):\n" +
		"- Title: Bold, clean sans-serif text with subtle drop shadow\n" +
		"- Fact: Clear white text on semi-transparent dark gradient bar\n" +
		"- Professional and readable, optimized for social media\n" +
		"- Text should be crisp, modern, and highly legible"
}

// enforcementRule is a strong art-style directive that keeps backends from
// drifting toward photorealism.
type enforcementRule struct {
	keywords  []string
	directive string
}

var enforcementRules = []enforcementRule{
	{
		keywords: []string{"anime", "manga", "japanese"},
		directive: "ART STYLE: Anime/Manga Illustration\n" +
			"- Render in Japanese anime art style with cel-shading\n" +
			"- Use anime facial features and proportions\n" +
			"- Apply flat colors with clean cel-shaded shadows\n" +
			"- Style reference: Studio Ghibli, Makoto Shinkai\n" +
			"IMPORTANT: Keep the SAME subject/person described below, just render them in anime style",
	},
	{
		keywords: []string{"comic", "pop art", "marvel"},
		directive: "ART STYLE: Pop Art / Comic Book\n" +
			"- Render in bold comic book pop art style\n" +
			"- Use thick black outlines, halftone dots, flat primary colors\n" +
			"- Apply Roy Lichtenstein / Andy Warhol aesthetic\n" +
			"- Style reference: Marvel Comics, classic pop art\n" +
			"IMPORTANT: Keep the SAME subject/person described below, just render them in comic style",
	},
	{
		keywords: []string{"cyberpunk", "neon"},
		directive: "ART STYLE: Cyberpunk Neon\n" +
			"- Apply strong neon lighting (cyan, magenta, pink)\n" +
			"- Dark atmospheric background with neon accents\n" +
			"- Style reference: Blade Runner 2049, Cyberpunk 2077\n" +
			"IMPORTANT: Keep the SAME subject/person described below, with cyberpunk lighting",
	},
	{
		keywords: []string{"minimal", "clean"},
		directive: "ART STYLE: Minimalist / Clean\n" +
			"- Maximum white space and simplicity\n" +
			"- Clean geometric shapes, professional aesthetic\n" +
			"- Style reference: Apple design, Swiss typography",
	},
}

// StyleEnforcement returns the STYLE_DIRECTIVE block for styles that need
// one, or "" when the art style has no enforcement rule.
func StyleEnforcement(artStyle string) string {
	lower := strings.ToLower(artStyle)
	for _, r := range enforcementRules {
		if containsAny(lower, r.keywords) {
			return "<STYLE_DIRECTIVE>\n" + r.directive + "\n</STYLE_DIRECTIVE>\n"
		}
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
