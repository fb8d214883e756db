package prompt

import (
	"strings"
	"testing"

	"storyforge/story"
)

func testPlan(artStyle, typography string) *story.Plan {
	return &story.Plan{
		Topic: "Deep Sea Creatures",
		Aesthetic: story.Aesthetic{
			ArtStyle:   artStyle,
			Typography: typography,
		},
		Format: story.FormatSquare,
		Slides: []story.Slide{
			{Number: 1, Title: "Anglerfish", KeyFact: "Lives at 2000m", VisualDescription: "a glowing lure in darkness"},
			{Number: 2, Title: "Giant Squid", KeyFact: "Eyes as big as plates", VisualDescription: "tentacles in the abyss"},
		},
	}
}

func TestTextInstructions_FamilyTable(t *testing.T) {
	tests := []struct {
		artStyle string
		want     string
	}{
		{"Studio Ghibli anime", "TEXT STYLE (Anime/Manga)"},
		{"retro comic book", "TEXT STYLE (Comic Book/Pop Art)"},
		{"cyberpunk city at night", "TEXT STYLE (Cyberpunk/Neon)"},
		{"1950s advertisement", "TEXT STYLE (Vintage/Retro)"},
		{"minimal corporate", "TEXT STYLE (Minimal/Corporate)"},
		{"soft watercolor", "TEXT STYLE (Artistic/Editorial)"},
		{"cinematic illustration", "TEXT STYLE (Cinematic/Sports)"},
		{"ethereal fantasy", "TEXT STYLE (Fantasy/Magical)"},
		{"renaissance fresco", "TEXT STYLE (Sacred/Spiritual)"},
		{"nebula backdrop", "TEXT STYLE (Cosmic/Space)"},
		{"pixar 3d", "TEXT STYLE (3D/Animated)"},
		{"graffiti mural", "TEXT STYLE (Street Art/Graffiti)"},
		{"gothic horror", "TEXT STYLE (Horror/Gothic)"},
		{"cozy food photography", "TEXT STYLE (Cinematic/Sports)"},
		{"cozy bakery", "TEXT STYLE (Warm/Lifestyle)"},
		{"wildlife sketch", "TEXT STYLE (Nature/Documentary)"},
	}

	for _, tt := range tests {
		t.Run(tt.artStyle, func(t *testing.T) {
			got := TextInstructions(tt.artStyle, "")
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("TextInstructions(%q) starts with %q, want %q",
					tt.artStyle, strings.SplitN(got, "\n", 2)[0], tt.want)
			}
		})
	}
}

func TestTextInstructions_PriorityOrder(t *testing.T) {
	// anime precedes cinematic in the table
	got := TextInstructions("cinematic anime", "")
	if !strings.HasPrefix(got, "TEXT STYLE (Anime/Manga)") {
		t.Errorf("expected anime to win, got %q", strings.SplitN(got, "\n", 2)[0])
	}
}

func TestTextInstructions_Fallbacks(t *testing.T) {
	got := TextInstructions("ukiyo-e woodblock", "")
	if !strings.HasPrefix(got, "TEXT STYLE (Professional)") {
		t.Errorf("expected professional fallback, got %q", got)
	}

	got = TextInstructions("ukiyo-e woodblock", "brush calligraphy")
	if !strings.HasPrefix(got, "TEXT STYLE (Custom - brush calligraphy)") {
		t.Errorf("expected custom fallback, got %q", got)
	}
	if !strings.Contains(got, "Typography Direction: brush calligraphy") {
		t.Error("custom fallback missing typography hint")
	}
}

func TestTextInstructions_TypographyHint(t *testing.T) {
	got := TextInstructions("anime", "rounded bubble letters")
	if !strings.HasSuffix(got, "Typography Direction: rounded bubble letters") {
		t.Errorf("expected typography hint suffix, got %q", got)
	}
}

func TestStyleEnforcement(t *testing.T) {
	tests := []struct {
		artStyle string
		contains string
	}{
		{"manga panels", "Anime/Manga Illustration"},
		{"pop art portrait", "Pop Art / Comic Book"},
		{"neon noir", "Cyberpunk Neon"},
		{"clean lines", "Minimalist / Clean"},
		{"oil painting", ""},
	}

	for _, tt := range tests {
		got := StyleEnforcement(tt.artStyle)
		if tt.contains == "" {
			if got != "" {
				t.Errorf("StyleEnforcement(%q) = %q, want empty", tt.artStyle, got)
			}
			continue
		}
		if !strings.Contains(got, tt.contains) || !strings.HasPrefix(got, "<STYLE_DIRECTIVE>") {
			t.Errorf("StyleEnforcement(%q) = %q, want directive with %q", tt.artStyle, got, tt.contains)
		}
	}
}

func TestCompose_IncludesSlideAndAesthetic(t *testing.T) {
	plan := testPlan("", "")
	got := Compose(plan.Slides[0], plan, nil)

	wants := []string{
		"TOPIC: Deep Sea Creatures",
		"FORMAT: SQUARE 1:1 FORMAT FOR INSTAGRAM POSTS",
		"Scene: a glowing lure in darkness",
		"Art Direction: cinematic illustration",
		"Color Palette: vibrant, eye-catching colors",
		`"Anglerfish"`,
		`"Lives at 2000m"`,
		"TEXT STYLE (Cinematic/Sports)",
		"Art style is unmistakably cinematic",
		"<AVOID_IN_IMAGE>",
	}
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("prompt missing %q", w)
		}
	}
	if strings.Contains(got, "<VISUAL_CONSISTENCY>") {
		t.Error("prompt has consistency section without consistency data")
	}
}

func TestCompose_ConsistencyFilteredBySlide(t *testing.T) {
	plan := testPlan("anime", "")
	consistency := &story.Consistency{
		Characters: []story.Element{
			{Name: "Diver", Description: "yellow suit", AppearsIn: []int{1}},
			{Name: "Kraken", Description: "red eyes", AppearsIn: []int{2}},
		},
		Objects: []story.Element{
			{Name: "Submarine", Description: "rusty hull", AppearsIn: []int{1, 2}},
		},
		Environment: story.Environment{PrimarySetting: "midnight zone", LightingConsistency: "bioluminescent"},
	}

	first := Compose(plan.Slides[0], plan, consistency)
	second := Compose(plan.Slides[1], plan, consistency)

	if !strings.Contains(first, "CHARACTER - Diver: yellow suit") {
		t.Error("slide 1 missing Diver")
	}
	if strings.Contains(first, "Kraken") {
		t.Error("slide 1 should not mention Kraken")
	}
	if !strings.Contains(second, "CHARACTER - Kraken: red eyes") {
		t.Error("slide 2 missing Kraken")
	}
	for _, p := range []string{first, second} {
		if !strings.Contains(p, "RECURRING ELEMENT - Submarine: rusty hull") {
			t.Error("prompt missing shared object")
		}
		if !strings.Contains(p, "SETTING: midnight zone") || !strings.Contains(p, "LIGHTING: bioluminescent") {
			t.Error("prompt missing environment lines")
		}
		if !strings.Contains(p, "<STYLE_DIRECTIVE>") {
			t.Error("anime prompt missing style directive")
		}
	}
}

func TestCompose_DoesNotMutateInputs(t *testing.T) {
	plan := testPlan("", "")
	consistency := &story.Consistency{
		Characters: []story.Element{{Name: "A", AppearsIn: []int{2, 1}}},
	}

	Compose(plan.Slides[0], plan, consistency)

	if plan.Aesthetic.ArtStyle != "" {
		t.Error("Compose filled defaults into the shared aesthetic")
	}
	if consistency.Characters[0].AppearsIn[0] != 2 {
		t.Error("Compose reordered consistency data")
	}
}

func TestCompose_Deterministic(t *testing.T) {
	plan := testPlan("vintage", "serif")
	a := Compose(plan.Slides[1], plan, nil)
	b := Compose(plan.Slides[1], plan, nil)
	if a != b {
		t.Error("Compose is not deterministic")
	}
}

func TestConsistencySection_EmptyWhenNothingApplies(t *testing.T) {
	consistency := &story.Consistency{
		Characters: []story.Element{{Name: "A", AppearsIn: []int{3}}},
	}
	if got := ConsistencySection(1, consistency); got != "" {
		t.Errorf("expected empty section, got %q", got)
	}
}
