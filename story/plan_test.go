package story

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newPlan(numbers ...int) *Plan {
	p := &Plan{Topic: "Test"}
	for _, n := range numbers {
		p.Slides = append(p.Slides, Slide{Number: n, Title: "t"})
	}
	return p
}

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    *Plan
		wantErr bool
	}{
		{"nil plan", nil, true},
		{"no slides", newPlan(), true},
		{"single slide", newPlan(1), false},
		{"contiguous", newPlan(1, 2, 3), false},
		{"starts at zero", newPlan(0, 1, 2), true},
		{"gap", newPlan(1, 3), true},
		{"out of order", newPlan(2, 1), true},
		{"duplicate", newPlan(1, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidPlan) {
					t.Errorf("expected ErrInvalidPlan, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestImageFormatDimensions(t *testing.T) {
	if got := FormatSquare.Dimensions(); got != (Dimensions{1024, 1024}) {
		t.Errorf("square dimensions = %+v", got)
	}
	if got := FormatPortrait.Dimensions(); got != (Dimensions{768, 1365}) {
		t.Errorf("portrait dimensions = %+v", got)
	}
	if got := ParseImageFormat("SQUARE"); got != FormatSquare {
		t.Errorf("ParseImageFormat(SQUARE) = %q", got)
	}
	if got := ParseImageFormat(""); got != FormatPortrait {
		t.Errorf("ParseImageFormat(\"\") = %q, want portrait", got)
	}
}

func TestAestheticWithDefaults(t *testing.T) {
	in := Aesthetic{ArtStyle: "anime", Typography: ""}
	out := in.WithDefaults()

	if out.ArtStyle != "anime" {
		t.Errorf("ArtStyle overwritten: %q", out.ArtStyle)
	}
	if out.ColorPalette != DefaultColorPalette {
		t.Errorf("ColorPalette = %q", out.ColorPalette)
	}
	if out.Typography != "" {
		t.Errorf("Typography should stay empty, got %q", out.Typography)
	}
	if in.ColorPalette != "" {
		t.Error("WithDefaults mutated its receiver")
	}
}

func TestConsistencyLookup(t *testing.T) {
	c := &Consistency{
		Characters: []Element{
			{Name: "Scientist", AppearsIn: []int{1, 3}},
			{Name: "Robot", AppearsIn: []int{2}},
		},
		Objects: []Element{{Name: "Rocket", AppearsIn: []int{3}}},
	}

	if got := c.CharactersOn(3); len(got) != 1 || got[0].Name != "Scientist" {
		t.Errorf("CharactersOn(3) = %+v", got)
	}
	if got := c.ObjectsOn(1); len(got) != 0 {
		t.Errorf("ObjectsOn(1) = %+v, want none", got)
	}

	var nilData *Consistency
	if got := nilData.CharactersOn(1); got != nil {
		t.Errorf("nil consistency returned %+v", got)
	}
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()

	yamlPlan := `topic: Mars Missions
image_size: square
aesthetic:
  art_style: retro comic
slides:
  - slide_number: 1
    title: Launch
    key_fact: "1971"
    visual_description: a rocket
  - slide_number: 2
    title: Landing
`
	jsonPlan := `{"topic":"Ocean","slides":[{"slide_number":1,"title":"Reef","key_fact":"25% of species"}]}`

	tests := []struct {
		name       string
		file       string
		content    string
		wantTopic  string
		wantSlides int
		wantFormat ImageFormat
	}{
		{"yaml", "plan.yaml", yamlPlan, "Mars Missions", 2, FormatSquare},
		{"json", "plan.json", jsonPlan, "Ocean", 1, FormatPortrait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write plan: %v", err)
			}

			plan, err := LoadPlan(path)
			if err != nil {
				t.Fatalf("LoadPlan failed: %v", err)
			}
			if plan.Topic != tt.wantTopic {
				t.Errorf("Topic = %q, want %q", plan.Topic, tt.wantTopic)
			}
			if plan.SlideCount() != tt.wantSlides {
				t.Errorf("SlideCount = %d, want %d", plan.SlideCount(), tt.wantSlides)
			}
			if plan.ImageFormat() != tt.wantFormat {
				t.Errorf("ImageFormat = %q, want %q", plan.ImageFormat(), tt.wantFormat)
			}
			if err := plan.Validate(); err != nil {
				t.Errorf("Validate failed: %v", err)
			}
		})
	}
}

func TestLoadPlan_MissingFile(t *testing.T) {
	if _, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConsistency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consistency.json")
	content := `{"characters":[{"name":"Ada","description":"red coat","appears_in_slides":[1,2]}],
"environment":{"primary_setting":"lab","lighting_consistency":"cool blue"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConsistency(path)
	if err != nil {
		t.Fatalf("LoadConsistency failed: %v", err)
	}
	if len(c.CharactersOn(2)) != 1 {
		t.Errorf("expected Ada on slide 2")
	}
	if c.Environment.PrimarySetting != "lab" {
		t.Errorf("PrimarySetting = %q", c.Environment.PrimarySetting)
	}
}
