package postprocess

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyforge/core"

	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	// Logo formats.
	_ "image/jpeg"
	_ "image/png"
)

// ErrLogoNotFound is returned when a logo brand has no logo file.
var ErrLogoNotFound = errors.New("postprocess: logo not found")

// BrandType selects how a brand is rendered.
type BrandType string

const (
	BrandLogo BrandType = "logo"
	BrandText BrandType = "text"
)

// Corner is a watermark anchor.
type Corner string

const (
	TopLeft     Corner = "top-left"
	TopRight    Corner = "top-right"
	BottomLeft  Corner = "bottom-left"
	BottomRight Corner = "bottom-right"
)

// Brand defaults.
const (
	DefaultLogoSize  = 15
	DefaultFontSize  = 24
	DefaultFontColor = "#FFFFFF"
	DefaultOpacity   = 0.7
	DefaultPadding   = 20
)

// brandFileNames are tried in order inside the brand directory.
var brandFileNames = []string{"brands.json", "brands.yaml", "brands.yml"}

// Brand is a normalised brand definition.
type Brand struct {
	ID        string
	Name      string
	Type      BrandType
	LogoPath  string
	LogoSize  int // percent of image width
	Text      string
	FontSize  int
	FontColor string
	Position  Corner
	Opacity   float64
	Padding   int
}

// brandEntry mirrors the on-disk shape. Pointers distinguish an explicit
// zero from an absent field.
type brandEntry struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	LogoPath  string   `yaml:"logoPath"`
	LogoSize  int      `yaml:"logoSize"`
	Text      string   `yaml:"text"`
	FontSize  int      `yaml:"fontSize"`
	FontColor string   `yaml:"fontColor"`
	Position  string   `yaml:"position"`
	Opacity   *float64 `yaml:"opacity"`
	Padding   *int     `yaml:"padding"`
}

type brandFile struct {
	Brands []brandEntry `yaml:"brands"`
}

func (e brandEntry) normalize() Brand {
	b := Brand{
		ID:        e.ID,
		Name:      e.Name,
		Type:      BrandLogo,
		LogoPath:  e.LogoPath,
		LogoSize:  e.LogoSize,
		Text:      e.Text,
		FontSize:  e.FontSize,
		FontColor: e.FontColor,
		Position:  ParseCorner(e.Position),
		Opacity:   DefaultOpacity,
		Padding:   DefaultPadding,
	}
	if strings.EqualFold(e.Type, string(BrandText)) {
		b.Type = BrandText
	}
	if b.LogoSize <= 0 {
		b.LogoSize = DefaultLogoSize
	}
	if b.FontSize <= 0 {
		b.FontSize = DefaultFontSize
	}
	if b.FontColor == "" {
		b.FontColor = DefaultFontColor
	}
	if e.Opacity != nil {
		b.Opacity = min(1, max(0, *e.Opacity))
	}
	if e.Padding != nil && *e.Padding >= 0 {
		b.Padding = *e.Padding
	}
	return b
}

// ParseCorner maps a position string to a Corner. Anything unrecognised
// becomes BottomRight.
func ParseCorner(s string) Corner {
	switch Corner(strings.ToLower(strings.TrimSpace(s))) {
	case TopLeft:
		return TopLeft
	case TopRight:
		return TopRight
	case BottomLeft:
		return BottomLeft
	default:
		return BottomRight
	}
}

// BrandStore holds the brands defined in a brand directory and caches
// decoded logos. It is read-only after loading and safe for concurrent use.
type BrandStore struct {
	dir    string
	brands []Brand
	logos  *cache.Cache
}

// Logo cache lifetimes.
const (
	logoCacheTTL     = 30 * time.Minute
	logoCacheCleanup = 10 * time.Minute
)

// LoadBrands reads brands.json (or brands.yaml) from dir. A missing file
// yields an empty store; a malformed one is a configuration error.
func LoadBrands(dir string) (*BrandStore, error) {
	store := &BrandStore{
		dir:   dir,
		logos: cache.New(logoCacheTTL, logoCacheCleanup),
	}
	if dir == "" {
		return store, nil
	}

	for _, name := range brandFileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, core.ErrBrandFile(path, err.Error())
		}

		// JSON is valid YAML, so one decoder covers both files.
		var file brandFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, core.ErrBrandFile(path, err.Error())
		}
		for _, e := range file.Brands {
			store.brands = append(store.brands, e.normalize())
		}
		return store, nil
	}
	return store, nil
}

// NewBrandStore builds a store from explicit brands. Useful for testing.
func NewBrandStore(dir string, brands ...Brand) *BrandStore {
	return &BrandStore{
		dir:    dir,
		brands: brands,
		logos:  cache.New(logoCacheTTL, logoCacheCleanup),
	}
}

// Brands returns a copy of every brand.
func (s *BrandStore) Brands() []Brand {
	if s == nil {
		return nil
	}
	out := make([]Brand, len(s.brands))
	copy(out, s.brands)
	return out
}

// Resolve picks the brand for a request. An empty id selects the first
// brand if any exist. An id that matches nothing disables branding.
func (s *BrandStore) Resolve(id string) (*Brand, bool) {
	if s == nil || len(s.brands) == 0 {
		return nil, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		b := s.brands[0]
		return &b, true
	}
	for _, b := range s.brands {
		if b.ID == id {
			return &b, true
		}
	}
	return nil, false
}

// Logo returns the decoded logo for b, loading it on first use. The file
// is b.LogoPath (as given, then under the brand directory), then
// logos/{id}.png, then logo.png.
func (s *BrandStore) Logo(b Brand) (image.Image, error) {
	path, ok := s.logoPath(b)
	if !ok {
		return nil, fmt.Errorf("%w for brand %q", ErrLogoNotFound, b.ID)
	}
	if cached, found := s.logos.Get(path); found {
		return cached.(image.Image), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("postprocess: failed to open logo %s: %w", path, err)
	}
	defer f.Close()

	logo, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("postprocess: failed to decode logo %s: %w", path, err)
	}
	s.logos.SetDefault(path, logo)
	return logo, nil
}

func (s *BrandStore) logoPath(b Brand) (string, bool) {
	var candidates []string
	if b.LogoPath != "" {
		candidates = append(candidates, b.LogoPath)
		if !filepath.IsAbs(b.LogoPath) && s.dir != "" {
			candidates = append(candidates, filepath.Join(s.dir, b.LogoPath))
		}
	}
	if b.ID != "" {
		candidates = append(candidates, filepath.Join(s.dir, "logos", b.ID+".png"))
	}
	candidates = append(candidates, filepath.Join(s.dir, "logo.png"))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}
