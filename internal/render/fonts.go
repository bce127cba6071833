package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const DefaultFont = "goregular"

var builtinFonts = map[string][]byte{
	"goregular":  goregular.TTF,
	"gobold":     gobold.TTF,
	"goitalic":   goitalic.TTF,
	"gomono":     gomono.TTF,
	"gomonobold": gomonobold.TTF,
}

var fontAliases = map[string]string{
	"regular": "goregular",
	"bold":    "gobold",
	"italic":  "goitalic",
	"mono":    "gomono",
	"narrow":  "gomono",
}

var fontExtensions = []string{".ttf", ".otf"}

// FontResolver turns a font name into a parsed outline font. A name is one
// of the builtin Go fonts, a path to a font file, or the base name of a file
// in one of Dirs.
type FontResolver struct {
	Dirs []string

	mu    sync.Mutex
	cache map[string]*opentype.Font
}

func NewFontResolver(dirs ...string) *FontResolver {
	return &FontResolver{Dirs: dirs, cache: map[string]*opentype.Font{}}
}

func (r *FontResolver) fontData(name string) ([]byte, error) {
	key := strings.ToLower(name)
	if alias, ok := fontAliases[key]; ok {
		key = alias
	}
	if data, ok := builtinFonts[key]; ok {
		return data, nil
	}

	if strings.ContainsRune(name, filepath.Separator) || hasFontExtension(name) {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("Couldn't read font file:\n%w", err)
		}
		return data, nil
	}

	for _, dir := range r.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			if e.IsDir() || !hasFontExtension(e.Name()) {
				continue
			}
			if strings.EqualFold(strings.TrimSuffix(e.Name(), ext), name) {
				return os.ReadFile(filepath.Join(dir, e.Name()))
			}
		}
	}

	return nil, fmt.Errorf(`Unrecognised font "%s"`, name)
}

func hasFontExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range fontExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Resolve parses the named font, caching the result.
func (r *FontResolver) Resolve(name string) (*opentype.Font, error) {
	if name == "" {
		name = DefaultFont
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		r.cache = map[string]*opentype.Font{}
	}
	if f, ok := r.cache[name]; ok {
		return f, nil
	}

	data, err := r.fontData(name)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("Couldn't parse font %s:\n%w", name, err)
	}
	r.cache[name] = f
	return f, nil
}

// Face returns a face for the named font whose em is sizePx pixels.
func (r *FontResolver) Face(name string, sizePx float64) (font.Face, error) {
	f, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("Couldn't create font face:\n%w", err)
	}
	return face, nil
}
