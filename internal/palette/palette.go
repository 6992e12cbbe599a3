// Package palette assigns stable legend colours to categories, payment
// methods and dashboard sections.
package palette

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used for categories without a name.
const Fallback = "#8884d8"

var baseColors = [...]string{
	"#ff3e2f", "#ff6d00", "#ffa801", "#ffd60a",
	"#74d600", "#2ecc71", "#00b4d8", "#0077b6",
	"#4361ee", "#7209b7", "#b5179e", "#ff4d6d",
}

var sectionGradients = [...]string{
	"linear-gradient(135deg,#f5f7fa,#e4ebf3)",
	"linear-gradient(135deg,#f6f9fc,#e9eef5)",
	"linear-gradient(135deg,#eef2f7,#dde4ec)",
}

var (
	overridesMu sync.RWMutex
	overrides   = map[string]string{
		"noiva": "#e63946",
	}
)

// SetCategoryOverride pins the colour of a category name.
func SetCategoryOverride(name, color string) {
	overridesMu.Lock()
	defer overridesMu.Unlock()
	overrides[NormalizeKey(name)] = color
}

// CategoryColor picks a palette colour from a category name.
func CategoryColor(name string) string {
	if name == "" {
		return Fallback
	}
	key := NormalizeKey(name)
	overridesMu.RLock()
	c, ok := overrides[key]
	overridesMu.RUnlock()
	if ok {
		return c
	}
	return baseColors[charSum(key, 17)%uint64(len(baseColors))]
}

// Gradient picks the background of a dashboard section by its title.
func Gradient(title string) string {
	return sectionGradients[charSum(title, 13)%uint64(len(sectionGradients))]
}

// ColorForID derives a vivid colour from an id: FNV-1a of the normalised key
// gives the hue, saturation and lightness are fixed.
func ColorForID(id string) string {
	key := NormalizeKey(id)
	h := uint32(0x811c9dc5)
	for _, u := range utf16.Encode([]rune(key)) {
		h ^= uint32(u)
		h *= 0x01000193
	}
	return hslToHex(float64(h%360), 70, 50)
}

// NormalizeKey strips diacritics, lower-cases and trims.
func NormalizeKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}

// charSum adds the first UTF-16 unit of every character times weight.
func charSum(s string, weight uint64) uint64 {
	var sum uint64
	for _, r := range s {
		sum += uint64(utf16.Encode([]rune{r})[0]) * weight
	}
	return sum
}

func hslToHex(h, s, l float64) string {
	s /= 100
	l /= 100
	a := s * math.Min(l, 1-l)
	f := func(n float64) int {
		k := math.Mod(n+h/30, 12)
		c := l - a*math.Max(-1, math.Min(k-3, math.Min(9-k, 1)))
		return int(math.Floor(255*c + 0.5))
	}
	return fmt.Sprintf("#%02x%02x%02x", f(0), f(8), f(4))
}
