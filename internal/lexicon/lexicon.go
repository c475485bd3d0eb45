package lexicon

import "strings"

type Category string

const (
	CategoryPreset      Category = "preset"
	CategorySkinTone    Category = "skin_tone"
	CategoryHairStyle   Category = "hair_style"
	CategoryHairColor   Category = "hair_color"
	CategoryBodyType    Category = "body_type"
	CategoryOutfit      Category = "outfit"
	CategoryOutfitColor Category = "outfit_color"
	CategoryPose        Category = "pose"
)

// Option is one selectable entry of a catalog. Value is what the selection
// state stores, Label is what a UI shows.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var categoryOrder = []Category{
	CategoryPreset,
	CategorySkinTone,
	CategoryHairStyle,
	CategoryHairColor,
	CategoryBodyType,
	CategoryOutfit,
	CategoryOutfitColor,
	CategoryPose,
}

var categoryTitles = map[Category]string{
	CategoryPreset:      "Style preset",
	CategorySkinTone:    "Skin tone",
	CategoryHairStyle:   "Hair style",
	CategoryHairColor:   "Hair color",
	CategoryBodyType:    "Body type",
	CategoryOutfit:      "Outfit",
	CategoryOutfitColor: "Outfit colors",
	CategoryPose:        "Pose",
}

var presets = []Option{
	{Value: "photoreal", Label: "Photoreal"},
	{Value: "editorial", Label: "Editorial"},
	{Value: "soft_glam", Label: "Soft glam"},
	{Value: "anime", Label: "Anime"},
}

var skinTones = []Option{
	{Value: "light neutral", Label: "Light"},
	{Value: "fair warm", Label: "Fair warm"},
	{Value: "medium neutral", Label: "Medium"},
	{Value: "tan warm", Label: "Tan"},
	{Value: "deep neutral", Label: "Deep"},
}

var hairStyles = labelled("Long wavy", "Straight bob", "Ponytail", "Braids", "Bun")

var hairColors = []string{"#0e0e10", "#3b2f2f", "#5c3b1e", "#b57f50", "#cfa16c", "#e2c285", "#ddb3d6", "#ff8fa3", "#7aa2ff"}

var bodyTypes = labelled("Slim", "Athletic", "Curvy", "Petite", "Tall")

var outfits = labelled("Summer dress", "Tee + jeans", "Hoodie + skirt", "Blazer + trousers", "Sportswear")

var outfitColors = []string{"#9b5de5", "#7aa2ff", "#ff8fab", "#ffd166", "#06d6a0", "#222222", "#f0f0f0"}

var poses = labelled("Natural standing", "Hands on hips", "Walking", "Seated")

var colorNames = map[string]string{
	"#0e0e10": "jet black",
	"#3b2f2f": "dark brown",
	"#5c3b1e": "chestnut",
	"#b57f50": "auburn",
	"#cfa16c": "dark blonde",
	"#e2c285": "honey blonde",
	"#ddb3d6": "pastel lavender",
	"#ff8fa3": "pastel pink",
	"#7aa2ff": "pastel blue",
	"#9b5de5": "violet",
	"#ffd6e7": "soft pink",
	"#ff8fab": "pink",
	"#ffd166": "mustard yellow",
	"#06d6a0": "mint green",
	"#222222": "black",
	"#f0f0f0": "white",
}

// Categories returns the catalog categories in menu order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

func (c Category) Title() string {
	if t, ok := categoryTitles[c]; ok {
		return t
	}
	return string(c)
}

// ListOptions returns the ordered options of a category. Unknown categories
// yield nil.
func ListOptions(c Category) []Option {
	switch c {
	case CategoryPreset:
		return cloneOptions(presets)
	case CategorySkinTone:
		return cloneOptions(skinTones)
	case CategoryHairStyle:
		return cloneOptions(hairStyles)
	case CategoryHairColor:
		return colorOptions(hairColors)
	case CategoryBodyType:
		return cloneOptions(bodyTypes)
	case CategoryOutfit:
		return cloneOptions(outfits)
	case CategoryOutfitColor:
		return colorOptions(outfitColors)
	case CategoryPose:
		return cloneOptions(poses)
	}
	return nil
}

// Valid reports whether value is a catalog entry of c.
func Valid(c Category, value string) bool {
	for _, o := range ListOptions(c) {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Label returns the display label for value, or value itself.
func Label(c Category, value string) string {
	for _, o := range ListOptions(c) {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// ResolveColorName maps a hex code to its human name. Codes missing from the
// table are returned unchanged.
func ResolveColorName(hex string) string {
	if name, ok := colorNames[strings.ToLower(hex)]; ok {
		return name
	}
	return hex
}

// IsHexColor accepts #rgb and #rrggbb.
func IsHexColor(value string) bool {
	if len(value) != 4 && len(value) != 7 {
		return false
	}
	if value[0] != '#' {
		return false
	}
	for _, r := range value[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func labelled(labels ...string) []Option {
	out := make([]Option, 0, len(labels))
	for _, l := range labels {
		out = append(out, Option{Value: strings.ToLower(l), Label: l})
	}
	return out
}

func colorOptions(hexes []string) []Option {
	out := make([]Option, 0, len(hexes))
	for _, h := range hexes {
		out = append(out, Option{Value: h, Label: ResolveColorName(h)})
	}
	return out
}

func cloneOptions(in []Option) []Option {
	return append([]Option(nil), in...)
}
