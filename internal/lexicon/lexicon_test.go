package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveColorName(t *testing.T) {
	t.Run("known hex resolves to its name", func(t *testing.T) {
		assert.Equal(t, "dark brown", ResolveColorName("#3b2f2f"))
		assert.Equal(t, "violet", ResolveColorName("#9b5de5"))
	})

	t.Run("lookup ignores case", func(t *testing.T) {
		assert.Equal(t, "mint green", ResolveColorName("#06D6A0"))
	})

	t.Run("unknown hex passes through verbatim", func(t *testing.T) {
		assert.Equal(t, "#123456", ResolveColorName("#123456"))
		assert.Equal(t, "#ABCDEF", ResolveColorName("#ABCDEF"))
		assert.Equal(t, "", ResolveColorName(""))
	})
}

func TestListOptions(t *testing.T) {
	for _, c := range Categories() {
		assert.NotEmpty(t, ListOptions(c), "category %s has no options", c)
	}

	assert.Nil(t, ListOptions(Category("nope")))

	presets := ListOptions(CategoryPreset)
	require.Len(t, presets, 4)
	assert.Equal(t, Option{Value: "soft_glam", Label: "Soft glam"}, presets[2])

	hair := ListOptions(CategoryHairStyle)
	assert.Equal(t, Option{Value: "long wavy", Label: "Long wavy"}, hair[0])

	colors := ListOptions(CategoryOutfitColor)
	assert.Equal(t, Option{Value: "#9b5de5", Label: "violet"}, colors[0])
}

func TestListOptionsReturnsCopies(t *testing.T) {
	opts := ListOptions(CategoryPose)
	opts[0].Value = "mutated"

	assert.Equal(t, "natural standing", ListOptions(CategoryPose)[0].Value)
}

func TestValidAndLabel(t *testing.T) {
	assert.True(t, Valid(CategorySkinTone, "tan warm"))
	assert.False(t, Valid(CategorySkinTone, "Tan"))
	assert.True(t, Valid(CategoryOutfit, "tee + jeans"))
	assert.False(t, Valid(Category("nope"), "x"))

	assert.Equal(t, "Tan", Label(CategorySkinTone, "tan warm"))
	assert.Equal(t, "free text", Label(CategorySkinTone, "free text"))
}

func TestIsHexColor(t *testing.T) {
	for _, v := range []string{"#fff", "#FFF", "#3b2f2f", "#A1b2C3"} {
		assert.True(t, IsHexColor(v), v)
	}
	for _, v := range []string{"", "fff", "#ff", "#ggg", "#3b2f2f0", "3b2f2f#"} {
		assert.False(t, IsHexColor(v), v)
	}
}
