package studio

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charstudio/internal/lexicon"
)

func TestColorSetToggle(t *testing.T) {
	t.Run("toggling a present color removes it", func(t *testing.T) {
		s := NewColorSet("#9b5de5", "#ffd6e7")
		s.Toggle("#9b5de5")
		assert.Equal(t, []string{"#ffd6e7"}, s.Values())
	})

	t.Run("toggling an absent color appends it", func(t *testing.T) {
		s := NewColorSet("#9b5de5")
		s.Toggle("#06d6a0")
		assert.Equal(t, []string{"#9b5de5", "#06d6a0"}, s.Values())
	})

	t.Run("a fourth color is dropped", func(t *testing.T) {
		s := NewColorSet("#9b5de5", "#7aa2ff", "#ff8fab")
		s.Toggle("#ffd166")
		assert.Equal(t, []string{"#9b5de5", "#7aa2ff", "#ff8fab"}, s.Values())
	})

	t.Run("keys are case-insensitive", func(t *testing.T) {
		s := NewColorSet("#9B5DE5")
		assert.True(t, s.Contains("#9b5de5"))
		s.Toggle("#9b5De5")
		assert.Equal(t, 0, s.Len())
	})

	t.Run("empty input is ignored", func(t *testing.T) {
		var s ColorSet
		s.Toggle("  ")
		assert.Equal(t, 0, s.Len())
	})
}

func TestColorSetInvariantUnderRandomToggles(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	palette := []string{"#9b5de5", "#7aa2ff", "#ff8fab", "#ffd166", "#06d6a0", "#222222", "#f0f0f0"}

	var s ColorSet
	for i := 0; i < 2000; i++ {
		s.Toggle(palette[rng.IntN(len(palette))])

		require.LessOrEqual(t, s.Len(), MaxOutfitColors)
		seen := map[string]bool{}
		for _, v := range s.Values() {
			require.False(t, seen[v], "duplicate %s after %d toggles", v, i)
			seen[v] = true
		}
	}
}

func TestColorSetCopiesDoNotAlias(t *testing.T) {
	a := NewColorSet("#9b5de5")
	b := a
	b.Toggle("#7aa2ff")
	a.Toggle("#ff8fab")

	assert.Equal(t, []string{"#9b5de5", "#ff8fab"}, a.Values())
	assert.Equal(t, []string{"#9b5de5", "#7aa2ff"}, b.Values())
}

func TestColorSetJSON(t *testing.T) {
	var s ColorSet
	require.NoError(t, json.Unmarshal([]byte(`["#9b5de5","#9b5de5","#7aa2ff","#ff8fab","#ffd166"]`), &s))
	assert.Equal(t, []string{"#9b5de5", "#7aa2ff", "#ff8fab"}, s.Values())

	out, err := json.Marshal(ColorSet{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))
}

func TestPresetCFGScale(t *testing.T) {
	assert.Equal(t, 6.5, PresetAnime.CFGScale())
	assert.Equal(t, 5.5, PresetPhotoreal.CFGScale())
	assert.Equal(t, 5.5, PresetEditorial.CFGScale())
	assert.Equal(t, 5.5, PresetSoftGlam.CFGScale())
	assert.Equal(t, 5.5, Preset("unknown").CFGScale())
}

func TestStateSelect(t *testing.T) {
	st := Default()

	assert.True(t, st.Select(lexicon.CategoryPreset, "anime"))
	assert.Equal(t, PresetAnime, st.Preset)

	assert.False(t, st.Select(lexicon.CategoryPreset, "watercolor"))
	assert.Equal(t, PresetAnime, st.Preset)

	assert.True(t, st.Select(lexicon.CategoryPose, "walking"))
	assert.Equal(t, "walking", st.Pose)

	assert.True(t, st.Select(lexicon.CategoryHairColor, "#123abc"), "free-text hex is accepted")
	assert.Equal(t, "#123abc", st.HairColor)
	assert.False(t, st.Select(lexicon.CategoryHairColor, "green"))

	before := st.OutfitColors.Len()
	assert.True(t, st.Select(lexicon.CategoryOutfitColor, "#06d6a0"))
	assert.Equal(t, before+1, st.OutfitColors.Len())
	assert.True(t, st.Select(lexicon.CategoryOutfitColor, "#06d6a0"))
	assert.Equal(t, before, st.OutfitColors.Len())

	assert.False(t, st.Select(lexicon.CategorySkinTone, ""))
}

func TestStateSetters(t *testing.T) {
	st := Default()

	st.SetReferenceStrength(1.7)
	assert.Equal(t, 1.0, st.ReferenceStrength)
	st.SetReferenceStrength(-0.2)
	assert.Equal(t, 0.0, st.ReferenceStrength)
	st.SetReferenceStrength(0.35)
	assert.Equal(t, 0.35, st.ReferenceStrength)

	st.SetSeed(-42)
	assert.Equal(t, int64(42), st.Seed)
}

func TestStateRandomize(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	st := Default()
	st.Backend = Backend{Type: "a1111", URL: "http://sd", Model: "m"}

	for i := 0; i < 100; i++ {
		st.Randomize(rng)

		assert.True(t, lexicon.Valid(lexicon.CategoryPreset, string(st.Preset)))
		assert.True(t, lexicon.Valid(lexicon.CategorySkinTone, st.SkinTone))
		assert.True(t, lexicon.Valid(lexicon.CategoryHairStyle, st.HairStyle))
		assert.True(t, lexicon.Valid(lexicon.CategoryHairColor, st.HairColor))
		assert.True(t, lexicon.Valid(lexicon.CategoryBodyType, st.BodyType))
		assert.True(t, lexicon.Valid(lexicon.CategoryOutfit, st.Outfit))
		assert.True(t, lexicon.Valid(lexicon.CategoryPose, st.Pose))
		assert.GreaterOrEqual(t, st.OutfitColors.Len(), 1)
		assert.LessOrEqual(t, st.OutfitColors.Len(), 2)
		assert.GreaterOrEqual(t, st.Seed, int64(0))
		assert.Less(t, st.Seed, int64(maxRandomSeed))
	}
	assert.Equal(t, "http://sd", st.Backend.URL)
}

func TestStateJSONRoundTripNames(t *testing.T) {
	raw := `{"preset":"anime","skinTone":"tan warm","hairStyle":"bun","hairColor":"#7aa2ff","bodyType":"tall",
		"outfit":"sportswear","outfitColors":["#222222"],"pose":"seated","seed":12,
		"backend":{"type":"a1111","url":"http://x","model":"m"},"referenceStrength":0.4}`

	var st State
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, PresetAnime, st.Preset)
	assert.Equal(t, []string{"#222222"}, st.OutfitColors.Values())
	assert.Equal(t, int64(12), st.Seed)
	assert.Equal(t, "m", st.Backend.Model)
	assert.Equal(t, 0.4, st.ReferenceStrength)
}

func TestFilesSlots(t *testing.T) {
	var f Files
	a := &Attachment{Data: []byte("x")}
	f.Set(SlotPose, a)

	assert.Same(t, a, f.Get(SlotPose))
	assert.Nil(t, f.Get(SlotReference))
	assert.Nil(t, f.Get(Slot("other")))
	assert.True(t, a.Loaded())
	assert.False(t, (*Attachment)(nil).Loaded())
}

func TestStore(t *testing.T) {
	s := NewStore()

	st := s.Get(1, 2)
	assert.Equal(t, "main", st.Menu)
	assert.Equal(t, PresetPhotoreal, st.Selection.Preset)

	s.Update(1, 2, func(st *UIState) {
		st.Selection.Preset = PresetAnime
		st.Selection.Backend.URL = "http://sd"
		st.MessageID = 99
	})
	assert.Equal(t, PresetAnime, s.Get(1, 2).Selection.Preset)
	assert.Equal(t, PresetPhotoreal, s.Get(1, 3).Selection.Preset, "states are per user")

	reset := s.Reset(1, 2)
	assert.Equal(t, PresetPhotoreal, reset.Selection.Preset)
	assert.Equal(t, "http://sd", reset.Selection.Backend.URL)
	assert.Equal(t, 99, reset.MessageID)
}
