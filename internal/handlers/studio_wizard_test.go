package handlers

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charstudio/internal/lexicon"
	"charstudio/internal/studio"
)

func newUIState() studio.UIState {
	return studio.UIState{Selection: studio.Default(), Menu: menuMain}
}

func TestParseCallback(t *testing.T) {
	owner, action, args, ok := parseCallback(cb(12, "set", "pose", "2"))
	require.True(t, ok)
	assert.Equal(t, int64(12), owner)
	assert.Equal(t, "set", action)
	assert.Equal(t, []string{"pose", "2"}, args)

	_, _, _, ok = parseCallback("pv:12:menu")
	assert.False(t, ok)
	_, _, _, ok = parseCallback("cs:abc:menu")
	assert.False(t, ok)
	_, _, _, ok = parseCallback("cs:12")
	assert.False(t, ok)
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	for _, c := range lexicon.Categories() {
		data := cb(-1001234567890, "set", string(c), "99")
		assert.LessOrEqual(t, len(data), 64, data)
	}
}

func TestApplyActionSet(t *testing.T) {
	st := newUIState()
	st.Menu = string(lexicon.CategoryPose)

	notice := applyAction(&st, "set", []string{"pose", "1"})

	assert.Equal(t, "Hands on hips", notice)
	assert.Equal(t, "hands on hips", st.Selection.Pose)
	assert.Equal(t, menuMain, st.Menu)

	assert.Empty(t, applyAction(&st, "set", []string{"pose", "99"}))
	assert.Empty(t, applyAction(&st, "set", []string{"nope", "0"}))
}

func TestApplyActionOutfitColorsStayOpen(t *testing.T) {
	st := newUIState()
	st.Menu = string(lexicon.CategoryOutfitColor)

	applyAction(&st, "set", []string{"outfit_color", "1"}) // #7aa2ff
	applyAction(&st, "set", []string{"outfit_color", "2"}) // #ff8fab, dropped

	assert.Equal(t, string(lexicon.CategoryOutfitColor), st.Menu)
	assert.Equal(t, []string{"#9b5de5", "#ffd6e7", "#7aa2ff"}, st.Selection.OutfitColors.Values())

	applyAction(&st, "set", []string{"outfit_color", "0"}) // remove #9b5de5
	assert.Equal(t, []string{"#ffd6e7", "#7aa2ff"}, st.Selection.OutfitColors.Values())
}

func TestApplyActionFilesAndStrength(t *testing.T) {
	st := newUIState()
	st.Selection.Files.Pose = &studio.Attachment{FileID: "p"}

	applyAction(&st, "slot", []string{"mask"})
	assert.Equal(t, studio.SlotMask, st.Awaiting)

	applyAction(&st, "clear", []string{"pose"})
	assert.Nil(t, st.Selection.Files.Pose)

	applyAction(&st, "str", []string{"+"})
	assert.InDelta(t, 0.7, st.Selection.ReferenceStrength, 1e-9)
	for range 12 {
		applyAction(&st, "str", []string{"-"})
	}
	assert.Zero(t, st.Selection.ReferenceStrength)
	for range 12 {
		applyAction(&st, "str", []string{"+"})
	}
	assert.Equal(t, 1.0, st.Selection.ReferenceStrength)

	applyAction(&st, "close", nil)
	assert.Empty(t, st.Awaiting)
}

func TestApplyActionResetKeepsBackend(t *testing.T) {
	st := newUIState()
	st.MessageID = 9
	st.Selection.Backend.URL = "http://gpu"
	st.Selection.Pose = "seated"

	applyAction(&st, "reset", nil)

	assert.Equal(t, "natural standing", st.Selection.Pose)
	assert.Equal(t, "http://gpu", st.Selection.Backend.URL)
	assert.Equal(t, 9, st.MessageID)
}

func TestApplyActionMenu(t *testing.T) {
	st := newUIState()
	applyAction(&st, "menu", []string{"hair_color"})
	assert.Equal(t, "hair_color", st.Menu)

	applyAction(&st, "menu", []string{"bogus"})
	assert.Equal(t, "hair_color", st.Menu)
}

func TestStudioUIText(t *testing.T) {
	st := newUIState()
	st.Selection.Seed = 31
	st.Selection.Files.Reference = &studio.Attachment{FileID: "r"}
	st.Awaiting = studio.SlotPose

	text := studioUIText(st)

	assert.Contains(t, text, "Style: Photoreal")
	assert.Contains(t, text, "Hair: Long wavy, dark brown")
	assert.Contains(t, text, "Outfit: Summer dress (violet, soft pink)")
	assert.Contains(t, text, "Seed: 31, strength: 0.60")
	assert.Contains(t, text, "Files: reference ✅, pose —, mask —")
	assert.Contains(t, text, "young adult woman, light neutral")
	assert.Contains(t, text, "Send the pose image")
}

func TestOptionsKeyboardMarksSelection(t *testing.T) {
	st := studio.Default()

	kb := optionsKeyboard(1, lexicon.CategoryOutfitColor, st)

	labels := keyboardLabels(kb)
	assert.Contains(t, labels, "✅ violet")
	assert.Contains(t, labels, "pastel blue")
	assert.Equal(t, "⬅ Back", labels[len(labels)-1])

	kb = optionsKeyboard(1, lexicon.CategoryPreset, st)
	assert.Contains(t, keyboardLabels(kb), "✅ Photoreal")
}

func TestStudioUIKeyboardRouting(t *testing.T) {
	st := newUIState()
	assert.Contains(t, keyboardLabels(studioUIKeyboard(1, st)), "🎨 Generate")

	st.Menu = menuFiles
	st.Selection.Files.Mask = &studio.Attachment{FileID: "m"}
	labels := keyboardLabels(studioUIKeyboard(1, st))
	assert.Contains(t, labels, "📷 mask")
	assert.Contains(t, labels, "✖ remove")
	assert.Contains(t, labels, "0.6")

	st.Menu = string(lexicon.CategorySkinTone)
	assert.Contains(t, keyboardLabels(studioUIKeyboard(1, st)), "✅ Light")
}

func keyboardLabels(kb tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			out = append(out, strings.TrimSpace(b.Text))
		}
	}
	return out
}
