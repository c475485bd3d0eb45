package prompt

import (
	"fmt"
	"strings"

	"charstudio/internal/lexicon"
	"charstudio/internal/studio"
)

// Negative is sent with every generation regardless of the selection.
const Negative = "lowres, blurry, bad hands, extra fingers, deformed, watermark, jpeg artifacts, text, nsfw"

var styleDescriptors = map[studio.Preset]string{
	studio.PresetPhotoreal: "photorealistic, natural skin texture, soft lighting, 85mm lens, high detail",
	studio.PresetEditorial: "fashion editorial, dramatic lighting, studio background, sharp details",
	studio.PresetSoftGlam:  "soft glam, diffused light, pastel palette, gentle makeup",
	studio.PresetAnime:     "anime style, clean lineart, cel shading, high detail",
}

type Compiled struct {
	Prompt   string `json:"prompt"`
	Negative string `json:"negative"`
}

// ClipboardText is the prompt pair as a single copyable block.
func (c Compiled) ClipboardText() string {
	return c.Prompt + "\nNEGATIVE: " + c.Negative
}

// StyleDescriptor returns the style wording of a preset; unknown presets
// have none.
func StyleDescriptor(p studio.Preset) string {
	return styleDescriptors[p]
}

func Compile(st studio.State) Compiled {
	subject := fmt.Sprintf("young adult woman, %s, %s hair, %s hair, %s body",
		st.SkinTone,
		st.HairStyle,
		lexicon.ResolveColorName(st.HairColor),
		st.BodyType,
	)

	colors := st.OutfitColors.Values()
	names := make([]string, 0, len(colors))
	for _, hex := range colors {
		names = append(names, lexicon.ResolveColorName(hex))
	}
	outfit := fmt.Sprintf("%s in %s", st.Outfit, strings.Join(names, ", "))

	return Compiled{
		Prompt:   fmt.Sprintf("%s, wearing %s, %s, full body, %s", subject, outfit, st.Pose, StyleDescriptor(st.Preset)),
		Negative: Negative,
	}
}
