package animation

import (
	"bytes"
	"encoding/json"

	"github.com/invopop/jsonschema"

	"charstudio/internal/payload"
	"charstudio/internal/prompt"
	"charstudio/internal/studio"
)

// FileName is the download name of an exported document.
const FileName = "video_prompt.json"

const (
	Mode      = "2D"
	MaxFrames = 120
	FPS       = 12
	Steps     = 25
)

// Document is a frame-animation job description keyed by frame index.
type Document struct {
	AnimationMode  string            `json:"animation_mode" jsonschema_description:"Animation mode of the frame pipeline"`
	MaxFrames      int               `json:"max_frames" jsonschema_description:"Number of frames to render"`
	FPS            int               `json:"fps" jsonschema_description:"Playback frame rate"`
	Seed           int64             `json:"seed" jsonschema_description:"Generation seed copied from the selection"`
	Sampler        string            `json:"sampler" jsonschema_description:"Sampler name"`
	Steps          int               `json:"steps" jsonschema_description:"Sampling steps per frame"`
	CFGScale       float64           `json:"cfg_scale" jsonschema_description:"Classifier-free guidance scale"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	TextPrompts    map[string]string `json:"text_prompts" jsonschema_description:"Positive prompt keyed by starting frame index"`
	NegativePrompt string            `json:"negative_prompt"`
}

func Compile(compiled prompt.Compiled, st studio.State) Document {
	return Document{
		AnimationMode:  Mode,
		MaxFrames:      MaxFrames,
		FPS:            FPS,
		Seed:           st.Seed,
		Sampler:        payload.SamplerName,
		Steps:          Steps,
		CFGScale:       st.Preset.CFGScale(),
		Width:          payload.Width,
		Height:         payload.Height,
		TextPrompts:    map[string]string{"0": compiled.Prompt},
		NegativePrompt: compiled.Negative,
	}
}

// Marshal renders doc the way it is written to disk: two-space indent,
// trailing newline.
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var documentSchema = func() *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return r.Reflect(Document{})
}()

// Schema describes Document for consumers of the export file.
func Schema() *jsonschema.Schema {
	return documentSchema
}
