package payload

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"charstudio/internal/attachment"
	"charstudio/internal/prompt"
	"charstudio/internal/studio"
)

type Mode string

const (
	ModeTxt2Img Mode = "txt2img"
	ModeImg2Img Mode = "img2img"
)

const (
	Steps       = 28
	Width       = 768
	Height      = 1152
	SamplerName = "DPM++ 2M Karras"

	controlNetModule = "openpose"
	controlNetModel  = "control_v11p_sd15_openpose [cab727d4]"
	controlNetWeight = 0.8
)

var (
	ErrInvalidModeInput    = errors.New("img2img requires a reference image")
	ErrAttachmentNotLoaded = errors.New("attachment is not loaded")
	ErrUnknownMode         = errors.New("unknown generation mode")
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeTxt2Img:
		return ModeTxt2Img, nil
	case ModeImg2Img:
		return ModeImg2Img, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, value)
}

// Endpoint is the backend path the mode posts to.
func (m Mode) Endpoint() string {
	return "/sdapi/v1/" + string(m)
}

// Request is the JSON body of a txt2img/img2img call.
type Request struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Seed           int64   `json:"seed"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	SamplerName    string  `json:"sampler_name"`

	OverrideSettings *OverrideSettings `json:"override_settings,omitempty"`
	AlwaysonScripts  *AlwaysonScripts  `json:"alwayson_scripts,omitempty"`

	InitImages        []string `json:"init_images,omitempty"`
	DenoisingStrength *float64 `json:"denoising_strength,omitempty"`
	Mask              string   `json:"mask,omitempty"`
}

type OverrideSettings struct {
	SDModelCheckpoint string `json:"sd_model_checkpoint"`
}

type AlwaysonScripts struct {
	ControlNet *ControlNet `json:"controlnet,omitempty"`
}

type ControlNet struct {
	Args []ControlNetArg `json:"args"`
}

type ControlNetArg struct {
	InputImage    string  `json:"input_image"`
	Module        string  `json:"module"`
	Model         string  `json:"model"`
	Weight        float64 `json:"weight"`
	ResizeMode    int     `json:"resize_mode"`
	Guidance      float64 `json:"guidance"`
	GuidanceStart float64 `json:"guidance_start"`
	GuidanceEnd   float64 `json:"guidance_end"`
}

// Preview is the txt2img body for a selection with attachments ignored.
func Preview(compiled prompt.Compiled, st studio.State) Request {
	return base(compiled, st)
}

// Assemble builds the request for mode. Every attachment present on st must
// already be loaded.
func Assemble(compiled prompt.Compiled, st studio.State, mode Mode) (Request, error) {
	if mode != ModeTxt2Img && mode != ModeImg2Img {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if mode == ModeImg2Img && st.Files.Reference == nil {
		return Request{}, ErrInvalidModeInput
	}

	req := base(compiled, st)

	if model := strings.TrimSpace(st.Backend.Model); model != "" {
		req.OverrideSettings = &OverrideSettings{SDModelCheckpoint: model}
	}

	var args []ControlNetArg
	if st.Files.Pose != nil {
		img, err := encode(studio.SlotPose, st.Files.Pose)
		if err != nil {
			return Request{}, err
		}
		args = append(args, ControlNetArg{
			InputImage:    img,
			Module:        controlNetModule,
			Model:         controlNetModel,
			Weight:        controlNetWeight,
			ResizeMode:    1,
			Guidance:      1.0,
			GuidanceStart: 0.0,
			GuidanceEnd:   1.0,
		})
	}
	if len(args) > 0 {
		req.AlwaysonScripts = &AlwaysonScripts{ControlNet: &ControlNet{Args: args}}
	}

	if mode == ModeImg2Img {
		img, err := encode(studio.SlotReference, st.Files.Reference)
		if err != nil {
			return Request{}, err
		}
		strength := st.ReferenceStrength
		req.InitImages = []string{img}
		req.DenoisingStrength = &strength

		if st.Files.Mask != nil {
			mask, err := encode(studio.SlotMask, st.Files.Mask)
			if err != nil {
				return Request{}, err
			}
			req.Mask = mask
		}
	}

	return req, nil
}

// AssembleAsync loads every attachment that is still a remote reference,
// concurrently, and assembles once all of them are available.
func AssembleAsync(ctx context.Context, compiled prompt.Compiled, st studio.State, mode Mode, loader attachment.Loader) (Request, error) {
	if mode == ModeImg2Img && st.Files.Reference == nil {
		return Request{}, ErrInvalidModeInput
	}

	var resolved studio.Files
	eg, egCtx := errgroup.WithContext(ctx)
	for _, slot := range needed(mode) {
		a := st.Files.Get(slot)
		if a == nil {
			continue
		}
		if a.Loaded() || loader == nil {
			resolved.Set(slot, a)
			continue
		}

		slot := slot
		eg.Go(func() error {
			data, mimeType, err := loader.Load(egCtx, a.FileID)
			if err != nil {
				return fmt.Errorf("load %s image: %w", slot, err)
			}
			loaded := *a
			loaded.Data = data
			if loaded.MimeType == "" {
				loaded.MimeType = mimeType
			}
			resolved.Set(slot, &loaded)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Request{}, err
	}

	st.Files = resolved
	return Assemble(compiled, st, mode)
}

// needed lists the slots mode can place in a payload. Each goroutine above
// writes a distinct field of resolved.
func needed(mode Mode) []studio.Slot {
	if mode == ModeImg2Img {
		return []studio.Slot{studio.SlotReference, studio.SlotPose, studio.SlotMask}
	}
	return []studio.Slot{studio.SlotPose}
}

func base(compiled prompt.Compiled, st studio.State) Request {
	return Request{
		Prompt:         compiled.Prompt,
		NegativePrompt: compiled.Negative,
		Seed:           st.Seed,
		Steps:          Steps,
		CFGScale:       st.Preset.CFGScale(),
		Width:          Width,
		Height:         Height,
		SamplerName:    SamplerName,
	}
}

func encode(slot studio.Slot, a *studio.Attachment) (string, error) {
	if !a.Loaded() {
		return "", fmt.Errorf("%w: %s", ErrAttachmentNotLoaded, slot)
	}
	return attachment.DataURL(a.MimeType, a.Data), nil
}
