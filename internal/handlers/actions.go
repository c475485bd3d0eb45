package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"charstudio/internal/animation"
	"charstudio/internal/exchange"
	"charstudio/internal/payload"
	"charstudio/internal/prompt"
	"charstudio/internal/sdapi"
	"charstudio/internal/studio"
	"charstudio/internal/tts"
)

func randomize(st *studio.State) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	st.Randomize(rng)
}

// selection returns the user's state with handler defaults applied.
func (h *Handler) selection(chatID, userID int64) studio.State {
	st := h.store.Get(chatID, userID).Selection
	if st.Backend.Model == "" {
		st.Backend.Model = h.defaultModel
	}
	return st
}

func (h *Handler) sendPrompt(chatID, userID int64) error {
	compiled := prompt.Compile(h.selection(chatID, userID))
	return h.bot.SendCode(chatID, compiled.ClipboardText())
}

func (h *Handler) sendPayload(chatID, userID int64, mode payload.Mode) error {
	st := h.selection(chatID, userID)
	req, err := previewPayload(st, mode)
	if errors.Is(err, payload.ErrInvalidModeInput) {
		return h.bot.SendText(chatID, "❌ img2img needs a reference image. Send one with /ref.")
	}
	if err != nil {
		h.logger.Error("payload preview failed", "err", err)
		return h.bot.SendText(chatID, "❌ Could not build the payload.")
	}

	raw, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return err
	}
	return h.bot.SendCode(chatID, string(raw))
}

// previewPayload assembles mode with attached images replaced by short
// placeholders so the body fits a chat message.
func previewPayload(st studio.State, mode payload.Mode) (payload.Request, error) {
	compiled := prompt.Compile(st)
	if mode == payload.ModeTxt2Img && st.Files.Pose == nil {
		return payload.Preview(compiled, st), nil
	}

	var files studio.Files
	for _, slot := range studio.Slots() {
		if a := st.Files.Get(slot); a != nil {
			files.Set(slot, &studio.Attachment{FileID: a.FileID, MimeType: a.MimeType, Data: []byte{0}})
		}
	}
	st.Files = files

	req, err := payload.Assemble(compiled, st, mode)
	if err != nil {
		return payload.Request{}, err
	}

	placeholder := func(slot studio.Slot) string { return "<" + string(slot) + " image>" }
	for i := range req.InitImages {
		req.InitImages[i] = placeholder(studio.SlotReference)
	}
	if req.Mask != "" {
		req.Mask = placeholder(studio.SlotMask)
	}
	if req.AlwaysonScripts != nil && req.AlwaysonScripts.ControlNet != nil {
		for i := range req.AlwaysonScripts.ControlNet.Args {
			req.AlwaysonScripts.ControlNet.Args[i].InputImage = placeholder(studio.SlotPose)
		}
	}
	return req, nil
}

func (h *Handler) generate(ctx context.Context, chatID, userID int64, mode payload.Mode) error {
	if h.gen == nil {
		return h.bot.SendText(chatID, "❌ Generation backend is not configured.")
	}

	st := h.selection(chatID, userID)
	compiled := prompt.Compile(st)

	req, err := payload.AssembleAsync(ctx, compiled, st, mode, h.files)
	switch {
	case errors.Is(err, payload.ErrInvalidModeInput):
		return h.bot.SendText(chatID, "❌ img2img needs a reference image. Send one with /ref.")
	case err != nil:
		h.logger.Error("attachment load failed", "err", err, "mode", mode)
		return h.bot.SendText(chatID, "❌ Could not load the attached images. Send them again.")
	}

	h.bot.SendUploadingPhoto(chatID)
	_ = h.bot.SendText(chatID, fmt.Sprintf("🎨 Generating (%s, seed %d), please wait...", mode, st.Seed))

	res, err := h.gen.Generate(ctx, st.Backend.URL, mode, req)
	if err != nil {
		h.logger.Error("generation failed", "err", err, "mode", mode)
		if errors.Is(err, sdapi.ErrBackendUnreachable) {
			return h.bot.SendText(chatID, "❌ Backend is unreachable. Check /backend and /ping.")
		}
		return h.bot.SendText(chatID, "❌ Generation failed. Try again.")
	}
	if len(res.Images) == 0 {
		return h.bot.SendText(chatID, "❌ Backend returned no images.")
	}

	caption := fmt.Sprintf("✅ %s, seed %d", mode, st.Seed)
	for i, img := range res.Images {
		sendCaption := ""
		if i == 0 {
			sendCaption = caption
		}
		if err := h.bot.SendPhotoBase64(chatID, img, sendCaption); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) sendExport(chatID, userID int64) error {
	st := h.selection(chatID, userID)
	doc := animation.Compile(prompt.Compile(st), st)
	raw, err := animation.Marshal(doc)
	if err != nil {
		return err
	}
	return h.bot.SendDocument(chatID, animation.FileName, raw, "🎬 Animation job")
}

func (h *Handler) ping(ctx context.Context, chatID, userID int64) error {
	if h.gen == nil {
		return h.bot.SendText(chatID, "❌ Generation backend is not configured.")
	}
	st := h.selection(chatID, userID)
	if err := h.gen.Ping(ctx, st.Backend.URL); err != nil {
		h.logger.Warn("backend ping failed", "err", err)
		return h.bot.SendText(chatID, "🔴 Backend unreachable.")
	}
	return h.bot.SendText(chatID, "🟢 Backend is up.")
}

func (h *Handler) say(ctx context.Context, chatID, userID int64, messageID int, args string) error {
	if h.speech == nil {
		return h.bot.SendText(chatID, "❌ Speech backend is not configured.")
	}

	preset := h.voicePreset
	if fields := strings.Fields(args); len(fields) > 1 && tts.IsPreset(fields[0]) {
		preset = fields[0]
		args = strings.TrimSpace(strings.TrimPrefix(args, fields[0]))
	}
	if args == "" {
		return h.bot.SendText(chatID, "❌ Nothing to say.\nExample: /say warm Good morning!")
	}

	m := exchange.New(userID, chatID, messageID, exchange.TypeCommand, args)
	m.Options = &exchange.Options{Voice: true, VoicePreset: preset}
	if err := m.Validate(); err != nil {
		h.logger.Warn("invalid speech message", "err", err)
		return h.bot.SendText(chatID, "❌ Unknown voice preset.")
	}
	req, ok := m.SpeechRequest()
	if !ok {
		return nil
	}

	h.bot.SendRecordingVoice(chatID)
	audio, err := h.speech.Synthesize(ctx, req)
	switch {
	case errors.Is(err, tts.ErrNoAudioData):
		h.logger.Warn("speech returned no audio", "err", err)
		return h.bot.SendText(chatID, "❌ Speech server returned no audio.")
	case err != nil:
		h.logger.Error("speech failed", "err", err)
		return h.bot.SendText(chatID, "❌ Speech server is unreachable.")
	}

	return h.bot.SendVoice(chatID, audio.FileName, audio.Data, "")
}
