package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"charstudio/internal/attachment"
	"charstudio/internal/lexicon"
	"charstudio/internal/mediagroup"
	"charstudio/internal/payload"
	"charstudio/internal/sdapi"
	"charstudio/internal/studio"
	"charstudio/internal/tts"
)

// Bot is the subset of the Telegram client the handlers drive.
type Bot interface {
	SendText(chatID int64, text string) error
	SendCode(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID string, text string)
	SendTyping(chatID int64)
	SendUploadingPhoto(chatID int64)
	SendRecordingVoice(chatID int64)
	SendPhotoBase64(chatID int64, value string, caption string) error
	SendDocument(chatID int64, name string, data []byte, caption string) error
	SendVoice(chatID int64, name string, data []byte, caption string) error
}

type Generator interface {
	Generate(ctx context.Context, baseURL string, mode payload.Mode, req payload.Request) (sdapi.Result, error)
	Ping(ctx context.Context, baseURL string) error
}

type Speaker interface {
	Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error)
}

type Options struct {
	Bot       Bot
	Files     attachment.Loader
	Generator Generator
	Speech    Speaker
	Store     *studio.Store
	Logger    *slog.Logger

	// DefaultModel is used when a selection names no checkpoint.
	DefaultModel string
	VoicePreset  string
}

type Handler struct {
	bot          Bot
	files        attachment.Loader
	gen          Generator
	speech       Speaker
	store        *studio.Store
	logger       *slog.Logger
	aggregator   *mediagroup.Aggregator
	defaultModel string
	voicePreset  string
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store := opts.Store
	if store == nil {
		store = studio.NewStore()
	}

	return &Handler{
		bot:          opts.Bot,
		files:        opts.Files,
		gen:          opts.Generator,
		speech:       opts.Speech,
		store:        store,
		logger:       logger,
		defaultModel: strings.TrimSpace(opts.DefaultModel),
		voicePreset:  strings.TrimSpace(opts.VoicePreset),
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return h.handleImage(chatID, userID, msg, &studio.Attachment{
			FileID:   photo.FileID,
			MimeType: "image/jpeg",
		})
	}

	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		return h.handleImage(chatID, userID, msg, &studio.Attachment{
			FileID:   doc.FileID,
			Name:     doc.FileName,
			MimeType: doc.MimeType,
		})
	}

	if msg.Text != "" {
		return h.handleText(chatID, userID, msg.Text)
	}

	return nil
}

// HandleMediaGroup stores an album as reference, pose and mask images.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	slots, extra := group.Slots()
	h.store.Update(group.ChatID, group.UserID, func(st *studio.UIState) {
		for slot, a := range slots {
			st.Selection.Files.Set(slot, a)
		}
		st.Awaiting = ""
	})

	var names []string
	for _, slot := range studio.Slots() {
		if _, ok := slots[slot]; ok {
			names = append(names, string(slot))
		}
	}
	text := "📎 Album saved: " + strings.Join(names, ", ") + "."
	if extra > 0 {
		text += fmt.Sprintf("\n%d extra photo(s) ignored.", extra)
	}
	if err := h.bot.SendText(group.ChatID, text); err != nil {
		h.logger.Error("album reply failed", "err", err)
		return
	}
	if err := h.renderUI(group.ChatID, group.UserID, 0, true); err != nil && ctx.Err() == nil {
		h.logger.Error("album render failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return h.bot.SendText(chatID, helpText)
	case "studio":
		h.store.Update(chatID, userID, func(st *studio.UIState) {
			st.Menu = menuMain
			st.MessageID = 0
		})
		return h.renderUI(chatID, userID, 0, false)
	case "random":
		h.store.Update(chatID, userID, func(st *studio.UIState) { randomize(&st.Selection) })
		return h.renderUI(chatID, userID, 0, true)
	case "reset":
		h.store.Reset(chatID, userID)
		return h.renderUI(chatID, userID, 0, true)
	case "prompt":
		return h.sendPrompt(chatID, userID)
	case "payload":
		mode, err := modeFromArgs(args, payload.ModeTxt2Img)
		if err != nil {
			return h.bot.SendText(chatID, "❌ Mode must be txt2img or img2img.")
		}
		return h.sendPayload(chatID, userID, mode)
	case "generate":
		mode, err := modeFromArgs(args, payload.ModeTxt2Img)
		if err != nil {
			return h.bot.SendText(chatID, "❌ Mode must be txt2img or img2img.")
		}
		return h.generate(ctx, chatID, userID, mode)
	case "img2img":
		return h.generate(ctx, chatID, userID, payload.ModeImg2Img)
	case "export":
		return h.sendExport(chatID, userID)
	case "ping":
		return h.ping(ctx, chatID, userID)
	case "seed":
		if args == "" {
			st := h.store.Get(chatID, userID)
			return h.bot.SendText(chatID, fmt.Sprintf("Seed: %d", st.Selection.Seed))
		}
		seed, err := parseSeed(args)
		if err != nil {
			return h.bot.SendText(chatID, "❌ Seed must be a whole number.\nExample: /seed 123456")
		}
		h.store.Update(chatID, userID, func(st *studio.UIState) { st.Selection.SetSeed(seed) })
		return h.renderUI(chatID, userID, 0, true)
	case "strength":
		v, err := parseStrength(args)
		if err != nil {
			return h.bot.SendText(chatID, "❌ Strength must be between 0 and 1.\nExample: /strength 0.6")
		}
		h.store.Update(chatID, userID, func(st *studio.UIState) { st.Selection.SetReferenceStrength(v) })
		return h.renderUI(chatID, userID, 0, true)
	case "model":
		model := args
		if strings.EqualFold(model, "off") {
			model = ""
		}
		h.store.Update(chatID, userID, func(st *studio.UIState) { st.Selection.Backend.Model = model })
		return h.renderUI(chatID, userID, 0, true)
	case "backend":
		url := strings.TrimRight(args, "/")
		if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return h.bot.SendText(chatID, "❌ Backend must be an http(s) URL.\nExample: /backend http://127.0.0.1:7860")
		}
		h.store.Update(chatID, userID, func(st *studio.UIState) { st.Selection.Backend.URL = url })
		return h.renderUI(chatID, userID, 0, true)
	case "color":
		return h.applyColor(chatID, userID, args)
	case "ref", "pose", "mask":
		slot, _ := parseSlot(msg.Command())
		h.store.Update(chatID, userID, func(st *studio.UIState) { st.Awaiting = slot })
		return h.bot.SendText(chatID, fmt.Sprintf("📷 Send the %s image (cancel: /cancel).", slot))
	case "clear_files":
		h.store.Update(chatID, userID, func(st *studio.UIState) {
			st.Selection.Files = studio.Files{}
			st.Awaiting = ""
		})
		return h.renderUI(chatID, userID, 0, true)
	case "cancel":
		h.store.Update(chatID, userID, func(st *studio.UIState) {
			st.Awaiting = ""
			st.Menu = menuMain
		})
		return h.bot.SendText(chatID, "✅ Cancelled.")
	case "say":
		return h.say(ctx, chatID, userID, msg.MessageID, args)
	default:
		return h.bot.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) handleImage(chatID int64, userID int64, msg *tgbotapi.Message, a *studio.Attachment) error {
	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       a.FileID,
			FileName:     a.Name,
			MimeType:     a.MimeType,
		})
		return nil
	}

	var slot studio.Slot
	h.store.Update(chatID, userID, func(st *studio.UIState) {
		slot = st.Awaiting
		if slot == "" {
			slot = slotFromCaption(msg.Caption)
		}
		st.Selection.Files.Set(slot, a)
		st.Awaiting = ""
	})

	if err := h.bot.SendText(chatID, fmt.Sprintf("📎 Saved as %s image.", slot)); err != nil {
		return err
	}
	return h.renderUI(chatID, userID, 0, true)
}

func (h *Handler) handleText(chatID int64, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	st := h.store.Get(chatID, userID)
	if st.Awaiting != "" {
		return h.bot.SendText(chatID, fmt.Sprintf("📷 Waiting for the %s image (cancel: /cancel).", st.Awaiting))
	}
	if lexicon.IsHexColor(text) {
		return h.applyColor(chatID, userID, text)
	}

	return h.bot.SendText(chatID, "Use /studio to open the editor or /help for commands.")
}

// applyColor routes a hex code to the open color menu, hair color by default.
func (h *Handler) applyColor(chatID int64, userID int64, hex string) error {
	hex = strings.TrimSpace(hex)
	if !lexicon.IsHexColor(hex) {
		return h.bot.SendText(chatID, "❌ Colors are hex codes.\nExample: /color #ff8fab")
	}

	applied := false
	h.store.Update(chatID, userID, func(st *studio.UIState) {
		category := lexicon.CategoryHairColor
		if lexicon.Category(st.Menu) == lexicon.CategoryOutfitColor {
			category = lexicon.CategoryOutfitColor
		}
		applied = st.Selection.Select(category, hex)
	})
	if !applied {
		return h.bot.SendText(chatID, "❌ Color was not applied.")
	}
	return h.renderUI(chatID, userID, 0, true)
}

const helpText = "🎨 Character Studio\n\n" +
	"Build a character from presets and send it to your Stable Diffusion backend.\n\n" +
	"/studio - open the editor\n" +
	"/random - random character\n" +
	"/reset - default character\n" +
	"/prompt - show the prompt\n" +
	"/payload [txt2img|img2img] - show the API payload\n" +
	"/generate - txt2img\n" +
	"/img2img - img2img from the reference image\n" +
	"/export - animation job (video_prompt.json)\n" +
	"/ref, /pose, /mask - attach an image\n" +
	"/clear_files - drop attached images\n" +
	"/strength <0..1> - reference strength\n" +
	"/seed <n> - set the seed\n" +
	"/color <#hex> - custom hair or outfit color\n" +
	"/model <name|off> - checkpoint override\n" +
	"/backend <url> - backend URL\n" +
	"/ping - check the backend\n" +
	"/say [sweet|warm|cute] <text> - voice message\n\n" +
	"Photos with a caption containing \"pose\" or \"mask\" fill that slot, others become the reference. " +
	"An album fills reference, pose and mask in order."
