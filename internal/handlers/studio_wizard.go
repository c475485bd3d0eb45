package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"charstudio/internal/lexicon"
	"charstudio/internal/payload"
	"charstudio/internal/prompt"
	"charstudio/internal/studio"
)

const (
	studioCallbackPrefix = "cs"

	menuMain  = "main"
	menuFiles = "files"

	strengthStep = 0.1
)

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}

	ownerID, action, args, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}
	if ownerID != q.From.ID {
		h.bot.AnswerCallback(q.ID, "This menu belongs to someone else.")
		return nil
	}

	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID

	var notice string
	h.store.Update(chatID, ownerID, func(st *studio.UIState) {
		st.MessageID = msgID
		notice = applyAction(st, action, args)
	})

	switch action {
	case "prompt":
		h.bot.AnswerCallback(q.ID, "Prompt")
		if err := h.sendPrompt(chatID, ownerID); err != nil {
			return err
		}
	case "payload":
		h.bot.AnswerCallback(q.ID, "Payload")
		if err := h.sendPayload(chatID, ownerID, payload.ModeTxt2Img); err != nil {
			return err
		}
	case "gen":
		h.bot.AnswerCallback(q.ID, "Generating…")
		mode := payload.ModeTxt2Img
		if len(args) > 0 {
			if m, err := payload.ParseMode(args[0]); err == nil {
				mode = m
			}
		}
		if err := h.generate(ctx, chatID, ownerID, mode); err != nil {
			return err
		}
	case "export":
		h.bot.AnswerCallback(q.ID, "Export")
		if err := h.sendExport(chatID, ownerID); err != nil {
			return err
		}
	case "ping":
		h.bot.AnswerCallback(q.ID, "Ping…")
		if err := h.ping(ctx, chatID, ownerID); err != nil {
			return err
		}
	case "slot":
		h.bot.AnswerCallback(q.ID, notice)
		if notice != "" {
			_ = h.bot.SendText(chatID, "📷 "+notice+" (cancel: /cancel).")
		}
	default:
		if notice == "" {
			notice = "OK"
		}
		h.bot.AnswerCallback(q.ID, notice)
	}

	return h.renderUI(chatID, ownerID, msgID, true)
}

// applyAction mutates the UI state for a callback and returns a short notice
// for the callback answer.
func applyAction(st *studio.UIState, action string, args []string) string {
	switch action {
	case "menu":
		if len(args) >= 1 && validMenu(args[0]) {
			st.Menu = args[0]
		}
	case "set":
		if len(args) < 2 {
			return ""
		}
		category := lexicon.Category(args[0])
		opts := lexicon.ListOptions(category)
		idx, err := strconv.Atoi(args[1])
		if err != nil || idx < 0 || idx >= len(opts) {
			return ""
		}
		if !st.Selection.Select(category, opts[idx].Value) {
			return ""
		}
		if category != lexicon.CategoryOutfitColor {
			st.Menu = menuMain
		}
		return opts[idx].Label
	case "random":
		randomize(&st.Selection)
		st.Menu = menuMain
		return "🎲"
	case "reset":
		backend := st.Selection.Backend
		msgID := st.MessageID
		*st = studio.UIState{Selection: studio.Default(), Menu: menuMain}
		st.Selection.Backend = backend
		st.MessageID = msgID
		return "Reset"
	case "slot":
		if len(args) >= 1 {
			if slot, ok := parseSlot(args[0]); ok {
				st.Awaiting = slot
				return fmt.Sprintf("Send the %s image", slot)
			}
		}
	case "clear":
		if len(args) >= 1 {
			if slot, ok := parseSlot(args[0]); ok {
				st.Selection.Files.Set(slot, nil)
				if st.Awaiting == slot {
					st.Awaiting = ""
				}
				return "Removed"
			}
		}
	case "str":
		if len(args) >= 1 {
			delta := strengthStep
			if args[0] == "-" {
				delta = -strengthStep
			}
			// Round to one decimal so repeated steps stay on the grid.
			v := float64(int((st.Selection.ReferenceStrength+delta)*10+0.5)) / 10
			st.Selection.SetReferenceStrength(v)
			return fmt.Sprintf("Strength %.1f", st.Selection.ReferenceStrength)
		}
	case "close":
		st.Awaiting = ""
		st.Menu = menuMain
	}
	return ""
}

func validMenu(name string) bool {
	if name == menuMain || name == menuFiles {
		return true
	}
	return lexicon.ListOptions(lexicon.Category(name)) != nil
}

func parseCallback(data string) (ownerID int64, action string, args []string, ok bool) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, studioCallbackPrefix+":") {
		return 0, "", nil, false
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return 0, "", nil, false
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", nil, false
	}
	return ownerID, parts[2], parts[3:], true
}

func (h *Handler) renderUI(chatID int64, userID int64, messageID int, edit bool) error {
	st := h.store.Get(chatID, userID)
	if messageID == 0 {
		messageID = st.MessageID
	}

	text := studioUIText(st)
	kb := studioUIKeyboard(userID, st)

	if edit && messageID != 0 {
		if err := h.bot.EditTextWithKeyboard(chatID, messageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.bot.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.store.Update(chatID, userID, func(st *studio.UIState) { st.MessageID = msgID })
	return nil
}

func studioUIText(ui studio.UIState) string {
	st := ui.Selection
	compiled := prompt.Compile(st)

	colors := make([]string, 0, st.OutfitColors.Len())
	for _, c := range st.OutfitColors.Values() {
		colors = append(colors, lexicon.ResolveColorName(c))
	}

	var b strings.Builder
	b.WriteString("🎨 Character Studio\n\n")
	b.WriteString(fmt.Sprintf("Style: %s\n", lexicon.Label(lexicon.CategoryPreset, string(st.Preset))))
	b.WriteString(fmt.Sprintf("Skin: %s\n", lexicon.Label(lexicon.CategorySkinTone, st.SkinTone)))
	b.WriteString(fmt.Sprintf("Hair: %s, %s\n", lexicon.Label(lexicon.CategoryHairStyle, st.HairStyle), lexicon.ResolveColorName(st.HairColor)))
	b.WriteString(fmt.Sprintf("Body: %s\n", lexicon.Label(lexicon.CategoryBodyType, st.BodyType)))
	b.WriteString(fmt.Sprintf("Outfit: %s (%s)\n", lexicon.Label(lexicon.CategoryOutfit, st.Outfit), strings.Join(colors, ", ")))
	b.WriteString(fmt.Sprintf("Pose: %s\n", lexicon.Label(lexicon.CategoryPose, st.Pose)))
	b.WriteString(fmt.Sprintf("Seed: %d, strength: %.2f\n", st.Seed, st.ReferenceStrength))

	backend := st.Backend.URL
	if backend == "" {
		backend = "default"
	}
	if st.Backend.Model != "" {
		backend += ", model " + st.Backend.Model
	}
	b.WriteString("Backend: " + backend + "\n")
	b.WriteString("Files: " + filesSummary(st.Files) + "\n")

	b.WriteString("\n" + truncateLine(compiled.Prompt, 400) + "\n")

	if ui.Awaiting != "" {
		b.WriteString(fmt.Sprintf("\n📷 Send the %s image now (cancel: /cancel).\n", ui.Awaiting))
	}
	if c := lexicon.Category(ui.Menu); c == lexicon.CategoryHairColor || c == lexicon.CategoryOutfitColor {
		b.WriteString("\nA custom hex code like #aabbcc can be sent as text.\n")
	}

	return strings.TrimSpace(b.String())
}

func filesSummary(f studio.Files) string {
	parts := make([]string, 0, 3)
	for _, slot := range studio.Slots() {
		mark := "—"
		if f.Get(slot) != nil {
			mark = "✅"
		}
		parts = append(parts, string(slot)+" "+mark)
	}
	return strings.Join(parts, ", ")
}

func studioUIKeyboard(ownerID int64, st studio.UIState) tgbotapi.InlineKeyboardMarkup {
	switch {
	case st.Menu == menuFiles:
		return filesKeyboard(ownerID, st)
	case st.Menu != menuMain && lexicon.ListOptions(lexicon.Category(st.Menu)) != nil:
		return optionsKeyboard(ownerID, lexicon.Category(st.Menu), st.Selection)
	default:
		return mainKeyboard(ownerID)
	}
}

func mainKeyboard(ownerID int64) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range lexicon.Categories() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Title(), cb(ownerID, "menu", string(c))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🎲 Random", cb(ownerID, "random")),
			tgbotapi.NewInlineKeyboardButtonData("📎 Files", cb(ownerID, "menu", menuFiles)),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📄 Prompt", cb(ownerID, "prompt")),
			tgbotapi.NewInlineKeyboardButtonData("🧾 Payload", cb(ownerID, "payload")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🎨 Generate", cb(ownerID, "gen", string(payload.ModeTxt2Img))),
			tgbotapi.NewInlineKeyboardButtonData("🖼 Img2img", cb(ownerID, "gen", string(payload.ModeImg2Img))),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🎬 Export", cb(ownerID, "export")),
			tgbotapi.NewInlineKeyboardButtonData("🔌 Ping", cb(ownerID, "ping")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
			tgbotapi.NewInlineKeyboardButtonData("Close", cb(ownerID, "close")),
		},
	)

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func optionsKeyboard(ownerID int64, category lexicon.Category, st studio.State) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, opt := range lexicon.ListOptions(category) {
		selected := st.Selected(category) == opt.Value
		if category == lexicon.CategoryOutfitColor {
			selected = st.OutfitColors.Contains(opt.Value)
		}

		label := opt.Label
		if selected {
			label = "✅ " + label
		}

		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "set", string(category), strconv.Itoa(i))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", menuMain)),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func filesKeyboard(ownerID int64, st studio.UIState) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, slot := range studio.Slots() {
		label := "📷 " + string(slot)
		if st.Awaiting == slot {
			label = "⏳ " + string(slot)
		}
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "slot", string(slot))),
		}
		if st.Selection.Files.Get(slot) != nil {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖ remove", cb(ownerID, "clear", string(slot))))
		}
		rows = append(rows, row)
	}

	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("− strength", cb(ownerID, "str", "-")),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%.1f", st.Selection.ReferenceStrength), cb(ownerID, "menu", menuFiles)),
			tgbotapi.NewInlineKeyboardButtonData("+ strength", cb(ownerID, "str", "+")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", menuMain)),
		},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", studioCallbackPrefix, ownerID, strings.Join(parts, ":"))
}
