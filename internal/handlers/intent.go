package handlers

import (
	"errors"
	"strconv"
	"strings"

	"charstudio/internal/payload"
	"charstudio/internal/studio"
)

// slotFromCaption picks the attachment slot a captioned photo fills. Photos
// without a recognised keyword become the reference image.
func slotFromCaption(caption string) studio.Slot {
	c := strings.ToLower(strings.TrimSpace(caption))
	if c == "" {
		return studio.SlotReference
	}

	keywords := []struct {
		slot  studio.Slot
		words []string
	}{
		{studio.SlotMask, []string{"mask", "inpaint"}},
		{studio.SlotPose, []string{"pose", "openpose", "skeleton", "controlnet"}},
		{studio.SlotReference, []string{"ref", "reference", "init"}},
	}

	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(c, w) {
				return k.slot
			}
		}
	}

	return studio.SlotReference
}

func parseSlot(v string) (studio.Slot, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "ref", "reference":
		return studio.SlotReference, true
	case "pose":
		return studio.SlotPose, true
	case "mask":
		return studio.SlotMask, true
	}
	return "", false
}

var errBadNumber = errors.New("not a number")

// parseStrength accepts 0..1 or a percentage like "60%".
func parseStrength(v string) (float64, error) {
	v = strings.TrimSpace(v)
	percent := strings.HasSuffix(v, "%")
	v = strings.TrimSuffix(v, "%")
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return 0, errBadNumber
	}
	if percent || f > 1 {
		f /= 100
	}
	return f, nil
}

func parseSeed(v string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, errBadNumber
	}
	return n, nil
}

// modeFromArgs reads an optional mode argument; empty means txt2img.
func modeFromArgs(args string, fallback payload.Mode) (payload.Mode, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return fallback, nil
	}
	return payload.ParseMode(strings.Fields(args)[0])
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
