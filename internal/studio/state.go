package studio

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"charstudio/internal/lexicon"
)

type Preset string

const (
	PresetPhotoreal Preset = "photoreal"
	PresetEditorial Preset = "editorial"
	PresetSoftGlam  Preset = "soft_glam"
	PresetAnime     Preset = "anime"
)

// CFGScale is the guidance scale a preset generates with.
func (p Preset) CFGScale() float64 {
	if p == PresetAnime {
		return 6.5
	}
	return 5.5
}

type Backend struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Model string `json:"model"`
}

// Attachment is an image supplied with a selection. FileID points at a
// remote copy that still has to be fetched; Data holds the bytes once loaded.
type Attachment struct {
	FileID   string
	Name     string
	MimeType string
	Data     []byte
}

func (a *Attachment) Loaded() bool {
	return a != nil && len(a.Data) > 0
}

type Files struct {
	Reference *Attachment
	Pose      *Attachment
	Mask      *Attachment
}

// Slot names an attachment position in Files.
type Slot string

const (
	SlotReference Slot = "reference"
	SlotPose      Slot = "pose"
	SlotMask      Slot = "mask"
)

func Slots() []Slot {
	return []Slot{SlotReference, SlotPose, SlotMask}
}

func (f *Files) Get(slot Slot) *Attachment {
	switch slot {
	case SlotReference:
		return f.Reference
	case SlotPose:
		return f.Pose
	case SlotMask:
		return f.Mask
	}
	return nil
}

func (f *Files) Set(slot Slot, a *Attachment) {
	switch slot {
	case SlotReference:
		f.Reference = a
	case SlotPose:
		f.Pose = a
	case SlotMask:
		f.Mask = a
	}
}

// State is the user's current selection.
type State struct {
	Preset            Preset   `json:"preset"`
	SkinTone          string   `json:"skinTone"`
	HairStyle         string   `json:"hairStyle"`
	HairColor         string   `json:"hairColor"`
	BodyType          string   `json:"bodyType"`
	Outfit            string   `json:"outfit"`
	OutfitColors      ColorSet `json:"outfitColors"`
	Pose              string   `json:"pose"`
	Seed              int64    `json:"seed"`
	Backend           Backend  `json:"backend"`
	ReferenceStrength float64  `json:"referenceStrength"`
	Files             Files    `json:"-"`
}

const (
	defaultReferenceStrength = 0.6
	maxRandomSeed            = 100000000
)

func Default() State {
	return State{
		Preset:            PresetPhotoreal,
		SkinTone:          "light neutral",
		HairStyle:         "long wavy",
		HairColor:         "#3b2f2f",
		BodyType:          "slim",
		Outfit:            "summer dress",
		OutfitColors:      NewColorSet("#9b5de5", "#ffd6e7"),
		Pose:              "natural standing",
		Seed:              rand.Int64N(1000000),
		Backend:           Backend{Type: "a1111"},
		ReferenceStrength: defaultReferenceStrength,
	}
}

// Select applies a catalog choice. Hex codes outside the catalog are accepted
// for color categories; outfit colors toggle. It reports whether the value
// was applied.
func (s *State) Select(c lexicon.Category, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	switch c {
	case lexicon.CategoryHairColor:
		if !lexicon.Valid(c, value) && !lexicon.IsHexColor(value) {
			return false
		}
		s.HairColor = value
		return true
	case lexicon.CategoryOutfitColor:
		if !lexicon.Valid(c, value) && !lexicon.IsHexColor(value) {
			return false
		}
		s.OutfitColors.Toggle(value)
		return true
	}

	if !lexicon.Valid(c, value) {
		return false
	}
	switch c {
	case lexicon.CategoryPreset:
		s.Preset = Preset(value)
	case lexicon.CategorySkinTone:
		s.SkinTone = value
	case lexicon.CategoryHairStyle:
		s.HairStyle = value
	case lexicon.CategoryBodyType:
		s.BodyType = value
	case lexicon.CategoryOutfit:
		s.Outfit = value
	case lexicon.CategoryPose:
		s.Pose = value
	default:
		return false
	}
	return true
}

// Selected returns the value currently held for a single-valued category.
func (s State) Selected(c lexicon.Category) string {
	switch c {
	case lexicon.CategoryPreset:
		return string(s.Preset)
	case lexicon.CategorySkinTone:
		return s.SkinTone
	case lexicon.CategoryHairStyle:
		return s.HairStyle
	case lexicon.CategoryHairColor:
		return s.HairColor
	case lexicon.CategoryBodyType:
		return s.BodyType
	case lexicon.CategoryOutfit:
		return s.Outfit
	case lexicon.CategoryPose:
		return s.Pose
	case lexicon.CategoryOutfitColor:
		return strings.Join(s.OutfitColors.Values(), ",")
	}
	return ""
}

func (s *State) SetReferenceStrength(v float64) {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	s.ReferenceStrength = v
}

func (s *State) SetSeed(seed int64) {
	if seed < 0 {
		seed = -seed
	}
	s.Seed = seed
}

// Randomize picks a random entry per category, up to two distinct outfit
// colors and a fresh seed. Backend settings and attachments are kept.
func (s *State) Randomize(rng *rand.Rand) {
	pick := func(c lexicon.Category) string {
		opts := lexicon.ListOptions(c)
		return opts[rng.IntN(len(opts))].Value
	}

	s.Preset = Preset(pick(lexicon.CategoryPreset))
	s.SkinTone = pick(lexicon.CategorySkinTone)
	s.HairStyle = pick(lexicon.CategoryHairStyle)
	s.HairColor = pick(lexicon.CategoryHairColor)
	s.BodyType = pick(lexicon.CategoryBodyType)
	s.Outfit = pick(lexicon.CategoryOutfit)
	s.OutfitColors = NewColorSet(pick(lexicon.CategoryOutfitColor), pick(lexicon.CategoryOutfitColor))
	s.Pose = pick(lexicon.CategoryPose)
	s.Seed = rng.Int64N(maxRandomSeed)
}

// UIState wraps a selection with the bot menu bookkeeping.
type UIState struct {
	Selection State

	Menu      string // "main" | lexicon category
	Awaiting  Slot   // attachment slot the next photo fills
	MessageID int

	UpdatedAt time.Time
}

type Store struct {
	mu sync.Mutex
	m  map[stateKey]*UIState
}

type stateKey struct {
	ChatID int64
	UserID int64
}

func NewStore() *Store {
	return &Store{m: make(map[stateKey]*UIState)}
}

func (s *Store) Get(chatID, userID int64) UIState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.getOrCreateLocked(chatID, userID)
}

func (s *Store) Update(chatID, userID int64, fn func(*UIState)) UIState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(chatID, userID)
	if fn != nil {
		fn(st)
	}
	st.UpdatedAt = time.Now()
	return *st
}

// Reset restores the default selection, keeping the backend settings and the
// menu message so the keyboard can be edited in place.
func (s *Store) Reset(chatID, userID int64) UIState {
	return s.Update(chatID, userID, func(st *UIState) {
		backend := st.Selection.Backend
		msgID := st.MessageID
		*st = defaultState()
		st.Selection.Backend = backend
		st.MessageID = msgID
	})
}

func (s *Store) getOrCreateLocked(chatID, userID int64) *UIState {
	key := stateKey{ChatID: chatID, UserID: userID}
	if st, ok := s.m[key]; ok {
		return st
	}
	st := defaultState()
	s.m[key] = &st
	return s.m[key]
}

func defaultState() UIState {
	return UIState{
		Selection: Default(),
		Menu:      "main",
		UpdatedAt: time.Now(),
	}
}
