package studio

import (
	"encoding/json"
	"strings"
)

// MaxOutfitColors caps how many accent colors a selection may hold.
const MaxOutfitColors = 3

// ColorSet is an insertion-ordered set of hex codes holding at most
// MaxOutfitColors entries. The zero value is an empty set.
type ColorSet struct {
	items []string
}

func NewColorSet(colors ...string) ColorSet {
	var s ColorSet
	for _, c := range colors {
		c = normalizeHex(c)
		if c == "" || s.Contains(c) {
			continue
		}
		s.items = append(s.items, c)
	}
	s.truncate()
	return s
}

// Toggle removes hex when present, otherwise appends it. The set is then
// truncated to MaxOutfitColors, so adding to a full set is a no-op.
func (s *ColorSet) Toggle(hex string) {
	hex = normalizeHex(hex)
	if hex == "" {
		return
	}
	if idx := s.index(hex); idx >= 0 {
		s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
		return
	}
	// Copy first: State values are passed around by value and must not share
	// a backing array.
	s.items = append(s.Values(), hex)
	s.truncate()
}

func (s ColorSet) Contains(hex string) bool {
	return s.index(normalizeHex(hex)) >= 0
}

func (s ColorSet) Len() int {
	return len(s.items)
}

// Values returns a copy of the members in insertion order.
func (s ColorSet) Values() []string {
	return append([]string(nil), s.items...)
}

func (s ColorSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *ColorSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewColorSet(raw...)
	return nil
}

func (s ColorSet) index(hex string) int {
	for i, v := range s.items {
		if v == hex {
			return i
		}
	}
	return -1
}

func (s *ColorSet) truncate() {
	if len(s.items) > MaxOutfitColors {
		s.items = s.items[:MaxOutfitColors]
	}
}

func normalizeHex(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
