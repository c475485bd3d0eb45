package mediagroup

import (
	"fmt"
	"sync"
	"time"

	"charstudio/internal/studio"
)

type Item struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	Caption      string
	FileID       string
	FileName     string
	MimeType     string
}

// Group is one album, photos kept in arrival order.
type Group struct {
	ChatID  int64
	UserID  int64
	Caption string
	Items   []Item
}

// Slots maps the album onto attachment slots: first photo is the reference,
// second the pose image, third the mask. Photos past the third are returned
// as extra.
func (g Group) Slots() (assigned map[studio.Slot]*studio.Attachment, extra int) {
	order := studio.Slots()
	assigned = make(map[studio.Slot]*studio.Attachment, len(order))
	for i, it := range g.Items {
		if i >= len(order) {
			return assigned, len(g.Items) - len(order)
		}
		assigned[order[i]] = &studio.Attachment{
			FileID:   it.FileID,
			Name:     it.FileName,
			MimeType: it.MimeType,
		}
	}
	return assigned, 0
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	groups   map[string]*pendingGroup
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingGroup),
	}
}

func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{
			group: Group{
				ChatID:  item.ChatID,
				UserID:  item.UserID,
				Caption: item.Caption,
			},
		}
		a.groups[key] = pg
	}
	pg.group.Items = append(pg.group.Items, item)
	if item.Caption != "" {
		pg.group.Caption = item.Caption
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

// Pending reports how many albums are still collecting photos.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
