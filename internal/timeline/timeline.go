// Package timeline reconciles a conversation's message history from two
// feeds: paginated REST backfill and live WebSocket events. Message ids are
// the single source of identity; every merge dedupes by id, deletes leave
// tombstones so a stale refetch cannot resurrect them, and reads come back
// sorted ascending by creation time.
package timeline

import (
	"sort"
	"sync"
	"time"
)

// Message is one entry in a conversation.
type Message struct {
	ID             int64      `json:"id"`
	SenderID       int64      `json:"sender_id"`
	RecipientID    int64      `json:"recipient_id"`
	ConversationID int64      `json:"conversation_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
}

// Page is one REST backfill page, newest page first (page 1 holds the most
// recent messages).
type Page struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Total    int       `json:"total"`
}

// entry wraps a Message with its tombstone flag.
type entry struct {
	msg     Message
	deleted bool
}

// Reconciler merges pages and live events into one deduplicated timeline.
type Reconciler struct {
	mu       sync.Mutex
	byID     map[int64]*entry
	page     int // highest page merged so far
	pageSize int
	total    int
}

// NewReconciler returns an empty Reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{byID: make(map[int64]*entry)}
}

// MergePage folds one REST page into the timeline.
//
// Page 1 is the authoritative fresh window: its copies supersede what is in
// memory by id, except that ids already known locally but missing from the
// page are kept. A page served by a lagging read replica may not contain a
// message the live socket already delivered, and forgetting it would make it
// flicker out of the conversation. Within a superseded id, local knowledge
// the page cannot have yet also survives: a tombstone always wins, a local
// edit newer than the page copy wins, and is_read=true is never downgraded.
//
// Pages beyond 1 are older history and only fill gaps: ids already present
// are left untouched.
func (r *Reconciler) MergePage(p Page) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Page > r.page {
		r.page = p.Page
	}
	if p.PageSize > 0 {
		r.pageSize = p.PageSize
	}
	r.total = p.Total

	for _, m := range p.Messages {
		cur, known := r.byID[m.ID]
		if !known {
			msg := m
			r.byID[m.ID] = &entry{msg: msg}
			continue
		}
		if p.Page > 1 {
			continue
		}
		if cur.deleted {
			continue
		}
		merged := m
		if cur.msg.EditedAt != nil && (m.EditedAt == nil || cur.msg.EditedAt.After(*m.EditedAt)) {
			merged.Content = cur.msg.Content
			merged.EditedAt = cur.msg.EditedAt
		}
		if cur.msg.IsRead && !merged.IsRead {
			merged.IsRead = true
			merged.ReadAt = cur.msg.ReadAt
		}
		cur.msg = merged
	}
}

// ApplyNew appends a live message. A duplicate id is a no-op: the server may
// race a new_message event against a page-1 refresh.
func (r *Reconciler) ApplyNew(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.byID[m.ID]; known {
		return
	}
	msg := m
	r.byID[m.ID] = &entry{msg: msg}
	r.total++
}

// ApplyRead marks one message read. Unknown ids are ignored; is_read never
// goes back to false.
func (r *Reconciler) ApplyRead(id int64, readAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, known := r.byID[id]
	if !known || cur.deleted || cur.msg.IsRead {
		return
	}
	cur.msg.IsRead = true
	at := readAt
	cur.msg.ReadAt = &at
}

// ApplyEdited replaces a message's content. Unknown ids and tombstones are
// ignored.
func (r *Reconciler) ApplyEdited(id int64, content string, editedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, known := r.byID[id]
	if !known || cur.deleted {
		return
	}
	cur.msg.Content = content
	at := editedAt
	cur.msg.EditedAt = &at
}

// ApplyDeleted tombstones a message. The id stays in the set so a later
// refetch containing the message cannot bring it back. Unknown ids leave a
// bare tombstone for the same reason.
func (r *Reconciler) ApplyDeleted(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, known := r.byID[id]
	if known {
		cur.deleted = true
		return
	}
	r.byID[id] = &entry{msg: Message{ID: id}, deleted: true}
}

// Messages returns the visible timeline sorted ascending by created_at,
// recomputed on every call. Ties sort by id so the order is stable.
func (r *Reconciler) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, 0, len(r.byID))
	for _, e := range r.byID {
		if e.deleted {
			continue
		}
		out = append(out, e.msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// HasMore reports whether older pages remain on the server.
func (r *Reconciler) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pageSize == 0 {
		return false
	}
	pages := (r.total + r.pageSize - 1) / r.pageSize
	return r.page < pages
}

// NextPage returns the page number to fetch for older history. It only grows;
// merging page 1 again after a reconnect does not reset pagination.
func (r *Reconciler) NextPage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page + 1
}

// Reset drops everything, for a full reload.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[int64]*entry)
	r.page = 0
	r.pageSize = 0
	r.total = 0
}
