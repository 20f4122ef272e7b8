package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyText = errors.New("empty text")
	ErrEmptyUID  = errors.New("empty uid")
)

// Item is the domain model for a todo entry.
type Item struct {
	UID        string
	Text       string
	Importance Importance
	Color      Color
	Deadline   *time.Time
	Done       bool
	CreatedAt  time.Time
	ChangedAt  time.Time
}

// New returns a pending item with a fresh uid and default metadata.
func New(text string) Item {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Item{
		UID:        NewUID(),
		Text:       strings.TrimSpace(text),
		Importance: Normal,
		Color:      White,
		CreatedAt:  now,
		ChangedAt:  now,
	}
}

func NewUID() string { return uuid.NewString() }

func (it Item) Validate() error {
	if strings.TrimSpace(it.UID) == "" {
		return ErrEmptyUID
	}
	if strings.TrimSpace(it.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// Toggled returns a copy with Done flipped.
func (it Item) Toggled() Item {
	it.Done = !it.Done
	it.Touch()
	return it
}

// Touch bumps ChangedAt.
func (it *Item) Touch() {
	it.ChangedAt = time.Now().UTC().Truncate(time.Millisecond)
}

// Overdue reports whether a pending item is past its deadline.
func (it Item) Overdue(now time.Time) bool {
	return !it.Done && it.Deadline != nil && it.Deadline.Before(now)
}

// Stats counts done and pending items.
func Stats(items []Item) (done, pending int) {
	for _, it := range items {
		if it.Done {
			done++
		} else {
			pending++
		}
	}
	return
}

// IndexOf returns the position of uid in items or -1.
func IndexOf(items []Item, uid string) int {
	for i := range items {
		if items[i].UID == uid {
			return i
		}
	}
	return -1
}

// MillisTime converts epoch millis to UTC time.
func MillisTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeMillis returns epoch millis, 0 for the zero time.
func TimeMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
