package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/ui"
)

// resolveRef finds an item by 1-based index, uid, or unique uid prefix.
func resolveRef(items []model.Item, ref string) (model.Item, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return model.Item{}, &usageError{
				err:  fmt.Errorf("index out of range: have %d, got %d", len(items), n),
				hint: "Hint: run `tada ls` to see valid indexes",
			}
		}
		return items[n-1], nil
	}

	var match []model.Item
	for _, it := range items {
		if it.UID == ref {
			return it, nil
		}
		if strings.HasPrefix(it.UID, ref) {
			match = append(match, it)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return model.Item{}, usagef("no item matches %q", ref)
	}
	return model.Item{}, usagef("%q matches %d items, use more of the uid", ref, len(match))
}

// parseDeadline accepts a date (local midnight) or an RFC 3339 timestamp.
func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(ui.DateLayout, s, time.Local); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, usagef("deadline %q: want YYYY-MM-DD or RFC 3339", s)
	}
	t = t.UTC().Truncate(time.Millisecond)
	return &t, nil
}

// itemFlags are the metadata flags shared by add and edit.
type itemFlags struct {
	importance string
	color      string
	deadline   string
	noDeadline bool
}

// apply copies the flags the user actually set onto it.
func (f itemFlags) apply(it *model.Item, changed func(string) bool) error {
	if changed("importance") {
		imp, err := model.ParseImportance(f.importance)
		if err != nil {
			return &usageError{err: err}
		}
		it.Importance = imp
	}
	if changed("color") {
		c, err := model.ParseColor(f.color)
		if err != nil {
			return &usageError{err: err}
		}
		it.Color = c
	}
	if changed("deadline") {
		d, err := parseDeadline(f.deadline)
		if err != nil {
			return err
		}
		it.Deadline = d
	}
	if f.noDeadline {
		it.Deadline = nil
	}
	return nil
}
