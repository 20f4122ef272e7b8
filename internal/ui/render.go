package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/wewew312/todomemes/internal/model"
)

const (
	maxTextWidth = 80
	DateLayout   = "2006-01-02"
)

// Header is the counts line shown above a list.
func Header(items []model.Item) string {
	t := Current()
	d, p := model.Stats(items)
	return fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		C(t.Title, "Todos"),
		C(t.Success, t.SymDone), d,
		C(t.Pending, t.SymUnchecked), p,
		C(t.Accent, "Total"), len(items),
	)
}

// Marker is the importance glyph: high and low get one, normal is blank.
func Marker(i model.Importance) string {
	t := Current()
	switch i {
	case model.High:
		return C(t.Error, t.SymHigh)
	case model.Low:
		return C(t.Muted, t.SymLow)
	}
	return ""
}

// Deadline renders the due date, highlighted when overdue.
func Deadline(it model.Item, now time.Time) string {
	if it.Deadline == nil {
		return ""
	}
	s := "due " + it.Deadline.Local().Format(DateLayout)
	if it.Overdue(now) {
		return C(Current().Error, s)
	}
	return C(Current().Muted, s)
}

// ItemLine renders one row; index is the 1-based position shown to users.
func ItemLine(index int, it model.Item, now time.Time) string {
	t := Current()
	box, color, text := t.BoxUnchecked, t.Muted, runewidth.Truncate(it.Text, maxTextWidth, "...")
	if it.Done {
		box, color = t.BoxChecked, t.Success
		text = C(strike, text)
	}

	parts := []string{C(dim, fmt.Sprintf("%2d.", index)), C(color, box)}
	if m := Marker(it.Importance); m != "" {
		parts = append(parts, m)
	}
	parts = append(parts, text)
	if sw := Swatch(it.Color); sw != "" {
		parts = append(parts, sw)
	}
	if dl := Deadline(it, now); dl != "" {
		parts = append(parts, dl)
	}
	return strings.Join(parts, " ")
}

// FlatLines numbers items in list order.
func FlatLines(items []model.Item, now time.Time) []string {
	if len(items) == 0 {
		return []string{C(Current().Muted, "no items")}
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		out = append(out, ItemLine(i+1, it, now))
	}
	return out
}

// GroupLines splits pending from done. Indexes still refer to the full
// list so they can be passed to done/rm.
func GroupLines(items []model.Item, now time.Time) []string {
	t := Current()
	var pend, done []string
	for i, it := range items {
		if it.Done {
			done = append(done, ItemLine(i+1, it, now))
		} else {
			pend = append(pend, ItemLine(i+1, it, now))
		}
	}
	none := []string{C(t.Muted, "(none)")}
	if len(pend) == 0 {
		pend = none
	}
	if len(done) == 0 {
		done = none
	}
	lines := []string{C(t.Accent, "Pending")}
	lines = append(lines, pend...)
	lines = append(lines, "", C(t.Accent, "Done"))
	return append(lines, done...)
}

// Detail renders every field of one item, for `show`.
func Detail(it model.Item) []string {
	t := Current()
	status := "pending"
	if it.Done {
		status = "done"
	}
	deadline := "none"
	if it.Deadline != nil {
		deadline = it.Deadline.Local().Format(DateLayout)
	}
	row := func(k, v string) string { return C(t.Muted, fmt.Sprintf("%-11s", k)) + v }
	return []string{
		C(t.Title, it.Text),
		"",
		row("uid", it.UID),
		row("status", status),
		row("importance", it.Importance.Label()),
		row("color", it.Color.Hex()+" "+Swatch(it.Color)),
		row("deadline", deadline),
		row("created", it.CreatedAt.Local().Format(time.DateTime)),
		row("changed", it.ChangedAt.Local().Format(time.DateTime)),
	}
}
