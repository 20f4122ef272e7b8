package model

import (
	"fmt"
	"strings"
)

// Importance is the priority level of an item.
type Importance int

const (
	Low Importance = iota - 1
	Normal
	High
)

// Label is the localized display label.
func (i Importance) Label() string {
	switch i {
	case Low:
		return "😴Неважно"
	case High:
		return "❗Сверхважно"
	default:
		return "🙏Обычно"
	}
}

// RuName is the name persisted in the JSON cache file.
func (i Importance) RuName() string {
	switch i {
	case Low:
		return "неважная"
	case High:
		return "важная"
	default:
		return "обычная"
	}
}

func (i Importance) String() string {
	switch i {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return "normal"
	}
}

// Next cycles low -> normal -> high -> low.
func (i Importance) Next() Importance {
	switch i {
	case Low:
		return Normal
	case Normal:
		return High
	default:
		return Low
	}
}

// ImportanceFromRuName maps a stored name back; anything unknown is Normal.
func ImportanceFromRuName(s string) Importance {
	switch s {
	case Low.RuName():
		return Low
	case High.RuName():
		return High
	default:
		return Normal
	}
}

// ParseImportance accepts low/normal/high (any case) or a stored ru name.
func ParseImportance(s string) (Importance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", Low.RuName():
		return Low, nil
	case "normal", "", Normal.RuName():
		return Normal, nil
	case "high", High.RuName():
		return High, nil
	}
	return Normal, fmt.Errorf("unknown importance %q (want low, normal or high)", s)
}
