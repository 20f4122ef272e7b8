package remote

import (
	"strings"
	"time"

	"github.com/wewew312/todomemes/internal/model"
)

// TodoItemDto is the backend's wire form of an item.
type TodoItemDto struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	Importance    string  `json:"importance"`
	Deadline      *int64  `json:"deadline,omitempty"`
	Done          bool    `json:"done"`
	Color         *string `json:"color,omitempty"`
	CreatedAt     int64   `json:"created_at"`
	ChangedAt     int64   `json:"changed_at"`
	LastUpdatedBy string  `json:"last_updated_by"`
}

type ListResponse struct {
	Status   string        `json:"status"`
	List     []TodoItemDto `json:"list"`
	Revision int           `json:"revision"`
}

type ItemResponse struct {
	Status   string      `json:"status"`
	Element  TodoItemDto `json:"element"`
	Revision int         `json:"revision"`
}

type ElementRequest struct {
	Element TodoItemDto `json:"element"`
}

type ListRequest struct {
	List []TodoItemDto `json:"list"`
}

const (
	apiLow       = "low"
	apiBasic     = "basic"
	apiImportant = "important"
)

func importanceToAPI(i model.Importance) string {
	switch i {
	case model.Low:
		return apiLow
	case model.High:
		return apiImportant
	default:
		return apiBasic
	}
}

func importanceFromAPI(s string) model.Importance {
	switch strings.ToLower(s) {
	case apiLow:
		return model.Low
	case apiImportant:
		return model.High
	default:
		return model.Normal
	}
}

// ToDomain maps a dto; unknown importance becomes Normal and a missing or
// malformed color becomes White.
func (d TodoItemDto) ToDomain() model.Item {
	it := model.Item{
		UID:        d.ID,
		Text:       d.Text,
		Importance: importanceFromAPI(d.Importance),
		Color:      model.White,
		Done:       d.Done,
	}
	if d.Color != nil {
		it.Color = model.ColorOrWhite(*d.Color)
	}
	if d.Deadline != nil {
		t := model.MillisTime(*d.Deadline)
		it.Deadline = &t
	}
	if d.CreatedAt != 0 {
		it.CreatedAt = model.MillisTime(d.CreatedAt)
	}
	if d.ChangedAt != 0 {
		it.ChangedAt = model.MillisTime(d.ChangedAt)
	}
	return it
}

// FromDomain builds the wire form. Missing timestamps are filled with now.
func FromDomain(it model.Item, deviceID string, now time.Time) TodoItemDto {
	d := TodoItemDto{
		ID:            it.UID,
		Text:          it.Text,
		Importance:    importanceToAPI(it.Importance),
		Done:          it.Done,
		CreatedAt:     now.UnixMilli(),
		ChangedAt:     now.UnixMilli(),
		LastUpdatedBy: deviceID,
	}
	if it.Color != model.White {
		hex := it.Color.Hex()
		d.Color = &hex
	}
	if it.Deadline != nil {
		ms := it.Deadline.UnixMilli()
		d.Deadline = &ms
	}
	if !it.CreatedAt.IsZero() {
		d.CreatedAt = it.CreatedAt.UnixMilli()
	}
	if !it.ChangedAt.IsZero() {
		d.ChangedAt = it.ChangedAt.UnixMilli()
	}
	return d
}

func toDomainList(list []TodoItemDto) []model.Item {
	out := make([]model.Item, 0, len(list))
	for _, d := range list {
		out = append(out, d.ToDomain())
	}
	return out
}
