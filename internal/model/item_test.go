package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	it := New("  Buy milk ")
	assert.Equal(t, "Buy milk", it.Text)
	assert.NotEmpty(t, it.UID)
	assert.Equal(t, Normal, it.Importance)
	assert.Equal(t, White, it.Color)
	assert.Nil(t, it.Deadline)
	assert.False(t, it.Done)
	assert.NoError(t, it.Validate())

	other := New("Buy milk")
	assert.NotEqual(t, it.UID, other.UID)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Item{UID: "x", Text: "   "}.Validate(), ErrEmptyText)
	assert.ErrorIs(t, Item{Text: "hi"}.Validate(), ErrEmptyUID)
}

func TestToggled(t *testing.T) {
	it := New("x")
	it.ChangedAt = time.Time{}
	flipped := it.Toggled()
	assert.True(t, flipped.Done)
	assert.False(t, it.Done, "original must be untouched")
	assert.False(t, flipped.ChangedAt.IsZero())
	assert.False(t, flipped.Toggled().Done)
}

func TestStatsAndIndexOf(t *testing.T) {
	items := []Item{{UID: "a", Done: true}, {UID: "b"}, {UID: "c"}}
	done, pending := Stats(items)
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, pending)
	assert.Equal(t, 1, IndexOf(items, "b"))
	assert.Equal(t, -1, IndexOf(items, "z"))
}

func TestOverdue(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	it := Item{Deadline: &past}
	assert.True(t, it.Overdue(now))
	it.Done = true
	assert.False(t, it.Overdue(now))
	assert.False(t, Item{}.Overdue(now))
}

func TestImportanceNames(t *testing.T) {
	for _, imp := range []Importance{Low, Normal, High} {
		assert.Equal(t, imp, ImportanceFromRuName(imp.RuName()))
		parsed, err := ParseImportance(imp.String())
		require.NoError(t, err)
		assert.Equal(t, imp, parsed)
	}
	assert.Equal(t, Normal, ImportanceFromRuName("whatever"))
	assert.Equal(t, "❗Сверхважно", High.Label())
	assert.Equal(t, High, Normal.Next())
	assert.Equal(t, Low, High.Next())

	_, err := ParseImportance("urgent")
	assert.Error(t, err)
}

func TestColor(t *testing.T) {
	c, err := ParseColor("#FF0000")
	require.NoError(t, err)
	assert.Equal(t, Color(0xFFFF0000), c)
	assert.Equal(t, "#FF0000", c.Hex())
	assert.Equal(t, int32(-65536), c.Int32())

	c, err = ParseColor("#80112233")
	require.NoError(t, err)
	assert.Equal(t, Color(0x80112233), c)
	assert.Equal(t, "#112233", c.Hex())

	_, err = ParseColor("red")
	assert.Error(t, err)
	_, err = ParseColor("#12345")
	assert.Error(t, err)
	assert.Equal(t, White, ColorOrWhite(""))
	assert.Equal(t, White, ColorOrWhite("#zzzzzz"))
	assert.Equal(t, "#FFFFFF", White.Hex())
}
