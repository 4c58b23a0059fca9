package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	due := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	a := Activity{Title: "  Lab 3  ", DueDate: &due}
	require.NoError(t, a.Normalize())
	assert.Equal(t, "Lab 3", a.Title)
	assert.Equal(t, DefaultMaxMarks, a.MaxMarks)
	assert.Equal(t, time.UTC, a.DueDate.Location())
	assert.True(t, a.DueDate.Equal(due))

	b := Activity{Title: "Quiz", MaxMarks: 20}
	require.NoError(t, b.Normalize())
	assert.Equal(t, 20, b.MaxMarks)
	assert.Nil(t, b.DueDate)

	assert.ErrorIs(t, (&Activity{Title: "   "}).Normalize(), ErrTitleRequired)
}
