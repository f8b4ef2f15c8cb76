package calendarimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

func classified(id, title string, day domain.Weekday, occ domain.Occurrence) domain.ClassifiedOccurrence {
	occ.ID = id
	occ.Title = title
	occ.DayOfWeek = day
	return domain.ClassifiedOccurrence{Occurrence: occ, Classification: Classify(occ)}
}

func TestDeduplicateKeepsFirst(t *testing.T) {
	loc := mustLocation(t, "UTC")
	base := domain.Occurrence{Start: at(loc, 0, 9, 0), End: at(loc, 0, 9, 50)}

	first := classified("a", "CSE 1310", domain.Monday, base)
	first.Location = "Room 101"
	dup := classified("b", "CSE 1310", domain.Monday, base)
	dup.Location = "Room 202"
	otherDay := classified("c", "CSE 1310", domain.Tuesday, base)
	otherCase := classified("d", "cse 1310", domain.Monday, base)

	out := Deduplicate([]domain.ClassifiedOccurrence{first, dup, otherDay, otherCase}, loc)

	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "Room 101", out[0].Location)
	assert.Equal(t, "c", out[1].ID)
	assert.Equal(t, "d", out[2].ID)
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	loc := mustLocation(t, "America/Chicago")
	items := []domain.ClassifiedOccurrence{
		classified("a", "Lecture", domain.Monday, domain.Occurrence{Start: at(loc, 0, 9, 0)}),
		classified("b", "Lecture", domain.Monday, domain.Occurrence{Start: at(loc, 7, 9, 0)}),
		classified("c", "Lecture", domain.Monday, domain.Occurrence{Start: at(loc, 0, 10, 0)}),
	}

	once := Deduplicate(items, loc)
	twice := Deduplicate(once, loc)

	assert.Equal(t, once, twice)
	require.Len(t, once, 2)
	assert.Equal(t, "a", once[0].ID)
	assert.Equal(t, "c", once[1].ID)
}

func TestDeduplicateEmpty(t *testing.T) {
	out := Deduplicate(nil, mustLocation(t, "UTC"))
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
