package calendarimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

func TestReconcileEmptyScheduleIsAllNew(t *testing.T) {
	loc := mustLocation(t, "UTC")
	items := []domain.ClassifiedOccurrence{
		classified("a", "CSE 1310", domain.Monday, domain.Occurrence{Start: at(loc, 0, 9, 0), End: at(loc, 0, 9, 50)}),
		classified("b", "MATH 2425", domain.Tuesday, domain.Occurrence{Start: at(loc, 1, 11, 0), End: at(loc, 1, 11, 50)}),
	}

	p := Reconcile(items, nil, loc)

	require.Len(t, p.New, 2)
	assert.Empty(t, p.Updated)
	assert.Empty(t, p.Unchanged)
	for _, r := range p.New {
		assert.Equal(t, domain.StatusNew, r.Status)
		assert.Nil(t, r.ExistingDetails)
		assert.Nil(t, r.Changes)
	}
}

func TestReconcileDetectsEndTimeChange(t *testing.T) {
	loc := mustLocation(t, "America/Chicago")
	occ := domain.Occurrence{
		Location: "Nedderman Hall",
		Start:    at(loc, 0, 9, 0),
		End:      at(loc, 0, 10, 0),
	}
	items := []domain.ClassifiedOccurrence{classified("a", "CSE 1310", domain.Monday, occ)}
	existing := []domain.ExistingEntry{{
		Weekday:   domain.Monday,
		Title:     "cse 1310 ",
		Location:  "Nedderman Hall",
		StartTime: "9:00 AM",
		EndTime:   "9:50 AM",
	}}

	p := Reconcile(items, existing, loc)

	require.Len(t, p.Updated, 1)
	assert.Empty(t, p.New)
	assert.Empty(t, p.Unchanged)

	got := p.Updated[0]
	assert.Equal(t, domain.StatusUpdated, got.Status)
	require.NotNil(t, got.Changes)
	assert.True(t, got.Changes.Time)
	assert.False(t, got.Changes.Location)
	require.NotNil(t, got.ExistingDetails)
	assert.Equal(t, "9:50 AM", got.ExistingDetails.EndTime)
}

func TestReconcilePartitions(t *testing.T) {
	loc := mustLocation(t, "UTC")
	mon := func(h, m int) domain.Occurrence {
		return domain.Occurrence{Location: "Room 101", Start: at(loc, 0, h, m), End: at(loc, 0, h+1, m)}
	}

	items := []domain.ClassifiedOccurrence{
		classified("same", "CSE 1310", domain.Monday, mon(9, 0)),
		classified("moved", "CSE 2312", domain.Monday, mon(13, 0)),
		classified("fresh", "CSE 3318", domain.Monday, mon(15, 0)),
		classified("otherday", "CSE 1310", domain.Wednesday, mon(9, 0)),
	}
	existing := []domain.ExistingEntry{
		{Weekday: domain.Monday, Title: "CSE 1310", Location: "Room 101", StartTime: "9:00 AM", EndTime: "10:00 AM"},
		{Weekday: domain.Monday, Title: "CSE 2312", Location: "Room 202", StartTime: "1:00 PM", EndTime: "2:00 PM"},
	}

	p := Reconcile(items, existing, loc)

	assert.Equal(t, len(items), len(p.New)+len(p.Updated)+len(p.Unchanged))
	assert.Equal(t, domain.ImportStats{New: 2, Updated: 1, Unchanged: 1}, p.Stats())

	require.Len(t, p.Unchanged, 1)
	assert.Equal(t, "same", p.Unchanged[0].ID)
	require.NotNil(t, p.Unchanged[0].ExistingDetails)

	require.Len(t, p.Updated, 1)
	assert.Equal(t, "moved", p.Updated[0].ID)
	assert.True(t, p.Updated[0].Changes.Location)
	assert.False(t, p.Updated[0].Changes.Time)

	ids := []string{p.New[0].ID, p.New[1].ID}
	assert.ElementsMatch(t, []string{"fresh", "otherday"}, ids)
}

func TestReconcileTreatsMissingLocationAsDefault(t *testing.T) {
	loc := mustLocation(t, "UTC")
	items := []domain.ClassifiedOccurrence{
		classified("a", "Seminar", domain.Friday, domain.Occurrence{
			Location: domain.DefaultLocation,
			Start:    at(loc, 4, 16, 0),
			End:      at(loc, 4, 17, 0),
		}),
	}
	existing := []domain.ExistingEntry{
		{Weekday: domain.Friday, Title: "Seminar", Location: "", StartTime: "4:00 PM", EndTime: "5:00 PM"},
	}

	p := Reconcile(items, existing, loc)

	require.Len(t, p.Unchanged, 1)
}
