package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentActivity(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	b := mustBook(t, s, "Dune", 5)
	m := mustMaterial(t, s, "Projector", 2)
	p := mustParticipant(t, s, "Ada", "Lovelace")

	var loans []Loan
	for i := range 4 {
		clock.Advance(time.Hour)
		l, err := s.CreateLoan(ctx, LoanInput{BookID: b.ID, Borrower: Borrower{Kind: ReaderParticipant, ID: p.ID}, DueDate: clock.Now().Add(week)})
		require.NoError(t, err, i)
		loans = append(loans, l)
	}
	clock.Advance(time.Hour)
	ml, err := s.CreateMaterialLoan(ctx, MaterialLoanInput{MaterialID: m.ID, BorrowerID: p.ID, BorrowerType: BorrowerParticipant, Quantity: 1, DueDate: clock.Now().Add(week)})
	require.NoError(t, err)

	// Returning the oldest loan makes it the most recent event.
	clock.Advance(time.Hour)
	_, err = s.ReturnLoan(ctx, loans[0].ID)
	require.NoError(t, err)

	got := s.RecentActivity(ctx, 3)
	require.Len(t, got, 3)
	assert.Equal(t, loans[0].ID, got[0].ID)
	assert.Equal(t, StatusReturned, got[0].Status)
	assert.Equal(t, ml.ID, got[1].ID)
	assert.Equal(t, KindMaterialLoan, got[1].Kind)
	assert.Equal(t, "Projector", got[1].Title)
	assert.Equal(t, loans[3].ID, got[2].ID)
	assert.Equal(t, "Ada Lovelace", got[2].BorrowerName)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].At().After(got[i-1].At()))
	}

	assert.Len(t, s.RecentActivity(ctx, 50), 5)
	assert.Empty(t, s.RecentActivity(ctx, 0))
}

func TestRecentActivityUsesCurrentBorrowerName(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	b := mustBook(t, s, "Dune", 1)
	p := mustParticipant(t, s, "Ada", "Byron")
	_, err := s.CreateLoan(ctx, LoanInput{BookID: b.ID, Borrower: Borrower{Kind: ReaderParticipant, ID: p.ID}, DueDate: epoch.Add(week)})
	require.NoError(t, err)

	_, err = s.UpdateParticipant(ctx, p.ID, ParticipantPatch{LastName: ptr("Lovelace")})
	require.NoError(t, err)

	got := s.RecentActivity(ctx, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "Ada Lovelace", got[0].BorrowerName)
}

func TestCategoryDistribution(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	var cats []Category
	for _, name := range []string{"Novels", "Empty", "Science"} {
		c, err := s.AddCategory(ctx, Category{Name: name})
		require.NoError(t, err)
		cats = append(cats, c)
	}
	for _, c := range []Category{cats[2], cats[0], cats[2]} {
		_, err := s.AddBook(ctx, Book{Title: "t", TotalCopies: 1, CategoryID: c.ID})
		require.NoError(t, err)
	}
	mustBook(t, s, "Uncategorized", 1)

	assert.Equal(t, []CategoryCount{
		{CategoryID: cats[0].ID, Name: "Novels", BookCount: 1},
		{CategoryID: cats[2].ID, Name: "Science", BookCount: 2},
	}, s.CategoryDistribution(ctx))
}

func TestOverdueAndDueSoon(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	b := mustBook(t, s, "Dune", 5)
	m := mustMaterial(t, s, "Chairs", 5)
	e, err := s.AddEntity(ctx, Entity{Name: "Town Hall"})
	require.NoError(t, err)

	due := func(d time.Duration) Loan {
		l, err := s.CreateLoan(ctx, LoanInput{BookID: b.ID, Borrower: Borrower{Name: "A"}, DueDate: epoch.Add(d)})
		require.NoError(t, err)
		return l
	}
	late := due(24 * time.Hour)
	soon := due(4 * 24 * time.Hour)
	sooner := due(3 * 24 * time.Hour)
	due(30 * 24 * time.Hour)
	_, err = s.CreateMaterialLoan(ctx, MaterialLoanInput{MaterialID: m.ID, BorrowerID: e.ID, BorrowerType: BorrowerEntity, Quantity: 2, DueDate: epoch.Add(24 * time.Hour)})
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)

	assert.Equal(t, 2, s.CountOverdue(ctx))
	overdue := s.OverdueLoans(ctx)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)

	dueSoon := s.LoansDueSoon(ctx, 3*24*time.Hour)
	require.Len(t, dueSoon, 2)
	assert.Equal(t, sooner.ID, dueSoon[0].ID)
	assert.Equal(t, soon.ID, dueSoon[1].ID)

	sum := s.Summary(ctx)
	assert.Equal(t, Summary{
		Books:               1,
		Copies:              5,
		AvailableCopies:     1,
		ActiveLoans:         4,
		ActiveMaterialLoans: 1,
		Overdue:             2,
	}, sum)
}
