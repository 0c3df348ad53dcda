package library

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteMaterialGuard(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m := mustMaterial(t, s, "Projector", 2)
	p := mustParticipant(t, s, "Ada", "Lovelace")
	l, err := s.CreateMaterialLoan(ctx, MaterialLoanInput{MaterialID: m.ID, BorrowerID: p.ID, BorrowerType: BorrowerParticipant, Quantity: 2, DueDate: epoch.Add(week)})
	require.NoError(t, err)

	err = s.DeleteMaterial(ctx, m.ID)
	require.ErrorIs(t, err, ErrHasActiveDependents)
	var de *DependentsError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 1, de.Count)
	assert.Equal(t, KindMaterial, de.Kind)
	_, err = s.GetMaterial(ctx, m.ID)
	require.NoError(t, err)

	_, err = s.ReturnMaterialLoan(ctx, l.ID)
	require.NoError(t, err)
	require.NoError(t, s.DeleteMaterial(ctx, m.ID))

	_, err = s.GetMaterial(ctx, m.ID)
	require.ErrorIs(t, err, ErrNotFound)
	history, err := s.GetMaterialLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, history.MaterialID)
	assert.Equal(t, "Projector", history.MaterialName)
}

func TestDeleteGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("category with books", func(t *testing.T) {
		s, _ := newTestStore(t)
		c, err := s.AddCategory(ctx, Category{Name: "Novels"})
		require.NoError(t, err)
		b, err := s.AddBook(ctx, Book{Title: "Emma", TotalCopies: 1, CategoryID: c.ID})
		require.NoError(t, err)

		n, ok := DependentCount(s.DeleteCategory(ctx, c.ID))
		assert.True(t, ok)
		assert.Equal(t, 1, n)

		_, err = s.UpdateBook(ctx, b.ID, BookPatch{CategoryID: ptr("")})
		require.NoError(t, err)
		require.NoError(t, s.DeleteCategory(ctx, c.ID))
	})

	t.Run("class with participants", func(t *testing.T) {
		s, _ := newTestStore(t)
		c, err := s.AddSchoolClass(ctx, SchoolClass{Name: "5B", AgeRange: "10-11"})
		require.NoError(t, err)
		p, err := s.AddParticipant(ctx, Participant{FirstName: "Ada", ClassID: c.ID})
		require.NoError(t, err)
		_, err = s.AddParticipant(ctx, Participant{FirstName: "Ben", ClassID: c.ID})
		require.NoError(t, err)

		got, err := s.GetSchoolClass(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.ParticipantCount)
		n, err := s.CountActiveDependents(ctx, KindSchoolClass, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		err = s.DeleteSchoolClass(ctx, c.ID)
		require.ErrorIs(t, err, ErrHasActiveDependents)
		_, err = s.UpdateParticipant(ctx, p.ID, ParticipantPatch{ClassID: ptr("")})
		require.NoError(t, err)
		n, _ = DependentCount(s.DeleteSchoolClass(ctx, c.ID))
		assert.Equal(t, 1, n)
	})

	t.Run("entity with unreturned material loan", func(t *testing.T) {
		s, _ := newTestStore(t)
		m := mustMaterial(t, s, "Chairs", 5)
		e, err := s.AddEntity(ctx, Entity{Name: "Town Hall"})
		require.NoError(t, err)
		l, err := s.CreateMaterialLoan(ctx, MaterialLoanInput{MaterialID: m.ID, BorrowerID: e.ID, BorrowerType: BorrowerEntity, Quantity: 3, DueDate: epoch.Add(week)})
		require.NoError(t, err)

		require.ErrorIs(t, s.DeleteEntity(ctx, e.ID), ErrHasActiveDependents)
		_, err = s.ReturnMaterialLoan(ctx, l.ID)
		require.NoError(t, err)
		require.NoError(t, s.DeleteEntity(ctx, e.ID))

		history, err := s.GetMaterialLoan(ctx, l.ID)
		require.NoError(t, err)
		assert.Empty(t, history.BorrowerID)
		assert.Equal(t, "Town Hall", history.BorrowerName)
	})

	t.Run("book with active loan", func(t *testing.T) {
		s, _ := newTestStore(t)
		b := mustBook(t, s, "Dune", 1)
		l, err := s.CreateLoan(ctx, LoanInput{BookID: b.ID, Borrower: Borrower{Name: "A"}, DueDate: epoch.Add(week)})
		require.NoError(t, err)
		require.ErrorIs(t, s.DeleteBook(ctx, b.ID), ErrHasActiveDependents)
		_, err = s.ReturnLoan(ctx, l.ID)
		require.NoError(t, err)
		require.NoError(t, s.DeleteBook(ctx, b.ID))
	})

	t.Run("participant with loans of either kind", func(t *testing.T) {
		s, _ := newTestStore(t)
		b := mustBook(t, s, "Dune", 1)
		m := mustMaterial(t, s, "Chairs", 5)
		p := mustParticipant(t, s, "Ada", "Lovelace")
		_, err := s.CreateLoan(ctx, LoanInput{BookID: b.ID, Borrower: Borrower{Kind: ReaderParticipant, ID: p.ID}, DueDate: epoch.Add(week)})
		require.NoError(t, err)
		_, err = s.CreateMaterialLoan(ctx, MaterialLoanInput{MaterialID: m.ID, BorrowerID: p.ID, BorrowerType: BorrowerParticipant, Quantity: 1, DueDate: epoch.Add(week)})
		require.NoError(t, err)

		n, _ := DependentCount(s.DeleteParticipant(ctx, p.ID))
		assert.Equal(t, 2, n)
	})

	t.Run("other reader with loan", func(t *testing.T) {
		s, _ := newTestStore(t)
		b := mustBook(t, s, "Dune", 1)
		r, err := s.AddOtherReader(ctx, OtherReader{FirstName: "Tom"})
		require.NoError(t, err)
		_, err = s.CreateLoan(ctx, LoanInput{BookID: b.ID, Borrower: Borrower{Kind: ReaderOther, ID: r.ID}, DueDate: epoch.Add(week)})
		require.NoError(t, err)
		require.ErrorIs(t, s.DeleteOtherReader(ctx, r.ID), ErrHasActiveDependents)
	})
}

func TestDeleteMissingEntity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, del := range []func(context.Context, string) error{
		s.DeleteCategory, s.DeleteBook, s.DeleteBookIssue, s.DeleteSchoolClass,
		s.DeleteParticipant, s.DeleteOtherReader, s.DeleteEntity, s.DeleteMaterial,
		s.DeleteLoan, s.DeleteMaterialLoan, s.DeleteReadingSession, s.DeleteTask,
		s.DeleteInventorySession,
	} {
		assert.ErrorIs(t, del(ctx, "missing"), ErrNotFound)
	}
	_, err := s.CountActiveDependents(ctx, KindBook, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.Version())
}

func TestCountActiveDependentsLeafKinds(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	task, err := s.AddTask(ctx, Task{Title: "Label shelves"})
	require.NoError(t, err)

	n, err := s.CountActiveDependents(ctx, KindTask, task.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteBookDetachesHistory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	b := mustBook(t, s, "Dune", 1)
	p := mustParticipant(t, s, "Ada", "Lovelace")
	_, err := s.ReportBookIssue(ctx, BookIssue{BookID: b.ID, Description: "torn cover"})
	require.NoError(t, err)
	l, err := s.CreateLoan(ctx, LoanInput{BookID: b.ID, Borrower: Borrower{Kind: ReaderParticipant, ID: p.ID}, DueDate: epoch.Add(week)})
	require.NoError(t, err)
	_, err = s.ReturnLoan(ctx, l.ID)
	require.NoError(t, err)
	rs, err := s.AddReadingSession(ctx, ReadingSession{ParticipantID: p.ID, BookID: b.ID, DurationMinutes: 30})
	require.NoError(t, err)
	inv, err := s.StartInventorySession(ctx, InventorySession{Name: "Spring"})
	require.NoError(t, err)
	_, err = s.CheckInventoryBook(ctx, inv.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteBook(ctx, b.ID))

	assert.Empty(t, s.ListBookIssues(ctx, ""))
	loan, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, loan.BookID)
	assert.Equal(t, "Dune", loan.BookTitle)
	session, err := s.GetReadingSession(ctx, rs.ID)
	require.NoError(t, err)
	assert.Empty(t, session.BookID)
	assert.Equal(t, "Dune", session.BookTitle)
	gotInv, err := s.GetInventorySession(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, gotInv.CheckedBooks)
}

func TestDeleteParticipantDetachesHistory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	b := mustBook(t, s, "Dune", 1)
	p := mustParticipant(t, s, "Ada", "Lovelace")
	l, err := s.CreateLoan(ctx, LoanInput{BookID: b.ID, Borrower: Borrower{Kind: ReaderParticipant, ID: p.ID}, DueDate: epoch.Add(week)})
	require.NoError(t, err)
	_, err = s.ReturnLoan(ctx, l.ID)
	require.NoError(t, err)
	rs, err := s.AddReadingSession(ctx, ReadingSession{ParticipantID: p.ID, DurationMinutes: 15})
	require.NoError(t, err)

	require.NoError(t, s.DeleteParticipant(ctx, p.ID))

	loan, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, Borrower{Kind: ReaderNamed, Name: "Ada Lovelace"}, loan.Borrower)
	session, err := s.GetReadingSession(ctx, rs.ID)
	require.NoError(t, err)
	assert.Empty(t, session.ParticipantID)
	assert.Equal(t, "Ada Lovelace", session.ParticipantName)
}
