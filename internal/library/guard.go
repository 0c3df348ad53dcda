package library

import (
	"context"
	"time"
)

// CountActiveDependents reports how many live records block deletion of the
// entity. Kinds without dependents always report zero.
func (s *Store) CountActiveDependents(ctx context.Context, kind Kind, id string) (int, error) {
	var n int
	err := s.read(ctx, "count_active_dependents", func(st *state, _ time.Time) error {
		if !st.exists(kind, id) {
			return notFound(kind, id)
		}
		n = st.dependents(kind, id)
		return nil
	})
	return n, err
}

func (s *state) exists(kind Kind, id string) bool {
	switch kind {
	case KindCategory:
		return s.categories.has(id)
	case KindBook:
		return s.books.has(id)
	case KindBookIssue:
		return s.issues.has(id)
	case KindSchoolClass:
		return s.classes.has(id)
	case KindParticipant:
		return s.participants.has(id)
	case KindOtherReader:
		return s.readers.has(id)
	case KindEntity:
		return s.entities.has(id)
	case KindMaterial:
		return s.materials.has(id)
	case KindLoan:
		return s.loans.has(id)
	case KindMaterialLoan:
		return s.materialLoans.has(id)
	case KindReadingSession:
		return s.sessions.has(id)
	case KindTask:
		return s.tasks.has(id)
	case KindInventorySession:
		return s.inventories.has(id)
	default:
		return false
	}
}

// dependents is always computed from the live collections.
func (s *state) dependents(kind Kind, id string) int {
	n := 0
	switch kind {
	case KindCategory:
		s.books.each(func(b Book) bool {
			if b.CategoryID == id {
				n++
			}
			return true
		})
	case KindBook:
		n = s.activeLoansForBook(id)
	case KindSchoolClass:
		s.participants.each(func(p Participant) bool {
			if p.ClassID == id {
				n++
			}
			return true
		})
	case KindParticipant:
		n = s.unreturnedLoansOf(ReaderParticipant, id) + s.unreturnedMaterialLoansOf(BorrowerParticipant, id)
	case KindOtherReader:
		n = s.unreturnedLoansOf(ReaderOther, id)
	case KindEntity:
		n = s.unreturnedMaterialLoansOf(BorrowerEntity, id)
	case KindMaterial:
		s.materialLoans.each(func(l MaterialLoan) bool {
			if !l.Returned() && l.MaterialID == id {
				n++
			}
			return true
		})
	}
	return n
}

func (s *state) unreturnedLoansOf(kind ReaderKind, id string) int {
	n := 0
	s.loans.each(func(l Loan) bool {
		if !l.Returned() && l.Borrower.Kind == kind && l.Borrower.ID == id {
			n++
		}
		return true
	})
	return n
}

func (s *state) unreturnedMaterialLoansOf(t BorrowerType, id string) int {
	n := 0
	s.materialLoans.each(func(l MaterialLoan) bool {
		if !l.Returned() && l.BorrowerType == t && l.BorrowerID == id {
			n++
		}
		return true
	})
	return n
}

// guardDelete refuses the delete when the entity is missing or still referenced.
func (tx *txn) guardDelete(kind Kind, id string) error {
	if !tx.st.exists(kind, id) {
		return notFound(kind, id)
	}
	if n := tx.st.dependents(kind, id); n > 0 {
		return &DependentsError{Kind: kind, ID: id, Count: n}
	}
	return nil
}
