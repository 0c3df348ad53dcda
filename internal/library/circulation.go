// internal/library/circulation.go
package library

import (
	"context"
	"strings"
	"time"
)

// LoanInput describes a book loan to open. A zero LoanDate means now.
type LoanInput struct {
	BookID   string    `json:"book_id"`
	Borrower Borrower  `json:"borrower"`
	LoanDate time.Time `json:"loan_date,omitzero"`
	DueDate  time.Time `json:"due_date"`
}

// MaterialLoanInput describes a material loan to open. A zero LoanDate means now.
type MaterialLoanInput struct {
	MaterialID   string       `json:"material_id"`
	BorrowerID   string       `json:"borrower_id"`
	BorrowerType BorrowerType `json:"borrower_type"`
	Quantity     int          `json:"quantity"`
	LoanDate     time.Time    `json:"loan_date,omitzero"`
	DueDate      time.Time    `json:"due_date"`
}

// CreateLoan lends one copy of a book. It fails with ErrInvalidTransition
// when no copy is available.
func (s *Store) CreateLoan(ctx context.Context, in LoanInput) (Loan, error) {
	var out Loan
	err := s.mutate(ctx, "create_loan", func(tx *txn) error {
		book, ok := tx.st.books.get(in.BookID)
		if !ok {
			return notFound(KindBook, in.BookID)
		}
		borrower, err := tx.st.resolveBorrower(in.Borrower)
		if err != nil {
			return err
		}
		loanDate := in.LoanDate
		if loanDate.IsZero() {
			loanDate = tx.now
		}
		if !in.DueDate.After(loanDate) {
			return invalidTransition("due date %s is not after loan date %s", in.DueDate.Format(time.RFC3339), loanDate.Format(time.RFC3339))
		}
		active := tx.st.activeLoansForBook(book.ID)
		if book.TotalCopies-active <= 0 {
			return invalidTransition("book %q has no available copies", book.ID)
		}

		l := Loan{
			ID:        newID(),
			BookID:    book.ID,
			BookTitle: book.Title,
			Borrower:  borrower,
			LoanDate:  loanDate,
			DueDate:   in.DueDate,
		}
		tx.st.loans.insert(l)
		out = decorateLoan(l, tx.now)
		tx.record(KindLoan, ActionCreate, l.ID, nil, out)
		tx.record(KindBook, ActionUpdate, book.ID, decorateBook(book, active), decorateBook(book, active+1))
		return nil
	})
	return out, err
}

func (s *state) resolveBorrower(b Borrower) (Borrower, error) {
	switch b.Kind {
	case ReaderParticipant:
		p, ok := s.participants.get(b.ID)
		if !ok {
			return Borrower{}, notFound(KindParticipant, b.ID)
		}
		return Borrower{Kind: ReaderParticipant, ID: p.ID, Name: p.FullName()}, nil
	case ReaderOther:
		r, ok := s.readers.get(b.ID)
		if !ok {
			return Borrower{}, notFound(KindOtherReader, b.ID)
		}
		return Borrower{Kind: ReaderOther, ID: r.ID, Name: r.FullName()}, nil
	case ReaderNamed, "":
		name := strings.TrimSpace(b.Name)
		if name == "" {
			return Borrower{}, invalidInput("borrower name is required")
		}
		return Borrower{Kind: ReaderNamed, Name: name}, nil
	default:
		return Borrower{}, invalidInput("unknown borrower kind %q", b.Kind)
	}
}

// ReturnLoan closes a loan and releases its copy.
func (s *Store) ReturnLoan(ctx context.Context, id string) (Loan, error) {
	var out Loan
	err := s.mutate(ctx, "return_loan", func(tx *txn) error {
		l, ok := tx.st.loans.get(id)
		if !ok {
			return notFound(KindLoan, id)
		}
		if l.Returned() {
			return alreadyReturned(KindLoan, id)
		}
		before := decorateLoan(l, tx.now)
		l.ReturnDate = tx.now
		tx.st.loans.replace(l)
		out = decorateLoan(l, tx.now)
		tx.record(KindLoan, ActionReturn, id, before, out)
		tx.releaseCopy(l.BookID)
		return nil
	})
	return out, err
}

// releaseCopy records the book gaining back the copy a loan just gave up.
// It must run after the loan is returned or removed.
func (tx *txn) releaseCopy(bookID string) {
	book, ok := tx.st.books.get(bookID)
	if !ok {
		return
	}
	active := tx.st.activeLoansForBook(bookID)
	tx.record(KindBook, ActionUpdate, bookID, decorateBook(book, active+1), decorateBook(book, active))
}

// RenewLoan moves the due date of an open loan forward.
func (s *Store) RenewLoan(ctx context.Context, id string, newDue time.Time) (Loan, error) {
	var out Loan
	err := s.mutate(ctx, "renew_loan", func(tx *txn) error {
		l, ok := tx.st.loans.get(id)
		if !ok {
			return notFound(KindLoan, id)
		}
		if l.Returned() {
			return alreadyReturned(KindLoan, id)
		}
		if !newDue.After(l.DueDate) {
			return invalidTransition("new due date %s is not after %s", newDue.Format(time.RFC3339), l.DueDate.Format(time.RFC3339))
		}
		before := decorateLoan(l, tx.now)
		l.DueDate = newDue
		l.Renewals++
		tx.st.loans.replace(l)
		out = decorateLoan(l, tx.now)
		tx.record(KindLoan, ActionRenew, id, before, out)
		return nil
	})
	return out, err
}

// DeleteLoan removes a loan record outright. An open loan gives its copy back.
func (s *Store) DeleteLoan(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_loan", func(tx *txn) error {
		l, ok := tx.st.loans.get(id)
		if !ok {
			return notFound(KindLoan, id)
		}
		tx.st.loans.remove(id)
		tx.record(KindLoan, ActionDelete, id, decorateLoan(l, tx.now), nil)
		if !l.Returned() {
			tx.releaseCopy(l.BookID)
		}
		return nil
	})
}

// GetLoan looks a loan up by id with its derived status.
func (s *Store) GetLoan(ctx context.Context, id string) (Loan, error) {
	var out Loan
	err := s.read(ctx, "get_loan", func(st *state, now time.Time) error {
		l, ok := st.loans.get(id)
		if !ok {
			return notFound(KindLoan, id)
		}
		out = decorateLoan(l, now)
		return nil
	})
	return out, err
}

// ListLoans returns every loan in insertion order.
func (s *Store) ListLoans(ctx context.Context) []Loan {
	var out []Loan
	s.view(ctx, "list_loans", func(st *state, now time.Time) {
		out = st.loans.list()
		for i, l := range out {
			out[i] = decorateLoan(l, now)
		}
	})
	return out
}

// LoansForReader returns the book loans of one participant or other reader.
func (s *Store) LoansForReader(ctx context.Context, kind ReaderKind, id string) ([]Loan, error) {
	out := []Loan{}
	err := s.read(ctx, "loans_for_reader", func(st *state, now time.Time) error {
		switch kind {
		case ReaderParticipant:
			if !st.participants.has(id) {
				return notFound(KindParticipant, id)
			}
		case ReaderOther:
			if !st.readers.has(id) {
				return notFound(KindOtherReader, id)
			}
		default:
			return invalidInput("loans can only be listed for participants and other readers, got %q", kind)
		}
		st.loans.each(func(l Loan) bool {
			if l.Borrower.Kind == kind && l.Borrower.ID == id {
				out = append(out, decorateLoan(l, now))
			}
			return true
		})
		return nil
	})
	return out, err
}

// CreateMaterialLoan lends a quantity of a material to a participant or an entity.
func (s *Store) CreateMaterialLoan(ctx context.Context, in MaterialLoanInput) (MaterialLoan, error) {
	var out MaterialLoan
	err := s.mutate(ctx, "create_material_loan", func(tx *txn) error {
		m, ok := tx.st.materials.get(in.MaterialID)
		if !ok {
			return notFound(KindMaterial, in.MaterialID)
		}
		name, err := tx.st.materialBorrowerName(in.BorrowerType, in.BorrowerID)
		if err != nil {
			return err
		}
		if in.Quantity < 1 {
			return invalidInput("quantity must be at least 1, got %d", in.Quantity)
		}
		loanDate := in.LoanDate
		if loanDate.IsZero() {
			loanDate = tx.now
		}
		if !in.DueDate.After(loanDate) {
			return invalidTransition("due date %s is not after loan date %s", in.DueDate.Format(time.RFC3339), loanDate.Format(time.RFC3339))
		}
		outstanding := tx.st.outstandingForMaterial(m.ID)
		if available := m.TotalQuantity - outstanding; in.Quantity > available {
			return invalidTransition("material %q has %d available, %d requested", m.ID, available, in.Quantity)
		}

		l := MaterialLoan{
			ID:           newID(),
			MaterialID:   m.ID,
			MaterialName: m.Name,
			BorrowerID:   in.BorrowerID,
			BorrowerType: in.BorrowerType,
			BorrowerName: name,
			Quantity:     in.Quantity,
			LoanDate:     loanDate,
			DueDate:      in.DueDate,
		}
		tx.st.materialLoans.insert(l)
		out = decorateMaterialLoan(l, tx.now)
		tx.record(KindMaterialLoan, ActionCreate, l.ID, nil, out)
		tx.record(KindMaterial, ActionUpdate, m.ID, decorateMaterial(m, outstanding), decorateMaterial(m, outstanding+in.Quantity))
		return nil
	})
	return out, err
}

func (s *state) materialBorrowerName(t BorrowerType, id string) (string, error) {
	switch t {
	case BorrowerParticipant:
		p, ok := s.participants.get(id)
		if !ok {
			return "", notFound(KindParticipant, id)
		}
		return p.FullName(), nil
	case BorrowerEntity:
		e, ok := s.entities.get(id)
		if !ok {
			return "", notFound(KindEntity, id)
		}
		return e.Name, nil
	default:
		return "", invalidInput("unknown borrower type %q", t)
	}
}

// ReturnMaterialLoan closes a material loan and releases its quantity.
func (s *Store) ReturnMaterialLoan(ctx context.Context, id string) (MaterialLoan, error) {
	var out MaterialLoan
	err := s.mutate(ctx, "return_material_loan", func(tx *txn) error {
		l, ok := tx.st.materialLoans.get(id)
		if !ok {
			return notFound(KindMaterialLoan, id)
		}
		if l.Returned() {
			return alreadyReturned(KindMaterialLoan, id)
		}
		before := decorateMaterialLoan(l, tx.now)
		l.ReturnDate = tx.now
		tx.st.materialLoans.replace(l)
		out = decorateMaterialLoan(l, tx.now)
		tx.record(KindMaterialLoan, ActionReturn, id, before, out)
		tx.releaseQuantity(l.MaterialID, l.Quantity)
		return nil
	})
	return out, err
}

func (tx *txn) releaseQuantity(materialID string, qty int) {
	m, ok := tx.st.materials.get(materialID)
	if !ok {
		return
	}
	outstanding := tx.st.outstandingForMaterial(materialID)
	tx.record(KindMaterial, ActionUpdate, materialID, decorateMaterial(m, outstanding+qty), decorateMaterial(m, outstanding))
}

// RenewMaterialLoan moves the due date of an open material loan forward.
// newDue must be strictly after the current due date.
func (s *Store) RenewMaterialLoan(ctx context.Context, id string, newDue time.Time) (MaterialLoan, error) {
	var out MaterialLoan
	err := s.mutate(ctx, "renew_material_loan", func(tx *txn) error {
		l, ok := tx.st.materialLoans.get(id)
		if !ok {
			return notFound(KindMaterialLoan, id)
		}
		if l.Returned() {
			return alreadyReturned(KindMaterialLoan, id)
		}
		if !newDue.After(l.DueDate) {
			return invalidTransition("new due date %s is not after %s", newDue.Format(time.RFC3339), l.DueDate.Format(time.RFC3339))
		}
		before := decorateMaterialLoan(l, tx.now)
		l.DueDate = newDue
		l.Renewals++
		tx.st.materialLoans.replace(l)
		out = decorateMaterialLoan(l, tx.now)
		tx.record(KindMaterialLoan, ActionRenew, id, before, out)
		return nil
	})
	return out, err
}

// DeleteMaterialLoan removes a material loan record outright.
func (s *Store) DeleteMaterialLoan(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_material_loan", func(tx *txn) error {
		l, ok := tx.st.materialLoans.get(id)
		if !ok {
			return notFound(KindMaterialLoan, id)
		}
		tx.st.materialLoans.remove(id)
		tx.record(KindMaterialLoan, ActionDelete, id, decorateMaterialLoan(l, tx.now), nil)
		if !l.Returned() {
			tx.releaseQuantity(l.MaterialID, l.Quantity)
		}
		return nil
	})
}

// GetMaterialLoan looks a material loan up by id with its derived status.
func (s *Store) GetMaterialLoan(ctx context.Context, id string) (MaterialLoan, error) {
	var out MaterialLoan
	err := s.read(ctx, "get_material_loan", func(st *state, now time.Time) error {
		l, ok := st.materialLoans.get(id)
		if !ok {
			return notFound(KindMaterialLoan, id)
		}
		out = decorateMaterialLoan(l, now)
		return nil
	})
	return out, err
}

// ListMaterialLoans returns every material loan in insertion order.
func (s *Store) ListMaterialLoans(ctx context.Context) []MaterialLoan {
	var out []MaterialLoan
	s.view(ctx, "list_material_loans", func(st *state, now time.Time) {
		out = st.materialLoans.list()
		for i, l := range out {
			out[i] = decorateMaterialLoan(l, now)
		}
	})
	return out
}
