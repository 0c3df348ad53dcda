package library

import (
	"fmt"
	"time"
)

// state owns one collection per entity kind. A committed state is never
// mutated again; transactions work on a clone.
type state struct {
	categories    *collection[Category]
	books         *collection[Book]
	issues        *collection[BookIssue]
	classes       *collection[SchoolClass]
	participants  *collection[Participant]
	readers       *collection[OtherReader]
	entities      *collection[Entity]
	materials     *collection[Material]
	loans         *collection[Loan]
	materialLoans *collection[MaterialLoan]
	sessions      *collection[ReadingSession]
	tasks         *collection[Task]
	inventories   *collection[InventorySession]
}

func newState() *state {
	return &state{
		categories:    newCollection(func(v Category) string { return v.ID }, nil),
		books:         newCollection(func(v Book) string { return v.ID }, nil),
		issues:        newCollection(func(v BookIssue) string { return v.ID }, nil),
		classes:       newCollection(func(v SchoolClass) string { return v.ID }, nil),
		participants:  newCollection(func(v Participant) string { return v.ID }, nil),
		readers:       newCollection(func(v OtherReader) string { return v.ID }, nil),
		entities:      newCollection(func(v Entity) string { return v.ID }, nil),
		materials:     newCollection(func(v Material) string { return v.ID }, nil),
		loans:         newCollection(func(v Loan) string { return v.ID }, nil),
		materialLoans: newCollection(func(v MaterialLoan) string { return v.ID }, nil),
		sessions:      newCollection(func(v ReadingSession) string { return v.ID }, nil),
		tasks:         newCollection(func(v Task) string { return v.ID }, nil),
		inventories:   newCollection(func(v InventorySession) string { return v.ID }, cloneInventory),
	}
}

func cloneInventory(s InventorySession) InventorySession {
	cp := s
	if s.CheckedBooks != nil {
		cp.CheckedBooks = append([]string(nil), s.CheckedBooks...)
	}
	return cp
}

func (s *state) clone() *state {
	return &state{
		categories:    s.categories.clone(),
		books:         s.books.clone(),
		issues:        s.issues.clone(),
		classes:       s.classes.clone(),
		participants:  s.participants.clone(),
		readers:       s.readers.clone(),
		entities:      s.entities.clone(),
		materials:     s.materials.clone(),
		loans:         s.loans.clone(),
		materialLoans: s.materialLoans.clone(),
		sessions:      s.sessions.clone(),
		tasks:         s.tasks.clone(),
		inventories:   s.inventories.clone(),
	}
}

// activeLoansByBook counts unreturned loans per book.
func (s *state) activeLoansByBook() map[string]int {
	counts := make(map[string]int)
	s.loans.each(func(l Loan) bool {
		if !l.Returned() && l.BookID != "" {
			counts[l.BookID]++
		}
		return true
	})
	return counts
}

func (s *state) activeLoansForBook(bookID string) int {
	n := 0
	s.loans.each(func(l Loan) bool {
		if !l.Returned() && l.BookID == bookID {
			n++
		}
		return true
	})
	return n
}

// outstandingByMaterial sums unreturned quantities per material.
func (s *state) outstandingByMaterial() map[string]int {
	sums := make(map[string]int)
	s.materialLoans.each(func(l MaterialLoan) bool {
		if !l.Returned() && l.MaterialID != "" {
			sums[l.MaterialID] += l.Quantity
		}
		return true
	})
	return sums
}

func (s *state) outstandingForMaterial(materialID string) int {
	n := 0
	s.materialLoans.each(func(l MaterialLoan) bool {
		if !l.Returned() && l.MaterialID == materialID {
			n += l.Quantity
		}
		return true
	})
	return n
}

func (s *state) participantsByClass() map[string]int {
	counts := make(map[string]int)
	s.participants.each(func(p Participant) bool {
		if p.ClassID != "" {
			counts[p.ClassID]++
		}
		return true
	})
	return counts
}

func decorateBook(b Book, active int) Book {
	b.AvailableCopies = b.TotalCopies - active
	return b
}

func decorateMaterial(m Material, outstanding int) Material {
	m.AvailableQuantity = m.TotalQuantity - outstanding
	return m
}

func decorateLoan(l Loan, now time.Time) Loan {
	l.Status = DeriveStatus(l.DueDate, l.ReturnDate, now)
	return l
}

func decorateMaterialLoan(l MaterialLoan, now time.Time) MaterialLoan {
	l.Status = DeriveStatus(l.DueDate, l.ReturnDate, now)
	return l
}

// Snapshot is a point-in-time copy of every collection in insertion order.
// Derived fields are filled in for readers and ignored on import.
type Snapshot struct {
	Categories        []Category         `json:"categories"`
	Books             []Book             `json:"books"`
	BookIssues        []BookIssue        `json:"book_issues"`
	Classes           []SchoolClass      `json:"classes"`
	Participants      []Participant      `json:"participants"`
	OtherReaders      []OtherReader      `json:"other_readers"`
	Entities          []Entity           `json:"entities"`
	Materials         []Material         `json:"materials"`
	Loans             []Loan             `json:"loans"`
	MaterialLoans     []MaterialLoan     `json:"material_loans"`
	ReadingSessions   []ReadingSession   `json:"reading_sessions"`
	Tasks             []Task             `json:"tasks"`
	InventorySessions []InventorySession `json:"inventory_sessions"`
}

func snapshotOf(s *state, now time.Time) Snapshot {
	active := s.activeLoansByBook()
	outstanding := s.outstandingByMaterial()
	classCounts := s.participantsByClass()

	snap := Snapshot{
		Categories:        s.categories.list(),
		Books:             s.books.list(),
		BookIssues:        s.issues.list(),
		Classes:           s.classes.list(),
		Participants:      s.participants.list(),
		OtherReaders:      s.readers.list(),
		Entities:          s.entities.list(),
		Materials:         s.materials.list(),
		Loans:             s.loans.list(),
		MaterialLoans:     s.materialLoans.list(),
		ReadingSessions:   s.sessions.list(),
		Tasks:             s.tasks.list(),
		InventorySessions: s.inventories.list(),
	}
	for i, b := range snap.Books {
		snap.Books[i] = decorateBook(b, active[b.ID])
	}
	for i, m := range snap.Materials {
		snap.Materials[i] = decorateMaterial(m, outstanding[m.ID])
	}
	for i, c := range snap.Classes {
		snap.Classes[i].ParticipantCount = classCounts[c.ID]
	}
	for i, l := range snap.Loans {
		snap.Loans[i] = decorateLoan(l, now)
	}
	for i, l := range snap.MaterialLoans {
		snap.MaterialLoans[i] = decorateMaterialLoan(l, now)
	}
	return snap
}

// stateFromSnapshot rebuilds a state, rejecting duplicate ids and reader
// numbers and detaching references to entities missing from the snapshot.
// Open loans whose book, material or borrower is missing cannot be detached;
// they are left out and their ids returned per kind.
func stateFromSnapshot(snap Snapshot) (*state, map[Kind][]string, error) {
	st := newState()
	dropped := make(map[Kind][]string)
	seen := make(map[string]Kind)
	claim := func(kind Kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalidInput, kind)
		}
		if prev, ok := seen[id]; ok {
			return &DuplicateKeyError{Kind: kind, Field: "id", Value: id + " (also " + string(prev) + ")"}
		}
		seen[id] = kind
		return nil
	}

	for _, v := range snap.Categories {
		if err := claim(KindCategory, v.ID); err != nil {
			return nil, nil, err
		}
		st.categories.insert(v)
	}
	for _, v := range snap.Books {
		if err := claim(KindBook, v.ID); err != nil {
			return nil, nil, err
		}
		if v.CategoryID != "" && !st.categories.has(v.CategoryID) {
			v.CategoryID = ""
		}
		v.AvailableCopies = 0
		st.books.insert(v)
	}
	for _, v := range snap.BookIssues {
		if err := claim(KindBookIssue, v.ID); err != nil {
			return nil, nil, err
		}
		if !st.books.has(v.BookID) {
			continue
		}
		st.issues.insert(v)
	}
	for _, v := range snap.Classes {
		if err := claim(KindSchoolClass, v.ID); err != nil {
			return nil, nil, err
		}
		v.ParticipantCount = 0
		st.classes.insert(v)
	}
	numbers := make(map[string]struct{})
	for _, v := range snap.Participants {
		if err := claim(KindParticipant, v.ID); err != nil {
			return nil, nil, err
		}
		if _, dup := numbers[v.ReaderNumber]; dup {
			return nil, nil, &DuplicateKeyError{Kind: KindParticipant, Field: "reader_number", Value: v.ReaderNumber}
		}
		numbers[v.ReaderNumber] = struct{}{}
		if v.ClassID != "" && !st.classes.has(v.ClassID) {
			v.ClassID = ""
		}
		st.participants.insert(v)
	}
	numbers = make(map[string]struct{})
	for _, v := range snap.OtherReaders {
		if err := claim(KindOtherReader, v.ID); err != nil {
			return nil, nil, err
		}
		if _, dup := numbers[v.ReaderNumber]; dup {
			return nil, nil, &DuplicateKeyError{Kind: KindOtherReader, Field: "reader_number", Value: v.ReaderNumber}
		}
		numbers[v.ReaderNumber] = struct{}{}
		st.readers.insert(v)
	}
	for _, v := range snap.Entities {
		if err := claim(KindEntity, v.ID); err != nil {
			return nil, nil, err
		}
		st.entities.insert(v)
	}
	for _, v := range snap.Materials {
		if err := claim(KindMaterial, v.ID); err != nil {
			return nil, nil, err
		}
		v.AvailableQuantity = 0
		st.materials.insert(v)
	}
	for _, v := range snap.Loans {
		if err := claim(KindLoan, v.ID); err != nil {
			return nil, nil, err
		}
		if v.BookID != "" && !st.books.has(v.BookID) {
			v.BookID = ""
		}
		if !borrowerExists(st, v.Borrower) {
			v.Borrower.Kind, v.Borrower.ID = ReaderNamed, ""
		}
		if !v.Returned() && v.BookID == "" {
			dropped[KindLoan] = append(dropped[KindLoan], v.ID)
			continue
		}
		v.Status = ""
		st.loans.insert(v)
	}
	for _, v := range snap.MaterialLoans {
		if err := claim(KindMaterialLoan, v.ID); err != nil {
			return nil, nil, err
		}
		if v.MaterialID != "" && !st.materials.has(v.MaterialID) {
			v.MaterialID = ""
		}
		if v.BorrowerID != "" && !materialBorrowerExists(st, v.BorrowerType, v.BorrowerID) {
			v.BorrowerID = ""
		}
		if !v.Returned() && (v.MaterialID == "" || v.BorrowerID == "") {
			dropped[KindMaterialLoan] = append(dropped[KindMaterialLoan], v.ID)
			continue
		}
		v.Status = ""
		st.materialLoans.insert(v)
	}
	for _, v := range snap.ReadingSessions {
		if err := claim(KindReadingSession, v.ID); err != nil {
			return nil, nil, err
		}
		if v.ParticipantID != "" && !st.participants.has(v.ParticipantID) {
			v.ParticipantID = ""
		}
		if v.BookID != "" && !st.books.has(v.BookID) {
			v.BookID = ""
		}
		st.sessions.insert(v)
	}
	for _, v := range snap.Tasks {
		if err := claim(KindTask, v.ID); err != nil {
			return nil, nil, err
		}
		st.tasks.insert(v)
	}
	for _, v := range snap.InventorySessions {
		if err := claim(KindInventorySession, v.ID); err != nil {
			return nil, nil, err
		}
		st.inventories.insert(v)
	}

	// A snapshot may have been written with more loans than copies; that is
	// not recoverable without guessing which loan to drop.
	active := st.activeLoansByBook()
	var err error
	st.books.each(func(b Book) bool {
		if active[b.ID] > b.TotalCopies {
			err = invalidTransition("book %q has %d active loans but %d copies", b.ID, active[b.ID], b.TotalCopies)
			return false
		}
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	outstanding := st.outstandingByMaterial()
	st.materials.each(func(m Material) bool {
		if outstanding[m.ID] > m.TotalQuantity {
			err = invalidTransition("material %q has %d outstanding but %d total", m.ID, outstanding[m.ID], m.TotalQuantity)
			return false
		}
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	return st, dropped, nil
}

func borrowerExists(st *state, b Borrower) bool {
	switch b.Kind {
	case ReaderParticipant:
		return st.participants.has(b.ID)
	case ReaderOther:
		return st.readers.has(b.ID)
	case ReaderNamed:
		return b.ID == ""
	default:
		return false
	}
}

func materialBorrowerExists(st *state, t BorrowerType, id string) bool {
	switch t {
	case BorrowerParticipant:
		return st.participants.has(id)
	case BorrowerEntity:
		return st.entities.has(id)
	default:
		return false
	}
}
