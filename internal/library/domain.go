// internal/library/domain.go
package library

import (
	"time"
)

// Kind names an entity collection.
type Kind string

const (
	KindCategory         Kind = "category"
	KindBook             Kind = "book"
	KindBookIssue        Kind = "book_issue"
	KindSchoolClass      Kind = "school_class"
	KindParticipant      Kind = "participant"
	KindOtherReader      Kind = "other_reader"
	KindEntity           Kind = "entity"
	KindMaterial         Kind = "material"
	KindLoan             Kind = "loan"
	KindMaterialLoan     Kind = "material_loan"
	KindReadingSession   Kind = "reading_session"
	KindTask             Kind = "task"
	KindInventorySession Kind = "inventory_session"
)

// LoanStatus is derived from the due and return dates of a loan.
type LoanStatus string

const (
	StatusActive   LoanStatus = "active"
	StatusOverdue  LoanStatus = "overdue"
	StatusReturned LoanStatus = "returned"
)

// DeriveStatus computes the lifecycle state of a loan at now.
func DeriveStatus(dueDate, returnDate, now time.Time) LoanStatus {
	if !returnDate.IsZero() {
		return StatusReturned
	}
	if dueDate.Before(now) {
		return StatusOverdue
	}
	return StatusActive
}

// ReaderKind identifies who borrowed a book.
type ReaderKind string

const (
	ReaderParticipant ReaderKind = "participant"
	ReaderOther       ReaderKind = "other_reader"
	// ReaderNamed is a walk-in borrower known only by name.
	ReaderNamed ReaderKind = "named"
)

// BorrowerType identifies who borrowed a material.
type BorrowerType string

const (
	BorrowerParticipant BorrowerType = "participant"
	BorrowerEntity      BorrowerType = "entity"
)

// IssueStatus tracks a reported book problem.
type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
)

// Category groups books.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Book is a title held in one or more copies.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author,omitempty"`
	ISBN            string    `json:"isbn,omitempty"`
	CategoryID      string    `json:"category_id,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BookIssue is a problem reported against a book copy.
type BookIssue struct {
	ID          string      `json:"id"`
	BookID      string      `json:"book_id"`
	Description string      `json:"description"`
	Status      IssueStatus `json:"status"`
	ReportedAt  time.Time   `json:"reported_at"`
	ResolvedAt  time.Time   `json:"resolved_at,omitzero"`
}

// SchoolClass groups participants.
type SchoolClass struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	AgeRange         string    `json:"age_range,omitempty"`
	ParticipantCount int       `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// Participant is an enrolled reader.
type Participant struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	ClassID      string    `json:"class_id,omitempty"`
	ReaderNumber string    `json:"reader_number"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName returns the display name of the participant.
func (p Participant) FullName() string { return joinName(p.FirstName, p.LastName) }

// OtherReader is a borrower who is not an enrolled participant.
type OtherReader struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	ReaderNumber string    `json:"reader_number"`
	Relation     string    `json:"relation,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName returns the display name of the reader.
func (r OtherReader) FullName() string { return joinName(r.FirstName, r.LastName) }

// Entity is an organization that borrows materials.
type Entity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Material is a borrowable non-book asset counted by quantity.
type Material struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Borrower references the reader of a book loan. ID is empty for named borrowers.
type Borrower struct {
	Kind ReaderKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
	Name string     `json:"name"`
}

// Loan records a book lent to a borrower.
type Loan struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id,omitempty"`
	BookTitle  string     `json:"book_title"`
	Borrower   Borrower   `json:"borrower"`
	LoanDate   time.Time  `json:"loan_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate time.Time  `json:"return_date,omitzero"`
	Renewals   int        `json:"renewals"`
	Status     LoanStatus `json:"status"`
}

// Returned reports whether the loan reached its terminal state.
func (l Loan) Returned() bool { return !l.ReturnDate.IsZero() }

// MaterialLoan records a quantity of a material lent to a participant or entity.
type MaterialLoan struct {
	ID           string       `json:"id"`
	MaterialID   string       `json:"material_id,omitempty"`
	MaterialName string       `json:"material_name"`
	BorrowerID   string       `json:"borrower_id,omitempty"`
	BorrowerType BorrowerType `json:"borrower_type"`
	BorrowerName string       `json:"borrower_name"`
	Quantity     int          `json:"quantity"`
	LoanDate     time.Time    `json:"loan_date"`
	DueDate      time.Time    `json:"due_date"`
	ReturnDate   time.Time    `json:"return_date,omitzero"`
	Renewals     int          `json:"renewals"`
	Status       LoanStatus   `json:"status"`
}

// Returned reports whether the material loan reached its terminal state.
func (l MaterialLoan) Returned() bool { return !l.ReturnDate.IsZero() }

// ReadingSession logs reading activity of a participant.
type ReadingSession struct {
	ID              string    `json:"id"`
	ParticipantID   string    `json:"participant_id,omitempty"`
	ParticipantName string    `json:"participant_name"`
	BookID          string    `json:"book_id,omitempty"`
	BookTitle       string    `json:"book_title,omitempty"`
	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
}

// Task is an administrative to-do.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"due_date,omitzero"`
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"created_at"`
}

// InventorySession records a periodic stock check.
type InventorySession struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	StartedAt    time.Time `json:"started_at"`
	ClosedAt     time.Time `json:"closed_at,omitzero"`
	Notes        string    `json:"notes,omitempty"`
	CheckedBooks []string  `json:"checked_books,omitempty"`
}

// Closed reports whether the inventory session has been closed.
func (s InventorySession) Closed() bool { return !s.ClosedAt.IsZero() }

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
