// internal/library/service.go
package library

import (
	"context"
	"time"
)

// Service defines the operations the library store exposes to transports.
type Service interface {
	AddCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context) []Category

	AddBook(ctx context.Context, b Book) (Book, error)
	UpdateBook(ctx context.Context, id string, patch BookPatch) (Book, error)
	DeleteBook(ctx context.Context, id string) error
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context) []Book
	AvailableCopies(ctx context.Context, bookID string) (int, error)

	ReportBookIssue(ctx context.Context, issue BookIssue) (BookIssue, error)
	UpdateBookIssue(ctx context.Context, id string, patch BookIssuePatch) (BookIssue, error)
	DeleteBookIssue(ctx context.Context, id string) error
	GetBookIssue(ctx context.Context, id string) (BookIssue, error)
	ListBookIssues(ctx context.Context, bookID string) []BookIssue

	AddSchoolClass(ctx context.Context, c SchoolClass) (SchoolClass, error)
	UpdateSchoolClass(ctx context.Context, id string, patch SchoolClassPatch) (SchoolClass, error)
	DeleteSchoolClass(ctx context.Context, id string) error
	GetSchoolClass(ctx context.Context, id string) (SchoolClass, error)
	ListSchoolClasses(ctx context.Context) []SchoolClass

	AddParticipant(ctx context.Context, p Participant) (Participant, error)
	UpdateParticipant(ctx context.Context, id string, patch ParticipantPatch) (Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context, classID string) []Participant

	AddOtherReader(ctx context.Context, r OtherReader) (OtherReader, error)
	UpdateOtherReader(ctx context.Context, id string, patch OtherReaderPatch) (OtherReader, error)
	DeleteOtherReader(ctx context.Context, id string) error
	GetOtherReader(ctx context.Context, id string) (OtherReader, error)
	ListOtherReaders(ctx context.Context) []OtherReader

	AddEntity(ctx context.Context, e Entity) (Entity, error)
	UpdateEntity(ctx context.Context, id string, patch EntityPatch) (Entity, error)
	DeleteEntity(ctx context.Context, id string) error
	GetEntity(ctx context.Context, id string) (Entity, error)
	ListEntities(ctx context.Context) []Entity

	AddMaterial(ctx context.Context, m Material) (Material, error)
	UpdateMaterial(ctx context.Context, id string, patch MaterialPatch) (Material, error)
	DeleteMaterial(ctx context.Context, id string) error
	GetMaterial(ctx context.Context, id string) (Material, error)
	ListMaterials(ctx context.Context) []Material
	AvailableQuantity(ctx context.Context, materialID string) (int, error)

	CreateLoan(ctx context.Context, in LoanInput) (Loan, error)
	ReturnLoan(ctx context.Context, id string) (Loan, error)
	RenewLoan(ctx context.Context, id string, newDue time.Time) (Loan, error)
	DeleteLoan(ctx context.Context, id string) error
	GetLoan(ctx context.Context, id string) (Loan, error)
	ListLoans(ctx context.Context) []Loan
	LoansForReader(ctx context.Context, kind ReaderKind, id string) ([]Loan, error)

	CreateMaterialLoan(ctx context.Context, in MaterialLoanInput) (MaterialLoan, error)
	ReturnMaterialLoan(ctx context.Context, id string) (MaterialLoan, error)
	RenewMaterialLoan(ctx context.Context, id string, newDue time.Time) (MaterialLoan, error)
	DeleteMaterialLoan(ctx context.Context, id string) error
	GetMaterialLoan(ctx context.Context, id string) (MaterialLoan, error)
	ListMaterialLoans(ctx context.Context) []MaterialLoan

	AddReadingSession(ctx context.Context, r ReadingSession) (ReadingSession, error)
	UpdateReadingSession(ctx context.Context, id string, patch ReadingSessionPatch) (ReadingSession, error)
	DeleteReadingSession(ctx context.Context, id string) error
	GetReadingSession(ctx context.Context, id string) (ReadingSession, error)
	ListReadingSessions(ctx context.Context, participantID string) []ReadingSession

	AddTask(ctx context.Context, t Task) (Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error)
	DeleteTask(ctx context.Context, id string) error
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context) []Task

	StartInventorySession(ctx context.Context, inv InventorySession) (InventorySession, error)
	UpdateInventorySession(ctx context.Context, id string, patch InventorySessionPatch) (InventorySession, error)
	CheckInventoryBook(ctx context.Context, id, bookID string) (InventorySession, error)
	CloseInventorySession(ctx context.Context, id string) (InventorySession, error)
	DeleteInventorySession(ctx context.Context, id string) error
	GetInventorySession(ctx context.Context, id string) (InventorySession, error)
	ListInventorySessions(ctx context.Context) []InventorySession

	CountActiveDependents(ctx context.Context, kind Kind, id string) (int, error)
	CountOverdue(ctx context.Context) int
	CategoryDistribution(ctx context.Context) []CategoryCount
	RecentActivity(ctx context.Context, limit int) []Activity
	LoansDueSoon(ctx context.Context, within time.Duration) []Loan
	OverdueLoans(ctx context.Context) []Loan
	Summary(ctx context.Context) Summary

	ExportState(ctx context.Context) Snapshot
	ImportState(ctx context.Context, snap Snapshot) error
}

var _ Service = (*Store)(nil)
