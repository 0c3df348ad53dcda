package library

import (
	"context"
	"slices"
	"strings"
	"time"
)

// CategoryPatch lists the category fields an update may change.
type CategoryPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// BookPatch lists the book fields an update may change.
type BookPatch struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	ISBN        *string `json:"isbn,omitempty"`
	CategoryID  *string `json:"category_id,omitempty"`
	TotalCopies *int    `json:"total_copies,omitempty"`
}

// BookIssuePatch lists the issue fields an update may change.
type BookIssuePatch struct {
	Description *string      `json:"description,omitempty"`
	Status      *IssueStatus `json:"status,omitempty"`
}

// AddCategory creates a category.
func (s *Store) AddCategory(ctx context.Context, c Category) (Category, error) {
	var out Category
	err := s.mutate(ctx, "add_category", func(tx *txn) error {
		c.ID = newID()
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return invalidInput("category name is required")
		}
		c.CreatedAt = tx.now
		tx.st.categories.insert(c)
		tx.record(KindCategory, ActionCreate, c.ID, nil, c)
		out = c
		return nil
	})
	return out, err
}

// UpdateCategory applies patch to a category.
func (s *Store) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error) {
	var out Category
	err := s.mutate(ctx, "update_category", func(tx *txn) error {
		current, ok := tx.st.categories.get(id)
		if !ok {
			return notFound(KindCategory, id)
		}
		before := current
		if patch.Name != nil {
			current.Name = strings.TrimSpace(*patch.Name)
			if current.Name == "" {
				return invalidInput("category name is required")
			}
		}
		if patch.Description != nil {
			current.Description = *patch.Description
		}
		tx.st.categories.replace(current)
		tx.record(KindCategory, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// DeleteCategory removes a category no book belongs to.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_category", func(tx *txn) error {
		if err := tx.guardDelete(KindCategory, id); err != nil {
			return err
		}
		before, _ := tx.st.categories.get(id)
		tx.st.categories.remove(id)
		tx.record(KindCategory, ActionDelete, id, before, nil)
		return nil
	})
}

// GetCategory looks a category up by id.
func (s *Store) GetCategory(ctx context.Context, id string) (Category, error) {
	var out Category
	err := s.read(ctx, "get_category", func(st *state, _ time.Time) error {
		c, ok := st.categories.get(id)
		if !ok {
			return notFound(KindCategory, id)
		}
		out = c
		return nil
	})
	return out, err
}

// ListCategories returns every category in insertion order.
func (s *Store) ListCategories(ctx context.Context) []Category {
	var out []Category
	s.view(ctx, "list_categories", func(st *state, _ time.Time) {
		out = st.categories.list()
	})
	return out
}

// AddBook creates a book with all copies available.
func (s *Store) AddBook(ctx context.Context, b Book) (Book, error) {
	var out Book
	err := s.mutate(ctx, "add_book", func(tx *txn) error {
		b.ID = newID()
		b.Title = strings.TrimSpace(b.Title)
		if err := validateBook(tx.st, b); err != nil {
			return err
		}
		b.AvailableCopies = 0
		b.CreatedAt, b.UpdatedAt = tx.now, tx.now
		tx.st.books.insert(b)
		out = decorateBook(b, 0)
		tx.record(KindBook, ActionCreate, b.ID, nil, out)
		return nil
	})
	return out, err
}

func validateBook(st *state, b Book) error {
	if b.Title == "" {
		return invalidInput("book title is required")
	}
	if b.TotalCopies < 1 {
		return invalidInput("book needs at least one copy, got %d", b.TotalCopies)
	}
	if b.CategoryID != "" && !st.categories.has(b.CategoryID) {
		return notFound(KindCategory, b.CategoryID)
	}
	return nil
}

// UpdateBook applies patch to a book. Copies cannot drop below the number currently on loan.
func (s *Store) UpdateBook(ctx context.Context, id string, patch BookPatch) (Book, error) {
	var out Book
	err := s.mutate(ctx, "update_book", func(tx *txn) error {
		current, ok := tx.st.books.get(id)
		if !ok {
			return notFound(KindBook, id)
		}
		active := tx.st.activeLoansForBook(id)
		before := decorateBook(current, active)
		if patch.Title != nil {
			current.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Author != nil {
			current.Author = *patch.Author
		}
		if patch.ISBN != nil {
			current.ISBN = *patch.ISBN
		}
		if patch.CategoryID != nil {
			current.CategoryID = *patch.CategoryID
		}
		if patch.TotalCopies != nil {
			current.TotalCopies = *patch.TotalCopies
		}
		if err := validateBook(tx.st, current); err != nil {
			return err
		}
		if current.TotalCopies < active {
			return invalidTransition("book %q has %d copies on loan, cannot reduce to %d", id, active, current.TotalCopies)
		}
		current.UpdatedAt = tx.now
		tx.st.books.replace(current)
		out = decorateBook(current, active)
		tx.record(KindBook, ActionUpdate, id, before, out)
		return nil
	})
	return out, err
}

// DeleteBook removes a book with no copies on loan. Its issues go with it;
// returned loans and reading sessions keep the title but lose the reference.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_book", func(tx *txn) error {
		if err := tx.guardDelete(KindBook, id); err != nil {
			return err
		}
		before, _ := tx.st.books.get(id)
		var issueIDs []string
		tx.st.issues.each(func(i BookIssue) bool {
			if i.BookID == id {
				issueIDs = append(issueIDs, i.ID)
			}
			return true
		})
		for _, issueID := range issueIDs {
			tx.st.issues.remove(issueID)
			tx.record(KindBookIssue, ActionDelete, issueID, nil, nil)
		}
		tx.st.loans.update(func(l *Loan) bool {
			if l.BookID != id {
				return false
			}
			l.BookID = ""
			return true
		})
		tx.st.sessions.update(func(r *ReadingSession) bool {
			if r.BookID != id {
				return false
			}
			r.BookID = ""
			return true
		})
		tx.st.inventories.update(func(inv *InventorySession) bool {
			n := len(inv.CheckedBooks)
			inv.CheckedBooks = slices.DeleteFunc(inv.CheckedBooks, func(b string) bool { return b == id })
			return len(inv.CheckedBooks) != n
		})
		tx.st.books.remove(id)
		tx.record(KindBook, ActionDelete, id, decorateBook(before, 0), nil)
		return nil
	})
}

// GetBook looks a book up by id with its current availability.
func (s *Store) GetBook(ctx context.Context, id string) (Book, error) {
	var out Book
	err := s.read(ctx, "get_book", func(st *state, _ time.Time) error {
		b, ok := st.books.get(id)
		if !ok {
			return notFound(KindBook, id)
		}
		out = decorateBook(b, st.activeLoansForBook(id))
		return nil
	})
	return out, err
}

// ListBooks returns every book in insertion order.
func (s *Store) ListBooks(ctx context.Context) []Book {
	var out []Book
	s.view(ctx, "list_books", func(st *state, _ time.Time) {
		active := st.activeLoansByBook()
		out = st.books.list()
		for i, b := range out {
			out[i] = decorateBook(b, active[b.ID])
		}
	})
	return out
}

// AvailableCopies reports how many copies of a book are on the shelf.
func (s *Store) AvailableCopies(ctx context.Context, bookID string) (int, error) {
	b, err := s.GetBook(ctx, bookID)
	if err != nil {
		return 0, err
	}
	return b.AvailableCopies, nil
}

// ReportBookIssue records a problem against a book.
func (s *Store) ReportBookIssue(ctx context.Context, issue BookIssue) (BookIssue, error) {
	var out BookIssue
	err := s.mutate(ctx, "report_book_issue", func(tx *txn) error {
		issue.ID = newID()
		issue.Description = strings.TrimSpace(issue.Description)
		if !tx.st.books.has(issue.BookID) {
			return notFound(KindBook, issue.BookID)
		}
		if issue.Description == "" {
			return invalidInput("issue description is required")
		}
		issue.Status = IssueOpen
		issue.ReportedAt = tx.now
		issue.ResolvedAt = time.Time{}
		tx.st.issues.insert(issue)
		tx.record(KindBookIssue, ActionCreate, issue.ID, nil, issue)
		out = issue
		return nil
	})
	return out, err
}

// UpdateBookIssue edits an issue or changes its status.
func (s *Store) UpdateBookIssue(ctx context.Context, id string, patch BookIssuePatch) (BookIssue, error) {
	var out BookIssue
	err := s.mutate(ctx, "update_book_issue", func(tx *txn) error {
		current, ok := tx.st.issues.get(id)
		if !ok {
			return notFound(KindBookIssue, id)
		}
		before := current
		if patch.Description != nil {
			current.Description = strings.TrimSpace(*patch.Description)
			if current.Description == "" {
				return invalidInput("issue description is required")
			}
		}
		if patch.Status != nil && *patch.Status != current.Status {
			switch *patch.Status {
			case IssueResolved:
				current.ResolvedAt = tx.now
			case IssueOpen:
				current.ResolvedAt = time.Time{}
			default:
				return invalidInput("unknown issue status %q", *patch.Status)
			}
			current.Status = *patch.Status
		}
		tx.st.issues.replace(current)
		tx.record(KindBookIssue, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// DeleteBookIssue removes an issue.
func (s *Store) DeleteBookIssue(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_book_issue", func(tx *txn) error {
		before, ok := tx.st.issues.get(id)
		if !ok {
			return notFound(KindBookIssue, id)
		}
		tx.st.issues.remove(id)
		tx.record(KindBookIssue, ActionDelete, id, before, nil)
		return nil
	})
}

// GetBookIssue looks an issue up by id.
func (s *Store) GetBookIssue(ctx context.Context, id string) (BookIssue, error) {
	var out BookIssue
	err := s.read(ctx, "get_book_issue", func(st *state, _ time.Time) error {
		i, ok := st.issues.get(id)
		if !ok {
			return notFound(KindBookIssue, id)
		}
		out = i
		return nil
	})
	return out, err
}

// ListBookIssues returns issues in insertion order, optionally for a single book.
func (s *Store) ListBookIssues(ctx context.Context, bookID string) []BookIssue {
	out := []BookIssue{}
	s.view(ctx, "list_book_issues", func(st *state, _ time.Time) {
		st.issues.each(func(i BookIssue) bool {
			if bookID == "" || i.BookID == bookID {
				out = append(out, i)
			}
			return true
		})
	})
	return out
}
