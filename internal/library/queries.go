package library

import (
	"context"
	"slices"
	"time"
)

// CategoryCount is one slice of the category distribution.
type CategoryCount struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	BookCount  int    `json:"book_count"`
}

// Activity is a loan or material loan as shown in the activity feed.
type Activity struct {
	Kind         Kind       `json:"kind"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	BorrowerName string     `json:"borrower_name"`
	LoanDate     time.Time  `json:"loan_date"`
	Status       LoanStatus `json:"status"`
	ReturnDate   time.Time  `json:"return_date,omitzero"`
}

// At is the time of the most recent event on the record.
func (a Activity) At() time.Time {
	if !a.ReturnDate.IsZero() {
		return a.ReturnDate
	}
	return a.LoanDate
}

// Summary holds the dashboard totals.
type Summary struct {
	Books               int `json:"books"`
	Copies              int `json:"copies"`
	AvailableCopies     int `json:"available_copies"`
	Participants        int `json:"participants"`
	OtherReaders        int `json:"other_readers"`
	ActiveLoans         int `json:"active_loans"`
	ActiveMaterialLoans int `json:"active_material_loans"`
	Overdue             int `json:"overdue"`
	OpenIssues          int `json:"open_issues"`
	OpenTasks           int `json:"open_tasks"`
	OpenInventories     int `json:"open_inventories"`
}

// CountOverdue counts loans and material loans whose derived status is overdue.
func (s *Store) CountOverdue(ctx context.Context) int {
	var n int
	s.view(ctx, "count_overdue", func(st *state, now time.Time) {
		n = st.countOverdue(now)
	})
	return n
}

func (s *state) countOverdue(now time.Time) int {
	n := 0
	s.loans.each(func(l Loan) bool {
		if DeriveStatus(l.DueDate, l.ReturnDate, now) == StatusOverdue {
			n++
		}
		return true
	})
	s.materialLoans.each(func(l MaterialLoan) bool {
		if DeriveStatus(l.DueDate, l.ReturnDate, now) == StatusOverdue {
			n++
		}
		return true
	})
	return n
}

// CategoryDistribution counts books per category in category order,
// leaving out categories without books.
func (s *Store) CategoryDistribution(ctx context.Context) []CategoryCount {
	out := []CategoryCount{}
	s.view(ctx, "category_distribution", func(st *state, _ time.Time) {
		counts := make(map[string]int)
		st.books.each(func(b Book) bool {
			if b.CategoryID != "" {
				counts[b.CategoryID]++
			}
			return true
		})
		st.categories.each(func(c Category) bool {
			if n := counts[c.ID]; n > 0 {
				out = append(out, CategoryCount{CategoryID: c.ID, Name: c.Name, BookCount: n})
			}
			return true
		})
	})
	return out
}

// RecentActivity returns up to limit loans and material loans, most recent
// event first. A return counts as the event when present, the loan otherwise.
func (s *Store) RecentActivity(ctx context.Context, limit int) []Activity {
	out := []Activity{}
	if limit <= 0 {
		return out
	}
	s.view(ctx, "recent_activity", func(st *state, now time.Time) {
		st.loans.each(func(l Loan) bool {
			out = append(out, Activity{
				Kind:         KindLoan,
				ID:           l.ID,
				Title:        l.BookTitle,
				BorrowerName: st.borrowerDisplayName(l.Borrower),
				LoanDate:     l.LoanDate,
				Status:       DeriveStatus(l.DueDate, l.ReturnDate, now),
				ReturnDate:   l.ReturnDate,
			})
			return true
		})
		st.materialLoans.each(func(l MaterialLoan) bool {
			out = append(out, Activity{
				Kind:         KindMaterialLoan,
				ID:           l.ID,
				Title:        l.MaterialName,
				BorrowerName: st.materialBorrowerDisplayName(l),
				LoanDate:     l.LoanDate,
				Status:       DeriveStatus(l.DueDate, l.ReturnDate, now),
				ReturnDate:   l.ReturnDate,
			})
			return true
		})
	})
	slices.SortStableFunc(out, func(a, b Activity) int {
		return b.At().Compare(a.At())
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// borrowerDisplayName prefers the current name of a borrower that still exists.
func (s *state) borrowerDisplayName(b Borrower) string {
	switch b.Kind {
	case ReaderParticipant:
		if p, ok := s.participants.get(b.ID); ok {
			return p.FullName()
		}
	case ReaderOther:
		if r, ok := s.readers.get(b.ID); ok {
			return r.FullName()
		}
	}
	return b.Name
}

func (s *state) materialBorrowerDisplayName(l MaterialLoan) string {
	if l.BorrowerID != "" {
		if name, err := s.materialBorrowerName(l.BorrowerType, l.BorrowerID); err == nil {
			return name
		}
	}
	return l.BorrowerName
}

// LoansDueSoon returns open loans that are not yet overdue and fall due
// within the window, earliest first.
func (s *Store) LoansDueSoon(ctx context.Context, within time.Duration) []Loan {
	out := []Loan{}
	s.view(ctx, "loans_due_soon", func(st *state, now time.Time) {
		limit := now.Add(within)
		st.loans.each(func(l Loan) bool {
			l = decorateLoan(l, now)
			if l.Status == StatusActive && !l.DueDate.After(limit) {
				out = append(out, l)
			}
			return true
		})
	})
	slices.SortStableFunc(out, func(a, b Loan) int { return a.DueDate.Compare(b.DueDate) })
	return out
}

// OverdueLoans returns overdue book loans, most overdue first.
func (s *Store) OverdueLoans(ctx context.Context) []Loan {
	out := []Loan{}
	s.view(ctx, "overdue_loans", func(st *state, now time.Time) {
		st.loans.each(func(l Loan) bool {
			l = decorateLoan(l, now)
			if l.Status == StatusOverdue {
				out = append(out, l)
			}
			return true
		})
	})
	slices.SortStableFunc(out, func(a, b Loan) int { return a.DueDate.Compare(b.DueDate) })
	return out
}

// Summary computes the dashboard totals in one pass under a single read lock.
func (s *Store) Summary(ctx context.Context) Summary {
	var sum Summary
	s.view(ctx, "summary", func(st *state, now time.Time) {
		active := st.activeLoansByBook()
		st.books.each(func(b Book) bool {
			sum.Books++
			sum.Copies += b.TotalCopies
			sum.AvailableCopies += b.TotalCopies - active[b.ID]
			return true
		})
		sum.Participants = st.participants.len()
		sum.OtherReaders = st.readers.len()
		st.loans.each(func(l Loan) bool {
			if !l.Returned() {
				sum.ActiveLoans++
			}
			return true
		})
		st.materialLoans.each(func(l MaterialLoan) bool {
			if !l.Returned() {
				sum.ActiveMaterialLoans++
			}
			return true
		})
		sum.Overdue = st.countOverdue(now)
		st.issues.each(func(i BookIssue) bool {
			if i.Status == IssueOpen {
				sum.OpenIssues++
			}
			return true
		})
		st.tasks.each(func(t Task) bool {
			if !t.Done {
				sum.OpenTasks++
			}
			return true
		})
		st.inventories.each(func(inv InventorySession) bool {
			if !inv.Closed() {
				sum.OpenInventories++
			}
			return true
		})
	})
	return sum
}

