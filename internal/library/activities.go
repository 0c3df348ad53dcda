package library

import (
	"context"
	"slices"
	"strings"
	"time"
)

// ReadingSessionPatch lists the session fields an update may change.
type ReadingSessionPatch struct {
	BookID          *string    `json:"book_id,omitempty"`
	Date            *time.Time `json:"date,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

// TaskPatch lists the task fields an update may change.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Done        *bool      `json:"done,omitempty"`
}

// InventorySessionPatch lists the inventory fields an update may change.
type InventorySessionPatch struct {
	Name  *string `json:"name,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// AddReadingSession logs reading time. A participant reference fills in the
// name; without one the name must be given. The book is optional.
func (s *Store) AddReadingSession(ctx context.Context, r ReadingSession) (ReadingSession, error) {
	var out ReadingSession
	err := s.mutate(ctx, "add_reading_session", func(tx *txn) error {
		r.ID = newID()
		if r.Date.IsZero() {
			r.Date = tx.now
		}
		if err := tx.st.fillReadingSession(&r); err != nil {
			return err
		}
		tx.st.sessions.insert(r)
		tx.record(KindReadingSession, ActionCreate, r.ID, nil, r)
		out = r
		return nil
	})
	return out, err
}

func (s *state) fillReadingSession(r *ReadingSession) error {
	if r.ParticipantID != "" {
		p, ok := s.participants.get(r.ParticipantID)
		if !ok {
			return notFound(KindParticipant, r.ParticipantID)
		}
		r.ParticipantName = p.FullName()
	}
	r.ParticipantName = strings.TrimSpace(r.ParticipantName)
	if r.ParticipantName == "" {
		return invalidInput("reading session needs a participant")
	}
	if r.BookID != "" {
		b, ok := s.books.get(r.BookID)
		if !ok {
			return notFound(KindBook, r.BookID)
		}
		r.BookTitle = b.Title
	}
	if r.DurationMinutes < 0 {
		return invalidInput("duration cannot be negative, got %d", r.DurationMinutes)
	}
	return nil
}

// UpdateReadingSession applies patch to a session.
func (s *Store) UpdateReadingSession(ctx context.Context, id string, patch ReadingSessionPatch) (ReadingSession, error) {
	var out ReadingSession
	err := s.mutate(ctx, "update_reading_session", func(tx *txn) error {
		current, ok := tx.st.sessions.get(id)
		if !ok {
			return notFound(KindReadingSession, id)
		}
		before := current
		if patch.BookID != nil {
			current.BookID = *patch.BookID
			if current.BookID == "" {
				current.BookTitle = ""
			}
		}
		if patch.Date != nil {
			current.Date = *patch.Date
		}
		if patch.DurationMinutes != nil {
			current.DurationMinutes = *patch.DurationMinutes
		}
		if patch.Notes != nil {
			current.Notes = *patch.Notes
		}
		if err := tx.st.fillReadingSession(&current); err != nil {
			return err
		}
		tx.st.sessions.replace(current)
		tx.record(KindReadingSession, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// DeleteReadingSession removes a session.
func (s *Store) DeleteReadingSession(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_reading_session", func(tx *txn) error {
		before, ok := tx.st.sessions.get(id)
		if !ok {
			return notFound(KindReadingSession, id)
		}
		tx.st.sessions.remove(id)
		tx.record(KindReadingSession, ActionDelete, id, before, nil)
		return nil
	})
}

// GetReadingSession looks a session up by id.
func (s *Store) GetReadingSession(ctx context.Context, id string) (ReadingSession, error) {
	var out ReadingSession
	err := s.read(ctx, "get_reading_session", func(st *state, _ time.Time) error {
		r, ok := st.sessions.get(id)
		if !ok {
			return notFound(KindReadingSession, id)
		}
		out = r
		return nil
	})
	return out, err
}

// ListReadingSessions returns sessions in insertion order, optionally for one participant.
func (s *Store) ListReadingSessions(ctx context.Context, participantID string) []ReadingSession {
	out := []ReadingSession{}
	s.view(ctx, "list_reading_sessions", func(st *state, _ time.Time) {
		st.sessions.each(func(r ReadingSession) bool {
			if participantID == "" || r.ParticipantID == participantID {
				out = append(out, r)
			}
			return true
		})
	})
	return out
}

// AddTask creates an open task.
func (s *Store) AddTask(ctx context.Context, t Task) (Task, error) {
	var out Task
	err := s.mutate(ctx, "add_task", func(tx *txn) error {
		t.ID = newID()
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			return invalidInput("task title is required")
		}
		t.CreatedAt = tx.now
		tx.st.tasks.insert(t)
		tx.record(KindTask, ActionCreate, t.ID, nil, t)
		out = t
		return nil
	})
	return out, err
}

// UpdateTask applies patch to a task, including marking it done.
func (s *Store) UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error) {
	var out Task
	err := s.mutate(ctx, "update_task", func(tx *txn) error {
		current, ok := tx.st.tasks.get(id)
		if !ok {
			return notFound(KindTask, id)
		}
		before := current
		if patch.Title != nil {
			current.Title = strings.TrimSpace(*patch.Title)
			if current.Title == "" {
				return invalidInput("task title is required")
			}
		}
		if patch.Description != nil {
			current.Description = *patch.Description
		}
		if patch.DueDate != nil {
			current.DueDate = *patch.DueDate
		}
		if patch.Done != nil {
			current.Done = *patch.Done
		}
		tx.st.tasks.replace(current)
		tx.record(KindTask, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_task", func(tx *txn) error {
		before, ok := tx.st.tasks.get(id)
		if !ok {
			return notFound(KindTask, id)
		}
		tx.st.tasks.remove(id)
		tx.record(KindTask, ActionDelete, id, before, nil)
		return nil
	})
}

// GetTask looks a task up by id.
func (s *Store) GetTask(ctx context.Context, id string) (Task, error) {
	var out Task
	err := s.read(ctx, "get_task", func(st *state, _ time.Time) error {
		t, ok := st.tasks.get(id)
		if !ok {
			return notFound(KindTask, id)
		}
		out = t
		return nil
	})
	return out, err
}

// ListTasks returns every task in insertion order.
func (s *Store) ListTasks(ctx context.Context) []Task {
	var out []Task
	s.view(ctx, "list_tasks", func(st *state, _ time.Time) {
		out = st.tasks.list()
	})
	return out
}

// StartInventorySession opens a stock check.
func (s *Store) StartInventorySession(ctx context.Context, inv InventorySession) (InventorySession, error) {
	var out InventorySession
	err := s.mutate(ctx, "start_inventory_session", func(tx *txn) error {
		inv.ID = newID()
		inv.Name = strings.TrimSpace(inv.Name)
		if inv.Name == "" {
			return invalidInput("inventory name is required")
		}
		inv.StartedAt = tx.now
		inv.ClosedAt = time.Time{}
		inv.CheckedBooks = nil
		tx.st.inventories.insert(inv)
		tx.record(KindInventorySession, ActionCreate, inv.ID, nil, inv)
		out = inv
		return nil
	})
	return out, err
}

// UpdateInventorySession applies patch to a session, open or closed.
func (s *Store) UpdateInventorySession(ctx context.Context, id string, patch InventorySessionPatch) (InventorySession, error) {
	var out InventorySession
	err := s.mutate(ctx, "update_inventory_session", func(tx *txn) error {
		current, ok := tx.st.inventories.get(id)
		if !ok {
			return notFound(KindInventorySession, id)
		}
		before := cloneInventory(current)
		if patch.Name != nil {
			current.Name = strings.TrimSpace(*patch.Name)
			if current.Name == "" {
				return invalidInput("inventory name is required")
			}
		}
		if patch.Notes != nil {
			current.Notes = *patch.Notes
		}
		tx.st.inventories.replace(current)
		tx.record(KindInventorySession, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// CheckInventoryBook marks a book as counted in an open session. Checking the
// same book twice is a no-op.
func (s *Store) CheckInventoryBook(ctx context.Context, id, bookID string) (InventorySession, error) {
	var out InventorySession
	err := s.mutate(ctx, "check_inventory_book", func(tx *txn) error {
		current, ok := tx.st.inventories.get(id)
		if !ok {
			return notFound(KindInventorySession, id)
		}
		if current.Closed() {
			return invalidTransition("inventory %q is closed", id)
		}
		if !tx.st.books.has(bookID) {
			return notFound(KindBook, bookID)
		}
		out = current
		if slices.Contains(current.CheckedBooks, bookID) {
			return nil
		}
		before := cloneInventory(current)
		current.CheckedBooks = append(current.CheckedBooks, bookID)
		tx.st.inventories.replace(current)
		tx.record(KindInventorySession, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// CloseInventorySession ends a stock check. Closing twice fails.
func (s *Store) CloseInventorySession(ctx context.Context, id string) (InventorySession, error) {
	var out InventorySession
	err := s.mutate(ctx, "close_inventory_session", func(tx *txn) error {
		current, ok := tx.st.inventories.get(id)
		if !ok {
			return notFound(KindInventorySession, id)
		}
		if current.Closed() {
			return invalidTransition("inventory %q is already closed", id)
		}
		before := cloneInventory(current)
		current.ClosedAt = tx.now
		tx.st.inventories.replace(current)
		tx.record(KindInventorySession, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// DeleteInventorySession removes a session.
func (s *Store) DeleteInventorySession(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_inventory_session", func(tx *txn) error {
		before, ok := tx.st.inventories.get(id)
		if !ok {
			return notFound(KindInventorySession, id)
		}
		tx.st.inventories.remove(id)
		tx.record(KindInventorySession, ActionDelete, id, before, nil)
		return nil
	})
}

// GetInventorySession looks a session up by id.
func (s *Store) GetInventorySession(ctx context.Context, id string) (InventorySession, error) {
	var out InventorySession
	err := s.read(ctx, "get_inventory_session", func(st *state, _ time.Time) error {
		inv, ok := st.inventories.get(id)
		if !ok {
			return notFound(KindInventorySession, id)
		}
		out = inv
		return nil
	})
	return out, err
}

// ListInventorySessions returns every session in insertion order.
func (s *Store) ListInventorySessions(ctx context.Context) []InventorySession {
	var out []InventorySession
	s.view(ctx, "list_inventory_sessions", func(st *state, _ time.Time) {
		out = st.inventories.list()
	})
	return out
}
