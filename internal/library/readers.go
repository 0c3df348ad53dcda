package library

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SchoolClassPatch lists the class fields an update may change.
type SchoolClassPatch struct {
	Name     *string `json:"name,omitempty"`
	AgeRange *string `json:"age_range,omitempty"`
}

// ParticipantPatch lists the participant fields an update may change.
type ParticipantPatch struct {
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	ClassID      *string `json:"class_id,omitempty"`
	ReaderNumber *string `json:"reader_number,omitempty"`
}

// OtherReaderPatch lists the reader fields an update may change.
type OtherReaderPatch struct {
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	ReaderNumber *string `json:"reader_number,omitempty"`
	Relation     *string `json:"relation,omitempty"`
}

// EntityPatch lists the organization fields an update may change.
type EntityPatch struct {
	Name    *string `json:"name,omitempty"`
	Contact *string `json:"contact,omitempty"`
}

// AddSchoolClass creates a class.
func (s *Store) AddSchoolClass(ctx context.Context, c SchoolClass) (SchoolClass, error) {
	var out SchoolClass
	err := s.mutate(ctx, "add_school_class", func(tx *txn) error {
		c.ID = newID()
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return invalidInput("class name is required")
		}
		c.ParticipantCount = 0
		c.CreatedAt = tx.now
		tx.st.classes.insert(c)
		tx.record(KindSchoolClass, ActionCreate, c.ID, nil, c)
		out = c
		return nil
	})
	return out, err
}

// UpdateSchoolClass applies patch to a class.
func (s *Store) UpdateSchoolClass(ctx context.Context, id string, patch SchoolClassPatch) (SchoolClass, error) {
	var out SchoolClass
	err := s.mutate(ctx, "update_school_class", func(tx *txn) error {
		current, ok := tx.st.classes.get(id)
		if !ok {
			return notFound(KindSchoolClass, id)
		}
		before := current
		if patch.Name != nil {
			current.Name = strings.TrimSpace(*patch.Name)
			if current.Name == "" {
				return invalidInput("class name is required")
			}
		}
		if patch.AgeRange != nil {
			current.AgeRange = *patch.AgeRange
		}
		tx.st.classes.replace(current)
		out = current
		out.ParticipantCount = tx.st.dependents(KindSchoolClass, id)
		tx.record(KindSchoolClass, ActionUpdate, id, before, out)
		return nil
	})
	return out, err
}

// DeleteSchoolClass removes a class that has no participants.
func (s *Store) DeleteSchoolClass(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_school_class", func(tx *txn) error {
		if err := tx.guardDelete(KindSchoolClass, id); err != nil {
			return err
		}
		before, _ := tx.st.classes.get(id)
		tx.st.classes.remove(id)
		tx.record(KindSchoolClass, ActionDelete, id, before, nil)
		return nil
	})
}

// GetSchoolClass looks a class up by id with its participant count.
func (s *Store) GetSchoolClass(ctx context.Context, id string) (SchoolClass, error) {
	var out SchoolClass
	err := s.read(ctx, "get_school_class", func(st *state, _ time.Time) error {
		c, ok := st.classes.get(id)
		if !ok {
			return notFound(KindSchoolClass, id)
		}
		c.ParticipantCount = st.dependents(KindSchoolClass, id)
		out = c
		return nil
	})
	return out, err
}

// ListSchoolClasses returns every class with participant counts.
func (s *Store) ListSchoolClasses(ctx context.Context) []SchoolClass {
	var out []SchoolClass
	s.view(ctx, "list_school_classes", func(st *state, _ time.Time) {
		counts := st.participantsByClass()
		out = st.classes.list()
		for i, c := range out {
			out[i].ParticipantCount = counts[c.ID]
		}
	})
	return out
}

// AddParticipant enrolls a reader. An empty reader number is assigned automatically.
func (s *Store) AddParticipant(ctx context.Context, p Participant) (Participant, error) {
	var out Participant
	err := s.mutate(ctx, "add_participant", func(tx *txn) error {
		p.ID = newID()
		p.FirstName, p.LastName = strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName)
		p.ReaderNumber = strings.TrimSpace(p.ReaderNumber)
		if p.ReaderNumber == "" {
			p.ReaderNumber = nextReaderNumber("P", tx.st.participants.len(), func(n string) bool {
				return participantNumberTaken(tx.st, n, "")
			})
		}
		if err := validateParticipant(tx.st, p); err != nil {
			return err
		}
		p.CreatedAt = tx.now
		tx.st.participants.insert(p)
		tx.record(KindParticipant, ActionCreate, p.ID, nil, p)
		out = p
		return nil
	})
	return out, err
}

func validateParticipant(st *state, p Participant) error {
	if p.FirstName == "" && p.LastName == "" {
		return invalidInput("participant name is required")
	}
	if p.ClassID != "" && !st.classes.has(p.ClassID) {
		return notFound(KindSchoolClass, p.ClassID)
	}
	if p.ReaderNumber == "" {
		return invalidInput("reader number is required")
	}
	if participantNumberTaken(st, p.ReaderNumber, p.ID) {
		return &DuplicateKeyError{Kind: KindParticipant, Field: "reader_number", Value: p.ReaderNumber}
	}
	return nil
}

func participantNumberTaken(st *state, number, exceptID string) bool {
	taken := false
	st.participants.each(func(p Participant) bool {
		if p.ReaderNumber == number && p.ID != exceptID {
			taken = true
			return false
		}
		return true
	})
	return taken
}

func otherReaderNumberTaken(st *state, number, exceptID string) bool {
	taken := false
	st.readers.each(func(r OtherReader) bool {
		if r.ReaderNumber == number && r.ID != exceptID {
			taken = true
			return false
		}
		return true
	})
	return taken
}

func nextReaderNumber(prefix string, size int, taken func(string) bool) string {
	for n := size + 1; ; n++ {
		candidate := fmt.Sprintf("%s%04d", prefix, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// UpdateParticipant applies patch to a participant.
func (s *Store) UpdateParticipant(ctx context.Context, id string, patch ParticipantPatch) (Participant, error) {
	var out Participant
	err := s.mutate(ctx, "update_participant", func(tx *txn) error {
		current, ok := tx.st.participants.get(id)
		if !ok {
			return notFound(KindParticipant, id)
		}
		before := current
		if patch.FirstName != nil {
			current.FirstName = strings.TrimSpace(*patch.FirstName)
		}
		if patch.LastName != nil {
			current.LastName = strings.TrimSpace(*patch.LastName)
		}
		if patch.ClassID != nil {
			current.ClassID = *patch.ClassID
		}
		if patch.ReaderNumber != nil {
			current.ReaderNumber = strings.TrimSpace(*patch.ReaderNumber)
		}
		if err := validateParticipant(tx.st, current); err != nil {
			return err
		}
		tx.st.participants.replace(current)
		tx.record(KindParticipant, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// DeleteParticipant removes a participant with nothing on loan. Past loans
// and reading sessions keep the name but lose the reference.
func (s *Store) DeleteParticipant(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_participant", func(tx *txn) error {
		if err := tx.guardDelete(KindParticipant, id); err != nil {
			return err
		}
		before, _ := tx.st.participants.get(id)
		tx.st.loans.update(func(l *Loan) bool {
			if l.Borrower.Kind != ReaderParticipant || l.Borrower.ID != id {
				return false
			}
			l.Borrower = Borrower{Kind: ReaderNamed, Name: before.FullName()}
			return true
		})
		tx.st.materialLoans.update(func(l *MaterialLoan) bool {
			if l.BorrowerType != BorrowerParticipant || l.BorrowerID != id {
				return false
			}
			l.BorrowerID = ""
			return true
		})
		tx.st.sessions.update(func(r *ReadingSession) bool {
			if r.ParticipantID != id {
				return false
			}
			r.ParticipantID = ""
			return true
		})
		tx.st.participants.remove(id)
		tx.record(KindParticipant, ActionDelete, id, before, nil)
		return nil
	})
}

// GetParticipant looks a participant up by id.
func (s *Store) GetParticipant(ctx context.Context, id string) (Participant, error) {
	var out Participant
	err := s.read(ctx, "get_participant", func(st *state, _ time.Time) error {
		p, ok := st.participants.get(id)
		if !ok {
			return notFound(KindParticipant, id)
		}
		out = p
		return nil
	})
	return out, err
}

// ListParticipants returns participants in insertion order, optionally for one class.
func (s *Store) ListParticipants(ctx context.Context, classID string) []Participant {
	out := []Participant{}
	s.view(ctx, "list_participants", func(st *state, _ time.Time) {
		st.participants.each(func(p Participant) bool {
			if classID == "" || p.ClassID == classID {
				out = append(out, p)
			}
			return true
		})
	})
	return out
}

// AddOtherReader registers a non-participant borrower.
func (s *Store) AddOtherReader(ctx context.Context, r OtherReader) (OtherReader, error) {
	var out OtherReader
	err := s.mutate(ctx, "add_other_reader", func(tx *txn) error {
		r.ID = newID()
		r.FirstName, r.LastName = strings.TrimSpace(r.FirstName), strings.TrimSpace(r.LastName)
		r.ReaderNumber = strings.TrimSpace(r.ReaderNumber)
		if r.ReaderNumber == "" {
			r.ReaderNumber = nextReaderNumber("O", tx.st.readers.len(), func(n string) bool {
				return otherReaderNumberTaken(tx.st, n, "")
			})
		}
		if err := validateOtherReader(tx.st, r); err != nil {
			return err
		}
		r.CreatedAt = tx.now
		tx.st.readers.insert(r)
		tx.record(KindOtherReader, ActionCreate, r.ID, nil, r)
		out = r
		return nil
	})
	return out, err
}

func validateOtherReader(st *state, r OtherReader) error {
	if r.FirstName == "" && r.LastName == "" {
		return invalidInput("reader name is required")
	}
	if r.ReaderNumber == "" {
		return invalidInput("reader number is required")
	}
	if otherReaderNumberTaken(st, r.ReaderNumber, r.ID) {
		return &DuplicateKeyError{Kind: KindOtherReader, Field: "reader_number", Value: r.ReaderNumber}
	}
	return nil
}

// UpdateOtherReader applies patch to a reader.
func (s *Store) UpdateOtherReader(ctx context.Context, id string, patch OtherReaderPatch) (OtherReader, error) {
	var out OtherReader
	err := s.mutate(ctx, "update_other_reader", func(tx *txn) error {
		current, ok := tx.st.readers.get(id)
		if !ok {
			return notFound(KindOtherReader, id)
		}
		before := current
		if patch.FirstName != nil {
			current.FirstName = strings.TrimSpace(*patch.FirstName)
		}
		if patch.LastName != nil {
			current.LastName = strings.TrimSpace(*patch.LastName)
		}
		if patch.ReaderNumber != nil {
			current.ReaderNumber = strings.TrimSpace(*patch.ReaderNumber)
		}
		if patch.Relation != nil {
			current.Relation = *patch.Relation
		}
		if err := validateOtherReader(tx.st, current); err != nil {
			return err
		}
		tx.st.readers.replace(current)
		tx.record(KindOtherReader, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// DeleteOtherReader removes a reader with no books on loan.
func (s *Store) DeleteOtherReader(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_other_reader", func(tx *txn) error {
		if err := tx.guardDelete(KindOtherReader, id); err != nil {
			return err
		}
		before, _ := tx.st.readers.get(id)
		tx.st.loans.update(func(l *Loan) bool {
			if l.Borrower.Kind != ReaderOther || l.Borrower.ID != id {
				return false
			}
			l.Borrower = Borrower{Kind: ReaderNamed, Name: before.FullName()}
			return true
		})
		tx.st.readers.remove(id)
		tx.record(KindOtherReader, ActionDelete, id, before, nil)
		return nil
	})
}

// GetOtherReader looks a reader up by id.
func (s *Store) GetOtherReader(ctx context.Context, id string) (OtherReader, error) {
	var out OtherReader
	err := s.read(ctx, "get_other_reader", func(st *state, _ time.Time) error {
		r, ok := st.readers.get(id)
		if !ok {
			return notFound(KindOtherReader, id)
		}
		out = r
		return nil
	})
	return out, err
}

// ListOtherReaders returns every reader in insertion order.
func (s *Store) ListOtherReaders(ctx context.Context) []OtherReader {
	var out []OtherReader
	s.view(ctx, "list_other_readers", func(st *state, _ time.Time) {
		out = st.readers.list()
	})
	return out
}

// AddEntity registers an organization.
func (s *Store) AddEntity(ctx context.Context, e Entity) (Entity, error) {
	var out Entity
	err := s.mutate(ctx, "add_entity", func(tx *txn) error {
		e.ID = newID()
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			return invalidInput("entity name is required")
		}
		e.CreatedAt = tx.now
		tx.st.entities.insert(e)
		tx.record(KindEntity, ActionCreate, e.ID, nil, e)
		out = e
		return nil
	})
	return out, err
}

// UpdateEntity applies patch to an organization.
func (s *Store) UpdateEntity(ctx context.Context, id string, patch EntityPatch) (Entity, error) {
	var out Entity
	err := s.mutate(ctx, "update_entity", func(tx *txn) error {
		current, ok := tx.st.entities.get(id)
		if !ok {
			return notFound(KindEntity, id)
		}
		before := current
		if patch.Name != nil {
			current.Name = strings.TrimSpace(*patch.Name)
			if current.Name == "" {
				return invalidInput("entity name is required")
			}
		}
		if patch.Contact != nil {
			current.Contact = *patch.Contact
		}
		tx.st.entities.replace(current)
		tx.record(KindEntity, ActionUpdate, id, before, current)
		out = current
		return nil
	})
	return out, err
}

// DeleteEntity removes an organization with no unreturned material loans.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_entity", func(tx *txn) error {
		if err := tx.guardDelete(KindEntity, id); err != nil {
			return err
		}
		before, _ := tx.st.entities.get(id)
		tx.st.materialLoans.update(func(l *MaterialLoan) bool {
			if l.BorrowerType != BorrowerEntity || l.BorrowerID != id {
				return false
			}
			l.BorrowerID = ""
			return true
		})
		tx.st.entities.remove(id)
		tx.record(KindEntity, ActionDelete, id, before, nil)
		return nil
	})
}

// GetEntity looks an organization up by id.
func (s *Store) GetEntity(ctx context.Context, id string) (Entity, error) {
	var out Entity
	err := s.read(ctx, "get_entity", func(st *state, _ time.Time) error {
		e, ok := st.entities.get(id)
		if !ok {
			return notFound(KindEntity, id)
		}
		out = e
		return nil
	})
	return out, err
}

// ListEntities returns every organization in insertion order.
func (s *Store) ListEntities(ctx context.Context) []Entity {
	var out []Entity
	s.view(ctx, "list_entities", func(st *state, _ time.Time) {
		out = st.entities.list()
	})
	return out
}
