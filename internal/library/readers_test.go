package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderNumbers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := mustParticipant(t, s, "Ada", "Lovelace")
	assert.Equal(t, "P0001", a.ReaderNumber)
	b, err := s.AddParticipant(ctx, Participant{FirstName: "Ben", ReaderNumber: "P0002"})
	require.NoError(t, err)
	c := mustParticipant(t, s, "Cleo", "")
	assert.Equal(t, "P0003", c.ReaderNumber)

	_, err = s.AddParticipant(ctx, Participant{FirstName: "Dan", ReaderNumber: "P0001"})
	require.ErrorIs(t, err, ErrDuplicateKey)
	_, err = s.UpdateParticipant(ctx, b.ID, ParticipantPatch{ReaderNumber: ptr("P0003")})
	require.ErrorIs(t, err, ErrDuplicateKey)
	_, err = s.UpdateParticipant(ctx, b.ID, ParticipantPatch{ReaderNumber: ptr("P0002")})
	require.NoError(t, err)

	// Other readers have their own numbering.
	r, err := s.AddOtherReader(ctx, OtherReader{FirstName: "Tom", ReaderNumber: "P0001"})
	require.NoError(t, err)
	assert.Equal(t, "P0001", r.ReaderNumber)
	r2, err := s.AddOtherReader(ctx, OtherReader{LastName: "Smith"})
	require.NoError(t, err)
	assert.Equal(t, "O0002", r2.ReaderNumber)
	_, err = s.AddOtherReader(ctx, OtherReader{FirstName: "Eve", ReaderNumber: "O0002"})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestParticipantValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddParticipant(ctx, Participant{})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.AddParticipant(ctx, Participant{FirstName: "Ada", ClassID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)

	p := mustParticipant(t, s, "Ada", "Lovelace")
	_, err = s.UpdateParticipant(ctx, p.ID, ParticipantPatch{FirstName: ptr(""), LastName: ptr(" ")})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.UpdateParticipant(ctx, "missing", ParticipantPatch{})
	require.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetParticipant(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName())
}

func TestListParticipantsByClass(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	c, err := s.AddSchoolClass(ctx, SchoolClass{Name: "5B"})
	require.NoError(t, err)
	_, err = s.AddParticipant(ctx, Participant{FirstName: "Ada", ClassID: c.ID})
	require.NoError(t, err)
	mustParticipant(t, s, "Ben", "")

	assert.Len(t, s.ListParticipants(ctx, ""), 2)
	inClass := s.ListParticipants(ctx, c.ID)
	require.Len(t, inClass, 1)
	assert.Equal(t, "Ada", inClass[0].FirstName)

	classes := s.ListSchoolClasses(ctx)
	require.Len(t, classes, 1)
	assert.Equal(t, 1, classes[0].ParticipantCount)
}

func TestUpdatesKeepOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	var ids []string
	for _, name := range []string{"Town Hall", "Library Friends", "School Board"} {
		e, err := s.AddEntity(ctx, Entity{Name: name})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	_, err := s.UpdateEntity(ctx, ids[0], EntityPatch{Contact: ptr("mayor@example.org")})
	require.NoError(t, err)
	_, err = s.UpdateEntity(ctx, ids[1], EntityPatch{Name: ptr("")})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.NoError(t, s.DeleteEntity(ctx, ids[1]))

	list := s.ListEntities(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, ids[0], list[0].ID)
	assert.Equal(t, "mayor@example.org", list[0].Contact)
	assert.Equal(t, ids[2], list[1].ID)

	got, err := s.GetEntity(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, "School Board", got.Name)
}
