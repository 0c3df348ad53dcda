package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccenter/internal/eventstore"
)

type memJournal struct {
	events  []eventstore.Event
	batches []int
}

func (m *memJournal) LoadEvents(_ context.Context, id string, from, to int) ([]eventstore.Event, error) {
	var out []eventstore.Event
	for _, e := range m.events {
		if e.AggregateID == id && e.Version >= from && (to == 0 || e.Version <= to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memJournal) StreamEvents(_ context.Context, fromID int64, batchSize int) ([]eventstore.Event, error) {
	m.batches = append(m.batches, batchSize)
	var out []eventstore.Event
	for _, e := range m.events {
		if e.ID > fromID && len(out) < batchSize {
			out = append(out, e)
		}
	}
	return out, nil
}

func journalOf(n int) *memJournal {
	m := &memJournal{}
	for i := 1; i <= n; i++ {
		m.events = append(m.events, eventstore.Event{
			ID:          int64(i),
			AggregateID: fmt.Sprintf("b%d", i%2),
			EventType:   "book.update",
			Version:     (i + 1) / 2,
		})
	}
	return m
}

func decodeLines(t *testing.T, out string) []eventstore.Event {
	t.Helper()
	var events []eventstore.Event
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var e eventstore.Event
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		events = append(events, e)
	}
	return events
}

func TestAuditEntityHistory(t *testing.T) {
	var out bytes.Buffer
	err := runAudit(context.Background(), journalOf(10), &out, auditQuery{id: "b1", from: 2, to: 4})
	require.NoError(t, err)

	events := decodeLines(t, out.String())
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, "b1", e.AggregateID)
		assert.Equal(t, i+2, e.Version)
	}
}

func TestAuditStreamsWholeJournal(t *testing.T) {
	j := journalOf(auditBatch + 20)
	var out bytes.Buffer
	require.NoError(t, runAudit(context.Background(), j, &out, auditQuery{}))
	events := decodeLines(t, out.String())
	require.Len(t, events, auditBatch+20)
	assert.Equal(t, int64(auditBatch+20), events[len(events)-1].ID)
	assert.Equal(t, []int{auditBatch, auditBatch}, j.batches)
}

func TestAuditStreamHonoursAfterAndLimit(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runAudit(context.Background(), journalOf(10), &out, auditQuery{after: 3, limit: 4}))
	events := decodeLines(t, out.String())
	require.Len(t, events, 4)
	assert.Equal(t, int64(4), events[0].ID)
	assert.Equal(t, int64(7), events[3].ID)
}

func TestAuditRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, "", "audit")
	assert.ErrorContains(t, err, "DATABASE_URL")
}
