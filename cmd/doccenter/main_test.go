package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccenter/internal/auth"
	"doccenter/internal/library"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SNAPSHOT_PATH", filepath.Join(dir, "state.db"))
	return runIn(t, stdin, args...)
}

func runIn(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.Execute()
	return out.String(), err
}

func TestHashPIN(t *testing.T) {
	out, err := run(t, "", "hash-pin", "2468")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	ok, err := auth.VerifyPIN("2468", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err = run(t, "1357\n", "hash-pin")
	require.NoError(t, err)
	ok, err = auth.VerifyPIN("1357", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportThenExport(t *testing.T) {
	t.Setenv("SNAPSHOT_PATH", filepath.Join(t.TempDir(), "state.db"))

	export := library.Snapshot{
		Categories: []library.Category{{ID: "c1", Name: "Novels"}},
		Books:      []library.Book{{ID: "b1", Title: "Dune", TotalCopies: 2, CategoryID: "c1"}},
	}
	path := filepath.Join(t.TempDir(), "export.json")
	raw, err := json.Marshal(export)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	out, err := runIn(t, "", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 books, 0 loans, 0 material loans")
	assert.NotContains(t, out, "skipped")

	out, err = runIn(t, "", "export")
	require.NoError(t, err)
	var got library.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Books, 1)
	assert.Equal(t, "Dune", got.Books[0].Title)
	assert.Equal(t, 2, got.Books[0].AvailableCopies)
}

func TestImportReportsSkippedOpenLoans(t *testing.T) {
	export := `{
		"books":[{"id":"b1","title":"Dune","total_copies":1}],
		"loans":[
			{"id":"l1","book_id":"b1","borrower":{"kind":"named","name":"A"},"loan_date":"2024-09-02T08:00:00Z","due_date":"2024-09-09T08:00:00Z"},
			{"id":"l2","book_id":"gone","borrower":{"kind":"named","name":"B"},"loan_date":"2024-09-02T08:00:00Z","due_date":"2024-09-09T08:00:00Z"}
		],
		"material_loans":[
			{"id":"m1","material_id":"gone","borrower_id":"e1","borrower_type":"entity","quantity":1,"loan_date":"2024-09-02T08:00:00Z","due_date":"2024-09-09T08:00:00Z"}
		]
	}`
	out, err := run(t, export, "import", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 books, 1 loans, 0 material loans")
	assert.Contains(t, out, "skipped 2 open loans with missing references")
}

func TestImportRejectsInconsistentExport(t *testing.T) {
	dup := `{"books":[{"id":"b1","title":"Dune","total_copies":1},{"id":"b1","title":"Emma","total_copies":1}]}`
	_, err := run(t, dup, "import", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected import")
}

func TestExportUnknownSource(t *testing.T) {
	_, err := run(t, "", "export", "--source", "floppy")
	assert.ErrorContains(t, err, "unknown source")
}
