package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"doccenter/internal/library"
)

func (h *handler) listIssues(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	if bookID != "" {
		if _, err := h.svc.GetBook(r.Context(), bookID); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.svc.ListBookIssues(r.Context(), bookID))
}

func (h *handler) reportIssue(w http.ResponseWriter, r *http.Request) {
	var issue library.BookIssue
	if err := decode(w, r, &issue); err != nil {
		writeError(w, err)
		return
	}
	issue.BookID = chi.URLParam(r, "id")
	out, err := h.svc.ReportBookIssue(r.Context(), issue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListParticipants(r.Context(), r.URL.Query().Get("class_id")))
}

func (h *handler) listReadingSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListReadingSessions(r.Context(), r.URL.Query().Get("participant_id")))
}

func (h *handler) readerLoans(kind library.ReaderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loans, err := h.svc.LoansForReader(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, loans)
	}
}

func (h *handler) checkInventoryBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookID string `json:"book_id"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.CheckInventoryBook(r.Context(), chi.URLParam(r, "id"), req.BookID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) countDependents(w http.ResponseWriter, r *http.Request) {
	kind := library.Kind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")
	n, err := h.svc.CountActiveDependents(r.Context(), kind, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "id": id, "count": n})
}

func (h *handler) overdue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count": h.svc.CountOverdue(r.Context()),
		"loans": h.svc.OverdueLoans(r.Context()),
	})
}

func (h *handler) recentActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.RecentActivity(r.Context(), limit))
}

func (h *handler) dueSoon(w http.ResponseWriter, r *http.Request) {
	within, err := queryDuration(r, "within", 3*24*time.Hour)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.LoansDueSoon(r.Context(), within))
}
