// internal/httpapi/router.go
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"doccenter/internal/auth"
	"doccenter/internal/library"
)

// Options wires the router to the store and the ambient stack.
type Options struct {
	Service library.Service
	// Auth is optional; nil serves every request as admin.
	Auth     *auth.Authenticator
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Tracer   trace.TracerProvider
}

type handler struct {
	svc    library.Service
	logger *slog.Logger
}

// NewRouter builds the HTTP surface of the documentation center.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.GetTracerProvider()
	}
	h := &handler{svc: opts.Service, logger: opts.Logger}
	metrics := newHTTPMetrics(opts.Registry)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(traceRequests(opts.Tracer))
	r.Use(metrics.middleware)
	r.Use(logRequests(opts.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
	})
	r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{Registry: opts.Registry}))

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth.Middleware)
		}
		h.routes(r)
	})
	return r
}

func (h *handler) routes(r chi.Router) {
	s := h.svc

	r.Route("/categories", resource[library.Category, library.CategoryPatch]{
		create: s.AddCategory, update: s.UpdateCategory, remove: s.DeleteCategory,
		get: s.GetCategory, list: listHandler(s.ListCategories),
	}.mount)

	r.Route("/books", func(r chi.Router) {
		resource[library.Book, library.BookPatch]{
			create: s.AddBook, update: s.UpdateBook, remove: s.DeleteBook,
			get: s.GetBook, list: listHandler(s.ListBooks),
		}.mount(r)
		r.Get("/{id}/issues", h.listIssues)
		r.Post("/{id}/issues", h.reportIssue)
	})

	r.Route("/issues", func(r chi.Router) {
		r.Get("/", h.listIssues)
		r.Get("/{id}", getHandler(s.GetBookIssue))
		r.Patch("/{id}", updateHandler(s.UpdateBookIssue))
		r.Delete("/{id}", deleteHandler(s.DeleteBookIssue))
	})

	r.Route("/classes", resource[library.SchoolClass, library.SchoolClassPatch]{
		create: s.AddSchoolClass, update: s.UpdateSchoolClass, remove: s.DeleteSchoolClass,
		get: s.GetSchoolClass, list: listHandler(s.ListSchoolClasses),
	}.mount)

	r.Route("/participants", func(r chi.Router) {
		resource[library.Participant, library.ParticipantPatch]{
			create: s.AddParticipant, update: s.UpdateParticipant, remove: s.DeleteParticipant,
			get: s.GetParticipant, list: h.listParticipants,
		}.mount(r)
		r.Get("/{id}/loans", h.readerLoans(library.ReaderParticipant))
	})

	r.Route("/readers", func(r chi.Router) {
		resource[library.OtherReader, library.OtherReaderPatch]{
			create: s.AddOtherReader, update: s.UpdateOtherReader, remove: s.DeleteOtherReader,
			get: s.GetOtherReader, list: listHandler(s.ListOtherReaders),
		}.mount(r)
		r.Get("/{id}/loans", h.readerLoans(library.ReaderOther))
	})

	r.Route("/entities", resource[library.Entity, library.EntityPatch]{
		create: s.AddEntity, update: s.UpdateEntity, remove: s.DeleteEntity,
		get: s.GetEntity, list: listHandler(s.ListEntities),
	}.mount)

	r.Route("/materials", resource[library.Material, library.MaterialPatch]{
		create: s.AddMaterial, update: s.UpdateMaterial, remove: s.DeleteMaterial,
		get: s.GetMaterial, list: listHandler(s.ListMaterials),
	}.mount)

	r.Route("/loans", func(r chi.Router) {
		r.Get("/", listHandler(s.ListLoans))
		r.Post("/", createHandler(s.CreateLoan))
		r.Get("/{id}", getHandler(s.GetLoan))
		r.Delete("/{id}", deleteHandler(s.DeleteLoan))
		r.Post("/{id}/return", actionHandler(s.ReturnLoan))
		r.Post("/{id}/renew", renewHandler(s.RenewLoan))
	})

	r.Route("/material-loans", func(r chi.Router) {
		r.Get("/", listHandler(s.ListMaterialLoans))
		r.Post("/", createHandler(s.CreateMaterialLoan))
		r.Get("/{id}", getHandler(s.GetMaterialLoan))
		r.Delete("/{id}", deleteHandler(s.DeleteMaterialLoan))
		r.Post("/{id}/return", actionHandler(s.ReturnMaterialLoan))
		r.Post("/{id}/renew", renewHandler(s.RenewMaterialLoan))
	})

	r.Route("/reading-sessions", resource[library.ReadingSession, library.ReadingSessionPatch]{
		create: s.AddReadingSession, update: s.UpdateReadingSession, remove: s.DeleteReadingSession,
		get: s.GetReadingSession, list: h.listReadingSessions,
	}.mount)

	r.Route("/tasks", resource[library.Task, library.TaskPatch]{
		create: s.AddTask, update: s.UpdateTask, remove: s.DeleteTask,
		get: s.GetTask, list: listHandler(s.ListTasks),
	}.mount)

	r.Route("/inventories", func(r chi.Router) {
		resource[library.InventorySession, library.InventorySessionPatch]{
			create: s.StartInventorySession, update: s.UpdateInventorySession, remove: s.DeleteInventorySession,
			get: s.GetInventorySession, list: listHandler(s.ListInventorySessions),
		}.mount(r)
		r.Post("/{id}/check", h.checkInventoryBook)
		r.Post("/{id}/close", actionHandler(s.CloseInventorySession))
	})

	r.Get("/dependents/{kind}/{id}", h.countDependents)

	r.Route("/stats", func(r chi.Router) {
		r.Get("/overdue", h.overdue)
		r.Get("/categories", listHandler(s.CategoryDistribution))
		r.Get("/activity", h.recentActivity)
		r.Get("/due-soon", h.dueSoon)
		r.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.Summary(r.Context()))
		})
	})
}

func renewHandler[T any](fn func(context.Context, string, time.Time) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DueDate time.Time `json:"due_date"`
		}
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		out, err := fn(r.Context(), chi.URLParam(r, "id"), req.DueDate)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
