package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/3leaps/gospool/internal/errors"
	"github.com/3leaps/gospool/pkg/jobrecord"
	"github.com/3leaps/gospool/pkg/printer"
	"github.com/3leaps/gospool/pkg/report"
)

// MaxPageSize caps the size query parameter.
const MaxPageSize = 500

// API serves printers and persisted job records.
type API struct {
	Printers printer.Repository
	Jobs     jobrecord.Repository
}

// Routes mounts the API on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/printers", a.ListPrinters)
	r.Get("/printers/default", a.DefaultPrinter)
	r.Get("/printers/{id}/jobs", a.PrinterJobs)
	r.Get("/jobs", a.ListJobs)
	r.Delete("/jobs", a.DeleteJobs)
	r.Get("/totals", a.Totals)
}

func (a *API) ListPrinters(w http.ResponseWriter, r *http.Request) {
	printers, err := a.Printers.FindAll(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if printers == nil {
		printers = []printer.Printer{}
	}
	writeJSON(w, http.StatusOK, printers)
}

func (a *API) DefaultPrinter(w http.ResponseWriter, r *http.Request) {
	p, ok, err := a.Printers.FindDefault(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if !ok {
		respondWithError(w, r, apperrors.NewNotFound("no active printer"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) PrinterJobs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewBadRequest("invalid printer id", err))
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	records, err := a.Jobs.FindByPrinter(r.Context(), id, page)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeRecords(w, records)
}

// ListJobs returns the jobs of ?owner=, or every job when owner is absent.
func (a *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	var records []jobrecord.Record
	var err error
	if owner := strings.TrimSpace(r.URL.Query().Get("owner")); owner != "" {
		records, err = a.Jobs.FindByOwner(r.Context(), owner)
	} else {
		records, err = a.Jobs.FindAll(r.Context())
	}
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeRecords(w, records)
}

// DeleteJobs removes every job of ?owner=, which is required.
func (a *API) DeleteJobs(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		respondWithError(w, r, apperrors.NewBadRequest("owner is required", nil))
		return
	}
	n, err := a.Jobs.DeleteByOwner(r.Context(), owner)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "deleted": n})
}

func (a *API) Totals(w http.ResponseWriter, r *http.Request) {
	records, err := a.Jobs.FindAll(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	totals := report.Totals(records)
	writeJSON(w, http.StatusOK, map[string]any{
		"owners": totals,
		"total":  report.Sum(totals),
	})
}

func writeRecords(w http.ResponseWriter, records []jobrecord.Record) {
	if records == nil {
		records = []jobrecord.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func pageFromQuery(r *http.Request) (jobrecord.Page, error) {
	page := jobrecord.Page{Size: jobrecord.DefaultPageSize}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, apperrors.NewBadRequest("page must be a non-negative integer", err)
		}
		page.Number = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPageSize {
			return page, apperrors.NewBadRequest("size must be between 1 and 500", err)
		}
		page.Size = n
	}
	return page, nil
}
