package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peerix/ixsync/pkg/importer"
	"github.com/peerix/ixsync/pkg/registry/models"
)

// ImportHandler exposes reconciliation runs and the post-mortem report
// over HTTP.
type ImportHandler struct {
	importer   *importer.Importer
	postmortem *importer.PostMortem
}

// NewImportHandler creates a new import handler.
func NewImportHandler(imp *importer.Importer, pm *importer.PostMortem) *ImportHandler {
	return &ImportHandler{importer: imp, postmortem: pm}
}

// TriggerImport handles POST /api/v1/ixlans/{id}/import.
//
// Query parameters:
//   - preview: compute the decision stream without committing anything
//   - asn: restrict the run to a single network
//   - cache_only: reconcile against the locally cached feed
//   - skip_import: fetch and validate only, plus proposal cleanup
func (h *ImportHandler) TriggerImport(w http.ResponseWriter, r *http.Request) {
	ixlanID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		badRequest(w, "Invalid ixlan id")
		return
	}

	opts := importer.RunOptions{
		Save:       !boolParam(r, "preview"),
		CacheOnly:  boolParam(r, "cache_only"),
		SkipImport: boolParam(r, "skip_import"),
	}
	if asnStr := r.URL.Query().Get("asn"); asnStr != "" {
		asn, err := strconv.ParseUint(asnStr, 10, 32)
		if err != nil {
			badRequest(w, "Invalid asn")
			return
		}
		opts.ASN = uint32(asn)
	}

	result, err := h.importer.Run(r.Context(), uint(ixlanID), opts)
	if err != nil {
		if errors.Is(err, models.ErrIXLanNotFound) {
			notFound(w, "IXLAN not found")
			return
		}
		internalError(w, "Import run failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, okResponse(result))
}

// Postmortem handles GET /api/v1/networks/{asn}/postmortem.
func (h *ImportHandler) Postmortem(w http.ResponseWriter, r *http.Request) {
	asn, err := strconv.ParseUint(chi.URLParam(r, "asn"), 10, 32)
	if err != nil {
		badRequest(w, "Invalid asn")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			badRequest(w, "Invalid limit")
			return
		}
	}

	records, err := h.postmortem.Generate(r.Context(), uint32(asn), limit)
	if err != nil {
		internalError(w, "Failed to generate post-mortem: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, okResponse(records))
}

func boolParam(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}
