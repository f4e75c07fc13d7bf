package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/zonal/internal/domain/dataset"
)

type datasetSummary struct {
	Key    string         `json:"key"`
	Title  string         `json:"title,omitempty"`
	Units  string         `json:"units,omitempty"`
	Ramp   dataset.Ramp   `json:"ramp"`
	Source dataset.Source `json:"source"`
}

type datasetLegend struct {
	datasetSummary
	Classes     []dataset.Class   `json:"classes"`
	ClassNames  map[string]string `json:"class_names"`
	ClassColors map[string]string `json:"class_colors"`
}

// DatasetsHandler serves the dataset catalog.
type DatasetsHandler struct {
	catalog Catalog
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(catalog Catalog) *DatasetsHandler {
	return &DatasetsHandler{catalog: catalog}
}

// HandleList handles GET /v1/datasets requests.
func (h *DatasetsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_datasets"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}
	keys := h.catalog.Keys()
	out := make([]datasetSummary, 0, len(keys))
	for _, key := range keys {
		d, err := h.catalog.Describe(key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
			return
		}
		out = append(out, summarize(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /v1/datasets/{key} and GET /v1/datasets/{key}/sld.
func (h *DatasetsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_dataset"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}

	// Extract path parameter after /v1/datasets/
	path := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")
	key, sld := strings.CutSuffix(path, "/sld")
	if key == "" || strings.Contains(key, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	d, err := h.catalog.Describe(key)
	if err != nil {
		if errors.Is(err, dataset.ErrUnknownDataset) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}

	if sld {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(d.SLD()))
		return
	}

	writeJSON(w, http.StatusOK, datasetLegend{
		datasetSummary: summarize(d),
		Classes:        d.Classes(),
		ClassNames:     d.ClassNames(),
		ClassColors:    d.ClassColors(),
	})
}

func summarize(d *dataset.Descriptor) datasetSummary {
	return datasetSummary{Key: d.Key, Title: d.Title, Units: d.Units, Ramp: d.Ramp, Source: d.Source}
}
