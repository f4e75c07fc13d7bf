package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	service "github.com/okian/zonal/internal/app"
	"github.com/okian/zonal/internal/domain/aoi"
	"github.com/okian/zonal/internal/domain/dataset"
	"github.com/okian/zonal/pkg/logger"
)

// zonalRequest mirrors the OpenAPI schema for POST /v1/zonal-stats.
type zonalRequest struct {
	Geometry json.RawMessage `json:"geometry" validate:"required"`
	Datasets []string        `json:"datasets" validate:"omitempty,max=16,dive,required"`
	Top      int             `json:"top" validate:"gte=0,lte=1000"`
}

// ZonalHandler handles zonal statistics requests.
type ZonalHandler struct {
	deps           Dependencies
	log            logger.Logger
	maxBodyBytes   int64
	defaultDataset string
}

// NewZonalHandler creates a new zonal statistics handler.
func NewZonalHandler(deps Dependencies, log logger.Logger, maxBodyBytes int64, defaultDataset string) *ZonalHandler {
	return &ZonalHandler{deps: deps, log: log, maxBodyBytes: maxBodyBytes, defaultDataset: defaultDataset}
}

// HandleCompute handles POST /v1/zonal-stats requests.
func (h *ZonalHandler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.zonal_stats"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large_body", NewKind(op, ErrBadRequest))
		return
	}

	var req zonalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	geometry, err := aoi.Decode(req.Geometry)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_geometry", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Datasets) == 0 {
		req.Datasets = []string{h.defaultDataset}
	}

	out, err := h.deps.Compute(r.Context(), service.Submission{
		Geometry: geometry,
		Datasets: req.Datasets,
		TopN:     req.Top,
	})
	if err != nil {
		status, code := computeErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error(r.Context(), "zonal compute failed", logger.Error(err))
		}
		writeError(w, status, code, Wrap(op, err))
		return
	}

	writeJSON(w, outcomeStatus(out), out)
}

// outcomeStatus maps a run's terminal state onto an HTTP status.
func outcomeStatus(out service.Outcome) int {
	switch out.State {
	case service.StateDone:
		return http.StatusOK
	case service.StateRejected:
		return http.StatusUnprocessableEntity
	case service.StateFailed:
		switch out.Reason {
		case service.ReasonEmptyHistogram:
			return http.StatusNotFound
		case service.ReasonBackendUnavailable:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusInternalServerError
	}
}

func computeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, dataset.ErrUnknownDataset):
		return http.StatusBadRequest, "unknown_dataset"
	case errors.Is(err, service.ErrNoDatasets),
		errors.Is(err, service.ErrNoGeometry),
		errors.Is(err, service.ErrDuplicateDataset):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
