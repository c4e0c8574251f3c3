package api

import (
	"strconv"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"TradeSynth/internal/domain/models"
	"TradeSynth/internal/services/sketch"
	"TradeSynth/internal/usecase"
	xhttp "TradeSynth/pkg/http"
	xlogger "TradeSynth/pkg/logger"
)

// StatusHandler serves the progress of the running batch and the digests it
// has built or loaded.
type StatusHandler struct {
	logger   *xlogger.Logger
	progress *usecase.Progress
	sketches atomic.Pointer[loadedSketches]
	lutSize  int
}

type loadedSketches struct {
	set    *sketch.Set
	tables map[string]*sketch.LookupTable
}

func NewStatusHandler(logger *xlogger.Logger, progress *usecase.Progress, lutSize int) *StatusHandler {
	if lutSize < 2 {
		lutSize = sketch.DefaultLUTSize
	}
	return &StatusHandler{logger: logger, progress: progress, lutSize: lutSize}
}

// SetSketches publishes a digest set; it must not be modified afterwards.
func (h *StatusHandler) SetSketches(s *sketch.Set) error {
	tables, err := s.LookupTables(h.lutSize)
	if err != nil {
		return err
	}
	h.sketches.Store(&loadedSketches{set: s, tables: tables})
	return nil
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/sketch", h.ListSketches)
	g.GET("/sketch/:feature", h.Sketch)
}

func (h *StatusHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.progress.Snapshot())
}

func (h *StatusHandler) ListSketches(c echo.Context) error {
	loaded := h.sketches.Load()
	if loaded == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("no sketches loaded"))
	}
	set := loaded.set
	out := make([]models.SketchSummary, 0, len(set.Names()))
	for _, name := range set.Names() {
		d, _ := set.Get(name)
		out = append(out, summarize(name, d))
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *StatusHandler) Sketch(c echo.Context) error {
	req := &models.SketchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.logger.Debug("sketch request rejected", xlogger.Any("errors", verr))
		return xhttp.BadRequestResponse(c, verr)
	}
	loaded := h.sketches.Load()
	if loaded == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("no sketches loaded"))
	}
	d, ok := loaded.set.Get(req.Feature)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("feature %s has no sketch", req.Feature))
	}

	res := summarize(req.Feature, d)
	if req.Q != "" {
		q, _ := strconv.ParseFloat(req.Q, 64)
		if q < 0 || q > 1 {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code:    "ERR_RANGE",
				Field:   "q",
				Message: "q must be between 0 and 1",
			}})
		}
		v := d.Quantile(q)
		res.Quantile = &v
	}
	if req.X != "" {
		x, _ := strconv.ParseFloat(req.X, 64)
		cdf := d.CDF(x)
		res.CDF = &cdf
		v := loaded.tables[req.Feature].Lookup(x)
		res.Lookup = &v
	}
	return xhttp.SuccessResponse(c, res)
}

func summarize(name string, d *sketch.TDigest) models.SketchSummary {
	return models.SketchSummary{
		Feature:   name,
		Count:     d.Count(),
		Min:       d.Min(),
		Max:       d.Max(),
		Centroids: len(d.Centroids()),
	}
}
