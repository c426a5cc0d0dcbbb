package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gmfc/helios-os/internal/isolate"
	"github.com/labstack/echo/v4"
)

type runIsolateRequest struct {
	Pid      uint32 `json:"pid"`
	Code     string `json:"code"`
	QuotaMS  int    `json:"quota_ms"`
	QuotaMem uint64 `json:"quota_mem"`
}

type runIsolateSliceRequest struct {
	Pid      uint32  `json:"pid"`
	Code     *string `json:"code"`
	SliceMS  int     `json:"slice_ms"`
	QuotaMem uint64  `json:"quota_mem"`
}

type dropIsolateRequest struct {
	Pid uint32 `json:"pid"`
}

func (s *Server) runIsolate(c echo.Context) error {
	var req runIsolateRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if req.QuotaMS <= 0 {
		req.QuotaMS = s.defaultQuotaMS
	}
	if req.QuotaMem == 0 {
		req.QuotaMem = uint64(s.defaultQuotaMemB)
	}

	res, err := s.runtime.RunIsolate(req.Pid, req.Code, req.QuotaMS, req.QuotaMem)
	if err != nil {
		return isolateErrJSON(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) runIsolateSlice(c echo.Context) error {
	var req runIsolateSliceRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if req.SliceMS <= 0 {
		req.SliceMS = s.defaultSliceMS
	}
	if req.QuotaMem == 0 {
		req.QuotaMem = uint64(s.defaultQuotaMemB)
	}

	res, err := s.runtime.RunIsolateSlice(req.Pid, req.Code, req.SliceMS, req.QuotaMem)
	if err != nil {
		return isolateErrJSON(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) dropIsolate(c echo.Context) error {
	var req dropIsolateRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	s.runtime.DropIsolate(req.Pid)
	return c.NoContent(http.StatusNoContent)
}

type syscallResponseRequest struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
}

func (s *Server) syscallResponse(c echo.Context) error {
	var req syscallResponseRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := s.bridge.Respond(req.ID, req.Result); err != nil {
		return errJSON(c, http.StatusConflict, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// isolateErrJSON maps the isolate package's sentinel errors to HTTP status
// codes: 400 for guest-code errors, 408 for a timeout, 500 otherwise.
func isolateErrJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, isolate.ErrBadCode), errors.Is(err, isolate.ErrCompileFailed),
		errors.Is(err, isolate.ErrRunFailed), errors.Is(err, isolate.ErrNoCode):
		return errJSON(c, http.StatusBadRequest, err)
	case errors.Is(err, isolate.ErrTimeout):
		return errJSON(c, http.StatusRequestTimeout, err)
	default:
		return errJSON(c, http.StatusInternalServerError, err)
	}
}
