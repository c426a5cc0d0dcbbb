package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

type blobRequest struct {
	Data json.RawMessage `json:"data"`
}

type blobResponse struct {
	Data json.RawMessage `json:"data"`
}

type namedBlobRequest struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

type namedBlobQuery struct {
	Name string `json:"name"`
}

func (s *Server) saveFS(c echo.Context) error {
	var req blobRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := s.store.SaveFS(req.Data); err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) loadFS(c echo.Context) error {
	data, err := s.store.LoadFS()
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, blobResponse{Data: data})
}

func (s *Server) saveSnapshot(c echo.Context) error {
	var req blobRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := s.store.SaveSnapshot(req.Data); err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) loadSnapshot(c echo.Context) error {
	data, err := s.store.LoadSnapshot()
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, blobResponse{Data: data})
}

func (s *Server) saveNamedSnapshot(c echo.Context) error {
	var req namedBlobRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if req.Name == "" {
		return errJSON(c, http.StatusBadRequest, errMissingName)
	}
	if err := s.store.SaveNamedSnapshot(req.Name, req.Data); err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) loadNamedSnapshot(c echo.Context) error {
	var req namedBlobQuery
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if req.Name == "" {
		return errJSON(c, http.StatusBadRequest, errMissingName)
	}
	data, err := s.store.LoadNamedSnapshot(req.Name)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, blobResponse{Data: data})
}
