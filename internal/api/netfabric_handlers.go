package api

import (
	"net/http"

	"github.com/gmfc/helios-os/pkg/types"
	"github.com/labstack/echo/v4"
)

type registerNICRequest struct {
	NICID string `json:"nic_id"`
	MAC   string `json:"mac"`
}

type sendFrameRequest struct {
	NICID string      `json:"nic_id"`
	Frame types.Frame `json:"frame"`
}

type nicIDRequest struct {
	NICID string `json:"nic_id"`
}

type receiveFramesResponse struct {
	Frames []types.Frame `json:"frames"`
}

type wifiScanResponse struct {
	SSIDs []string `json:"ssids"`
}

type wifiJoinRequest struct {
	NICID      string `json:"nic_id"`
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase"`
}

type wifiJoinResponse struct {
	Joined bool `json:"joined"`
}

func (s *Server) registerNIC(c echo.Context) error {
	var req registerNICRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	s.fabric.RegisterNIC(req.NICID, req.MAC)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) sendFrame(c echo.Context) error {
	var req sendFrameRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := s.fabric.SendFrame(req.NICID, req.Frame); err != nil {
		return errJSON(c, http.StatusNotFound, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) receiveFrames(c echo.Context) error {
	var req nicIDRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, receiveFramesResponse{Frames: s.fabric.ReceiveFrames(req.NICID)})
}

func (s *Server) wifiScan(c echo.Context) error {
	return c.JSON(http.StatusOK, wifiScanResponse{SSIDs: s.fabric.WifiScan()})
}

func (s *Server) wifiJoin(c echo.Context) error {
	var req wifiJoinRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	joined := s.fabric.WifiJoin(req.NICID, req.SSID, req.Passphrase)
	return c.JSON(http.StatusOK, wifiJoinResponse{Joined: joined})
}
