package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zberg/go-flexismart/internal/coordinator"
	"github.com/zberg/go-flexismart/internal/entity"
	"github.com/zberg/go-flexismart/internal/health"
)

// HealthResponse summarizes the daemon.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	GatewayAvailable bool   `json:"gateway_available"`
	DevicesTotal     int    `json:"devices_total"`
	DevicesAvailable int    `json:"devices_available"`
}

// GatewayResponse is the gateway entity plus polling state.
type GatewayResponse struct {
	entity.Gateway
	Zones      []int     `json:"zones"`
	LastUpdate time.Time `json:"last_update"`
	LastError  string    `json:"last_error,omitempty"`
}

// DeviceResponse is one module: its entity (once read) and its health.
type DeviceResponse struct {
	Zone       int             `json:"zone"`
	Module     int             `json:"module"`
	Climate    *entity.Climate `json:"climate,omitempty"`
	Health     health.Snapshot `json:"health"`
	LastUpdate time.Time       `json:"last_update"`
	LastError  string          `json:"last_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	devices := s.devices.Devices()
	available := 0
	for _, dc := range devices {
		if dc.IsAvailable() {
			available++
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		Version:          s.version,
		GatewayAvailable: s.gateway.LastUpdateSuccess(),
		DevicesTotal:     len(devices),
		DevicesAvailable: available,
	})
}

func (s *Server) handleGateway(w http.ResponseWriter, _ *http.Request) {
	zones, _ := s.zones.Data()
	if zones == nil {
		zones = []int{}
	}
	writeJSON(w, http.StatusOK, GatewayResponse{
		Gateway:    entity.GatewayFromCoordinator(s.gateway),
		Zones:      zones,
		LastUpdate: s.gateway.LastUpdate(),
		LastError:  errorString(s.gateway.LastError()),
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.devices.Devices()
	out := make([]DeviceResponse, 0, len(devices))
	for _, dc := range devices {
		out = append(out, deviceResponse(dc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	zone, err := strconv.Atoi(chi.URLParam(r, "zone"))
	if err != nil {
		writeBadRequest(w, "zone must be an integer")
		return
	}
	module, err := strconv.Atoi(chi.URLParam(r, "module"))
	if err != nil {
		writeBadRequest(w, "module must be an integer")
		return
	}

	dc, ok := s.devices.Device(coordinator.ModuleKey{Zone: zone, Module: module})
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, deviceResponse(dc))
}

func deviceResponse(dc *coordinator.DeviceCoordinator) DeviceResponse {
	key := dc.Key()
	resp := DeviceResponse{
		Zone:       key.Zone,
		Module:     key.Module,
		Health:     dc.Health(),
		LastUpdate: dc.LastUpdate(),
		LastError:  errorString(dc.LastError()),
	}
	if c, ok := entity.ClimateFromDevice(dc); ok {
		resp.Climate = &c
	}
	return resp
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
