package fleetapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/FreightLink/internal/api/httputil"
	"github.com/BearBump/FreightLink/internal/authctx"
	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/integrations/plannerclient"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

var errInvalidAt = derr.InvalidState("query parameter at must be RFC3339")

type FleetService interface {
	RegisterVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error)
	GetVehicle(ctx context.Context, ref string) (*models.Vehicle, error)
	ListByCarrier(ctx context.Context, carrierID uint64) ([]*models.Vehicle, error)
	Reserve(ctx context.Context, ref string, legID uint64, plannedEnd *time.Time) (*models.Vehicle, error)
	ReleaseReservation(ctx context.Context, ref string, legID uint64) (*models.Vehicle, error)
	SetMaintenance(ctx context.Context, ref string, on bool) (*models.Vehicle, error)
	IsAvailableAt(ctx context.Context, ref string, when time.Time) (bool, error)
	SearchAvailable(ctx context.Context, at time.Time, minWeightKg, minVolumeM3 float64) ([]*models.Vehicle, error)
}

type DispatchService interface {
	Start(ctx context.Context, legID uint64) (plannerclient.Leg, error)
	Finish(ctx context.Context, legID uint64, traveledKm float64) (plannerclient.Leg, error)
}

type FleetAPI struct {
	fleet    FleetService
	dispatch DispatchService
}

func New(fleetSvc FleetService, dispatchSvc DispatchService) *FleetAPI {
	return &FleetAPI{fleet: fleetSvc, dispatch: dispatchSvc}
}

func (a *FleetAPI) Router(swaggerPath string) chi.Router {
	r := chi.NewRouter()
	r.Use(authctx.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	if swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, swaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))
	}

	r.Route("/vehicles", func(r chi.Router) {
		r.Post("/", a.registerVehicle)
		r.Get("/available", a.searchAvailable)
		r.Get("/{ref}", a.getVehicle)
		r.Get("/{ref}/profile", a.vehicleProfile)
		r.Get("/{ref}/availability", a.availability)
		r.Post("/{ref}/maintenance", a.setMaintenance)
		r.Post("/{ref}/reservations", a.reserve)
		r.Delete("/{ref}/reservations/{legID}", a.releaseReservation)
	})
	r.Get("/carriers/{id}/vehicles", a.listByCarrier)
	r.Post("/legs/{id}/start", a.startLeg)
	r.Post("/legs/{id}/finish", a.finishLeg)
	return r
}

type vehicleDTO struct {
	ID               uint64     `json:"id"`
	Ref              string     `json:"ref"`
	CarrierID        uint64     `json:"carrier_id"`
	WeightCapacityKg float64    `json:"weight_capacity_kg"`
	VolumeCapacityM3 float64    `json:"volume_capacity_m3"`
	FuelPer100Km     float64    `json:"fuel_per_100km"`
	CostPerKm        float64    `json:"cost_per_km"`
	TotalKm          float64    `json:"total_km"`
	State            string     `json:"state"`
	QueuedLegIDs     []uint64   `json:"queued_leg_ids"`
	CurrentLegID     *uint64    `json:"current_leg_id,omitempty"`
	NextFreeAt       *time.Time `json:"next_free_at,omitempty"`
}

func toVehicleDTO(v *models.Vehicle) *vehicleDTO {
	queued := v.QueuedLegIDs
	if queued == nil {
		queued = []uint64{}
	}
	return &vehicleDTO{
		ID:               v.ID,
		Ref:              v.Ref,
		CarrierID:        v.CarrierID,
		WeightCapacityKg: v.WeightCapacityKg,
		VolumeCapacityM3: v.VolumeCapacityM3,
		FuelPer100Km:     v.FuelPer100Km,
		CostPerKm:        v.CostPerKm,
		TotalKm:          v.TotalKm,
		State:            v.State,
		QueuedLegIDs:     queued,
		CurrentLegID:     v.CurrentLegID,
		NextFreeAt:       v.NextFreeAt,
	}
}

type registerVehicleRequest struct {
	Ref              string  `json:"ref"`
	CarrierID        uint64  `json:"carrier_id"`
	WeightCapacityKg float64 `json:"weight_capacity_kg"`
	VolumeCapacityM3 float64 `json:"volume_capacity_m3"`
	FuelPer100Km     float64 `json:"fuel_per_100km"`
	CostPerKm        float64 `json:"cost_per_km"`
}

func (a *FleetAPI) registerVehicle(w http.ResponseWriter, r *http.Request) {
	var req registerVehicleRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := a.fleet.RegisterVehicle(r.Context(), models.VehicleCreateInput{
		Ref:              req.Ref,
		CarrierID:        req.CarrierID,
		WeightCapacityKg: req.WeightCapacityKg,
		VolumeCapacityM3: req.VolumeCapacityM3,
		FuelPer100Km:     req.FuelPer100Km,
		CostPerKm:        req.CostPerKm,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVehicleDTO(v))
}

func (a *FleetAPI) getVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := a.fleet.GetVehicle(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVehicleDTO(v))
}

func (a *FleetAPI) vehicleProfile(w http.ResponseWriter, r *http.Request) {
	v, err := a.fleet.GetVehicle(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"ref":            v.Ref,
		"fuel_per_100km": v.FuelPer100Km,
		"cost_per_km":    v.CostPerKm,
	})
}

func (a *FleetAPI) availability(w http.ResponseWriter, r *http.Request) {
	when := time.Now().UTC()
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, errInvalidAt)
			return
		}
		when = t
	}
	ok, err := a.fleet.IsAvailableAt(r.Context(), chi.URLParam(r, "ref"), when)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"available": ok, "at": when})
}

func (a *FleetAPI) searchAvailable(w http.ResponseWriter, r *http.Request) {
	at := time.Now().UTC()
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, errInvalidAt)
			return
		}
		at = t
	}
	minWeight, _ := strconv.ParseFloat(r.URL.Query().Get("minWeight"), 64)
	minVolume, _ := strconv.ParseFloat(r.URL.Query().Get("minVolume"), 64)

	vehicles, err := a.fleet.SearchAvailable(r.Context(), at, minWeight, minVolume)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]*vehicleDTO, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, toVehicleDTO(v))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"vehicles": out})
}

func (a *FleetAPI) listByCarrier(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	vehicles, err := a.fleet.ListByCarrier(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]*vehicleDTO, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, toVehicleDTO(v))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"vehicles": out})
}

type reserveRequest struct {
	LegID        uint64     `json:"leg_id"`
	PlannedEndAt *time.Time `json:"planned_end_at,omitempty"`
}

func (a *FleetAPI) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := a.fleet.Reserve(r.Context(), chi.URLParam(r, "ref"), req.LegID, req.PlannedEndAt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVehicleDTO(v))
}

func (a *FleetAPI) releaseReservation(w http.ResponseWriter, r *http.Request) {
	legID, err := httputil.URLID(r, "legID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := a.fleet.ReleaseReservation(r.Context(), chi.URLParam(r, "ref"), legID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVehicleDTO(v))
}

type maintenanceRequest struct {
	On bool `json:"on"`
}

func (a *FleetAPI) setMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := a.fleet.SetMaintenance(r.Context(), chi.URLParam(r, "ref"), req.On)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVehicleDTO(v))
}

func (a *FleetAPI) startLeg(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	leg, err := a.dispatch.Start(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, leg)
}

type finishRequest struct {
	TraveledKm float64 `json:"traveled_km"`
}

func (a *FleetAPI) finishLeg(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req finishRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	leg, err := a.dispatch.Finish(r.Context(), id, req.TraveledKm)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, leg)
}
