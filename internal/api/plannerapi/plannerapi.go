package plannerapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/FreightLink/internal/api/httputil"
	"github.com/BearBump/FreightLink/internal/authctx"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/BearBump/FreightLink/internal/services/legs"
	"github.com/BearBump/FreightLink/internal/services/routes"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type LegsService interface {
	GetLeg(ctx context.Context, id uint64) (*models.Leg, error)
	ListPending(ctx context.Context, limit int) ([]*models.Leg, error)
	Assign(ctx context.Context, legID uint64, vehicleRef string, plannedStart, plannedEnd *time.Time) (*models.Leg, error)
	AssignConsecutive(ctx context.Context, vehicleRef string, items []legs.ConsecutiveAssignment) ([]*models.Leg, error)
	Reassign(ctx context.Context, legID uint64, newVehicleRef string, plannedStart, plannedEnd *time.Time) (*models.Leg, error)
	Start(ctx context.Context, legID uint64) (*models.Leg, error)
	Finish(ctx context.Context, legID uint64, traveledKm float64) (*models.Leg, error)
}

type RoutesService interface {
	Plan(ctx context.Context, req routes.PlanRequest) (*routes.PlanResult, error)
	GetRoute(ctx context.Context, id uint64) (*routes.PlanResult, error)
	Quote(ctx context.Context, origin models.GeoPoint, depotIDs []uint64, destination models.GeoPoint) (*routes.Quote, error)
	PreviewAlternatives(ctx context.Context, req routes.PlanRequest) ([]routes.Alternative, error)
}

type PlannerAPI struct {
	legs   LegsService
	routes RoutesService
}

func New(legsSvc LegsService, routesSvc RoutesService) *PlannerAPI {
	return &PlannerAPI{legs: legsSvc, routes: routesSvc}
}

func (a *PlannerAPI) Router(swaggerPath string) chi.Router {
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

	r.Route("/routes", func(r chi.Router) {
		r.Post("/plan", a.planRoute)
		r.Post("/quote", a.quote)
		r.Post("/preview", a.preview)
		r.Get("/{id}", a.getRoute)
	})
	r.Route("/legs", func(r chi.Router) {
		r.Get("/pending", a.listPending)
		r.Post("/assign-consecutive", a.assignConsecutive)
		r.Get("/{id}", a.getLeg)
		r.Post("/{id}/assign", a.assignLeg)
		r.Post("/{id}/reassign", a.reassignLeg)
		r.Post("/{id}/start", a.startLeg)
		r.Post("/{id}/finish", a.finishLeg)
	})
	return r
}

type geoPointDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type planRequest struct {
	ShipmentRef string      `json:"shipment_ref"`
	Origin      geoPointDTO `json:"origin"`
	Destination geoPointDTO `json:"destination"`
	DepotIDs    []uint64    `json:"depot_ids"`
	TariffID    uint64      `json:"tariff_id"`
}

func (pr planRequest) toService() routes.PlanRequest {
	return routes.PlanRequest{
		ShipmentRef: pr.ShipmentRef,
		Origin:      models.GeoPoint{Lat: pr.Origin.Lat, Lon: pr.Origin.Lon},
		Destination: models.GeoPoint{Lat: pr.Destination.Lat, Lon: pr.Destination.Lon},
		DepotIDs:    pr.DepotIDs,
		TariffID:    pr.TariffID,
	}
}

type routeDTO struct {
	ID               uint64    `json:"id"`
	ShipmentRef      string    `json:"shipment_ref"`
	LegCount         int       `json:"leg_count"`
	TotalDistanceKm  float64   `json:"total_distance_km"`
	TotalCost        float64   `json:"total_cost"`
	TotalDurationSec float64   `json:"total_duration_sec"`
	AlreadyPlanned   bool      `json:"already_planned"`
	Legs             []*legDTO `json:"legs"`
}

func toRouteDTO(res *routes.PlanResult) *routeDTO {
	out := &routeDTO{
		ID:               res.Route.ID,
		ShipmentRef:      res.Route.ShipmentRef,
		LegCount:         len(res.Legs),
		TotalDistanceKm:  res.TotalDistanceKm,
		TotalCost:        res.TotalCost,
		TotalDurationSec: res.TotalDurationSec,
		AlreadyPlanned:   res.AlreadyPlanned,
	}
	for _, l := range res.Legs {
		out.Legs = append(out.Legs, toLegDTO(l))
	}
	return out
}

type legDTO struct {
	ID                   uint64     `json:"id"`
	RouteID              uint64     `json:"route_id"`
	SequenceIndex        int        `json:"sequence_index"`
	OriginDepotID        *uint64    `json:"origin_depot_id,omitempty"`
	DestinationDepotID   *uint64    `json:"destination_depot_id,omitempty"`
	TariffID             uint64     `json:"tariff_id"`
	Type                 string     `json:"type"`
	State                string     `json:"state"`
	EstimatedKm          float64    `json:"estimated_km"`
	TraveledKm           float64    `json:"traveled_km"`
	EstimatedCost        float64    `json:"estimated_cost"`
	RealCost             float64    `json:"real_cost"`
	EstimatedDurationSec float64    `json:"estimated_duration_sec"`
	RealDurationSec      float64    `json:"real_duration_sec"`
	PlannedStartAt       *time.Time `json:"planned_start_at,omitempty"`
	PlannedEndAt         *time.Time `json:"planned_end_at,omitempty"`
	RealStartAt          *time.Time `json:"real_start_at,omitempty"`
	RealEndAt            *time.Time `json:"real_end_at,omitempty"`
	VehicleRef           string     `json:"vehicle_ref"`
}

func toLegDTO(l *models.Leg) *legDTO {
	return &legDTO{
		ID:                   l.ID,
		RouteID:              l.RouteID,
		SequenceIndex:        l.SequenceIndex,
		OriginDepotID:        l.OriginDepotID,
		DestinationDepotID:   l.DestinationDepotID,
		TariffID:             l.TariffID,
		Type:                 l.Type,
		State:                l.State,
		EstimatedKm:          l.EstimatedKm,
		TraveledKm:           l.TraveledKm,
		EstimatedCost:        l.EstimatedCost,
		RealCost:             l.RealCost,
		EstimatedDurationSec: l.EstimatedDurationSec,
		RealDurationSec:      l.RealDurationSec,
		PlannedStartAt:       l.PlannedStartAt,
		PlannedEndAt:         l.PlannedEndAt,
		RealStartAt:          l.RealStartAt,
		RealEndAt:            l.RealEndAt,
		VehicleRef:           l.VehicleRef,
	}
}

func (a *PlannerAPI) planRoute(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := a.routes.Plan(r.Context(), req.toService())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyPlanned {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, toRouteDTO(res))
}

func (a *PlannerAPI) getRoute(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := a.routes.GetRoute(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRouteDTO(res))
}

func (a *PlannerAPI) quote(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	q, err := a.routes.Quote(r.Context(),
		models.GeoPoint{Lat: req.Origin.Lat, Lon: req.Origin.Lon},
		req.DepotIDs,
		models.GeoPoint{Lat: req.Destination.Lat, Lon: req.Destination.Lon})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"total_distance_km":  q.TotalDistanceKm,
		"total_duration_sec": q.TotalDurationSec,
		"segments":           q.Segments,
	})
}

func (a *PlannerAPI) preview(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	alts, err := a.routes.PreviewAlternatives(r.Context(), req.toService())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(alts))
	for _, alt := range alts {
		out = append(out, map[string]any{
			"label":              alt.Label,
			"total_distance_km":  alt.TotalDistanceKm,
			"total_cost":         alt.TotalCost,
			"total_duration_sec": alt.TotalDurationSec,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"alternatives": out})
}

func (a *PlannerAPI) getLeg(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	leg, err := a.legs.GetLeg(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLegDTO(leg))
}

func (a *PlannerAPI) listPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pending, err := a.legs.ListPending(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]*legDTO, 0, len(pending))
	for _, l := range pending {
		out = append(out, toLegDTO(l))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"legs": out})
}

type assignRequest struct {
	VehicleRef     string     `json:"vehicle_ref"`
	PlannedStartAt *time.Time `json:"planned_start_at,omitempty"`
	PlannedEndAt   *time.Time `json:"planned_end_at,omitempty"`
}

func (a *PlannerAPI) assignLeg(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req assignRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	leg, err := a.legs.Assign(r.Context(), id, req.VehicleRef, req.PlannedStartAt, req.PlannedEndAt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLegDTO(leg))
}

func (a *PlannerAPI) reassignLeg(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req assignRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	leg, err := a.legs.Reassign(r.Context(), id, req.VehicleRef, req.PlannedStartAt, req.PlannedEndAt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLegDTO(leg))
}

type consecutiveAssignRequest struct {
	VehicleRef string `json:"vehicle_ref"`
	Items      []struct {
		LegID          uint64    `json:"leg_id"`
		PlannedStartAt time.Time `json:"planned_start_at"`
		PlannedEndAt   time.Time `json:"planned_end_at"`
	} `json:"items"`
}

func (a *PlannerAPI) assignConsecutive(w http.ResponseWriter, r *http.Request) {
	var req consecutiveAssignRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	items := make([]legs.ConsecutiveAssignment, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, legs.ConsecutiveAssignment{
			LegID:        it.LegID,
			PlannedStart: it.PlannedStartAt,
			PlannedEnd:   it.PlannedEndAt,
		})
	}
	assigned, err := a.legs.AssignConsecutive(r.Context(), req.VehicleRef, items)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]*legDTO, 0, len(assigned))
	for _, l := range assigned {
		out = append(out, toLegDTO(l))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"legs": out})
}

func (a *PlannerAPI) startLeg(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	leg, err := a.legs.Start(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLegDTO(leg))
}

type finishRequest struct {
	TraveledKm float64 `json:"traveled_km"`
}

func (a *PlannerAPI) finishLeg(w http.ResponseWriter, r *http.Request) {
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
	leg, err := a.legs.Finish(r.Context(), id, req.TraveledKm)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLegDTO(leg))
}
