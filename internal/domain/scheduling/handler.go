package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
	"github.com/medora/medora/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/search", h.SearchAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.GET("/patients/:id/appointments", h.ListPatientAppointments)

	clinical := auth.RequireCapability(auth.ManageClinicalRecords)
	api.POST("/appointments", h.CreateAppointment, clinical)
	api.PUT("/appointments/:id", h.UpdateAppointment, clinical)
	api.DELETE("/appointments/:id", h.DeleteAppointment, clinical)
}

func actorOf(c echo.Context) (*auth.Actor, error) {
	actor := auth.ActorFromContext(c.Request().Context())
	if actor == nil {
		return nil, apierr.Unauthorized("Missing token")
	}
	return actor, nil
}

func appointmentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apierr.NotFound("Appointment not found")
	}
	return id, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apierr.Validation("Invalid JSON body")
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     "Appointment created successfully",
		"appointment": a,
	})
}

func (h *Handler) GetAppointment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"appointment": a})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), actor, pg.Limit(), pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.Envelope("appointments", items, pg, total))
}

func (h *Handler) SearchAppointments(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	params := SearchParams{
		PatientName: c.QueryParam("patient_name"),
		DateFrom:    c.QueryParam("date_from"),
		DateTo:      c.QueryParam("date_to"),
		Status:      c.QueryParam("status"),
	}
	items, total, err := h.svc.SearchAppointments(c.Request().Context(), actor, params, pg.Limit(), pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.Envelope("appointments", items, pg, total))
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	pid, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.PatientAppointments(c.Request().Context(), actor, pid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"appointments": items})
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return apierr.Validation("Invalid JSON body")
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), actor, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "Appointment updated successfully",
		"appointment": a,
	})
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Appointment deleted successfully"})
}
