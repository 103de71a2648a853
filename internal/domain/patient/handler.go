package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/search", h.SearchPatients)
	api.GET("/patients/my-patient", h.GetMyPatient)
	api.GET("/patients/validate-id/:patient_id", h.ValidatePatientID)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
}

func actorOf(c echo.Context) (*auth.Actor, error) {
	actor := auth.ActorFromContext(c.Request().Context())
	if actor == nil {
		return nil, apierr.Unauthorized("Missing token")
	}
	return actor, nil
}

// ParseID reads the :id path parameter. Malformed ids are reported as a
// missing patient.
func ParseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apierr.NotFound("Patient not found")
	}
	return id, nil
}

func (h *Handler) CreatePatient(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apierr.Validation("Invalid JSON body")
	}
	p, err := h.svc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":    "Patient created successfully",
		"patient":    p,
		"patient_id": p.PatientID,
	})
}

func (h *Handler) ListPatients(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	filter := ListFilter{Search: c.QueryParam("search"), Gender: c.QueryParam("gender")}
	patients, total, err := h.svc.List(c.Request().Context(), actor, filter, p.Limit(), p.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.Envelope("patients", patients, p, total))
}

func (h *Handler) SearchPatients(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.Search(c.Request().Context(), actor, c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patients": patients})
}

func (h *Handler) GetMyPatient(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	p, err := h.svc.MyPatient(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patient": p})
}

func (h *Handler) ValidatePatientID(c echo.Context) error {
	pid := c.Param("patient_id")
	available, err := h.svc.IDAvailable(c.Request().Context(), pid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"available":  available,
		"patient_id": pid,
	})
}

func (h *Handler) GetPatient(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patient": p})
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return apierr.Validation("Invalid JSON body")
	}
	p, err := h.svc.Update(c.Request().Context(), actor, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Patient updated successfully",
		"patient": p,
	})
}

func (h *Handler) DeletePatient(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Patient deleted successfully"})
}
