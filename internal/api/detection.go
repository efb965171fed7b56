package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

type detectionUseCaseRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Severity     string `json:"severity"`
	Enabled      bool   `json:"enabled"`
	CountryScope string `json:"country_scope"`
}

func (s *Service) listDetectionUseCases(c *gin.Context) {
	out, err := s.store.ListDetectionUseCases(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Service) createDetectionUseCase(c *gin.Context) {
	var req detectionUseCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	severity := model.Severity(req.Severity)
	if severity == "" {
		severity = model.SeverityMedium
	}
	out, err := s.store.CreateDetectionUseCase(c.Request.Context(), model.DetectionUseCase{
		Name:         req.Name,
		Description:  req.Description,
		Severity:     severity,
		Enabled:      req.Enabled,
		CountryScope: req.CountryScope,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Service) updateDetectionUseCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var req detectionUseCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	severity := model.Severity(req.Severity)
	if severity == "" {
		severity = model.SeverityMedium
	}
	out, err := s.store.UpdateDetectionUseCase(c.Request.Context(), model.DetectionUseCase{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		Severity:     severity,
		Enabled:      req.Enabled,
		CountryScope: req.CountryScope,
	})
	if err != nil {
		respondError(c, storeStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Service) deleteDetectionUseCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.store.DeleteDetectionUseCase(c.Request.Context(), id); err != nil {
		respondError(c, storeStatus(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

type detectionConditionRequest struct {
	Tactic       string  `json:"tactic"`
	TechniqueID  *string `json:"technique_id"`
	Procedure    string  `json:"procedure"`
	MinSightings int     `json:"min_sightings"`
	MinDays      int     `json:"min_days"`
}

func (s *Service) addDetectionCondition(c *gin.Context) {
	useCaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var req detectionConditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	cond := model.DetectionCondition{
		UseCaseID:    useCaseID,
		Tactic:       req.Tactic,
		Procedure:    req.Procedure,
		MinSightings: req.MinSightings,
		MinDays:      req.MinDays,
	}
	if req.TechniqueID != nil {
		tid, err := uuid.Parse(*req.TechniqueID)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		cond.TechniqueID = &tid
	}

	out, err := s.store.AddDetectionCondition(c.Request.Context(), cond)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Service) listDetectionConditions(c *gin.Context) {
	useCaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	out, err := s.store.ConditionsForUseCase(c.Request.Context(), useCaseID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
