package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

type createActorRequest struct {
	Name       string `json:"name" binding:"required"`
	ExternalID string `json:"external_id"`
	Country    string `json:"country"`
	Aliases    string `json:"aliases"`
	Source     string `json:"source"`
}

func (s *Service) listActors(c *gin.Context) {
	var (
		out []model.ThreatActor
		err error
	)
	if c.Query("all") == "true" {
		out, err = s.store.ListActors(c.Request.Context())
	} else {
		out, err = s.store.ActiveActors(c.Request.Context())
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Service) createActor(c *gin.Context) {
	var req createActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	actor, err := s.store.UpsertActor(c.Request.Context(), model.ThreatActor{
		Name:       req.Name,
		ExternalID: req.ExternalID,
		Country:    req.Country,
		Aliases:    req.Aliases,
		Source:     req.Source,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, actor)
}

func (s *Service) getActor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	actor, err := s.store.GetActor(c.Request.Context(), id)
	if err != nil {
		respondError(c, storeStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, actor)
}

func (s *Service) setActorActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.store.SetActorActive(c.Request.Context(), id, body.Active); err != nil {
		respondError(c, storeStatus(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Service) actorTimeline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	events, err := s.store.Timeline(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Service) actorTechniqueEvidence(c *gin.Context) {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	techniqueID, err := uuid.Parse(c.Param("techniqueId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	evidence, err := s.store.EvidenceForActorTechnique(c.Request.Context(), actorID, techniqueID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, evidence)
}

func (s *Service) tagActor(c *gin.Context) {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	tag, err := s.store.GetOrCreateTag(c.Request.Context(), body.Name)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.TagActor(c.Request.Context(), actorID, tag.ID); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (s *Service) listActorTags(c *gin.Context) {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	tags, err := s.store.TagsForActor(c.Request.Context(), actorID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (s *Service) tagActorToProject(c *gin.Context) {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var body struct {
		ProjectID string `json:"project_id" binding:"required"`
		Label     string `json:"label"`
		Note      string `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	projectID, err := uuid.Parse(body.ProjectID)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	tag, err := s.store.TagActorToProject(c.Request.Context(), model.ActorProjectTag{
		ActorID:   actorID,
		ProjectID: projectID,
		Label:     body.Label,
		Note:      body.Note,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (s *Service) listActorProjectTags(c *gin.Context) {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	tags, err := s.store.ProjectTagsForActor(c.Request.Context(), actorID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}
