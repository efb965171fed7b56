package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Service) listTechniques(c *gin.Context) {
	out, err := s.store.ListTechniques(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Service) getTechnique(c *gin.Context) {
	t, err := s.store.GetTechniqueByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, storeStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, t)
}
