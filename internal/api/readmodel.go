package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const riskCacheTTL = 60 * time.Second

func (s *Service) listAlerts(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	out, err := s.store.ListAlerts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Service) listRiskCountries(c *gin.Context) {
	out, err := s.store.DistinctRiskCountries(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// riskLatest serves the most recent two snapshots for a country —
// cached in Redis when available, since this endpoint is hit by
// dashboard polling far more often than the risk evaluator writes.
func (s *Service) riskLatest(c *gin.Context) {
	country := c.Param("country")
	cacheKey := "risk:latest:" + country

	if s.cache != nil {
		if raw, err := s.cache.GetString(c.Request.Context(), cacheKey); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(raw))
			return
		}
	}

	out, err := s.store.LastSnapshots(c.Request.Context(), country, 2)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	if s.cache != nil {
		if body, err := json.Marshal(out); err == nil {
			if err := s.cache.SetWithExpiry(c.Request.Context(), cacheKey, body, riskCacheTTL); err != nil {
				s.log.Warn("risk cache write failed", "key", cacheKey, "error", err.Error())
			}
		}
	}

	c.JSON(http.StatusOK, out)
}

func (s *Service) riskTrend(c *gin.Context) {
	country := c.Param("country")
	days := 30
	if raw := c.Query("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	out, err := s.store.RiskTrend(c.Request.Context(), country, since)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
