package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// triggerCollectorRun kicks off one collection pass outside the
// scheduler's own cadence, recorded in the job ledger with trigger
// "manual". It does not take the scheduler's DB lease: an operator
// explicitly asking for a run is allowed to run concurrently with a
// scheduled one, unlike the schedulers racing each other.
func (s *Service) triggerCollectorRun(c *gin.Context) {
	ctx, cancel := backgroundContext()
	run, err := s.ledger.Start(c.Request.Context(), model.JobTypeCollector, model.TriggerManual, nil, "", 0)
	if err != nil {
		cancel()
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	go func() {
		defer cancel()
		now := time.Now().UTC()
		summary, runErr := s.collector.Run(ctx, now, func(processed, total int, event string) {
			if err := s.ledger.Progress(ctx, run.ID, processed, total); err != nil {
				s.log.Error("failed to record manual collector run progress", "run_id", run.ID, "error", err.Error())
			}
			s.log.Debug("manual collector run progress", "run_id", run.ID, "event", event, "processed", processed, "total", total)
		})
		details := fmt.Sprintf("total=%d scanned=%d skipped=%d errors=%d countries=%d",
			summary.TotalActors, summary.Scanned, summary.Skipped, summary.Errors, summary.CountriesEvaluated)
		if runErr != nil {
			if err := s.ledger.Fail(ctx, run.ID, details, runErr); err != nil {
				s.log.Error("failed to record manual collector run failure", "run_id", run.ID, "error", err.Error())
			}
			return
		}
		if err := s.ledger.Succeed(ctx, run.ID, details); err != nil {
			s.log.Error("failed to record manual collector run success", "run_id", run.ID, "error", err.Error())
		}
	}()

	c.JSON(http.StatusAccepted, run)
}

// triggerMitreSync kicks off a MITRE reference catalog sync outside the
// weekly schedule.
func (s *Service) triggerMitreSync(c *gin.Context) {
	ctx, cancel := backgroundContext()
	run, err := s.ledger.Start(c.Request.Context(), model.JobTypeMitreSync, model.TriggerManual, nil, "", 0)
	if err != nil {
		cancel()
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	go func() {
		defer cancel()
		result, syncErr := s.mitre.Sync(ctx)
		details := fmt.Sprintf("legacy_created=%d legacy_total=%d stix_created=%d stix_updated=%d",
			result.LegacyCreated, result.LegacyTotal, result.Created, result.Updated)
		if syncErr != nil {
			if err := s.ledger.Fail(ctx, run.ID, result.FailedPhase+": "+details, syncErr); err != nil {
				s.log.Error("failed to record manual mitre sync failure", "run_id", run.ID, "error", err.Error())
			}
			return
		}
		if err := s.ledger.Succeed(ctx, run.ID, details); err != nil {
			s.log.Error("failed to record manual mitre sync success", "run_id", run.ID, "error", err.Error())
		}
	}()

	c.JSON(http.StatusAccepted, run)
}

func (s *Service) getCollectorSchedule(c *gin.Context) {
	cfg, err := s.store.GetScheduleConfig(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type updateScheduleRequest struct {
	TimeHHMM string `json:"time_hhmm" binding:"required"`
	Days     string `json:"days" binding:"required"`
	Enabled  bool   `json:"enabled"`
}

func (s *Service) updateCollectorSchedule(c *gin.Context) {
	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	cfg, err := s.store.GetScheduleConfig(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.UpdateScheduleConfig(c.Request.Context(), cfg.ID, req.TimeHHMM, req.Days, req.Enabled); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Service) getMitreSchedule(c *gin.Context) {
	cfg, err := s.store.GetMitreSyncConfig(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type updateMitreScheduleRequest struct {
	DayOfWeek string `json:"day_of_week" binding:"required"`
	TimeHHMM  string `json:"time_hhmm" binding:"required"`
	Enabled   bool   `json:"enabled"`
}

func (s *Service) updateMitreSchedule(c *gin.Context) {
	var req updateMitreScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	cfg, err := s.store.GetMitreSyncConfig(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.UpdateMitreSyncConfig(c.Request.Context(), cfg.ID, req.DayOfWeek, req.TimeHHMM, req.Enabled); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Service) listJobs(c *gin.Context) {
	jobType := model.JobType(c.Query("type"))
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	out, err := s.ledger.List(c.Request.Context(), jobType, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Service) getJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	run, err := s.ledger.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, storeStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, run)
}
