package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/http/response"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
	"github.com/prosodia/prosodia-backend/internal/services"
)

const (
	defaultListLimit = 50
)

type ExerciseHandler struct {
	log         *logger.Logger
	exercises   services.ExerciseService
	consistency services.ConsistencyService
	reconciler  services.ReconcilerService
}

func NewExerciseHandler(
	log *logger.Logger,
	exercises services.ExerciseService,
	consistency services.ConsistencyService,
	reconciler services.ReconcilerService,
) *ExerciseHandler {
	return &ExerciseHandler{
		log:         log.With("handler", "ExerciseHandler"),
		exercises:   exercises,
		consistency: consistency,
		reconciler:  reconciler,
	}
}

func (h *ExerciseHandler) List(c *gin.Context) {
	f, p, err := parseListQuery(c)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	page, err := h.exercises.List(c.Request.Context(), nil, f, p)
	if err != nil {
		h.respondErr(c, "List", err)
		return
	}
	response.RespondOK(c, page)
}

func (h *ExerciseHandler) Get(c *gin.Context) {
	row, err := h.exercises.GetByKey(c.Request.Context(), nil, c.Param("exercise_id"))
	if err != nil {
		h.respondErr(c, "Get", err)
		return
	}
	response.RespondOK(c, row)
}

func (h *ExerciseHandler) GetDetails(c *gin.Context) {
	details, err := h.exercises.GetDetails(c.Request.Context(), nil, c.Param("exercise_id"))
	if err != nil {
		h.respondErr(c, "GetDetails", err)
		return
	}
	response.RespondOK(c, details)
}

// GetFeatures answers 202 on a cache miss after queueing a recompute, so
// clients poll instead of erroring.
func (h *ExerciseHandler) GetFeatures(c *gin.Context) {
	key := c.Param("exercise_id")
	features, err := h.exercises.GetReferenceFeatures(c.Request.Context(), nil, key)
	if apierr.IsCacheMiss(err) {
		h.triggerRecompute(c, key)
		return
	}
	if err != nil {
		h.respondErr(c, "GetFeatures", err)
		return
	}
	response.RespondOK(c, features)
}

func (h *ExerciseHandler) GetComparisonFeatures(c *gin.Context) {
	key := c.Param("exercise_id")
	out, err := h.exercises.GetComparisonFeatures(c.Request.Context(), nil, key)
	if apierr.IsCacheMiss(err) {
		h.triggerRecompute(c, key)
		return
	}
	if err != nil {
		h.respondErr(c, "GetComparisonFeatures", err)
		return
	}
	response.RespondOK(c, out)
}

func (h *ExerciseHandler) ListGrouped(c *gin.Context) {
	category := c.Query("category")
	grouped, err := h.exercises.ListGrouped(c.Request.Context(), nil, category)
	if err != nil {
		h.respondErr(c, "ListGrouped", err)
		return
	}
	response.RespondOK(c, gin.H{"category": category, "subcategories": grouped})
}

func (h *ExerciseHandler) Statistics(c *gin.Context) {
	stats, err := h.exercises.Statistics(c.Request.Context(), nil)
	if err != nil {
		h.respondErr(c, "Statistics", err)
		return
	}
	response.RespondOK(c, stats)
}

// Save upserts an exercise row. Admin only.
func (h *ExerciseHandler) Save(c *gin.Context) {
	var row types.Exercise
	if err := c.ShouldBindJSON(&row); err != nil {
		response.RespondAPIError(c, apierr.InvalidArgument(fmt.Errorf("malformed body: %w", err)))
		return
	}
	res, err := h.consistency.SaveExercise(c.Request.Context(), nil, &row)
	if err != nil {
		h.respondErr(c, "Save", err)
		return
	}
	if res.StaleCacheSuspected {
		h.log.Warn("exercise saved with suspect cache", "exercise_id", res.Exercise.ExerciseID)
	}
	response.RespondOK(c, res)
}

func (h *ExerciseHandler) SoftDelete(c *gin.Context) {
	key := c.Param("exercise_id")
	if err := h.consistency.SoftDeleteExercise(c.Request.Context(), nil, key); err != nil {
		h.respondErr(c, "SoftDelete", err)
		return
	}
	response.RespondOK(c, gin.H{"exercise_id": key, "is_active": false})
}

func (h *ExerciseHandler) SaveFeatures(c *gin.Context) {
	var doc types.ReferenceFeatures
	if err := c.ShouldBindJSON(&doc); err != nil {
		response.RespondAPIError(c, apierr.InvalidArgument(fmt.Errorf("malformed body: %w", err)))
		return
	}
	doc.ExerciseID = c.Param("exercise_id")
	saved, err := h.consistency.SaveFeatures(c.Request.Context(), &doc)
	if err != nil {
		h.respondErr(c, "SaveFeatures", err)
		return
	}
	response.RespondOK(c, saved)
}

func (h *ExerciseHandler) Invalidate(c *gin.Context) {
	key := c.Param("exercise_id")
	if err := h.consistency.InvalidateFeatures(c.Request.Context(), key, ""); err != nil {
		h.respondErr(c, "Invalidate", err)
		return
	}
	response.RespondOK(c, gin.H{"exercise_id": key, "invalidated": true})
}

func (h *ExerciseHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.Sweep(c.Request.Context())
	if err != nil {
		h.respondErr(c, "Reconcile", err)
		return
	}
	response.RespondOK(c, report)
}

func (h *ExerciseHandler) triggerRecompute(c *gin.Context, key string) {
	if err := h.consistency.RequestRecompute(c.Request.Context(), key); err != nil {
		h.log.Warn("recompute request failed", "exercise_id", key, "error", err)
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":      "recompute_triggered",
		"exercise_id": key,
	})
}

func (h *ExerciseHandler) respondErr(c *gin.Context, op string, err error) {
	if apierr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.log.Error(op+" failed", "error", err)
	}
	response.RespondAPIError(c, err)
}

func parseListQuery(c *gin.Context) (types.ExerciseFilter, types.Page, error) {
	f := types.ExerciseFilter{
		Category:    c.Query("category"),
		Subcategory: c.Query("subcategory"),
	}
	p := types.Page{Limit: defaultListLimit}

	var err error
	if f.MinDifficulty, err = intQuery(c, "min_difficulty", 0); err != nil {
		return f, p, err
	}
	if f.MaxDifficulty, err = intQuery(c, "max_difficulty", 0); err != nil {
		return f, p, err
	}
	if raw := c.Query("include_inactive"); raw != "" {
		if f.IncludeInactive, err = strconv.ParseBool(raw); err != nil {
			return f, p, apierr.InvalidArgument(fmt.Errorf("include_inactive: %w", err))
		}
	}
	if p.Limit, err = intQuery(c, "limit", defaultListLimit); err != nil {
		return f, p, err
	}
	if p.Offset, err = intQuery(c, "offset", 0); err != nil {
		return f, p, err
	}
	return f, p, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.InvalidArgument(fmt.Errorf("%s: %w", name, err))
	}
	return v, nil
}
