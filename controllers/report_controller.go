package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"statsdb/reports"
)

type ReportController struct {
	registry *reports.Registry

	log *zap.Logger

	now func() time.Time
}

func NewReportController(registry *reports.Registry, log *zap.Logger) *ReportController {

	if log == nil {
		log = zap.NewNop()
	}

	return &ReportController{

		registry: registry,

		log: log,

		now: time.Now,
	}
}

// List returns the available reports
func (c *ReportController) List(ctx *gin.Context) {

	ctx.JSON(http.StatusOK, gin.H{

		"reports": c.registry.List(),
	})
}

// Show renders one report for the start, end, granularity and key query parameters
func (c *ReportController) Show(ctx *gin.Context) {

	name := ctx.Param("name")

	if _, ok := c.registry.Get(name); !ok {

		ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown report: " + name})

		return
	}

	rng, err := reports.ParseRange(ctx.Query("start"), ctx.Query("end"), ctx.Query("granularity"), ctx.Query("key"), c.now())

	if err != nil {

		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	chart, err := c.registry.Build(ctx.Request.Context(), name, rng)

	if err != nil {

		var unknown *reports.ErrUnknownReport

		if errors.As(err, &unknown) {

			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

			return
		}

		c.log.Error("failed to build report",

			zap.String("report", name),

			zap.String(RequestIDKey, ctx.GetString(RequestIDKey)),

			zap.Error(err),
		)

		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})

		return
	}

	ctx.JSON(http.StatusOK, chart)
}
