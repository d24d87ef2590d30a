package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/publishflow/publishflow/internal/cms"
	"github.com/publishflow/publishflow/internal/document/service"
	"github.com/publishflow/publishflow/internal/locks"
	"github.com/publishflow/publishflow/internal/workflow"
	"github.com/publishflow/publishflow/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
)

// RegisterDocumentRoutes mounts the list and document API on r.
func RegisterDocumentRoutes(r gin.IRouter, svc service.Service) {
	r.GET("/api/lists", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"lists": svc.Lists()})
	})

	docs := r.Group("/api/lists/:list/documents")

	docs.GET("", func(c *gin.Context) {
		out, err := svc.List(c.Request.Context(), c.Param("list"), c.Query("status"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": out})
	})

	docs.POST("", func(c *gin.Context) {
		var input map[string]interface{}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d, err := svc.Create(c.Request.Context(), c.Param("list"), input)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	})

	docs.GET("/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), c.Param("list"), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	docs.PATCH("/:id", func(c *gin.Context) {
		var input map[string]interface{}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sameStatus := c.Query("sameStatus") == "true"
		d, err := svc.Update(c.Request.Context(), c.Param("list"), c.Param("id"), input, sameStatus)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	docs.DELETE("/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("list"), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	docs.POST("/:id/publish", actionHandler(svc.Publish))
	docs.POST("/:id/unpublish", actionHandler(svc.Unpublish))
	docs.POST("/:id/rollback", actionHandler(svc.Rollback))

	docs.GET("/:id/live", func(c *gin.Context) {
		d, err := svc.Live(c.Request.Context(), c.Param("list"), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	docs.GET("/:id/diff", func(c *gin.Context) {
		differs, err := svc.Diff(c.Request.Context(), c.Param("list"), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"differs": differs})
	})

	docs.GET("/:id/snapshots", func(c *gin.Context) {
		snaps, err := svc.Snapshots(c.Request.Context(), c.Param("list"), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
	})

	docs.GET("/:id/snapshots/:name", func(c *gin.Context) {
		rc, err := svc.OpenSnapshot(c.Request.Context(), c.Param("list"), c.Param("id"), c.Param("name"))
		if err != nil {
			writeError(c, err)
			return
		}
		defer rc.Close()
		c.DataFromReader(http.StatusOK, -1, "application/json", rc, nil)
	})
}

func actionHandler(fn func(ctx context.Context, list, id string) (bson.M, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := fn(c.Request.Context(), c.Param("list"), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, workflow.ErrNoLiveVersion) && !errors.Is(err, workflow.ErrSaveFailed):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, cms.ErrUnknownField), errors.Is(err, cms.ErrInvalidValue), errors.Is(err, workflow.ErrNotManaged):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, locks.ErrLocked), errors.Is(err, workflow.ErrNoLiveVersion):
		c.JSON(http.StatusConflict, gin.H{"error": workflow.ErrSaveFailed.Error()})
	case errors.Is(err, workflow.ErrSaveFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": workflow.ErrSaveFailed.Error()})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
