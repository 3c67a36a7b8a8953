// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api contains the HTTP route definitions for the server. This file
// maps the session endpoints onto the engine façade and translates the
// engine's error taxonomy into HTTP status codes.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewise/platewise/internal/core/model"
	"github.com/platewise/platewise/internal/core/services"
)

type submitRequest struct {
	UserID     int64  `json:"user_id" binding:"required"`
	MediaToken string `json:"media_token" binding:"required"`
	MediaKind  string `json:"media_kind" binding:"required,oneof=photo video"`
}

type correctionRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

type userRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// SessionRouter registers the session lifecycle endpoints.
func SessionRouter(r *gin.RouterGroup, engine *services.Engine) {
	sessions := r.Group("/sessions")
	{
		sessions.POST("", func(c *gin.Context) {
			var req submitRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			view, err := engine.SubmitMedia(c.Request.Context(), req.UserID, model.MediaRef{
				Token: req.MediaToken,
				Kind:  model.MediaKind(req.MediaKind),
			})
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, view)
		})

		sessions.GET("", func(c *gin.Context) {
			var req struct {
				UserID int64 `form:"user_id" binding:"required"`
			}
			if err := c.ShouldBindQuery(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			view, err := engine.Status(c.Request.Context(), req.UserID)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, view)
		})

		sessions.POST("/corrections", func(c *gin.Context) {
			var req correctionRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			view, err := engine.SubmitCorrection(c.Request.Context(), req.UserID, req.Text)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, view)
		})

		sessions.POST("/confirm", func(c *gin.Context) {
			var req userRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			view, err := engine.Confirm(c.Request.Context(), req.UserID)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, view)
		})

		sessions.POST("/cancel", func(c *gin.Context) {
			var req userRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := engine.Cancel(c.Request.Context(), req.UserID); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}

// respondError maps the engine's sentinel errors to HTTP status codes. The
// error text goes to the client verbatim; the parser's errors already carry
// usable hints.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNoActiveSession):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrUnrecognizedCorrection),
		errors.Is(err, model.ErrExtraction),
		errors.Is(err, model.ErrParse),
		errors.Is(err, model.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrCorrectionLimit),
		errors.Is(err, model.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, model.ErrTransport):
		status = http.StatusBadGateway
	case errors.Is(err, model.ErrResource):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
