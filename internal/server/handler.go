// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medbill/claimscrub/internal/corpus"
	"github.com/medbill/claimscrub/internal/suggest"
)

type Handler struct {
	svc    *suggest.Service
	logger zerolog.Logger
}

func NewHandler(svc *suggest.Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	rag := e.Group("/rag")
	rag.POST("/suggest", h.Suggest)
	rag.GET("/context", h.Context)
}

// Suggest handles POST /rag/suggest.
func (h *Handler) Suggest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Unable to read request body").SetInternal(err)
	}

	req, err := suggest.DecodeRequest(body)
	if err != nil {
		return writeError(c, err)
	}

	suggestion, err := h.svc.Suggest(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, suggestion)
}

// ContextResponse is the body of GET /rag/context.
type ContextResponse struct {
	PayerID   string            `json:"payerId"`
	Specialty string            `json:"specialty"`
	Rules     []corpus.Rule     `json:"rules"`
	Exemplars []corpus.Exemplar `json:"exemplars"`
}

// Context handles GET /rag/context, returning what Suggest would retrieve for
// the same payer and specialty.
func (h *Handler) Context(c echo.Context) error {
	payerID := c.QueryParam("payerId")
	specialty := c.QueryParam("specialty")
	if specialty == "" {
		specialty = corpus.DefaultSpecialty
	}

	retrieved := h.svc.Retrieve(payerID, specialty)
	return c.JSON(http.StatusOK, ContextResponse{
		PayerID:   payerID,
		Specialty: specialty,
		Rules:     retrieved.Rules,
		Exemplars: retrieved.Exemplars,
	})
}

func (h *Handler) Health(c echo.Context) error {
	rules, exemplars := h.svc.CorpusLen()
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"provider":  h.svc.Provider(),
		"model":     h.svc.Model(),
		"rules":     rules,
		"exemplars": exemplars,
	})
}

func writeError(c echo.Context, err error) error {
	se := suggest.AsError(err)
	return c.JSON(se.HTTPStatus(), se.Body())
}
