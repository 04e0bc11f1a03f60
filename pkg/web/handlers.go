package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-picar/pkg/params"
)

// ParamView is a slider as the panel renders it.
type ParamView struct {
	params.Spec
	Value int `json:"value"`
}

// SetParamRequest is the request body for PUT /api/params/:name
type SetParamRequest struct {
	Value *int `json:"value"`
}

// handleIndex serves the embedded panel page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

// handleListParams returns every slider with its current value
func (s *Server) handleListParams(c *fiber.Ctx) error {
	values := s.store.Snapshot().Values()
	specs := params.Specs()
	out := make([]ParamView, len(specs))
	for i, sp := range specs {
		out[i] = ParamView{Spec: sp, Value: values[sp.Name]}
	}
	return c.JSON(out)
}

// handleSetParam moves one slider. Values are clamped to the slider range.
func (s *Server) handleSetParam(c *fiber.Ctx) error {
	name := c.Params("name")

	sp, err := params.Lookup(name)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	var req SetParamRequest
	if err := c.BodyParser(&req); err != nil || req.Value == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": `body must be {"value": <int>}`,
		})
	}

	if err := s.store.Set(name, *req.Value); err != nil {
		if errors.Is(err, params.ErrUnknownParam) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	v, err := s.store.Get(name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Debug("parameter set", "name", name, "requested", *req.Value, "value", v)
	return c.JSON(ParamView{Spec: sp, Value: v})
}

// handleStatus returns the latest loop status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleQuit is the panel's quit button
func (s *Server) handleQuit(c *fiber.Ctx) error {
	s.RequestQuit()
	s.logger.Info("quit requested from panel")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"quit": true})
}
