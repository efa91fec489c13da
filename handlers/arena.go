package handlers

import (
	"errors"

	"arena-battle-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps the service failure taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrInsufficientCandidates):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
}

func SetupArenaRoutes(app *fiber.App, arenaService *services.ArenaService, statsService *services.ArenaStatsService) {
	app.Post("/arenas", func(c *fiber.Ctx) error {
		type Req struct {
			StudentIDs []string `json:"student_ids"`
			NumRounds  int      `json:"num_rounds"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		arena, err := arenaService.CreateArenaSession(req.StudentIDs, req.NumRounds)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": arena})
	})

	app.Get("/arenas/:id", func(c *fiber.Ctx) error {
		arena, err := arenaService.GetArenaSession(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{"data": arena})
	})

	app.Delete("/arenas/:id", func(c *fiber.Ctx) error {
		if err := arenaService.DeleteArenaSession(c.Params("id")); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{"message": "arena session deleted"})
	})

	app.Get("/arenas/:id/next-match", func(c *fiber.Ctx) error {
		match, err := arenaService.GetOrCreateNextMatch(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{"data": match})
	})

	app.Get("/arenas/:id/results", func(c *fiber.Ctx) error {
		stats, err := statsService.ComputeArenaStats(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{"data": stats})
	})

	app.Patch("/matches/:match_id/winner", func(c *fiber.Ctx) error {
		type Req struct {
			WinnerIDs []string `json:"winner_ids"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		match, arena, err := arenaService.DeclareWinner(c.Params("match_id"), req.WinnerIDs)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{"data": fiber.Map{
			"match":         match,
			"arena_session": arena,
		}})
	})
}
