package handlers

import (
	"arena-battle-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, arenaService *services.ArenaService) {
	app.Get("/matches/:id", func(c *fiber.Ctx) error {
		match, err := arenaService.GetMatch(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{"data": match})
	})

	// Standalone match with an explicit roster (no arena bookkeeping).
	app.Post("/matches/multiplayer", func(c *fiber.Ctx) error {
		type Req struct {
			PlayerIDs []string `json:"player_ids"`
			NumRounds int      `json:"num_rounds"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		match, err := arenaService.CreateStandaloneMatch(req.PlayerIDs, req.NumRounds)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": match})
	})

	// Standalone match against automatically chosen similarly-rated players.
	app.Post("/matches/auto-match", func(c *fiber.Ctx) error {
		type Req struct {
			StudentID  string `json:"student_id"`
			NumPlayers int    `json:"num_players"`
			NumRounds  int    `json:"num_rounds"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		match, err := arenaService.AutoMatch(req.StudentID, req.NumPlayers, req.NumRounds)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": match})
	})
}
