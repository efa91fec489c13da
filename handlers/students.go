package handlers

import (
	"strconv"

	"arena-battle-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Read-only roster endpoints for arena setup. Profile mutation lives in the
// external profile service; the sync worker mirrors it here.
func SetupStudentRoutes(app *fiber.App, db *gorm.DB) {
	app.Get("/students", func(c *fiber.Ctx) error {
		var students []models.Student
		if err := db.Order("elo_rating DESC").Find(&students).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load students",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"data": students})
	})

	app.Get("/students/:id", func(c *fiber.Ctx) error {
		var student models.Student
		if err := db.First(&student, "id = ?", c.Params("id")).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "student not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
		}
		return c.JSON(fiber.Map{"data": student})
	})

	app.Get("/students/:id/rating-history", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "100"))
		if limit < 1 || limit > 1000 {
			limit = 100
		}

		var snapshots []models.RatingSnapshot
		if err := db.Where("student_id = ?", c.Params("id")).
			Order("recorded_at DESC").
			Limit(limit).
			Find(&snapshots).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load rating history",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"data": snapshots})
	})
}
