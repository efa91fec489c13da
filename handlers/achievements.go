package handlers

import (
	"fmt"
	"path/filepath"

	"arena-battle-system/middleware"
	"arena-battle-system/models"
	"arena-battle-system/services"
	"arena-battle-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupAchievementRoutes(app *fiber.App, achievementService *services.AchievementService) {
	app.Get("/achievements", func(c *fiber.Ctx) error {
		var catalog []models.Achievement
		if err := achievementService.DB.Order("code ASC").Find(&catalog).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load achievements",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"data": catalog})
	})

	app.Get("/students/:id/achievements", func(c *fiber.Ctx) error {
		rows, err := achievementService.ListStudentAchievements(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{"data": rows})
	})

	app.Post("/students/:id/achievements/evaluate", func(c *fiber.Ctx) error {
		codes, err := achievementService.EvaluateStudent(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		if codes == nil {
			codes = []string{}
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"newly_earned": codes}})
	})

	// 🔒 Admin: catalog presentation assets
	admin := app.Group("/admin", middleware.UserContextMiddleware())

	admin.Post("/achievements/:id/icon", func(c *fiber.Ctx) error {
		var achievement models.Achievement
		if err := achievementService.DB.First(&achievement, "id = ?", c.Params("id")).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "achievement not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
		}

		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file required", "cause": err.Error()})
		}

		key := fmt.Sprintf("achievements/%s%s", achievement.Code, filepath.Ext(fileHeader.Filename))
		url, err := utils.UploadFileToR2(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to upload icon",
				"cause": err.Error(),
			})
		}

		if err := achievementService.DB.Model(&achievement).Update("icon_url", url).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save icon url"})
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"icon_url": url}})
	})
}
