package controller

import (
	"github.com/gofiber/fiber/v2"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/pkg/database"
	"talentmarket_backend/pkg/utils/jwt"
)

type PackageInput struct {
	Title string `json:"title" validate:"required"`
}

// ListMyPackages returns the caller's service packages, inactive ones included
// so a freelancer can see what a downgrade switched off.
func ListMyPackages(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var packages []model.Package
	if err := database.GetDB().Where("user_id = ?", claims.UserID).
		Order("created_at DESC").Find(&packages).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch packages",
		})
	}

	return c.JSON(packages)
}

func CreatePackage(c *fiber.Ctx) error {
	input := new(PackageInput)
	if err := c.BodyParser(input); err != nil || input.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	claims := c.Locals("user").(*jwt.Claims)

	pkg := model.Package{
		UserID:   claims.UserID,
		Title:    input.Title,
		IsActive: true,
	}
	if err := database.GetDB().Create(&pkg).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create package",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(pkg)
}
