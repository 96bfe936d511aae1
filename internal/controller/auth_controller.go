package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/internal/service"
	"talentmarket_backend/pkg/database"
	"talentmarket_backend/pkg/email"
	"talentmarket_backend/pkg/utils/jwt"
)

type RegisterInput struct {
	Email       string            `json:"email" validate:"required,email"`
	Password    string            `json:"password" validate:"required,min=6"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	ProfileType model.ProfileType `json:"profile_type" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

var (
	tokenService      *service.TokenService
	authMembershipSvc *service.MembershipService
)

func InitAuthController(tokens *service.TokenService, memberships *service.MembershipService) {
	tokenService = tokens
	authMembershipSvc = memberships
}

func Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if !input.ProfileType.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown profile type",
		})
	}

	var existingUser model.User
	if err := database.GetDB().Where("email = ?", input.Email).First(&existingUser).Error; err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email already exists",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not hash password",
		})
	}

	user := model.User{
		Email:       input.Email,
		Password:    string(hashedPassword),
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		ProfileType: input.ProfileType,
	}

	if err := database.GetDB().Create(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create user",
		})
	}

	// Every new user starts on the free tier for their profile type.
	initial, err := model.InitialMembershipFor(database.GetDB(), user.ProfileType)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "No initial membership configured for this profile type",
		})
	}
	if _, err := authMembershipSvc.Subscribe(&user, initial); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not assign initial membership",
		})
	}

	accessToken, refreshToken, err := issueTokenPair(&user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate tokens",
		})
	}

	if email.GlobalEmailService != nil {
		if err := email.GlobalEmailService.SendWelcomeEmail(user.Email, user.GetFullName(), initial.Name); err != nil {
			log.Printf("Could not send welcome email: %v", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Registration successful",
		"token":         accessToken,
		"refresh_token": refreshToken,
		"user":          user.GetPublicProfile(),
	})
}

func Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var user model.User
	if err := database.GetDB().Where("email = ?", input.Email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	accessToken, refreshToken, err := issueTokenPair(&user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate tokens",
		})
	}

	return c.JSON(fiber.Map{
		"token":         accessToken,
		"refresh_token": refreshToken,
		"user":          user.GetPublicProfile(),
	})
}

// Refresh rotates the refresh token. A stale token loses the race and gets a
// conflict back instead of a silent retry.
func Refresh(c *fiber.Ctx) error {
	input := new(RefreshInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	claims, err := jwt.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired refresh token",
		})
	}

	blacklisted, err := tokenService.IsBlacklisted(input.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not verify token",
		})
	}
	if blacklisted {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Refresh token has been revoked",
		})
	}

	var user model.User
	if err := database.GetDB().First(&user, claims.UserID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if user.LastRefreshToken != input.RefreshToken {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Refresh token is no longer current",
		})
	}

	accessToken, err := jwt.GenerateToken(user.ID, user.Email, user.ProfileType)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate token",
		})
	}

	newRefreshToken, err := jwt.GenerateRefreshToken(user.ID, user.Email, user.ProfileType)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate refresh token",
		})
	}

	ok, err := tokenService.IssueRefreshToken(&user, newRefreshToken)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not rotate refresh token",
		})
	}
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Refresh token was already rotated by another request",
		})
	}

	return c.JSON(fiber.Map{
		"token":         accessToken,
		"refresh_token": newRefreshToken,
	})
}

func GetMe(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var user model.User
	if err := database.GetDB().Preload("CurrentMembership").First(&user, claims.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch user",
		})
	}

	resp := fiber.Map{
		"user": user.GetPublicProfile(),
	}
	if user.CurrentMembership != nil {
		resp["current_membership"] = user.CurrentMembership
	}
	return c.JSON(resp)
}

func issueTokenPair(user *model.User) (string, string, error) {
	accessToken, err := jwt.GenerateToken(user.ID, user.Email, user.ProfileType)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := jwt.GenerateRefreshToken(user.ID, user.Email, user.ProfileType)
	if err != nil {
		return "", "", err
	}
	if ok, err := tokenService.IssueRefreshToken(user, refreshToken); err != nil {
		return "", "", err
	} else if !ok {
		return "", "", service.ErrTokenConflict
	}
	return accessToken, refreshToken, nil
}
