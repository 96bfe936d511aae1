package controller

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74/webhook"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/internal/service"
	"talentmarket_backend/pkg/database"
	"talentmarket_backend/pkg/email"
	"talentmarket_backend/pkg/payment"
	"talentmarket_backend/pkg/utils/jwt"
)

type SubscribeInput struct {
	MembershipID string `json:"membership_id" validate:"required"`
}

var (
	membershipService   *service.MembershipService
	stripeWebhookSecret string
)

func InitMembershipController(svc *service.MembershipService, webhookSecret string) {
	membershipService = svc
	stripeWebhookSecret = webhookSecret
}

// ListMemberships returns the active tiers offered for the caller's profile type.
func ListMemberships(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var memberships []model.Membership
	if err := database.GetDB().
		Where("profile_type = ? AND is_active = ?", claims.ProfileType, true).
		Order("is_initial DESC, created_at ASC").
		Find(&memberships).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch memberships",
		})
	}

	return c.JSON(memberships)
}

func Subscribe(c *fiber.Ctx) error {
	input := new(SubscribeInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	membershipID, err := uuid.Parse(input.MembershipID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid membership id",
		})
	}

	claims := c.Locals("user").(*jwt.Claims)

	var user model.User
	if err := database.GetDB().Preload("CurrentMembership").First(&user, claims.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	var target model.Membership
	if err := database.GetDB().First(&target, "id = ?", membershipID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Membership not found",
		})
	}

	if !target.IsActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Membership is no longer offered",
		})
	}
	if target.ProfileType != user.ProfileType {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Membership is not available for your profile type",
		})
	}

	// Advisory pre-check so the client gets a clean message; Subscribe
	// enforces the throttle again under its lock.
	downgrade := membershipService.IsDowngrade(&user, &target)
	if downgrade && !membershipService.CanDowngrade(&user) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Membership can be downgraded only once per month",
		})
	}

	history, err := membershipService.Subscribe(&user, &target)
	if err != nil {
		return subscribeErrorResponse(c, err)
	}

	if email.GlobalEmailService != nil {
		go func(u model.User, m model.Membership, downgraded bool) {
			var err error
			if downgraded {
				err = email.GlobalEmailService.SendMembershipDowngradedEmail(u.Email, u.GetFullName(), m.Name)
			} else {
				err = email.GlobalEmailService.SendMembershipChangedEmail(u.Email, u.GetFullName(), m.Name, m.MonthlyPrice().String())
			}
			if err != nil {
				log.Printf("Could not send membership email: %v", err)
			}
		}(user, target, downgrade)
	}

	return c.JSON(fiber.Map{
		"message":    "Membership updated successfully",
		"membership": target,
		"history":    history,
	})
}

// GetMyMembership returns the caller's current tier and downgrade allowance.
func GetMyMembership(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var user model.User
	if err := database.GetDB().Preload("CurrentMembership").First(&user, claims.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if user.CurrentMembership == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No membership assigned",
		})
	}

	return c.JSON(fiber.Map{
		"membership":    user.CurrentMembership,
		"can_downgrade": membershipService.CanDowngrade(&user),
	})
}

// GetMembershipHistory returns the caller's transition ledger in creation order.
func GetMembershipHistory(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	entries, err := membershipService.History(claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch membership history",
		})
	}

	return c.JSON(entries)
}

// GetProjectPriceQuote returns the project posting price breakdown for the
// caller's current membership under the live fee schedule.
func GetProjectPriceQuote(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var user model.User
	if err := database.GetDB().Preload("CurrentMembership").First(&user, claims.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if user.CurrentMembership == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No membership assigned",
		})
	}

	fees, err := model.CurrentFees(database.GetDB())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "No fee schedule configured",
		})
	}

	hasConcierge := c.QueryBool("has_concierge_service")
	addStripeFee := c.QueryBool("add_stripe_fee")

	detail := service.ProjectPriceDetail(user.CurrentMembership, *fees, hasConcierge, addStripeFee)

	return c.JSON(fiber.Map{
		"detail": detail,
		"total":  detail.Total(),
	})
}

func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signatureHeader := c.Get("Stripe-Signature")

	event, err := webhook.ConstructEvent(payload, signatureHeader, stripeWebhookSecret)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	log.Printf("Processing Stripe webhook event: %s", event.Type)

	switch event.Type {
	case "customer.subscription.deleted":
		var subData struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &subData); err != nil {
			return c.Status(fiber.StatusBadRequest).Send(nil)
		}

		// Remote cancellation does not move the user's tier; downgrades are
		// user driven. Record it and notify so support can follow up.
		var entry model.MembershipHistory
		if err := database.GetDB().Preload("User").Preload("Membership").
			Where("stripe_subscription_id = ?", subData.ID).
			Order("created_at DESC").First(&entry).Error; err != nil {
			log.Printf("Webhook: no ledger entry for remote subscription %s", subData.ID)
			return c.SendStatus(fiber.StatusOK)
		}

		log.Printf("Remote subscription %s for user %d was cancelled on Stripe", subData.ID, entry.UserID)
		if email.GlobalEmailService != nil {
			if err := email.GlobalEmailService.SendMembershipDowngradedEmail(
				entry.User.Email, entry.User.GetFullName(), entry.Membership.Name); err != nil {
				log.Printf("Could not send cancellation notice: %v", err)
			}
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

func subscribeErrorResponse(c *fiber.Ctx, err error) error {
	var validationErr *service.ValidationError
	var configErr *service.ConfigurationError
	var gatewayErr *payment.GatewayError

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationErr.Reason,
		})
	case errors.As(err, &configErr):
		log.Printf("Membership configuration error: %v", configErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Membership is not configured for billing",
		})
	case errors.As(err, &gatewayErr):
		log.Printf("Payment gateway error: %v", gatewayErr)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Payment provider error, please try again",
		})
	default:
		log.Printf("Subscribe failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update membership",
		})
	}
}
