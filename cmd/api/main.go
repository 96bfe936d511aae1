package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"talentmarket_backend/internal/controller"
	"talentmarket_backend/internal/middleware"
	"talentmarket_backend/internal/model"
	"talentmarket_backend/internal/service"
	"talentmarket_backend/pkg/config"
	"talentmarket_backend/pkg/cron"
	"talentmarket_backend/pkg/database"
	"talentmarket_backend/pkg/email"
	"talentmarket_backend/pkg/payment"
	"talentmarket_backend/pkg/seed"
	"talentmarket_backend/pkg/utils/jwt"
)

func setupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.Refresh)

	// Protected Routes
	protected := api.Group("/", middleware.AuthMiddleware())
	protected.Get("/me", controller.GetMe)

	// Membership routes
	memberships := api.Group("/memberships", middleware.AuthMiddleware())
	memberships.Get("/", controller.ListMemberships)
	memberships.Post("/subscribe", controller.Subscribe)
	memberships.Get("/my", controller.GetMyMembership)
	memberships.Get("/history", controller.GetMembershipHistory)

	// Project pricing quote
	api.Get("/projects/price-quote", middleware.AuthMiddleware(), controller.GetProjectPriceQuote)

	// Freelancer package routes
	packages := api.Group("/packages", middleware.AuthMiddleware(),
		middleware.RequireProfileType(model.ProfileFreelancer))
	packages.Get("/my", controller.ListMyPackages)
	packages.Post("/", controller.CreatePackage)

	// Stripe webhook
	api.Post("/webhook", controller.HandleStripeWebhook)
}

func main() {
	cfg := config.Load()

	jwt.Init(cfg.JWT.Secret)

	if cfg.Email.ResendAPIKey != "" {
		if err := email.InitEmailService(cfg.Email.ResendAPIKey); err != nil {
			log.Fatal("Could not initialize email service:", err)
		}
	} else {
		log.Println("RESEND_API_KEY not set, emails disabled")
	}

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}

	database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(
		&model.User{},
		&model.Membership{},
		&model.MembershipHistory{},
		&model.MembershipTransition{},
		&model.Package{},
		&model.PaymentFee{},
		&model.TokenBlacklist{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	seed.SeedMemberships(database.DB)
	seed.SeedPaymentFees(database.DB)

	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey)
	membershipService := service.NewMembershipService(database.DB, gateway)
	tokenService := service.NewTokenService(database.DB)

	controller.InitAuthController(tokenService, membershipService)
	controller.InitMembershipController(membershipService, cfg.Stripe.WebhookSecret)

	cron.InitTransitionReconcileCron(cfg.Email.OpsAddress)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
