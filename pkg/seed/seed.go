package seed

import (
	"log"

	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/pkg/money"
)

func ptr(m money.Money) *money.Money {
	return &m
}

// SeedMemberships creates the tier catalog: one free initial tier plus one
// paid tier per profile type.
func SeedMemberships(db *gorm.DB) {
	memberships := []model.Membership{
		{
			Name:                     "Client Starter",
			ProfileType:              model.ProfileClient,
			ApplicationFeePercentage: 10,
			MatchmakingFee:           money.MustNew("0.00"),
			IsInitial:                true,
		},
		{
			Name:                     "Client Plus",
			ProfileType:              model.ProfileClient,
			ApplicationFeePercentage: 5,
			MatchmakingFee:           money.MustNew("25.00"),
			ConciergePrice:           ptr(money.MustNew("50.00")),
			PriceMonth:               ptr(money.MustNew("49.00")),
			PriceAnnual:              ptr(money.MustNew("490.00")),
			StripeMonthlyProductName: "client-plus-monthly",
			StripeAnnualProductName:  "client-plus-annual",
		},
		{
			Name:                     "Freelancer Starter",
			ProfileType:              model.ProfileFreelancer,
			ApplicationFeePercentage: 20,
			MatchmakingFee:           money.MustNew("0.00"),
			IsInitial:                true,
		},
		{
			Name:                               "Freelancer Pro",
			ProfileType:                        model.ProfileFreelancer,
			ApplicationFeePercentage:           10,
			MatchmakingFee:                     money.MustNew("15.00"),
			MarketingPackageDiscountPercentage: ptr(money.MustNew("20.00")),
			PriceMonth:                         ptr(money.MustNew("29.00")),
			PriceAnnual:                        ptr(money.MustNew("290.00")),
			StripeMonthlyProductName:           "freelancer-pro-monthly",
			StripeAnnualProductName:            "freelancer-pro-annual",
		},
		{
			Name:                     "Adviser Starter",
			ProfileType:              model.ProfileAdviser,
			ApplicationFeePercentage: 15,
			MatchmakingFee:           money.MustNew("0.00"),
			IsInitial:                true,
		},
		{
			Name:                     "Adviser Expert",
			ProfileType:              model.ProfileAdviser,
			ApplicationFeePercentage: 8,
			MatchmakingFee:           money.MustNew("20.00"),
			ConciergePrice:           ptr(money.MustNew("75.00")),
			PriceMonth:               ptr(money.MustNew("59.00")),
			PriceAnnual:              ptr(money.MustNew("590.00")),
			StripeMonthlyProductName: "adviser-expert-monthly",
			StripeAnnualProductName:  "adviser-expert-annual",
		},
	}

	for _, m := range memberships {
		m.Slug = slug.Make(m.Name)
		m.IsActive = true
		result := db.FirstOrCreate(&m, model.Membership{Slug: m.Slug})
		if result.Error != nil {
			log.Printf("Error creating membership %s: %v", m.Name, result.Error)
		}
	}

	log.Println("Membership catalog seeded successfully!")
}

// SeedPaymentFees creates the current fee schedule if none exists.
func SeedPaymentFees(db *gorm.DB) {
	var count int64
	db.Model(&model.PaymentFee{}).Where("is_current = ?", true).Count(&count)
	if count > 0 {
		return
	}

	fee := model.PaymentFee{
		ProjectPostingPrice: ptr(money.MustNew("100.00")),
		TaxPercentage:       21,
		StripePercentage:    3,
		IsCurrent:           true,
	}
	if err := db.Create(&fee).Error; err != nil {
		log.Printf("Error creating payment fee schedule: %v", err)
		return
	}

	log.Println("Payment fee schedule seeded successfully!")
}
