package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/pkg/database"
	"talentmarket_backend/pkg/email"
)

// InitTransitionReconcileCron schedules the daily scan for membership
// transitions that never reached a terminal state. A row stuck in
// remote_confirmed means a Stripe subscription may exist with no matching
// ledger entry; the job reports, it does not heal.
func InitTransitionReconcileCron(opsEmail string) {
	c := cron.New()

	_, err := c.AddFunc("0 9 * * *", func() {
		reconcileStalledTransitions(opsEmail)
	})

	if err != nil {
		log.Printf("Could not initialize transition reconcile cron: %v", err)
		return
	}

	c.Start()
}

func reconcileStalledTransitions(opsEmail string) {
	log.Println("Checking for stalled membership transitions...")

	cutoff := time.Now().Add(-1 * time.Hour)

	var transitions []model.MembershipTransition
	err := database.DB.
		Where("status IN ? AND updated_at < ?",
			[]model.TransitionStatus{model.TransitionInitiated, model.TransitionRemoteConfirmed}, cutoff).
		Preload("User").
		Find(&transitions).Error
	if err != nil {
		log.Printf("Error fetching stalled transitions: %v", err)
		return
	}

	log.Printf("Found %d stalled transitions", len(transitions))

	for _, t := range transitions {
		log.Printf("Transition %s (user %d) stuck in %s since %s",
			t.ID, t.UserID, t.Status, t.UpdatedAt.Format(time.RFC3339))

		if email.GlobalEmailService != nil {
			err := email.GlobalEmailService.SendReconciliationAlert(
				opsEmail, t.ID.String(), t.User.Email, string(t.Status), t.UpdatedAt)
			if err != nil {
				log.Printf("Error sending reconciliation alert for %s: %v", t.ID, err)
			}
		}
	}
}
