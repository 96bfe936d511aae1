// pkg/email/email.go
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"
)

type EmailService struct {
	apiKey    string
	from      string
	templates *template.Template
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

// Template data structures
type WelcomeEmailData struct {
	Name           string
	MembershipName string
}

type MembershipChangedData struct {
	Name           string
	MembershipName string
	PriceMonth     string
	ChangedAt      time.Time
}

type MembershipDowngradedData struct {
	Name           string
	MembershipName string
	ChangedAt      time.Time
}

type ReconciliationAlertData struct {
	TransitionID string
	UserEmail    string
	Status       string
	StuckSince   time.Time
}

func NewEmailService(apiKey string) (*EmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %v", err)
	}

	return &EmailService{
		apiKey:    apiKey,
		from:      "TalentMarket <noreply@talentmarket.io>",
		templates: templates,
	}, nil
}

func (s *EmailService) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %v", err)
	}

	emailData := EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %v", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("Resend API error: Status: %d, Body: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("resend API error: %s", string(respBody))
	}

	return nil
}

// Email sending methods
func (s *EmailService) SendWelcomeEmail(email, name, membershipName string) error {
	data := WelcomeEmailData{
		Name:           name,
		MembershipName: membershipName,
	}
	return s.sendTemplateEmail(email, "Welcome to TalentMarket! 🎉", "welcome.html", data)
}

func (s *EmailService) SendMembershipChangedEmail(email, name, membershipName, priceMonth string) error {
	data := MembershipChangedData{
		Name:           name,
		MembershipName: membershipName,
		PriceMonth:     priceMonth,
		ChangedAt:      time.Now(),
	}
	return s.sendTemplateEmail(email, "Your Membership Has Been Updated", "membership_changed.html", data)
}

func (s *EmailService) SendMembershipDowngradedEmail(email, name, membershipName string) error {
	data := MembershipDowngradedData{
		Name:           name,
		MembershipName: membershipName,
		ChangedAt:      time.Now(),
	}
	return s.sendTemplateEmail(email, "Your Membership Was Downgraded", "membership_downgraded.html", data)
}

func (s *EmailService) SendReconciliationAlert(opsEmail, transitionID, userEmail, status string, stuckSince time.Time) error {
	data := ReconciliationAlertData{
		TransitionID: transitionID,
		UserEmail:    userEmail,
		Status:       status,
		StuckSince:   stuckSince,
	}
	return s.sendTemplateEmail(opsEmail, "Membership Transition Needs Reconciliation ⚠️", "reconciliation_alert.html", data)
}
