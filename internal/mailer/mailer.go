package mailer

import "embed"

const (
	FromName   = "ReviewHub"
	maxRetries = 3

	ReviewApprovedTemplate = "review_approved.tmpl"
	ReviewRejectedTemplate = "review_rejected.tmpl"
	ReviewFlaggedTemplate  = "review_flagged.tmpl"

	// FallbackRecipient catches outcome mail for reviews submitted with
	// no email channel at all.
	FallbackRecipient = "moderation@reviewhub.app"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, username, email string, data any) (int, error)
}
