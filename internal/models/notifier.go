package models

// RetargetKind selects the notification template for a re-target mail.
type RetargetKind string

const (
	RetargetSubscriberKind RetargetKind = "subscriber-email"
	RetargetProviderKind   RetargetKind = "provider-email"
)

// Notifier delivers the re-target confirmation link to the requesting
// party.
type Notifier interface {
	SendRetarget(email, sessionID string, kind RetargetKind) error
}
