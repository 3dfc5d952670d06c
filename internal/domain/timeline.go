package domain

// TimelineEventType classifies an entry in a booking's timeline
type TimelineEventType string

const (
	TimelineEventCreated               TimelineEventType = "created"
	TimelineEventStatusChanged         TimelineEventType = "status_changed"
	TimelineEventDocumentUploaded      TimelineEventType = "document_uploaded"
	TimelineEventDocumentRemoved       TimelineEventType = "document_removed"
	TimelineEventNoteAdded             TimelineEventType = "note_added"
	TimelineEventClientContacted       TimelineEventType = "client_contacted"
	TimelineEventInstallationScheduled TimelineEventType = "installation_scheduled"
	TimelineEventOther                 TimelineEventType = "other"
)

// IsValid reports whether t is a known event type
func (t TimelineEventType) IsValid() bool {
	switch t {
	case TimelineEventCreated,
		TimelineEventStatusChanged,
		TimelineEventDocumentUploaded,
		TimelineEventDocumentRemoved,
		TimelineEventNoteAdded,
		TimelineEventClientContacted,
		TimelineEventInstallationScheduled,
		TimelineEventOther:
		return true
	}
	return false
}

// StaleDocumentsReminder starts the description of the reminder appended to
// bookings that wait too long in pending_documents. Reminders are found again
// by this prefix.
const StaleDocumentsReminder = "Reminder: waiting for documents"
