package domain

// BookingStatus is the operational state of a booking
type BookingStatus string

const (
	BookingStatusPendingDocuments    BookingStatus = "pending_documents"
	BookingStatusUnderAnalysis       BookingStatus = "under_analysis"
	BookingStatusApproved            BookingStatus = "approved"
	BookingStatusPendingInstallation BookingStatus = "pending_installation"
	BookingStatusInstalled           BookingStatus = "installed"
	BookingStatusActive              BookingStatus = "active"
	BookingStatusCancelled           BookingStatus = "cancelled"
	BookingStatusSuspended           BookingStatus = "suspended"
)

type statusPresentation struct {
	label string
	color string
}

var bookingStatusPresentation = map[BookingStatus]statusPresentation{
	BookingStatusPendingDocuments:    {label: "Pending documents", color: "#f59e0b"},
	BookingStatusUnderAnalysis:       {label: "Under analysis", color: "#3b82f6"},
	BookingStatusApproved:            {label: "Approved", color: "#10b981"},
	BookingStatusPendingInstallation: {label: "Pending installation", color: "#8b5cf6"},
	BookingStatusInstalled:           {label: "Installed", color: "#06b6d4"},
	BookingStatusActive:              {label: "Active", color: "#22c55e"},
	BookingStatusCancelled:           {label: "Cancelled", color: "#ef4444"},
	BookingStatusSuspended:           {label: "Suspended", color: "#6b7280"},
}

// AllBookingStatuses returns every booking status in declaration order
func AllBookingStatuses() []BookingStatus {
	return []BookingStatus{
		BookingStatusPendingDocuments,
		BookingStatusUnderAnalysis,
		BookingStatusApproved,
		BookingStatusPendingInstallation,
		BookingStatusInstalled,
		BookingStatusActive,
		BookingStatusCancelled,
		BookingStatusSuspended,
	}
}

// IsValid reports whether s is one of the known booking statuses
func (s BookingStatus) IsValid() bool {
	_, ok := bookingStatusPresentation[s]
	return ok
}

// Label returns the human-readable label, or the raw value for unknown statuses
func (s BookingStatus) Label() string {
	if p, ok := bookingStatusPresentation[s]; ok {
		return p.label
	}
	return string(s)
}

// Color returns the display color as a hex string
func (s BookingStatus) Color() string {
	if p, ok := bookingStatusPresentation[s]; ok {
		return p.color
	}
	return "#000000"
}

// ParseBookingStatus converts a raw string into a known BookingStatus
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	s := BookingStatus(raw)
	return s, s.IsValid()
}
