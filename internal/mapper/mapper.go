package mapper

import (
	"time"

	"github.com/straye-as/travel-crm-api/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToStatusDTO converts a BookingStatus to its presentation DTO
func ToStatusDTO(status domain.BookingStatus) domain.StatusDTO {
	return domain.StatusDTO{
		Value: status,
		Label: status.Label(),
		Color: status.Color(),
	}
}

// ToStatusDTOs converts a list of statuses, never returning nil
func ToStatusDTOs(statuses []domain.BookingStatus) []domain.StatusDTO {
	dtos := make([]domain.StatusDTO, 0, len(statuses))
	for _, s := range statuses {
		dtos = append(dtos, ToStatusDTO(s))
	}
	return dtos
}

// ToStatusRegistry describes every booking status with its outgoing transitions
func ToStatusRegistry() []domain.StatusRegistryEntryDTO {
	statuses := domain.AllBookingStatuses()
	entries := make([]domain.StatusRegistryEntryDTO, 0, len(statuses))
	for _, s := range statuses {
		entries = append(entries, domain.StatusRegistryEntryDTO{
			StatusDTO: ToStatusDTO(s),
			Next:      ToStatusDTOs(domain.NextStatuses(s)),
			Terminal:  s.IsTerminal(),
		})
	}
	return entries
}

// ToAgencyDTO converts Agency to AgencyDTO
func ToAgencyDTO(agency *domain.Agency) domain.AgencyDTO {
	return domain.AgencyDTO{
		ID:        agency.ID,
		Name:      agency.Name,
		Slug:      agency.Slug,
		Lifecycle: agency.Lifecycle,
	}
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:          user.ID,
		AgencyID:    user.AgencyID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		Lifecycle:   user.Lifecycle,
	}
}

// ToClientDTO converts Client to ClientDTO
func ToClientDTO(client *domain.Client) domain.ClientDTO {
	return domain.ClientDTO{
		ID:        client.ID,
		AgencyID:  client.AgencyID,
		Name:      client.Name,
		Email:     client.Email,
		Phone:     client.Phone,
		Document:  client.Document,
		Notes:     client.Notes,
		StageID:   client.StageID,
		OwnerID:   client.OwnerID,
		Lifecycle: client.Lifecycle,
		CreatedAt: formatTime(client.CreatedAt),
		UpdatedAt: formatTime(client.UpdatedAt),
	}
}

// ToFunnelDTO converts Funnel (with its stages loaded) to FunnelDTO
func ToFunnelDTO(funnel *domain.Funnel) domain.FunnelDTO {
	stages := make([]domain.FunnelStageDTO, 0, len(funnel.Stages))
	for i := range funnel.Stages {
		stages = append(stages, ToFunnelStageDTO(&funnel.Stages[i]))
	}
	return domain.FunnelDTO{
		ID:        funnel.ID,
		Name:      funnel.Name,
		Kind:      funnel.Kind,
		Stages:    stages,
		CreatedAt: formatTime(funnel.CreatedAt),
	}
}

// ToFunnelStageDTO converts FunnelStage to FunnelStageDTO
func ToFunnelStageDTO(stage *domain.FunnelStage) domain.FunnelStageDTO {
	return domain.FunnelStageDTO{
		ID:       stage.ID,
		Name:     stage.Name,
		Position: stage.Position,
		Color:    stage.Color,
	}
}

// ToOperatorDTO converts Operator to OperatorDTO
func ToOperatorDTO(operator *domain.Operator) domain.OperatorDTO {
	return domain.OperatorDTO{
		ID:           operator.ID,
		Name:         operator.Name,
		Code:         operator.Code,
		ExternalRef:  operator.ExternalRef,
		Email:        operator.Email,
		Lifecycle:    operator.Lifecycle,
		LastSyncedAt: formatOptionalTime(operator.LastSyncedAt),
	}
}

// ToProposalDTO converts Proposal to ProposalDTO
func ToProposalDTO(proposal *domain.Proposal) domain.ProposalDTO {
	dto := domain.ProposalDTO{
		ID:          proposal.ID,
		ClientID:    proposal.ClientID,
		OperatorID:  proposal.OperatorID,
		StageID:     proposal.StageID,
		Title:       proposal.Title,
		Destination: proposal.Destination,
		TotalAmount: proposal.TotalAmount,
		Currency:    proposal.Currency,
		Status:      proposal.Status,
		ValidUntil:  formatOptionalTime(proposal.ValidUntil),
		OwnerID:     proposal.OwnerID,
		CreatedAt:   formatTime(proposal.CreatedAt),
		UpdatedAt:   formatTime(proposal.UpdatedAt),
	}
	if proposal.Client != nil {
		dto.ClientName = proposal.Client.Name
	}
	return dto
}

// ToBookingDTO converts Booking to BookingDTO including the reachable next statuses
func ToBookingDTO(booking *domain.Booking) domain.BookingDTO {
	next := []domain.StatusDTO{}
	if booking.Lifecycle == domain.LifecycleActive {
		next = ToStatusDTOs(domain.NextStatuses(booking.Status))
	}

	dto := domain.BookingDTO{
		ID:               booking.ID,
		Reference:        booking.Reference,
		ClientID:         booking.ClientID,
		ProposalID:       booking.ProposalID,
		Status:           ToStatusDTO(booking.Status),
		NextStatuses:     next,
		Lifecycle:        booking.Lifecycle,
		TravelStart:      formatOptionalTime(booking.TravelStart),
		TravelEnd:        formatOptionalTime(booking.TravelEnd),
		InstallationDate: formatOptionalTime(booking.InstallationDate),
		StatusChangedAt:  formatTime(booking.StatusChangedAt),
		CreatedAt:        formatTime(booking.CreatedAt),
		UpdatedAt:        formatTime(booking.UpdatedAt),
	}
	if booking.Client != nil {
		dto.ClientName = booking.Client.Name
	}
	return dto
}

// ToBookingDocumentDTO converts BookingDocument to BookingDocumentDTO
func ToBookingDocumentDTO(doc *domain.BookingDocument) domain.BookingDocumentDTO {
	return domain.BookingDocumentDTO{
		ID:          doc.ID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		CreatedAt:   formatTime(doc.CreatedAt),
	}
}

// ToTimelineEventDTO converts a joined timeline entry to TimelineEventDTO
func ToTimelineEventDTO(entry *domain.TimelineEntry) domain.TimelineEventDTO {
	return domain.TimelineEventDTO{
		ID:          entry.ID,
		Type:        entry.Type,
		Description: entry.Description,
		Metadata:    entry.Metadata,
		ActorID:     entry.ActorID,
		ActorName:   entry.ActorName,
		CreatedAt:   formatTime(entry.CreatedAt),
	}
}

// ToActivityLogDTO converts ActivityLog to ActivityLogDTO
func ToActivityLogDTO(entry *domain.ActivityLog) domain.ActivityLogDTO {
	return domain.ActivityLogDTO{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Summary:    entry.Summary,
		Details:    entry.Details,
		CreatedAt:  formatTime(entry.CreatedAt),
	}
}
