// ABOUTME: Booking MCP tool handlers
// ABOUTME: Implements find_available_slots, book_consultation, reschedule_consultation, cancel_consultation, get_booking
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/booking"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/resilience"
	"github.com/harperreed/consult/scheduling"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Scheduler is the booking surface the tools drive.
type Scheduler interface {
	GetAvailableSlots(ctx context.Context, start, end time.Time, duration models.Duration) ([]models.TimeSlot, error)
	CreateBooking(ctx context.Context, req booking.CreateRequest) (booking.Result, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, req booking.UpdateRequest) (booking.Result, error)
	CancelBooking(ctx context.Context, id uuid.UUID) (booking.Result, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListBookings(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	BreakerStats() []resilience.BreakerStats
}

type BookingHandlers struct {
	svc      Scheduler
	location *time.Location
}

// NewBookingHandlers reads offset-free times in loc.
func NewBookingHandlers(svc Scheduler, loc *time.Location) *BookingHandlers {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandlers{svc: svc, location: loc}
}

type FindSlotsInput struct {
	StartDate string `json:"start_date" jsonschema:"First day or instant to search (YYYY-MM-DD or RFC 3339)"`
	EndDate   string `json:"end_date" jsonschema:"Last day (inclusive) or instant to search"`
	Duration  int    `json:"duration" jsonschema:"Consultation length in minutes: 15, 30, 45, or 60"`
}

type SlotOutput struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration int    `json:"duration"`
}

type FindSlotsOutput struct {
	Slots []SlotOutput `json:"slots"`
}

func (h *BookingHandlers) FindAvailableSlots(ctx context.Context, request *mcp.CallToolRequest, input FindSlotsInput) (*mcp.CallToolResult, FindSlotsOutput, error) {
	start, end, err := scheduling.ParseRange(input.StartDate, input.EndDate, h.location)
	if err != nil {
		return nil, FindSlotsOutput{}, err
	}

	slots, err := h.svc.GetAvailableSlots(ctx, start, end, models.Duration(input.Duration))
	if err != nil {
		return nil, FindSlotsOutput{}, err
	}

	out := FindSlotsOutput{Slots: make([]SlotOutput, len(slots))}
	for i, s := range slots {
		out.Slots[i] = SlotOutput{
			Start:    s.Start.Format(time.RFC3339),
			End:      s.End().Format(time.RFC3339),
			Duration: int(s.Duration),
		}
	}
	return nil, out, nil
}

type BookConsultationInput struct {
	Name      string `json:"name" jsonschema:"Full name of the person booking (required)"`
	Email     string `json:"email" jsonschema:"Email address for confirmation (required)"`
	Phone     string `json:"phone,omitempty" jsonschema:"Phone number"`
	Company   string `json:"company,omitempty" jsonschema:"Company name"`
	Inquiry   string `json:"inquiry,omitempty" jsonschema:"What the consultation is about"`
	StartTime string `json:"start_time" jsonschema:"Slot start from find_available_slots (RFC 3339)"`
	Duration  int    `json:"duration" jsonschema:"Consultation length in minutes: 15, 30, 45, or 60"`
}

type BookingOutput struct {
	ID                         string `json:"id"`
	Outcome                    string `json:"outcome"`
	Name                       string `json:"name"`
	Email                      string `json:"email"`
	StartTime                  string `json:"start_time"`
	EndTime                    string `json:"end_time"`
	Duration                   int    `json:"duration"`
	Status                     string `json:"status"`
	CalendarSynced             bool   `json:"calendar_synced"`
	RequiresManualCalendarSync bool   `json:"requires_manual_calendar_sync"`
	CRMSynced                  bool   `json:"crm_synced"`
	ConfirmationSent           bool   `json:"confirmation_sent"`
}

func (h *BookingHandlers) BookConsultation(ctx context.Context, request *mcp.CallToolRequest, input BookConsultationInput) (*mcp.CallToolResult, BookingOutput, error) {
	start, err := scheduling.ParseTime(input.StartTime, h.location)
	if err != nil {
		return nil, BookingOutput{}, err
	}

	res, err := h.svc.CreateBooking(ctx, booking.CreateRequest{
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Company:   input.Company,
		Inquiry:   input.Inquiry,
		StartTime: start,
		Duration:  models.Duration(input.Duration),
	})
	return resultToOutput(res, err)
}

type RescheduleInput struct {
	ID        string `json:"id" jsonschema:"Booking ID (required)"`
	StartTime string `json:"start_time" jsonschema:"New start time (RFC 3339, required)"`
	Duration  int    `json:"duration,omitempty" jsonschema:"New length in minutes; keeps the current length when omitted"`
}

func (h *BookingHandlers) RescheduleConsultation(ctx context.Context, request *mcp.CallToolRequest, input RescheduleInput) (*mcp.CallToolResult, BookingOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, BookingOutput{}, fmt.Errorf("invalid id: %w", err)
	}
	start, err := scheduling.ParseTime(input.StartTime, h.location)
	if err != nil {
		return nil, BookingOutput{}, err
	}

	req := booking.UpdateRequest{StartTime: &start}
	if input.Duration != 0 {
		d := models.Duration(input.Duration)
		req.Duration = &d
	}
	res, err := h.svc.UpdateBooking(ctx, id, req)
	return resultToOutput(res, err)
}

type BookingIDInput struct {
	ID string `json:"id" jsonschema:"Booking ID (required)"`
}

func (h *BookingHandlers) CancelConsultation(ctx context.Context, request *mcp.CallToolRequest, input BookingIDInput) (*mcp.CallToolResult, BookingOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, BookingOutput{}, fmt.Errorf("invalid id: %w", err)
	}
	res, err := h.svc.CancelBooking(ctx, id)
	return resultToOutput(res, err)
}

func (h *BookingHandlers) GetBooking(ctx context.Context, request *mcp.CallToolRequest, input BookingIDInput) (*mcp.CallToolResult, BookingOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, BookingOutput{}, fmt.Errorf("invalid id: %w", err)
	}
	b, err := h.svc.GetBooking(ctx, id)
	if err != nil {
		return nil, BookingOutput{}, err
	}
	return nil, bookingToOutput(b, ""), nil
}

// resultToOutput returns rejections as tool errors so the caller sees the reason.
func resultToOutput(res booking.Result, err error) (*mcp.CallToolResult, BookingOutput, error) {
	if err != nil {
		return nil, BookingOutput{}, err
	}
	if !res.OK() {
		return nil, BookingOutput{}, res.Err()
	}
	return nil, bookingToOutput(res.Booking, string(res.Outcome)), nil
}

func bookingToOutput(b *models.Booking, outcome string) BookingOutput {
	return BookingOutput{
		ID:                         b.ID.String(),
		Outcome:                    outcome,
		Name:                       b.Name,
		Email:                      b.Email,
		StartTime:                  b.StartTime.Format(time.RFC3339),
		EndTime:                    b.EndTime().Format(time.RFC3339),
		Duration:                   int(b.Duration),
		Status:                     string(b.Status),
		CalendarSynced:             b.CalendarSynced,
		RequiresManualCalendarSync: b.RequiresManualCalendarSync,
		CRMSynced:                  b.CRMSynced,
		ConfirmationSent:           b.ConfirmationSent,
	}
}

// Register adds the booking tools to server.
func (h *BookingHandlers) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_available_slots",
		Description: "List open consultation start times of a given length between two dates",
	}, h.FindAvailableSlots)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "book_consultation",
		Description: "Book a consultation slot for a person; fails on conflicts and per-email frequency limits",
	}, h.BookConsultation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reschedule_consultation",
		Description: "Move an existing booking to a new start time and optionally a new length",
	}, h.RescheduleConsultation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_consultation",
		Description: "Cancel a booking and free its slot",
	}, h.CancelConsultation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_booking",
		Description: "Fetch a booking with its calendar and CRM sync state",
	}, h.GetBooking)
}
