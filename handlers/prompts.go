// ABOUTME: MCP prompt handlers for booking workflows
// ABOUTME: Provides prompts for scheduling a consultation and reviewing a booking's sync state
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	svc Scheduler
}

func NewPromptHandlers(svc Scheduler) *PromptHandlers {
	return &PromptHandlers{svc: svc}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "schedule-consultation":
		return h.getSchedulePrompt(arguments)
	case "booking-review":
		return h.getBookingReviewPrompt(ctx, arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) getSchedulePrompt(args map[string]string) (*mcp.GetPromptResult, error) {
	var promptText strings.Builder
	promptText.WriteString("Help me book a consultation.\n\n")
	if who := args["name"]; who != "" {
		promptText.WriteString(fmt.Sprintf("Name: %s\n", who))
	}
	if email := args["email"]; email != "" {
		promptText.WriteString(fmt.Sprintf("Email: %s\n", email))
	}
	if day := args["preferred_date"]; day != "" {
		promptText.WriteString(fmt.Sprintf("Preferred date: %s\n", day))
	}
	promptText.WriteString("\nSteps:")
	promptText.WriteString("\n1. Ask for any missing name, email, topic, and length (15, 30, 45, or 60 minutes)")
	promptText.WriteString("\n2. Call find_available_slots for the preferred dates and offer a few options")
	promptText.WriteString("\n3. Call book_consultation with the chosen start time exactly as returned")
	promptText.WriteString("\n4. If the slot was taken or the email hit its booking limit, explain and offer alternatives")

	return &mcp.GetPromptResult{
		Description: "Guided consultation booking",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *PromptHandlers) getBookingReviewPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	idStr, ok := args["booking_id"]
	if !ok {
		return nil, fmt.Errorf("booking_id is required")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid booking_id: %w", err)
	}

	b, err := h.svc.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	var promptText strings.Builder
	promptText.WriteString("Review this consultation booking:\n\n")
	promptText.WriteString(fmt.Sprintf("Name: %s\n", b.Name))
	promptText.WriteString(fmt.Sprintf("Email: %s\n", b.Email))
	if b.Company != "" {
		promptText.WriteString(fmt.Sprintf("Company: %s\n", b.Company))
	}
	promptText.WriteString(fmt.Sprintf("When: %s (%d minutes)\n", b.StartTime.Format(time.RFC1123), int(b.Duration)))
	promptText.WriteString(fmt.Sprintf("Status: %s\n", b.Status))
	if b.Inquiry != "" {
		promptText.WriteString(fmt.Sprintf("Topic: %s\n", b.Inquiry))
	}
	promptText.WriteString(fmt.Sprintf("\nCalendar synced: %t, CRM synced: %t, confirmation sent: %t\n",
		b.CalendarSynced, b.CRMSynced, b.ConfirmationSent))

	promptText.WriteString("\nPlease provide:")
	promptText.WriteString("\n1. A short brief to prepare for this consultation")
	if b.NeedsSync() {
		promptText.WriteString("\n2. What still needs to be done by hand because a sync did not complete")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review of booking %s", b.ID),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

// Register adds the prompts to server.
func (h *PromptHandlers) Register(server *mcp.Server) {
	server.AddPrompt(&mcp.Prompt{
		Name:        "schedule-consultation",
		Description: "Walk through finding a slot and booking a consultation",
		Arguments: []*mcp.PromptArgument{
			{Name: "name", Description: "Name of the person booking"},
			{Name: "email", Description: "Their email address"},
			{Name: "preferred_date", Description: "Preferred day (YYYY-MM-DD)"},
		},
	}, h.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "booking-review",
		Description: "Prepare for a booked consultation and surface unfinished syncs",
		Arguments: []*mcp.PromptArgument{
			{Name: "booking_id", Description: "Booking ID", Required: true},
		},
	}, h.GetPrompt)
}
