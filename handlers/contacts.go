// ABOUTME: Contact MCP tool handlers over the local CRM
// ABOUTME: Implements find_contacts and get_contact_history tools
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/consult/crm"
	"github.com/harperreed/consult/db"
	"github.com/harperreed/consult/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ContactHandlers struct {
	db  *sql.DB
	crm *crm.LocalCRM
}

func NewContactHandlers(database *sql.DB, local *crm.LocalCRM) *ContactHandlers {
	return &ContactHandlers{db: database, crm: local}
}

type ContactOutput struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	Company         string  `json:"company,omitempty"`
	LastContactedAt *string `json:"last_contacted_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type FindContactsInput struct {
	Query string `json:"query,omitempty" jsonschema:"Search query (searches name, email, and company)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

type FindContactsOutput struct {
	Contacts []ContactOutput `json:"contacts"`
}

func (h *ContactHandlers) FindContacts(ctx context.Context, request *mcp.CallToolRequest, input FindContactsInput) (*mcp.CallToolResult, FindContactsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 10
	}

	contacts, err := db.FindContacts(ctx, h.db, input.Query, limit)
	if err != nil {
		return nil, FindContactsOutput{}, fmt.Errorf("failed to find contacts: %w", err)
	}

	result := make([]ContactOutput, len(contacts))
	for i, contact := range contacts {
		result[i] = contactToOutput(&contact)
	}
	return nil, FindContactsOutput{Contacts: result}, nil
}

type ContactHistoryInput struct {
	Email string `json:"email" jsonschema:"Contact email address (required)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of interactions (default 20)"`
}

type InteractionOutput struct {
	Type      string `json:"type"`
	BookingID string `json:"booking_id,omitempty"`
	Timestamp string `json:"timestamp"`
	Notes     string `json:"notes,omitempty"`
}

type ContactHistoryOutput struct {
	Contact      ContactOutput       `json:"contact"`
	Interactions []InteractionOutput `json:"interactions"`
}

func (h *ContactHandlers) GetContactHistory(ctx context.Context, request *mcp.CallToolRequest, input ContactHistoryInput) (*mcp.CallToolResult, ContactHistoryOutput, error) {
	if input.Email == "" {
		return nil, ContactHistoryOutput{}, fmt.Errorf("email is required")
	}
	limit := input.Limit
	if limit == 0 {
		limit = 20
	}

	contact, history, err := h.crm.History(ctx, input.Email, limit)
	if err != nil {
		return nil, ContactHistoryOutput{}, err
	}

	out := ContactHistoryOutput{
		Contact:      contactToOutput(contact),
		Interactions: make([]InteractionOutput, len(history)),
	}
	for i, entry := range history {
		item := InteractionOutput{
			Type:      entry.InteractionType,
			Timestamp: entry.Timestamp.Format(time.RFC3339),
			Notes:     entry.Notes,
		}
		if entry.BookingID != nil {
			item.BookingID = entry.BookingID.String()
		}
		out.Interactions[i] = item
	}
	return nil, out, nil
}

func contactToOutput(contact *models.Contact) ContactOutput {
	output := ContactOutput{
		ID:        contact.ID.String(),
		Name:      contact.Name,
		Email:     contact.Email,
		Phone:     contact.Phone,
		Company:   contact.Company,
		CreatedAt: contact.CreatedAt.Format(time.RFC3339),
	}
	if contact.LastContactedAt != nil {
		ts := contact.LastContactedAt.Format(time.RFC3339)
		output.LastContactedAt = &ts
	}
	return output
}

// Register adds the contact tools to server.
func (h *ContactHandlers) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_contacts",
		Description: "Search CRM contacts created from bookings",
	}, h.FindContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_contact_history",
		Description: "Show a contact and their booking interaction history",
	}, h.GetContactHistory)
}
