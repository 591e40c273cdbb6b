// ABOUTME: MCP resource handlers exposing upcoming bookings and breaker health
// ABOUTME: Read-only JSON views under the consult:// scheme
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ResourceHandlers struct {
	svc Scheduler
	now func() time.Time
}

func NewResourceHandlers(svc Scheduler) *ResourceHandlers {
	return &ResourceHandlers{svc: svc, now: time.Now}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, "consult://") {
		return nil, fmt.Errorf("invalid URI scheme: expected consult://")
	}

	parts := strings.Split(strings.TrimPrefix(uri, "consult://"), "/")
	switch parts[0] {
	case "bookings":
		if len(parts) == 1 || parts[1] == "" {
			return h.readUpcoming(ctx, uri)
		}
		return h.readBooking(ctx, uri, parts[1])
	case "breakers":
		return jsonResource(uri, h.svc.BreakerStats())
	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func (h *ResourceHandlers) readUpcoming(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	now := h.now()
	bookings, err := h.svc.ListBookings(ctx, now, now.AddDate(0, 0, 30))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}
	return jsonResource(uri, bookings)
}

func (h *ResourceHandlers) readBooking(ctx context.Context, uri, idStr string) (*mcp.ReadResourceResult, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid booking ID: %w", err)
	}
	b, err := h.svc.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, b)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}

// Register adds the resources to server.
func (h *ResourceHandlers) Register(server *mcp.Server) {
	server.AddResource(&mcp.Resource{
		URI:         "consult://bookings",
		Name:        "upcoming-bookings",
		Description: "Bookings in the next 30 days",
		MIMEType:    "application/json",
	}, h.ReadResource)

	server.AddResource(&mcp.Resource{
		URI:         "consult://breakers",
		Name:        "breakers",
		Description: "Circuit breaker state for the calendar and CRM",
		MIMEType:    "application/json",
	}, h.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "consult://bookings/{id}",
		Name:        "booking",
		Description: "One booking by ID",
		MIMEType:    "application/json",
	}, h.ReadResource)
}
