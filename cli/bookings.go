// ABOUTME: Booking CLI commands
// ABOUTME: Human-friendly wrappers around the orchestrator's slot, book, update, and cancel flows
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/booking"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/scheduling"
)

// SlotsCommand lists open slots.
func SlotsCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("slots", flag.ExitOnError)
	start := fs.String("start", "", "Range start, RFC 3339 or YYYY-MM-DD (default: today)")
	end := fs.String("end", "", "Range end, RFC 3339 or YYYY-MM-DD inclusive (default: start + 7 days)")
	duration := fs.Int("duration", 30, "Slot length in minutes (15, 30, 45, 60)")
	_ = fs.Parse(args)

	from, to, err := defaultRange(*start, *end, app.Location, 7)
	if err != nil {
		return err
	}

	slots, err := app.Orchestrator.GetAvailableSlots(context.Background(), from, to, models.Duration(*duration))
	if err != nil {
		return err
	}

	if len(slots) == 0 {
		fmt.Println("No open slots in that range.")
		return nil
	}

	day := ""
	for _, s := range slots {
		local := s.Start.In(app.Location)
		if d := local.Format("Mon Jan 2"); d != day {
			day = d
			fmt.Println(labelStyle.Render(day))
		}
		fmt.Printf("  %s - %s\n", local.Format("15:04"), s.End().In(app.Location).Format("15:04 MST"))
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d slots of %d minutes", len(slots), *duration)))
	return nil
}

// BookCommand creates a booking.
func BookCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("book", flag.ExitOnError)
	name := fs.String("name", "", "Client name (required)")
	email := fs.String("email", "", "Client email (required)")
	phone := fs.String("phone", "", "Phone number")
	company := fs.String("company", "", "Company name")
	inquiry := fs.String("inquiry", "", "What the consultation is about")
	start := fs.String("start", "", "Start time, RFC 3339 or YYYY-MM-DD HH:MM (required)")
	duration := fs.Int("duration", 30, "Length in minutes (15, 30, 45, 60)")
	_ = fs.Parse(args)

	if *name == "" || *email == "" || *start == "" {
		return fmt.Errorf("--name, --email, and --start are required")
	}

	startTime, err := scheduling.ParseTime(*start, app.Location)
	if err != nil {
		return err
	}

	res, err := app.Orchestrator.CreateBooking(context.Background(), booking.CreateRequest{
		Name:      *name,
		Email:     *email,
		Phone:     *phone,
		Company:   *company,
		Inquiry:   *inquiry,
		StartTime: startTime,
		Duration:  models.Duration(*duration),
	})
	if err != nil {
		return err
	}
	return printResult(os.Stdout, res, app.Location)
}

// UpdateCommand reschedules or edits a booking. Flags come before the id.
func UpdateCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	start := fs.String("start", "", "New start time")
	duration := fs.Int("duration", 0, "New length in minutes")
	status := fs.String("status", "", "New status (confirmed, completed, no_show, cancelled)")
	name := fs.String("name", "", "New client name")
	phone := fs.String("phone", "", "New phone number")
	company := fs.String("company", "", "New company")
	inquiry := fs.String("inquiry", "", "New inquiry text")
	_ = fs.Parse(args)

	id, err := idArg(fs)
	if err != nil {
		return err
	}

	var req booking.UpdateRequest
	if *start != "" {
		t, err := scheduling.ParseTime(*start, app.Location)
		if err != nil {
			return err
		}
		req.StartTime = &t
	}
	if *duration != 0 {
		d := models.Duration(*duration)
		req.Duration = &d
	}
	if *status != "" {
		s, err := models.ParseStatus(*status)
		if err != nil {
			return err
		}
		req.Status = &s
	}
	setIfFlagged(fs, "name", name, &req.Name)
	setIfFlagged(fs, "phone", phone, &req.Phone)
	setIfFlagged(fs, "company", company, &req.Company)
	setIfFlagged(fs, "inquiry", inquiry, &req.Inquiry)

	res, err := app.Orchestrator.UpdateBooking(context.Background(), id, req)
	if err != nil {
		return err
	}
	return printResult(os.Stdout, res, app.Location)
}

// CancelCommand cancels a booking.
func CancelCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	_ = fs.Parse(args)

	id, err := idArg(fs)
	if err != nil {
		return err
	}

	res, err := app.Orchestrator.CancelBooking(context.Background(), id)
	if err != nil {
		return err
	}
	return printResult(os.Stdout, res, app.Location)
}

// GetCommand shows one booking with its CRM history.
func GetCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	_ = fs.Parse(args)

	id, err := idArg(fs)
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, err := app.Orchestrator.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	printBooking(os.Stdout, b, app.Location)

	_, history, err := app.CRM.History(ctx, b.Email, 5)
	if err != nil {
		app.Logger.Debug("no crm history", "email", b.Email, "err", err)
		return nil
	}
	if len(history) > 0 {
		fmt.Println()
		fmt.Println(labelStyle.Render("History"))
		for _, h := range history {
			fmt.Printf("  %s  %s\n", h.Timestamp.In(app.Location).Format("2006-01-02 15:04"), h.Notes)
		}
	}
	return nil
}

// ListCommand lists bookings in a range.
func ListCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	start := fs.String("start", "", "Range start (default: today)")
	end := fs.String("end", "", "Range end (default: start + 30 days)")
	all := fs.Bool("all", false, "Include cancelled bookings")
	_ = fs.Parse(args)

	from, to, err := defaultRange(*start, *end, app.Location, 30)
	if err != nil {
		return err
	}

	bookings, err := app.Orchestrator.ListBookings(context.Background(), from, to)
	if err != nil {
		return err
	}
	if !*all {
		bookings = activeOnly(bookings)
	}

	if len(bookings) == 0 {
		fmt.Println("No bookings found.")
		return nil
	}
	printBookingTable(os.Stdout, bookings, app.Location)
	return nil
}

func printResult(w io.Writer, res booking.Result, loc *time.Location) error {
	switch res.Outcome {
	case booking.OutcomeBooked:
		_, _ = fmt.Fprintln(w, ok("Booking created"))
	case booking.OutcomeUpdated:
		_, _ = fmt.Fprintln(w, ok("Booking updated"))
	case booking.OutcomeCancelled:
		_, _ = fmt.Fprintln(w, ok("Booking cancelled"))
	default:
		return res.Err()
	}

	printBooking(w, res.Booking, loc)
	if res.Booking.NeedsSync() {
		_, _ = fmt.Fprintln(w, warn("Some external systems are behind; 'consult reconcile' will retry"))
	}
	return nil
}

func printBooking(w io.Writer, b *models.Booking, loc *time.Location) {
	start := b.StartTime.In(loc)
	_, _ = fmt.Fprintf(w, "  ID:       %s\n", b.ID)
	_, _ = fmt.Fprintf(w, "  Client:   %s <%s>\n", b.Name, b.Email)
	if b.Company != "" {
		_, _ = fmt.Fprintf(w, "  Company:  %s\n", b.Company)
	}
	_, _ = fmt.Fprintf(w, "  When:     %s (%d min)\n", start.Format("Mon Jan 2 2006 15:04 MST"), b.Duration)
	_, _ = fmt.Fprintf(w, "  Status:   %s\n", b.Status)
	if b.Inquiry != "" {
		_, _ = fmt.Fprintf(w, "  Inquiry:  %s\n", b.Inquiry)
	}
	_, _ = fmt.Fprintf(w, "  Calendar: %s\n", syncMark(b.CalendarSynced))
	_, _ = fmt.Fprintf(w, "  CRM:      %s\n", syncMark(b.CRMSynced))
}

func printBookingTable(w io.Writer, bookings []*models.Booking, loc *time.Location) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tWHEN\tMIN\tCLIENT\tSTATUS\tSYNC")
	for _, b := range bookings {
		syncState := "ok"
		if b.NeedsSync() {
			syncState = "pending"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			b.ID.String()[:8],
			b.StartTime.In(loc).Format("2006-01-02 15:04"),
			b.Duration,
			b.Name,
			b.Status,
			syncState)
	}
	_ = tw.Flush()
}

func syncMark(synced bool) string {
	if synced {
		return okStyle.Render("synced")
	}
	return warnStyle.Render("pending")
}

func activeOnly(bookings []*models.Booking) []*models.Booking {
	out := bookings[:0]
	for _, b := range bookings {
		if b.Status != models.StatusCancelled {
			out = append(out, b)
		}
	}
	return out
}

func idArg(fs *flag.FlagSet) (uuid.UUID, error) {
	if fs.NArg() != 1 {
		return uuid.Nil, errors.New("booking ID is required (flags must come before the ID)")
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid booking ID: %w", err)
	}
	return id, nil
}

func setIfFlagged(fs *flag.FlagSet, name string, value *string, target **string) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			v := *value
			*target = &v
		}
	})
}

// defaultRange parses start/end, defaulting to today and start plus days.
func defaultRange(start, end string, loc *time.Location, days int) (time.Time, time.Time, error) {
	if start == "" {
		start = time.Now().In(loc).Format("2006-01-02")
	}
	from, _, err := scheduling.ParseRange(start, start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if strings.TrimSpace(end) == "" {
		return from, from.AddDate(0, 0, days), nil
	}
	_, to, err := scheduling.ParseRange(start, end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
