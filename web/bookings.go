// ABOUTME: Booking and availability route handlers
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/harperreed/consult/booking"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/resilience"
	"github.com/harperreed/consult/scheduling"
)

type CreateBookingRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	Inquiry   string `json:"inquiry"`
	StartTime string `json:"start_time" binding:"required"`
	Duration  int    `json:"duration" binding:"required"`
}

type UpdateBookingRequest struct {
	StartTime *string `json:"start_time"`
	Duration  *int    `json:"duration"`
	Status    *string `json:"status"`
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	Company   *string `json:"company"`
	Inquiry   *string `json:"inquiry"`
}

type slotResponse struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int       `json:"duration"`
}

func (s *Server) listSlots(c *gin.Context) {
	start, end, err := scheduling.ParseRange(c.Query("start"), c.Query("end"), s.location)
	if err != nil {
		badRequest(c, "range", err.Error())
		return
	}
	minutes, err := strconv.Atoi(c.DefaultQuery("duration", "30"))
	if err != nil {
		badRequest(c, "duration", "must be a number of minutes")
		return
	}

	slots, err := s.svc.GetAvailableSlots(c.Request.Context(), start, end, models.Duration(minutes))
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]slotResponse, len(slots))
	for i, slot := range slots {
		out[i] = slotResponse{Start: slot.Start, End: slot.End(), Duration: int(slot.Duration)}
	}
	c.JSON(http.StatusOK, gin.H{"slots": out})
}

func (s *Server) createBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", err.Error())
		return
	}
	start, err := scheduling.ParseTime(req.StartTime, s.location)
	if err != nil {
		badRequest(c, "start_time", err.Error())
		return
	}

	res, err := s.svc.CreateBooking(c.Request.Context(), booking.CreateRequest{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Inquiry:   req.Inquiry,
		StartTime: start,
		Duration:  models.Duration(req.Duration),
	})
	s.writeResult(c, res, err)
}

func (s *Server) listBookings(c *gin.Context) {
	now := s.now().UTC()
	startStr := c.DefaultQuery("start", now.Format(time.RFC3339))
	endStr := c.DefaultQuery("end", now.AddDate(0, 0, 30).Format(time.RFC3339))

	start, end, err := scheduling.ParseRange(startStr, endStr, s.location)
	if err != nil {
		badRequest(c, "range", err.Error())
		return
	}

	bookings, err := s.svc.ListBookings(c.Request.Context(), start, end)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (s *Server) getBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := s.svc.GetBooking(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

func (s *Server) updateBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var body UpdateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "", err.Error())
		return
	}

	req := booking.UpdateRequest{
		Name:    body.Name,
		Phone:   body.Phone,
		Company: body.Company,
		Inquiry: body.Inquiry,
	}
	if body.StartTime != nil {
		start, err := scheduling.ParseTime(*body.StartTime, s.location)
		if err != nil {
			badRequest(c, "start_time", err.Error())
			return
		}
		req.StartTime = &start
	}
	if body.Duration != nil {
		d := models.Duration(*body.Duration)
		req.Duration = &d
	}
	if body.Status != nil {
		status, err := models.ParseStatus(*body.Status)
		if err != nil {
			badRequest(c, "status", err.Error())
			return
		}
		req.Status = &status
	}

	res, err := s.svc.UpdateBooking(c.Request.Context(), id, req)
	s.writeResult(c, res, err)
}

func (s *Server) cancelBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	res, err := s.svc.CancelBooking(c.Request.Context(), id)
	s.writeResult(c, res, err)
}

func (s *Server) breakers(c *gin.Context) {
	stats := s.svc.BreakerStats()
	healthy := true
	for _, b := range stats {
		if b.State != resilience.StateClosed {
			healthy = false
		}
	}
	c.JSON(http.StatusOK, gin.H{"healthy": healthy, "breakers": stats})
}

func bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "id", "invalid booking ID format")
		return uuid.Nil, false
	}
	return id, true
}

// StatusFor maps a booking outcome to its HTTP status.
func StatusFor(outcome booking.Outcome) int {
	switch outcome {
	case booking.OutcomeBooked:
		return http.StatusCreated
	case booking.OutcomeUpdated, booking.OutcomeCancelled:
		return http.StatusOK
	case booking.OutcomeInvalid:
		return http.StatusBadRequest
	case booking.OutcomeNotFound:
		return http.StatusNotFound
	case booking.OutcomeConflict:
		return http.StatusConflict
	case booking.OutcomeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeResult(c *gin.Context, res booking.Result, err error) {
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !res.OK() {
		body := gin.H{"outcome": res.Outcome, "error": res.Err().Error()}
		if res.Field != "" {
			body["field"] = res.Field
		}
		if res.Frequency != nil {
			body["frequency"] = res.Frequency
		}
		c.JSON(StatusFor(res.Outcome), body)
		return
	}
	c.JSON(StatusFor(res.Outcome), gin.H{"outcome": res.Outcome, "booking": res.Booking})
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrFrequencyLimit):
		status = http.StatusTooManyRequests
	case errors.Is(err, booking.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
		c.Header("Retry-After", "30")
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, field, msg string) {
	body := gin.H{"outcome": booking.OutcomeInvalid, "error": msg}
	if field != "" {
		body["field"] = field
	}
	c.JSON(http.StatusBadRequest, body)
}
