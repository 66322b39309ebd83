package domain_test

import (
	"strings"
	"testing"

	"github.com/deskhub/helpdesk/internal/domain"
)

func TestCreateTicketRequest_Validate(t *testing.T) {
	valid := domain.CreateTicketRequest{
		RequesterID: "req-1",
		Title:       "Printer on fire",
		Body:        "It is very much on fire.",
	}

	t.Run("valid request passes", func(t *testing.T) {
		r := valid
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty requester", func(t *testing.T) {
		r := valid
		r.RequesterID = ""
		if err := r.Validate(); err != domain.ErrInvalidRequester {
			t.Fatalf("expected ErrInvalidRequester, got %v", err)
		}
	})

	t.Run("empty title", func(t *testing.T) {
		r := valid
		r.Title = ""
		if err := r.Validate(); err != domain.ErrInvalidTitle {
			t.Fatalf("expected ErrInvalidTitle, got %v", err)
		}
	})

	t.Run("title too long", func(t *testing.T) {
		r := valid
		r.Title = strings.Repeat("x", 501)
		if err := r.Validate(); err != domain.ErrInvalidTitle {
			t.Fatalf("expected ErrInvalidTitle, got %v", err)
		}
	})
}

func TestTicketStatus_IsOpen(t *testing.T) {
	open := []domain.TicketStatus{domain.StatusNew, domain.StatusInProgress, domain.StatusWaiting}
	for _, s := range open {
		if !s.IsOpen() {
			t.Fatalf("%s should count as open", s)
		}
	}

	closedOut := []domain.TicketStatus{domain.StatusResolved, domain.StatusClosed}
	for _, s := range closedOut {
		if s.IsOpen() {
			t.Fatalf("%s should not count as open", s)
		}
	}
}

func TestUpdateTicketRequest_Validate(t *testing.T) {
	bad := domain.TicketStatus("archived")
	r := domain.UpdateTicketRequest{Status: &bad}
	if err := r.Validate(); err != domain.ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	good := domain.StatusWaiting
	r = domain.UpdateTicketRequest{Status: &good}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
