package domain_test

import (
	"testing"

	"github.com/deskhub/helpdesk/internal/domain"
)

func TestCreateAgentRequest_Validate(t *testing.T) {
	valid := domain.CreateAgentRequest{
		Name:  "Ada",
		Email: "ada@example.com",
		Tier:  domain.TierStandard,
	}

	t.Run("valid request passes", func(t *testing.T) {
		r := valid
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		r := valid
		r.Name = ""
		if err := r.Validate(); err != domain.ErrInvalidName {
			t.Fatalf("expected ErrInvalidName, got %v", err)
		}
	})

	t.Run("empty tier defaults to standard", func(t *testing.T) {
		r := valid
		r.Tier = ""
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if r.Tier != domain.TierStandard {
			t.Fatalf("expected tier standard, got %s", r.Tier)
		}
	})

	t.Run("invalid tier", func(t *testing.T) {
		r := valid
		r.Tier = "manager"
		if err := r.Validate(); err != domain.ErrInvalidTier {
			t.Fatalf("expected ErrInvalidTier, got %v", err)
		}
	})
}

func TestAgent_Eligible(t *testing.T) {
	a := domain.Agent{ID: "a1", Tier: domain.TierStandard}
	if !a.Eligible() {
		t.Fatal("standard agent should be eligible")
	}

	a.ExcludedFromAutoAssignment = true
	if a.Eligible() {
		t.Fatal("excluded agent must not be eligible")
	}
}
