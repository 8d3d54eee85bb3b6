package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rcalloway/taxdesk/internal/gate"
	"github.com/rcalloway/taxdesk/internal/model"
)

// FirmLookup is the store surface the standing service reads.
type FirmLookup interface {
	GetByID(id int64) (*model.Firm, error)
}

// StandingService answers the gate's subscription question from the local
// firm record. Stripe is never called on the request path; webhooks keep the
// local record current.
type StandingService struct {
	firms FirmLookup
	now   func() time.Time
}

func NewStandingService(firms FirmLookup) *StandingService {
	return &StandingService{firms: firms, now: time.Now}
}

func (s *StandingService) Standing(ctx context.Context, firmID int64) (gate.Standing, error) {
	firm, err := s.firms.GetByID(firmID)
	if err != nil {
		return gate.Standing{}, fmt.Errorf("get firm: %w", err)
	}
	if firm == nil {
		return gate.Standing{}, fmt.Errorf("firm %d not found", firmID)
	}
	return gate.Standing{
		Active:          firm.SubscriptionActive(s.now()),
		HasBillingSetup: firm.HasBillingSetup(),
	}, nil
}
