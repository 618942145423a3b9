package carrier

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Service routes shipment operations to registered carriers by code.
type Service struct {
	providers map[Code]Provider
	order     []Code
}

func NewService(providers ...Provider) *Service {
	s := &Service{providers: make(map[Code]Provider)}
	for _, p := range providers {
		s.Register(p)
	}
	return s
}

func (s *Service) Register(p Provider) {
	if _, ok := s.providers[p.Code()]; !ok {
		s.order = append(s.order, p.Code())
	}
	s.providers[p.Code()] = p
}

func (s *Service) Provider(code Code) (Provider, error) {
	p, ok := s.providers[code]
	if !ok {
		return nil, &ProviderError{
			Message: "Provider " + string(code) + " not registered",
			Code:    "PROVIDER_NOT_FOUND",
			Carrier: code,
		}
	}
	return p, nil
}

func (s *Service) Available() []Provider {
	var out []Provider
	for _, code := range s.order {
		if p := s.providers[code]; p.Configured() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) CreateShipment(ctx context.Context, req ShipmentRequest, code Code) (*ShipmentResult, error) {
	p, err := s.Provider(code)
	if err != nil {
		return nil, err
	}
	return p.CreateShipment(ctx, req)
}

func (s *Service) CancelShipment(ctx context.Context, shipmentID string, code Code) (bool, error) {
	p, err := s.Provider(code)
	if err != nil {
		return false, err
	}
	return p.CancelShipment(ctx, shipmentID)
}

func (s *Service) GetRates(ctx context.Context, req RateRequest, code Code) ([]RateQuote, error) {
	p, err := s.Provider(code)
	if err != nil {
		return nil, err
	}
	return p.GetRates(ctx, req)
}

// GetAllRates queries every configured carrier concurrently. A carrier that
// fails is logged and left out of the result.
func (s *Service) GetAllRates(ctx context.Context, req RateRequest) []RateQuote {
	providers := s.Available()
	results := make([][]RateQuote, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			rates, err := p.GetRates(ctx, req)
			if err != nil {
				slog.ErrorContext(ctx, "failed to get rates", "carrier", p.Code(), "error", err)
				return nil
			}
			results[i] = rates
			return nil
		})
	}
	_ = g.Wait()

	var out []RateQuote
	for _, rates := range results {
		out = append(out, rates...)
	}
	return out
}
