package state

import "context"

// Service is the resolve-then-derive read path consumed by the API layer.
type Service struct {
	resolver *Resolver
}

func NewService(resolver *Resolver) *Service {
	return &Service{resolver: resolver}
}

// Status resolves an identifier and derives its lifecycle status.
func (s *Service) Status(ctx context.Context, identifier string) (*Status, error) {
	g, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return Derive(g)
}
