package correlate

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
)

// Service walks an ordered resolver chain with short-circuit OR semantics:
// the first applicable resolver reporting a match wins, later resolvers
// never downgrade it. No applicable resolver means no correlation.
type Service struct {
	pipeline []Resolver
	logger   core.Logger
}

type Option func(*Service)

func WithLogger(logger core.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(resolvers []Resolver, opts ...Option) (*Service, error) {
	if len(resolvers) == 0 {
		return nil, fmt.Errorf("correlate: at least one resolver is required")
	}
	pipeline := make([]Resolver, 0, len(resolvers))
	for i, resolver := range resolvers {
		if resolver == nil {
			return nil, fmt.Errorf("correlate: resolver at position %d is nil", i)
		}
		pipeline = append(pipeline, resolver)
	}
	_, logger := glog.Resolve("correlate", nil, nil)
	service := &Service{
		pipeline: pipeline,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(service)
	}
	return service, nil
}

// Default builds the standard chain: entity-specific resolvers ahead of the
// generic name fallback.
func Default(opts ...Option) (*Service, error) {
	return New([]Resolver{
		OpportunityResolver{},
		CompanyResolver{},
		NameResolver{},
	}, opts...)
}

func (s *Service) Matches(ctx context.Context, strategyKey string, item core.Record, another core.Record) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("correlate: service is nil")
	}
	left := FromRecord(item)
	right := FromRecord(another)
	for _, resolver := range s.pipeline {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !resolver.CanResolveFor(strategyKey) {
			continue
		}
		matched, err := resolver.Matches(left, right)
		if err != nil {
			return false, err
		}
		if matched {
			s.logger.Debug("correlation matched",
				"resolver", resolver.Name(),
				"strategy", strategyKey,
			)
			return true, nil
		}
	}
	return false, nil
}

var _ core.CorrelationMatcher = (*Service)(nil)
