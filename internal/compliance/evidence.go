package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"clearance/internal/certification"
)

// evidence is everything one evaluation reads from the stores.
type evidence struct {
	required []string
	records  []certification.Record
}

// gatherEvidence reads the required set and the employee's records in
// parallel. The first failure cancels the other read.
func (s *Service) gatherEvidence(ctx context.Context, employee *certification.Employee, evalCtx EvaluationContext) (*evidence, error) {
	g, ctx := errgroup.WithContext(ctx)
	ev := &evidence{}

	goRecover(g, func() error {
		start := time.Now()
		required, err := s.requirements.Resolve(ctx, employee.OrganisationID, evalCtx)
		s.metrics.ObserveFetchLatency("requirements", time.Since(start))
		if err != nil {
			return err
		}
		ev.required = required
		return nil
	})

	goRecover(g, func() error {
		start := time.Now()
		records, err := s.records.ListRecords(ctx, employee.ID, nil)
		s.metrics.ObserveFetchLatency("records", time.Since(start))
		if err != nil {
			return err
		}
		ev.records = records
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ev, nil
}

var errFetchPanicked = errors.New("evidence fetch panicked")

// goRecover runs fn on g and reports a panic as an error.
func goRecover(g *errgroup.Group, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%w: %v", errFetchPanicked, rec)
			}
		}()
		return fn()
	})
}
