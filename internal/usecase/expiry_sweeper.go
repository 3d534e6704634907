package usecase

import (
	"context"
	"errors"
	"time"

	"signet/internal/domain"
)

type ExpireRequestsResponse struct {
	Expired int
}

// ExpireRequests moves open requests past their deadline to expired.
// The transition is a conditional update, so a sweep racing a signer or
// a second sweep no-ops instead of double-firing; already-collected
// signatures stay valid.
type ExpireRequests struct {
	Store Store
	Clock Clock
}

func (uc *ExpireRequests) Execute(ctx context.Context) (*ExpireRequestsResponse, error) {
	now := uc.now().UTC().Truncate(time.Microsecond)
	requests, err := uc.Store.Requests().ListExpirable(ctx, now)
	if err != nil {
		return nil, err
	}

	resp := &ExpireRequestsResponse{}
	var firstErr error
	for _, request := range requests {
		request := request
		expired := false
		err := uc.Store.WithTx(ctx, func(tx Store) error {
			changed, err := tx.Requests().UpdateStatus(ctx, request.ID,
				[]domain.RequestStatus{domain.RequestPending, domain.RequestInProgress},
				domain.RequestExpired, nil)
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
			deadline := now
			if request.Deadline != nil {
				deadline = *request.Deadline
			}
			emitter := NewAuditEmitter(tx.AuditEvents(), uc.Clock)
			if err := emitter.EmitRequestExpired(ctx, request.DocumentID, request.ID, deadline); err != nil {
				return err
			}
			if err := uc.rederiveDocument(ctx, tx, &request); err != nil {
				return err
			}
			expired = true
			return nil
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if expired {
			resp.Expired++
		}
	}
	return resp, firstErr
}

func (uc *ExpireRequests) rederiveDocument(ctx context.Context, tx Store, request *domain.SignatureRequest) error {
	_, err := tx.Documents().GetByID(ctx, request.DocumentID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	sigs, err := tx.Signatures().ListByDocument(ctx, request.DocumentID)
	if err != nil {
		return err
	}
	expired := *request
	expired.Status = domain.RequestExpired
	status := DeriveDocumentStatus(activeSignatures(sigs), countRevoked(sigs), &expired)
	return tx.Documents().UpdateStatus(ctx, request.DocumentID, status, nil)
}

func (uc *ExpireRequests) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now().UTC()
}

// ExpirySweeper drives ExpireRequests on a ticker until the context is
// cancelled. OnSweep, when set, observes each pass for logging and
// metrics without coupling this package to either.
type ExpirySweeper struct {
	Expire   *ExpireRequests
	Interval time.Duration
	OnSweep  func(expired int, err error)
}

func (s *ExpirySweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	s.sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	resp, err := s.Expire.Execute(ctx)
	expired := 0
	if resp != nil {
		expired = resp.Expired
	}
	if s.OnSweep != nil {
		s.OnSweep(expired, err)
	}
}
