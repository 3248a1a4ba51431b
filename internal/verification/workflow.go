// Package verification runs admin decisions on submitted startups.
package verification

import (
	"context"
	"time"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/domain/startup"
	"github.com/geocoder89/fintechindex/internal/notifications"
)

type Store interface {
	SetVerification(ctx context.Context, id string, v startup.Verification) (startup.Startup, error)
	SetVerificationMany(ctx context.Context, ids []string, v startup.Verification) (int64, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev notifications.Event)
}

type Workflow struct {
	store  Store
	notify Dispatcher
	now    func() time.Time
}

func NewWorkflow(store Store, notify Dispatcher) *Workflow {
	return &Workflow{store: store, notify: notify, now: time.Now}
}

// VerifyOne records the decision on one startup. Deciding an already decided
// startup again is allowed and refreshes verifiedBy and verifiedAt.
func (w *Workflow) VerifyOne(ctx context.Context, id, status, notes string, actor auth.Identity) (startup.Startup, error) {
	v, err := startup.NewVerification(status, actor.Email, notes, w.now())
	if err != nil {
		return startup.Startup{}, err
	}

	s, err := w.store.SetVerification(ctx, id, v)
	if err != nil {
		return startup.Startup{}, err
	}

	w.notify.Dispatch(ctx, notifications.StartupVerified(s))

	return s, nil
}

// VerifyBulk applies one decision to many startups in a single store update.
// Unknown ids are skipped; the count reports the rows actually modified.
func (w *Workflow) VerifyBulk(ctx context.Context, ids []string, status, notes string, actor auth.Identity) (int64, error) {
	ids, err := startup.NormalizeIDs(ids)
	if err != nil {
		return 0, err
	}

	v, err := startup.NewVerification(status, actor.Email, notes, w.now())
	if err != nil {
		return 0, err
	}

	n, err := w.store.SetVerificationMany(ctx, ids, v)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		w.notify.Dispatch(ctx, notifications.StartupsBulkVerified(v.Status, n, actor.Email))
	}

	return n, nil
}
