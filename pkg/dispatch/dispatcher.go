package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudops-tools/quota-notifier/pkg/compose"
	"github.com/cloudops-tools/quota-notifier/pkg/model"
	"github.com/cloudops-tools/quota-notifier/pkg/throttle"
)

// Result counts the delivery outcomes for one organization's recipients.
type Result struct {
	Attempted int
	Sent      int
	Throttled int
	Failed    int
}

// Dispatcher sends the composed alert to each eligible recipient and updates
// the throttle store on confirmed delivery. Delivery is fire-and-continue
// per recipient: one failed send never blocks the others. A throttle store
// I/O error is the exception; it aborts the remaining sends because the
// dedup invariant can no longer be guaranteed.
type Dispatcher struct {
	channel  Channel
	store    throttle.Store
	composer *compose.Composer
	sender   string
	cooldown time.Duration
	logger   *slog.Logger

	// keymu guards keys; each entry serializes check/send/record for one
	// recipient email. Entries are never removed: the key set is a small,
	// slowly-changing set of humans.
	keymu sync.Mutex
	keys  map[string]*sync.Mutex
}

// New creates a dispatcher. sender is the envelope from-address; cooldown is
// the minimum time between sends to the same recipient.
func New(channel Channel, store throttle.Store, composer *compose.Composer, sender string, cooldown time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		channel:  channel,
		store:    store,
		composer: composer,
		sender:   sender,
		cooldown: cooldown,
		logger:   logger,
		keys:     make(map[string]*sync.Mutex),
	}
}

// Dispatch delivers one organization's alert to its recipients, one
// concurrent send per recipient. The returned error is non-nil only for
// throttle store failures and means the caller must abort the pass's
// remaining sends.
func (d *Dispatcher) Dispatch(ctx context.Context, snap model.OrgUsageSnapshot, recipients []model.Recipient) (Result, error) {
	subject, err := d.composer.Subject(snap)
	if err != nil {
		d.logger.Error("render subject", "org", snap.OrgName, "error", err)
		return Result{}, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		res      Result
		storeErr error
		aborted  atomic.Bool
	)

	for _, rcpt := range recipients {
		if rcpt.Email == "" {
			continue
		}
		wg.Add(1)
		go func(rcpt model.Recipient) {
			defer wg.Done()
			if aborted.Load() {
				return
			}

			unlock := d.lockKey(rcpt.Email)
			defer unlock()

			now := time.Now().UTC()
			ok, err := d.store.ShouldSend(ctx, rcpt.Email, now, d.cooldown)
			if err != nil {
				aborted.Store(true)
				mu.Lock()
				storeErr = err
				mu.Unlock()
				d.logger.Error("throttle check failed", "recipient", rcpt.Email, "error", err)
				return
			}
			if !ok {
				d.logger.Debug("recipient inside cooldown window",
					"org", snap.OrgName, "recipient", rcpt.Email)
				mu.Lock()
				res.Throttled++
				mu.Unlock()
				return
			}

			body, err := d.composer.Body(snap, rcpt)
			if err != nil {
				d.logger.Error("render body", "org", snap.OrgName, "recipient", rcpt.Email, "error", err)
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return
			}

			mu.Lock()
			res.Attempted++
			mu.Unlock()

			if err := d.channel.Send(ctx, d.sender, rcpt.Email, subject, body); err != nil {
				// Recipient stays eligible on the next pass.
				d.logger.Error("delivery failed",
					"channel", d.channel.Name(), "org", snap.OrgName,
					"recipient", rcpt.Email, "error", err)
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return
			}

			// Record with a non-cancelable context so shutdown between the
			// send and the record cannot leave a sent-but-unrecorded state.
			if err := d.store.RecordSend(context.WithoutCancel(ctx), rcpt.Email, now); err != nil {
				aborted.Store(true)
				mu.Lock()
				storeErr = err
				mu.Unlock()
				d.logger.Error("record send failed", "recipient", rcpt.Email, "error", err)
				return
			}

			d.logger.Info("notification sent",
				"channel", d.channel.Name(), "org", snap.OrgName,
				"recipient", rcpt.Email, "percent_used", snap.PercentUsed)
			mu.Lock()
			res.Sent++
			mu.Unlock()
		}(rcpt)
	}

	wg.Wait()
	return res, storeErr
}

func (d *Dispatcher) lockKey(email string) func() {
	d.keymu.Lock()
	m, ok := d.keys[email]
	if !ok {
		m = &sync.Mutex{}
		d.keys[email] = m
	}
	d.keymu.Unlock()

	m.Lock()
	return m.Unlock
}
