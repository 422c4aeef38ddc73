// backend/internal/application/usecase/checkout_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	orderdom "storefront/internal/domain/order"
	paymentdom "storefront/internal/domain/payment"
	recondom "storefront/internal/domain/reconciliation"
)

// OrderRecorder is implemented by OrderUsecase.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, in orderdom.RecordInput) (orderdom.OrderRecord, error)
}

// ReconciliationNotifier alerts operators about captures that need manual work.
// Best-effort: a failure is logged, never surfaced.
type ReconciliationNotifier interface {
	NotifyReconciliation(ctx context.Context, e recondom.Entry, cause error) error
}

const (
	defaultCaptureTimeout = 30 * time.Second
	defaultLedgerAttempts = 4
	defaultLedgerBackoff  = 200 * time.Millisecond

	// ledger detail prefixes (operators grep on these)
	detailIntegrity    = "integrity_hold"
	detailOrderFailure = "order_record_failed"
	detailLedgerOrphan = "ledger_write_failed"
)

// CaptureInput is the capture-order request after HTTP decoding.
type CaptureInput struct {
	GatewayOrderID string

	Lines []orderdom.Line

	Billing        orderdom.Address
	Shipping       orderdom.Address
	SameAsShipping bool

	ShippingSelection    *orderdom.ShippingSelection
	ShippingCost         paymentdom.Money
	FreeShippingEligible bool

	CustomerID int64
}

// CaptureOutcome is what the caller learns about one orchestration.
//
// State is where the orchestration stopped. For ORDER_RECORD_FAILED the money
// has moved and ReconciliationRef (= transaction id) points at the ledger entry.
type CaptureOutcome struct {
	State             paymentdom.State
	Capture           paymentdom.CaptureResult
	Order             *orderdom.OrderRecord
	Entry             *recondom.Entry
	ReconciliationRef string

	// true when the result was replayed from the ledger without a gateway call
	Replayed bool
}

// CaptureUsecase drives CREATED -> AUTHORIZED -> CAPTURED -> {ORDER_RECORDED | ORDER_RECORD_FAILED}.
//
// ✅ once CaptureOrder is sent the orchestration always reaches a terminal state:
// - the capture call and everything after it run on a context detached from the caller
// - a ledger entry is written for every completed capture (retried, idempotent on txn id)
type CaptureUsecase struct {
	tokens  TokenPort
	gateway GatewayPort
	intents paymentdom.IntentRepository
	orders  OrderRecorder
	ledger  recondom.LedgerPort

	notifier ReconciliationNotifier

	captureTimeout time.Duration
	ledgerAttempts int
	ledgerBackoff  time.Duration

	now   func() time.Time
	sleep func(time.Duration)

	flight   singleflight.Group
	inflight sync.WaitGroup
	// guards closed and every inflight.Add
	mu     sync.Mutex
	closed bool
}

// ErrCaptureClosed is returned once Drain has started.
var ErrCaptureClosed = errors.New("capture usecase: shutting down")

func NewCaptureUsecase(
	tokens TokenPort,
	gateway GatewayPort,
	intents paymentdom.IntentRepository,
	orders OrderRecorder,
	ledger recondom.LedgerPort,
) *CaptureUsecase {
	return &CaptureUsecase{
		tokens:         tokens,
		gateway:        gateway,
		intents:        intents,
		orders:         orders,
		ledger:         ledger,
		captureTimeout: defaultCaptureTimeout,
		ledgerAttempts: defaultLedgerAttempts,
		ledgerBackoff:  defaultLedgerBackoff,
		now:            time.Now,
		sleep:          time.Sleep,
	}
}

// WithNotifier: optional operator alert on ORDER_RECORD_FAILED.
func (u *CaptureUsecase) WithNotifier(n ReconciliationNotifier) *CaptureUsecase {
	u.notifier = n
	return u
}

// WithCaptureTimeout bounds the detached capture + resolution calls.
func (u *CaptureUsecase) WithCaptureTimeout(d time.Duration) *CaptureUsecase {
	if d > 0 {
		u.captureTimeout = d
	}
	return u
}

// WithLedgerRetry sets the bounded retry policy for ledger writes.
func (u *CaptureUsecase) WithLedgerRetry(attempts int, backoff time.Duration) *CaptureUsecase {
	if attempts > 0 {
		u.ledgerAttempts = attempts
	}
	if backoff >= 0 {
		u.ledgerBackoff = backoff
	}
	return u
}

// ============================================================
// Capture
// ============================================================

// Capture runs one orchestration for in.GatewayOrderID.
//
// Concurrent calls for the same gateway order id share one run. A gateway order
// id that already has a ledger entry is replayed from the ledger.
func (u *CaptureUsecase) Capture(ctx context.Context, in CaptureInput) (CaptureOutcome, error) {
	if u == nil || u.gateway == nil || u.tokens == nil || u.orders == nil || u.ledger == nil {
		return CaptureOutcome{}, errors.New("capture usecase: dependencies are not wired")
	}

	id := strings.TrimSpace(in.GatewayOrderID)
	if id == "" {
		return CaptureOutcome{}, paymentdom.NewValidationError("orderID", "is required")
	}
	if err := orderdom.ValidateLines(in.Lines); err != nil {
		return CaptureOutcome{}, err
	}
	in.GatewayOrderID = id

	type result struct {
		out CaptureOutcome
		err error
	}

	if !u.begin() {
		return CaptureOutcome{}, ErrCaptureClosed
	}

	// the shared run must not die with whichever caller started it
	runCtx := context.WithoutCancel(ctx)
	ch := u.flight.DoChan(id, func() (any, error) {
		out, err := u.run(runCtx, in)
		return result{out: out, err: err}, nil
	})

	// released when the shared run finishes, even if this caller has left
	resc := make(chan singleflight.Result, 1)
	go func() {
		r := <-ch
		u.inflight.Done()
		resc <- r
	}()

	select {
	case <-ctx.Done():
		// the run keeps going and will still write the ledger
		return CaptureOutcome{}, ctx.Err()
	case r := <-resc:
		res := r.Val.(result)
		return res.out, res.err
	}
}

func (u *CaptureUsecase) begin() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return false
	}
	u.inflight.Add(1)
	return true
}

// Drain stops accepting captures and waits for detached orchestrations still
// running (graceful shutdown).
func (u *CaptureUsecase) Drain(ctx context.Context) error {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()

	done := make(chan struct{})
	go func() {
		u.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *CaptureUsecase) run(ctx context.Context, in CaptureInput) (CaptureOutcome, error) {
	id := in.GatewayOrderID

	// 0) idempotent short-circuit
	if out, ok, err := u.replay(ctx, id); ok {
		return out, err
	}

	intent, err := u.intents.GetIntent(ctx, id)
	if err != nil {
		if errors.Is(err, paymentdom.ErrIntentNotFound) {
			return CaptureOutcome{}, paymentdom.NewValidationError("orderID", "unknown gateway order")
		}
		return CaptureOutcome{}, fmt.Errorf("capture usecase: load intent: %w", err)
	}

	state := paymentdom.StateCreated

	// 1) CREATED -> AUTHORIZED
	if _, err := u.tokens.GetToken(ctx); err != nil {
		log.Printf("[capture] auth failed orderId=%s err=%v", id, err)
		return CaptureOutcome{State: state}, err
	}
	state = u.advance(id, state, paymentdom.StateAuthorized)

	// 2) AUTHORIZED -> CAPTURED
	capture, err := u.captureOrResolve(ctx, id)
	if err != nil {
		return CaptureOutcome{State: state}, err
	}
	state = u.advance(id, state, paymentdom.StateCaptured)

	// 3) CAPTURED -> terminal (committed from here on)
	return u.settle(ctx, in, intent, capture)
}

// captureOrResolve issues the capture once. When its outcome is unknown the order
// is read back once; a COMPLETED capture found there is treated as captured.
func (u *CaptureUsecase) captureOrResolve(ctx context.Context, id string) (paymentdom.CaptureResult, error) {
	cctx, cancel := context.WithTimeout(ctx, u.captureTimeout)
	capture, err := u.gateway.CaptureOrder(cctx, id)
	cancel()
	if err == nil {
		return capture, nil
	}
	if !errors.Is(err, paymentdom.ErrCaptureOutcomeUnknown) {
		log.Printf("[capture] not completed orderId=%s err=%v", id, err)
		return paymentdom.CaptureResult{}, err
	}

	log.Printf("[capture] WARN outcome unknown, resolving orderId=%s err=%v", id, err)

	rctx, rcancel := context.WithTimeout(ctx, u.captureTimeout)
	resolved, rerr := u.gateway.GetOrder(rctx, id)
	rcancel()
	if rerr == nil && resolved.Completed() && strings.TrimSpace(resolved.TransactionID) != "" {
		log.Printf("[capture] resolved as captured orderId=%s txnId=%s", id, resolved.TransactionID)
		return resolved, nil
	}
	if rerr != nil {
		log.Printf("[capture] CRITICAL resolution failed orderId=%s err=%v", id, rerr)
	}
	return paymentdom.CaptureResult{}, err
}

// settle records the order and always writes exactly one ledger entry.
func (u *CaptureUsecase) settle(
	ctx context.Context,
	in CaptureInput,
	intent paymentdom.PaymentIntent,
	capture paymentdom.CaptureResult,
) (CaptureOutcome, error) {
	id := in.GatewayOrderID
	txnID := capture.TransactionID
	if strings.TrimSpace(capture.GatewayOrderID) == "" {
		capture.GatewayOrderID = id
	}
	out := CaptureOutcome{
		State:             paymentdom.StateCaptured,
		Capture:           capture,
		ReconciliationRef: txnID,
	}

	// the transaction may already be settled (the order id lookup can miss it)
	if stored, err := u.ledger.GetByTransactionID(ctx, txnID); err == nil {
		log.Printf("[capture] WARN transaction already in ledger orderId=%s txnId=%s outcome=%s", id, txnID, stored.Outcome)
		return u.replayEntry(ctx, id, stored)
	} else if !errors.Is(err, recondom.ErrNotFound) {
		// order recording stays idempotent on txn id; appendEntry catches a diverging row
		log.Printf("[capture] WARN ledger lookup failed txnId=%s err=%v", txnID, err)
	}

	// amount invariant: never auto-corrected, no order is recorded
	if !capture.MatchesIntent(intent) {
		ie := &paymentdom.IntegrityError{
			TransactionID:    txnID,
			IntendedAmount:   intent.Amount,
			IntendedCurrency: intent.Currency,
			CapturedAmount:   capture.Amount,
			CapturedCurrency: capture.Currency,
		}
		log.Printf("[capture] CRITICAL %v", ie)
		out.State = u.advance(id, out.State, paymentdom.StateOrderRecordFailed)
		out.Entry = u.writeFailed(ctx, capture, detailIntegrity+": "+ie.Error(), ie)
		return out, ie
	}

	rec, err := u.orders.RecordOrder(ctx, orderdom.RecordInput{
		Capture:              capture,
		Intent:               intent,
		Lines:                in.Lines,
		Billing:              in.Billing,
		Shipping:             in.Shipping,
		SameAsShipping:       in.SameAsShipping,
		ShippingSelection:    in.ShippingSelection,
		ShippingCost:         in.ShippingCost,
		FreeShippingEligible: in.FreeShippingEligible,
		CustomerID:           in.CustomerID,
	})
	if err != nil {
		var oe *paymentdom.OrderRecordingError
		if !errors.As(err, &oe) {
			err = &paymentdom.OrderRecordingError{TransactionID: txnID, Err: err}
		}
		log.Printf("[capture] order not recorded orderId=%s txnId=%s err=%v", id, txnID, err)
		out.State = u.advance(id, out.State, paymentdom.StateOrderRecordFailed)
		out.Entry = u.writeFailed(ctx, capture, detailOrderFailure+": "+err.Error(), err)
		return out, err
	}

	out.State = u.advance(id, out.State, paymentdom.StateOrderRecorded)
	out.Order = &rec

	entry, err := recondom.NewRecorded(capture, rec.ID, rec.Number, u.now())
	if err != nil {
		log.Printf("[capture] CRITICAL build ledger entry txnId=%s err=%v", txnID, err)
		return out, nil
	}
	stored, err := u.appendEntry(ctx, entry)
	if errors.Is(err, recondom.ErrOutcomeMismatch) {
		// the order exists but the ledger says it does not
		log.Printf("[capture] CRITICAL ledger outcome mismatch txnId=%s order=%s stored=%s", txnID, orderRef(rec), stored.Outcome)
		u.notify(ctx, stored, fmt.Errorf("order %s recorded: %w", orderRef(rec), err))
		out.State = paymentdom.StateOrderRecordFailed
		out.Entry = &stored
		return out, &paymentdom.OrderRecordingError{TransactionID: txnID, Err: err}
	}
	if err != nil {
		// the order exists; the missing ledger row is an operator task
		log.Printf("[capture] CRITICAL ledger write failed txnId=%s order=%s err=%v", txnID, orderRef(rec), err)
		u.notify(ctx, entry, fmt.Errorf("%s: %w", detailLedgerOrphan, err))
		return out, nil
	}
	out.Entry = &stored

	log.Printf("[capture] OK orderId=%s txnId=%s amount=%s %s order=%s",
		id, txnID, capture.Amount, capture.Currency, orderRef(rec),
	)
	return out, nil
}

// writeFailed persists an ORDER_RECORD_FAILED entry and alerts operators.
func (u *CaptureUsecase) writeFailed(ctx context.Context, capture paymentdom.CaptureResult, detail string, cause error) *recondom.Entry {
	entry, err := recondom.NewFailed(capture, detail, u.now())
	if err != nil {
		log.Printf("[capture] CRITICAL build ledger entry txnId=%s err=%v", capture.TransactionID, err)
		return nil
	}

	stored, err := u.appendEntry(ctx, entry)
	if errors.Is(err, recondom.ErrOutcomeMismatch) {
		log.Printf("[capture] CRITICAL ledger outcome mismatch txnId=%s stored=%s", capture.TransactionID, stored.Outcome)
		u.notify(ctx, stored, errors.Join(cause, err))
		return &stored
	}
	if err != nil {
		log.Printf("[capture] CRITICAL ledger write failed txnId=%s err=%v", capture.TransactionID, err)
		u.notify(ctx, entry, fmt.Errorf("%s: %w", detailLedgerOrphan, errors.Join(cause, err)))
		return &entry
	}

	u.notify(ctx, stored, cause)
	return &stored
}

// appendEntry retries transient failures. ErrConflict means the row already
// exists and the stored entry wins; a stored row with another outcome is
// returned with ErrOutcomeMismatch.
func (u *CaptureUsecase) appendEntry(ctx context.Context, e recondom.Entry) (recondom.Entry, error) {
	var lastErr error
	for attempt := 1; attempt <= u.ledgerAttempts; attempt++ {
		stored, err := u.ledger.Append(ctx, e)
		if err == nil {
			return stored, nil
		}
		if errors.Is(err, recondom.ErrConflict) {
			if stored.Outcome != e.Outcome {
				return stored, fmt.Errorf("txn %s: writing %s, stored %s: %w",
					e.TransactionID, e.Outcome, stored.Outcome, recondom.ErrOutcomeMismatch)
			}
			return stored, nil
		}
		lastErr = err
		log.Printf("[capture] WARN ledger append attempt=%d/%d txnId=%s err=%v",
			attempt, u.ledgerAttempts, e.TransactionID, err)
		if attempt < u.ledgerAttempts && u.ledgerBackoff > 0 {
			u.sleep(u.ledgerBackoff * time.Duration(attempt))
		}
	}
	return recondom.Entry{}, lastErr
}

func (u *CaptureUsecase) notify(ctx context.Context, e recondom.Entry, cause error) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.NotifyReconciliation(ctx, e, cause); err != nil {
		log.Printf("[capture] WARN reconciliation notify failed txnId=%s err=%v", e.TransactionID, err)
	}
}

// replay answers from the ledger when this gateway order id was already settled.
// A failed lookup stops the run before capture: without it a settled order could
// be recorded a second time.
func (u *CaptureUsecase) replay(ctx context.Context, gatewayOrderID string) (CaptureOutcome, bool, error) {
	e, err := u.ledger.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, recondom.ErrNotFound) {
			return CaptureOutcome{}, false, nil
		}
		log.Printf("[capture] WARN ledger lookup failed orderId=%s err=%v", gatewayOrderID, err)
		return CaptureOutcome{}, true, fmt.Errorf("capture usecase: ledger lookup: %w", err)
	}
	out, rerr := u.replayEntry(ctx, gatewayOrderID, e)
	return out, true, rerr
}

// replayEntry rebuilds the outcome of a stored ledger entry.
func (u *CaptureUsecase) replayEntry(ctx context.Context, gatewayOrderID string, e recondom.Entry) (CaptureOutcome, error) {
	capture := paymentdom.CaptureResult{
		GatewayOrderID: e.GatewayOrderID,
		TransactionID:  e.TransactionID,
		Status:         paymentdom.StatusCompleted,
		CaptureStatus:  paymentdom.StatusCompleted,
		Amount:         e.Amount,
		Currency:       e.Currency,
	}
	out := CaptureOutcome{
		Capture:           capture,
		Entry:             &e,
		ReconciliationRef: e.TransactionID,
		Replayed:          true,
	}

	log.Printf("[capture] replay orderId=%s txnId=%s outcome=%s", gatewayOrderID, e.TransactionID, e.Outcome)

	if e.Recorded() {
		out.State = paymentdom.StateOrderRecorded
		out.Order = &orderdom.OrderRecord{
			ID:             e.OrderRecordID,
			Number:         e.OrderRecordNumber,
			TransactionID:  e.TransactionID,
			GatewayOrderID: e.GatewayOrderID,
			CaptureStatus:  paymentdom.StatusCompleted,
		}
		return out, nil
	}

	out.State = paymentdom.StateOrderRecordFailed
	if strings.HasPrefix(e.Detail, detailIntegrity) {
		ie := &paymentdom.IntegrityError{
			TransactionID:    e.TransactionID,
			CapturedAmount:   e.Amount,
			CapturedCurrency: e.Currency,
		}
		if intent, err := u.intents.GetIntent(ctx, gatewayOrderID); err == nil {
			ie.IntendedAmount = intent.Amount
			ie.IntendedCurrency = intent.Currency
		}
		return out, ie
	}
	return out, &paymentdom.OrderRecordingError{TransactionID: e.TransactionID, Err: errors.New(e.Detail)}
}

func (u *CaptureUsecase) advance(id string, from, to paymentdom.State) paymentdom.State {
	if !paymentdom.CanTransition(from, to) {
		log.Printf("[capture] WARN unexpected transition orderId=%s %s -> %s", id, from, to)
	}
	return to
}
