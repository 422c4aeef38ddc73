package usecase

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	orderdom "storefront/internal/domain/order"
	paymentdom "storefront/internal/domain/payment"
	recondom "storefront/internal/domain/reconciliation"
)

// ------------------------------------------------------------
// gateway
// ------------------------------------------------------------

type fakeTokens struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeTokens) GetToken(context.Context) (paymentdom.GatewayCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return paymentdom.GatewayCredential{}, f.err
	}
	return paymentdom.GatewayCredential{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type fakeGateway struct {
	mu sync.Mutex

	createErr error
	created   []paymentdom.PaymentIntent

	capture    paymentdom.CaptureResult
	captureErr error
	captures   int
	// blocks CaptureOrder until closed (when non-nil)
	release chan struct{}
	waiting int32

	getOrder    paymentdom.CaptureResult
	getOrderErr error
	getOrders   int
}

func (f *fakeGateway) CreateOrder(_ context.Context, in paymentdom.PaymentIntent) (paymentdom.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return paymentdom.GatewayOrder{}, f.createErr
	}
	f.created = append(f.created, in)
	return paymentdom.GatewayOrder{ID: "ORD-1", Status: paymentdom.GatewayOrderCreated}, nil
}

func (f *fakeGateway) CaptureOrder(_ context.Context, id string) (paymentdom.CaptureResult, error) {
	if f.release != nil {
		atomic.AddInt32(&f.waiting, 1)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if f.captureErr != nil {
		return paymentdom.CaptureResult{}, f.captureErr
	}
	c := f.capture
	c.GatewayOrderID = id
	return c, nil
}

func (f *fakeGateway) GetOrder(_ context.Context, id string) (paymentdom.CaptureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrders++
	if f.getOrderErr != nil {
		return paymentdom.CaptureResult{}, f.getOrderErr
	}
	c := f.getOrder
	c.GatewayOrderID = id
	return c, nil
}

func (f *fakeGateway) captureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

func completedCapture(txn, amount string) paymentdom.CaptureResult {
	return paymentdom.CaptureResult{
		TransactionID: txn,
		Status:        paymentdom.StatusCompleted,
		CaptureStatus: paymentdom.StatusCompleted,
		Amount:        paymentdom.MustMoney(amount),
		Currency:      "BRL",
	}
}

// ------------------------------------------------------------
// stores
// ------------------------------------------------------------

type memIntents struct {
	mu   sync.Mutex
	byID map[string]paymentdom.PaymentIntent
	err  error
}

func newMemIntents() *memIntents {
	return &memIntents{byID: map[string]paymentdom.PaymentIntent{}}
}

func (m *memIntents) SaveIntent(_ context.Context, id string, in paymentdom.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byID[id]; ok {
		return paymentdom.ErrConflict
	}
	m.byID[id] = in
	return nil
}

func (m *memIntents) GetIntent(_ context.Context, id string) (paymentdom.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.byID[id]
	if !ok {
		return paymentdom.PaymentIntent{}, paymentdom.ErrIntentNotFound
	}
	return in, nil
}

type memLedger struct {
	mu      sync.Mutex
	entries map[string]recondom.Entry
	// first failAppends calls fail with a transient error
	failAppends int
	appends     int
	// first failOrderLookups GetByGatewayOrderID calls fail with a transient error
	failOrderLookups int
	// lookups report ErrNotFound even when the row exists (stale index)
	hideFromOrderLookup bool
	hideFromTxnLookup   bool
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[string]recondom.Entry{}}
}

func (m *memLedger) Append(_ context.Context, e recondom.Entry) (recondom.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.failAppends > 0 {
		m.failAppends--
		return recondom.Entry{}, errors.New("ledger unavailable")
	}
	if stored, ok := m.entries[e.TransactionID]; ok {
		return stored, recondom.ErrConflict
	}
	m.entries[e.TransactionID] = e
	return e, nil
}

func (m *memLedger) GetByTransactionID(_ context.Context, id string) (recondom.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || m.hideFromTxnLookup {
		return recondom.Entry{}, recondom.ErrNotFound
	}
	return e, nil
}

func (m *memLedger) GetByGatewayOrderID(_ context.Context, id string) (recondom.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOrderLookups > 0 {
		m.failOrderLookups--
		return recondom.Entry{}, errors.New("ledger query timeout")
	}
	if m.hideFromOrderLookup {
		return recondom.Entry{}, recondom.ErrNotFound
	}
	for _, e := range m.entries {
		if e.GatewayOrderID == id {
			return e, nil
		}
	}
	return recondom.Entry{}, recondom.ErrNotFound
}

func (m *memLedger) List(_ context.Context, f recondom.Filter, p recondom.Page) (recondom.PageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []recondom.Entry{}
	for _, e := range m.entries {
		if f.Outcome != "" && e.Outcome != f.Outcome {
			continue
		}
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].TransactionID < all[j].TransactionID
	})

	start := (p.Number - 1) * p.PerPage
	if start > len(all) {
		start = len(all)
	}
	end := start + p.PerPage
	if end > len(all) {
		end = len(all)
	}
	return recondom.PageResult{
		Items:      all[start:end],
		TotalCount: len(all),
		TotalPages: (len(all) + p.PerPage - 1) / p.PerPage,
		Page:       p.Number,
		PerPage:    p.PerPage,
	}, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memLedger) only() recondom.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		return e
	}
	return recondom.Entry{}
}

type memOrderIndex struct {
	mu   sync.Mutex
	recs map[string]orderdom.OrderRecord
}

func newMemOrderIndex() *memOrderIndex {
	return &memOrderIndex{recs: map[string]orderdom.OrderRecord{}}
}

func (m *memOrderIndex) GetByTransactionID(_ context.Context, id string) (orderdom.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return orderdom.OrderRecord{}, orderdom.ErrNotFound
	}
	return r, nil
}

func (m *memOrderIndex) Save(_ context.Context, rec orderdom.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.TransactionID]; ok {
		return orderdom.ErrConflict
	}
	m.recs[rec.TransactionID] = rec
	return nil
}

// ------------------------------------------------------------
// commerce backend
// ------------------------------------------------------------

type fakeBackend struct {
	mu       sync.Mutex
	nextID   int64
	err      error
	requests []orderdom.BackendOrderRequest
}

func (f *fakeBackend) CreateOrder(_ context.Context, req orderdom.BackendOrderRequest) (orderdom.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return orderdom.OrderRecord{}, f.err
	}
	id := f.nextID
	f.nextID++
	return orderdom.OrderRecord{
		ID:            id,
		Number:        "#" + strconv.FormatInt(id, 10),
		TransactionID: req.TransactionID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (f *fakeBackend) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// ------------------------------------------------------------
// notifier / export sink
// ------------------------------------------------------------

type recordingNotifier struct {
	mu      sync.Mutex
	entries []recondom.Entry
	causes  []error
}

func (r *recordingNotifier) NotifyReconciliation(_ context.Context, e recondom.Entry, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	r.causes = append(r.causes, cause)
	return nil
}

type memSink struct {
	name        string
	contentType string
	data        []byte
	err         error
}

func (m *memSink) Put(_ context.Context, name, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.name, m.contentType, m.data = name, contentType, data
	return "gs://recon-bucket/" + name, nil
}
