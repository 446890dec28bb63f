package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/wallet-service/internal/domain"
	"github.com/vendora/wallet-service/internal/store"
)

// memRepo is an in-memory Repository with the same idempotency and balance
// semantics as the Postgres implementation, guarded by one mutex so the
// concurrency tests exercise real contention.
type memRepo struct {
	mu sync.Mutex

	wallets     map[uuid.UUID]*domain.Wallet
	txs         map[string]*domain.Transaction
	txOrder     []string
	withdrawals map[uuid.UUID]*domain.WithdrawalRequest
	methods     map[string]*domain.WithdrawMethod
}

func newMemRepo() *memRepo {
	return &memRepo{
		wallets:     make(map[uuid.UUID]*domain.Wallet),
		txs:         make(map[string]*domain.Transaction),
		withdrawals: make(map[uuid.UUID]*domain.WithdrawalRequest),
		methods: map[string]*domain.WithdrawMethod{
			"bank_transfer": {
				ID:          "bank_transfer",
				DisplayName: "Bank Transfer",
				MinAmount:   1000,
				MaxAmount:   1000000,
				Enabled:     true,
			},
			"mobile_money": {
				ID:          "mobile_money",
				DisplayName: "Mobile Money",
				MinAmount:   500,
				MaxAmount:   0,
				Enabled:     true,
			},
			"legacy_cheque": {
				ID:          "legacy_cheque",
				DisplayName: "Cheque",
				MinAmount:   1000,
				Enabled:     false,
			},
		},
	}
}

func (m *memRepo) applyLocked(p store.ApplyParams) (*domain.Transaction, bool, error) {
	if p.Amount <= 0 {
		return nil, false, store.ErrInvalidAmount
	}

	if existing, ok := m.txs[p.TransactionID]; ok {
		cp := *existing
		return &cp, true, nil
	}

	w, ok := m.wallets[p.WalletID]
	if !ok {
		if p.Type != domain.TxTypeCredit {
			return nil, false, store.ErrWalletNotFound
		}
		w = &domain.Wallet{ID: p.WalletID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		m.wallets[p.WalletID] = w
	}

	balance, onHold := w.Balance, w.OnHold
	available := balance - onHold
	switch p.Type {
	case domain.TxTypeCredit:
		balance += p.Amount
	case domain.TxTypeDebit:
		if p.FromHold {
			if onHold < p.Amount {
				return nil, false, store.ErrInsufficientHold
			}
			balance -= p.Amount
			onHold -= p.Amount
		} else {
			if available < p.Amount {
				return nil, false, store.ErrInsufficientFunds
			}
			balance -= p.Amount
		}
	case domain.TxTypeHold:
		if available < p.Amount {
			return nil, false, store.ErrInsufficientFunds
		}
		onHold += p.Amount
	case domain.TxTypeRelease:
		if onHold < p.Amount {
			return nil, false, store.ErrInsufficientHold
		}
		onHold -= p.Amount
	default:
		return nil, false, store.ErrInvalidTransactionType
	}

	newPoints := w.LoyaltyPoints + p.Points
	if newPoints < 0 {
		return nil, false, store.ErrInsufficientPoints
	}

	w.Balance, w.OnHold, w.LoyaltyPoints = balance, onHold, newPoints
	w.UpdatedAt = time.Now()

	record := &domain.Transaction{
		ID:          p.TransactionID,
		WalletID:    p.WalletID,
		Type:        p.Type,
		Amount:      p.Amount,
		Method:      p.Method,
		Description: p.Description,
		Status:      domain.TxStatusCompleted,
		Points:      p.Points,
		Meta:        p.Meta,
		CreatedAt:   time.Now(),
	}
	m.txs[p.TransactionID] = record
	m.txOrder = append(m.txOrder, p.TransactionID)
	cp := *record
	return &cp, false, nil
}

func (m *memRepo) ApplyTransaction(ctx context.Context, p store.ApplyParams) (*domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(p)
}

func (m *memRepo) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memRepo) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[transactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *memRepo) ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []domain.Transaction
	// Newest-first with inclusive date bounds, matching the SQL read path.
	for i := len(m.txOrder) - 1; i >= 0; i-- {
		tx := m.txs[m.txOrder[i]]
		if tx.WalletID != walletID {
			continue
		}
		if opts.Type != "" && tx.Type != opts.Type {
			continue
		}
		if opts.DateFrom != nil && tx.CreatedAt.Before(*opts.DateFrom) {
			continue
		}
		if opts.DateTo != nil && tx.CreatedAt.After(*opts.DateTo) {
			continue
		}
		matched = append(matched, *tx)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *memRepo) SetWithdrawalProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.withdrawals[id]
	if !ok {
		return store.ErrWithdrawalNotFound
	}
	ref := providerRef
	req.ProviderRef = &ref
	return nil
}

func (m *memRepo) CreateWithdrawalWithHold(ctx context.Context, p store.CreateWithdrawalParams) (*domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req := &domain.WithdrawalRequest{
		ID:          p.ID,
		WalletID:    p.WalletID,
		Amount:      p.Amount,
		MethodID:    p.MethodID,
		AccountInfo: p.AccountInfo,
		Status:      domain.WithdrawalPending,
		CreatedAt:   time.Now(),
	}

	_, replayed, err := m.applyLocked(store.ApplyParams{
		WalletID:      p.WalletID,
		TransactionID: req.HoldKey(),
		Type:          domain.TxTypeHold,
		Amount:        p.Amount,
		Method:        "withdrawal",
		Meta:          map[string]string{"withdrawal_id": p.ID.String()},
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		if existing, ok := m.withdrawals[p.ID]; ok {
			cp := *existing
			return &cp, nil
		}
	}

	m.withdrawals[p.ID] = req
	cp := *req
	return &cp, nil
}

func (m *memRepo) ResolveWithdrawal(ctx context.Context, p store.ResolveWithdrawalParams) (*domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.withdrawals[p.ID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}

	if req.Status != domain.WithdrawalPending {
		cp := *req
		if req.Status == p.NewStatus {
			return &cp, nil
		}
		return &cp, store.ErrInvalidWithdrawalState
	}

	params := store.ApplyParams{
		WalletID: req.WalletID,
		Amount:   req.Amount,
		Method:   "withdrawal",
		Meta:     map[string]string{"withdrawal_id": req.ID.String()},
	}
	if p.NewStatus == domain.WithdrawalApproved {
		params.TransactionID = req.SettleKey()
		params.Type = domain.TxTypeDebit
		params.FromHold = true
	} else {
		params.TransactionID = req.ReleaseKey()
		params.Type = domain.TxTypeRelease
	}
	if _, _, err := m.applyLocked(params); err != nil {
		return nil, err
	}

	now := time.Now()
	decidedBy := p.DecidedBy
	req.Status = p.NewStatus
	req.DecidedAt = &now
	req.DecidedBy = &decidedBy
	cp := *req
	return &cp, nil
}

func (m *memRepo) FindWithdrawalByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.withdrawals[id]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memRepo) ListWithdrawalsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WithdrawalRequest
	for _, req := range m.withdrawals {
		if req.WalletID != walletID {
			continue
		}
		if opts.Status != "" && req.Status != opts.Status {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (m *memRepo) ListPendingWithdrawals(ctx context.Context, limit int, olderThan *time.Time) ([]domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WithdrawalRequest
	for _, req := range m.withdrawals {
		if req.Status != domain.WithdrawalPending {
			continue
		}
		if olderThan != nil && !req.CreatedAt.Before(*olderThan) {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (m *memRepo) FindWithdrawMethodByID(ctx context.Context, id string) (*domain.WithdrawMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	method, ok := m.methods[id]
	if !ok {
		return nil, store.ErrWithdrawMethodNotFound
	}
	cp := *method
	return &cp, nil
}

func (m *memRepo) ListWithdrawMethods(ctx context.Context) ([]domain.WithdrawMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WithdrawMethod
	for _, method := range m.methods {
		if method.Enabled {
			out = append(out, *method)
		}
	}
	return out, nil
}

// setTransactionTime backdates a stored transaction so tests can seed
// history across a known timeline.
func (m *memRepo) setTransactionTime(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.txs[id]; ok {
		tx.CreatedAt = at
	}
}

// ledgerTxCount returns how many stored transactions carry the given id
// prefix, without taking the service path.
func (m *memRepo) ledgerTxCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id := range m.txs {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			count++
		}
	}
	return count
}

// capturePublisher records every published event for assertion.
type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *capturePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) byRoutingKey(key string) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedEvent
	for _, e := range p.events {
		if e.routingKey == key {
			out = append(out, e)
		}
	}
	return out
}

// fixedLimiter returns a preset count from ConsumeRateLimit.
type fixedLimiter struct {
	count int
	err   error

	calls int
}

func (l *fixedLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	l.calls++
	if l.err != nil {
		return 0, 0, l.err
	}
	return l.count, 0, nil
}
