/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed to operate the wallet ledger: the atomic
 * apply primitive, the withdrawal lifecycle compounds, and the read paths for
 * transaction history and withdraw-method configuration.
 *
 * Concurrency model: every mutation locks the wallet row with
 * `SELECT ... FOR UPDATE`, so all operations on the same wallet are
 * linearized by the database while different wallets proceed in parallel.
 * Idempotency: the transaction id is the primary key of `wallet_transactions`;
 * a replayed id is detected under the wallet lock and returns the stored row
 * without mutating anything.
 *
 * @dependencies
 * - context, encoding/json, errors, fmt, strings, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vendora/wallet-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ApplyTransaction executes one ledger mutation as a single database
// transaction. See the Repository interface for the contract.
func (r *PostgresRepository) ApplyTransaction(ctx context.Context, p ApplyParams) (*domain.Transaction, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	record, replayed, err := r.applyInTx(ctx, tx, p)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return record, replayed, nil
}

// applyInTx performs the ledger mutation inside an already-open database
// transaction so the withdrawal compounds can reuse it under their own locks.
func (r *PostgresRepository) applyInTx(ctx context.Context, tx pgx.Tx, p ApplyParams) (*domain.Transaction, bool, error) {
	if p.Amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	if strings.TrimSpace(p.TransactionID) == "" {
		return nil, false, fmt.Errorf("transaction id is required")
	}

	// 1. Lock the wallet row. A wallet is created implicitly on its first
	// credit; every other operation on an unknown wallet fails.
	var balance, onHold, points int64
	lockQuery := `SELECT balance, on_hold, loyalty_points FROM wallets WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(ctx, lockQuery, p.WalletID).Scan(&balance, &onHold, &points)
	if err != nil {
		if err != pgx.ErrNoRows {
			return nil, false, fmt.Errorf("failed to lock wallet: %w", err)
		}
		if p.Type != domain.TxTypeCredit {
			return nil, false, ErrWalletNotFound
		}
		createQuery := `
			INSERT INTO wallets (id, balance, on_hold, loyalty_points, created_at, updated_at)
			VALUES ($1, 0, 0, 0, NOW(), NOW())
			ON CONFLICT (id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, createQuery, p.WalletID); err != nil {
			return nil, false, fmt.Errorf("failed to create wallet: %w", err)
		}
		if err := tx.QueryRow(ctx, lockQuery, p.WalletID).Scan(&balance, &onHold, &points); err != nil {
			return nil, false, fmt.Errorf("failed to lock created wallet: %w", err)
		}
	}

	// 2. Idempotency check under the wallet lock: a duplicate transaction id
	// replays the stored result and performs no balance mutation.
	existing, err := scanTransaction(tx.QueryRow(ctx, transactionSelect+` WHERE id = $1`, p.TransactionID))
	if err == nil {
		return existing, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}

	// 3. Compute and apply the balance effect.
	newBalance, newOnHold, err := applyToBalances(p.Type, p.Amount, balance, onHold, p.FromHold)
	if err != nil {
		return nil, false, err
	}
	newPoints := points + p.Points
	if newPoints < 0 {
		return nil, false, ErrInsufficientPoints
	}

	updateQuery := `
		UPDATE wallets
		SET balance = $2, on_hold = $3, loyalty_points = $4, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateQuery, p.WalletID, newBalance, newOnHold, newPoints); err != nil {
		return nil, false, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	// 4. Append the immutable transaction record.
	metaJSON, err := json.Marshal(p.Meta)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal transaction meta: %w", err)
	}
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
	}
	insertQuery := `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount, method, description, status, points, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		record.ID, record.WalletID, record.Type, record.Amount, record.Method,
		record.Description, record.Status, record.Points, metaJSON,
	).Scan(&record.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert transaction record: %w", err)
	}

	return record, false, nil
}

// GetWallet retrieves the current wallet state. Pure read, no locks.
func (r *PostgresRepository) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	query := `SELECT id, balance, on_hold, loyalty_points, created_at, updated_at FROM wallets WHERE id = $1`
	err := r.db.QueryRow(ctx, query, walletID).Scan(&w.ID, &w.Balance, &w.OnHold, &w.LoyaltyPoints, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

const transactionSelect = `
	SELECT id, wallet_id, type, amount, method, description, status, points, meta, created_at
	FROM wallet_transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var metaJSON []byte
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Method, &t.Description, &t.Status, &t.Points, &metaJSON, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &t.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction meta: %w", err)
		}
	}
	return &t, nil
}

// FindTransactionByID retrieves a single ledger record.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx, transactionSelect+` WHERE id = $1`, transactionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListTransactionsByWallet returns the wallet's history newest-first, with
// optional type and date filters and offset pagination.
func (r *PostgresRepository) ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	conditions := []string{"wallet_id = $1"}
	args := []any{walletID}

	if opts.Type != "" {
		args = append(args, opts.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if opts.DateFrom != nil {
		args = append(args, *opts.DateFrom)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if opts.DateTo != nil {
		args = append(args, *opts.DateTo)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		transactionSelect, strings.Join(conditions, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// SetWithdrawalProviderRef records the external provider's transfer
// reference on the withdrawal request. Ledger transactions are immutable
// once written, so the reference lives on the request row instead.
func (r *PostgresRepository) SetWithdrawalProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	tag, err := r.db.Exec(ctx, `UPDATE withdrawal_requests SET provider_ref = $2 WHERE id = $1`, id, providerRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}

// CreateWithdrawalWithHold reserves the requested amount and persists the
// pending request in one database transaction. If the hold fails the request
// row is never written, so there is no partial state to clean up.
func (r *PostgresRepository) CreateWithdrawalWithHold(ctx context.Context, p CreateWithdrawalParams) (*domain.WithdrawalRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req := &domain.WithdrawalRequest{
		ID:          p.ID,
		WalletID:    p.WalletID,
		Amount:      p.Amount,
		MethodID:    p.MethodID,
		AccountInfo: p.AccountInfo,
		Status:      domain.WithdrawalPending,
	}

	_, replayed, err := r.applyInTx(ctx, tx, ApplyParams{
		WalletID:      p.WalletID,
		TransactionID: req.HoldKey(),
		Type:          domain.TxTypeHold,
		Amount:        p.Amount,
		Method:        "withdrawal",
		Description:   "Withdrawal reservation",
		Meta:          map[string]string{"withdrawal_id": p.ID.String()},
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		// A retried create: the hold and the request already exist.
		existing, err := r.findWithdrawalInTx(ctx, tx, p.ID, false)
		if err == nil {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
			}
			return existing, nil
		}
		if err != ErrWithdrawalNotFound {
			return nil, err
		}
		// Hold committed but the request insert was lost mid-crash; fall
		// through and write the row now.
	}

	accountInfoJSON, err := json.Marshal(p.AccountInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account info: %w", err)
	}
	insertQuery := `
		INSERT INTO withdrawal_requests (id, wallet_id, amount, method_id, account_info, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insertQuery, req.ID, req.WalletID, req.Amount, req.MethodID, accountInfoJSON, req.Status).Scan(&req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert withdrawal request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return req, nil
}

// ResolveWithdrawal drives a pending request to a terminal state. The request
// row is locked, its status re-checked, the ledger settlement or release
// applied, and the status flipped -- all inside one database transaction.
// Replaying a resolution that already reached the same terminal state returns
// the stored request; any other non-pending status returns the current row
// together with ErrInvalidWithdrawalState so callers can surface it.
func (r *PostgresRepository) ResolveWithdrawal(ctx context.Context, p ResolveWithdrawalParams) (*domain.WithdrawalRequest, error) {
	switch p.NewStatus {
	case domain.WithdrawalApproved, domain.WithdrawalRejected, domain.WithdrawalCancelled:
	default:
		return nil, fmt.Errorf("invalid target status %q", p.NewStatus)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := r.findWithdrawalInTx(ctx, tx, p.ID, true)
	if err != nil {
		return nil, err
	}

	if req.Status != domain.WithdrawalPending {
		if req.Status == p.NewStatus {
			// Idempotent replay of an already-applied decision.
			return req, nil
		}
		return req, ErrInvalidWithdrawalState
	}

	ledgerParams := ApplyParams{
		WalletID: req.WalletID,
		Amount:   req.Amount,
		Method:   "withdrawal",
		Meta:     map[string]string{"withdrawal_id": req.ID.String()},
	}
	if p.NewStatus == domain.WithdrawalApproved {
		// Settlement: one debit that also releases the matching hold.
		ledgerParams.TransactionID = req.SettleKey()
		ledgerParams.Type = domain.TxTypeDebit
		ledgerParams.FromHold = true
		ledgerParams.Description = "Withdrawal settlement"
	} else {
		ledgerParams.TransactionID = req.ReleaseKey()
		ledgerParams.Type = domain.TxTypeRelease
		ledgerParams.Description = "Withdrawal hold released"
	}
	if _, _, err := r.applyInTx(ctx, tx, ledgerParams); err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE withdrawal_requests
		SET status = $2, decided_at = NOW(), decided_by = $3
		WHERE id = $1
		RETURNING decided_at
	`
	var decidedAt time.Time
	if err := tx.QueryRow(ctx, updateQuery, req.ID, p.NewStatus, p.DecidedBy).Scan(&decidedAt); err != nil {
		return nil, fmt.Errorf("failed to update withdrawal status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	req.Status = p.NewStatus
	req.DecidedAt = &decidedAt
	decidedBy := p.DecidedBy
	req.DecidedBy = &decidedBy
	return req, nil
}

const withdrawalSelect = `
	SELECT id, wallet_id, amount, method_id, account_info, status, created_at, decided_at, decided_by, provider_ref
	FROM withdrawal_requests`

func scanWithdrawal(row rowScanner) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	var accountInfoJSON []byte
	err := row.Scan(&req.ID, &req.WalletID, &req.Amount, &req.MethodID, &accountInfoJSON, &req.Status, &req.CreatedAt, &req.DecidedAt, &req.DecidedBy, &req.ProviderRef)
	if err != nil {
		return nil, err
	}
	if len(accountInfoJSON) > 0 {
		if err := json.Unmarshal(accountInfoJSON, &req.AccountInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account info: %w", err)
		}
	}
	return &req, nil
}

func (r *PostgresRepository) findWithdrawalInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, forUpdate bool) (*domain.WithdrawalRequest, error) {
	query := withdrawalSelect + ` WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	req, err := scanWithdrawal(tx.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return req, nil
}

// FindWithdrawalByID retrieves a single withdrawal request.
func (r *PostgresRepository) FindWithdrawalByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	req, err := scanWithdrawal(r.db.QueryRow(ctx, withdrawalSelect+` WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListWithdrawalsByWallet returns the owner's withdrawal requests
// newest-first, optionally filtered by status.
func (r *PostgresRepository) ListWithdrawalsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	conditions := []string{"wallet_id = $1"}
	args := []any{walletID}

	if opts.Status != "" {
		args = append(args, opts.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		withdrawalSelect, strings.Join(conditions, " AND "), len(args)-1, len(args))

	return r.queryWithdrawals(ctx, query, args...)
}

// ListPendingWithdrawals returns the admin review queue, oldest-first.
func (r *PostgresRepository) ListPendingWithdrawals(ctx context.Context, limit int, olderThan *time.Time) ([]domain.WithdrawalRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args := []any{domain.WithdrawalPending}
	query := withdrawalSelect + ` WHERE status = $1`
	if olderThan != nil {
		args = append(args, *olderThan)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d", len(args))

	return r.queryWithdrawals(ctx, query, args...)
}

func (r *PostgresRepository) queryWithdrawals(ctx context.Context, query string, args ...any) ([]domain.WithdrawalRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.WithdrawalRequest
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// FindWithdrawMethodByID retrieves one payout-channel configuration row.
func (r *PostgresRepository) FindWithdrawMethodByID(ctx context.Context, id string) (*domain.WithdrawMethod, error) {
	var m domain.WithdrawMethod
	query := `SELECT id, display_name, min_amount, max_amount, processing_time_hint, enabled FROM withdraw_methods WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&m.ID, &m.DisplayName, &m.MinAmount, &m.MaxAmount, &m.ProcessingTimeHint, &m.Enabled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawMethodNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListWithdrawMethods returns the enabled payout channels.
func (r *PostgresRepository) ListWithdrawMethods(ctx context.Context) ([]domain.WithdrawMethod, error) {
	query := `SELECT id, display_name, min_amount, max_amount, processing_time_hint, enabled FROM withdraw_methods WHERE enabled ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []domain.WithdrawMethod
	for rows.Next() {
		var m domain.WithdrawMethod
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.MinAmount, &m.MaxAmount, &m.ProcessingTimeHint, &m.Enabled); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}
