package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/marketplace/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	// База может подниматься одновременно с сервисом.
	err = withRetry(ctx, func() error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		return r.runMigrations(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isConnectionError(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isConnectionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) || pgErr.Code == pgerrcode.CannotConnectNow
	}

	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isNumericOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.NumericValueOutOfRange
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateAccount создаёт учётную запись и возвращает её идентификатор.
func (r *PostgresRepository) CreateAccount(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", model.ErrAccountExists, login)
		}
		return 0, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

// GetAccountByLogin возвращает учётную запись по логину.
func (r *PostgresRepository) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	var a model.Account
	err := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM accounts WHERE login = $1`,
		login,
	).Scan(&a.ID, &a.Login, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// InTx выполняет fn в одной транзакции. Ошибка fn или фиксации откатывает все изменения.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) NextID(ctx context.Context, counter model.Counter) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`UPDATE counters SET current = current + 1 WHERE name = $1 RETURNING current - 1`,
		string(counter),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", counter, err)
	}
	return id, nil
}

const userColumns = `id, authority, username, phone, latitude, longitude, account_type, location_enabled, created_at, updated_at`

func (t *pgTx) GetUserByAuthority(ctx context.Context, authority int64) (*model.User, error) {
	var (
		u           model.User
		accountType string
	)
	err := t.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE authority = $1`,
		authority,
	).Scan(&u.ID, &u.Authority, &u.Username, &u.Phone, &u.Location.Latitude, &u.Location.Longitude,
		&accountType, &u.LocationEnabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.AccountType = model.AccountType(accountType)
	return &u, nil
}

func (t *pgTx) CreateUser(ctx context.Context, u *model.User) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Authority, u.Username, u.Phone, u.Location.Latitude, u.Location.Longitude,
		string(u.AccountType), u.LocationEnabled, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrUserAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateUser(ctx context.Context, u *model.User) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE users
		 SET username = $2, phone = $3, latitude = $4, longitude = $5, account_type = $6,
		     location_enabled = $7, updated_at = $8
		 WHERE id = $1`,
		u.ID, u.Username, u.Phone, u.Location.Latitude, u.Location.Longitude,
		string(u.AccountType), u.LocationEnabled, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (t *pgTx) CreateStore(ctx context.Context, s *model.Store) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO stores (id, authority, name, description, phone, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.Authority, s.Name, s.Description, s.Phone, s.Location.Latitude, s.Location.Longitude,
	)
	if err != nil {
		return fmt.Errorf("insert store: %w", err)
	}
	return nil
}

const requestColumns = `id, authority, buyer_id, name, description, images, latitude, longitude,
	seller_ids, offer_ids, locked_seller_id, accepted_offer_id, sellers_price_quote, paid, lifecycle,
	created_at, updated_at`

func scanRequest(row pgx.Row) (*model.Request, error) {
	var (
		r         model.Request
		lifecycle int16
	)
	err := row.Scan(&r.ID, &r.Authority, &r.BuyerID, &r.Name, &r.Description, &r.Images,
		&r.Location.Latitude, &r.Location.Longitude, &r.SellerIDs, &r.OfferIDs,
		&r.LockedSellerID, &r.AcceptedOfferID, &r.SellersPriceQuote, &r.Paid, &lifecycle,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Lifecycle = model.Lifecycle(lifecycle)
	return &r, nil
}

func (t *pgTx) getRequest(ctx context.Context, query string, id int64) (*model.Request, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRequestNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

func (t *pgTx) GetRequest(ctx context.Context, id int64) (*model.Request, error) {
	return t.getRequest(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)
}

func (t *pgTx) GetRequestForUpdate(ctx context.Context, id int64) (*model.Request, error) {
	return t.getRequest(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) ListRequestsByAuthority(ctx context.Context, authority int64) ([]model.Request, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE authority = $1 ORDER BY id DESC`,
		authority,
	)
	if err != nil {
		return nil, fmt.Errorf("select requests: %w", err)
	}
	defer rows.Close()

	var res []model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		res = append(res, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (t *pgTx) CreateRequest(ctx context.Context, r *model.Request) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO requests (`+requestColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		r.ID, r.Authority, r.BuyerID, r.Name, r.Description, nonNilStrings(r.Images),
		r.Location.Latitude, r.Location.Longitude, nonNilIDs(r.SellerIDs), nonNilIDs(r.OfferIDs),
		r.LockedSellerID, r.AcceptedOfferID, r.SellersPriceQuote, r.Paid, int16(r.Lifecycle),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateRequest(ctx context.Context, r *model.Request) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE requests
		 SET seller_ids = $2, offer_ids = $3, locked_seller_id = $4, accepted_offer_id = $5,
		     sellers_price_quote = $6, paid = $7, lifecycle = $8, updated_at = $9
		 WHERE id = $1`,
		r.ID, nonNilIDs(r.SellerIDs), nonNilIDs(r.OfferIDs), r.LockedSellerID, r.AcceptedOfferID,
		r.SellersPriceQuote, r.Paid, int16(r.Lifecycle), r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRequestNotFound
	}
	return nil
}

func (t *pgTx) DeleteRequest(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRequestNotFound
	}
	return nil
}

const offerColumns = `id, authority, request_id, seller_id, price, images, store_name, is_accepted, created_at, updated_at`

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var o model.Offer
	err := row.Scan(&o.ID, &o.Authority, &o.RequestID, &o.SellerID, &o.Price, &o.Images,
		&o.StoreName, &o.IsAccepted, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *pgTx) GetOffer(ctx context.Context, id int64) (*model.Offer, error) {
	o, err := scanOffer(t.tx.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOfferNotFound
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

func (t *pgTx) ListOffersByRequest(ctx context.Context, requestID int64) ([]model.Offer, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE request_id = $1 ORDER BY id`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("select offers: %w", err)
	}
	defer rows.Close()

	var res []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (t *pgTx) CreateOffer(ctx context.Context, o *model.Offer) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO offers (`+offerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.Authority, o.RequestID, o.SellerID, o.Price, nonNilStrings(o.Images),
		o.StoreName, o.IsAccepted, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOffers(ctx context.Context, offers ...*model.Offer) error {
	for _, o := range offers {
		tag, err := t.tx.Exec(ctx,
			`UPDATE offers SET is_accepted = $2, updated_at = $3 WHERE id = $1`,
			o.ID, o.IsAccepted, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update offer %d: %w", o.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrOfferNotFound
		}
	}
	return nil
}

const paymentColumns = `id, request_id, offer_id, payer, recipient, instrument, amount, price, price_value, price_expo, created_at`

func (t *pgTx) CreatePayment(ctx context.Context, p *model.RequestPayment) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO request_payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.RequestID, p.OfferID, p.Payer, p.Recipient, string(p.Instrument), p.Amount,
		p.Price, p.PriceValue, p.PriceExpo, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrRequestAlreadyPaid
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *pgTx) ListPaymentsByRequest(ctx context.Context, requestID int64) ([]model.RequestPayment, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+paymentColumns+` FROM request_payments WHERE request_id = $1 ORDER BY id`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.RequestPayment
	for rows.Next() {
		var (
			p          model.RequestPayment
			instrument string
		)
		if err := rows.Scan(&p.ID, &p.RequestID, &p.OfferID, &p.Payer, &p.Recipient, &instrument,
			&p.Amount, &p.Price, &p.PriceValue, &p.PriceExpo, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Instrument = model.Instrument(instrument)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (t *pgTx) Credit(ctx context.Context, account int64, instrument model.Instrument, amount int64) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO wallets (account_id, instrument, amount) VALUES ($1, $2, $3)
		 ON CONFLICT (account_id, instrument) DO UPDATE SET amount = wallets.amount + EXCLUDED.amount`,
		account, string(instrument), amount,
	)
	if err != nil {
		if isNumericOutOfRange(err) {
			return model.ErrAmountOverflow
		}
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

func (t *pgTx) Debit(ctx context.Context, account int64, instrument model.Instrument, amount int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE wallets SET amount = amount - $3
		 WHERE account_id = $1 AND instrument = $2 AND amount >= $3`,
		account, string(instrument), amount,
	)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInsufficientFunds
	}
	return nil
}

func (t *pgTx) GetBalances(ctx context.Context, account int64) ([]model.Balance, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT instrument, amount FROM wallets WHERE account_id = $1 ORDER BY instrument`,
		account,
	)
	if err != nil {
		return nil, fmt.Errorf("select wallets: %w", err)
	}
	defer rows.Close()

	var res []model.Balance
	for rows.Next() {
		var (
			instrument string
			amount     int64
		)
		if err := rows.Scan(&instrument, &amount); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		res = append(res, model.Balance{Instrument: model.Instrument(instrument), Amount: amount})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
