package recipients

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbank/harbor/internal/ledger"
)

// Recipient is a saved payee shortcut owned by one user.
type Recipient struct {
	ID          int64
	OwnerID     int64
	RecipientID int64
	Nickname    string
	CreatedAt   time.Time
}

// Repository persists saved recipients. A (owner, recipient) pair is
// unique.
type Repository interface {
	List(ctx context.Context, ownerID int64) ([]Recipient, error)
	Create(ctx context.Context, r Recipient) (Recipient, error)
	Delete(ctx context.Context, ownerID, id int64) error
}

// PostgresRepository stores recipients in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recipientColumns = `id, owner_id, recipient_id, nickname, created_at`

func (r *PostgresRepository) List(ctx context.Context, ownerID int64) ([]Recipient, error) {
	rows, err := r.db.Query(ctx, `SELECT `+recipientColumns+` FROM recipients
        WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.RecipientID, &rec.Nickname, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, rec Recipient) (Recipient, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO recipients (owner_id, recipient_id, nickname)
        VALUES ($1, $2, $3) RETURNING `+recipientColumns,
		rec.OwnerID, rec.RecipientID, rec.Nickname)
	var created Recipient
	err := row.Scan(&created.ID, &created.OwnerID, &created.RecipientID, &created.Nickname, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Recipient{}, fmt.Errorf("%w: recipient already saved", ledger.ErrConflict)
		}
		return Recipient{}, err
	}
	return created, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM recipients WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: recipient", ledger.ErrNotFound)
	}
	return nil
}

type memoryRepository struct {
	mu     sync.Mutex
	byID   map[int64]Recipient
	nextID int64
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[int64]Recipient), nextID: 1}
}

func (r *memoryRepository) List(_ context.Context, ownerID int64) ([]Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Recipient
	for _, rec := range r.byID {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepository) Create(_ context.Context, rec Recipient) (Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.OwnerID == rec.OwnerID && existing.RecipientID == rec.RecipientID {
			return Recipient{}, fmt.Errorf("%w: recipient already saved", ledger.ErrConflict)
		}
	}
	rec.ID = r.nextID
	r.nextID++
	rec.CreatedAt = time.Now().UTC()
	r.byID[rec.ID] = rec
	return rec, nil
}

func (r *memoryRepository) Delete(_ context.Context, ownerID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok || rec.OwnerID != ownerID {
		return fmt.Errorf("%w: recipient", ledger.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}
