package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"kaspimarket_api/internal/kaspi/business/models"
)

// ErrPersistenceConflict — оптимистичная гонка на записи товара:
// ожидаемый статус уже изменён другим писателем.
var ErrPersistenceConflict = errors.New("persistence conflict: conveyor status changed concurrently")

// Сколько последних записей журнала держим в строке.
const maxLogEntries = 200

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `
	id, name, brand, price_base, specs, conveyor_status, conveyor_log,
	ms_created, stock_added, kaspi_created, retry_count, next_retry_at,
	retired, updated_at`

func (r *ProductRepository) scanProduct(row interface{ Scan(...interface{}) error }) (*models.ProductRecord, error) {
	var p models.ProductRecord
	var status string
	var specsRaw, logRaw []byte
	var nextRetry sql.NullTime

	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.PriceBase, &specsRaw, &status, &logRaw,
		&p.MsCreated, &p.StockAdded, &p.KaspiCreated, &p.RetryCount, &nextRetry,
		&p.Retired, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ConveyorStatus, err = models.ParseConveyorStatus(status)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(specsRaw, &p.Specs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal specs for product %d: %w", p.ID, err)
	}
	if err := json.Unmarshal(logRaw, &p.ConveyorLog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conveyor_log for product %d: %w", p.ID, err)
	}
	if nextRetry.Valid {
		p.NextRetryAt = &nextRetry.Time
	}
	return &p, nil
}

// GetByID возвращает товар по идентификатору исходного маркетплейса.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.ProductRecord, error) {
	query := `SELECT ` + productColumns + ` FROM kaspi.products WHERE id = $1`
	return r.scanProduct(r.db.QueryRowContext(ctx, query, id))
}

// SelectBatch возвращает рабочий набор прогона: нетерминальные товары,
// которым пришло время (с учётом отложенного ретрая), старые вперёд.
// Товары в error и retired в автоматический прогон не попадают.
func (r *ProductRepository) SelectBatch(ctx context.Context, limit int) ([]*models.ProductRecord, error) {
	query := `
		SELECT ` + productColumns + `
		FROM kaspi.products
		WHERE NOT retired
		  AND conveyor_status NOT IN ('confirmed', 'error')
		  AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY updated_at ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch []*models.ProductRecord
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		batch = append(batch, p)
	}
	return batch, rows.Err()
}

// SelectByStatus возвращает товары в указанных статусах.
func (r *ProductRepository) SelectByStatus(ctx context.Context, statuses []models.ConveyorStatus, limit int) ([]*models.ProductRecord, error) {
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}

	query := `
		SELECT ` + productColumns + `
		FROM kaspi.products
		WHERE conveyor_status = ANY($1)
		ORDER BY updated_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(raw), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ProductRecord
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SearchByName — свободный поиск по названию/артикулу для операторских
// скриптов.
func (r *ProductRepository) SearchByName(ctx context.Context, pattern string, limit int) ([]*models.ProductRecord, error) {
	query := `
		SELECT ` + productColumns + `
		FROM kaspi.products
		WHERE name ILIKE '%' || $1 || '%' OR specs->>'kaspi_sku' = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ProductRecord
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatus переводит статус через сравнение с ожидаемым (CAS).
// Возвращает ErrPersistenceConflict, если статус уже изменён конкурентно.
func (r *ProductRepository) UpdateStatus(ctx context.Context, id int64, from, to models.ConveyorStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET conveyor_status = $1, updated_at = now()
		WHERE id = $2 AND conveyor_status = $3`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPersistenceConflict
	}
	return nil
}

// AppendLog дописывает запись журнала конвейера, обрезая журнал до
// последних maxLogEntries. Трогает только conveyor_log и updated_at.
func (r *ProductRepository) AppendLog(ctx context.Context, id int64, entry models.LogEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET conveyor_log = (
			SELECT COALESCE(jsonb_agg(e ORDER BY ord), '[]'::jsonb)
			FROM (
				SELECT e, ord
				FROM jsonb_array_elements(conveyor_log || $1::jsonb) WITH ORDINALITY AS t(e, ord)
				ORDER BY ord DESC
				LIMIT $2
			) tail
		),
		updated_at = now()
		WHERE id = $3`,
		string(raw), maxLogEntries, id)
	return err
}

// SetSpec пишет одно служебное подполе specs, не трогая остальные поля.
func (r *ProductRepository) SetSpec(ctx context.Context, id int64, key, value string) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET specs = jsonb_set(specs, ARRAY[$1]::text[], $2::jsonb, true), updated_at = now()
		WHERE id = $3`,
		key, string(valueJSON), id)
	return err
}

// Флаги завершения шагов монотонны: false → true, назад не откатываются
// (кроме явного операторского сброса).
var stepFlags = map[string]bool{
	"ms_created":    true,
	"stock_added":   true,
	"kaspi_created": true,
}

func (r *ProductRepository) SetStepFlag(ctx context.Context, id int64, flag string) error {
	if !stepFlags[flag] {
		return fmt.Errorf("unknown step flag %q", flag)
	}
	query := fmt.Sprintf(`UPDATE kaspi.products SET %s = TRUE, updated_at = now() WHERE id = $1`, flag)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// SetPriceBase обновляет закупочную цену (шаг stock-sync).
func (r *ProductRepository) SetPriceBase(ctx context.Context, id int64, priceBase int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET price_base = $1, updated_at = now()
		WHERE id = $2`,
		priceBase, id)
	return err
}

// ScheduleRetry откладывает товар и наращивает счётчик попыток.
func (r *ProductRepository) ScheduleRetry(ctx context.Context, id int64, nextRetryAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET retry_count = retry_count + 1, next_retry_at = $1, updated_at = now()
		WHERE id = $2`,
		nextRetryAt, id)
	return err
}

// ClearRetry сбрасывает счётчик после успешного перехода.
func (r *ProductRepository) ClearRetry(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET retry_count = 0, next_retry_at = NULL, updated_at = now()
		WHERE id = $1`,
		id)
	return err
}

// MarkError — поглощающее состояние error из любого нетерминального.
// Флаги завершённых шагов не трогаем: частичный прогресс сохраняется.
func (r *ProductRepository) MarkError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET conveyor_status = 'error', next_retry_at = NULL, updated_at = now()
		WHERE id = $1 AND conveyor_status NOT IN ('confirmed')`,
		id)
	return err
}

// Retire — мягкое снятие с конвейера; записи никогда не удаляются.
func (r *ProductRepository) Retire(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET retired = TRUE, updated_at = now()
		WHERE id = $1`,
		id)
	return err
}

// ResetError — операторский сброс: товар возвращается на последний
// успешно пройденный шаг, журнал остаётся.
func (r *ProductRepository) ResetError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE kaspi.products
		SET conveyor_status = CASE
			WHEN kaspi_created THEN 'confirmed'
			WHEN specs->>'kaspi_upload_id' IS NOT NULL AND specs->>'kaspi_upload_id' <> 'unknown' THEN 'uploaded'
			WHEN stock_added THEN 'stock_synced'
			WHEN ms_created THEN 'ms_synced'
			ELSE 'new'
		END,
		retry_count = 0, next_retry_at = NULL, updated_at = now()
		WHERE id = $1 AND conveyor_status = 'error'`,
		id)
	return err
}
