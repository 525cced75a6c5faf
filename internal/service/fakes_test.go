package service

import (
	"context"
	"sync"
	"time"

	"backend/internal/apperror"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

// fixedClock returns a Clock pinned to t.
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// passthroughTxManager runs the callback directly, no transaction semantics.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type memoryAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *memoryAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryAuditRepo) List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AuditLog, len(r.entries))
	copy(out, r.entries)
	return out, int64(len(out)), nil
}

type memoryTransactionRepo struct {
	mu  sync.Mutex
	txs map[uuid.UUID]model.ReceiptTransaction

	// rejectSave forces SaveProgress to report a lost compare-and-swap.
	rejectSave bool
	saveCalls  int
}

func newMemoryTransactionRepo() *memoryTransactionRepo {
	return &memoryTransactionRepo{txs: map[uuid.UUID]model.ReceiptTransaction{}}
}

func (r *memoryTransactionRepo) put(tx model.ReceiptTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs[tx.ID] = tx
}

func (r *memoryTransactionRepo) get(id uuid.UUID) model.ReceiptTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txs[id]
}

func (r *memoryTransactionRepo) Create(ctx context.Context, tx *model.ReceiptTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.CreatedAt = time.Now()
	r.txs[tx.ID] = *tx
	return nil
}

func (r *memoryTransactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ReceiptTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	copied := tx
	copied.StageData = make(model.StageDataMap, len(tx.StageData))
	for stage, record := range tx.StageData {
		copied.StageData[stage] = record
	}
	return &copied, nil
}

func (r *memoryTransactionRepo) List(ctx context.Context, filter repository.TransactionFilter) ([]model.ReceiptTransaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ReceiptTransaction
	for _, tx := range r.txs {
		if filter.TenantID != nil && tx.TenantID != *filter.TenantID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.Stage != nil && tx.CurrentStage != *filter.Stage {
			continue
		}
		out = append(out, tx)
	}
	return out, int64(len(out)), nil
}

func (r *memoryTransactionRepo) SaveProgress(ctx context.Context, tx *model.ReceiptTransaction, fromStage int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.rejectSave {
		return false, nil
	}
	current, ok := r.txs[tx.ID]
	if !ok {
		return false, nil
	}
	if current.CurrentStage != fromStage || current.Status != model.TxStatusActive || current.Locked {
		return false, nil
	}
	current.CurrentStage = tx.CurrentStage
	current.Status = tx.Status
	current.Locked = tx.Locked
	current.StageData = tx.StageData
	current.CompletedAt = tx.CompletedAt
	r.txs[tx.ID] = current
	return true, nil
}

type memoryConfigRepo struct {
	mu   sync.Mutex
	cfgs []model.FieldConfiguration
}

func (r *memoryConfigRepo) add(cfg model.FieldConfiguration) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	r.cfgs = append(r.cfgs, cfg)
	return cfg.ID
}

func (r *memoryConfigRepo) Create(ctx context.Context, cfg *model.FieldConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	r.cfgs = append(r.cfgs, *cfg)
	return nil
}

func (r *memoryConfigRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.FieldConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range r.cfgs {
		if cfg.ID == id {
			copied := cfg
			return &copied, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func sameFacility(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *memoryConfigRepo) FindActiveByScope(ctx context.Context, tenantID uuid.UUID, facilityID *uuid.UUID, stage int, fieldName string) (*model.FieldConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range r.cfgs {
		if cfg.TenantID == tenantID && sameFacility(cfg.FacilityID, facilityID) &&
			cfg.Stage == stage && cfg.FieldName == fieldName && cfg.IsActive {
			copied := cfg
			return &copied, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *memoryConfigRepo) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cfg := range r.cfgs {
		if cfg.ID == id && cfg.IsActive {
			to := at
			r.cfgs[i].IsActive = false
			r.cfgs[i].EffectiveTo = &to
			return nil
		}
	}
	return apperror.ErrNotFound
}

func (r *memoryConfigRepo) ListActive(ctx context.Context, tenantID uuid.UUID, stage *int) ([]model.FieldConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FieldConfiguration
	for _, cfg := range r.cfgs {
		if cfg.TenantID != tenantID || !cfg.IsActive {
			continue
		}
		if stage != nil && cfg.Stage != *stage {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (r *memoryConfigRepo) ListActiveScoped(ctx context.Context, tenantID uuid.UUID, facilityID *uuid.UUID, stage *int) ([]model.FieldConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FieldConfiguration
	for _, cfg := range r.cfgs {
		if cfg.TenantID != tenantID || !cfg.IsActive || !sameFacility(cfg.FacilityID, facilityID) {
			continue
		}
		if stage != nil && cfg.Stage != *stage {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}
