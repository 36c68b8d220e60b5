package history

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zkgm/client"
	"zkgm/lifecycle"
)

// ErrNoDatabase is returned by every Store method when no db is configured.
var ErrNoDatabase = errors.New("database not configured")

// Submission - Model untuk database, one row per submission key
type Submission struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Key         string `gorm:"column:submission_key;uniqueIndex;size:128" json:"key"`
	Source      string `gorm:"index;size:64" json:"source"`
	Destination string `gorm:"size:64" json:"destination"`
	Sender      string `gorm:"index;size:128" json:"sender"`
	// TxHash is empty while a multisig proposal is unresolved.
	TxHash       string          `gorm:"index;size:128" json:"tx_hash"`
	SafeHash     string          `gorm:"size:128" json:"safe_hash,omitempty"`
	PacketHash   string          `gorm:"index;size:66" json:"packet_hash,omitempty"`
	BlockHash    string          `gorm:"size:128" json:"block_hash,omitempty"`
	GasUsed      uint64          `json:"gas_used"`
	Status       lifecycle.State `gorm:"index;size:20" json:"status"`
	ErrorMessage string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
}

func (Submission) TableName() string {
	return "zkgm_submissions"
}

// Apply folds one transition into s.
func Apply(s *Submission, t client.Transition) {
	if s.Key == "" {
		s.Key = t.Key
		s.Source = string(t.Source)
		s.Destination = string(t.Destination)
		s.Sender = t.Sender
		s.CreatedAt = t.At
	}
	s.UpdatedAt = t.At
	s.Status = lifecycle.StateOf(t.Event)
	switch ev := t.Event.(type) {
	case lifecycle.Dispatched:
		s.TxHash = ev.TxHash
	case lifecycle.WaitForSafeWalletHash:
		s.SafeHash = ev.Hash
		// the dispatched key was the proposal hash
		if s.TxHash == ev.Hash {
			s.TxHash = ""
		}
	case lifecycle.TransactionReceiptComplete:
		s.TxHash = ev.TxHash
		s.BlockHash = ev.BlockHash
		s.GasUsed = ev.GasUsed
		at := t.At
		s.ConfirmedAt = &at
	case lifecycle.Indexed:
		s.PacketHash = ev.PacketHash
	case lifecycle.Failed:
		s.ErrorMessage = ev.Error()
	}
}

// Store persists submissions with gorm.
type Store struct {
	db *gorm.DB
}

var _ client.Recorder = (*Store)(nil)

// NewStore - db may be nil; the store then rejects every call.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the submissions table.
func (s *Store) Migrate(ctx context.Context) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	return s.db.WithContext(ctx).AutoMigrate(&Submission{})
}

// Record implements client.Recorder.
func (s *Store) Record(ctx context.Context, t client.Transition) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	// a key's transitions come from a single pipeline goroutine, in order
	tx := s.db.WithContext(ctx)
	var row Submission
	err := tx.Where("submission_key = ?", t.Key).First(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	Apply(&row, t)
	return upsert(tx, &row).Error
}

func upsert(tx *gorm.DB, row *Submission) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tx_hash", "safe_hash", "packet_hash", "block_hash", "gas_used",
			"status", "error_message", "updated_at", "confirmed_at",
		}),
	}).Create(row)
}

// Get returns the submission recorded under key.
func (s *Store) Get(ctx context.Context, key string) (*Submission, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	var row Submission
	if err := s.db.WithContext(ctx).Where("submission_key = ?", key).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ByAddress - Get submission history of a sender, newest first
func (s *Store) ByAddress(ctx context.Context, address string, limit int) ([]Submission, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	var rows []Submission
	err := byAddress(s.db.WithContext(ctx), address, limit).Find(&rows).Error
	return rows, err
}

func byAddress(tx *gorm.DB, address string, limit int) *gorm.DB {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return tx.Model(&Submission{}).
		Where("sender = ?", address).
		Order("created_at DESC").
		Limit(limit)
}
