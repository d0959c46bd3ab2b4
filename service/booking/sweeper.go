package booking

import (
	"log"
	"time"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"gorm.io/gorm"
)

// Sweeper releases slots held by abandoned checkouts: conversations that are
// still pending payment past the hold timeout are cancelled so the interval
// becomes bookable again.
type Sweeper struct {
	db       *gorm.DB
	timeout  time.Duration
	interval time.Duration
}

func NewSweeper(db *gorm.DB, cfg Config) *Sweeper {
	return &Sweeper{
		db:       db,
		timeout:  cfg.HoldTimeout,
		interval: cfg.SweepInterval,
	}
}

// Run sweeps on a ticker until stop is closed.
func (s *Sweeper) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			released, err := s.SweepOnce(time.Now().UTC())
			if err != nil {
				log.Printf("sweeping stale payment holds: %v", err)
			} else if released > 0 {
				log.Printf("released %d stale payment holds", released)
			}
		case <-stop:
			return
		}
	}
}

// SweepOnce cancels every stale hold in a single conditional update and
// returns how many slots it released.
func (s *Sweeper) SweepOnce(now time.Time) (int64, error) {
	cutoff := now.Add(-s.timeout)
	result := s.db.Model(&models.Conversation{}).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			models.ConversationPending, models.PaymentPending, cutoff).
		Updates(map[string]interface{}{
			"status":         models.ConversationCancelled,
			"payment_status": models.PaymentFailed,
		})
	return result.RowsAffected, result.Error
}
