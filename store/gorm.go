package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"git.sr.ht/~aondrejcak/chai-api/models"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.User{}, &models.Payment{})
}

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) first(ctx context.Context, obj interface{}, where string, args ...interface{}) (bool, error) {
	if err := s.db.WithContext(ctx).Where(where, args...).First(obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *GormStore) create(ctx context.Context, obj interface{}) error {
	err := s.db.WithContext(ctx).Create(obj).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return s.create(ctx, p)
}

func (s *GormStore) FindPaymentByOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error) {
	p := &models.Payment{}
	found, err := s.first(ctx, p, "provider_order_id = ?", providerOrderID)
	if err != nil || !found {
		return nil, err
	}
	return p, nil
}

// TransitionPayment only touches rows that are still pending, so two
// verifications racing on one order cannot both win.
func (s *GormStore) TransitionPayment(ctx context.Context, providerOrderID string, to models.PaymentStatus, providerPaymentID string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("provider_order_id = ? AND status = ?", providerOrderID, models.PSTATUS_PENDING).
		Updates(map[string]interface{}{
			"status":              to,
			"provider_payment_id": providerPaymentID,
			"updated_at":          at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ListPaymentsByPayee(ctx context.Context, payeeID string, status models.PaymentStatus, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("payee_id = ? AND status = ?", payeeID, status).
		Order("created_at DESC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.create(ctx, u)
}

func (s *GormStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	found, err := s.first(ctx, u, "id = ?", id)
	if err != nil || !found {
		return nil, err
	}
	return u, nil
}

func (s *GormStore) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	u := &models.User{}
	found, err := s.first(ctx, u, "email = ? OR username = ?", login, login)
	if err != nil || !found {
		return nil, err
	}
	return u, nil
}

func (s *GormStore) FindUserConflict(ctx context.Context, email, username string) (*models.User, error) {
	u := &models.User{}
	found, err := s.first(ctx, u, "email = ? OR username = ?", email, username)
	if err != nil || !found {
		return nil, err
	}
	return u, nil
}
