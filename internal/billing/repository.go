package billing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/planvault/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the persistence operations the lifecycle engine
// needs. The engine never touches a DB handle directly; everything goes
// through this interface so the state machine stays testable and the
// transaction boundary stays explicit.
type Repository interface {
	// Transaction runs fn against a repository bound to a single
	// all-or-nothing transaction. Returning an error rolls back.
	Transaction(fn func(Repository) error) error

	GetPlan(id uint) (*models.Plan, error)
	GetPlanByPriceID(priceID string) (*models.Plan, error)

	// CurrentSubscription returns the row with the greatest id for the
	// user. That ordering is the "current" contract, not an accident.
	CurrentSubscription(userID uuid.UUID) (*models.Subscription, error)
	// CurrentSubscriptionForUpdate does the same under a row lock so the
	// access guard's lazy expiry cannot race a webhook write.
	CurrentSubscriptionForUpdate(userID uuid.UUID) (*models.Subscription, error)

	SubscriptionByProviderID(providerSubID string) (*models.Subscription, error)
	// SubscriptionByProviderIDForUpdate locks the row; concurrent events
	// for the same subscription serialize here while unrelated
	// subscriptions proceed in parallel.
	SubscriptionByProviderIDForUpdate(providerSubID string) (*models.Subscription, error)

	CreateSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error

	HasProcessedEvent(eventID string) (bool, error)
	// MarkEventProcessed inserts the ledger row and returns
	// ErrEventAlreadyProcessed if the id is already present.
	MarkEventProcessed(event *models.WebhookEvent) error

	CountActiveProjects(userID uuid.UUID) (int64, error)
	CreateProject(p *models.Project) error
	// ReactivateProjects flips up to n of the user's oldest inactive
	// projects back on and reports how many it touched.
	ReactivateProjects(userID uuid.UUID, n int) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetPlan(id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) GetPlanByPriceID(priceID string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, "stripe_price_id = ?", priceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) CurrentSubscription(userID uuid.UUID) (*models.Subscription, error) {
	return r.currentSubscription(r.db, userID)
}

func (r *gormRepository) CurrentSubscriptionForUpdate(userID uuid.UUID) (*models.Subscription, error) {
	return r.currentSubscription(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *gormRepository) currentSubscription(db *gorm.DB, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("user_id = ?", userID).Order("id DESC").First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SubscriptionByProviderID(providerSubID string) (*models.Subscription, error) {
	return r.subscriptionByProviderID(r.db, providerSubID)
}

func (r *gormRepository) SubscriptionByProviderIDForUpdate(providerSubID string) (*models.Subscription, error) {
	return r.subscriptionByProviderID(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), providerSubID)
}

func (r *gormRepository) subscriptionByProviderID(db *gorm.DB, providerSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("stripe_subscription_id = ?", providerSubID).Order("id DESC").First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) HasProcessedEvent(eventID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.WebhookEvent{}).Where("id = ?", eventID).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) MarkEventProcessed(event *models.WebhookEvent) error {
	tx := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrEventAlreadyProcessed
	}
	return nil
}

func (r *gormRepository) CountActiveProjects(userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.Project{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) CreateProject(p *models.Project) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) ReactivateProjects(userID uuid.UUID, n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	var ids []uint
	err := r.db.Model(&models.Project{}).
		Where("user_id = ? AND is_active = ?", userID, false).
		Order("id ASC").
		Limit(n).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	tx := r.db.Model(&models.Project{}).Where("id IN ?", ids).Update("is_active", true)
	return tx.RowsAffected, tx.Error
}
