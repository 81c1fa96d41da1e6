package billing

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/planvault/backend/internal/models"
)

// fakeRepo is an in-memory Repository. Transaction runs fn against the
// same store; tests that care about rollback semantics assert on the
// error path instead.
type fakeRepo struct {
	mu sync.Mutex

	plans    map[uint]*models.Plan
	subs     map[uint]*models.Subscription
	events   map[string]*models.WebhookEvent
	projects map[uint]*models.Project

	nextSubID     uint
	nextProjectID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		plans:    make(map[uint]*models.Plan),
		subs:     make(map[uint]*models.Subscription),
		events:   make(map[string]*models.WebhookEvent),
		projects: make(map[uint]*models.Project),
	}
}

func (f *fakeRepo) addPlan(p models.Plan) *models.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.plans[cp.ID] = &cp
	return &cp
}

func (f *fakeRepo) addSubscription(s models.Subscription) *models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == 0 {
		f.nextSubID++
		s.ID = f.nextSubID
	} else if s.ID > f.nextSubID {
		f.nextSubID = s.ID
	}
	cp := s
	f.subs[cp.ID] = &cp
	return &cp
}

func (f *fakeRepo) addProject(p models.Project) *models.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		f.nextProjectID++
		p.ID = f.nextProjectID
	} else if p.ID > f.nextProjectID {
		f.nextProjectID = p.ID
	}
	cp := p
	f.projects[cp.ID] = &cp
	return &cp
}

func (f *fakeRepo) subByID(id uint) models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.subs[id]
}

func (f *fakeRepo) Transaction(fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) GetPlan(id uint) (*models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) GetPlanByPriceID(priceID string) (*models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.plans {
		if p.StripePriceID == priceID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (f *fakeRepo) CurrentSubscription(userID uuid.UUID) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID && (best == nil || s.ID > best.ID) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrSubscriptionNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeRepo) CurrentSubscriptionForUpdate(userID uuid.UUID) (*models.Subscription, error) {
	return f.CurrentSubscription(userID)
}

func (f *fakeRepo) SubscriptionByProviderID(providerSubID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.Subscription
	for _, s := range f.subs {
		if s.StripeSubscriptionID == providerSubID && (best == nil || s.ID > best.ID) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrSubscriptionNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeRepo) SubscriptionByProviderIDForUpdate(providerSubID string) (*models.Subscription, error) {
	return f.SubscriptionByProviderID(providerSubID)
}

func (f *fakeRepo) CreateSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSubID++
	sub.ID = f.nextSubID
	cp := *sub
	f.subs[cp.ID] = &cp
	return nil
}

func (f *fakeRepo) SaveSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *sub
	f.subs[cp.ID] = &cp
	return nil
}

func (f *fakeRepo) HasProcessedEvent(eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.events[eventID]
	return ok, nil
}

func (f *fakeRepo) MarkEventProcessed(event *models.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[event.ID]; ok {
		return ErrEventAlreadyProcessed
	}
	cp := *event
	f.events[cp.ID] = &cp
	return nil
}

func (f *fakeRepo) CountActiveProjects(userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.projects {
		if p.UserID == userID && p.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateProject(p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextProjectID++
	p.ID = f.nextProjectID
	cp := *p
	f.projects[cp.ID] = &cp
	return nil
}

func (f *fakeRepo) ReactivateProjects(userID uuid.UUID, n int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 {
		return 0, nil
	}
	var inactive []*models.Project
	for _, p := range f.projects {
		if p.UserID == userID && !p.IsActive {
			inactive = append(inactive, p)
		}
	}
	sort.Slice(inactive, func(i, j int) bool { return inactive[i].ID < inactive[j].ID })
	if len(inactive) > n {
		inactive = inactive[:n]
	}
	for _, p := range inactive {
		p.IsActive = true
	}
	return int64(len(inactive)), nil
}

// fakeProvider stands in for the Stripe client.
type fakeProvider struct {
	sub      *ProviderSubscription
	err      error
	canceled []string
}

func (f *fakeProvider) RetrieveSubscription(_ context.Context, providerSubID string) (*ProviderSubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.sub != nil {
		return f.sub, nil
	}
	return &ProviderSubscription{ID: providerSubID, Status: models.SubStatusActive}, nil
}

func (f *fakeProvider) CancelAtPeriodEnd(_ context.Context, providerSubID string) error {
	if f.err != nil {
		return f.err
	}
	f.canceled = append(f.canceled, providerSubID)
	return nil
}
