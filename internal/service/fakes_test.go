package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/repository"
)

// In-memory fakes for the store interfaces. All of them are safe for the
// concurrent dispatch paths exercised by the campaign tests.

func testRetryer() *repository.Retryer {
	return repository.NewRetryer(1, time.Millisecond, nil)
}

type fakeSegmentRepo struct {
	mu       sync.Mutex
	segments map[string]*models.Segment
}

func newFakeSegmentRepo(segments ...*models.Segment) *fakeSegmentRepo {
	r := &fakeSegmentRepo{segments: make(map[string]*models.Segment)}
	for _, s := range segments {
		r.segments[s.ID] = s
	}
	return r
}

func (r *fakeSegmentRepo) Create(_ context.Context, s *models.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments[s.ID] = s
	return nil
}

func (r *fakeSegmentRepo) GetByID(_ context.Context, id string) (*models.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.segments[id], nil
}

func (r *fakeSegmentRepo) List(_ context.Context) ([]models.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Segment
	for _, s := range r.segments {
		out = append(out, *s)
	}
	return out, nil
}

func (r *fakeSegmentRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.segments[id]; !ok {
		return false, nil
	}
	delete(r.segments, id)
	return true, nil
}

type fakeCustomerStore struct {
	customers []models.Customer
}

func (s *fakeCustomerStore) List(_ context.Context, filter repository.CustomerFilter) ([]models.Customer, error) {
	var out []models.Customer
	for _, c := range s.customers {
		if filter.Country != "" && c.Country != filter.Country {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeCustomerStore) Count(ctx context.Context, filter repository.CustomerFilter) (int, error) {
	matched, err := s.List(ctx, filter)
	return len(matched), err
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
}

func newFakeCampaignRepo(campaigns ...*models.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: make(map[string]*models.Campaign)}
	for _, c := range campaigns {
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) Create(_ context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, id string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) List(_ context.Context) ([]models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Campaign
	for _, c := range r.campaigns {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id string, status models.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return errors.New("campaign not found")
	}
	c.Status = status
	return nil
}

func (r *fakeCampaignRepo) UpdateStatusIf(_ context.Context, id string, from, to models.CampaignStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (r *fakeCampaignRepo) Schedule(_ context.Context, id string, scheduledFor *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != models.CampaignDraft {
		return false, nil
	}
	c.Status = models.CampaignScheduled
	c.ScheduledFor = scheduledFor
	return true, nil
}

func (r *fakeCampaignRepo) status(id string) models.CampaignStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id].Status
}

type fakeAudience struct {
	segment    *models.Segment
	customers  []models.Customer
	resolveErr error
	onResolve  func()
}

func (a *fakeAudience) Get(_ context.Context, id string) (*models.Segment, error) {
	return a.segment, nil
}

func (a *fakeAudience) ResolveAudience(_ context.Context, segmentID string) ([]models.Customer, error) {
	if a.onResolve != nil {
		a.onResolve()
	}
	if a.resolveErr != nil {
		return nil, a.resolveErr
	}
	return a.customers, nil
}

func (a *fakeAudience) Count(_ context.Context, segmentID string) (int, error) {
	return len(a.customers), nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	sent     []string
	failFor  map[string]error
	statuses map[string]models.MessageStatus
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		failFor:  make(map[string]error),
		statuses: make(map[string]models.MessageStatus),
	}
}

func (d *fakeDispatcher) SendMessage(_ context.Context, campaignID, customerID, content string) (*models.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.failFor[customerID]; ok {
		return nil, err
	}
	d.sent = append(d.sent, customerID)
	d.statuses[customerID] = models.MessageDelivered
	return &models.Message{
		CampaignID: campaignID,
		CustomerID: customerID,
		Content:    content,
		Status:     models.MessageDelivered,
	}, nil
}

func (d *fakeDispatcher) Stats(_ context.Context, campaignID string) (models.MessageStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var stats models.MessageStats
	for _, st := range d.statuses {
		switch st {
		case models.MessagePending:
			stats.Pending++
		case models.MessageDelivered:
			stats.Delivered++
		case models.MessageFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	created   []*models.Message
	delivered []string
	failed    map[string]string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{failed: make(map[string]string)}
}

func (r *fakeMessageRepo) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, m)
	return nil
}

func (r *fakeMessageRepo) MarkDelivered(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, id)
	return nil
}

func (r *fakeMessageRepo) MarkFailed(_ context.Context, id string, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = reason
	return nil
}

func (r *fakeMessageRepo) StatsByCampaign(_ context.Context, campaignID string) (models.MessageStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := models.MessageStats{
		Delivered: len(r.delivered),
		Failed:    len(r.failed),
	}
	stats.Pending = len(r.created) - stats.Delivered - stats.Failed
	return stats, nil
}

func (r *fakeMessageRepo) ListByCampaign(_ context.Context, campaignID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.created {
		if m.CampaignID == campaignID {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeCustomerGetter struct {
	customers map[string]*models.Customer
}

func (g *fakeCustomerGetter) GetByID(_ context.Context, id string) (*models.Customer, error) {
	return g.customers[id], nil
}

type fakeOrderAggregator struct {
	totalSpent float64
	orderCount int
	lastOrder  *time.Time
	err        error
}

func (a *fakeOrderAggregator) AggregateByCustomer(_ context.Context, customerID string) (float64, int, *time.Time, error) {
	return a.totalSpent, a.orderCount, a.lastOrder, a.err
}

type fakeCustomerSyncStore struct {
	customer *models.Customer
	updates  int
}

func (s *fakeCustomerSyncStore) GetByID(_ context.Context, id string) (*models.Customer, error) {
	return s.customer, nil
}

func (s *fakeCustomerSyncStore) UpdateStats(_ context.Context, id string, totalSpent float64, visitCount int, lastVisit *time.Time) error {
	s.updates++
	s.customer.TotalSpent = totalSpent
	s.customer.VisitCount = visitCount
	s.customer.LastVisit = lastVisit
	return nil
}

type fakeMembershipStore struct {
	segments []models.Segment
	members  map[string]bool
}

func newFakeMembershipStore(segments ...models.Segment) *fakeMembershipStore {
	return &fakeMembershipStore{segments: segments, members: make(map[string]bool)}
}

func (s *fakeMembershipStore) List(_ context.Context) ([]models.Segment, error) {
	return s.segments, nil
}

func (s *fakeMembershipStore) UpsertMember(_ context.Context, customerID, segmentID string) error {
	s.members[customerID+"/"+segmentID] = true
	return nil
}

func (s *fakeMembershipStore) RemoveMember(_ context.Context, customerID, segmentID string) error {
	delete(s.members, customerID+"/"+segmentID)
	return nil
}
