package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pasarlive/internal/domain/entity"
	"pasarlive/pkg/errors"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo(ids ...string) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, id := range ids {
		r.add(id)
	}
	return r
}

func (r *fakeUserRepo) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &entity.User{ID: id, Username: id}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return u, nil
}

type fakeProductRepo struct {
	products map[string]*entity.Product
}

func newFakeProductRepo(ids ...string) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[string]*entity.Product)}
	for _, id := range ids {
		r.products[id] = &entity.Product{ID: id, Title: id}
	}
	return r
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, errors.NotFound("Product", nil)
	}
	return p, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]entity.Message
	order    []string
	updates  int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]entity.Message)}
}

func (r *fakeMessageRepo) Create(_ context.Context, m *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.messages[m.ID] = *m
	r.order = append(r.order, m.ID)
	return nil
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return &m, nil
}

func (r *fakeMessageRepo) Update(_ context.Context, m *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; !ok {
		return errors.NotFound("Message", nil)
	}
	r.messages[m.ID] = *m
	r.updates++
	return nil
}

func (r *fakeMessageRepo) ListConversation(_ context.Context, userID, otherUserID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.Message
	for _, id := range r.order {
		m := r.messages[id]
		inConversation := (m.SenderID == userID && m.RecipientID == otherUserID) ||
			(m.SenderID == otherUserID && m.RecipientID == userID)
		if !inConversation || m.ArchivedFor(userID) {
			continue
		}
		copied := m
		matched = append(matched, &copied)
	}

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]entity.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[string]entity.Notification)}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	r.notifications[n.ID] = *n
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id string) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, errors.NotFound("Notification", nil)
	}
	return &n, nil
}

func (r *fakeNotificationRepo) Update(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.ID] = *n
	return nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notifications, id)
	return nil
}

func (r *fakeNotificationRepo) ListByUserID(_ context.Context, userID string, _, _ int) ([]*entity.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			copied := n
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.notifications {
		if item.UserID == userID && !item.Read {
			n++
		}
	}
	return n, nil
}

// fakeSyncQueueRepo stores copies so the engine must persist explicitly.
type fakeSyncQueueRepo struct {
	mu    sync.Mutex
	items map[string]*entity.SyncQueueItem
	seq   map[string]int
	next  int

	// failUpdate, when set, can reject an Update before it is stored.
	failUpdate func(item *entity.SyncQueueItem) error
}

func newFakeSyncQueueRepo() *fakeSyncQueueRepo {
	return &fakeSyncQueueRepo{
		items: make(map[string]*entity.SyncQueueItem),
		seq:   make(map[string]int),
	}
}

func cloneItem(item *entity.SyncQueueItem) *entity.SyncQueueItem {
	copied := *item
	copied.Data = append(json.RawMessage(nil), item.Data...)
	if item.SyncedAt != nil {
		t := *item.SyncedAt
		copied.SyncedAt = &t
	}
	return &copied
}

func (r *fakeSyncQueueRepo) Create(_ context.Context, item *entity.SyncQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	r.items[item.ID] = cloneItem(item)
	r.seq[item.ID] = r.next
	r.next++
	return nil
}

func (r *fakeSyncQueueRepo) Update(_ context.Context, item *entity.SyncQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return errors.NotFound("Sync operation", nil)
	}
	if r.failUpdate != nil {
		if err := r.failUpdate(item); err != nil {
			return err
		}
	}
	r.items[item.ID] = cloneItem(item)
	return nil
}

func (r *fakeSyncQueueRepo) GetByID(_ context.Context, id string) (*entity.SyncQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("Sync operation", nil)
	}
	return cloneItem(item), nil
}

func (r *fakeSyncQueueRepo) filter(match func(*entity.SyncQueueItem) bool) []*entity.SyncQueueItem {
	var out []*entity.SyncQueueItem
	for _, item := range r.items {
		if match(item) {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] < r.seq[out[j].ID] })
	return out
}

func (r *fakeSyncQueueRepo) FindPendingByEntity(_ context.Context, userID, entityID string, entityType entity.SyncEntityType) ([]*entity.SyncQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(i *entity.SyncQueueItem) bool {
		return i.UserID == userID && i.EntityID == entityID && i.EntityType == entityType && i.Status == entity.SyncStatusPending
	}), nil
}

func (r *fakeSyncQueueRepo) ListByStatus(_ context.Context, userID string, status entity.SyncStatus) ([]*entity.SyncQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(i *entity.SyncQueueItem) bool {
		return i.UserID == userID && i.Status == status
	}), nil
}

func (r *fakeSyncQueueRepo) CountByStatus(ctx context.Context, userID string, status entity.SyncStatus) (int64, error) {
	items, err := r.ListByStatus(ctx, userID, status)
	return int64(len(items)), err
}

func (r *fakeSyncQueueRepo) ResetFailed(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && item.Status == entity.SyncStatusFailed {
			item.Status = entity.SyncStatusPending
			n++
		}
	}
	return n, nil
}

func (r *fakeSyncQueueRepo) RemapPendingEntityID(_ context.Context, userID string, entityType entity.SyncEntityType, oldID, newID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && item.EntityType == entityType && item.EntityID == oldID && item.Status == entity.SyncStatusPending {
			item.EntityID = newID
			n++
		}
	}
	return n, nil
}

func (r *fakeSyncQueueRepo) DeleteCompleted(_ context.Context, userID string, olderThan *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, item := range r.items {
		if item.UserID != userID || item.Status != entity.SyncStatusCompleted {
			continue
		}
		if olderThan != nil && (item.SyncedAt == nil || !item.SyncedAt.Before(*olderThan)) {
			continue
		}
		delete(r.items, id)
		n++
	}
	return n, nil
}

func (r *fakeSyncQueueRepo) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, item := range r.items {
		if item.Status == entity.SyncStatusCompleted && item.SyncedAt != nil && item.SyncedAt.Before(cutoff) {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

type deliveredEvent struct {
	userID  string
	payload entity.NotificationPayload
}

type recordingDeliverer struct {
	mu     sync.Mutex
	events []deliveredEvent
}

func (d *recordingDeliverer) Deliver(userID string, payload entity.NotificationPayload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, deliveredEvent{userID: userID, payload: payload})
}

func (d *recordingDeliverer) snapshot() []deliveredEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]deliveredEvent(nil), d.events...)
}
