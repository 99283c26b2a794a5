package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/repository"
)

// Shared in-memory fakes for service tests.

// MockUserRepository is an in-memory implementation of repository.UserRepository.
type MockUserRepository struct {
	mu        sync.Mutex
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []*domain.User
	for _, u := range m.users {
		users = append(users, u)
	}
	return &repository.ListResult[domain.User]{
		Items:  users,
		Total:  int64(len(users)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *MockUserRepository) addUser(username string) *domain.User {
	user := domain.NewUser(username, username+"@campus.edu", "hash")
	_ = m.Create(context.Background(), user)
	return user
}

// MockItemRepository is an in-memory implementation of repository.ItemRepository
// with the same conditional claim semantics as the real ones.
type MockItemRepository struct {
	mu        sync.Mutex
	items     map[int64]*domain.Item
	nextID    int64
	createErr error
	getErr    error
	claimErr  error
}

func NewMockItemRepository() *MockItemRepository {
	return &MockItemRepository{
		items:  make(map[int64]*domain.Item),
		nextID: 1,
	}
}

func (m *MockItemRepository) Create(ctx context.Context, item *domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	item.ID = m.nextID
	m.nextID++
	copied := *item
	m.items[item.ID] = &copied
	return nil
}

func (m *MockItemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if it, ok := m.items[id]; ok {
		copied := *it
		return &copied, nil
	}
	return nil, domain.ErrItemNotFound
}

func (m *MockItemRepository) List(ctx context.Context, opts repository.ItemListOptions) (*repository.ListResult[domain.Item], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*domain.Item
	for _, it := range m.items {
		copied := *it
		items = append(items, &copied)
	}
	return &repository.ListResult[domain.Item]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockItemRepository) ClaimIfOpen(ctx context.Context, itemID, claimantID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return false, m.claimErr
	}
	it, ok := m.items[itemID]
	if !ok || it.IsClaimed || it.FoundByID == claimantID {
		return false, nil
	}
	it.IsClaimed = true
	it.ClaimedByID = &claimantID
	it.ClaimedAt = &at
	return true, nil
}

func (m *MockItemRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MockItemRepository) ListImageRefs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []string
	for _, it := range m.items {
		if it.ImageRef != "" {
			refs = append(refs, it.ImageRef)
		}
	}
	return refs, nil
}

// MockImageBackend is an in-memory implementation of storage.Backend.
type MockImageBackend struct {
	mu       sync.Mutex
	images   map[string][]byte
	nextRef  int
	storeErr error
}

func NewMockImageBackend() *MockImageBackend {
	return &MockImageBackend{images: make(map[string][]byte)}
}

func (m *MockImageBackend) Store(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return "", m.storeErr
	}
	if contentType != "image/jpeg" && contentType != "image/png" && contentType != "image/gif" {
		return "", domain.ErrImageTypeNotAllowed
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.nextRef++
	ref := fmt.Sprintf("img-%d.jpg", m.nextRef)
	m.images[ref] = data
	return ref, nil
}

func (m *MockImageBackend) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.images[ref]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockImageBackend) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[ref]; !ok {
		return domain.ErrImageNotFound
	}
	delete(m.images, ref)
	return nil
}

func (m *MockImageBackend) Exists(ctx context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.images[ref]
	return ok, nil
}

func (m *MockImageBackend) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []string
	for ref := range m.images {
		refs = append(refs, ref)
	}
	return refs, nil
}

func (m *MockImageBackend) URLPath(ref string) string {
	return "/uploads/" + ref
}

func (m *MockImageBackend) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}
