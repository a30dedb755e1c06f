package identity

import (
	"context"
	"slices"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
}

// NewMemoryRepository builds an in-memory user store for tests and local runs.
// It enforces the same phone and email uniqueness as the Postgres schema.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[int64]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(0, user.Phone, user.Email); err != nil {
		return User{}, err
	}
	r.nextID++
	user.ID = r.nextID
	user.Devices = slices.Clone(user.Devices)
	r.users[user.ID] = user
	return clone(user), nil
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	return r.findBy(func(u User) bool { return phone != "" && u.Phone == phone })
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	return r.findBy(func(u User) bool { return email != "" && u.Email == email })
}

func (r *memoryRepository) List(_ context.Context, roles ...Role) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []User
	for _, user := range r.users {
		if len(roles) > 0 && !slices.Contains(roles, user.Role) {
			continue
		}
		out = append(out, clone(user))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryRepository) UpdatePassword(_ context.Context, id int64, hash []byte) error {
	return r.update(id, func(u *User) error {
		u.PasswordHash = slices.Clone(hash)
		return nil
	})
}

func (r *memoryRepository) UpdatePhone(_ context.Context, id int64, phone string) error {
	return r.update(id, func(u *User) error {
		if err := r.checkUnique(id, phone, ""); err != nil {
			return err
		}
		u.Phone = phone
		return nil
	})
}

func (r *memoryRepository) UpdateEmail(_ context.Context, id int64, email string) error {
	return r.update(id, func(u *User) error {
		if err := r.checkUnique(id, "", email); err != nil {
			return err
		}
		u.Email = email
		return nil
	})
}

func (r *memoryRepository) UpdateFullName(_ context.Context, id int64, fullName string) error {
	return r.update(id, func(u *User) error {
		u.FullName = fullName
		return nil
	})
}

func (r *memoryRepository) AddDevice(_ context.Context, id int64, device string) (bool, error) {
	added := false
	err := r.update(id, func(u *User) error {
		if !slices.Contains(u.Devices, device) {
			u.Devices = append(u.Devices, device)
			added = true
		}
		return nil
	})
	return added, err
}

func (r *memoryRepository) RemoveDevice(_ context.Context, id int64, device string) ([]string, error) {
	var remaining []string
	err := r.update(id, func(u *User) error {
		idx := slices.Index(u.Devices, device)
		if idx < 0 {
			return ErrDeviceNotFound
		}
		u.Devices = slices.DeleteFunc(slices.Clone(u.Devices), func(d string) bool { return d == device })
		remaining = slices.Clone(u.Devices)
		return nil
	})
	return remaining, err
}

func (r *memoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryRepository) findBy(match func(User) bool) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if match(user) {
			return clone(user), nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryRepository) update(id int64, mutate func(*User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if err := mutate(&user); err != nil {
		return err
	}
	r.users[id] = user
	return nil
}

// checkUnique must be called with r.mu held.
func (r *memoryRepository) checkUnique(self int64, phone, email string) error {
	for id, user := range r.users {
		if id == self {
			continue
		}
		if phone != "" && user.Phone == phone {
			return ErrPhoneTaken
		}
		if email != "" && user.Email == email {
			return ErrEmailTaken
		}
	}
	return nil
}

func clone(u User) User {
	u.Devices = slices.Clone(u.Devices)
	u.PasswordHash = slices.Clone(u.PasswordHash)
	return u
}
