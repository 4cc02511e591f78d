package student

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps users in process memory. It enforces the same
// uniqueness rules as the Postgres schema.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
	prints []PrintEntry
	now    func() time.Time
}

// PrintEntry is one print_log row.
type PrintEntry struct {
	UserID    int64
	PrintedAt time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[int64]User), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(0, u.Email, u.RegNo) {
		return User{}, ErrDuplicate
	}
	r.nextID++
	u.ID = r.nextID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, role, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Role == role && u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepository) CountAdmins(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.users {
		if u.Role == RoleAdmin {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, id int64, p Profile) error {
	return r.update(id, func(u *User) error {
		if r.conflicts(id, "", p.RegNo) {
			return ErrDuplicate
		}
		u.FullName, u.Sex, u.DOB, u.BloodGroup = p.FullName, p.Sex, p.DOB, p.BloodGroup
		u.Course, u.RegNo, u.Level = p.Course, p.RegNo, p.Level
		return nil
	})
}

func (r *MemoryRepository) SetAssets(_ context.Context, id int64, passportPath, signaturePath string) error {
	return r.update(id, func(u *User) error {
		if passportPath != "" {
			u.PassportPath = passportPath
		}
		if signaturePath != "" {
			u.SignaturePath = signaturePath
		}
		return nil
	})
}

func (r *MemoryRepository) SetReceipt(_ context.Context, id int64, path string) error {
	return r.update(id, func(u *User) error {
		u.ReceiptPath = path
		u.Approved = false
		return nil
	})
}

func (r *MemoryRepository) SetApproval(_ context.Context, id int64, approved bool) error {
	return r.update(id, func(u *User) error {
		u.Approved = approved
		return nil
	})
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	kept := r.prints[:0]
	for _, p := range r.prints {
		if p.UserID != id {
			kept = append(kept, p)
		}
	}
	r.prints = kept
	return nil
}

func (r *MemoryRepository) ListStudents(_ context.Context, query string) ([]User, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	out := r.students(func(u User) bool {
		return q == "" ||
			strings.Contains(strings.ToLower(u.FullName), q) ||
			strings.Contains(strings.ToLower(u.RegNo), q)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *MemoryRepository) StudentsByName(_ context.Context) ([]User, error) {
	out := r.students(func(User) bool { return true })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Stats(_ context.Context) (Stats, error) {
	var s Stats
	for _, u := range r.students(func(User) bool { return true }) {
		s.Total++
		if u.Approved {
			s.Approved++
		} else {
			s.Pending++
		}
		s.Prints += u.PrintCount
	}
	return s, nil
}

func (r *MemoryRepository) RecordPrint(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Role != RoleStudent {
		return ErrNotFound
	}
	u.PrintCount++
	r.users[id] = u
	r.prints = append(r.prints, PrintEntry{UserID: id, PrintedAt: at})
	return nil
}

// Prints returns a copy of the print log.
func (r *MemoryRepository) Prints() []PrintEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PrintEntry(nil), r.prints...)
}

func (r *MemoryRepository) update(id int64, fn func(*User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	r.users[id] = u
	return nil
}

func (r *MemoryRepository) students(keep func(User) bool) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []User
	for _, u := range r.users {
		if u.Role == RoleStudent && keep(u) {
			out = append(out, u)
		}
	}
	return out
}

// conflicts must be called with r.mu held. Empty reg nos never conflict,
// matching NULL semantics of the unique column.
func (r *MemoryRepository) conflicts(self int64, email, regNo string) bool {
	for id, u := range r.users {
		if id == self {
			continue
		}
		if email != "" && u.Email == email {
			return true
		}
		if regNo != "" && u.RegNo == regNo {
			return true
		}
	}
	return false
}
