package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/work-item-tracker/internal/model"
	"github.com/iliyamo/work-item-tracker/internal/queue"
	"github.com/iliyamo/work-item-tracker/internal/repository"
)

// In-memory stores mirroring the repository contracts: user/challenge/
// session lookups report sql.ErrNoRows for missing rows, the work item
// store reports repository.ErrNotFound.

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newMemUsers() *memUsers {
	return &memUsers{nextID: 1, byID: map[uint64]model.User{}}
}

func (m *memUsers) Create(_ context.Context, email, firstName, lastName, passwordHash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	id := m.nextID
	m.nextID++
	now := time.Now().UTC()
	m.byID[id] = model.User{
		ID: id, Email: email, FirstName: firstName, LastName: lastName,
		PasswordHash: passwordHash, VerificationState: model.StatePending,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memUsers) SetVerificationState(_ context.Context, id uint64, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.VerificationState = state
	m.byID[id] = u
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

func (m *memUsers) ListVerified(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.byID {
		if u.IsActive && u.VerificationState == model.StateVerified {
			out = append(out, u)
		}
	}
	return out, nil
}

type resetTokenRow struct {
	userID uint64
	exp    time.Time
}

type memChallenges struct {
	mu          sync.Mutex
	nextID      uint64
	rows        []model.Challenge
	resetTokens map[string]resetTokenRow
	users       *memUsers

	// Injected faults, each returned once before any state is touched,
	// mirroring a rolled-back store transaction.
	verifyErr error
	resetErr  error
}

func newMemChallenges(users *memUsers) *memChallenges {
	return &memChallenges{nextID: 1, resetTokens: map[string]resetTokenRow{}, users: users}
}

func (m *memChallenges) Issue(_ context.Context, userID uint64, purpose, code string, ttl time.Duration) (model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for i := range m.rows {
		r := &m.rows[i]
		if r.UserID == userID && r.Purpose == purpose && r.ConsumedAt == nil && r.SupersededAt == nil {
			t := now
			r.SupersededAt = &t
		}
	}
	ch := model.Challenge{
		ID: m.nextID, UserID: userID, Purpose: purpose, Code: code,
		IssuedAt: now, ExpiresAt: now.Add(ttl),
	}
	m.nextID++
	m.rows = append(m.rows, ch)
	return ch, nil
}

func (m *memChallenges) GetActive(_ context.Context, userID uint64, purpose string) (model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for i := len(m.rows) - 1; i >= 0; i-- {
		r := m.rows[i]
		if r.UserID == userID && r.Purpose == purpose && r.Active(now) {
			return r, nil
		}
	}
	return model.Challenge{}, sql.ErrNoRows
}

// consume marks the challenge used; false when it is unknown or already
// consumed. Caller holds the lock.
func (m *memChallenges) consume(challengeID uint64) bool {
	for i := range m.rows {
		r := &m.rows[i]
		if r.ID == challengeID && r.ConsumedAt == nil {
			t := time.Now().UTC()
			r.ConsumedAt = &t
			return true
		}
	}
	return false
}

func (m *memChallenges) ConsumeAndVerify(ctx context.Context, challengeID, userID uint64) error {
	m.mu.Lock()
	if err := m.verifyErr; err != nil {
		m.verifyErr = nil
		m.mu.Unlock()
		return err
	}
	ok := m.consume(challengeID)
	m.mu.Unlock()
	if !ok {
		return sql.ErrNoRows
	}
	return m.users.SetVerificationState(ctx, userID, model.StateVerified)
}

func (m *memChallenges) ConsumeAndStoreResetToken(_ context.Context, challengeID, userID uint64, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.consume(challengeID) {
		return sql.ErrNoRows
	}
	for h, row := range m.resetTokens {
		if row.userID == userID {
			delete(m.resetTokens, h)
		}
	}
	m.resetTokens[tokenHash] = resetTokenRow{userID: userID, exp: exp}
	return nil
}

func (m *memChallenges) ConsumeResetTokenAndSetPassword(ctx context.Context, tokenHash, passwordHash string) error {
	m.mu.Lock()
	if err := m.resetErr; err != nil {
		m.resetErr = nil
		m.mu.Unlock()
		return err
	}
	row, ok := m.resetTokens[tokenHash]
	if !ok || time.Now().UTC().After(row.exp) {
		m.mu.Unlock()
		return sql.ErrNoRows
	}
	delete(m.resetTokens, tokenHash)
	m.mu.Unlock()
	return m.users.UpdatePasswordHash(ctx, row.userID, passwordHash)
}

type sessionRow struct {
	tokenHash string
	exp       time.Time
}

type memSessions struct {
	mu     sync.Mutex
	byUser map[uint64]sessionRow
}

func newMemSessions() *memSessions { return &memSessions{byUser: map[uint64]sessionRow{}} }

func (m *memSessions) Replace(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[userID] = sessionRow{tokenHash: tokenHash, exp: exp}
	return nil
}

func (m *memSessions) ValidateToken(_ context.Context, tokenHash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, row := range m.byUser {
		if row.tokenHash == tokenHash && time.Now().UTC().Before(row.exp) {
			return uid, nil
		}
	}
	return 0, sql.ErrNoRows
}

func (m *memSessions) DeleteForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
	return nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

// recordingNotifier captures published events so tests can read the issued
// code the way a user would read their inbox.
type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.ChallengeIssuedEvent
}

func (n *recordingNotifier) ChallengeIssued(_ context.Context, ev queue.ChallengeIssuedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) last() queue.ChallengeIssuedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return queue.ChallengeIssuedEvent{}
	}
	return n.events[len(n.events)-1]
}

type memWorkItems struct {
	mu   sync.Mutex
	byID map[string]model.WorkItem
}

func newMemWorkItems() *memWorkItems { return &memWorkItems{byID: map[string]model.WorkItem{}} }

func (m *memWorkItems) Create(_ context.Context, w *model.WorkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[w.ID] = *w
	return nil
}

func (m *memWorkItems) GetByID(_ context.Context, id string, includeInactive bool) (model.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok || (!includeInactive && !w.IsActive) {
		return model.WorkItem{}, repository.ErrNotFound
	}
	return w, nil
}

func (m *memWorkItems) List(_ context.Context, f repository.WorkItemFilter) ([]model.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WorkItem
	for _, w := range m.byID {
		if !f.IncludeInactive && !w.IsActive {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		if f.Priority != "" && w.Priority != f.Priority {
			continue
		}
		if f.AssignedTo != 0 && (w.AssignedTo == nil || *w.AssignedTo != f.AssignedTo) {
			continue
		}
		if f.CreatedBy != 0 && w.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (m *memWorkItems) Save(_ context.Context, w *model.WorkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[w.ID]; !ok {
		return repository.ErrNotFound
	}
	m.byID[w.ID] = *w
	return nil
}

func (m *memWorkItems) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	w.IsActive = active
	m.byID[id] = w
	return nil
}

func (m *memWorkItems) PermanentDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}
