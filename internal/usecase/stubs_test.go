package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/repository"
)

type stubAccountRepo struct {
	accounts     map[int64]domain.Account
	setPasswords []setPasswordCall
	lastLogins   []int64
}

type setPasswordCall struct {
	id        int64
	hash      string
	changedAt time.Time
}

func newStubAccountRepo(accounts ...domain.Account) *stubAccountRepo {
	r := &stubAccountRepo{accounts: make(map[int64]domain.Account)}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *stubAccountRepo) Create(_ context.Context, account domain.Account) (int64, error) {
	id := int64(len(r.accounts) + 1)
	account.ID = id
	r.accounts[id] = account
	return id, nil
}

func (r *stubAccountRepo) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	if account, ok := r.accounts[id]; ok {
		copied := account
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccountRepo) GetByLogin(_ context.Context, kind domain.AccountKind, login string) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.Kind == kind && account.Login == domain.FoldLogin(login) && account.Status == domain.AccountStatusEnabled {
			copied := account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccountRepo) GetByEmail(_ context.Context, kind domain.AccountKind, email string) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.Kind == kind && account.Email == domain.FoldLogin(email) && account.Status == domain.AccountStatusEnabled {
			copied := account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccountRepo) List(context.Context, port.AccountFilter) ([]domain.Account, error) {
	out := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		out = append(out, account)
	}
	return out, nil
}

func (r *stubAccountRepo) Count(context.Context, port.AccountFilter) (int, error) {
	return len(r.accounts), nil
}

func (r *stubAccountRepo) UpdateStatus(_ context.Context, id int64, status domain.AccountStatus) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.Status = status
	r.accounts[id] = account
	return nil
}

func (r *stubAccountRepo) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LastLogin = &at
	r.accounts[id] = account
	r.lastLogins = append(r.lastLogins, id)
	return nil
}

func (r *stubAccountRepo) SetPassword(_ context.Context, id int64, hash string, changedAt time.Time) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = hash
	account.PasswordChangedAt = changedAt
	r.accounts[id] = account
	r.setPasswords = append(r.setPasswords, setPasswordCall{id: id, hash: hash, changedAt: changedAt})
	return nil
}

type stubAttemptRepo struct {
	attempts []domain.LoginAttempt
}

func (r *stubAttemptRepo) Append(_ context.Context, attempt domain.LoginAttempt) error {
	attempt.ID = int64(len(r.attempts) + 1)
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *stubAttemptRepo) Recent(_ context.Context, login, ip string, limit int) ([]domain.LoginAttempt, error) {
	matched := make([]domain.LoginAttempt, 0, limit)
	for i := len(r.attempts) - 1; i >= 0 && len(matched) < limit; i-- {
		attempt := r.attempts[i]
		if attempt.Login != login {
			continue
		}
		if ip != "" && attempt.IP != ip {
			continue
		}
		matched = append(matched, attempt)
	}
	return matched, nil
}

type stubPolicyRepo struct {
	policies    map[int64]domain.Policy
	assignments map[int64][]int64
}

func newStubPolicyRepo(policies ...domain.Policy) *stubPolicyRepo {
	r := &stubPolicyRepo{
		policies:    make(map[int64]domain.Policy),
		assignments: make(map[int64][]int64),
	}
	for _, p := range policies {
		r.policies[p.ID] = p
	}
	return r
}

func (r *stubPolicyRepo) assign(policyID, accountID int64) {
	r.assignments[accountID] = append(r.assignments[accountID], policyID)
}

func (r *stubPolicyRepo) Create(_ context.Context, policy domain.Policy) (int64, error) {
	id := int64(len(r.policies) + 1)
	policy.ID = id
	r.policies[id] = policy
	return id, nil
}

func (r *stubPolicyRepo) GetByID(_ context.Context, id int64) (*domain.Policy, error) {
	if policy, ok := r.policies[id]; ok {
		copied := policy
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubPolicyRepo) GetByName(_ context.Context, name string) (*domain.Policy, error) {
	for _, policy := range r.policies {
		if policy.Name == name {
			copied := policy
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubPolicyRepo) List(context.Context) ([]domain.Policy, error) {
	out := make([]domain.Policy, 0, len(r.policies))
	for _, policy := range r.policies {
		out = append(out, policy)
	}
	return out, nil
}

func (r *stubPolicyRepo) ListByAccount(_ context.Context, accountID int64) ([]domain.Policy, error) {
	ids := r.assignments[accountID]
	out := make([]domain.Policy, 0, len(ids))
	for _, id := range ids {
		if policy, ok := r.policies[id]; ok {
			out = append(out, policy)
		}
	}
	return out, nil
}

func (r *stubPolicyRepo) AssignToAccount(_ context.Context, policyID, accountID int64) error {
	r.assign(policyID, accountID)
	return nil
}

func (r *stubPolicyRepo) LockoutForKind(_ context.Context, kind domain.AccountKind) (*domain.Policy, error) {
	var best *domain.Policy
	for id := range r.policies {
		policy := r.policies[id]
		if policy.Kind != kind || !policy.LockoutEnabled {
			continue
		}
		if best == nil || policy.Priority < best.Priority ||
			(policy.Priority == best.Priority && policy.Name < best.Name) {
			copied := policy
			best = &copied
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

type stubHistoryRepo struct {
	entries []domain.PasswordHistoryEntry
}

func (r *stubHistoryRepo) Recent(_ context.Context, accountID int64, limit int) ([]domain.PasswordHistoryEntry, error) {
	matched := make([]domain.PasswordHistoryEntry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(matched) < limit; i-- {
		if r.entries[i].AccountID == accountID {
			matched = append(matched, r.entries[i])
		}
	}
	return matched, nil
}

type stubResetRepo struct {
	requests []domain.PasswordResetRequest
	redeemed []int64
	onRedeem func(requestID, accountID int64, hash string, at time.Time) error
}

func (r *stubResetRepo) Create(_ context.Context, request domain.PasswordResetRequest) (int64, error) {
	request.ID = int64(len(r.requests) + 1)
	r.requests = append(r.requests, request)
	return request.ID, nil
}

func (r *stubResetRepo) FindActive(_ context.Context, accountID int64, code string) (*domain.PasswordResetRequest, error) {
	for i := len(r.requests) - 1; i >= 0; i-- {
		request := r.requests[i]
		if request.AccountID == accountID && request.Code == code &&
			!request.Used && request.Status == domain.ResetRequestEnabled {
			copied := request
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubResetRepo) Redeem(_ context.Context, requestID, accountID int64, hash string, at time.Time) error {
	if r.onRedeem != nil {
		if err := r.onRedeem(requestID, accountID, hash, at); err != nil {
			return err
		}
	}
	for i := range r.requests {
		if r.requests[i].ID == requestID {
			if r.requests[i].Used {
				return repository.ErrNotFound
			}
			r.requests[i].Used = true
			r.redeemed = append(r.redeemed, requestID)
			return nil
		}
	}
	return repository.ErrNotFound
}

// plainHasher sidesteps Argon2 cost in tests; "hashes" are the password with
// a fixed prefix.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hash:" + password, nil
}

func (plainHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hash:"+password, nil
}

type stubPublisher struct {
	passwordChanged []domain.PasswordChangedEvent
	resetRequested  []domain.PasswordResetRequestedEvent
	statusChanged   []domain.AccountStatusChangedEvent
}

func (p *stubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.passwordChanged = append(p.passwordChanged, event)
	return nil
}

func (p *stubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.resetRequested = append(p.resetRequested, event)
	return nil
}

func (p *stubPublisher) PublishAccountStatusChanged(_ context.Context, event domain.AccountStatusChangedEvent) error {
	p.statusChanged = append(p.statusChanged, event)
	return nil
}

type stubNotifier struct {
	sent      []stubNotification
	delivered bool
	err       error
}

type stubNotification struct {
	account  domain.Account
	template string
	data     map[string]string
}

func (n *stubNotifier) Send(_ context.Context, account domain.Account, template string, data map[string]string) (bool, error) {
	n.sent = append(n.sent, stubNotification{account: account, template: template, data: data})
	if n.err != nil {
		return false, n.err
	}
	return n.delivered, nil
}

type stubRateLimitStore struct {
	counts   map[string]int
	recorded []string
}

func newStubRateLimitStore() *stubRateLimitStore {
	return &stubRateLimitStore{counts: make(map[string]int)}
}

func (s *stubRateLimitStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return nil
}

func (s *stubRateLimitStore) CountAttempts(_ context.Context, identifier string, _ time.Duration, _ time.Time) (int, error) {
	return s.counts[identifier], nil
}

func (s *stubRateLimitStore) RecordAttempt(_ context.Context, identifier string, _ time.Time) error {
	s.counts[identifier]++
	s.recorded = append(s.recorded, identifier)
	return nil
}

func (s *stubRateLimitStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

var errStub = errors.New("stub failure")
