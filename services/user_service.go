package services

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"user-registry/metrics"
	"user-registry/models"
)

// UserRegistry is the set of operations callers use to manage user records
type UserRegistry interface {
	Create(rawID, rawFirstName, rawLastName, rawBirthDate string) (*models.User, error)
	FindByID(id string) (*models.User, error)
	FindBySurnameFragment(fragment string) []*models.User
	Update(id, firstName, lastName string) (*models.User, error)
	Delete(id string) (*models.User, error)
	SortedBySurname() []*models.User
}

var _ UserRegistry = (*UserService)(nil)

// Policy toggles the stricter field checks
type Policy struct {
	// StrictDates rejects ISO dates that match the pattern but name no real day (2021-02-31)
	StrictDates bool
	// VerifyChecksum enforces the DNI/NIE control letter
	VerifyChecksum bool
}

// DefaultPolicy is the policy used when none is configured
func DefaultPolicy() Policy {
	return Policy{StrictDates: true}
}

// DefaultSeed is the record the registry starts with when seeding is enabled
func DefaultSeed() []models.User {
	return []models.User{
		{NationalID: "24470848K", FirstName: "Mario", LastName: "Morales Ortega", BirthDate: "03/10/2002"},
	}
}

// UserService owns the registered users. One lock guards the whole collection.
type UserService struct {
	users  []*models.User
	mu     sync.RWMutex
	policy Policy
}

// NewUserService creates a registry. Seed records go through the same
// validation as Create; an invalid seed is returned as an error.
func NewUserService(policy Policy, seed ...models.User) (*UserService, error) {
	s := &UserService{
		users:  make([]*models.User, 0, len(seed)),
		policy: policy,
	}
	for _, u := range seed {
		if _, err := s.Restore(u); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.NationalID, err)
		}
	}
	return s, nil
}

// Create validates raw input and appends a new record.
// All failing fields are reported together.
func (s *UserService) Create(rawID, rawFirstName, rawLastName, rawBirthDate string) (*models.User, error) {
	id := models.NormalizeNationalID(rawID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var c models.Collector
	if !s.validID(id) {
		c.Add(models.FieldNationalID, models.ReasonInvalid)
	} else if s.indexOf(id) >= 0 {
		c.Add(models.FieldNationalID, models.ReasonDuplicate)
	}
	if !models.ValidName(rawFirstName) {
		c.Add(models.FieldFirstName, models.ReasonInvalid)
	}
	if !models.ValidName(rawLastName) {
		c.Add(models.FieldLastName, models.ReasonInvalid)
	}
	if !s.validBirthDate(rawBirthDate) {
		c.Add(models.FieldBirthDate, models.ReasonInvalid)
	}
	if err := c.Err(); err != nil {
		recordFailure("create", err)
		return nil, err
	}

	user := &models.User{
		NationalID: id,
		FirstName:  rawFirstName,
		LastName:   rawLastName,
		BirthDate:  models.ISOToDisplayDate(rawBirthDate),
	}
	s.users = append(s.users, user)

	metrics.SetActiveUsers(float64(len(s.users)))
	metrics.RecordOperation("create", nil)

	userCopy := *user
	return &userCopy, nil
}

// FindByID returns the record for id, compared case-insensitively
func (s *UserService) FindByID(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(models.NormalizeNationalID(id))
	if i < 0 {
		return nil, &models.NotFoundError{ID: id}
	}
	userCopy := *s.users[i]
	return &userCopy, nil
}

// FindBySurnameFragment returns records whose surname contains fragment,
// ignoring case, in collection order
func (s *UserService) FindBySurnameFragment(fragment string) []*models.User {
	needle := fold(fragment)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.User, 0)
	for _, user := range s.users {
		if strings.Contains(fold(user.LastName), needle) {
			userCopy := *user
			matches = append(matches, &userCopy)
		}
	}
	return matches
}

// Update replaces the name fields of an existing record. A record that fails
// validation is left untouched.
func (s *UserService) Update(id, firstName, lastName string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(models.NormalizeNationalID(id))
	if i < 0 {
		err := &models.NotFoundError{ID: id}
		metrics.RecordOperation("update", err)
		return nil, err
	}

	var c models.Collector
	if !models.ValidName(firstName) {
		c.Add(models.FieldFirstName, models.ReasonInvalid)
	}
	if !models.ValidName(lastName) {
		c.Add(models.FieldLastName, models.ReasonInvalid)
	}
	if err := c.Err(); err != nil {
		recordFailure("update", err)
		return nil, err
	}

	existing := s.users[i]
	existing.FirstName = firstName
	existing.LastName = lastName
	metrics.RecordOperation("update", nil)

	userCopy := *existing
	return &userCopy, nil
}

// Delete removes the record for id and returns it
func (s *UserService) Delete(id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(models.NormalizeNationalID(id))
	if i < 0 {
		err := &models.NotFoundError{ID: id}
		metrics.RecordOperation("delete", err)
		return nil, err
	}

	removed := s.users[i]
	s.users = slices.Delete(s.users, i, i+1)

	metrics.SetActiveUsers(float64(len(s.users)))
	metrics.RecordOperation("delete", nil)

	return removed, nil
}

// SortedBySurname returns every record ordered by case-folded surname.
// Equal surnames keep their collection order; the collection itself is not reordered.
func (s *UserService) SortedBySurname() []*models.User {
	return SortBySurname(s.GetAll())
}

// SortBySurname stably sorts users in place by case-folded surname and returns them
func SortBySurname(users []*models.User) []*models.User {
	slices.SortStableFunc(users, func(a, b *models.User) int {
		return strings.Compare(fold(a.LastName), fold(b.LastName))
	})
	return users
}

// GetAll returns copies of every record in collection order
func (s *UserService) GetAll() []*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		userCopy := *user
		users = append(users, &userCopy)
	}
	return users
}

// Restore re-inserts a record whose birth date is already in display form,
// e.g. one read back from a backup. It is validated exactly like Create.
func (s *UserService) Restore(user models.User) (*models.User, error) {
	iso, err := models.DisplayToISODate(user.BirthDate)
	if err != nil {
		iso = user.BirthDate
	}
	return s.Create(user.NationalID, user.FirstName, user.LastName, iso)
}

// Count returns the number of users
func (s *UserService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Exists checks if a user with id is registered
func (s *UserService) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(models.NormalizeNationalID(id)) >= 0
}

// Clear removes all users
func (s *UserService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = s.users[:0]
	metrics.SetActiveUsers(0)
}

// Policy returns the active validation policy
func (s *UserService) Policy() Policy {
	return s.policy
}

// indexOf expects a normalized id; caller must hold the lock
func (s *UserService) indexOf(id string) int {
	return slices.IndexFunc(s.users, func(u *models.User) bool {
		return u.NationalID == id
	})
}

func (s *UserService) validID(id string) bool {
	if !models.ValidNationalID(id) {
		return false
	}
	return !s.policy.VerifyChecksum || models.NationalIDChecksumOK(id)
}

func (s *UserService) validBirthDate(iso string) bool {
	if !models.ValidBirthDate(iso) {
		return false
	}
	return !s.policy.StrictDates || models.ValidCalendarDate(iso)
}

func recordFailure(operation string, err error) {
	metrics.RecordOperation(operation, err)
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			metrics.RecordValidationFailure(string(f.Field), string(f.Reason))
		}
	}
}

// fold maps s to its Unicode case-folded form. Casers are not safe for
// concurrent use, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
