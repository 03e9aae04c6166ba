package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"user-registry/models"
)

type UserServiceSuite struct {
	suite.Suite
	registry *UserService
}

func (s *UserServiceSuite) SetupTest() {
	registry, err := NewUserService(DefaultPolicy())
	s.Require().NoError(err)
	s.registry = registry
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) createAna() *models.User {
	user, err := s.registry.Create("12345678Z", "Ana", "García López", "1995-03-15")
	s.Require().NoError(err)
	return user
}

func (s *UserServiceSuite) fieldErrors(err error) []models.FieldError {
	var verr *models.ValidationError
	s.Require().ErrorAs(err, &verr)
	return verr.Fields
}

func (s *UserServiceSuite) TestCreate() {
	s.Run("stores record with display birth date", func() {
		user := s.createAna()
		s.Equal(&models.User{
			NationalID: "12345678Z",
			FirstName:  "Ana",
			LastName:   "García López",
			BirthDate:  "15/03/1995",
		}, user)
		s.Equal(1, s.registry.Count())
	})

	s.Run("normalizes identifier to uppercase", func() {
		user, err := s.registry.Create("x1234567l", "Luis", "Pérez", "1988-11-02")
		s.Require().NoError(err)
		s.Equal("X1234567L", user.NationalID)
	})
}

func (s *UserServiceSuite) TestCreateDuplicate() {
	s.createAna()

	_, err := s.registry.Create("12345678Z", "Luis", "Pérez", "1988-11-02")
	s.ErrorIs(err, models.ErrDuplicateID)
	s.Equal([]models.FieldError{{Field: models.FieldNationalID, Reason: models.ReasonDuplicate}}, s.fieldErrors(err))

	_, err = s.registry.Create("12345678z", "Luis", "Pérez", "1988-11-02")
	s.ErrorIs(err, models.ErrDuplicateID, "uniqueness ignores case")

	s.Equal(1, s.registry.Count())
	stored, err := s.registry.FindByID("12345678Z")
	s.Require().NoError(err)
	s.Equal("Ana", stored.FirstName)
}

func (s *UserServiceSuite) TestCreateReportsEveryFailingField() {
	s.Run("identifier only", func() {
		_, err := s.registry.Create("BADID", "Ana", "García", "1995-03-15")
		s.ErrorIs(err, models.ErrValidation)
		s.NotErrorIs(err, models.ErrDuplicateID)
		s.Equal([]models.FieldError{{Field: models.FieldNationalID, Reason: models.ReasonInvalid}}, s.fieldErrors(err))
	})

	s.Run("all fields in validation order", func() {
		_, err := s.registry.Create("", "Ana3", "", "1995-13-01")
		var verr *models.ValidationError
		s.Require().ErrorAs(err, &verr)
		s.Equal([]models.Field{
			models.FieldNationalID,
			models.FieldFirstName,
			models.FieldLastName,
			models.FieldBirthDate,
		}, verr.FieldNames())
	})

	s.Run("duplicate together with invalid names", func() {
		s.createAna()
		_, err := s.registry.Create("12345678Z", " Luis", "Pérez", "1988-11-02")
		s.Equal([]models.FieldError{
			{Field: models.FieldNationalID, Reason: models.ReasonDuplicate},
			{Field: models.FieldFirstName, Reason: models.ReasonInvalid},
		}, s.fieldErrors(err))
	})

	s.Equal(1, s.registry.Count())
}

func (s *UserServiceSuite) TestFindByID() {
	s.createAna()

	for _, id := range []string{"12345678Z", "12345678z"} {
		user, err := s.registry.FindByID(id)
		s.Require().NoError(err, id)
		s.Equal("García López", user.LastName)
	}

	_, err := s.registry.FindByID("87654321X")
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *UserServiceSuite) TestFindBySurnameFragment() {
	s.createAna()
	_, err := s.registry.Create("X1234567L", "Luis", "Pérez", "1988-11-02")
	s.Require().NoError(err)

	matches := s.registry.FindBySurnameFragment("garcía")
	s.Require().Len(matches, 1)
	s.Equal("12345678Z", matches[0].NationalID)

	s.Len(s.registry.FindBySurnameFragment("GARCÍA LÓ"), 1)
	s.Len(s.registry.FindBySurnameFragment("z"), 2, "García López and Pérez both contain z")
	s.Len(s.registry.FindBySurnameFragment(""), 2)

	none := s.registry.FindBySurnameFragment("Zapata")
	s.NotNil(none)
	s.Empty(none)
}

func (s *UserServiceSuite) TestUpdate() {
	s.createAna()

	s.Run("replaces names", func() {
		user, err := s.registry.Update("12345678Z", "Ana", "García-López")
		s.Require().NoError(err)
		s.Equal("García-López", user.LastName)

		stored, err := s.registry.FindByID("12345678Z")
		s.Require().NoError(err)
		s.Equal("García-López", stored.LastName)
		s.Equal("15/03/1995", stored.BirthDate)
	})

	s.Run("invalid names leave the record unchanged", func() {
		before, err := s.registry.FindByID("12345678Z")
		s.Require().NoError(err)

		_, err = s.registry.Update("12345678z", "Ana María", "García 2")
		s.Equal([]models.FieldError{{Field: models.FieldLastName, Reason: models.ReasonInvalid}}, s.fieldErrors(err))

		_, err = s.registry.Update("12345678Z", "", "")
		s.Len(s.fieldErrors(err), 2)

		after, err := s.registry.FindByID("12345678Z")
		s.Require().NoError(err)
		s.Equal(before, after)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.registry.Update("87654321X", "Luis", "Pérez")
		s.ErrorIs(err, models.ErrNotFound)
		s.Equal(1, s.registry.Count())
	})

	s.Run("unknown id wins over invalid names", func() {
		_, err := s.registry.Update("87654321X", "", "")
		s.ErrorIs(err, models.ErrNotFound)
		s.NotErrorIs(err, models.ErrValidation)
	})
}

func (s *UserServiceSuite) TestDelete() {
	s.createAna()
	_, err := s.registry.Create("X1234567L", "Luis", "Pérez", "1988-11-02")
	s.Require().NoError(err)

	removed, err := s.registry.Delete("12345678z")
	s.Require().NoError(err)
	s.Equal("12345678Z", removed.NationalID)
	s.Equal(1, s.registry.Count())

	_, err = s.registry.FindByID("12345678Z")
	s.ErrorIs(err, models.ErrNotFound)

	_, err = s.registry.Delete("12345678Z")
	s.ErrorIs(err, models.ErrNotFound)
	s.Equal(1, s.registry.Count())
	s.True(s.registry.Exists("x1234567l"))
}

func (s *UserServiceSuite) TestSortedBySurname() {
	for _, u := range []struct{ id, first, last string }{
		{"12345678Z", "Ana", "García López"},
		{"X1234567L", "Luis", "pérez"},
		{"Y1234567X", "Eva", "Gómez"},
		{"Z7654321A", "Marta", "garcía lópez"},
	} {
		_, err := s.registry.Create(u.id, u.first, u.last, "1990-01-01")
		s.Require().NoError(err)
	}

	first := s.registry.SortedBySurname()
	s.Equal([]string{"12345678Z", "Z7654321A", "Y1234567X", "X1234567L"}, ids(first), "ties keep insertion order")
	s.Equal(first, s.registry.SortedBySurname(), "sorting twice yields the same order")

	s.Equal([]string{"12345678Z", "X1234567L", "Y1234567X", "Z7654321A"}, ids(s.registry.GetAll()),
		"collection order is not changed by sorting")

	_, err := s.registry.Create("24470848K", "Mario", "Abad", "2002-10-03")
	s.Require().NoError(err)
	s.Equal("24470848K", s.registry.SortedBySurname()[0].NationalID)
}

func (s *UserServiceSuite) TestDatePolicy() {
	s.Run("strict rejects impossible days", func() {
		_, err := s.registry.Create("12345678Z", "Ana", "García", "2021-02-31")
		s.Equal([]models.FieldError{{Field: models.FieldBirthDate, Reason: models.ReasonInvalid}}, s.fieldErrors(err))
	})

	s.Run("lax keeps the pattern-only check", func() {
		lax, err := NewUserService(Policy{StrictDates: false})
		s.Require().NoError(err)
		user, err := lax.Create("12345678Z", "Ana", "García", "2021-02-31")
		s.Require().NoError(err)
		s.Equal("31/02/2021", user.BirthDate)
	})
}

func (s *UserServiceSuite) TestChecksumPolicy() {
	strict, err := NewUserService(Policy{StrictDates: true, VerifyChecksum: true})
	s.Require().NoError(err)

	_, err = strict.Create("12345678A", "Ana", "García", "1995-03-15")
	s.ErrorIs(err, models.ErrValidation)

	_, err = strict.Create("12345678Z", "Ana", "García", "1995-03-15")
	s.NoError(err)

	_, err = s.registry.Create("12345678A", "Ana", "García", "1995-03-15")
	s.NoError(err, "checksum is not enforced by default")
}

func (s *UserServiceSuite) TestSeed() {
	seeded, err := NewUserService(DefaultPolicy(), DefaultSeed()...)
	s.Require().NoError(err)
	s.Equal(1, seeded.Count())

	mario, err := seeded.FindByID("24470848k")
	s.Require().NoError(err)
	s.Equal("03/10/2002", mario.BirthDate)

	_, err = NewUserService(DefaultPolicy(), models.User{NationalID: "BAD", FirstName: "X", LastName: "Y", BirthDate: "01/01/2000"})
	s.ErrorIs(err, models.ErrValidation)

	_, err = NewUserService(DefaultPolicy(), DefaultSeed()[0], DefaultSeed()[0])
	s.ErrorIs(err, models.ErrDuplicateID)
}

func (s *UserServiceSuite) TestRestore() {
	original := s.createAna()
	_, err := s.registry.Delete(original.NationalID)
	s.Require().NoError(err)

	restored, err := s.registry.Restore(*original)
	s.Require().NoError(err)
	s.Equal(original, restored)

	_, err = s.registry.Restore(*original)
	s.ErrorIs(err, models.ErrDuplicateID)
}

func (s *UserServiceSuite) TestReturnsCopies() {
	user := s.createAna()
	user.FirstName = "Mutated"

	found, err := s.registry.FindByID("12345678Z")
	s.Require().NoError(err)
	s.Equal("Ana", found.FirstName)

	found.LastName = "Mutated"
	s.Equal("García López", s.registry.GetAll()[0].LastName)
	s.Equal("García López", s.registry.SortedBySurname()[0].LastName)
}

func (s *UserServiceSuite) TestClear() {
	s.createAna()
	s.registry.Clear()
	s.Equal(0, s.registry.Count())
	s.createAna()
	s.Equal(1, s.registry.Count())
}

func (s *UserServiceSuite) TestConcurrentCreates() {
	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.registry.Create(fmt.Sprintf("%08dT", i), "Ana", "García", "1995-03-15")
			s.NoError(err)
			// Every worker also races for the same id; exactly one wins
			_, _ = s.registry.Create("12345678Z", "Ana", "García", "1995-03-15")
		}(i)
	}
	wg.Wait()

	s.Equal(workers+1, s.registry.Count())
}

func ids(users []*models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.NationalID)
	}
	return out
}
