package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/gatehouse/internal/user/entity"
	userrepo "github.com/ovaphlow/gatehouse/internal/user/repo"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation. Every Hash call salts freshly, so hashing the
// same password twice yields different stored values.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrBadCredentials      = errors.New("invalid credentials")
	ErrFieldNotAddressable = errors.New("field is not addressable")
	ErrUnknownField        = errors.New("unknown field")
)

// Service orchestrates input processing and user record lifecycle. Every
// write path runs sanitize-then-validate before touching the store.
type Service struct {
	repo   *userrepo.UserRepo
	hasher PasswordHasher
	newID  func() int64
}

func NewService(r *userrepo.UserRepo, hasher PasswordHasher, newID func() int64) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Service{repo: r, hasher: hasher, newID: newID}
}

// Register creates a user from untrusted input. Email and password are
// mandatory here even though the schema treats every field as optional;
// the requirement surfaces through the same ValidationError channel.
func (s *Service) Register(ctx context.Context, in Input) (*entity.User, error) {
	in = in.Sanitize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var missing []FieldError
	if in.Email == nil || *in.Email == "" {
		missing = append(missing, FieldError{Field: string(FieldEmail), Rule: "required"})
	}
	if in.Password == nil || *in.Password == "" {
		missing = append(missing, FieldError{Field: string(FieldPassword), Rule: "required"})
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	hash, err := s.hasher.Hash(*in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{
		ID:           s.newID(),
		Email:        normalizeEmail(*in.Email),
		PasswordHash: hash,
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.NationalID != nil {
		u.NationalID = *in.NationalID
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies a password against the record matched by email or
// national-id. Unknown identifier and wrong password are indistinguishable
// to the caller, so accounts cannot be enumerated.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*entity.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrBadCredentials
	}

	var u *entity.User
	var err error
	if strings.Contains(identifier, "@") {
		u, err = s.repo.GetByEmail(ctx, identifier)
	} else {
		u, err = s.repo.GetByNationalID(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" || !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// FindByField looks up a user by exactly one addressable field. Absence is
// a valid result, signalled by the second return value, never by an error.
// With restrict set the sensitive attributes are cleared from the copy.
func (s *Service) FindByField(ctx context.Context, sel FieldValue, restrict bool) (*entity.User, bool, error) {
	var u *entity.User
	var err error
	switch sel.Field {
	case FieldName:
		u, err = s.repo.GetByName(ctx, sel.Value)
	case FieldEmail:
		u, err = s.repo.GetByEmail(ctx, sel.Value)
	case FieldNationalID:
		u, err = s.repo.GetByNationalID(ctx, sel.Value)
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrFieldNotAddressable, sel.Field)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if restrict {
		red := u.Redacted()
		return &red, true, nil
	}
	return u, true, nil
}

// GetByID mirrors FindByField for the primary key; the auth gate hands out
// IDs, not field values.
func (s *Service) GetByID(ctx context.Context, id int64, restrict bool) (*entity.User, bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if restrict {
		red := u.Redacted()
		return &red, true, nil
	}
	return u, true, nil
}

// ApplyField mutates a single field on the record. Password assignments are
// re-hashed with a fresh salt; everything else assigns directly. The caller
// persists the result.
func (s *Service) ApplyField(u *entity.User, fv FieldValue) error {
	switch fv.Field {
	case FieldPassword:
		hash, err := s.hasher.Hash(fv.Value)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	case FieldName:
		u.Name = fv.Value
	case FieldEmail:
		u.Email = normalizeEmail(fv.Value)
	case FieldNationalID:
		u.NationalID = fv.Value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, fv.Field)
	}
	return nil
}

// UpdateByID applies every present input field to the stored record and
// persists it. A vanished record is an error here, unlike lookups: the
// caller proved possession of a session for that ID.
func (s *Service) UpdateByID(ctx context.Context, id int64, in Input) (*entity.User, error) {
	in = in.Sanitize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	for _, fv := range in.Fields() {
		if err := s.ApplyField(u, fv); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
