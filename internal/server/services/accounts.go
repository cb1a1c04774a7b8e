// Package services contains the account service business logic: account
// lifecycle, email verification tokens and profile picture attachments.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/cryptox"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

// Keys accepted by AccountService.Update.
const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldPassword  = "password"
)

// CreateAccountInput is the payload of AccountService.Create.
type CreateAccountInput struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,passwordbytes"`
}

// PatchField is a single key/value of an update request. Value holds the
// decoded JSON value and is not necessarily a string.
type PatchField struct {
	Key   string
	Value any
}

// Patch is an update request with its keys in request order.
type Patch []PatchField

// AccountService manages accounts: creation, lookup and partial updates.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.Hasher
	validate    *validator.Validate
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher cryptox.Hasher) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		validate:    newValidator(),
	}
}

// newValidator registers passwordbytes, which bounds a string by its byte
// length rather than the rune count used by max.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("passwordbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= cryptox.MaxPasswordBytes
	}); err != nil {
		panic(err)
	}
	return v
}

// Create validates the input, hashes the password and stores a new
// unverified account. A taken email yields common.ErrAlreadyExists.
func (s *AccountService) Create(ctx context.Context, in CreateAccountInput) (*models.Account, error) {
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	account := &models.Account{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		IsVerified:   false,
	}

	created, err := s.repomanager.Accounts(s.db).Create(ctx, account)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		return nil, common.NewStoreError("create account", err)
	}
	return created.Sanitize(), nil
}

// Get returns the sanitized account or common.ErrNotFound.
func (s *AccountService) Get(ctx context.Context, accountID string) (*models.Account, error) {
	a, err := s.find(ctx, s.repomanager.Accounts(s.db).GetByID, accountID)
	if err != nil {
		return nil, err
	}
	return a.Sanitize(), nil
}

// GetByEmail returns the account including its password hash. It is meant
// for credential checks only and must not be serialized to clients.
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.find(ctx, s.repomanager.Accounts(s.db).GetByEmail, email)
}

// VerifyPassword reports whether password matches the account's hash.
func (s *AccountService) VerifyPassword(account *models.Account, password string) (bool, error) {
	return s.hasher.Verify(account.PasswordHash, password)
}

// Update applies patch to the account. Unknown keys fail with
// *common.InvalidFieldsError; a patch that would not change anything fails
// with common.ErrNoChange. Only changed columns are written.
func (s *AccountService) Update(ctx context.Context, accountID string, patch Patch) (*models.Account, error) {
	if invalid := invalidKeys(patch); len(invalid) > 0 {
		return nil, &common.InvalidFieldsError{Fields: invalid}
	}

	values, err := patchValues(patch)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)

	current, err := s.find(ctx, repo.GetByID, accountID)
	if err != nil {
		return nil, err
	}

	params, err := s.changedColumns(current, values)
	if err != nil {
		return nil, err
	}
	if params.Empty() {
		return nil, common.ErrNoChange
	}

	updated, err := repo.Update(ctx, accountID, params)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.NewStoreError("update account", err)
	}
	return updated.Sanitize(), nil
}

// --- helpers below ---

func (s *AccountService) validateCreate(in CreateAccountInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("error validating input: %w", err)
	}
	for _, fe := range verrs {
		if fe.Field() == "Email" {
			return common.ErrInvalidEmail
		}
	}
	return common.ErrInvalidInput
}

func (s *AccountService) find(ctx context.Context, get func(context.Context, string) (*models.Account, error), key string) (*models.Account, error) {
	a, err := get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.NewStoreError("get account", err)
	}
	return a, nil
}

// changedColumns compares the requested values with the stored account.
// The password counts as unchanged when it verifies against the stored hash.
func (s *AccountService) changedColumns(current *models.Account, values map[string]string) (accounts.UpdateParams, error) {
	var params accounts.UpdateParams

	if v, ok := values[FieldFirstName]; ok && v != current.FirstName {
		params.FirstName = &v
	}
	if v, ok := values[FieldLastName]; ok && v != current.LastName {
		params.LastName = &v
	}
	if v, ok := values[FieldPassword]; ok {
		same, err := s.hasher.Verify(current.PasswordHash, v)
		if err != nil && !errors.Is(err, cryptox.ErrUnknownHashFormat) {
			return params, fmt.Errorf("error verifying password: %w", err)
		}
		if !same {
			hash, err := s.hasher.Hash(v)
			if err != nil {
				return params, fmt.Errorf("error hashing password: %w", err)
			}
			params.PasswordHash = &hash
		}
	}
	return params, nil
}

// invalidKeys returns the keys outside the updatable set, in first-seen
// order and without duplicates.
func invalidKeys(patch Patch) []string {
	var (
		out  []string
		seen = map[string]struct{}{}
	)
	for _, f := range patch {
		switch f.Key {
		case FieldFirstName, FieldLastName, FieldPassword:
			continue
		}
		if _, ok := seen[f.Key]; ok {
			continue
		}
		seen[f.Key] = struct{}{}
		out = append(out, f.Key)
	}
	return out
}

// patchValues extracts string values; a repeated key keeps its last value.
// Passwords longer than cryptox.MaxPasswordBytes are rejected.
func patchValues(patch Patch) (map[string]string, error) {
	values := make(map[string]string, len(patch))
	for _, f := range patch {
		v, ok := f.Value.(string)
		if !ok || v == "" {
			return nil, common.ErrInvalidInput
		}
		if f.Key == FieldPassword && len(v) > cryptox.MaxPasswordBytes {
			return nil, fmt.Errorf("%w: password longer than %d bytes", common.ErrInvalidInput, cryptox.MaxPasswordBytes)
		}
		values[f.Key] = v
	}
	return values, nil
}
