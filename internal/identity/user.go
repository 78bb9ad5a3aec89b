package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/modular-api/core/internal/auth"
	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/repository"
)

// UserService is the CRUD surface for users plus the group attach/detach
// and lifecycle (block/unblock/password) operations. Any operation that
// changes a user's credentials or blocks them revokes every outstanding
// token for that username.
type UserService interface {
	Create(ctx context.Context, u *models.User, password string) (generatedPassword string, err error)
	Get(ctx context.Context, username string) (*models.User, error)
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]*models.User, error)
	AddGroup(ctx context.Context, username, groupName string) error
	RemoveGroup(ctx context.Context, username, groupName string) error
	Block(ctx context.Context, username, reason string) error
	Unblock(ctx context.Context, username string) error
	ChangePassword(ctx context.Context, username, newPassword string) error
	ChangeUsername(ctx context.Context, oldUsername, newUsername string) error
	SetMetaAttribute(ctx context.Context, username, key string, allowedValues []string) error
	UpdateMetaAttribute(ctx context.Context, username, key string, auxValue interface{}) error
	DeleteMetaAttribute(ctx context.Context, username, key string) error
	ResetMeta(ctx context.Context, username string) error
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

type userService struct {
	repo      repository.UserRepository
	groups    repository.GroupRepository
	tokens    repository.TokenRepository
	integrity *integrity.Service
	policy    auth.PasswordPolicy
}

// NewUserService builds a UserService. groups validates group references on
// AddGroup; tokens is used to revoke all of a user's tokens on credential
// or blocked-state changes.
func NewUserService(repo repository.UserRepository, groups repository.GroupRepository, tokens repository.TokenRepository, integritySvc *integrity.Service, policy auth.PasswordPolicy) UserService {
	return &userService{repo: repo, groups: groups, tokens: tokens, integrity: integritySvc, policy: policy}
}

func (s *userService) Create(ctx context.Context, u *models.User, password string) (string, error) {
	if !models.ValidName(u.Username) {
		return "", &models.InvalidNameError{Field: "username", Value: u.Username}
	}
	for _, groupName := range u.Groups {
		if err := s.requireGroup(ctx, groupName); err != nil {
			return "", err
		}
	}
	generated := ""
	if password == "" {
		var err error
		password, err = generatePassword()
		if err != nil {
			return "", err
		}
		generated = password
	} else if err := auth.ValidatePassword(password, s.policy); err != nil {
		return "", models.ErrInvalidPayload(err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	u.PasswordHash = hash
	now := time.Now().UTC()
	u.CreationDate = now
	u.LastModificationDate = now
	if u.State == "" {
		u.State = models.StateActivated
	}
	u.Hash = s.integrity.Fingerprint(userFields(u))
	if err := s.repo.Create(ctx, u); err != nil {
		return "", err
	}
	return generated, nil
}

func (s *userService) Get(ctx context.Context, username string) (*models.User, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	u.Compromised = !s.integrity.Verify(userFields(u), u.Hash)
	return u, nil
}

func (s *userService) Delete(ctx context.Context, username string) error {
	if err := s.repo.Delete(ctx, username); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, username)
}

func (s *userService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		u.Compromised = !s.integrity.Verify(userFields(u), u.Hash)
	}
	return users, nil
}

func (s *userService) AddGroup(ctx context.Context, username, groupName string) error {
	if err := s.requireGroup(ctx, groupName); err != nil {
		return err
	}
	return s.mutate(ctx, username, func(u *models.User) { u.AddGroup(groupName) })
}

func (s *userService) RemoveGroup(ctx context.Context, username, groupName string) error {
	return s.mutate(ctx, username, func(u *models.User) { u.RemoveGroup(groupName) })
}

func (s *userService) Block(ctx context.Context, username, reason string) error {
	if err := s.mutate(ctx, username, func(u *models.User) {
		u.State = models.StateBlocked
		u.StateReason = reason
	}); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, username)
}

func (s *userService) Unblock(ctx context.Context, username string) error {
	return s.mutate(ctx, username, func(u *models.User) {
		u.State = models.StateActivated
		u.StateReason = ""
	})
}

func (s *userService) ChangePassword(ctx context.Context, username, newPassword string) error {
	if err := auth.ValidatePassword(newPassword, s.policy); err != nil {
		return models.ErrInvalidPayload(err.Error())
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.mutate(ctx, username, func(u *models.User) { u.PasswordHash = hash }); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, username)
}

func (s *userService) ChangeUsername(ctx context.Context, oldUsername, newUsername string) error {
	if !models.ValidName(newUsername) {
		return &models.InvalidNameError{Field: "username", Value: newUsername}
	}
	u, err := s.repo.Get(ctx, oldUsername)
	if err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, newUsername); err == nil {
		return models.ErrAlreadyExists
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	renamed := *u
	renamed.Username = newUsername
	renamed.LastModificationDate = time.Now().UTC()
	renamed.Hash = s.integrity.Fingerprint(userFields(&renamed))
	if err := s.repo.Create(ctx, &renamed); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, oldUsername); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, oldUsername)
}

func (s *userService) SetMetaAttribute(ctx context.Context, username, key string, allowedValues []string) error {
	return s.mutate(ctx, username, func(u *models.User) {
		if u.Meta.AllowedValues == nil {
			u.Meta.AllowedValues = make(map[string][]string)
		}
		u.Meta.AllowedValues[key] = allowedValues
	})
}

func (s *userService) UpdateMetaAttribute(ctx context.Context, username, key string, auxValue interface{}) error {
	return s.mutate(ctx, username, func(u *models.User) {
		if u.Meta.AuxData == nil {
			u.Meta.AuxData = make(map[string]interface{})
		}
		u.Meta.AuxData[key] = auxValue
	})
}

func (s *userService) DeleteMetaAttribute(ctx context.Context, username, key string) error {
	return s.mutate(ctx, username, func(u *models.User) {
		delete(u.Meta.AllowedValues, key)
		delete(u.Meta.AuxData, key)
	})
}

func (s *userService) ResetMeta(ctx context.Context, username string) error {
	return s.mutate(ctx, username, func(u *models.User) {
		u.Meta = models.Meta{}
	})
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if u.IsBlocked() {
		return nil, models.ErrInvalidState
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, models.ErrInvalidPayload("invalid credentials")
	}
	return u, nil
}

func (s *userService) mutate(ctx context.Context, username string, fn func(u *models.User)) error {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		return err
	}
	fn(u)
	u.LastModificationDate = time.Now().UTC()
	u.Hash = s.integrity.Fingerprint(userFields(u))
	return s.repo.Update(ctx, u)
}

func (s *userService) requireGroup(ctx context.Context, groupName string) error {
	_, err := s.groups.Get(ctx, groupName)
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrReferencedEntityGone
	}
	return err
}

func generatePassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func userFields(u *models.User) map[string]interface{} {
	return map[string]interface{}{
		"username":      u.Username,
		"password_hash": u.PasswordHash,
		"groups":        u.Groups,
		"state":         u.State,
		"state_reason":  u.StateReason,
	}
}
