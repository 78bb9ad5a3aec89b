package identity

import (
	"context"
	"testing"

	"github.com/modular-api/core/internal/auth"
	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServices struct {
	repo     *repository.Repository
	policies PolicyService
	groups   GroupService
	users    UserService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	sqliteRepo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })
	repo := sqliteRepo.Repository()
	integritySvc := integrity.New([]byte("test-integrity-key"))
	return &testServices{
		repo:     repo,
		policies: NewPolicyService(repo.Policies, integritySvc),
		groups:   NewGroupService(repo.Groups, repo.Policies, integritySvc),
		users:    NewUserService(repo.Users, repo.Groups, repo.Tokens, integritySvc, auth.DefaultPasswordPolicy()),
	}
}

func TestPolicyService_CreateRejectsInvalidName(t *testing.T) {
	svc := newTestServices(t)
	err := svc.policies.Create(context.Background(), &models.Policy{
		PolicyName: "bad name",
		Statements: []models.Statement{{Effect: models.EffectAllow, Module: "files", Resources: []string{"*"}}},
	})
	var nameErr *models.InvalidNameError
	require.ErrorAs(t, err, &nameErr)
}

func TestPolicyService_CreateAndGet_ComputesHash(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	p := &models.Policy{
		PolicyName: "allow-files",
		Statements: []models.Statement{{Effect: models.EffectAllow, Module: "files", Resources: []string{"*"}}},
	}
	require.NoError(t, svc.policies.Create(ctx, p))
	assert.NotEmpty(t, p.Hash)

	got, err := svc.policies.Get(ctx, "allow-files")
	require.NoError(t, err)
	assert.False(t, got.Compromised)
}

func TestGroupService_AddPolicy_RequiresExistingPolicy(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	require.NoError(t, svc.groups.Create(ctx, &models.Group{GroupName: "editors"}))

	err := svc.groups.AddPolicy(ctx, "editors", "no-such-policy")
	assert.ErrorIs(t, err, models.ErrReferencedEntityGone)
}

func TestGroupService_AddPolicy_Succeeds(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	p := &models.Policy{
		PolicyName: "allow-files",
		Statements: []models.Statement{{Effect: models.EffectAllow, Module: "files", Resources: []string{"*"}}},
	}
	require.NoError(t, svc.policies.Create(ctx, p))
	require.NoError(t, svc.groups.Create(ctx, &models.Group{GroupName: "editors"}))

	require.NoError(t, svc.groups.AddPolicy(ctx, "editors", "allow-files"))
	g, err := svc.groups.Get(ctx, "editors")
	require.NoError(t, err)
	assert.True(t, g.HasPolicy("allow-files"))
}

func TestUserService_Create_GeneratesPasswordWhenEmpty(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	u := &models.User{Username: "alice"}
	generated, err := svc.users.Create(ctx, u, "")
	require.NoError(t, err)
	assert.NotEmpty(t, generated)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestUserService_Create_RejectsWeakPassword(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	_, err := svc.users.Create(ctx, &models.User{Username: "bob"}, "weak")
	require.Error(t, err)
}

func TestUserService_AddGroup_RequiresExistingGroup(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	_, err := svc.users.Create(ctx, &models.User{Username: "carol"}, "Str0ng!Passw0rd")
	require.NoError(t, err)

	err = svc.users.AddGroup(ctx, "carol", "no-such-group")
	assert.ErrorIs(t, err, models.ErrReferencedEntityGone)
}

func TestUserService_Authenticate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	_, err := svc.users.Create(ctx, &models.User{Username: "dave"}, "Str0ng!Passw0rd")
	require.NoError(t, err)

	u, err := svc.users.Authenticate(ctx, "dave", "Str0ng!Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, "dave", u.Username)

	_, err = svc.users.Authenticate(ctx, "dave", "wrong-password")
	require.Error(t, err)
}

func TestUserService_Block_RejectsAuthentication(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	_, err := svc.users.Create(ctx, &models.User{Username: "erin"}, "Str0ng!Passw0rd")
	require.NoError(t, err)

	require.NoError(t, svc.users.Block(ctx, "erin", "policy violation"))
	_, err = svc.users.Authenticate(ctx, "erin", "Str0ng!Passw0rd")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	require.NoError(t, svc.users.Unblock(ctx, "erin"))
	_, err = svc.users.Authenticate(ctx, "erin", "Str0ng!Passw0rd")
	require.NoError(t, err)
}

func TestUserService_ChangeUsername(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	_, err := svc.users.Create(ctx, &models.User{Username: "frank"}, "Str0ng!Passw0rd")
	require.NoError(t, err)

	require.NoError(t, svc.users.ChangeUsername(ctx, "frank", "franklin"))
	_, err = svc.users.Get(ctx, "frank")
	assert.ErrorIs(t, err, models.ErrNotFound)

	u, err := svc.users.Get(ctx, "franklin")
	require.NoError(t, err)
	assert.Equal(t, "franklin", u.Username)
}

func TestUserService_MetaAttributes(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	_, err := svc.users.Create(ctx, &models.User{Username: "grace"}, "Str0ng!Passw0rd")
	require.NoError(t, err)

	require.NoError(t, svc.users.SetMetaAttribute(ctx, "grace", "region", []string{"us", "eu"}))
	u, err := svc.users.Get(ctx, "grace")
	require.NoError(t, err)
	assert.Equal(t, []string{"us", "eu"}, u.Meta.AllowedValues["region"])

	require.NoError(t, svc.users.ResetMeta(ctx, "grace"))
	u, err = svc.users.Get(ctx, "grace")
	require.NoError(t, err)
	assert.Empty(t, u.Meta.AllowedValues)
}
