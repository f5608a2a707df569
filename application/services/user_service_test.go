package services

import (
	"context"
	"errors"
	"testing"

	"libreria/domain"
	"libreria/infrastructure/persistence/store"
	pkgerrors "libreria/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerInput() RegisterUserInput {
	return RegisterUserInput{
		NationalID: "12345678Z",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Address:    "Calle Mayor 1",
		Phone:      "600123456",
		Email:      "Ada@Example.com",
		Password:   "correct horse",
	}
}

func TestRegisterCreatesProfileAndReferences(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewUserService(st, nopLogger())

	user, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	// Email is normalized on the way in.
	assert.Equal(t, "ada@example.com", user.Email)

	// Profile and both reference items exist.
	_, found, err := st.Get(ctx, TableUsers, store.Key{PK: "USER#" + user.ID, SK: "PROFILE#"})
	require.NoError(t, err)
	assert.True(t, found)

	// References live at the bare partition key and name their owner, so
	// any second claim on the same identity hits the same composite key.
	ref, found, err := st.Get(ctx, TableUsers, store.Key{PK: "EMAIL#ada@example.com"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, store.NoSortKey, ref.SortKey())
	assert.Equal(t, user.ID, ref["userId"])

	ref, found, err = st.Get(ctx, TableUsers, store.Key{PK: "DNI#12345678Z"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, user.ID, ref["userId"])
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	svc := NewUserService(newTestStore(t), nopLogger())

	in := registerInput()
	in.Email = "   "
	_, err := svc.Register(context.Background(), in)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newTestStore(t), nopLogger())

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	in := registerInput()
	in.NationalID = "99999999R"
	_, err = svc.Register(ctx, in)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Contains(t, err.Error(), "email already registered")
}

func TestRegisterDuplicateDNIRollsBackEmailRef(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewUserService(st, nopLogger())

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	// Same DNI, fresh email: the DNI step fails and the email reservation
	// must be rolled back.
	in := registerInput()
	in.Email = "other@example.com"
	_, err = svc.Register(ctx, in)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Contains(t, err.Error(), "national ID already registered")

	refs, err := st.Query(ctx, TableUsers, store.Query{PartitionKey: "EMAIL#other@example.com"})
	require.NoError(t, err)
	assert.Empty(t, refs, "email reservation must not survive the rollback")
}

func TestRegisterProfileFailureRollsBackBothRefs(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	boom := errors.New("storage exploded")
	st := &flakyStore{
		ItemStore: base,
		failPut: func(table string, item store.Item) error {
			if item.SortKey() == "PROFILE#" {
				return boom
			}
			return nil
		},
	}
	svc := NewUserService(st, nopLogger())

	_, err := svc.Register(ctx, registerInput())
	require.Error(t, err)

	for _, pk := range []string{"EMAIL#ada@example.com", "DNI#12345678Z"} {
		refs, err := base.Query(ctx, TableUsers, store.Query{PartitionKey: pk})
		require.NoError(t, err)
		assert.Empty(t, refs, "reference %s must be rolled back", pk)
	}

	// The identity is reusable after the rollback.
	_, err = svc.Register(ctx, registerInput())
	require.Error(t, err) // flaky store still fails the profile write

	healthy := NewUserService(base, nopLogger())
	_, err = healthy.Register(ctx, registerInput())
	assert.NoError(t, err)
}

func TestValidateCredentials(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newTestStore(t), nopLogger())

	registered, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	user, ok, err := svc.Validate(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, registered.ID, user.ID)

	// Wrong password and unknown email are both plain absence.
	_, ok, err = svc.Validate(ctx, "ada@example.com", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.Validate(ctx, "nobody@example.com", "correct horse")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindByEmailAndDNI(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newTestStore(t), nopLogger())

	registered, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	// Lookup is case-insensitive on email.
	user, found, err := svc.FindByEmail(ctx, "ADA@example.COM")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, registered.ID, user.ID)

	user, found, err = svc.FindByDNI(ctx, "12345678Z")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, registered.ID, user.ID)

	_, found, err = svc.FindByDNI(ctx, "00000000X")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateEmailRename(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewUserService(st, nopLogger())

	registered, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	newEmail := "new@example.com"
	updated, err := svc.Update(ctx, registered.ID, UpdateUserInput{Email: &newEmail})
	require.NoError(t, err)
	assert.Equal(t, newEmail, updated.Email)

	// New reference present, old one released.
	refs, err := st.Query(ctx, TableUsers, store.Query{PartitionKey: "EMAIL#new@example.com"})
	require.NoError(t, err)
	assert.Len(t, refs, 1)

	refs, err = st.Query(ctx, TableUsers, store.Query{PartitionKey: "EMAIL#ada@example.com"})
	require.NoError(t, err)
	assert.Empty(t, refs)

	// The old email is free again.
	in := registerInput()
	in.NationalID = "11111111H"
	_, err = svc.Register(ctx, in)
	assert.NoError(t, err)
}

func TestUpdateEmailRenameConflict(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newTestStore(t), nopLogger())

	first, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	in := registerInput()
	in.Email = "second@example.com"
	in.NationalID = "22222222J"
	_, err = svc.Register(ctx, in)
	require.NoError(t, err)

	taken := "second@example.com"
	_, err = svc.Update(ctx, first.ID, UpdateUserInput{Email: &taken})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	// The original still logs in with their old email.
	_, found, err := svc.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGetByRoleAndRemove(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewUserService(st, nopLogger())

	customer, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	adminIn := registerInput()
	adminIn.Email = "admin@example.com"
	adminIn.NationalID = "33333333P"
	adminIn.Role = domain.RoleAdmin
	admin, err := svc.Register(ctx, adminIn)
	require.NoError(t, err)

	admins, err := svc.GetByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.ID, admins[0].ID)

	// Role-scoped removal refuses a mismatched role.
	err = svc.RemoveByIDAndRole(ctx, customer.ID, domain.RoleAdmin)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	removed, err := svc.RemoveByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, found, err := svc.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.False(t, found)

	// References are cleaned up, so the identity can register again.
	refs, err := st.Query(ctx, TableUsers, store.Query{PartitionKey: "EMAIL#admin@example.com"})
	require.NoError(t, err)
	assert.Empty(t, refs)
}
