package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"libreria/application/sagas"
	"libreria/domain"
	"libreria/infrastructure/persistence/store"
	pkgerrors "libreria/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const skUserProfile = "PROFILE#"

func userKey(userID string) store.Key {
	return store.Key{PK: "USER#" + userID, SK: skUserProfile}
}

// emailPK normalizes before deriving the key so lookups are case-insensitive.
func emailPK(email string) string {
	return "EMAIL#" + strings.ToLower(strings.TrimSpace(email))
}

func dniPK(nationalID string) string {
	return "DNI#" + strings.TrimSpace(nationalID)
}

// RegisterUserInput carries everything needed to create an account.
type RegisterUserInput struct {
	NationalID string
	FirstName  string
	LastName   string
	Address    string
	Phone      string
	Email      string
	Password   string
	Role       string
}

// UpdateUserInput is a partial patch; nil fields are left untouched.
type UpdateUserInput struct {
	NationalID *string
	FirstName  *string
	LastName   *string
	Address    *string
	Phone      *string
	Email      *string
	Password   *string
}

// UserService manages accounts. Email and national-ID uniqueness are
// emulated with reference items; registration is a three-step saga so a
// half-created account never survives a mid-sequence failure.
type UserService struct {
	store  store.ItemStore
	logger *zap.Logger
}

// NewUserService creates a UserService.
func NewUserService(st store.ItemStore, logger *zap.Logger) *UserService {
	return &UserService{store: st, logger: logger}
}

func userFromItem(item store.Item) *domain.User {
	if item == nil {
		return nil
	}
	return &domain.User{
		ID:         stringAttr(item, "userId"),
		NationalID: stringAttr(item, "nationalId"),
		FirstName:  stringAttr(item, "firstName"),
		LastName:   stringAttr(item, "lastName"),
		Address:    stringAttr(item, "address"),
		Phone:      stringAttr(item, "phone"),
		Email:      stringAttr(item, "email"),
		Role:       stringAttr(item, "role"),
	}
}

// Register creates an account. The two uniqueness references are reserved
// before the profile is written; any failure rolls back the reservations in
// reverse order.
func (s *UserService) Register(ctx context.Context, in RegisterUserInput) (*domain.User, error) {
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	for _, f := range []struct{ name, value string }{
		{"nationalId", in.NationalID},
		{"firstName", in.FirstName},
		{"lastName", in.LastName},
		{"email", in.Email},
		{"password", in.Password},
	} {
		if f.value == "" {
			return nil, pkgerrors.NewValidationError("missing field: " + f.name).WithCode("MISSING_FIELD")
		}
	}

	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = domain.RoleCustomer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, pkgerrors.NewInternalError("hash password").WithCause(err)
	}

	// Reference items live at the bare partition key: every claim on the
	// same email or DNI targets one composite key, so the conditional put
	// can collide. The owner is carried in the userId attribute.
	userID := uuid.NewString()
	emailRef := store.Item{
		store.AttrPartitionKey: emailPK(in.Email),
		"userId":               userID,
		"role":                 role,
	}
	dniRef := store.Item{
		store.AttrPartitionKey: dniPK(in.NationalID),
		"userId":               userID,
	}
	profileKey := userKey(userID)
	profile := store.Item{
		store.AttrPartitionKey: profileKey.PK,
		store.AttrSortKey:      profileKey.SK,
		"userId":               userID,
		"nationalId":           in.NationalID,
		"firstName":            in.FirstName,
		"lastName":             in.LastName,
		"address":              in.Address,
		"phone":                in.Phone,
		"email":                in.Email,
		"role":                 role,
		"passwordHash":         string(hash),
	}

	saga := sagas.New("user-register", s.logger)
	saga.AddStep(sagas.Step{
		Name: "reserve-email",
		Execute: func(ctx context.Context) error {
			err := s.store.Put(ctx, TableUsers, emailRef, &store.PutOptions{IfNotExists: true})
			if errors.Is(err, store.ErrConditionFailed) {
				return pkgerrors.NewConflictError("email already registered")
			}
			return err
		},
		Compensate: func(ctx context.Context) error {
			return s.store.Delete(ctx, TableUsers, store.Key{PK: emailRef.PartitionKey()})
		},
	})
	saga.AddStep(sagas.Step{
		Name: "reserve-dni",
		Execute: func(ctx context.Context) error {
			err := s.store.Put(ctx, TableUsers, dniRef, &store.PutOptions{IfNotExists: true})
			if errors.Is(err, store.ErrConditionFailed) {
				return pkgerrors.NewConflictError("national ID already registered")
			}
			return err
		},
		Compensate: func(ctx context.Context) error {
			return s.store.Delete(ctx, TableUsers, store.Key{PK: dniRef.PartitionKey()})
		},
	})
	saga.AddStep(sagas.Step{
		Name: "write-profile",
		Execute: func(ctx context.Context) error {
			return s.store.Put(ctx, TableUsers, profile, &store.PutOptions{IfNotExists: true})
		},
	})

	if err := saga.Execute(ctx); err != nil {
		if appErr := pkgerrors.GetAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.NewDatabaseError("register user", err)
	}

	return &domain.User{
		ID:         userID,
		NationalID: in.NationalID,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Address:    in.Address,
		Phone:      in.Phone,
		Email:      in.Email,
		Role:       role,
	}, nil
}

// GetByID returns a user profile by ID, or absence.
func (s *UserService) GetByID(ctx context.Context, userID string) (*domain.User, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, false, nil
	}
	item, found, err := s.store.Get(ctx, TableUsers, userKey(userID))
	if err != nil {
		return nil, false, pkgerrors.NewDatabaseError("get user", err)
	}
	if !found {
		return nil, false, nil
	}
	return userFromItem(item), true, nil
}

// FindByEmail resolves an email reference and loads the profile behind it.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	ref, found, err := s.store.Get(ctx, TableUsers, store.Key{PK: emailPK(email)})
	if err != nil {
		return nil, false, pkgerrors.NewDatabaseError("find user by email", err)
	}
	if !found {
		return nil, false, nil
	}
	return s.GetByID(ctx, stringAttr(ref, "userId"))
}

// FindByEmailAndRole is FindByEmail restricted to one role.
func (s *UserService) FindByEmailAndRole(ctx context.Context, email, role string) (*domain.User, bool, error) {
	user, found, err := s.FindByEmail(ctx, email)
	if err != nil || !found {
		return nil, false, err
	}
	if user.Role != role {
		return nil, false, nil
	}
	return user, true, nil
}

// FindByDNI resolves a national-ID reference and loads the profile behind it.
func (s *UserService) FindByDNI(ctx context.Context, nationalID string) (*domain.User, bool, error) {
	ref, found, err := s.store.Get(ctx, TableUsers, store.Key{PK: dniPK(nationalID)})
	if err != nil {
		return nil, false, pkgerrors.NewDatabaseError("find user by national id", err)
	}
	if !found {
		return nil, false, nil
	}
	return s.GetByID(ctx, stringAttr(ref, "userId"))
}

// Validate checks a credential pair. An unknown email and a wrong password
// both return absence, never an error, so callers cannot distinguish them.
func (s *UserService) Validate(ctx context.Context, email, password string) (*domain.User, bool, error) {
	ref, refFound, err := s.store.Get(ctx, TableUsers, store.Key{PK: emailPK(email)})
	if err != nil {
		return nil, false, pkgerrors.NewDatabaseError("validate user", err)
	}
	if !refFound {
		return nil, false, nil
	}

	item, found, err := s.store.Get(ctx, TableUsers, userKey(stringAttr(ref, "userId")))
	if err != nil {
		return nil, false, pkgerrors.NewDatabaseError("validate user", err)
	}
	if !found {
		return nil, false, nil
	}

	hash := stringAttr(item, "passwordHash")
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, false, nil
	}
	return userFromItem(item), true, nil
}

// Update patches a profile. Email or national-ID changes reserve the new
// reference before releasing the old, so uniqueness holds through the
// rename; the old-reference delete is best-effort.
func (s *UserService) Update(ctx context.Context, userID string, in UpdateUserInput) (*domain.User, error) {
	current, found, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("user")
	}

	patch := store.Item{}
	if in.FirstName != nil {
		patch["firstName"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		patch["lastName"] = strings.TrimSpace(*in.LastName)
	}
	if in.Address != nil {
		patch["address"] = strings.TrimSpace(*in.Address)
	}
	if in.Phone != nil {
		patch["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, pkgerrors.NewInternalError("hash password").WithCause(err)
		}
		patch["passwordHash"] = string(hash)
	}

	if in.Email != nil {
		newEmail := strings.ToLower(strings.TrimSpace(*in.Email))
		if newEmail == "" {
			return nil, pkgerrors.NewValidationError("missing field: email").WithCode("MISSING_FIELD")
		}
		if newEmail != current.Email {
			if err := s.renameRef(ctx, emailPK(current.Email), emailPK(newEmail), userID, current.Role, "email already registered"); err != nil {
				return nil, err
			}
			patch["email"] = newEmail
		}
	}
	if in.NationalID != nil {
		newDNI := strings.TrimSpace(*in.NationalID)
		if newDNI == "" {
			return nil, pkgerrors.NewValidationError("missing field: nationalId").WithCode("MISSING_FIELD")
		}
		if newDNI != current.NationalID {
			if err := s.renameRef(ctx, dniPK(current.NationalID), dniPK(newDNI), userID, "", "national ID already registered"); err != nil {
				return nil, err
			}
			patch["nationalId"] = newDNI
		}
	}

	if len(patch) == 0 {
		return current, nil
	}

	updated, found, err := s.store.Update(ctx, TableUsers, userKey(userID), patch)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("update user", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	return userFromItem(updated), nil
}

// renameRef moves a uniqueness reference from oldPK to newPK. The new
// reference is reserved first; the old one is then released best-effort.
func (s *UserService) renameRef(ctx context.Context, oldPK, newPK, userID, role, conflictMsg string) error {
	ref := store.Item{
		store.AttrPartitionKey: newPK,
		"userId":               userID,
	}
	if role != "" {
		ref["role"] = role
	}
	err := s.store.Put(ctx, TableUsers, ref, &store.PutOptions{IfNotExists: true})
	if errors.Is(err, store.ErrConditionFailed) {
		return pkgerrors.NewConflictError(conflictMsg)
	}
	if err != nil {
		return pkgerrors.NewDatabaseError("reserve reference", err)
	}

	if err := s.store.Delete(ctx, TableUsers, store.Key{PK: oldPK}); err != nil {
		s.logger.Warn("orphaned user reference left behind",
			zap.String("userId", userID),
			zap.String("reference", oldPK),
			zap.Error(err),
		)
	}
	return nil
}

// GetByRole returns every profile with the given role. Full-table scan; the
// Users table also holds reference items, which are filtered out by sort key.
func (s *UserService) GetByRole(ctx context.Context, role string) ([]domain.User, error) {
	items, err := s.store.Scan(ctx, TableUsers, 0)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list users", err)
	}

	users := make([]domain.User, 0)
	for _, item := range items {
		if item.SortKey() != skUserProfile {
			continue
		}
		u := userFromItem(item)
		if role != "" && u.Role != role {
			continue
		}
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// RemoveByIDAndRole deletes a user only if it holds the given role, along
// with both uniqueness references. Reference deletes are best-effort.
func (s *UserService) RemoveByIDAndRole(ctx context.Context, userID, role string) error {
	current, found, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !found || (role != "" && current.Role != role) {
		return pkgerrors.NewNotFoundError("user")
	}

	if err := s.store.Delete(ctx, TableUsers, userKey(userID)); err != nil {
		return pkgerrors.NewDatabaseError("remove user", err)
	}
	for _, pk := range []string{emailPK(current.Email), dniPK(current.NationalID)} {
		if err := s.store.Delete(ctx, TableUsers, store.Key{PK: pk}); err != nil {
			s.logger.Warn("orphaned user reference left behind",
				zap.String("userId", userID),
				zap.String("reference", pk),
				zap.Error(err),
			)
		}
	}
	return nil
}

// RemoveByRole deletes every user holding the given role. Used by the seed
// tool to reset admin accounts.
func (s *UserService) RemoveByRole(ctx context.Context, role string) (int, error) {
	users, err := s.GetByRole(ctx, role)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, u := range users {
		if err := s.RemoveByIDAndRole(ctx, u.ID, role); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
