package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotConfirmed  = errors.New("email address not confirmed")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrAlreadyConfirmed   = errors.New("email address already confirmed")

	errInvalidValue = "invalid value"
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when email is taken by a user not in excludedUsers.
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		CheckUniqueness(email string, excludedUsers ...User) error
		SignUp(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		SignOut(ctx context.Context, usr User) error
		AuthorizeRefresh(ctx context.Context, id string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		ResendVerification(ctx context.Context, email string) error
		ConfirmEmail(ctx context.Context, data ConfirmUserEmail) (User, error)
		UpdateCredentials(ctx context.Context, usr User, data UpdateCredentials) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByIDs(ctx context.Context, ids ...string) (map[string]User, error)
		Delete(ctx context.Context, ids ...string) (int, error)
	}

	service struct {
		repo          Repository
		mailSvc       core.EmailService
		events        core.EventBroker
		logger        core.Logger
		resetTokens   tokenGenerator
		confirmTokens tokenGenerator
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	conf *core.Config,
	repo Repository,
	mailSvc core.EmailService,
	events core.EventBroker,
	logger core.Logger,
) Service {
	return &service{
		repo:          repo,
		mailSvc:       mailSvc,
		events:        events,
		logger:        logger,
		resetTokens:   newPasswordResetTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		confirmTokens: newEmailConfirmTokenGenerator(conf.SecretKey, conf.EmailConfirmTimeoutDelta),
	}
}

// publish reports auth events; a broker failure never fails the operation that triggered it.
func (svc *service) publish(ctx context.Context, typ core.AuthEventType, usr User) {
	if err := svc.events.Publish(ctx, core.NewAuthEvent(typ, usr.ID)); err != nil {
		svc.logger.Warn("publishing auth event", errors.Wrapf(err, "publishing %s", typ), usr)
	}
}

func (svc *service) CheckUniqueness(email string, excludedUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedUsers); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) SignUp(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == core.ErrConflict {
			return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	if err := svc.sendConfirmationMail(usr); err != nil {
		return User{}, err
	}
	return usr, nil
}

// Authenticate checks credentials and records the login.
// Unknown emails and wrong passwords are indistinguishable.
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	if !usr.IsConfirmed() {
		return User{}, ErrEmailNotConfirmed
	}

	now := time.Now().UTC()
	usr.LastLogin = &now
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	svc.publish(ctx, core.EventSignedIn, usr)
	return usr, nil
}

func (svc *service) SignOut(ctx context.Context, usr User) error {
	usr.RevokeSessions()
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "revoking sessions")
	}
	svc.publish(ctx, core.EventSignedOut, usr)
	return nil
}

// AuthorizeRefresh checks that the user with id may still be issued tokens.
func (svc *service) AuthorizeRefresh(ctx context.Context, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	svc.publish(ctx, core.EventTokenRefreshed, usr)
	return usr, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	token, err := svc.resetTokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Email": usr.Email,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	svc.publish(ctx, core.EventPasswordRecovery, usr)
	return nil
}

// getUserFromUID maps every lookup failure of an emailed uid to a validation error.
func (svc *service) getUserFromUID(ctx context.Context, uid string) (User, error) {
	invalidUID := core.NewValidationError(nil, core.FieldError{Field: "uid", Error: errInvalidValue})
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, invalidUID
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, invalidUID
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

// ResetPassword sets the new password and signs the user out everywhere.
func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	usr, err := svc.getUserFromUID(ctx, data.UID)
	if err != nil {
		return err
	}
	if err := svc.resetTokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: errInvalidValue})
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.RevokeSessions()
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	svc.publish(ctx, core.EventSignedOut, usr)
	return nil
}

func (svc *service) ResendVerification(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.IsConfirmed() {
		return ErrAlreadyConfirmed
	}
	return svc.sendConfirmationMail(usr)
}

func (svc *service) sendConfirmationMail(usr User) error {
	token, err := svc.confirmTokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making email confirmation token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: usr.Email}},
		Subject:      "Confirm your email address",
		TemplateName: "confirm_email",
		TemplateData: map[string]interface{}{
			"Email": usr.Email,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *service) ConfirmEmail(ctx context.Context, data ConfirmUserEmail) (User, error) {
	usr, err := svc.getUserFromUID(ctx, data.UID)
	if err != nil {
		return User{}, err
	}
	if usr.IsConfirmed() {
		return usr, nil
	}
	if err := svc.confirmTokens.verifyToken(usr, data.Token); err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: errInvalidValue})
	}

	now := time.Now().UTC()
	usr.EmailConfirmedAt = &now
	usr.UpdatedAt = now
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "confirming email")
	}
	svc.publish(ctx, core.EventUserUpdated, usr)
	return usr, nil
}

// UpdateCredentials changes the email (which must then be confirmed again) and/or the password.
func (svc *service) UpdateCredentials(ctx context.Context, usr User, data UpdateCredentials) (User, error) {
	emailChanged := data.Email != "" && data.Email != usr.Email
	if !emailChanged && data.Password == "" {
		return usr, nil
	}
	if emailChanged {
		usr.Email = data.Email
		usr.EmailConfirmedAt = nil
	}
	if data.Password != "" {
		if err := usr.SetPassword(data.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == core.ErrConflict {
			return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return User{}, errors.Wrap(err, "updating user")
	}
	if emailChanged {
		if err := svc.sendConfirmationMail(usr); err != nil {
			return User{}, err
		}
	}
	svc.publish(ctx, core.EventUserUpdated, usr)
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, core.FilterOrderings(ordering, OrderingFields...))
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	if !core.IsValidID(id) {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// GetByIDs batches the lookup of many users, keyed by ID. Unknown IDs are skipped.
func (svc *service) GetByIDs(ctx context.Context, ids ...string) (map[string]User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range core.UniqueStrings(ids) {
		if core.IsValidID(id) {
			valid = append(valid, id)
		}
	}
	ids = valid
	found := make(map[string]User, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	users, err := svc.repo.QueryUsers(ctx, &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by IDs")
	}
	for _, usr := range users {
		found[usr.ID] = usr
	}
	return found, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids)
}
