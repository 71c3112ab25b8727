package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/nyaruka/phonenumbers"
)

// ControllerRoutes holds the route prefixes used by RegisterRoutes.
type ControllerRoutes struct {
	Auth  string
	Users string
	Logs  string
}

// Controller is the JSON API surface over the session, provisioning,
// and audit services.
type Controller struct {
	Debug        bool
	Logger       Logger
	Routes       *ControllerRoutes
	Sessions     *SessionService
	Provisioning *ProvisioningService
	Audit        *AuditService
	Tokens       *TokenService
	SecureCookie bool
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
		Routes: &ControllerRoutes{
			Auth:  "/auth",
			Users: "/users",
			Logs:  "/logs",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Sessions == nil {
		panic("Missing SessionService in auth controller...")
	}

	if c.Provisioning == nil {
		panic("Missing ProvisioningService in auth controller...")
	}

	if c.Audit == nil {
		panic("Missing AuditService in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in auth controller...")
	}

	return c
}

func WithSessionService(svc *SessionService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Sessions = svc
		return c
	}
}

func WithProvisioningService(svc *ProvisioningService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Provisioning = svc
		return c
	}
}

func WithAuditService(svc *AuditService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Audit = svc
		return c
	}
}

func WithTokenService(svc *TokenService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Tokens = svc
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithSecureCookie(secure bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.SecureCookie = secure
		return c
	}
}

// RegisterRoutes mounts the API on the given fiber app.
func RegisterRoutes(app *fiber.App, opts ...ControllerOption) *Controller {
	c := NewController(opts...)

	protected := RequireSession(c.Tokens, c.Logger)

	authGroup := app.Group(c.Routes.Auth)
	authGroup.Post("/signup", c.Signup)
	authGroup.Post("/signin", c.Signin)
	authGroup.Post("/signout", c.Signout)
	authGroup.Get("/me", protected, c.Me)
	authGroup.Put("/update-profile", protected, c.UpdateProfile)
	authGroup.Put("/change-password", protected, c.ChangePassword)

	usersGroup := app.Group(c.Routes.Users)
	usersGroup.Post("/reset-password", c.ResetPassword)
	usersGroup.Get("/", protected, c.ListUsers)
	usersGroup.Post("/", protected, c.CreateUser)
	usersGroup.Get("/:id", protected, c.GetUser)
	usersGroup.Put("/:id", protected, c.UpdateUser)
	usersGroup.Delete("/:id", protected, c.DeleteUser)

	app.Get(c.Routes.Logs, protected, c.Logs)

	return c
}

// SignupPayload is the self-serve registration body.
type SignupPayload struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone_number"`
	Department      string `json:"department"`
	Role            string `json:"user_role"`
}

// Validate will run validation rules
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Department, validation.Required, validation.In(departmentsAsAny()...)),
		validation.Field(&r.Role, validation.Required, validation.In(rolesAsAny()...)),
	)
}

func (a *Controller) Signup(ctx *fiber.Ctx) error {
	payload := new(SignupPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderError(ctx, badBody(err))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("signup payload: %s", print.MaybePrettyJSON(payload))
	}

	user, err := a.Sessions.Signup(ctx.Context(), SignupInput{
		Email:      payload.Email,
		Password:   payload.Password,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Phone:      payload.Phone,
		Department: Department(payload.Department),
		Role:       UserRole(payload.Role),
	})
	if err != nil {
		return renderError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(user)
}

// SigninPayload is the credential body.
type SigninPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r SigninPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) Signin(ctx *fiber.Ctx) error {
	payload := new(SigninPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderError(ctx, badBody(err))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	token, user, err := a.Sessions.Signin(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return renderError(ctx, err)
	}

	setSessionCookie(ctx, token, a.Tokens.TTL(), a.SecureCookie)

	return ctx.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

func (a *Controller) Signout(ctx *fiber.Ctx) error {
	clearSessionCookie(ctx, a.SecureCookie)
	return ctx.JSON(fiber.Map{"message": "signed out"})
}

func (a *Controller) Me(ctx *fiber.Ctx) error {
	user, err := a.Sessions.CurrentProfile(ctx.Context(), SessionUserID(ctx))
	if err != nil {
		return renderError(ctx, err)
	}
	return ctx.JSON(user)
}

// UpdateProfilePayload carries a partial self-service profile update.
// Absent fields stay untouched. The account role is not part of this
// payload: only the directory surface may change roles.
type UpdateProfilePayload struct {
	Email      *string `json:"email"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Phone      *string `json:"phone_number"`
	Department *string `json:"department"`
}

// Validate will run validation rules
func (r UpdateProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(6, 100), is.Email),
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(validateOptionalPhone)),
		validation.Field(&r.Department, validation.NilOrNotEmpty, validation.In(departmentsAsAny()...)),
	)
}

func (r UpdateProfilePayload) toUpdate() UserUpdate {
	update := UserUpdate{
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
	if r.Department != nil {
		dep := Department(*r.Department)
		update.Department = &dep
	}
	return update
}

func (a *Controller) UpdateProfile(ctx *fiber.Ctx) error {
	payload := new(UpdateProfilePayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderError(ctx, badBody(err))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	user, err := a.Sessions.UpdateProfile(ctx.Context(), SessionUserID(ctx), payload.toUpdate())
	if err != nil {
		return renderError(ctx, err)
	}

	return ctx.JSON(user)
}

// ChangePasswordPayload carries a password rotation request.
type ChangePasswordPayload struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules. The confirmation check is left
// to the service so the mismatch lands in the audit log.
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

func (a *Controller) ChangePassword(ctx *fiber.Ctx) error {
	payload := new(ChangePasswordPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderError(ctx, badBody(err))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	err := a.Sessions.ChangePassword(
		ctx.Context(),
		SessionUserID(ctx),
		payload.OldPassword,
		payload.NewPassword,
		payload.ConfirmPassword,
	)
	if err != nil {
		return renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "password changed"})
}

// ResetPasswordPayload redeems an emailed reset token.
type ResetPasswordPayload struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *Controller) ResetPassword(ctx *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderError(ctx, badBody(err))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	if err := a.Sessions.ResetPassword(ctx.Context(), payload.Token, payload.NewPassword); err != nil {
		return renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "password reset"})
}

// AdminCreatePayload provisions a passwordless account; the invitee
// sets a password through the emailed reset link.
type AdminCreatePayload struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone_number"`
	Department string `json:"department"`
	Role       string `json:"user_role"`
}

// Validate will run validation rules
func (r AdminCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Department, validation.Required, validation.In(departmentsAsAny()...)),
		validation.Field(&r.Role, validation.In(rolesAsAny()...)),
	)
}

func (a *Controller) CreateUser(ctx *fiber.Ctx) error {
	payload := new(AdminCreatePayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderError(ctx, badBody(err))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("provision payload: %s", print.MaybePrettyJSON(payload))
	}

	user, err := a.Provisioning.CreatePendingAccount(ctx.Context(), SessionUserID(ctx), ProvisionInput{
		Email:      payload.Email,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Phone:      payload.Phone,
		Department: Department(payload.Department),
		Role:       UserRole(payload.Role),
	})
	if err != nil {
		return renderError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(user)
}

func (a *Controller) ListUsers(ctx *fiber.Ctx) error {
	users, err := a.Provisioning.ListAll(ctx.Context(), SessionUserID(ctx))
	if err != nil {
		return renderError(ctx, err)
	}
	return ctx.JSON(users)
}

func (a *Controller) GetUser(ctx *fiber.Ctx) error {
	targetID, err := ctx.ParamsInt("id")
	if err != nil {
		return renderError(ctx, badBody(err))
	}

	user, err := a.Provisioning.GetByID(ctx.Context(), SessionUserID(ctx), int64(targetID))
	if err != nil {
		return renderError(ctx, err)
	}
	return ctx.JSON(user)
}

// AccountUpdatePayload is the directory-facing partial update. Unlike
// the self-service payload it may carry a role change.
type AccountUpdatePayload struct {
	UpdateProfilePayload
	Role *string `json:"user_role"`
}

// Validate will run validation rules
func (r AccountUpdatePayload) Validate() error {
	if err := r.UpdateProfilePayload.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.In(rolesAsAny()...)),
	)
}

func (r AccountUpdatePayload) toUpdate() UserUpdate {
	update := r.UpdateProfilePayload.toUpdate()
	if r.Role != nil {
		role := UserRole(*r.Role)
		update.Role = &role
	}
	return update
}

func (a *Controller) UpdateUser(ctx *fiber.Ctx) error {
	targetID, err := ctx.ParamsInt("id")
	if err != nil {
		return renderError(ctx, badBody(err))
	}

	payload := new(AccountUpdatePayload)
	if err := ctx.BodyParser(payload); err != nil {
		return renderError(ctx, badBody(err))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	user, err := a.Provisioning.Update(ctx.Context(), SessionUserID(ctx), int64(targetID), payload.toUpdate())
	if err != nil {
		return renderError(ctx, err)
	}
	return ctx.JSON(user)
}

func (a *Controller) DeleteUser(ctx *fiber.Ctx) error {
	targetID, err := ctx.ParamsInt("id")
	if err != nil {
		return renderError(ctx, badBody(err))
	}

	if err := a.Provisioning.Delete(ctx.Context(), SessionUserID(ctx), int64(targetID)); err != nil {
		return renderError(ctx, err)
	}
	return ctx.JSON(fiber.Map{"message": "account deleted"})
}

func (a *Controller) Logs(ctx *fiber.Ctx) error {
	summary, err := a.Audit.Aggregate(ctx.Context(), SessionUserID(ctx))
	if err != nil {
		return renderError(ctx, err)
	}
	return ctx.JSON(summary)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber accepts empty values and otherwise requires a
// parseable, valid phone number.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return errors.New("must be a valid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}
	return nil
}

func validateOptionalPhone(value any) error {
	s, ok := value.(*string)
	if !ok || s == nil {
		return nil
	}
	return ValidatePhoneNumber(*s)
}

func badBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(goerrors.CodeBadRequest)
}

func renderValidationError(ctx *fiber.Ctx, err error) error {
	richErr := goerrors.Wrap(err, goerrors.CategoryValidation, "payload validation failed").
		WithCode(goerrors.CodeBadRequest)
	return renderError(ctx, richErr)
}

func departmentsAsAny() []any {
	departments := GetAllDepartments()
	out := make([]any, len(departments))
	for i, d := range departments {
		out[i] = string(d)
	}
	return out
}

func rolesAsAny() []any {
	roles := GetAllRoles()
	out := make([]any, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
