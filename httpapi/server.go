package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/middleware/jwtware"
)

// Routes holds the paths served by the controller.
type Routes struct {
	Preregister         string
	Verify              string
	Login               string
	ForgotUsername      string
	RecoveryCode        string
	RecoveryCodeVerify  string
	RecoveryPasswordSet string
	Logout              string
	Validate            string
}

func DefaultRoutes() Routes {
	return Routes{
		Preregister:         "/auth/preregister",
		Verify:              "/auth/verify",
		Login:               "/auth/login",
		ForgotUsername:      "/auth/forgot-username",
		RecoveryCode:        "/auth/password-recovery/code",
		RecoveryCodeVerify:  "/auth/password-recovery/verify",
		RecoveryPasswordSet: "/auth/password-recovery/reset",
		Logout:              "/auth/logout",
		Validate:            "/auth/validate",
	}
}

// Handlers bundles the command handlers exposed over HTTP.
type Handlers struct {
	Tokens              *credentials.TokenAuthority
	Preregister         *credentials.PreregisterHandler
	ConfirmRegistration *credentials.ConfirmRegistrationHandler
	RequestRecoveryCode *credentials.RequestRecoveryCodeHandler
	VerifyRecoveryCode  *credentials.VerifyRecoveryCodeHandler
	ResetPassword       *credentials.ResetPasswordHandler
	Login               *credentials.LoginHandler
	RemindUsername      *credentials.RemindUsernameHandler
	Logout              *credentials.LogoutHandler
}

// RequestObserver receives one observation per served request.
type RequestObserver interface {
	ObserveRequest(route string, statusCode int, duration time.Duration)
}

type Controller struct {
	handlers Handlers
	routes   Routes
	logger   credentials.Logger
	limiter  *RateLimiter
	observer RequestObserver
}

type ControllerOption func(*Controller)

func WithRoutes(routes Routes) ControllerOption {
	return func(c *Controller) {
		c.routes = routes
	}
}

func WithLogger(logger credentials.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimiter guards the registration and recovery routes.
func WithRateLimiter(limiter *RateLimiter) ControllerOption {
	return func(c *Controller) {
		c.limiter = limiter
	}
}

func WithRequestObserver(observer RequestObserver) ControllerOption {
	return func(c *Controller) {
		c.observer = observer
	}
}

func NewController(handlers Handlers, opts ...ControllerOption) *Controller {
	c := &Controller{
		handlers: handlers,
		routes:   DefaultRoutes(),
		logger:   credentials.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if handlers.Tokens == nil {
		panic("missing token authority in credentials controller")
	}

	return c
}

// Register mounts the credential routes on app.
func (ctrl *Controller) Register(app fiber.Router) {
	if ctrl.observer != nil {
		app.Use(ctrl.observe)
	}

	app.Post(ctrl.routes.Preregister, ctrl.limit("registration"), ctrl.PreregisterPost)
	app.Post(ctrl.routes.Verify, ctrl.VerifyPost)
	if ctrl.handlers.Login != nil {
		app.Post(ctrl.routes.Login, ctrl.limit("login"), ctrl.LoginPost)
	}
	if ctrl.handlers.RemindUsername != nil {
		app.Post(ctrl.routes.ForgotUsername, ctrl.limit("recovery"), ctrl.ForgotUsernamePost)
	}
	app.Post(ctrl.routes.RecoveryCode, ctrl.limit("recovery"), ctrl.RecoveryCodePost)
	app.Post(ctrl.routes.RecoveryCodeVerify, ctrl.limit("recovery"), ctrl.RecoveryCodeVerifyPost)
	app.Post(ctrl.routes.RecoveryPasswordSet, ctrl.limit("recovery"), ctrl.RecoveryPasswordPost)

	// logout checks signature and expiry only, revoked credentials pass
	app.Post(ctrl.routes.Logout, jwtware.New(jwtware.Config{
		TokenValidator: jwtware.ValidatorFunc(func(_ context.Context, credential string) (*credentials.Claims, error) {
			return ctrl.handlers.Tokens.Verify(credential)
		}),
		TokenLookup:  "header:" + fiber.HeaderAuthorization + ",body:token",
		ErrorHandler: ctrl.authError,
	}), ctrl.LogoutPost)

	app.Get(ctrl.routes.Validate, jwtware.New(jwtware.Config{
		TokenValidator: ctrl.handlers.Tokens,
		TokenLookup:    "header:" + fiber.HeaderAuthorization + ",query:token",
		ErrorHandler:   ctrl.authError,
	}), ctrl.ValidateGet)
}

// NewApp returns a fiber app with the controller mounted and JSON errors.
func NewApp(ctrl *Controller) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "go-credentials",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(ctrl.logger),
	})
	ctrl.Register(app)
	return app
}

func (ctrl *Controller) authError(c *fiber.Ctx, err error) error {
	return writeError(c, ctrl.logger, err)
}

func (ctrl *Controller) limit(scope string) fiber.Handler {
	if ctrl.limiter == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return ctrl.limiter.Middleware(scope)
}

func (ctrl *Controller) observe(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = StatusFor(err)
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}

	ctrl.observer.ObserveRequest(c.Route().Path, status, time.Since(start))
	return err
}

type preregisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (ctrl *Controller) PreregisterPost(c *fiber.Ctx) error {
	payload := new(preregisterRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var resp *credentials.PreregisterResponse
	err := ctrl.handlers.Preregister.Execute(c.UserContext(), credentials.PreregisterMessage{
		Username:   payload.Username,
		Email:      payload.Email,
		Password:   payload.Password,
		OnResponse: func(r *credentials.PreregisterResponse) { resp = r },
	})
	if err != nil {
		return writeError(c, ctrl.logger, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":    "verification email sent",
		"username":   resp.Username,
		"email":      resp.Email,
		"expires_at": resp.ExpiresAt,
	})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (ctrl *Controller) VerifyPost(c *fiber.Ctx) error {
	payload := new(tokenRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var resp *credentials.ConfirmRegistrationResponse
	err := ctrl.handlers.ConfirmRegistration.Execute(c.UserContext(), credentials.ConfirmRegistrationMessage{
		Token:      payload.Token,
		OnResponse: func(r *credentials.ConfirmRegistrationResponse) { resp = r },
	})
	if err != nil {
		return writeError(c, ctrl.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user": fiber.Map{
			"id":       resp.User.ID,
			"username": resp.User.Username,
			"email":    resp.User.Email,
		},
		"access_token": resp.AccessToken,
	})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (ctrl *Controller) LoginPost(c *fiber.Ctx) error {
	payload := new(loginRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var resp *credentials.LoginResponse
	err := ctrl.handlers.Login.Execute(c.UserContext(), credentials.LoginMessage{
		Identifier: payload.Identifier,
		Password:   payload.Password,
		OnResponse: func(r *credentials.LoginResponse) { resp = r },
	})
	if err != nil {
		return writeError(c, ctrl.logger, err)
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":       resp.User.ID,
			"username": resp.User.Username,
			"email":    resp.User.Email,
		},
		"access_token": resp.AccessToken,
	})
}

// ForgotUsernamePost answers the same way whether or not the email is known.
func (ctrl *Controller) ForgotUsernamePost(c *fiber.Ctx) error {
	payload := new(recoveryCodeRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	err := ctrl.handlers.RemindUsername.Execute(c.UserContext(), credentials.RemindUsernameMessage{
		Email: payload.Email,
	})
	if err != nil {
		return writeError(c, ctrl.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "if the email is registered a username reminder has been sent",
	})
}

type recoveryCodeRequest struct {
	Email string `json:"email"`
}

// RecoveryCodePost answers the same way whether or not the email is known.
func (ctrl *Controller) RecoveryCodePost(c *fiber.Ctx) error {
	payload := new(recoveryCodeRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	expiration := 0
	err := ctrl.handlers.RequestRecoveryCode.Execute(c.UserContext(), credentials.RequestRecoveryCodeMessage{
		Email: payload.Email,
		OnResponse: func(r *credentials.RequestRecoveryCodeResponse) {
			expiration = r.ExpirationMinutes
		},
	})
	if err != nil {
		return writeError(c, ctrl.logger, err)
	}

	return c.JSON(fiber.Map{
		"message":            "if the email is registered a recovery code has been sent",
		"expiration_minutes": expiration,
	})
}

type recoveryVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (ctrl *Controller) RecoveryCodeVerifyPost(c *fiber.Ctx) error {
	payload := new(recoveryVerifyRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var resp *credentials.VerifyRecoveryCodeResponse
	err := ctrl.handlers.VerifyRecoveryCode.Execute(c.UserContext(), credentials.VerifyRecoveryCodeMessage{
		Email:      payload.Email,
		Code:       payload.Code,
		OnResponse: func(r *credentials.VerifyRecoveryCodeResponse) { resp = r },
	})
	if err != nil {
		return writeError(c, ctrl.logger, err)
	}

	return c.JSON(fiber.Map{
		"valid":          true,
		"recovery_token": resp.RecoveryToken,
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (ctrl *Controller) RecoveryPasswordPost(c *fiber.Ctx) error {
	payload := new(resetPasswordRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	err := ctrl.handlers.ResetPassword.Execute(c.UserContext(), credentials.ResetPasswordMessage{
		Token:       payload.Token,
		NewPassword: payload.NewPassword,
	})
	if err != nil {
		return writeError(c, ctrl.logger, err)
	}

	return c.JSON(fiber.Map{"message": "password updated"})
}

// LogoutPost revokes the credential found by the jwtware middleware in the
// Authorization header or the token body field.
func (ctrl *Controller) LogoutPost(c *fiber.Ctx) error {
	token := jwtware.Token(c, jwtware.DefaultTokenContextKey)
	if err := ctrl.handlers.Logout.Execute(c.UserContext(), credentials.LogoutMessage{Token: token}); err != nil {
		return writeError(c, ctrl.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateGet describes the credential accepted by the jwtware middleware,
// read from the Authorization header or the token query parameter.
func (ctrl *Controller) ValidateGet(c *fiber.Ctx) error {
	claims, ok := jwtware.Claims(c, jwtware.DefaultContextKey)
	if !ok {
		return writeError(c, ctrl.logger, jwtware.ErrCredentialMissing)
	}

	body := fiber.Map{
		"valid":   true,
		"subject": claims.Subject(),
		"purpose": claims.Purpose,
	}
	if claims.ExpiresAt != nil {
		body["expires_at"] = claims.ExpiresAt.Time
	}
	return c.JSON(body)
}
