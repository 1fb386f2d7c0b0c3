package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/launchkit-dev/launchkit/internal/accounts"
	"github.com/launchkit-dev/launchkit/internal/session"
)

// SignUpRequest represents an API sign-up request
type SignUpRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// SignInRequest represents an email/password sign-in
type SignInRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// RegisterForm is the HTML register form
type RegisterForm struct {
	Name            string `form:"name" validate:"notblank,max=100"`
	Email           string `form:"email" validate:"required,email,max=254"`
	Password        string `form:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// SessionResponse is returned by the auth API
type SessionResponse struct {
	User      UserDetail `json:"user"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

func newSessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		User: UserDetail{
			ID:          s.UserID,
			Name:        s.UserName,
			Email:       s.UserEmail,
			IsAnonymous: s.IsAnonymous,
		},
		ExpiresAt: s.ExpiresAt,
	}
}

// validationMessage turns the first validation failure into form copy
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	fe := verrs[0]
	switch {
	case fe.Tag() == "eqfield":
		return "Passwords do not match"
	case fe.Field() == "Password" && fe.Tag() == "min":
		return accounts.ErrPasswordTooShort.Error()
	case fe.Field() == "Email":
		return "Please enter a valid email address"
	case fe.Field() == "Name":
		return "Please enter your name"
	default:
		return "Please check the " + fe.Field() + " field"
	}
}

func (s *Server) apiSignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		respondWithError(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	sess, err := s.accounts.SignUp(c.Request.Context(), accounts.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, requestMetadata(c))
	if err != nil {
		s.respondWithAccountError(c, err, "Failed to create account")
		return
	}

	if err := s.setSessionCookie(c, sess); err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign session cookie")
		respondWithError(c, http.StatusInternalServerError, "Failed to create session")
		return
	}

	c.JSON(http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) apiSignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		respondWithError(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	sess, err := s.accounts.SignIn(c.Request.Context(), req.Email, req.Password, requestMetadata(c))
	if err != nil {
		s.respondWithAccountError(c, err, "Failed to sign in")
		return
	}

	if err := s.setSessionCookie(c, sess); err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign session cookie")
		respondWithError(c, http.StatusInternalServerError, "Failed to create session")
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(sess))
}

func (s *Server) apiSignInAnonymous(c *gin.Context) {
	sess, err := s.accounts.SignInAnonymous(c.Request.Context(), requestMetadata(c))
	if err != nil {
		s.respondWithAccountError(c, err, "Failed to sign in")
		return
	}

	if err := s.setSessionCookie(c, sess); err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign session cookie")
		respondWithError(c, http.StatusInternalServerError, "Failed to create session")
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(sess))
}

func (s *Server) apiSignOut(c *gin.Context) {
	for _, token := range s.sessionTokens(c) {
		if err := s.accounts.SignOut(c.Request.Context(), token); err != nil {
			s.logger.Error().Err(err).Msg("Failed to sign out")
			respondWithError(c, http.StatusInternalServerError, "Failed to sign out")
			return
		}
	}

	s.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) apiGetSession(c *gin.Context) {
	sess, err := s.oracle.ResolveSession(c.Request.Context(), c.Request.Header)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Session lookup failed")
		respondWithError(c, http.StatusServiceUnavailable, "Session store unavailable")
		return
	}
	if sess == nil {
		respondWithError(c, http.StatusUnauthorized, "Not signed in")
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(sess))
}

func (s *Server) respondWithAccountError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, accounts.ErrInvalidCredentials):
		respondWithError(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, accounts.ErrEmailTaken):
		respondWithError(c, http.StatusConflict, "An account with this email already exists")
	case errors.Is(err, accounts.ErrPasswordTooShort):
		respondWithError(c, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg(fallback)
		respondWithError(c, http.StatusInternalServerError, fallback)
	}
}

// Form handlers. The authOnly layout has already redirected signed-in callers.

func (s *Server) loginSubmit(c *gin.Context) {
	var form SignInRequest
	if err := c.ShouldBind(&form); err != nil {
		s.renderLogin(c, http.StatusBadRequest, form.Email, "Invalid request")
		return
	}
	if err := s.validator.Struct(form); err != nil {
		s.renderLogin(c, http.StatusBadRequest, form.Email, validationMessage(err))
		return
	}

	sess, err := s.accounts.SignIn(c.Request.Context(), form.Email, form.Password, requestMetadata(c))
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		s.renderLogin(c, http.StatusUnauthorized, form.Email, "Invalid email or password")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign in")
		s.renderLogin(c, http.StatusInternalServerError, form.Email, "An unexpected error occurred")
		return
	}

	s.completeSignIn(c, sess)
}

func (s *Server) loginAnonymousSubmit(c *gin.Context) {
	sess, err := s.accounts.SignInAnonymous(c.Request.Context(), requestMetadata(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign in anonymously")
		s.renderLogin(c, http.StatusInternalServerError, "", "Failed to sign in")
		return
	}

	s.completeSignIn(c, sess)
}

func (s *Server) registerSubmit(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderRegister(c, http.StatusBadRequest, form, "Invalid request")
		return
	}
	if err := s.validator.Struct(form); err != nil {
		s.renderRegister(c, http.StatusBadRequest, form, validationMessage(err))
		return
	}

	sess, err := s.accounts.SignUp(c.Request.Context(), accounts.SignUpInput{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}, requestMetadata(c))
	switch {
	case errors.Is(err, accounts.ErrEmailTaken):
		s.renderRegister(c, http.StatusConflict, form, "An account with this email already exists")
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to create account")
		s.renderRegister(c, http.StatusInternalServerError, form, "Failed to create account")
		return
	}

	s.completeSignIn(c, sess)
}

func (s *Server) logoutSubmit(c *gin.Context) {
	for _, token := range s.sessionTokens(c) {
		if err := s.accounts.SignOut(c.Request.Context(), token); err != nil {
			s.logger.Error().Err(err).Msg("Failed to sign out")
		}
	}

	s.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) completeSignIn(c *gin.Context, sess *session.Session) {
	if err := s.setSessionCookie(c, sess); err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign session cookie")
		s.renderLogin(c, http.StatusInternalServerError, "", "An unexpected error occurred")
		return
	}
	c.Redirect(http.StatusSeeOther, s.config.Session.LandingPath)
}
