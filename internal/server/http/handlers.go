package internalhttp

import (
	"errors"
	"net/http"
	"time"

	"github.com/aokihara/eventboard/internal/app"
	"github.com/aokihara/eventboard/internal/auth"
	"github.com/aokihara/eventboard/internal/storage"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const userKey = "user"

// SuggestedEventTypes is offered in the event form; a custom type may be
// entered instead.
var SuggestedEventTypes = []string{"Meeting", "Seminar", "Workshop", "Social", "Competition", "Other"}

func (s *Server) currentUser(c *gin.Context) (storage.User, bool) {
	token, err := c.Cookie(sessionCookie)
	if err != nil || token == "" {
		return storage.User{}, false
	}
	user, err := s.auth.UserFromToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFoundSession) {
			log.Errorf("failed to resolve session: %v", err)
		}
		return storage.User{}, false
	}
	return user, true
}

// requireSessionPage gates HTML routes: no session redirects to the login
// view.
func (s *Server) requireSessionPage(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/login")
		c.Abort()
		return
	}
	c.Set(userKey, user)
	c.Next()
}

func (s *Server) requireSessionAPI(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
		return
	}
	c.Set(userKey, user)
	c.Next()
}

func sessionUser(c *gin.Context) storage.User {
	return c.MustGet(userKey).(storage.User)
}

func (s *Server) setSessionCookie(c *gin.Context, session storage.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetCookie(sessionCookie, session.Token, maxAge, "/", "", s.config.SecureCookies, true)
}

func (s *Server) handleLanding(c *gin.Context) {
	_, signedIn := s.currentUser(c)
	c.HTML(http.StatusOK, "landing.html", gin.H{"SignedIn": signedIn})
}

func (s *Server) handleLoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Email": ""})
}

func (s *Server) handleLogin(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	session, _, err := s.auth.Login(c.Request.Context(), email, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			log.Errorf("login failed: %v", err)
		}
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"Error": auth.UserMessage(err),
			"Email": email,
		})
		return
	}

	s.setSessionCookie(c, session)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// handleRegisterPage validates the invitation carried in the link before
// showing the form. Invalid invitations render the rejection panel, never
// the registration form.
func (s *Server) handleRegisterPage(c *gin.Context) {
	invitationID := c.Query("uid")
	if !s.auth.ValidateInvitation(c.Request.Context(), invitationID) {
		c.HTML(http.StatusForbidden, "invitation_invalid.html", nil)
		return
	}
	c.HTML(http.StatusOK, "register.html", gin.H{
		"InvitationID": invitationID,
		"Email":        "",
		"DisplayName":  "",
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	params := auth.RegisterParams{
		Email:           c.PostForm("email"),
		DisplayName:     c.PostForm("displayName"),
		Password:        c.PostForm("password"),
		ConfirmPassword: c.PostForm("confirmPassword"),
		InvitationID:    c.PostForm("uid"),
	}

	user, err := s.auth.Register(c.Request.Context(), params)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidInvitation) {
			c.HTML(http.StatusForbidden, "invitation_invalid.html", nil)
			return
		}
		status := http.StatusBadRequest
		if !knownRegistrationError(err) {
			log.Errorf("registration failed: %v", err)
			status = http.StatusInternalServerError
		}
		c.HTML(status, "register.html", gin.H{
			"Error":        auth.UserMessage(err),
			"InvitationID": params.InvitationID,
			"Email":        params.Email,
			"DisplayName":  params.DisplayName,
		})
		return
	}

	session, err := s.auth.CreateSessionFor(c.Request.Context(), user.ID)
	if err != nil {
		// The account exists; send the user to the login view instead of
		// failing the whole registration.
		log.Errorf("failed to open session after registration: %v", err)
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	s.setSessionCookie(c, session)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func knownRegistrationError(err error) bool {
	return errors.Is(err, auth.ErrPasswordMismatch) ||
		errors.Is(err, auth.ErrInvalidEmail) ||
		errors.Is(err, auth.ErrWeakPassword) ||
		errors.Is(err, storage.ErrDuplicateEmail)
}

func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		if err := s.auth.Logout(c.Request.Context(), token); err != nil {
			log.Errorf("failed to remove session: %v", err)
		}
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", s.config.SecureCookies, true)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleDashboard(c *gin.Context) {
	user := sessionUser(c)
	events, err := s.app.ListEvents(c.Request.Context())
	if err != nil {
		log.Errorf("failed to list events: %v", err)
		c.HTML(http.StatusInternalServerError, "dashboard.html", gin.H{
			"User":  user,
			"Error": "Failed to load events. The list shown may be stale.",
			"Types": SuggestedEventTypes,
		})
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"User":     user,
		"All":      events,
		"Own":      app.OwnEvents(events, user.ID),
		"Upcoming": app.UpcomingEvents(events, time.Now()),
		"Types":    SuggestedEventTypes,
	})
}
