package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/session"
	"github.com/MikeMC777/storefront/internal/user"
)

func caller(c *gin.Context) session.Identity {
	id, _ := httpx.IdentityFrom(c)
	return id
}

// registerHandler godoc
// @Summary  Register a customer account
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body  body  user.RegisterRequest  true  "account"
// @Success  201  {object}  user.User
// @Failure  400  {object}  httpx.ErrorBody
// @Failure  409  {object}  httpx.ErrorBody
// @Router   /api/register [post]
func registerHandler(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.RegisterRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid json")
			return
		}
		u, err := users.Register(c.Request.Context(), in)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// loginHandler godoc
// @Summary      Log in
// @Description  Accepts the email or the username. Sets the session cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  user.LoginRequest  true  "credentials"
// @Success      200  {object}  user.User
// @Failure      401  {object}  httpx.ErrorBody
// @Failure      429  {object}  httpx.ErrorBody
// @Router       /api/login [post]
func loginHandler(users *user.Service, sessions *session.Manager, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.LoginRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid json")
			return
		}
		u, err := users.Authenticate(c.Request.Context(), in.Email, in.Password)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		token, _, err := sessions.Issue(c.Request.Context(), u.ID, u.IsAdmin)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		httpx.SetSessionCookie(c, token, int(sessions.TTL().Seconds()), secure)
		c.JSON(http.StatusOK, u)
	}
}

// logoutHandler godoc
// @Summary  Log out
// @Tags     auth
// @Success  204
// @Router   /api/logout [post]
func logoutHandler(sessions *session.Manager, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, _ := c.Cookie(httpx.SessionCookie); token != "" {
			if err := sessions.Revoke(c.Request.Context(), token); err != nil {
				httpx.Fail(c, err)
				return
			}
		}
		httpx.SetSessionCookie(c, "", -1, secure)
		c.Status(http.StatusNoContent)
	}
}

// profileHandler godoc
// @Summary  Current user's profile
// @Tags     user
// @Produce  json
// @Success  200  {object}  user.User
// @Failure  401  {object}  httpx.ErrorBody
// @Router   /api/user/profile [get]
func profileHandler(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.Profile(c.Request.Context(), caller(c).UserID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				err = apperr.Auth("account no longer exists")
			}
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// updateProfileHandler godoc
// @Summary  Update username, email or phone number
// @Tags     user
// @Accept   json
// @Produce  json
// @Param    body  body  user.UpdateProfileRequest  true  "changes"
// @Success  200  {object}  user.User
// @Failure  409  {object}  httpx.ErrorBody
// @Router   /api/user/profile [put]
func updateProfileHandler(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.UpdateProfileRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid json")
			return
		}
		u, err := users.UpdateProfile(c.Request.Context(), caller(c).UserID, in)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// changePasswordHandler godoc
// @Summary  Change password
// @Tags     user
// @Accept   json
// @Param    body  body  user.ChangePasswordRequest  true  "passwords"
// @Success  204
// @Failure  400  {object}  httpx.ErrorBody
// @Failure  403  {object}  httpx.ErrorBody
// @Router   /api/user/change-password [post]
func changePasswordHandler(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.ChangePasswordRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid json")
			return
		}
		if err := users.ChangePassword(c.Request.Context(), caller(c).UserID, in); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
