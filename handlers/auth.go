package handlers

import (
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func signupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrganization
		if !bindJSON(c, &input) {
			return
		}
		info, err := models.CreateOrganization(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, info)
	}
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		info, err := models.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": ok})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := models.GetSessionUser(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func getOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := models.GetOrganization(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, org)
	}
}

func updateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdateOrganizationInput
		if !bindJSON(c, &input) {
			return
		}
		org, err := models.UpdateOrganization(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, org)
	}
}
