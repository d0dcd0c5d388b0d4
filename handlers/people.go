package handlers

import (
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
)

type userQuery struct {
	Role *models.UserRole `form:"role"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active"`
}

type searchQuery struct {
	Search *string `form:"search"`
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q userQuery
		if !bindQuery(c, &q) {
			return
		}
		users, err := models.GetUsers(c.Request.Context(), q.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func getUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		user, err := models.GetUser(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func setUserActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req activeRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.IsActive == nil {
			badRequest(c, "is_active is required")
			return
		}
		user, err := models.ToggleActiveUser(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func listLawyersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q searchQuery
		page, ok := pageInput(c)
		if !ok || !bindQuery(c, &q) {
			return
		}
		conn, err := models.ListLawyers(c.Request.Context(), q.Search, page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}

func createLawyerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewLawyer
		if !bindJSON(c, &input) {
			return
		}
		lawyer, err := models.CreateLawyer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, lawyer)
	}
}

func getLawyerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		lawyer, err := models.GetLawyer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, lawyer)
	}
}

func updateLawyerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewLawyer
		if !bindJSON(c, &input) {
			return
		}
		lawyer, err := models.UpdateLawyer(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, lawyer)
	}
}

func deleteLawyerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		lawyer, err := models.DeleteLawyer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, lawyer)
	}
}
