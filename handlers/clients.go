package handlers

import (
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
)

type includeDeletedQuery struct {
	IncludeDeleted bool `form:"include_deleted"`
}

func listClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.ClientFilter
		page, ok := pageInput(c)
		if !ok || !bindQuery(c, &filter) {
			return
		}
		conn, err := models.ListClients(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}

func createClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewClient
		if !bindJSON(c, &input) {
			return
		}
		client, err := models.CreateClient(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, client)
	}
}

func getClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var q includeDeletedQuery
		if !bindQuery(c, &q) {
			return
		}
		client, err := models.GetClient(c.Request.Context(), id, q.IncludeDeleted)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func updateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewClient
		if !bindJSON(c, &input) {
			return
		}
		client, err := models.UpdateClient(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func deleteClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		client, err := models.DeleteClient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}
