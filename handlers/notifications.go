package handlers

import (
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
)

func listNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.NotificationFilter
		page, ok := pageInput(c)
		if !ok || !bindQuery(c, &filter) {
			return
		}
		conn, err := models.ListNotifications(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}

func unreadNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := models.CountUnreadNotifications(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": n})
	}
}

func markNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		n, err := models.MarkNotificationRead(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, n)
	}
}

func markAllNotificationsReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := models.MarkAllNotificationsRead(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked": n})
	}
}

func listActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.ActivityFilter
		page, ok := pageInput(c)
		if !ok || !bindQuery(c, &filter) {
			return
		}
		conn, err := models.ListActivity(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := models.GetDashboardSummary(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
