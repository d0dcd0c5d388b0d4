package handlers

import (
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/middlewares"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the JSON API. AuthMiddleware must already be installed
// on r; routes after RequireAuth need a signed-in user.
func RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/pubsub", pubSubHandler())

	r.POST("/auth/signup", signupHandler())
	r.POST("/auth/login", loginHandler())

	api := r.Group("/", middlewares.RequireAuth(), middlewares.SessionMiddleware())
	api.POST("/auth/logout", logoutHandler())
	api.GET("/me", meHandler())

	api.GET("/organization", getOrganizationHandler())
	api.PUT("/organization", updateOrganizationHandler())

	api.GET("/users", listUsersHandler())
	api.POST("/users", createUserHandler())
	api.GET("/users/:id", getUserHandler())
	api.PUT("/users/:id/active", setUserActiveHandler())

	api.GET("/lawyers", listLawyersHandler())
	api.POST("/lawyers", createLawyerHandler())
	api.GET("/lawyers/:id", getLawyerHandler())
	api.PUT("/lawyers/:id", updateLawyerHandler())
	api.DELETE("/lawyers/:id", deleteLawyerHandler())

	api.GET("/clients", listClientsHandler())
	api.POST("/clients", createClientHandler())
	api.GET("/clients/:id", getClientHandler())
	api.PUT("/clients/:id", updateClientHandler())
	api.DELETE("/clients/:id", deleteClientHandler())

	api.GET("/cases", listCasesHandler())
	api.POST("/cases", createCaseHandler())
	api.GET("/cases/:id", getCaseHandler())
	api.PUT("/cases/:id", updateCaseHandler())
	api.DELETE("/cases/:id", deleteCaseHandler())
	api.POST("/cases/:id/status", changeCaseStatusHandler())
	api.GET("/cases/:id/tasks", listTasksHandler())
	api.POST("/cases/:id/tasks", createTaskHandler())
	api.GET("/cases/:id/documents", listDocumentsHandler())
	api.POST("/cases/:id/documents", uploadDocumentHandler())

	api.GET("/tasks", listTasksHandler())
	api.GET("/tasks/:id", getTaskHandler())
	api.PUT("/tasks/:id", updateTaskHandler())
	api.DELETE("/tasks/:id", deleteTaskHandler())

	api.GET("/documents/:id", getDocumentHandler())
	api.GET("/documents/:id/content", downloadDocumentHandler())
	api.DELETE("/documents/:id", deleteDocumentHandler())

	api.GET("/appointments", listAppointmentsHandler())
	api.POST("/appointments", createAppointmentHandler())
	api.GET("/appointments/:id", getAppointmentHandler())
	api.PUT("/appointments/:id", updateAppointmentHandler())
	api.DELETE("/appointments/:id", deleteAppointmentHandler())

	api.GET("/invoices", listInvoicesHandler())
	api.POST("/invoices", createInvoiceHandler())
	api.GET("/invoices/export", exportInvoicesHandler())
	api.GET("/invoices/:id", getInvoiceHandler())
	api.PUT("/invoices/:id", updateInvoiceHandler())
	api.DELETE("/invoices/:id", deleteInvoiceHandler())
	api.GET("/invoices/:id/payments", listInvoicePaymentsHandler())
	api.POST("/invoices/:id/payments", recordPaymentHandler())
	api.DELETE("/payments/:id", deletePaymentHandler())

	api.GET("/notifications", listNotificationsHandler())
	api.GET("/notifications/unread", unreadNotificationsHandler())
	api.POST("/notifications/read-all", markAllNotificationsReadHandler())
	api.POST("/notifications/:id/read", markNotificationReadHandler())

	api.GET("/activity", listActivityHandler())
	api.GET("/dashboard", dashboardHandler())

	api.GET("/ops/outbox", outboxStatusHandler())
	api.POST("/ops/outbox/reprocess", outboxReprocessHandler())
	api.GET("/ops/sequences/:kind", sequenceHandler())
}

func NotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}
