package handlers

import (
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
)

func listAppointmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.AppointmentFilter
		if !bindQuery(c, &filter) {
			return
		}
		appointments, err := models.ListAppointments(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, appointments)
	}
}

func createAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAppointment
		if !bindJSON(c, &input) {
			return
		}
		appointment, err := models.CreateAppointment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, appointment)
	}
}

func getAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		appointment, err := models.GetAppointment(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, appointment)
	}
}

func updateAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewAppointment
		if !bindJSON(c, &input) {
			return
		}
		appointment, err := models.UpdateAppointment(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, appointment)
	}
}

func deleteAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		appointment, err := models.DeleteAppointment(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, appointment)
	}
}
