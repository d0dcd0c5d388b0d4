package handlers

import (
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
)

func listTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.TaskFilter
		page, ok := pageInput(c)
		if !ok || !bindQuery(c, &filter) {
			return
		}
		// nested route pins the case
		if c.Param("id") != "" {
			caseId, ok := idParam(c, "id")
			if !ok {
				return
			}
			filter.CaseId = &caseId
		}
		conn, err := models.ListTasks(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}

func createTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caseId, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewTask
		if !bindJSON(c, &input) {
			return
		}
		task, err := models.CreateTask(c.Request.Context(), caseId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

func getTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		task, err := models.GetTask(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func updateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewTask
		if !bindJSON(c, &input) {
			return
		}
		task, err := models.UpdateTask(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func deleteTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		task, err := models.DeleteTask(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}
