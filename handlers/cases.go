package handlers

import (
	"context"
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/middlewares"
	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
)

type caseStatusRequest struct {
	Status models.CaseStatus `json:"status"`
}

// attachCaseParties fills Client and Lawyer through the request loaders, so a
// page of cases costs two extra queries.
func attachCaseParties(ctx context.Context, cases []*models.Case) error {
	if len(cases) == 0 {
		return nil
	}
	clientIds := make([]int, 0, len(cases))
	var lawyerIds []int
	for _, cs := range cases {
		clientIds = append(clientIds, cs.ClientId)
		if cs.LawyerId != nil {
			lawyerIds = append(lawyerIds, *cs.LawyerId)
		}
	}

	clients, errs := middlewares.GetClients(ctx, clientIds)
	if err := firstError(errs); err != nil {
		return err
	}
	for i, cs := range cases {
		cs.Client = clients[i]
	}
	if len(lawyerIds) == 0 {
		return nil
	}
	lawyers, errs := middlewares.GetLawyers(ctx, lawyerIds)
	if err := firstError(errs); err != nil {
		return err
	}
	next := 0
	for _, cs := range cases {
		if cs.LawyerId != nil {
			cs.Lawyer = lawyers[next]
			next++
		}
	}
	return nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func listCasesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.CaseFilter
		page, ok := pageInput(c)
		if !ok || !bindQuery(c, &filter) {
			return
		}
		ctx := c.Request.Context()
		conn, err := models.ListCases(ctx, filter, page)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := attachCaseParties(ctx, conn.Nodes()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}

func createCaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCase
		if !bindJSON(c, &input) {
			return
		}
		cs, err := models.CreateCase(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, cs)
	}
}

func getCaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var q includeDeletedQuery
		if !bindQuery(c, &q) {
			return
		}
		ctx := c.Request.Context()
		cs, err := models.GetCase(ctx, id, q.IncludeDeleted)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := attachCaseParties(ctx, []*models.Case{cs}); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cs)
	}
}

func updateCaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewCase
		if !bindJSON(c, &input) {
			return
		}
		cs, err := models.UpdateCase(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cs)
	}
}

func changeCaseStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req caseStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		cs, err := models.ChangeCaseStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cs)
	}
}

func deleteCaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		cs, err := models.DeleteCase(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cs)
	}
}
