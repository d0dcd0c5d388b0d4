package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/gin-gonic/gin"
)

func listDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caseId, ok := idParam(c, "id")
		if !ok {
			return
		}
		page, ok := pageInput(c)
		if !ok {
			return
		}
		conn, err := models.ListDocuments(c.Request.Context(), caseId, page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}

// uploadDocumentHandler takes a multipart "file" part and an optional "name".
func uploadDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caseId, ok := idParam(c, "id")
		if !ok {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxUploadSizeBytes+1<<20)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "file is required")
			return
		}
		if fileHeader.Size > utils.MaxUploadSizeBytes {
			badRequest(c, "file exceeds %d bytes", utils.MaxUploadSizeBytes)
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			badRequest(c, "unreadable file")
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, utils.MaxUploadSizeBytes+1))
		if err != nil {
			badRequest(c, "unreadable file")
			return
		}

		name := c.PostForm("name")
		if name == "" {
			name = fileHeader.Filename
		}
		doc, err := models.UploadDocument(c.Request.Context(), caseId, &models.NewDocument{Name: name, Data: data})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

// getDocumentHandler returns the row plus signed download links.
func getDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		link, err := models.GetDocumentLink(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

func downloadDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		doc, r, err := models.OpenDocument(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		defer r.Close()

		c.Header("Content-Disposition", "attachment; filename=\""+doc.Name+"\"")
		c.Header("Content-Length", strconv.FormatInt(doc.Size, 10))
		c.Header("Content-Type", doc.ContentType)
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, r); err != nil {
			config.LogError(config.GetLogger(), "handlers", "downloadDocumentHandler", "stream", id, err)
		}
	}
}

func deleteDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		doc, err := models.DeleteDocument(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}
