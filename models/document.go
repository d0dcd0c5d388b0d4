package models

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"gorm.io/gorm"
)

const documentLinkLifespan = 15 * time.Minute

// Document is a file attached to a case. The bytes live in GCS under ObjectKey.
type Document struct {
	ID           int            `gorm:"primary_key" json:"id"`
	CaseId       int            `gorm:"not null;index" json:"case_id"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	ObjectKey    string         `gorm:"size:512;not null" json:"object_key"`
	ContentType  string         `gorm:"size:120" json:"content_type"`
	Size         int64          `json:"size"`
	ThumbnailKey *string        `gorm:"size:512" json:"thumbnail_key"`
	UploadedBy   int            `json:"uploaded_by"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TenantParent() (string, string) { return "case_id", "cases" }

func (d Document) GetCursor() time.Time { return d.CreatedAt }
func (d Document) GetId() int           { return d.ID }

type NewDocument struct {
	Name string
	Data []byte
}

// DocumentLink pairs a document with short-lived download URLs.
type DocumentLink struct {
	Document  *Document             `json:"document"`
	Download  *utils.SignedDownload `json:"download"`
	Thumbnail *utils.SignedDownload `json:"thumbnail,omitempty"`
}

// UploadDocument stores the file, then the row. A failed insert removes the stored objects.
func UploadDocument(ctx context.Context, caseId int, input *NewDocument) (*Document, error) {
	organizationId, err := utils.RequireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", utils.ErrInvalidArgument)
	}
	if int64(len(input.Data)) > utils.MaxUploadSizeBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", utils.ErrInvalidArgument, utils.MaxUploadSizeBytes)
	}
	parent, err := utils.FetchModel[Case](ctx, caseId)
	if err != nil {
		return nil, err
	}
	if parent.Status == CaseStatusArchived {
		return nil, fmt.Errorf("%w: archived cases are read-only", utils.ErrInvalidState)
	}
	contentType, err := utils.DetectContentType(input.Name, input.Data)
	if err != nil {
		return nil, err
	}

	objectKey := utils.DocumentObjectKey(organizationId, caseId, input.Name)
	if err := utils.UploadBytesToGCS(ctx, objectKey, input.Data, contentType); err != nil {
		return nil, err
	}
	stored := []string{objectKey}

	var thumbnailKey *string
	if utils.IsImageContentType(contentType) {
		thumb, err := utils.MakeThumbnail(input.Data)
		if err != nil {
			config.LogError(config.GetLogger(), "Document", "UploadDocument", "thumbnail", objectKey, err)
		} else {
			key := utils.ThumbnailObjectKey(objectKey)
			if err := utils.UploadBytesToGCS(ctx, key, thumb, "image/jpeg"); err != nil {
				config.LogError(config.GetLogger(), "Document", "UploadDocument", "upload thumbnail", key, err)
			} else {
				thumbnailKey = &key
				stored = append(stored, key)
			}
		}
	}

	userId, _ := actorFromContext(ctx)
	doc := Document{
		CaseId:       caseId,
		Name:         utils.SanitizeFileName(input.Name),
		ObjectKey:    objectKey,
		ContentType:  contentType,
		Size:         int64(len(input.Data)),
		ThumbnailKey: thumbnailKey,
		UploadedBy:   userId,
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	err = tx.Create(&doc).Error
	if err == nil {
		err = recordActivity(tx, ActivityActionCreate, EntityTypeDocument, doc.ID, nil, doc, "document "+doc.Name+" uploaded to "+parent.CaseNumber)
	}
	if err == nil {
		err = tx.Commit().Error
	} else {
		tx.Rollback()
	}
	if err != nil {
		for _, key := range stored {
			if derr := utils.DeleteObjectFromGCS(context.WithoutCancel(ctx), key); derr != nil {
				config.LogError(config.GetLogger(), "Document", "UploadDocument", "cleanup", key, derr)
			}
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocumentLink signs download URLs for a document of the caller's organization.
func GetDocumentLink(ctx context.Context, id int) (*DocumentLink, error) {
	doc, err := utils.FetchModel[Document](ctx, id)
	if err != nil {
		return nil, err
	}
	download, err := utils.SignDownload(ctx, doc.ObjectKey, doc.Name, documentLinkLifespan)
	if err != nil {
		return nil, err
	}
	link := &DocumentLink{Document: doc, Download: download}
	if doc.ThumbnailKey != nil {
		thumb, err := utils.SignDownload(ctx, *doc.ThumbnailKey, "", documentLinkLifespan)
		if err != nil {
			config.LogError(config.GetLogger(), "Document", "GetDocumentLink", "sign thumbnail", *doc.ThumbnailKey, err)
		} else {
			link.Thumbnail = thumb
		}
	}
	return link, nil
}

// OpenDocument streams a document's bytes through the API, for clients that
// cannot follow signed URLs. The caller closes the reader.
func OpenDocument(ctx context.Context, id int) (*Document, io.ReadCloser, error) {
	doc, err := utils.FetchModel[Document](ctx, id)
	if err != nil {
		return nil, nil, err
	}
	r, _, err := utils.OpenObjectFromGCS(ctx, doc.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, r, nil
}

func ListDocuments(ctx context.Context, caseId int, page PageInput) (*Connection[Document], error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Document{}).Where("case_id = ?", caseId)
	return FetchPage[Document](dbCtx, "documents", page)
}

// DeleteDocument soft-deletes the row. Stored objects are kept for audit.
func DeleteDocument(ctx context.Context, id int) (*Document, error) {
	tx := config.GetDB().WithContext(ctx).Begin()
	doc, err := utils.FetchModelForUpdate[Document](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(doc).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionDelete, EntityTypeDocument, doc.ID, doc, nil, "document "+doc.Name+" deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return doc, nil
}
