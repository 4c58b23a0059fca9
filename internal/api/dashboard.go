package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"classattend/internal/activity"
	"classattend/internal/auth"
	"classattend/internal/cloudinary"
)

type tokenRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=student teacher"`
	FullName string `json:"full_name"`
}

// issueToken is the demo login: it trusts the caller's id and role.
func (h *handler) issueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Profiles != nil {
		if err := h.Profiles.UpsertProfile(c.Request.Context(), req.UserID, req.FullName, req.Role); err != nil {
			logrus.WithError(err).WithField("user_id", req.UserID).Warn("profile upsert failed")
		}
	}
	tokens, err := h.Signer.Issue(req.UserID, req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRole) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

type activityRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxMarks    int        `json:"max_marks" binding:"min=0"`
}

func (h *handler) createActivity(c *gin.Context) {
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.Activities.Create(c.Request.Context(), activity.Activity{
		TeacherID:   userID(c),
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		MaxMarks:    req.MaxMarks,
	})
	if err != nil {
		if errors.Is(err, activity.ErrTitleRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *handler) listActivities(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.Activities.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []activity.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"activities": items})
}

// uploadPicture accepts a multipart "file" or a JSON {"data": "<data URL>"} body.
func (h *handler) uploadPicture(c *gin.Context) {
	if h.Uploads == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	var result *cloudinary.UploadResult
	var err error
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		result, err = h.Uploads.UploadProfilePicture(ctx, uid, data, header.Filename)
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": `provide {"data": "<base64 data URL>"}`})
			return
		}
		result, err = h.Uploads.UploadProfilePictureBase64(ctx, uid, body.Data)
	}
	if err != nil {
		logrus.WithError(err).WithField("user_id", uid).Error("profile picture upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}

	if h.Profiles != nil {
		if err := h.Profiles.SetProfilePicture(ctx, uid, result.SecureURL); err != nil {
			logrus.WithError(err).WithField("user_id", uid).Warn("save profile picture url failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       result.SecureURL,
		"public_id": result.PublicID,
		"width":     result.Width,
		"height":    result.Height,
	})
}
