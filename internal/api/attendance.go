package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/auth"
)

type scanRequest struct {
	Payload   string `json:"payload" binding:"required"`
	ClassName string `json:"class_name" binding:"required"`
}

// scan verifies what the student's camera read and records them present.
func (h *handler) scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Attendance.MarkFromScan(c.Request.Context(), userID(c), req.ClassName, req.Payload)
	if err != nil {
		writeMarkError(c, err)
		return
	}
	if !out.Result.Accepted() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  out.Result.Reason.Message(),
			"reason": out.Result.Reason,
		})
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"record": out.Record, "created": out.Created})
}

type faceRequest struct {
	ClassName string `json:"class_name" binding:"required"`
	ImageURL  string `json:"image_url" binding:"required,url"`
}

func (h *handler) markFace(c *gin.Context) {
	var req faceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	who, rec, err := h.Attendance.MarkFace(c.Request.Context(), req.ClassName, req.ImageURL)
	if err != nil {
		writeMarkError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": who, "record": rec})
}

type manualRequest struct {
	StudentID string            `json:"student_id" binding:"required"`
	ClassName string            `json:"class_name" binding:"required"`
	Status    attendance.Status `json:"status" binding:"required"`
}

func (h *handler) markManual(c *gin.Context) {
	var req manualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.Attendance.MarkManual(c.Request.Context(), req.StudentID, req.ClassName, req.Status)
	if err != nil {
		writeMarkError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": rec})
}

func writeMarkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrStudentRequired),
		errors.Is(err, attendance.ErrClassRequired),
		errors.Is(err, attendance.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNoMatch):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance could not be recorded"})
	}
}

// summary returns the dashboard widget. Students only ever see their own numbers.
func (h *handler) summary(c *gin.Context) {
	classID := c.Query("class_id")
	studentID := c.Query("student_id")
	if role(c) == auth.RoleStudent {
		studentID = userID(c)
	}
	sum, err := h.Summaries.Get(c.Request.Context(), classID, studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *handler) listRecords(c *gin.Context) {
	f := attendance.Filter{
		ClassID:   c.Query("class_id"),
		StudentID: c.Query("student_id"),
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	if role(c) == auth.RoleStudent {
		f.StudentID = userID(c)
	}
	records, err := h.Records.ListRecords(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
