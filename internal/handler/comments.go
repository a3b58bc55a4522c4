package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/service"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/gin-gonic/gin"
)

// CommentHandler holds dependencies for segment comment endpoints.
type CommentHandler struct {
	comments storage.CommentsRepository
	segments *service.SegmentService
}

// NewCommentHandler creates a CommentHandler.
func NewCommentHandler(comments storage.CommentsRepository, segments *service.SegmentService) *CommentHandler {
	return &CommentHandler{comments: comments, segments: segments}
}

type commentJSON struct {
	ID        int32     `json:"id"`
	SegmentID int32     `json:"segment_id"`
	UserID    int32     `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toCommentJSON(cm *storage.Comment) commentJSON {
	return commentJSON{
		ID:        cm.ID,
		SegmentID: cm.SegmentID,
		UserID:    cm.UserID,
		Username:  cm.Username,
		Content:   cm.Content,
		CreatedAt: cm.CreatedAt,
	}
}

// ListComments handles GET /api/v1/segments/:id/comments
//
// Response 200: {"comments": [...], "count": N}, newest first.
// Response 404: segment does not exist.
func (h *CommentHandler) ListComments(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.segments.GetSegment(c.Request.Context(), id); err != nil {
		writeServiceError(c, err, "failed to query segment")
		return
	}

	comments, err := h.comments.ListCommentsBySegment(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "failed to list comments")
		return
	}

	out := make([]commentJSON, len(comments))
	for i := range comments {
		out[i] = toCommentJSON(&comments[i])
	}
	c.JSON(http.StatusOK, gin.H{"comments": out, "count": len(out)})
}

type createCommentRequest struct {
	SegmentID int32  `json:"segment_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

// CreateComment handles POST /api/v1/comments
//
// Request body:
//
//	{"segment_id": 12, "content": "Great spot, waited 10 minutes."}
//
// Response 201: the created comment.
// Response 400: content is empty after trimming.
// Response 404: segment does not exist.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, ok := authUserID(c)
	if !ok {
		return
	}

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "segment_id and content are required"})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must not be empty"})
		return
	}

	if _, err := h.segments.GetSegment(c.Request.Context(), req.SegmentID); err != nil {
		writeServiceError(c, err, "failed to query segment")
		return
	}

	created, err := h.comments.CreateComment(c.Request.Context(), &storage.Comment{
		SegmentID: req.SegmentID,
		UserID:    userID,
		Content:   content,
	})
	if err != nil {
		writeServiceError(c, err, "failed to create comment")
		return
	}

	c.JSON(http.StatusCreated, toCommentJSON(created))
}

// DeleteComment handles DELETE /api/v1/comments/:id
//
// Only the author or an admin may delete a comment.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	cm, err := h.comments.GetComment(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "failed to query comment")
		return
	}
	if cm == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	}
	if cm.UserID != actor.UserID && !actor.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the author can delete this comment"})
		return
	}

	deleted, err := h.comments.DeleteComment(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "failed to delete comment")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
