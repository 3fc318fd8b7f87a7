package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/axpect/staffhub/internal/repositories"
	"github.com/axpect/staffhub/internal/services"
)

type GroupHandler struct {
	ChatService *services.ChatService
}

func NewGroupHandler(chatService *services.ChatService) *GroupHandler {
	return &GroupHandler{ChatService: chatService}
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return 0, false
	}
	return userID.(uint), true
}

func groupParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("group_id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的群组 ID"})
		return 0, false
	}
	return uint(id), true
}

// CreateGroup 创建群组，创建者自动成为群管理员
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Kind        string `json:"kind"`
		Description string `json:"description"`
		MaxMembers  int    `json:"max_members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	group, err := h.ChatService.CreateGroup(userID, req.Name, req.Kind, req.Description, req.MaxMembers)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, group)
}

// CreateDirect 建立或复用与指定用户的私聊
func (h *GroupHandler) CreateDirect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	group, err := h.ChatService.CreateDirect(userID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrDirectPairNeeded):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repositories.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, group)
}

// Join 加入群组，重复加入幂等返回成功
func (h *GroupHandler) Join(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	if err := h.ChatService.Join(groupID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGroupNotFound), errors.Is(err, repositories.ErrGroupInactive):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, repositories.ErrGroupFull):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

// MyGroups 当前用户的群组列表，带未读数
func (h *GroupHandler) MyGroups(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	groups, err := h.ChatService.MyGroups(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// History 群组历史消息，按创建顺序返回
func (h *GroupHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.ChatService.History(userID, groupID, limit, offset)
	if err != nil {
		if errors.Is(err, services.ErrNotMember) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// MarkRead 批量已读，message_id 为 0 或缺省表示读完全群
func (h *GroupHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	var req struct {
		MessageID int64 `json:"message_id"`
	}
	// 空请求体等同读完全群
	_ = c.ShouldBindJSON(&req)

	if err := h.ChatService.MarkRead(userID, groupID, req.MessageID); err != nil {
		if errors.Is(err, services.ErrNotMember) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
