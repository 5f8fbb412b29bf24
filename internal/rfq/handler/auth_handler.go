package handler

import (
	"errors"

	"github.com/c1767673917/wlxj/internal/rfq/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler 用户认证接口
type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type registerRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=50"`
	Password     string `json:"password" binding:"required,min=6,max=72"`
	BusinessType string `json:"business_type" binding:"required"`
}

// Register 注册新用户
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Username, req.Password, req.BusinessType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			Conflict(c, err.Error())
		case errors.Is(err, service.ErrInvalidBusiness):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "注册失败")
		}
		return
	}

	Created(c, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"business_type": user.BusinessType,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录换取令牌
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, token, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			Error(c, 40100, err.Error())
			return
		}
		InternalError(c, "登录失败")
		return
	}

	Success(c, gin.H{
		"token": token,
		"user": gin.H{
			"id":            user.ID,
			"username":      user.Username,
			"role":          user.Role,
			"business_type": user.BusinessType,
		},
	})
}

// Me 当前登录用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	username, _ := c.Get("user_name")
	role, _ := c.Get("role")
	businessType, _ := c.Get("business_type")

	Success(c, gin.H{
		"id":            GetUserID(c),
		"username":      username,
		"role":          role,
		"business_type": businessType,
	})
}
