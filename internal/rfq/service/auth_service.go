package service

import (
	"context"
	"errors"
	"time"

	"github.com/c1767673917/wlxj/internal/middleware"
	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUsernameTaken      = errors.New("用户名已存在")
	ErrInvalidBusiness    = errors.New("无效的业务类型")
)

// AuthService 用户认证服务
type AuthService struct {
	users *repository.UserRepository

	secret       string
	issuer       string
	tokenExpire  time.Duration
	portalExpire time.Duration
}

func NewAuthService(users *repository.UserRepository, secret, issuer string, tokenExpire, portalExpire time.Duration) *AuthService {
	return &AuthService{
		users:        users,
		secret:       secret,
		issuer:       issuer,
		tokenExpire:  tokenExpire,
		portalExpire: portalExpire,
	}
}

// Register 注册新用户，密码bcrypt加密存储
func (s *AuthService) Register(ctx context.Context, username, password, businessType string) (*entity.User, error) {
	if !entity.ValidBusinessType(businessType) {
		return nil, ErrInvalidBusiness
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Username:     username,
		Password:     string(hashed),
		Role:         entity.RoleUser,
		BusinessType: businessType,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 校验凭据并签发JWT
func (s *AuthService) Login(ctx context.Context, username, password string) (*entity.User, string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GenerateToken 为用户签发HS256令牌
func (s *AuthService) GenerateToken(user *entity.User) (string, error) {
	now := time.Now()
	claims := middleware.UserClaims{
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
		BusinessType: user.BusinessType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpire)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// GeneratePortalToken 为供应商门户签发受限令牌
// 令牌绑定签发时的访问码，访问码重置后旧令牌随之失效
func (s *AuthService) GeneratePortalToken(supplier *entity.Supplier) (string, error) {
	now := time.Now()
	claims := middleware.PortalClaims{
		SupplierID: supplier.ID,
		AccessCode: supplier.AccessCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.portalExpire)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}
