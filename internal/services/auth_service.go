package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/axpect/staffhub/internal/models"
	"github.com/axpect/staffhub/internal/repositories"
	"github.com/axpect/staffhub/middleware/jwt"
)

var ErrInvalidCredentials = errors.New("邮箱或密码错误")

// AuthService 登录换取网关令牌
type AuthService struct {
	Users  *repositories.UserRepository
	Tokens *jwt.TokenManager
}

func NewAuthService(users *repositories.UserRepository, tokens *jwt.TokenManager) *AuthService {
	return &AuthService{Users: users, Tokens: tokens}
}

// UserView 登录响应里的用户视图
type UserView struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Login 校验邮箱密码并签发 JWT
// 用户不存在与密码错误返回同一个错误，不泄露账号是否存在
func (s *AuthService) Login(email, password string) (string, *UserView, error) {
	user, err := s.Users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.Tokens.GenerateToken(user.ID, user.DisplayName(), user.Role)
	if err != nil {
		return "", nil, err
	}

	return token, userView(user), nil
}

func userView(user *models.User) *UserView {
	return &UserView{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.DisplayName(),
		Role:      user.Role,
		AvatarURL: user.AvatarURL,
	}
}

// HashPassword 注册与种子数据使用的密码哈希
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
