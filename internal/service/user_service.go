package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pm-system/internal/model"
	"pm-system/internal/repository"
	"pm-system/pkg/jwt"
	"pm-system/pkg/password"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username or email already registered")
)

// UserService 注册、登录与资料
type UserService struct {
	repo       *repository.UserRepository
	jwtService *jwt.JWTService
}

// NewUserService 创建UserService实例
func NewUserService(repo *repository.UserRepository, jwtService *jwt.JWTService) *UserService {
	return &UserService{repo: repo, jwtService: jwtService}
}

// Register 注册，成功后签发token
func (s *UserService) Register(ctx context.Context, username, email, plainPassword, nickname string) (*model.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || plainPassword == "" {
		return nil, "", ErrMissingCredentials
	}

	if _, err := s.repo.GetByUsernameOrEmail(ctx, username); err == nil {
		return nil, "", ErrUserExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, "", err
	}
	if _, err := s.repo.GetByUsernameOrEmail(ctx, email); err == nil {
		return nil, "", ErrUserExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, "", err
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, "", err
	}
	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Nickname:     strings.TrimSpace(nickname),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("创建用户失败: %w", err)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login 使用用户名或邮箱登录
func (s *UserService) Login(ctx context.Context, identifier, plainPassword string) (*model.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plainPassword == "" {
		return nil, "", ErrMissingCredentials
	}
	u, err := s.repo.GetByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !password.Verify(plainPassword, u.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Profile 查询用户资料
func (s *UserService) Profile(ctx context.Context, id uint) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) issue(u *model.User) (string, error) {
	return s.jwtService.GenerateToken(u.ID, map[string]interface{}{"username": u.Username})
}
