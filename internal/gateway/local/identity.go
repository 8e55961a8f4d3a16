package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/netdevconsole/netdevconsole/internal/database"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// IdentityService 本地账号与会话
type IdentityService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *IdentityService) createUser(ctx context.Context, email, password string, confirmed bool) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	u := model.AuthUser{
		ID:             newID(""),
		Email:          email,
		PasswordHash:   string(hash),
		EmailConfirmed: confirmed,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return "", gateway.ErrUserExists
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	return u.ID, nil
}

// SignUp 注册账号，本地提供方无邮件确认流程
func (s *IdentityService) SignUp(ctx context.Context, email, password string) (string, error) {
	return s.createUser(ctx, email, password, true)
}

// SignIn 校验密码并创建会话
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	var u model.AuthUser
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gateway.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, gateway.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	sess := model.AuthSession{
		ID:        newID(""),
		TokenHash: hashToken(token),
		UserID:    u.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &gateway.Session{AccessToken: token, UserID: u.ID, ExpiresAt: sess.ExpiresAt}, nil
}

// SignOut 删除会话，会话不存在时视为成功
func (s *IdentityService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return s.db.WithContext(ctx).Where("token_hash = ?", hashToken(accessToken)).Delete(&model.AuthSession{}).Error
}

// GetSession 查找会话，过期会话会被顺带清理
func (s *IdentityService) GetSession(ctx context.Context, accessToken string) (*gateway.Session, error) {
	if accessToken == "" {
		return nil, gateway.ErrSessionNotFound
	}
	var sess model.AuthSession
	err := s.db.WithContext(ctx).Where("token_hash = ?", hashToken(accessToken)).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gateway.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	out := &gateway.Session{AccessToken: accessToken, UserID: sess.UserID, ExpiresAt: sess.ExpiresAt}
	if out.Expired(s.now()) {
		_ = s.db.WithContext(ctx).Delete(&model.AuthSession{}, "id = ?", sess.ID).Error
		return nil, gateway.ErrSessionExpired
	}
	return out, nil
}

// GetUser 返回会话对应的账号
func (s *IdentityService) GetUser(ctx context.Context, accessToken string) (*gateway.User, error) {
	sess, err := s.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return s.AdminGetUserByID(ctx, sess.UserID)
}

// AdminCreateUser 管理员创建账号
func (s *IdentityService) AdminCreateUser(ctx context.Context, email, password string, emailConfirmed bool) (string, error) {
	return s.createUser(ctx, email, password, emailConfirmed)
}

// AdminDeleteUser 删除账号及其全部会话
func (s *IdentityService) AdminDeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.AuthSession{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.AuthUser{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gateway.ErrNotFound
		}
		return nil
	})
}

// AdminListUsers 列出全部账号
func (s *IdentityService) AdminListUsers(ctx context.Context) ([]gateway.User, error) {
	var rows []model.AuthUser
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]gateway.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, toUser(r))
	}
	return users, nil
}

// AdminGetUserByID 按 ID 获取账号
func (s *IdentityService) AdminGetUserByID(ctx context.Context, id string) (*gateway.User, error) {
	var u model.AuthUser
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := toUser(u)
	return &out, nil
}

func toUser(u model.AuthUser) gateway.User {
	return gateway.User{ID: u.ID, Email: u.Email, EmailConfirmed: u.EmailConfirmed, CreatedAt: u.CreatedAt}
}
