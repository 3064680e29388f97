// Package auth はストアトークンによるセッションの確立と破棄を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // expを持たないトークンのセッション有効期間（秒）
}

// LoginRequest はセッション確立に必要な情報。
// ストアのログインで発行済みのBearerトークンと、その利用者を表す。
type LoginRequest struct {
	StoreToken string
	UserID     string
	// Role は省略可能。空の場合はトークンのroleクレームを使用する。
	Role model.Role
}

// storeClaims はストアトークンから読み取るクレーム。
type storeClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Service はセッションに関するビジネスロジックを提供する。
type Service struct {
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	parser      *jwt.Parser
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(sessionRepo repository.SessionRepository, config ServiceConfig) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		config:      config,
		parser:      jwt.NewParser(),
		now:         time.Now,
	}
}

// Login はストアトークンを検査してセッションを発行する。
// トークンの署名はストアが検証するため、ここではexpとroleの読み取りのみを行う。
// expが過去のトークン、JWTとして解釈できないトークン、未定義のロールは拒否する。
func (s *Service) Login(ctx context.Context, req LoginRequest) (*model.Session, error) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.StoreToken), "Bearer "))
	if token == "" {
		return nil, model.NewInvalidTokenError("トークンが指定されていません")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, model.NewInvalidRequestError("user_id は必須です")
	}

	var claims storeClaims
	if _, _, err := s.parser.ParseUnverified(token, &claims); err != nil {
		return nil, model.NewInvalidTokenError("トークンを解析できません")
	}

	role := req.Role
	if role == "" {
		role = model.Role(strings.ToUpper(claims.Role))
	}
	if !role.Valid() {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("未定義のロールです: %q", role))
	}

	now := s.now()
	expiresAt := now.Add(time.Duration(s.config.SessionMaxAge) * time.Second)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if !expiresAt.After(now) {
		return nil, model.NewInvalidTokenError("トークンの有効期限が切れています")
	}

	session := &model.Session{
		ID:         uuid.New().String(),
		UserID:     strings.TrimSpace(req.UserID),
		Role:       role,
		StoreToken: token,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("session established",
		slog.String("user_id", session.UserID),
		slog.String("role", string(session.Role)),
		slog.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("session closed", slog.String("session_id", sessionID))
	return nil
}

// CurrentSession はセッションIDから有効なセッションを取得する。
// 存在しないか期限切れの場合はSESSION_EXPIREDエラーを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, model.NewSessionExpiredError()
	}
	return session, nil
}
