package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinledger/internal/event"
	"coinledger/internal/model"
	"coinledger/internal/otp"
	"coinledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	base
	otpStore otp.Store
}

func NewAuthService(d Deps, store otp.Store) *AuthService {
	return &AuthService{
		base:     newBase(d, "auth"),
		otpStore: store,
	}
}

func resetKey(userID int64) string {
	return fmt.Sprintf("pwreset:%d", userID)
}

// VerifyPassword 校验用户密码，用户不存在与密码错误返回同一错误
func (s *AuthService) VerifyPassword(ctx context.Context, userID int64, password string) (*model.UserCredential, error) {
	return verifyPassword(ctx, s.credentialRepo, userID, password)
}

func verifyPassword(ctx context.Context, repo *repository.CredentialRepository, userID int64, password string) (*model.UserCredential, error) {
	cred, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if !cred.IsActive {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return cred, nil
}

// RequestPasswordReset 生成验证码写入 OTP 存储，邮件由通知端发送
func (s *AuthService) RequestPasswordReset(ctx context.Context, userID int64) error {
	cred, err := s.credentialRepo.GetByUserID(ctx, userID)
	if err != nil {
		return mapRepoErr(err, "user", userID)
	}
	if !cred.IsActive {
		return ErrAccountInactive
	}

	code, err := otp.Generate(s.cfg.Business.OTPLength)
	if err != nil {
		return fmt.Errorf("生成验证码失败: %w", err)
	}
	ttl := s.cfg.Business.OTPTTL()
	if err := s.otpStore.Put(ctx, resetKey(userID), code, ttl); err != nil {
		return fmt.Errorf("保存验证码失败: %w", err)
	}

	// outbox 与 Kafka 只见引用，验证码随 OTP 条目一起过期
	ref := uuid.NewString()
	deliveryKey := event.PasswordResetDeliveryKey(ref)
	if err := s.otpStore.Put(ctx, deliveryKey, code, ttl); err != nil {
		_ = s.otpStore.Delete(ctx, resetKey(userID))
		return fmt.Errorf("保存投递验证码失败: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.enqueue(ctx, tx, userID, event.PasswordResetRequested{
			DeliveryRef: ref,
			ExpiresAt:   time.Now().Add(ttl).UTC(),
		})
	})
	if err != nil {
		_ = s.otpStore.Delete(ctx, resetKey(userID))
		_ = s.otpStore.Delete(ctx, deliveryKey)
		return err
	}
	s.wake()

	s.log.Info("password reset requested", zap.Int64("user_id", userID))
	return nil
}

// ResetPassword 校验并消费验证码后更新密码
func (s *AuthService) ResetPassword(ctx context.Context, userID int64, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return invalidArg("密码至少 %d 位", minPasswordLength)
	}

	ok, err := s.otpStore.Verify(ctx, resetKey(userID), code)
	if err != nil {
		return fmt.Errorf("校验验证码失败: %w", err)
	}
	if !ok {
		return ErrInvalidOTP
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.Business.BcryptCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}
	if err := s.credentialRepo.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return mapRepoErr(err, "user", userID)
	}

	s.log.Info("password reset", zap.Int64("user_id", userID))
	return nil
}
