package service

import (
	"gorm.io/gorm"

	"talentmarket_backend/internal/model"
	jwtutil "talentmarket_backend/pkg/utils/jwt"
)

// TokenService guards refresh-token rotation against concurrent refreshes
// with a compare-and-swap on the user row.
type TokenService struct {
	DB *gorm.DB
}

func NewTokenService(db *gorm.DB) *TokenService {
	return &TokenService{DB: db}
}

// IssueRefreshToken stores newToken only if the user's stored token still
// equals the value this caller read. Returns false when a concurrent refresh
// won the race; the caller must surface a conflict, not retry blindly.
// The previous token is blacklisted best-effort before the swap.
func (s *TokenService) IssueRefreshToken(user *model.User, newToken string) (bool, error) {
	if user.LastRefreshToken != "" {
		s.blacklist(user.LastRefreshToken)
	}

	res := s.DB.Model(&model.User{}).
		Where("id = ? AND last_refresh_token = ?", user.ID, user.LastRefreshToken).
		Update("last_refresh_token", newToken)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	user.LastRefreshToken = newToken
	return true, nil
}

// IsBlacklisted reports whether a refresh token was already rotated out.
func (s *TokenService) IsBlacklisted(token string) (bool, error) {
	var count int64
	err := s.DB.Model(&model.TokenBlacklist{}).
		Where("token_hash = ?", model.HashToken(token)).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// blacklist records the old token so it cannot be replayed. Expired or
// malformed tokens are skipped silently; there is nothing left to protect.
func (s *TokenService) blacklist(token string) {
	claims, err := jwtutil.ValidateToken(token)
	if err != nil {
		return
	}
	_ = s.DB.Create(&model.TokenBlacklist{
		TokenHash: model.HashToken(token),
		ExpiresAt: claims.ExpiresAt.Time,
	}).Error
}
