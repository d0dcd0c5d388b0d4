package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:36;not null;index" json:"organization_id"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	Email          string    `gorm:"size:100;not null;unique" json:"email"`
	Password       string    `gorm:"size:255;not null" json:"-"`
	Role           UserRole  `gorm:"size:10;not null;default:STAFF" json:"role"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string   `json:"name" validate:"required,max=100"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN LAWYER STAFF"`
}

type LoginInfo struct {
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expires_at"`
	UserId           int       `json:"user_id"`
	Name             string    `json:"name"`
	Role             UserRole  `json:"role"`
	OrganizationId   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	Timezone         string    `json:"timezone"`
}

/*
caches:
	User:$id
	RevokedToken:$jti
*/

func revokedTokenKey(jti string) string {
	return "RevokedToken:" + jti
}

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", utils.ErrUnauthorized)

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errInvalidCredentials
	}

	// no tenant is known before the user is found
	lookupCtx := utils.SetSkipTenantScopeInContext(ctx, true)
	var user User
	err := config.GetDB().WithContext(lookupCtx).Where("email = ?", email).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, fmt.Errorf("%w: user is disabled", utils.ErrForbidden)
	}

	org, err := GetOrganizationById(ctx, user.OrganizationId)
	if err != nil {
		return nil, err
	}
	return issueLogin(&user, org)
}

func issueLogin(user *User, org *Organization) (*LoginInfo, error) {
	token, err := utils.JwtGenerate(user.ID, user.OrganizationId, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &LoginInfo{
		Token:            token,
		ExpiresAt:        time.Now().Add(utils.TokenLifespan()),
		UserId:           user.ID,
		Name:             user.Name,
		Role:             user.Role,
		OrganizationId:   org.ID,
		OrganizationName: org.Name,
		Timezone:         org.Timezone,
	}, nil
}

// Logout revokes the current token until it would have expired anyway.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, utils.ErrUnauthorized
	}
	claims, err := utils.ParseClaims(token)
	if err != nil {
		return false, err
	}
	ttl, err := utils.TokenExpiry(claims)
	if err != nil {
		return false, err
	}
	if ttl <= 0 {
		return true, nil
	}
	if err := config.SetRedisValue(revokedTokenKey(claims.Id), "1", ttl); err != nil {
		return false, err
	}
	return true, nil
}

// IsTokenRevoked reports whether jti was logged out. Without Redis nothing is revoked.
func IsTokenRevoked(jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, exists, err := config.GetRedisValue(revokedTokenKey(jti))
	return exists, err
}

func (input *NewUser) validate(ctx context.Context) error {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	var count int64
	if err := config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Model(&User{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: email %s is already registered", utils.ErrConflict, input.Email)
	}
	return nil
}

// CreateUser adds a member to the caller's organization. Admins only.
func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	if !isAdmin(ctx) {
		return nil, utils.ErrForbidden
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Name:     input.Name,
		Email:    input.Email,
		Password: hashed,
		Role:     input.Role,
		IsActive: utils.NewTrue(),
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		if utils.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w: email %s is already registered", utils.ErrConflict, input.Email)
		}
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionCreate, EntityTypeUser, user.ID, nil, user, "user "+user.Name+" created"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ToggleActiveUser enables or disables a member. An admin cannot disable themselves.
func ToggleActiveUser(ctx context.Context, id int, isActive bool) (*User, error) {
	if !isAdmin(ctx) {
		return nil, utils.ErrForbidden
	}
	if self, _ := utils.GetUserIdFromContext(ctx); self == id && !isActive {
		return nil, fmt.Errorf("%w: cannot disable yourself", utils.ErrInvalidState)
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	user, err := utils.FetchModelForUpdate[User](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	before := *user
	user.IsActive = &isActive
	if err := tx.Model(user).Update("is_active", isActive).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionUpdate, EntityTypeUser, user.ID, before, user, "user active flag changed"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[User](id); err != nil {
		config.LogError(config.GetLogger(), "User", "ToggleActiveUser", "remove redis", id, err)
	}
	return user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchModel[User](ctx, id)
}

func GetUsers(ctx context.Context, role *UserRole) ([]*User, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx)
	if role != nil && *role != "" {
		dbCtx = dbCtx.Where("role = ?", *role)
	}
	var results []*User
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetSessionUser resolves the caller, served from Redis when cached.
func GetSessionUser(ctx context.Context) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, utils.ErrUnauthorized
	}
	organizationId, err := utils.RequireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := utils.RetrieveRedis[User](userId)
	if err != nil {
		config.LogError(config.GetLogger(), "User", "GetSessionUser", "redis", userId, err)
	}
	if cached != nil && cached.OrganizationId == organizationId {
		return cached, nil
	}
	user, err := utils.FetchModel[User](ctx, userId)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis(user, userId); err != nil {
		config.LogError(config.GetLogger(), "User", "GetSessionUser", "store redis", userId, err)
	}
	return user, nil
}

// usersWithRole lists active users of one role inside tx's organization.
func usersWithRole(tx *gorm.DB, role UserRole) ([]User, error) {
	var users []User
	err := tx.Where("role = ? AND is_active = ?", role, true).Find(&users).Error
	return users, err
}
