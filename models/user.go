package models

import "time"

// User roles
const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// User represents an owning principal (tenant account)
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	Role      string    `gorm:"size:32;not null;default:'user';index:idx_users_role" json:"role"`
	APIKey    string    `gorm:"size:64;not null;uniqueIndex:uk_users_api_key" json:"-"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}

// UserFilter provides filter fields for repository queries
type UserFilter struct {
	ID       *uint
	Email    *string
	Role     *string
	IsActive *bool
}
