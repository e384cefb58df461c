package models

import (
	"time"
)

// Role is the privilege level of a wiki account.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Username     string    `json:"username" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "wiki_users" }

// Admin is an account of the administrative surface. It is unrelated to
// wiki users and logs in through its own session realm.
type Admin struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Admin) TableName() string { return "admin" }

// Session realms. A token issued in one realm never resolves in the other.
const (
	RealmWiki  = "wiki"
	RealmAdmin = "admin"
)

type Session struct {
	ID        string    `json:"-" gorm:"primaryKey;type:varchar(64)"`
	Realm     string    `json:"realm" gorm:"type:varchar(10);not null;index"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

func (Session) TableName() string { return "sessions" }

type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Realm      string    `json:"realm" gorm:"type:varchar(10)"`
	ActorID    uint      `json:"actor_id" gorm:"index"`
	Action     string    `json:"action" gorm:"type:varchar(50);not null"` // login, logout, approve, reject, promote, demote, invite, delete
	Resource   string    `json:"resource" gorm:"type:varchar(100)"`       // submission, page, moderator, invite
	ResourceID string    `json:"resource_id" gorm:"type:varchar(255)"`
	Details    string    `json:"details" gorm:"type:text"`
	IPAddress  string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent  string    `json:"user_agent" gorm:"type:varchar(500)"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}
