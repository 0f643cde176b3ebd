package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserStatus represents the status of a user
type UserStatus string

const (
	UserStatusActive      UserStatus = "active"      // Normal active status
	UserStatusLocked      UserStatus = "locked"      // Locked due to failed attempts
	UserStatusDeactivated UserStatus = "deactivated" // Manually deactivated
)

// Login lockout policy
const (
	MaxFailedAttempts   = 5
	DefaultLockDuration = 15 * time.Minute
)

// bcryptCost is a variable so tests can lower it
var bcryptCost = 12

// bcrypt ignores input past 72 bytes and newer versions reject it
const maxPasswordBytes = 72

var (
	usernameRegex  = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	hasLetterRegex = regexp.MustCompile(`[a-zA-Z]`)
	hasDigitRegex  = regexp.MustCompile(`[0-9]`)
)

// User represents an account that can sign in to the CRM
type User struct {
	shared.BaseAggregateRoot
	Username          string
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	Role              Role
	Status            UserStatus
	FailedAttempts    int
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	LastLoginIP       string
	PasswordChangedAt *time.Time
}

// NewUser creates an active user with the given role
func NewUser(username, email, password string, role Role) (*User, error) {
	username = NormalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("INVALID_ROLE", "Invalid role: "+string(role))
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	passwordHash, err := hashPassword(password)
	if err != nil {
		return nil, shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}

	now := time.Now()
	user := &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Username:          username,
		Email:             email,
		PasswordHash:      passwordHash,
		Role:              role,
		Status:            UserStatusActive,
		PasswordChangedAt: &now,
	}
	user.AddDomainEvent(NewUserCreatedEvent(user))
	return user, nil
}

// NormalizeUsername lower-cases and trims a username
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FullName returns "First Last", or the username when no name is set
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// SetName sets first and last name
func (u *User) SetName(firstName, lastName string, by uuid.UUID) error {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if len(firstName) > 100 || len(lastName) > 100 {
		return shared.NewDomainError("INVALID_NAME", "Names cannot exceed 100 characters")
	}
	u.FirstName = firstName
	u.LastName = lastName
	u.MarkModified(by)
	return nil
}

// ChangePassword changes the user's password after checking the current one
func (u *User) ChangePassword(oldPassword, newPassword string) error {
	if !u.VerifyPassword(oldPassword) {
		return shared.NewDomainError("INVALID_PASSWORD", "Current password is incorrect")
	}
	if oldPassword == newPassword {
		return shared.NewDomainError("INVALID_PASSWORD", "New password must differ from the current password")
	}
	return u.SetPassword(newPassword, u.ID)
}

// SetPassword sets a new password without checking the old one
func (u *User) SetPassword(newPassword string, by uuid.UUID) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}

	now := time.Now()
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &now
	u.MarkModified(by)
	u.AddDomainEvent(NewUserPasswordChangedEvent(u))
	return nil
}

// VerifyPassword verifies if the provided password matches
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// ChangeRole assigns a new role
func (u *User) ChangeRole(role Role, by uuid.UUID) error {
	if !role.IsValid() {
		return shared.NewDomainError("INVALID_ROLE", "Invalid role: "+string(role))
	}
	if u.Role == role {
		return shared.NewDomainError(shared.CodeInvalidState, "User already has role "+string(role))
	}
	old := u.Role
	u.Role = role
	u.MarkModified(by)
	u.AddDomainEvent(NewUserRoleChangedEvent(u, old))
	return nil
}

// Activate activates the user
func (u *User) Activate(by uuid.UUID) error {
	if u.Status == UserStatusActive {
		return shared.NewDomainError(shared.CodeInvalidState, "User is already active")
	}
	u.setStatus(UserStatusActive, by)
	return nil
}

// Deactivate deactivates the user
func (u *User) Deactivate(by uuid.UUID) error {
	if u.Status == UserStatusDeactivated {
		return shared.NewDomainError(shared.CodeInvalidState, "User is already deactivated")
	}
	u.setStatus(UserStatusDeactivated, by)
	return nil
}

// Lock locks the user account. A zero duration locks until unlocked.
func (u *User) Lock(duration time.Duration) error {
	if u.Status == UserStatusDeactivated {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot lock a deactivated user")
	}
	u.LockedUntil = nil
	if duration > 0 {
		lockedUntil := time.Now().Add(duration)
		u.LockedUntil = &lockedUntil
	}
	u.setStatus(UserStatusLocked, uuid.Nil)
	return nil
}

// Unlock unlocks the user account
func (u *User) Unlock(by uuid.UUID) error {
	if u.Status != UserStatusLocked {
		return shared.NewDomainError(shared.CodeInvalidState, "User is not locked")
	}
	u.setStatus(UserStatusActive, by)
	return nil
}

func (u *User) setStatus(status UserStatus, by uuid.UUID) {
	old := u.Status
	u.Status = status
	if status != UserStatusLocked {
		u.FailedAttempts = 0
		u.LockedUntil = nil
	}
	u.MarkModified(by)
	u.AddDomainEvent(NewUserStatusChangedEvent(u, old, status))
}

// RecordLoginSuccess records a successful login and clears an expired lock
func (u *User) RecordLoginSuccess(ip string) {
	now := time.Now()
	u.LastLoginAt = &now
	u.LastLoginIP = ip
	u.FailedAttempts = 0
	if u.Status == UserStatusLocked {
		u.Status = UserStatusActive
		u.LockedUntil = nil
	}
	u.Touch(uuid.Nil)
}

// RecordLoginFailure records a failed login attempt. An expired lock starts
// a fresh count. Returns true if the account was locked as a result.
func (u *User) RecordLoginFailure(maxAttempts int, lockDuration time.Duration) bool {
	if u.Status == UserStatusLocked && !u.IsLocked() {
		u.Status = UserStatusActive
		u.LockedUntil = nil
		u.FailedAttempts = 0
	}
	u.FailedAttempts++
	u.Touch(uuid.Nil)

	if u.FailedAttempts >= maxAttempts {
		return u.Lock(lockDuration) == nil
	}
	return false
}

// IsActive returns true if user is active
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsLocked returns true while a lock is in force
func (u *User) IsLocked() bool {
	if u.Status != UserStatusLocked {
		return false
	}
	if u.LockedUntil != nil && time.Now().After(*u.LockedUntil) {
		return false
	}
	return true
}

// IsDeactivated returns true if user is deactivated
func (u *User) IsDeactivated() bool {
	return u.Status == UserStatusDeactivated
}

// CanLogin returns true if user can login
func (u *User) CanLogin() bool {
	return !u.IsDeactivated() && !u.IsLocked()
}

// Delete soft deletes the user
func (u *User) Delete(by uuid.UUID) error {
	return u.MarkDeleted(by)
}

func validateUsername(username string) error {
	if username == "" {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if len(username) < 3 {
		return shared.NewDomainError("INVALID_USERNAME", "Username must be at least 3 characters")
	}
	if len(username) > 100 {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot exceed 100 characters")
	}
	if !usernameRegex.MatchString(username) {
		return shared.NewDomainError("INVALID_USERNAME", "Username can only contain letters, numbers, underscores, hyphens, and dots")
	}
	return nil
}

// ValidatePassword checks the password policy
func ValidatePassword(password string) error {
	return validatePassword(password)
}

func validatePassword(password string) error {
	if password == "" {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot be empty")
	}
	if len(password) < 8 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot exceed 72 bytes")
	}
	if !hasLetterRegex.MatchString(password) || !hasDigitRegex.MatchString(password) {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must contain at least one letter and one number")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	if len(email) > 200 {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}
	if !emailRegex.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
