package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/kampuslab/kampus/core"
)

// Role is the closed set of user roles.
type Role string

// Roles
const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

var (
	Roles = []Role{RoleStudent, RoleLecturer, RoleAdmin}

	// RegistrationRoles are the roles one may pick when signing up.
	RegistrationRoles = []Role{RoleStudent, RoleLecturer}

	ErrInvalidRole = errors.New("invalid role")
)

// ParseRole returns the Role named s, or ErrInvalidRole.
func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	if !r.IsValid() {
		return "", errors.Wrapf(ErrInvalidRole, "%q", s)
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// UnmarshalText rejects unknown roles. An empty text leaves the role unset.
func (r *Role) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = ""
		return nil
	}
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Major        string    `json:"major"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool    { return u.Role == RoleAdmin }
func (u User) IsLecturer() bool { return u.Role == RoleLecturer }
func (u User) IsStudent() bool  { return u.Role == RoleStudent }

// IsStaff reports whether the user may manage courses and grades.
func (u User) IsStaff() bool { return u.IsLecturer() || u.IsAdmin() }

// CanReceiveGrades reports whether final grades may be computed for the user.
func (u User) CanReceiveGrades() bool {
	switch u.Role {
	case RoleStudent:
		return true
	case RoleLecturer, RoleAdmin:
		return false
	default:
		return false
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name,omitempty" validate:"required"`
	Email           string `json:"email,omitempty" validate:"required,email"`
	Major           string `json:"major,omitempty" validate:"omitempty,major"`
	Role            Role   `json:"role,omitempty" validate:"required,role"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Major = core.CleanString(nu.Major)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	if err := svc.CheckEmailDomain(nu.Email, nu.Role); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string  `json:"name,omitempty"`
	Email           string  `json:"email,omitempty" validate:"omitempty,email"`
	Major           *string `json:"major,omitempty" validate:"omitempty,major"`
	Role            Role    `json:"role,omitempty" validate:"omitempty,role"`
	IsActive        *bool   `json:"is_active,omitempty"`
	Password        string  `json:"password,omitempty" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm,omitempty" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Major != nil {
		major := core.CleanString(*uu.Major)
		uu.Major = &major
	}
	if uu.Role == "" {
		uu.Role = origUsr.Role
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Email != origUsr.Email || uu.Role != origUsr.Role {
		if err := svc.CheckEmailDomain(uu.Email, uu.Role); err != nil {
			return err
		}
	}
	return svc.CheckUniqueness(uu.Email, origUsr)
}

type QueryFilter struct {
	Search      string
	Roles       []Role
	IsActive    *bool
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single User, by ID or by Email.
type GetFilter struct {
	ID    string
	Email string
}
