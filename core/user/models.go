package user

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core"
)

// Roles, as sent by the stages API
const (
	RoleAdmin     = "ADMIN"
	RoleEncadrant = "ENCADRANT"
	RoleEtudiant  = "ETUDIANT"
)

var ErrAuthenticationFailed = errors.New("authentication failed")

type User struct {
	ID     int64  `json:"id"`
	Nom    string `json:"nom,omitempty"`
	Prenom string `json:"prenom,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// Key identifies the User as a notification recipient.
func (u User) Key() string {
	if u.ID == 0 {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

func (u User) FullName() string {
	return strings.TrimSpace(u.Prenom + " " + u.Nom)
}

func (u User) HasRole(role string) bool {
	return strings.EqualFold(strings.TrimSpace(u.Role), role)
}

func (u User) IsAdmin() bool     { return u.HasRole(RoleAdmin) }
func (u User) IsEncadrant() bool { return u.HasRole(RoleEncadrant) }
func (u User) IsEtudiant() bool  { return u.HasRole(RoleEtudiant) }

// Theme is the palette applied to the whole page for the User's role.
func (u User) Theme() string {
	switch {
	case u.IsEtudiant():
		return "student"
	case u.IsAdmin():
		return "admin"
	case u.IsEncadrant():
		return "encadrant"
	}
	return ""
}

// HomePath is the landing screen of the User's role.
func (u User) HomePath() string {
	switch {
	case u.IsAdmin():
		return "/admin/planifications"
	case u.IsEncadrant():
		return "/encadrant/soutenances"
	case u.IsEtudiant():
		return "/etudiant/soutenances"
	}
	return "/login"
}

// Credentials are exchanged against a Session by the stages API.
type Credentials struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Username = core.CleanString(c.Username, true /* lower */)
	return validate.Struct(c)
}

// Session is an authenticated User along with the bearer token of the stages API.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
}
