package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	RoleStaff      = "staff"
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
)

type UserClaims struct {
	UserID uint     `json:"user_id"`
	Roles  []string `json:"roles"`
}

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(c *gin.Context) *UserClaims {
	user, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil
	}
	if userClaims, ok := user.(*UserClaims); ok {
		return userClaims
	}
	return nil
}

func (u *UserClaims) HasRole(roles ...string) bool {
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Actor identifies the caller in activity logs and review fields.
func Actor(c *gin.Context) string {
	user := GetUser(c)
	if user == nil {
		return ""
	}
	return strconv.FormatUint(uint64(user.UserID), 10)
}
