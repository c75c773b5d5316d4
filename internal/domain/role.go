// Package domain contains entities without logic, just meta-data
package domain

import "errors"

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher:
		return Role(s), nil
	default:
		return "", ErrUnknownRole
	}
}
