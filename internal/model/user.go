// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types shared by the store, service,
// and handler layers.
package model

import "time"

// User roles. Admins may publish, unpublish, roll back, and manage users;
// editors may only save drafts and manage submissions.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// User represents an admin backend account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanPublish returns true if the user may publish, unpublish, or roll back
// content. Draft editing is open to any authenticated role.
func (u *User) CanPublish() bool {
	return u.Role == RoleAdmin
}
