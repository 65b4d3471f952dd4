package model

import "time"

// Role names stored in users.role and carried in the access token.
const (
    RoleAdmin    = "ADMIN"
    RoleCustomer = "CUSTOMER"
)

// User represents an application user record as stored in the
// `users` table.  Admins manage the catalog; customers browse and
// book.  Only the bcrypt hash of the password is stored.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or CUSTOMER.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}
