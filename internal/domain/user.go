package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Address      string    `json:"address,omitempty"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserUpdate contiene los campos de perfil que se pueden modificar.
type UserUpdate struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
}

// Apply copia los campos de perfil sin tocar id, username ni hash.
func (u UserUpdate) Apply(user User) User {
	user.FirstName = u.FirstName
	user.LastName = u.LastName
	user.Email = u.Email
	user.Address = u.Address
	user.PhoneNumber = u.PhoneNumber
	return user
}
