package models

import "time"

type User struct {
	ID        int       `json:"id" example:"1"`
	Username  string    `json:"username" example:"alice"`
	Email     string    `json:"email" example:"alice@example.com"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportedCustomer is one row of the admin Excel upload.
type ImportedCustomer struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Age     string `json:"age"`
	Pincode string `json:"pincode"`
}
