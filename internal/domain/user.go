package domain

import (
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

type User struct {
	UserID           string      `json:"user_id"`
	Email            string      `json:"email"`
	PasswordHash     string      `json:"password_hash"`
	FirstName        string      `json:"first_name"`
	LastName         string      `json:"last_name"`
	RegistrationDate time.Time   `json:"registration_date"`
	LastLogin        *time.Time  `json:"last_login"`
	IsActive         bool        `json:"is_active"`
	Preferences      Preferences `json:"preferences"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type Preferences struct {
	Language      string `json:"language"`
	Currency      string `json:"currency"`
	Notifications bool   `json:"notifications"`
}

func (u User) Record() store.Record {
	return store.Record{
		"user_id":               u.UserID,
		"email":                 u.Email,
		"password_hash":         u.PasswordHash,
		"first_name":            u.FirstName,
		"last_name":             u.LastName,
		"registration_date":     u.RegistrationDate,
		"last_login":            u.LastLogin,
		"is_active":             u.IsActive,
		"preferred_language":    u.Preferences.Language,
		"preferred_currency":    u.Preferences.Currency,
		"notifications_enabled": u.Preferences.Notifications,
		"created_at":            u.CreatedAt,
		"updated_at":            u.UpdatedAt,
	}
}

func UserFromRecord(r store.Record) User {
	return User{
		UserID:           r.String("user_id"),
		Email:            r.String("email"),
		PasswordHash:     r.String("password_hash"),
		FirstName:        r.String("first_name"),
		LastName:         r.String("last_name"),
		RegistrationDate: r.Time("registration_date"),
		LastLogin:        r.TimePtr("last_login"),
		IsActive:         r.Bool("is_active"),
		Preferences: Preferences{
			Language:      r.String("preferred_language"),
			Currency:      r.String("preferred_currency"),
			Notifications: r.Bool("notifications_enabled"),
		},
		CreatedAt: r.Time("created_at"),
		UpdatedAt: r.Time("updated_at"),
	}
}

type Demographics struct {
	DemographicID string    `json:"demographic_id"`
	UserID        string    `json:"user_id"`
	AgeRange      string    `json:"age_range"`
	Gender        string    `json:"gender"`
	IncomeBracket string    `json:"income_bracket"`
	Occupation    string    `json:"occupation"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (d Demographics) Record() store.Record {
	return store.Record{
		"demographic_id": d.DemographicID,
		"user_id":        d.UserID,
		"age_range":      d.AgeRange,
		"gender":         d.Gender,
		"income_bracket": d.IncomeBracket,
		"occupation":     d.Occupation,
		"created_at":     d.CreatedAt,
		"updated_at":     d.UpdatedAt,
	}
}

// AddressType is billing or shipping.
type AddressType string

const (
	AddressBilling  AddressType = "billing"
	AddressShipping AddressType = "shipping"
)

type Address struct {
	AddressID     string      `json:"address_id"`
	UserID        string      `json:"user_id"`
	AddressType   AddressType `json:"address_type"`
	StreetAddress string      `json:"street_address"`
	City          string      `json:"city"`
	State         string      `json:"state"`
	Country       string      `json:"country"`
	PostalCode    string      `json:"postal_code"`
	IsDefault     bool        `json:"is_default"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (a Address) Record() store.Record {
	return store.Record{
		"address_id":     a.AddressID,
		"user_id":        a.UserID,
		"address_type":   string(a.AddressType),
		"street_address": a.StreetAddress,
		"city":           a.City,
		"state":          a.State,
		"country":        a.Country,
		"postal_code":    a.PostalCode,
		"is_default":     a.IsDefault,
		"created_at":     a.CreatedAt,
		"updated_at":     a.UpdatedAt,
	}
}

func AddressFromRecord(r store.Record) Address {
	return Address{
		AddressID:     r.String("address_id"),
		UserID:        r.String("user_id"),
		AddressType:   AddressType(r.String("address_type")),
		StreetAddress: r.String("street_address"),
		City:          r.String("city"),
		State:         r.String("state"),
		Country:       r.String("country"),
		PostalCode:    r.String("postal_code"),
		IsDefault:     r.Bool("is_default"),
		CreatedAt:     r.Time("created_at"),
		UpdatedAt:     r.Time("updated_at"),
	}
}
