// Package models содержит доменные модели сервиса Health Map: пользователей,
// анкеты, ответы, результаты оценки и коммерческие записи.
package models

import "time"

// User представляет зарегистрированного пользователя.
type User struct {
	ID            string     `json:"id"`                      // Непрозрачный уникальный идентификатор
	Name          string     `json:"name"`                    // Имя, может быть пустым
	Email         string     `json:"email"`                   // Электронная почта в нижнем регистре
	EmailVerified *time.Time `json:"emailVerified,omitempty"` // Дата подтверждения почты
	Image         string     `json:"image"`
	PasswordHash  string     `json:"-"` // bcrypt-хэш, никогда не отдается клиенту
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Profile хранит демографические и медицинские данные пользователя.
// У пользователя не больше одного профиля.
type Profile struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	FirstName             string     `json:"firstName"`
	LastName              string     `json:"lastName"`
	DateOfBirth           *time.Time `json:"dateOfBirth,omitempty"`
	Gender                string     `json:"gender"`
	Height                *int       `json:"height,omitempty"` // см
	Weight                *int       `json:"weight,omitempty"` // кг
	ActivityLevel         string     `json:"activityLevel"`
	MedicalConditions     string     `json:"medicalConditions"`
	Allergies             string     `json:"allergies"`
	Medications           string     `json:"medications"`
	EmergencyContactName  string     `json:"emergencyContactName"`
	EmergencyContactPhone string     `json:"emergencyContactPhone"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// ProfileInput — частичный набор полей профиля при создании.
type ProfileInput struct {
	FirstName             string     `json:"firstName"`
	LastName              string     `json:"lastName"`
	DateOfBirth           *time.Time `json:"dateOfBirth"`
	Gender                string     `json:"gender"`
	Height                *int       `json:"height" validate:"omitempty,min=30,max=300"`
	Weight                *int       `json:"weight" validate:"omitempty,min=2,max=500"`
	ActivityLevel         string     `json:"activityLevel"`
	MedicalConditions     string     `json:"medicalConditions"`
	Allergies             string     `json:"allergies"`
	Medications           string     `json:"medications"`
	EmergencyContactName  string     `json:"emergencyContactName"`
	EmergencyContactPhone string     `json:"emergencyContactPhone"`
}

// UserWithProfile — пользователь вместе с необязательным профилем.
type UserWithProfile struct {
	User
	Profile *Profile `json:"profile,omitempty"`
}
