// Package password реализует хеширование и проверку паролей пользователей.
//
// Используется bcrypt с фиксированной стоимостью Cost: медленная соленая
// функция, хеш которой не совпадает с исходным паролем.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost — стоимость bcrypt для новых хешей.
const Cost = 12

// MaxBytes — сколько байт пароля учитывает bcrypt. Хвост длиннее отбрасывается.
const MaxBytes = 72

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > MaxBytes {
		b = b[:MaxBytes]
	}
	return b
}

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword(truncate(password), Cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), truncate(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
