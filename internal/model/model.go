package model

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Role определяет роль пользователя в системе
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"    // поставщик данных
	RoleCustomer   Role = "customer" // покупатель
)

// Valid сообщает, известна ли роль
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleCustomer:
		return true
	}
	return false
}

// PageRequest - параметры постраничной выборки
type PageRequest struct {
	Page  int `json:"page" validate:"gte=1"`
	Limit int `json:"limit" validate:"gte=1,lte=100"`
}

// DefaultPageLimit используется, если клиент не передал limit
const DefaultPageLimit = 10

// Normalize подставляет значения по умолчанию вместо нулевых
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// Offset возвращает смещение для SQL-запроса
func (p PageRequest) Offset() uint64 {
	return uint64((p.Page - 1) * p.Limit)
}

// Page - страница результатов с общим количеством записей
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPage собирает страницу и считает количество страниц
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Limit > 0 {
		pages = (total + req.Limit - 1) / req.Limit
	}
	return Page[T]{Items: items, Page: req.Page, Limit: req.Limit, Total: total, TotalPages: pages}
}
