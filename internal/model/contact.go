package model

import (
	"time"

	"github.com/google/uuid"
)

// Contact - запись о деловом контакте, которую покупают клиенты
type Contact struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"firstName" validate:"required"`
	LastName    string    `json:"lastName" validate:"required"`
	Email       string    `json:"email" validate:"required,email"`
	Phone       string    `json:"phone"`
	JobTitle    string    `json:"jobTitle"`
	CompanyName string    `json:"companyName"`
	Industry    string    `json:"industry"`
	Country     string    `json:"country"`
	City        string    `json:"city"`
	LinkedinURL string    `json:"linkedinUrl" validate:"omitempty,url"`
	UploadedBy  uuid.UUID `json:"uploadedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Company - запись о компании
type Company struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name" validate:"required"`
	Domain        string    `json:"domain" validate:"omitempty,fqdn"`
	Industry      string    `json:"industry"`
	SubIndustry   string    `json:"subIndustry"`
	EmployeeCount int       `json:"employeeCount" validate:"gte=0"`
	Country       string    `json:"country"`
	City          string    `json:"city"`
	Phone         string    `json:"phone"`
	UploadedBy    uuid.UUID `json:"uploadedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ImportBatch - пакет записей, загруженный администратором (поставщиком данных)
// приходит через кафку
type ImportBatch struct {
	BatchID    string    `json:"batch_id" validate:"required"`
	UploadedBy uuid.UUID `json:"uploaded_by" validate:"required"`
	FileName   string    `json:"file_name"`
	Contacts   []Contact `json:"contacts" validate:"dive"`
	Companies  []Company `json:"companies" validate:"dive"`
	CreatedAt  time.Time `json:"created_at" validate:"required"`
}

// Validate проверяет корректность пакета на основе тегов validate
func (b *ImportBatch) Validate() error {
	return validate.Struct(b)
}

// Empty сообщает, что в пакете нет ни одной записи
func (b *ImportBatch) Empty() bool {
	return len(b.Contacts) == 0 && len(b.Companies) == 0
}

// ContactFilter - фильтры поиска контактов
type ContactFilter struct {
	Search   string `json:"search"`
	Industry string `json:"industry"`
	Country  string `json:"country"`
	JobTitle string `json:"jobTitle"`
	PageRequest
}
