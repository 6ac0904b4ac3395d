package model

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLog - запись журнала действий пользователя
type ActivityLog struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// действия, которые пишутся в журнал
const (
	ActionImport          = "import"
	ActionOrderCreated    = "order_created"
	ActionPaymentFinished = "payment_finalized"
)

// DashboardSummary - сводка для главной страницы панели управления
type DashboardSummary struct {
	ContactsCount   int           `json:"contactsCount"`
	CompaniesCount  int           `json:"companiesCount"`
	AdminUsersCount int           `json:"adminUsersCount"`
	LastImportDate  *time.Time    `json:"lastImportDate"`
	ActivityLogs    []ActivityLog `json:"activityLogs"`
}
