package models

// Warehouse запись реестра складов. Реестр синхронизируется отдельно,
// здесь он только читается
type Warehouse struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
