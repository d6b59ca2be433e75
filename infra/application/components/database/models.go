package database

import "sync"

var (
	modelsMu sync.Mutex
	models   []interface{}
)

// RegisterModels adds gorm models to the AutoMigrate set. Call from init().
func RegisterModels(m ...interface{}) {
	modelsMu.Lock()
	models = append(models, m...)
	modelsMu.Unlock()
}

func registeredModels() []interface{} {
	modelsMu.Lock()
	defer modelsMu.Unlock()
	cp := make([]interface{}, len(models))
	copy(cp, models)
	return cp
}
