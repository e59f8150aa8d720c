package model

// AutoMigrateに渡す順（FKの親から）
func All() []interface{} {
	return []interface{}{
		&User{},
		&Product{},
		&Order{},
		&PaymentRequest{},
		&AuditTrail{},
	}
}
