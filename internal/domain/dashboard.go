package domain

// DashboardOverview — каноничный снимок состояния контрольной башни.
// Собирается из двух источников: полный REST-снапшот и частичные push-обновления.
// После первого успешного мержа структура всегда полностью заполнена.
type DashboardOverview struct {
	Orders          OrdersSummary    `json:"orders_summary"`
	Inventory       InventorySummary `json:"inventory_summary"`
	VehiclesSummary VehiclesSummary  `json:"vehicles_summary"`
	Simulation      SimulationStatus `json:"simulation"`
	Vehicles        []VehicleDetail  `json:"vehicles"`
	LowStockDetails []LowStockDetail `json:"low_stock_details"`
	RecentAnomalies int              `json:"recent_anomalies"`
}

type OrdersSummary struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"` // HIGH (>70), MEDIUM (40~70), LOW (<40)
}

type InventorySummary struct {
	LowStockCount int `json:"low_stock_count"` // SKU на уровне safety stock или ниже
	TotalSKUs     int `json:"total_skus"`
}

type VehiclesSummary struct {
	ByStatus map[string]int `json:"by_status"`
}

type VehicleDetail struct {
	VehicleCode string  `json:"vehicle_code"`
	VehicleType string  `json:"vehicle_type"`
	Status      string  `json:"status"`
	Destination *string `json:"destination"`
	FuelLevel   float64 `json:"fuel_level"`
	SpeedKmh    float64 `json:"speed_kmh"`
}

type LowStockDetail struct {
	WarehouseCode string `json:"warehouse_code"`
	ProductCode   string `json:"product_code"`
	ProductName   string `json:"product_name"`
	AvailableQty  int    `json:"available_qty"`
	SafetyStock   int    `json:"safety_stock"`
}

type SimulationStatus struct {
	Speed     int  `json:"speed"`
	IsRunning bool `json:"is_running"`
}
