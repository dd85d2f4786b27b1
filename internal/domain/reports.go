package domain

// LowBatterySensor is a sensor record joined with its low-battery marker.
type LowBatterySensor struct {
	Sensor
	BatteryLevel float64 `json:"battery_level"`
}

// TemperatureValue is the rollup attached to a sensor by the temperature
// values report.
type TemperatureValue struct {
	MinTemperature     float64 `json:"min_temperature"`
	MaxTemperature     float64 `json:"max_temperature"`
	AverageTemperature float64 `json:"average_temperature"`
}

// SensorTemperatures is a sensor record with its temperature rollups.
type SensorTemperatures struct {
	Sensor
	Values []TemperatureValue `json:"values"`
}
