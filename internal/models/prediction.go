package models

import "time"

// Prediction is a generated trading signal for a symbol. The generator is
// a randomized label/target producer, not a model; Confidence is reported
// to the caller but never acted on by the settlement core.
type Prediction struct {
	Symbol       string
	Direction    OrderSide
	CurrentPrice float64
	TargetPrice  float64
	Confidence   float64 // 0-100
	Horizon      string  // e.g. "1d"
	GeneratedAt  time.Time
}
