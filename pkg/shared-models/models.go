package datamodels

import (
	"time"

	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/google/uuid"
)

// DeviceMessage is the published result of one device in one run.
type DeviceMessage struct {
	RunID   uuid.UUID `json:"runid" bson:"-"`
	Address string    `json:"address" bson:"address"`
	Vendor  string    `json:"vendor" bson:"vendor"`
	Cleaned string    `json:"cleaned" bson:"cleaned"`
	Signal  string    `json:"signal" bson:"signal"`
}

// RunDocument is the stored record of one run.
type RunDocument struct {
	RunID     string          `json:"runid" bson:"_id"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	Devices   []DeviceMessage `json:"devices" bson:"devices"`
}

// NewDeviceMessages converts every device of agg, in aggregate order.
func NewDeviceMessages(runID uuid.UUID, agg *collect.Aggregate) []DeviceMessage {
	results := agg.Results()
	out := make([]DeviceMessage, 0, len(results))
	for _, r := range results {
		out = append(out, DeviceMessage{
			RunID:   runID,
			Address: r.Address,
			Vendor:  string(r.Vendor),
			Cleaned: r.Cleaned,
			Signal:  r.Signal,
		})
	}
	return out
}
