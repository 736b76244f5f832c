package realtime

import (
	"strconv"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"arcticbus/internal/route"
)

// VehicleFeed renders the bus as a GTFS-Realtime VehiclePositions feed.
// The feed has no entities until the first fix arrives.
func VehicleFeed(snap Snapshot, top *route.Topology, vehicleID string) *gtfs.FeedMessage {
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
		},
	}
	r := snap.Route
	if !r.HasFix {
		return feed
	}
	ts := uint64(r.LastUpdated.Unix())
	feed.Header.Timestamp = proto.Uint64(ts)

	vp := &gtfs.VehiclePosition{
		Vehicle: &gtfs.VehicleDescriptor{
			Id:    proto.String(vehicleID),
			Label: proto.String(top.Name()),
		},
		Position: &gtfs.Position{
			Latitude:  proto.Float32(float32(r.BusLat)),
			Longitude: proto.Float32(float32(r.BusLng)),
		},
		Timestamp: proto.Uint64(ts),
	}
	if stop, err := top.At(r.BusStopIndex); err == nil {
		vp.StopId = proto.String(strconv.Itoa(stop.ID))
		vp.CurrentStopSequence = proto.Uint32(uint32(r.BusStopIndex + 1))
		if r.IsMoving {
			vp.CurrentStatus = gtfs.VehiclePosition_IN_TRANSIT_TO.Enum()
		} else {
			vp.CurrentStatus = gtfs.VehiclePosition_STOPPED_AT.Enum()
		}
	}

	feed.Entity = []*gtfs.FeedEntity{{
		Id:      proto.String(vehicleID),
		Vehicle: vp,
	}}
	return feed
}
