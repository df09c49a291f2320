package viewer

import (
	"fmt"
	"time"

	"github.com/helixml/consoleviewer/api/pkg/protocol"
)

// Status is reported to the status hook as the send and update cycles
// progress.
type Status int

const (
	StatusReceiving Status = 1
	StatusReceived  Status = 2
	StatusSending   Status = 3
	StatusSent      Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusReceiving:
		return "receiving"
	case StatusReceived:
		return "received"
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// updateState is the screen update cycle:
//
//	idle ──refresh/setDirty──▶ dirty ──image loaded, tick──▶ polling
//	  ▲                                                       │
//	  └──────────────── script applied ◀──────────────────────┘
//
// A failed poll or a script that does not mark the screen dirty goes back
// to dirty without repainting, unless the script parked the loop with
// setDirty(false).
type updateState int

const (
	updateIdle updateState = iota
	updateDirty
	updatePolling
)

func (s updateState) String() string {
	switch s {
	case updateIdle:
		return "idle"
	case updateDirty:
		return "dirty"
	case updatePolling:
		return "polling"
	default:
		return fmt.Sprintf("update(%d)", int(s))
	}
}

// sendState is the transmission cycle. inFlight is set when a batch is
// handed to the transport and cleared by its completion, success or not.
type sendState struct {
	inFlight bool
}

// update tracks the update cycle and the tile map waiting to be painted.
type update struct {
	state      updateState
	needsPaint bool
	parked     bool
}

// image tracks the background image the tile map refers to.
type imageState struct {
	url     string
	seq     uint64
	loading bool
	loaded  bool
	failed  bool
}

// lastClick is the most recent mouse-up, kept for double click detection.
type lastClick struct {
	valid     bool
	x         int
	y         int
	button    int
	modifiers protocol.Modifiers
	at        time.Time
}

// Stats counts viewer activity since the viewer was created.
type Stats struct {
	BatchesSent    int    `json:"batches_sent"`
	EventsSent     int    `json:"events_sent"`
	BytesSent      uint64 `json:"bytes_sent"`
	SendErrors     int    `json:"send_errors"`
	Polls          int    `json:"polls"`
	PollErrors     int    `json:"poll_errors"`
	UpdatesApplied int    `json:"updates_applied"`
	TilesPainted   int    `json:"tiles_painted"`
	ImagesLoaded   int    `json:"images_loaded"`
	ImageErrors    int    `json:"image_errors"`
	DoubleClicks   int    `json:"double_clicks"`
}

// Diagnostics is the state published while the diagnostic overlay is on.
type Diagnostics struct {
	ViewerID    string `json:"viewer_id"`
	Status      Status `json:"status"`
	InFlight    bool   `json:"in_flight"`
	UpdateState string `json:"update_state"`
	ImageURL    string `json:"image_url"`
	ImageLoaded bool   `json:"image_loaded"`
	QueueLen    int    `json:"queue_len"`
	ZIndex      int    `json:"z_index"`
	Keyboard    string `json:"keyboard"`
	Stats       Stats  `json:"stats"`
}
