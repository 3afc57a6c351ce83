package relay

import (
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
)

// Event is the interface satisfied by every event that can travel through the
// Bus. Events are transient values with no identity beyond their fields.
type Event interface {
	Kind() Kind
}

// Kind enumerates the event kinds carried by the bus and the inter-node wire.
type Kind uint8

const (
	// KindChanged is raised whenever a node's settings are modified.
	KindChanged Kind = iota
	// KindRequest is raised by central to make peripherals report.
	KindRequest
	// KindReport is raised by a node in answer to a request.
	KindReport
)

func (k Kind) String() string {
	switch k {
	case KindChanged:
		return "settings-changed"
	case KindRequest:
		return "settings-request"
	case KindReport:
		return "settings-report"
	default:
		return "unknown"
	}
}

// SettingsChanged is raised whenever a node's settings are modified, locally
// or through the control surface. Every node's propagation listener consumes
// it; the fabric relays it central to peripherals and peripheral to central.
type SettingsChanged struct {
	Settings settings.ActivitySettings
	Source   Source
}

// Kind implements Event.
func (SettingsChanged) Kind() Kind { return KindChanged }

// SettingsRequest is raised by central to initiate a settings collection. The
// ID has no ordering semantics; it only matches reports to a collection round.
type SettingsRequest struct {
	RequestID uint8
}

// Kind implements Event.
func (SettingsRequest) Kind() Kind { return KindRequest }

// SettingsReport is raised by a node in answer to a SettingsRequest.
type SettingsReport struct {
	Settings  settings.ActivitySettings
	Source    Source
	RequestID uint8
}

// Kind implements Event.
func (SettingsReport) Kind() Kind { return KindReport }
