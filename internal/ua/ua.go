// internal/ua/ua.go
//
// User-Agent classification.
//
// This wrapper isolates the third-party `github.com/avct/uasurfer` API so
// the rest of the codebase never sees its enums or structs.  The redirect
// pipeline only needs a coarse picture of the client: is it a crawler,
// and what kind of device is it.  Both end up as log fields and metric
// labels, never as routing inputs.
package ua

import (
	"strings"

	surfer "github.com/avct/uasurfer"
)

// Info is the coarse client classification.
//
// Example (Googlebot):
//
//	Browser "GoogleBot"
//	Device  "Bot"
//	IsBot   true
type Info struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
	IsBot   bool   `json:"is_bot"`
}

// Parse classifies a raw User-Agent header.  An empty header yields an
// Info with unknown fields and IsBot false.
func Parse(raw string) Info {
	if raw == "" {
		return Info{Browser: "Unknown", OS: "Unknown", Device: "Other"}
	}
	u := surfer.Parse(raw)

	info := Info{
		Browser: strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		OS:      strings.TrimPrefix(u.OS.Name.String(), "OS"),
		IsBot:   u.IsBot(),
	}

	switch u.DeviceType {
	case surfer.DeviceComputer:
		info.Device = "Desktop"
	case surfer.DeviceTablet:
		info.Device = "Tablet"
	case surfer.DevicePhone, surfer.DeviceWearable:
		info.Device = "Mobile"
	default:
		info.Device = "Other"
	}
	if info.IsBot {
		info.Device = "Bot"
	}
	return info
}
