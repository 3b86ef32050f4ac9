package bettercap

import (
	"encoding/json"
	"time"

	"gopwn/internal/wifi"
)

// Session is the subset of GET /api/session the agent reads.
type Session struct {
	Interfaces []Interface `json:"interfaces"`
	Modules    []Module    `json:"modules"`
	WiFi       WiFi        `json:"wifi"`
}

// Interface is a network interface known to bettercap.
type Interface struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
}

// Module is a bettercap module and whether it is running.
type Module struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

// WiFi is the wifi module state; access points carry their clients.
type WiFi struct {
	AccessPoints []wifi.AccessPoint `json:"aps"`
}

// HasInterface reports whether bettercap sees an interface called name.
func (s *Session) HasInterface(name string) bool {
	for _, i := range s.Interfaces {
		if i.Name == name {
			return true
		}
	}
	return false
}

// Running reports whether module name is started.
func (s *Session) Running(name string) bool {
	for _, m := range s.Modules {
		if m.Name == name {
			return m.Running
		}
	}
	return false
}

// Event is one message of the /api/events stream.  Data is left raw,
// its shape depends on Tag.
type Event struct {
	Tag  string          `json:"tag"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

// Handshake is the Data of a wifi.client.handshake event.
type Handshake struct {
	File    string `json:"file"`
	Station string `json:"station"`
	AP      string `json:"ap"`
	PMKID   string `json:"pmkid,omitempty"`
}
