// Package wifi holds the recon data model shared by the agent, the
// bettercap client and the epoch loop.
package wifi

import (
	"sort"
	"strings"
)

// NumChannels is the number of channels a recon can hop across
// (2.4GHz 1-14 plus the common 5GHz ones).
const NumChannels = 14 + 25

// Station is a client device observed on an access point.
type Station struct {
	MAC      string `json:"mac"`
	Hostname string `json:"hostname"`
	Vendor   string `json:"vendor"`
	RSSI     int    `json:"rssi"`
}

// AccessPoint is a base station discovered during recon.  MAC is its
// unique address (BSSID).
type AccessPoint struct {
	MAC        string    `json:"mac"`
	Hostname   string    `json:"hostname"` // ESSID
	Vendor     string    `json:"vendor"`
	Channel    int       `json:"channel"`
	RSSI       int       `json:"rssi"`
	Encryption string    `json:"encryption"`
	Clients    []Station `json:"clients"`
}

// Name returns the ESSID, or the MAC for hidden networks.
func (ap *AccessPoint) Name() string {
	if ap.Hostname == "" || ap.Hostname == "<hidden>" {
		return ap.MAC
	}
	return ap.Hostname
}

// Open reports whether the access point runs without encryption.
func (ap *AccessPoint) Open() bool {
	return ap.Encryption == "" || strings.EqualFold(ap.Encryption, "OPEN")
}

// ChannelGroup is one channel and the access points seen on it, in
// recon order.
type ChannelGroup struct {
	Channel      int
	AccessPoints []AccessPoint
}

// GroupByChannel buckets aps by channel.  Channels with more access
// points come first, ties are broken by channel number, and access
// points keep their input order inside a channel.  Access points with
// channel 0 (unknown) are dropped.
func GroupByChannel(aps []AccessPoint) []ChannelGroup {
	index := make(map[int]int)
	var groups []ChannelGroup

	for _, ap := range aps {
		if ap.Channel <= 0 {
			continue
		}
		i, ok := index[ap.Channel]
		if !ok {
			i = len(groups)
			index[ap.Channel] = i
			groups = append(groups, ChannelGroup{Channel: ap.Channel})
		}
		groups[i].AccessPoints = append(groups[i].AccessPoints, ap)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		ni, nj := len(groups[i].AccessPoints), len(groups[j].AccessPoints)
		if ni != nj {
			return ni > nj
		}
		return groups[i].Channel < groups[j].Channel
	})
	return groups
}

// Count returns the total number of access points across groups.
func Count(groups []ChannelGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.AccessPoints)
	}
	return n
}

// Channels returns the channel numbers of groups, in order.
func Channels(groups []ChannelGroup) []int {
	out := make([]int, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Channel)
	}
	return out
}
