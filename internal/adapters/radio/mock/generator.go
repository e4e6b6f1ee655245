// Package mock simulates BLE tags and access points for running the engine
// without radios.
package mock

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
)

var commonSSIDs = []string{
	"HomeNetwork", "NETGEAR-5G", "Starbucks WiFi", "TP-Link_2.4GHz",
	"Linksys", "Xfinity", "Office-Network", "Guest-WiFi",
	"CoffeeShop_Free", "Airport_WiFi", "Hotel-Guest", "Apartment_5G",
}

var tagNames = []string{"", "", "", "Keys", "Backpack", "Wallet", "Bike"}

var securityTypes = []domain.Security{
	domain.SecurityWPA2, domain.SecurityWPA3, domain.SecurityWEP, domain.SecurityOpen, domain.SecurityWPA,
}

// WPA2, WPA3, WEP, OPEN, WPA
var securityWeights = []float64{0.55, 0.2, 0.05, 0.15, 0.05}

var channels24GHz = []int{1, 6, 11}
var channels5GHz = []int{36, 40, 44, 48, 149, 153, 157, 161}

// Scenario sizes the simulated environment.
type Scenario struct {
	Tags     int
	Networks int
}

// Scenarios by name.
var Scenarios = map[string]Scenario{
	"basic":   {Tags: 3, Networks: 5},
	"crowded": {Tags: 12, Networks: 20},
}

type entity struct {
	mac      string
	name     string
	rssi     int
	md       []domain.ManufacturerData
	security domain.Security
	freq     int
	present  bool
}

// Generator evolves a population of tags and access points by random walk.
// The same seed always produces the same sequence.
type Generator struct {
	mu       sync.Mutex
	rand     *rand.Rand
	tags     map[string]*entity
	networks map[string]*entity
}

// NewGenerator creates a generator populated for scenario.
func NewGenerator(seed int64, scenario Scenario) *Generator {
	g := &Generator{
		rand:     rand.New(rand.NewSource(seed)),
		tags:     make(map[string]*entity),
		networks: make(map[string]*entity),
	}
	for i := 0; i < scenario.Tags; i++ {
		g.addTag()
	}
	for i := 0; i < scenario.Networks; i++ {
		g.addNetwork()
	}
	return g
}

func (g *Generator) mac(prefix byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		prefix, g.rand.Intn(256), g.rand.Intn(256), g.rand.Intn(256), g.rand.Intn(256), g.rand.Intn(256))
}

func (g *Generator) addTag() {
	e := &entity{
		mac:     g.mac(0xC0 | byte(g.rand.Intn(64))),
		name:    tagNames[g.rand.Intn(len(tagNames))],
		rssi:    -50 - g.rand.Intn(40),
		present: true,
	}
	switch r := g.rand.Float64(); {
	case r < 0.5:
		e.md = []domain.ManufacturerData{{CompanyID: classify.AppleCompanyID, Data: []byte{0x12, 0x19, 0x10, byte(g.rand.Intn(256))}}}
	case r < 0.7:
		e.md = []domain.ManufacturerData{{CompanyID: classify.AppleCompanyID, Data: []byte{0x07, 0x19, 0x05}}}
	case r < 0.85:
		e.md = []domain.ManufacturerData{{CompanyID: classify.AppleCompanyID, Data: []byte{0x10, 0x05, 0x01}}}
	}
	g.tags[e.mac] = e
}

func (g *Generator) addNetwork() {
	var freq int
	if g.rand.Float64() < 0.4 {
		freq = classify.FrequencyForChannel(domain.Band5GHz, channels5GHz[g.rand.Intn(len(channels5GHz))])
	} else {
		freq = classify.FrequencyForChannel(domain.Band24GHz, channels24GHz[g.rand.Intn(len(channels24GHz))])
	}
	e := &entity{
		mac:      g.mac(0x02),
		name:     commonSSIDs[g.rand.Intn(len(commonSSIDs))],
		rssi:     -30 - g.rand.Intn(50),
		security: g.weightedSecurity(),
		freq:     freq,
		present:  true,
	}
	// hidden
	if g.rand.Float64() < 0.1 {
		e.name = ""
	}
	g.networks[e.mac] = e
}

func (g *Generator) weightedSecurity() domain.Security {
	r := g.rand.Float64()
	cumulative := 0.0
	for i, w := range securityWeights {
		cumulative += w
		if r <= cumulative {
			return securityTypes[i]
		}
	}
	return securityTypes[0]
}

// step moves every entity's signal by up to ±4 dB and toggles presence so
// that sweeping has something to evict.
func (g *Generator) step(pop map[string]*entity) {
	for _, e := range sortedEntities(pop) {
		e.rssi += g.rand.Intn(9) - 4
		if e.rssi > -25 {
			e.rssi = -25
		}
		if e.rssi < -95 {
			e.rssi = -95
		}
		if g.rand.Float64() < 0.02 {
			e.present = !e.present
		}
	}
}

// Tags advances the simulation one step and returns the advertisements
// visible at now.
func (g *Generator) Tags(now time.Time) []domain.BleObservation {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.step(g.tags)
	var out []domain.BleObservation
	for _, e := range sortedEntities(g.tags) {
		if !e.present {
			continue
		}
		out = append(out, domain.BleObservation{
			Address:          e.mac,
			RSSI:             e.rssi,
			Name:             e.name,
			ManufacturerData: e.md,
			Timestamp:        now,
		})
	}
	return out
}

// Networks advances the simulation one step and returns the scan results
// visible at now.
func (g *Generator) Networks(now time.Time) []domain.WifiObservation {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.step(g.networks)
	var out []domain.WifiObservation
	for _, e := range sortedEntities(g.networks) {
		if !e.present {
			continue
		}
		out = append(out, domain.WifiObservation{
			BSSID:     e.mac,
			SSID:      e.name,
			Signal:    classify.SignalFromDBM(e.rssi),
			RSSI:      e.rssi,
			Security:  e.security,
			Frequency: e.freq,
			Timestamp: now,
		})
	}
	return out
}

// sortedEntities fixes iteration order so a seed replays identically.
func sortedEntities(pop map[string]*entity) []*entity {
	out := make([]*entity, 0, len(pop))
	for _, e := range pop {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].mac < out[j].mac })
	return out
}
