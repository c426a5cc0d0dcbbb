// Package netfabric emulates the local-area network shared by simulated
// machines: a NIC registry, per-MAC frame queues, and a fixed table of
// Wi-Fi access points.
package netfabric

import (
	"errors"
	"sync"

	"github.com/gmfc/helios-os/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrUnknownNIC is returned by SendFrame when the sending nic_id was never
// registered.
var ErrUnknownNIC = errors.New("unknown nic")

type accessPoint struct {
	ssid       string
	passphrase string
}

// Fabric holds the process-wide NIC/queue/AP state. It is never persisted:
// the whole fabric is lost on host exit, per spec.
type Fabric struct {
	nicMu sync.Mutex
	nics  map[string]string // nic_id -> mac

	queueMu sync.Mutex
	queues  map[string][]types.Frame // mac -> FIFO

	apMu sync.Mutex
	aps  []accessPoint
}

// New creates a Fabric seeded with the default access points.
func New() *Fabric {
	return &Fabric{
		nics:   make(map[string]string),
		queues: make(map[string][]types.Frame),
		aps: []accessPoint{
			{ssid: "helios", passphrase: "password"},
			{ssid: "guest", passphrase: "guest"},
		},
	}
}

// RegisterNIC associates nicID with mac, creating an empty receive queue at
// mac if one doesn't already exist. Idempotent under the same pair;
// overwrites the mapping on collision.
func (f *Fabric) RegisterNIC(nicID, mac string) {
	f.nicMu.Lock()
	f.nics[nicID] = mac
	f.nicMu.Unlock()

	f.queueMu.Lock()
	if _, ok := f.queues[mac]; !ok {
		f.queues[mac] = nil
	}
	f.queueMu.Unlock()

	nicsRegistered.Set(float64(f.nicCount()))
}

func (f *Fabric) nicCount() int {
	f.nicMu.Lock()
	defer f.nicMu.Unlock()
	return len(f.nics)
}

// SendFrame routes frame from nicID. If frame's dst names a registered MAC,
// it is unicast there; otherwise it is broadcast to every queue except the
// sender's.
func (f *Fabric) SendFrame(nicID string, frame types.Frame) error {
	f.nicMu.Lock()
	senderMAC, ok := f.nics[nicID]
	f.nicMu.Unlock()
	if !ok {
		return ErrUnknownNIC
	}

	dst := frame.Dst()

	f.queueMu.Lock()
	defer f.queueMu.Unlock()

	if _, exists := f.queues[dst]; exists && dst != "" {
		f.queues[dst] = append(f.queues[dst], frame)
		framesTotal.WithLabelValues("unicast").Inc()
		return nil
	}

	for mac := range f.queues {
		if mac == senderMAC {
			continue
		}
		f.queues[mac] = append(f.queues[mac], frame)
	}
	framesTotal.WithLabelValues("broadcast").Inc()
	return nil
}

// ReceiveFrames returns and clears the receive queue for nicID's MAC.
// An unknown nic_id yields an empty slice, not an error.
func (f *Fabric) ReceiveFrames(nicID string) []types.Frame {
	f.nicMu.Lock()
	mac, ok := f.nics[nicID]
	f.nicMu.Unlock()
	if !ok {
		return []types.Frame{}
	}

	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	frames := f.queues[mac]
	f.queues[mac] = nil
	if frames == nil {
		return []types.Frame{}
	}
	return frames
}

// WifiScan returns the SSIDs of every access point, in declaration order.
func (f *Fabric) WifiScan() []string {
	f.apMu.Lock()
	defer f.apMu.Unlock()
	ssids := make([]string, len(f.aps))
	for i, ap := range f.aps {
		ssids[i] = ap.ssid
	}
	return ssids
}

// WifiJoin reports whether (ssid, passphrase) matches a known access point.
// It has no side effect on the NIC; association is implicit in RegisterNIC.
func (f *Fabric) WifiJoin(nicID, ssid, passphrase string) bool {
	f.apMu.Lock()
	defer f.apMu.Unlock()
	for _, ap := range f.aps {
		if ap.ssid == ssid && ap.passphrase == passphrase {
			return true
		}
	}
	return false
}

var (
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_frames_total",
			Help: "Total frames routed by the virtual network fabric.",
		},
		[]string{"kind"},
	)
	nicsRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "helios_nics_registered",
			Help: "Number of NICs currently registered with the fabric.",
		},
	)
)

func init() {
	prometheus.MustRegister(framesTotal, nicsRegistered)
}
