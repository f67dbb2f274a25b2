// Package status assembles the nested STATUS document from the pin manager,
// the connectivity monitor and the liveness supervisor. Field names are
// lowerCamelCase across all sections for client-side consistency.
package status

import (
	"encoding/json"
	"runtime"

	"github.com/mhartlieb/pincore/internal/liveness"
	"github.com/mhartlieb/pincore/internal/pins"
)

// ConnectivitySource is the boundary with the connectivity manager. The
// core only reads it; it never initiates or retries connections.
type ConnectivitySource interface {
	IsConnected() bool
	NetworkName() string
	CurrentAddress() string
	SignalQuality() int
}

// ServerInfo is supplied by the request multiplexer.
type ServerInfo struct {
	TCPPort    int `json:"tcpPort"`
	UDPPort    int `json:"udpPort"`
	TCPClients int `json:"tcpClients"`
}

type SystemInfo struct {
	Uptime       int64  `json:"uptime"`
	FreeMemory   uint64 `json:"freeMemory"`
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

type ConnectivityInfo struct {
	Connected     bool   `json:"connected"`
	Network       string `json:"network"`
	Address       string `json:"address"`
	SignalQuality int    `json:"signalQuality"`
}

type LivenessInfo struct {
	ErrorCount int    `json:"errorCount"`
	LastError  string `json:"lastError"`
}

// Document is the STATUS reply: nested sections instead of the flat shape
// normal command responses use.
type Document struct {
	Success      bool             `json:"success"`
	Command      string           `json:"command"`
	System       SystemInfo       `json:"system"`
	Connectivity ConnectivityInfo `json:"connectivity"`
	Server       ServerInfo       `json:"server"`
	PinStates    []pins.Snapshot  `json:"pinStates"`
	Liveness     LivenessInfo     `json:"liveness"`
}

// Reporter aggregates the status sources. All fields are read-only views.
type Reporter struct {
	pins       *pins.Manager
	supervisor *liveness.Supervisor
	conn       ConnectivitySource
	serverInfo func() ServerInfo
}

func NewReporter(
	pinManager *pins.Manager,
	supervisor *liveness.Supervisor,
	conn ConnectivitySource,
	serverInfo func() ServerInfo,
) *Reporter {
	return &Reporter{
		pins:       pinManager,
		supervisor: supervisor,
		conn:       conn,
		serverInfo: serverInfo,
	}
}

func (r *Reporter) Document() Document {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := r.supervisor.Snapshot()

	doc := Document{
		Success: true,
		Command: "STATUS",
		System: SystemInfo{
			Uptime:       stats.UptimeSeconds,
			FreeMemory:   ms.HeapSys - ms.HeapInuse,
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
		},
		PinStates: r.pins.Snapshots(),
		Liveness: LivenessInfo{
			ErrorCount: stats.TotalErrors,
			LastError:  stats.LastError,
		},
	}

	if r.conn != nil {
		doc.Connectivity = ConnectivityInfo{
			Connected:     r.conn.IsConnected(),
			Network:       r.conn.NetworkName(),
			Address:       r.conn.CurrentAddress(),
			SignalQuality: r.conn.SignalQuality(),
		}
	}
	if r.serverInfo != nil {
		doc.Server = r.serverInfo()
	}

	return doc
}

// DocumentJSON renders the status document as one line.
func (r *Reporter) DocumentJSON() string {
	data, err := json.Marshal(r.Document())
	if err != nil {
		return `{"success":false,"command":"STATUS","message":"status render error"}`
	}
	return string(data)
}
