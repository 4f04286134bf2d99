package types

// LoadRequest is the body of PUT /v1/sessions/{slot}.
type LoadRequest struct {
	// Network id from the registry, or an absolute weight-file path.
	// example: t60-64x6.nnwb
	Network string `json:"network" example:"t60-64x6.nnwb"`
	// Device ordinal to bind the session to.
	// example: 0
	Device int `json:"device,omitempty" example:"0"`
	// Maximum batch size for this session; 0 uses the server default.
	// example: 256
	MaxBatch int `json:"max_batch,omitempty" example:"256"`
	// Numeric precision: "auto", "full" or "reduced".
	// example: auto
	Precision string `json:"precision,omitempty" example:"auto"`
	// Residual-block fusion: "auto", "on" or "off".
	// example: auto
	Fusion string `json:"fusion,omitempty" example:"auto"`
	// Enable the moves-left head when the network carries one. Defaults to true.
	MovesLeft *bool `json:"moves_left,omitempty"`
}

// EvaluateRequest is the body of POST /v1/sessions/{slot}/evaluate.
type EvaluateRequest struct {
	Positions []Position `json:"positions"`
}

// EvaluateResponse mirrors the request order one output record per position.
type EvaluateResponse struct {
	Results []Evaluation `json:"results"`
}

// NetworksResponse wraps the registry catalog returned by GET /networks.
type NetworksResponse struct {
	Networks []Network `json:"networks"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: slot already occupied
	Error string `json:"error" example:"slot already occupied"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
}

// SlotStatus summarizes one loaded session for /status.
type SlotStatus struct {
	// Slot index in the session table.
	// example: 0
	Slot int `json:"slot" example:"0"`
	// Network id the session was loaded from.
	Network string `json:"network"`
	// Device ordinal the session is bound to.
	Device int `json:"device"`
	// Configured maximum batch size.
	// example: 256
	MaxBatch int `json:"max_batch" example:"256"`
	// Numeric precision in effect ("full" or "reduced").
	Precision string `json:"precision"`
	// Whether residual-block fusion is in effect.
	Fused bool `json:"fused"`
	// Whether the value head is a win/draw/loss triple.
	WDL bool `json:"wdl"`
	// Whether the moves-left head is active.
	MovesLeft bool `json:"moves_left"`
	// Last time this session served a batch (unix seconds).
	LastUsed int64 `json:"last_used_unix"`
	// Batches evaluated on this session.
	Evaluations uint64 `json:"evaluations"`
	// True after a device execution failure; the session must be replaced.
	Failed bool `json:"failed,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Occupied slots.
	Sessions []SlotStatus `json:"sessions"`
	// Total slots in the session table.
	// example: 32
	Slots int `json:"slots" example:"32"`
	// Number of compute devices visible to the server.
	// example: 1
	Devices int `json:"devices" example:"1"`
	// Whether a tablebase prober is attached.
	TablebaseAvailable bool `json:"tablebase_available"`
	// Total session loads since start.
	LoadsTotal uint64 `json:"loads_total"`
	// Total session unloads since start.
	UnloadsTotal uint64 `json:"unloads_total"`
	// Total batches evaluated since start.
	EvaluationsTotal uint64 `json:"evaluations_total"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}
