package micro

// Type discriminators carried by every monitoring response (spec §3).
const (
	PingResponseType  = "io.nats.micro.v1.ping_response"
	InfoResponseType  = "io.nats.micro.v1.info_response"
	StatsResponseType = "io.nats.micro.v1.stats_response"
)

// ServiceIdentity is the set of fields shared by all three monitoring
// response shapes.
type ServiceIdentity struct {
	Name     string            `json:"name"`
	ID       string             `json:"id"`
	Version  string            `json:"version"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PingInfo is the response to a PING request.
type PingInfo struct {
	ServiceIdentity
	Type string `json:"type"`
}

// EndpointInfo describes a single registered endpoint within a ServiceInfo
// snapshot.
type EndpointInfo struct {
	Name       string            `json:"name"`
	Subject    string            `json:"subject"`
	QueueGroup string            `json:"queue_group"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ServiceInfo is the response to an INFO request.
type ServiceInfo struct {
	ServiceIdentity
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Endpoints   []EndpointInfo `json:"endpoints"`
}

// EndpointStats carries the counters accumulated by a single endpoint.
type EndpointStats struct {
	Name                  string          `json:"name"`
	Subject               string          `json:"subject"`
	QueueGroup            string          `json:"queue_group"`
	NumRequests           int64           `json:"num_requests"`
	NumErrors             int64           `json:"num_errors"`
	LastError             string          `json:"last_error,omitempty"`
	ProcessingTime        int64           `json:"processing_time"`
	AverageProcessingTime int64           `json:"average_processing_time"`
	Data                  map[string]any `json:"data,omitempty"`
}

// ServiceStats is the response to a STATS request.
type ServiceStats struct {
	ServiceIdentity
	Type      string          `json:"type"`
	Started   string          `json:"started"`
	Endpoints []EndpointStats `json:"endpoints"`
}
