package notify

// Options are per-registration switches.
type Options struct {
	// WriteLog appends a DeliveryRecord per attempt to the delivery log.
	WriteLog bool `json:"writeLog" yaml:"writeLog"`
	// CustomMessage is appended verbatim to every message.
	CustomMessage string `json:"customMessage,omitempty" yaml:"customMessage"`
}

// DeliveryRecord is the logged outcome of one attempted notification.
type DeliveryRecord struct {
	Channel          string   `json:"channel"`
	People           []string `json:"people"`
	FoundPeople      []string `json:"foundPeople"`
	Sent             bool     `json:"sent"`
	RunDashboardURL  string   `json:"runDashboardUrl,omitempty"`
	RunDashboardTags []string `json:"runDashboardTags,omitempty"`
	CustomMessage    string   `json:"customMessage,omitempty"`
}
