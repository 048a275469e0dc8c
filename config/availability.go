package config

import "os"

// ServiceAvailability records which optional upstreams are configured. The
// interview flow works end to end with everything false; unavailable services
// are replaced by deterministic fallbacks or skipped.
type ServiceAvailability struct {
	Reasoning     bool `json:"reasoning"`
	Transcription bool `json:"transcription"`
	Storage       bool `json:"storage"`
	Speech        bool `json:"speech"`
	Avatar        bool `json:"avatar"`
}

func DetectAvailability() ServiceAvailability {
	return ServiceAvailability{
		Reasoning:     os.Getenv("VERTEX_PROJECT_ID") != "" || os.Getenv("DEEPSEEK_API_KEY") != "",
		Transcription: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "",
		Storage:       os.Getenv("GCS_BUCKET") != "",
		Speech:        os.Getenv("ELEVENLABS_API_KEY") != "",
		Avatar:        os.Getenv("TAVUS_API_KEY") != "",
	}
}
