package models

import "time"

// PolicyStatus represents the lifecycle state of an insurance policy
type PolicyStatus string

const (
	PolicyStatusActive  PolicyStatus = "Active"
	PolicyStatusExpired PolicyStatus = "Expired"
	PolicyStatusPending PolicyStatus = "Pending"
	PolicyStatusUnknown PolicyStatus = "Unknown"
)

// PolicyType classifies the kind of coverage a policy provides
type PolicyType string

const (
	PolicyTypeCar    PolicyType = "Car"
	PolicyTypeHealth PolicyType = "Health"
	PolicyTypeHome   PolicyType = "Home"
	PolicyTypeOther  PolicyType = "Other"
)

// PolicyRecord is a structured policy extracted from an uploaded document.
// Records are created once per successful analysis and never mutated.
type PolicyRecord struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Number    string       `json:"number"`
	Holder    string       `json:"holder"`
	Insurer   string       `json:"insurer"`
	Status    PolicyStatus `json:"status"`
	Expiry    string       `json:"expiry"`
	Type      PolicyType   `json:"type"`
	Summary   string       `json:"summary,omitempty"`
	Content   string       `json:"content,omitempty"`
	Icon      string       `json:"icon"`
	Color     string       `json:"color"`
	CreatedAt time.Time    `json:"created_at"`
}

// ParsePolicyStatus maps a raw extracted status string onto the enum.
// Unrecognized non-empty values become Unknown; empty becomes Pending.
func ParsePolicyStatus(raw string) PolicyStatus {
	switch raw {
	case string(PolicyStatusActive):
		return PolicyStatusActive
	case string(PolicyStatusExpired):
		return PolicyStatusExpired
	case string(PolicyStatusPending):
		return PolicyStatusPending
	case "":
		return PolicyStatusPending
	default:
		return PolicyStatusUnknown
	}
}

// ParsePolicyType maps a raw extracted type string onto the enum.
// Anything unrecognized (including empty) becomes Other.
func ParsePolicyType(raw string) PolicyType {
	switch raw {
	case string(PolicyTypeCar):
		return PolicyTypeCar
	case string(PolicyTypeHealth):
		return PolicyTypeHealth
	case string(PolicyTypeHome):
		return PolicyTypeHome
	default:
		return PolicyTypeOther
	}
}

// IconForType returns the presentation icon name for a policy type
func IconForType(t PolicyType) string {
	switch t {
	case PolicyTypeCar:
		return "car"
	case PolicyTypeHealth:
		return "shield"
	case PolicyTypeHome:
		return "home"
	default:
		return "file-text"
	}
}

// ColorForStatus returns the presentation color classes for a policy status
func ColorForStatus(s PolicyStatus) string {
	if s == PolicyStatusActive {
		return "bg-green-100 text-green-600"
	}
	return "bg-gray-100 text-gray-600"
}
