package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/purgegate/internal/approval"
)

// Scenario defines a workflow scenario: a seeded group and a step list
// driven through the approval service.
type Scenario struct {
	// Name uniquely identifies this scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Group is the single group the scenario operates on.
	Group GroupSeed `yaml:"group"`

	// Members seeds the membership directory.
	Members []MemberSeed `yaml:"members"`

	// Items seeds the work-item store.
	Items []ItemSeed `yaml:"items,omitempty"`

	// Steps is the ordered step list.
	Steps []Step `yaml:"steps"`

	// TTL optionally enables request expiry (Go duration string).
	TTL string `yaml:"ttl,omitempty"`
}

// GroupSeed seeds the group aggregate.
type GroupSeed struct {
	ID         string `yaml:"id"`
	ExternalID string `yaml:"external_id"`
	Name       string `yaml:"name,omitempty"`
	Channel    string `yaml:"channel,omitempty"`
}

// MemberSeed seeds one directory entry. Role is "admin" or "member".
type MemberSeed struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// ItemSeed seeds one work item.
type ItemSeed struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Status string `yaml:"status,omitempty"`
}

// Step is a single scenario step. Exactly one field must be set.
type Step struct {
	// Initiate creates a deletion request.
	Initiate *InitiateStep `yaml:"initiate,omitempty"`

	// Approve registers a vote by the named member.
	Approve *ApproveStep `yaml:"approve,omitempty"`

	// Pending reads the refreshed pending request into the transcript.
	Pending bool `yaml:"pending,omitempty"`

	// Advance moves the scenario clock forward (Go duration string).
	Advance string `yaml:"advance,omitempty"`

	// RemoveItem deletes a work item out-of-band, simulating an
	// independent deletion path.
	RemoveItem string `yaml:"remove_item,omitempty"`
}

// InitiateStep parameters.
type InitiateStep struct {
	Requester string   `yaml:"requester"`
	Items     []string `yaml:"items"`
	Filter    string   `yaml:"filter,omitempty"`
}

// ApproveStep parameters.
type ApproveStep struct {
	Voter string `yaml:"voter"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Group.ID == "" || s.Group.ExternalID == "" {
		return fmt.Errorf("group id and external_id are required")
	}
	if len(s.Members) == 0 {
		return fmt.Errorf("members list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.TTL != "" {
		if _, err := time.ParseDuration(s.TTL); err != nil {
			return fmt.Errorf("ttl: %w", err)
		}
	}

	for i, m := range s.Members {
		if m.ID == "" || m.Name == "" {
			return fmt.Errorf("members[%d]: id and name are required", i)
		}
		if m.Role != "admin" && m.Role != "member" {
			return fmt.Errorf("members[%d]: role must be admin or member", i)
		}
	}

	for i, item := range s.Items {
		if item.ID == "" {
			return fmt.Errorf("items[%d]: id is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that exactly one step kind is set and its fields are
// complete.
func validateStep(index int, step *Step) error {
	kinds := 0
	if step.Initiate != nil {
		kinds++
		if step.Initiate.Requester == "" {
			return fmt.Errorf("steps[%d].initiate: requester is required", index)
		}
		if len(step.Initiate.Items) == 0 {
			return fmt.Errorf("steps[%d].initiate: items list is required", index)
		}
		if step.Initiate.Filter != "" && !approval.ValidFilter(approval.Filter(step.Initiate.Filter)) {
			return fmt.Errorf("steps[%d].initiate: unknown filter %q", index, step.Initiate.Filter)
		}
	}
	if step.Approve != nil {
		kinds++
		if step.Approve.Voter == "" {
			return fmt.Errorf("steps[%d].approve: voter is required", index)
		}
	}
	if step.Pending {
		kinds++
	}
	if step.Advance != "" {
		kinds++
		if _, err := time.ParseDuration(step.Advance); err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
	}
	if step.RemoveItem != "" {
		kinds++
	}

	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of initiate/approve/pending/advance/remove_item must be set", index)
	}
	return nil
}
