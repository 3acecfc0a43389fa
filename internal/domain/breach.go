package domain

import "time"

// BreachRecord is one incident in which an address appeared.
type BreachRecord struct {
	Name        string     `json:"name"`
	Title       string     `json:"title,omitempty"`
	Domain      string     `json:"domain,omitempty"`
	BreachDate  *time.Time `json:"breach_date,omitempty"`
	Description string     `json:"description,omitempty"`
	DataClasses []string   `json:"data_classes,omitempty"`
}

// BreachNames returns the names of the given breaches in order.
func BreachNames(breaches []BreachRecord) []string {
	names := make([]string, 0, len(breaches))
	for _, b := range breaches {
		names = append(names, b.Name)
	}
	return names
}
