package hibp

import (
	"time"

	"github.com/ignite/aliasguard/internal/domain"
)

// Breach is the breach model returned by the v3 breachedaccount endpoint
// with truncateResponse=false.
type Breach struct {
	Name         string   `json:"Name"`
	Title        string   `json:"Title"`
	Domain       string   `json:"Domain"`
	BreachDate   string   `json:"BreachDate"`
	AddedDate    string   `json:"AddedDate"`
	ModifiedDate string   `json:"ModifiedDate"`
	PwnCount     int64    `json:"PwnCount"`
	Description  string   `json:"Description"`
	LogoPath     string   `json:"LogoPath"`
	DataClasses  []string `json:"DataClasses"`
	IsVerified   bool     `json:"IsVerified"`
	IsFabricated bool     `json:"IsFabricated"`
	IsSensitive  bool     `json:"IsSensitive"`
	IsRetired    bool     `json:"IsRetired"`
	IsSpamList   bool     `json:"IsSpamList"`
	IsMalware    bool     `json:"IsMalware"`
}

// breachDateLayout is the format of Breach.BreachDate.
const breachDateLayout = "2006-01-02"

// ToDomain converts the API representation to a domain.BreachRecord.
// An absent or malformed BreachDate leaves the date unset.
func (b Breach) ToDomain() domain.BreachRecord {
	rec := domain.BreachRecord{
		Name:        b.Name,
		Title:       b.Title,
		Domain:      b.Domain,
		Description: b.Description,
		DataClasses: b.DataClasses,
	}
	if t, err := time.Parse(breachDateLayout, b.BreachDate); err == nil {
		rec.BreachDate = &t
	}
	return rec
}

// Subscription is the plan returned by GET /api/v3/subscription/status.
type Subscription struct {
	SubscriptionName                string `json:"SubscriptionName"`
	Description                     string `json:"Description"`
	SubscribedUntil                 string `json:"SubscribedUntil"`
	Rpm                             int    `json:"Rpm"`
	DomainSearchMaxBreachedAccounts int    `json:"DomainSearchMaxBreachedAccounts"`
}

// MinInterval is the request spacing the plan's rate allows.
func (s Subscription) MinInterval() time.Duration {
	if s.Rpm <= 0 {
		return 0
	}
	return time.Minute / time.Duration(s.Rpm)
}
