package stubapi

import (
	"fmt"
	"time"

	"github.com/ignite/aliasguard/internal/addy"
	"github.com/ignite/aliasguard/internal/hibp"
)

// Seed fills s with demo data: n aliases on example.com, every third one
// inactive, and every fourth one exposed in a made-up breach.
func Seed(s *Server, n int) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	for i := 1; i <= n; i++ {
		local := fmt.Sprintf("alias%03d", i)
		email := local + "@example.com"
		desc := fmt.Sprintf("demo alias %d", i)
		s.AddAlias(addy.Alias{
			ID:          fmt.Sprintf("00000000-0000-4000-8000-%012d", i),
			LocalPart:   local,
			Domain:      "example.com",
			Email:       email,
			Active:      i%3 != 0,
			Description: &desc,
			CreatedAt:   created,
			UpdatedAt:   created,
		})
		if i%4 == 0 {
			s.AddBreach(email, demoBreach(i))
		}
	}
}

func demoBreach(i int) hibp.Breach {
	name := fmt.Sprintf("DemoBreach%d", i)
	return hibp.Breach{
		Name:        name,
		Title:       fmt.Sprintf("Demo Breach %d", i),
		Domain:      fmt.Sprintf("demo%d.example.org", i),
		BreachDate:  "2023-06-15",
		AddedDate:   "2023-07-01T00:00:00Z",
		PwnCount:    int64(1000 * i),
		Description: "Fictional breach served by the stub API.",
		DataClasses: []string{"Email addresses", "Passwords"},
		IsVerified:  true,
	}
}
