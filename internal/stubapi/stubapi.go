// Package stubapi is an in-process fake of the two services aliasguard talks
// to: the addy.io alias listing and deactivation endpoints and the Have I
// Been Pwned breachedaccount lookup, including its request pacing.
//
// It backs cmd/stub-api for rehearsing a run locally and the end-to-end
// tests.
package stubapi

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/aliasguard/internal/addy"
	"github.com/ignite/aliasguard/internal/hibp"
	"github.com/ignite/aliasguard/internal/pkg/httputil"
	"github.com/ignite/aliasguard/internal/pkg/logger"
)

const maxPageSize = 100

// Options configures a Server.
type Options struct {
	// AddyToken is the bearer token the alias endpoints accept.
	AddyToken string
	// HIBPKey is the hibp-api-key the breach endpoint accepts.
	HIBPKey string
	// LookupInterval is the minimum gap between two accepted breach
	// lookups. Faster lookups get a 429. Zero disables pacing.
	LookupInterval time.Duration
	// AllowedOrigins enables CORS for browser clients. Empty disables it.
	AllowedOrigins []string

	Now    func() time.Time
	Logger *logger.Logger
}

// Server holds the fake state. It is safe for concurrent use.
type Server struct {
	opts Options

	mu          sync.Mutex
	aliases     []addy.Alias
	breaches    map[string][]hibp.Breach
	lastLookup  time.Time
	lookups     int
	throttled   int
	deactivated []string
}

// New creates an empty Server.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.With("component", "stub-api")
	}
	return &Server{
		opts:     opts,
		breaches: make(map[string][]hibp.Breach),
	}
}

// AddAlias appends an alias to the listing.
func (s *Server) AddAlias(a addy.Alias) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases = append(s.aliases, a)
}

// AddBreach records breaches for an address. Addresses match
// case-insensitively.
func (s *Server) AddBreach(email string, breaches ...hibp.Breach) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	s.breaches[key] = append(s.breaches[key], breaches...)
}

// Alias returns the current state of the alias with the given id.
func (s *Server) Alias(id string) (addy.Alias, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.aliases {
		if a.ID == id {
			return a, true
		}
	}
	return addy.Alias{}, false
}

// Deactivated returns the ids deactivated so far, in call order.
func (s *Server) Deactivated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deactivated...)
}

// Lookups returns the number of accepted breach lookups.
func (s *Server) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// Throttled returns the number of lookups answered with 429.
func (s *Server) Throttled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.throttled
}

// Handler returns the HTTP routes of both fake services.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Identity", "aliasguard-stub-api")
			next.ServeHTTP(w, req)
		})
	})
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "hibp-api-key"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/api-token-details", s.tokenDetails)
		r.Get("/aliases", s.listAliases)
		r.Delete("/active-aliases/{id}", s.deactivate)
	})

	r.Route("/api/v3", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/breachedaccount/{account}", s.breachedAccount)
		r.Get("/subscription/status", s.subscriptionStatus)
	})

	return r
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.opts.AddyToken {
			httputil.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("hibp-api-key") != s.opts.HIBPKey {
			respondHIBPError(w, http.StatusUnauthorized, "Access denied due to invalid hibp-api-key.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) tokenDetails(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, addy.TokenDetails{Name: "stub-api", CreatedAt: "2024-01-01 00:00:00"})
}

func (s *Server) listAliases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q.Get("page[number]"), 1)
	size := intParam(q.Get("page[size]"), maxPageSize)
	if size > maxPageSize {
		httputil.Message(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("The page size may not be greater than %d.", maxPageSize))
		return
	}

	s.mu.Lock()
	total := len(s.aliases)
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	data := append([]addy.Alias{}, s.aliases[start:end]...)
	s.mu.Unlock()

	lastPage := int(math.Ceil(float64(total) / float64(size)))
	if lastPage == 0 {
		lastPage = 1
	}

	httputil.OK(w, addy.ListResponse{
		Data: data,
		Meta: addy.PageMeta{CurrentPage: page, LastPage: lastPage, PerPage: size, Total: total},
	})
}

func (s *Server) deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.aliases {
		if s.aliases[i].ID != id {
			continue
		}
		s.aliases[i].Active = false
		s.aliases[i].UpdatedAt = s.opts.Now().UTC().Format(time.RFC3339)
		s.deactivated = append(s.deactivated, id)
		s.opts.Logger.Info("alias deactivated", "alias_id", id, "alias", s.aliases[i].Email)
		httputil.NoContent(w)
		return
	}
	httputil.Message(w, http.StatusNotFound, "No query results for model [App\\Models\\Alias].")
}

func (s *Server) breachedAccount(w http.ResponseWriter, r *http.Request) {
	account, err := url.PathUnescape(chi.URLParam(r, "account"))
	if err != nil {
		respondHIBPError(w, http.StatusBadRequest, "Bad request: the account does not comply with an acceptable format.")
		return
	}

	s.mu.Lock()
	now := s.opts.Now()
	if wait := s.opts.LookupInterval - now.Sub(s.lastLookup); !s.lastLookup.IsZero() && wait > 0 {
		s.throttled++
		s.mu.Unlock()
		seconds := int(math.Ceil(wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		respondHIBPError(w, http.StatusTooManyRequests,
			fmt.Sprintf("Rate limit is exceeded. Try again in %d seconds.", seconds))
		return
	}
	s.lastLookup = now
	s.lookups++
	found := append([]hibp.Breach(nil), s.breaches[strings.ToLower(account)]...)
	s.mu.Unlock()

	if len(found) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.URL.Query().Get("truncateResponse") != "false" {
		for i := range found {
			found[i] = hibp.Breach{Name: found[i].Name}
		}
	}
	httputil.OK(w, found)
}

func (s *Server) subscriptionStatus(w http.ResponseWriter, _ *http.Request) {
	rpm := 0
	if s.opts.LookupInterval > 0 {
		rpm = int(time.Minute / s.opts.LookupInterval)
	}
	httputil.OK(w, hibp.Subscription{
		SubscriptionName: "Stub",
		Description:      "Local stub subscription.",
		SubscribedUntil:  s.opts.Now().AddDate(1, 0, 0).UTC().Format("2006-01-02T15:04:05"),
		Rpm:              rpm,
	})
}

func intParam(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func respondHIBPError(w http.ResponseWriter, status int, message string) {
	httputil.JSON(w, status, map[string]interface{}{"statusCode": status, "message": message})
}
