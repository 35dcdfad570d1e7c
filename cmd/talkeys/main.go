// Command talkeys is a terminal client for the Talkeys events platform:
// Google sign-in against the Talkeys backend plus catalog browsing with
// search, category filter, and live/past toggles.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"talkeysclient/config"
	"talkeysclient/internal/adapters/authapi"
	"talkeysclient/internal/adapters/google"
	"talkeysclient/internal/adapters/prefs"
	"talkeysclient/internal/adapters/talkeys"
	"talkeysclient/internal/clock"
	"talkeysclient/internal/domain"
	"talkeysclient/internal/services"
)

const usage = `Usage: talkeys <command> [flags]

Commands:
  login                 sign in with Google
  logout                sign out and clear the stored session
  whoami                show the current session
  events                list events (--live, --past, --category, --search, --refresh)
  event <id>            show one event
  categories            list events grouped by category
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type app struct {
	coord   *services.SessionCoordinator
	catalog *services.CatalogCache
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return err
	}
	logger := config.NewLogger()
	clk := clock.NewSystem()

	tokens, err := prefs.NewFileStore("", clk)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	gateway := authapi.NewClient(cfg.AuthBaseURL, httpClient)

	ctx := context.Background()

	var identity domain.IdentityProvider
	if cfg.Google.ClientID != "" {
		identity, err = google.New(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectPort, nil)
		if err != nil {
			return err
		}
	} else {
		identity = unconfiguredProvider{}
	}

	coord := services.NewSessionCoordinator(identity, gateway, tokens, logger)
	fetcher := talkeys.NewClient(cfg.APIBaseURL, httpClient, coord.Token)
	catalog := services.NewCatalogCache(fetcher, clk, logger)

	a := &app{coord: coord, catalog: catalog}

	switch cmd := args[0]; cmd {
	case "login":
		return a.login(ctx)
	case "logout":
		return a.coord.SignOut(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "events":
		return a.events(ctx, args[1:])
	case "event":
		if len(args) < 2 {
			return fmt.Errorf("event requires an id")
		}
		return a.event(ctx, args[1])
	case "categories":
		return a.categories(ctx)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) login(ctx context.Context) error {
	// Reuse an existing session when the backend still honors it.
	if state := a.coord.CheckExistingSession(ctx); state.Authenticated() {
		fmt.Printf("Already signed in as %s (%s)\n", state.Session.Name, state.Session.Email)
		return nil
	}
	state, err := a.coord.SignIn(ctx)
	if err != nil {
		if state.Reason != "" {
			return fmt.Errorf("%s", state.Reason)
		}
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", state.Session.Name, state.Session.Email)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	state := a.coord.CheckExistingSession(ctx)
	if !state.Authenticated() {
		fmt.Println("Not signed in.")
		return nil
	}
	s := state.Session
	fmt.Printf("%s <%s>\n", s.Name, s.Email)
	if s.DisplayName != "" && s.DisplayName != s.Name {
		fmt.Printf("Display name: %s\n", s.DisplayName)
	}
	if s.Pronouns != "" {
		fmt.Printf("Pronouns: %s\n", s.Pronouns)
	}
	if exp, ok := authapi.TokenExpiresAt(s.Token); ok {
		fmt.Printf("Session expires: %s\n", exp.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) events(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	live := fs.Bool("live", false, "only live and upcoming events")
	past := fs.Bool("past", false, "only past events")
	category := fs.String("category", "", "filter by category")
	search := fs.String("search", "", "free-text search")
	refresh := fs.Bool("refresh", false, "bypass the cache")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.coord.CheckExistingSession(ctx)
	if _, err := a.catalog.Fetch(ctx, *refresh); err != nil {
		// Stale data still renders; only a cold failure is fatal.
		if len(a.catalog.Search("")) == 0 {
			return err
		}
		fmt.Fprintln(os.Stderr, "Warning: showing cached events, refresh failed:", err)
	}

	events := a.catalog.Search(*search)
	if *category != "" {
		events = intersect(events, a.catalog.ByCategory(*category))
	}
	if *live {
		events = intersect(events, a.catalog.Live())
	}
	if *past {
		events = intersect(events, a.catalog.Past())
	}

	if len(events) == 0 {
		fmt.Println("No events found.")
		return nil
	}
	printEvents(events)
	return nil
}

func (a *app) event(ctx context.Context, id string) error {
	a.coord.CheckExistingSession(ctx)
	event, err := a.catalog.EventByID(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", event.Name)
	fmt.Printf("  Category:  %s\n", orDash(event.Category))
	fmt.Printf("  Starts:    %s %s\n", event.StartDate, event.StartTime)
	fmt.Printf("  Location:  %s\n", orDash(event.Location))
	fmt.Printf("  Mode:      %s\n", orDash(event.Mode))
	if event.IsPaid {
		fmt.Printf("  Price:     %.2f\n", event.TicketPrice.Float64())
	} else {
		fmt.Printf("  Price:     free\n")
	}
	fmt.Printf("  Seats:     %d\n", event.TotalSeats.Int())
	if event.Description != "" {
		fmt.Printf("  About:     %s\n", event.Description)
	}
	if event.OrganizerName != "" {
		fmt.Printf("  Organizer: %s\n", event.OrganizerName)
	}
	return nil
}

func (a *app) categories(ctx context.Context) error {
	a.coord.CheckExistingSession(ctx)
	if _, err := a.catalog.Fetch(ctx, false); err != nil && len(a.catalog.Search("")) == 0 {
		return err
	}
	for _, group := range a.catalog.GroupedByCategory() {
		fmt.Printf("%s (%d)\n", group.Name, len(group.Events))
		for _, e := range group.Events {
			fmt.Printf("  %s  %s\n", e.ID, e.Name)
		}
	}
	return nil
}

func printEvents(events []domain.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tSTARTS\tSTATUS")
	for _, e := range events {
		status := "past"
		if e.IsLive {
			status = "live"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, orDash(e.Category), e.StartDate, status)
	}
	_ = w.Flush()
}

func intersect(a, b []domain.Event) []domain.Event {
	ids := make(map[string]struct{}, len(b))
	for _, e := range b {
		ids[e.ID] = struct{}{}
	}
	var out []domain.Event
	for _, e := range a {
		if _, ok := ids[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// unconfiguredProvider stands in when no Google OAuth client is configured so
// catalog browsing still works; sign-in explains what is missing.
type unconfiguredProvider struct{}

func (unconfiguredProvider) SignIn(context.Context) (*domain.Identity, error) {
	return nil, fmt.Errorf("google sign-in is not configured: set GOOGLE_CLIENT_ID (and optionally GOOGLE_CLIENT_SECRET) or add them to the config file")
}

func (unconfiguredProvider) SignOut(context.Context) error { return nil }
