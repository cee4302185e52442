package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"icsgcal/internal/auth"
	"icsgcal/internal/config"
	"icsgcal/internal/gcal"
	"icsgcal/internal/ics"
	"icsgcal/internal/importer"
	"icsgcal/internal/mapper"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `ICS to Google Calendar Importer

Uploads events from .ics (RFC5545) files to a Google Calendar. Imports are
idempotent: each event's ICS UID is stored in the created Google Calendar
event, so re-running the import updates previously imported events instead
of duplicating them. Events without a UID cannot be matched and are created
anew on every run.

USAGE:
    %s [OPTIONS] ICS_DIRECTORY

ARGUMENTS:
    ICS_DIRECTORY                 Path to the directory containing .ics files

OPTIONS:
    -h, --help                    Show this help message and exit
    --dry-run                     Perform lookups and print actions without
                                  creating or updating any events
    -v, --verbose                 Log each created or updated event; warnings
                                  and the final summary are always printed
    --config FILE                 Path to a JSON or YAML config file (optional)
    --calendar SELECTOR           Target calendar id or display name
                                  (default: "primary", overrides config file
                                  and CALENDAR env var)
    --token-path PATH             Path to store the OAuth token
                                  (overrides config file and TOKEN_PATH env var)
    --google-credentials-path PATH Path to Google OAuth credentials JSON file
                                  (overrides config file and GOOGLE_CREDENTIALS_PATH env var)

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables
    3. Config file (--config)
    4. Defaults

CONFIG FILE:
    All settings can be specified in a JSON or YAML config file. Example:
    {
      "token_path": "/path/to/token.json",
      "calendar": "primary",
      "google_credentials_path": "/path/to/credentials.json"
    }

    The Google credentials JSON file should be in the format downloaded from
    Google Cloud Console. It should contain either an "installed" or "web"
    section with "client_id" and "client_secret" fields.

ENVIRONMENT VARIABLES:
    All settings can be provided via environment variables:
        TOKEN_PATH                Path to store the OAuth token
        CALENDAR                  Target calendar id or display name
        GOOGLE_CREDENTIALS_PATH   Path to Google OAuth credentials JSON file

DESCRIPTION:
    Every .ics file in ICS_DIRECTORY (non-recursive) is parsed and each of
    its VEVENTs is uploaded to the target calendar. Recurrence rules
    (RRULE) are forwarded unchanged; occurrences are not expanded client
    side. A file that fails to parse, or that declares more than one
    timezone while containing timezone-less timed events, is skipped with
    an error and processing continues with the next file.

    On first run, you will be prompted to authorize the account via OAuth
    2.0. Subsequent runs use the stored refresh token.

EXAMPLES:
    # Import a directory of .ics files into the primary calendar
    %s --token-path /path/to/token.json \
       --google-credentials-path /path/to/credentials.json ./invites

    # Preview what would happen without touching the calendar
    %s --config /path/to/config.json --dry-run ./invites

    # Import into a calendar selected by display name
    %s --config /path/to/config.json --calendar "Family" ./invites

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	dryRun := flag.Bool("dry-run", false, "Print actions without creating or updating events")
	verboseFlag := flag.Bool("verbose", false, "Log each created or updated event")
	verboseFlagShort := flag.Bool("v", false, "Log each created or updated event (shorthand)")
	configFile := flag.String("config", "", "Path to a JSON or YAML config file (optional)")
	calendarFlag := flag.String("calendar", "", "Target calendar id or display name (default: \"primary\")")
	tokenPath := flag.String("token-path", "", "Path to store the OAuth token")
	googleCredentialsPath := flag.String("google-credentials-path", "", "Path to Google OAuth credentials JSON file")
	flag.Parse()

	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one ICS_DIRECTORY argument")
		printHelp()
		os.Exit(2)
	}
	icsDir := flag.Arg(0)

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx := context.Background()

	cfg, err := config.LoadConfig(*configFile, *tokenPath, *calendarFlag, *googleCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to load Google credentials: %v", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{calendar.CalendarScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	tokenStore := auth.NewFileTokenStore(cfg.TokenPath)

	httpClient, err := auth.AuthenticatedClient(ctx, oauthConfig, tokenStore, os.Stdin)
	if err != nil {
		log.Fatalf("Failed to authenticate: %v", err)
	}

	client, err := gcal.NewClient(ctx, httpClient)
	if err != nil {
		log.Fatalf("Failed to create calendar client: %v", err)
	}

	if err := client.SelectCalendar(ctx, cfg.Calendar); err != nil {
		log.Fatalf("Failed to resolve calendar %q: %v", cfg.Calendar, err)
	}
	log.Printf("Using calendar: %s", client.CalendarID())

	imp := importer.New(client, *dryRun, *verboseFlag || *verboseFlagShort)

	entries, err := os.ReadDir(icsDir)
	if err != nil {
		log.Fatalf("Failed to read ICS directory: %v", err)
	}

	var total importer.Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".ics") {
			continue
		}
		path := filepath.Join(icsDir, entry.Name())
		log.Printf("Processing %s", path)

		cal, err := ics.Load(path)
		if err != nil {
			log.Printf("Warning: skipping %s: %v", path, err)
			continue
		}

		mapped, err := mapper.MapCalendar(cal, mapper.Options{})
		if err != nil {
			log.Printf("Warning: skipping %s: %v", path, err)
			continue
		}

		total.Add(imp.ImportCalendar(ctx, mapped))
	}

	log.Printf("Done. created=%d updated=%d", total.Created, total.Updated)
}
