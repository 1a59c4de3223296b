package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Secrets are plain strings; durations and
// costs are ints reflecting how they are used.
type Config struct {
    Env              string // application environment (e.g. "dev", "prod")
    Port             string // HTTP port to listen on
    DBUser           string // database username
    DBPass           string // database password (optional)
    DBHost           string // database host address
    DBPort           string // database port number
    DBName           string // database name
    JWTSecret        string // secret used to sign operator access tokens
    TicketSecret     string // secret used to sign QR credentials (distinct from JWTSecret)
    CredentialIssuer string // issuer tag embedded in QR credentials
    TicketPrefix     string // human-readable prefix for ticket numbers (e.g. "EVT-2026")
    AccessTTLMin     int    // operator access token time-to-live in minutes
    BcryptCost       int    // bcrypt cost for operator password hashing
    SumUpAPIURL      string // base URL of the payment provider API
    SumUpAPIKey      string // bearer token for the payment provider API
    SumUpMerchant    string // merchant code passed on checkout creation
    OdooURL          string // base URL of the CRM (empty disables CRM calls)
    OdooDatabase     string // CRM database name
    OdooAPIKey       string // CRM API key (empty disables CRM calls)
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The CRM block is
// optional: when ODOO_API_KEY is unset, contact upserts are skipped.
func Load() Config {
    return Config{
        Env:              must("APP_ENV"),
        Port:             must("APP_PORT"),
        DBUser:           must("DB_USER"),
        DBPass:           os.Getenv("DB_PASS"), // empty allowed
        DBHost:           must("DB_HOST"),
        DBPort:           must("DB_PORT"),
        DBName:           must("DB_NAME"),
        JWTSecret:        must("JWT_SECRET"),
        TicketSecret:     must("TICKET_SECRET"),
        CredentialIssuer: withDefault("CREDENTIAL_ISSUER", "conference-tickets"),
        TicketPrefix:     withDefault("TICKET_PREFIX", "EVT-2026"),
        AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
        BcryptCost:       mustInt("BCRYPT_COST"),
        SumUpAPIURL:      withDefault("SUMUP_API_URL", "https://api.sumup.com"),
        SumUpAPIKey:      must("SUMUP_API_KEY"),
        SumUpMerchant:    must("SUMUP_MERCHANT_CODE"),
        OdooURL:          os.Getenv("ODOO_URL"),
        OdooDatabase:     os.Getenv("ODOO_DATABASE"),
        OdooAPIKey:       os.Getenv("ODOO_API_KEY"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// withDefault returns the variable's value, or def when unset or empty.
func withDefault(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}
